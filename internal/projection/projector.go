// Package projection derives running summary aggregates (total credits,
// total debits, net flow per balance type) from a transaction stream. The
// projection is display-only: the ledger, not the projector, owns balance
// correctness.
package projection

import (
	"github.com/shopspring/decimal"

	"github.com/goldsouk/bullion-engine/internal/model"
)

// Result pairs the per-currency summary with the balance figures the
// history view shows next to it.
type Result struct {
	Summary     model.TransactionSummary `json:"summary"`
	BalanceInfo model.BalanceInfo        `json:"balanceInfo"`
}

// Project folds a transaction stream into credit/debit/net-flow totals per
// balance type. A pending (not yet authoritative) transaction is folded in
// for optimistic display; pass nil once it resolves. Duplicate fetches are
// tolerated: transactions are de-duplicated by id, and the pending record
// is ignored when an authoritative record for the same operation is
// already present.
func Project(transactions []model.Transaction, pending *model.Transaction, balance model.Balance) Result {
	var summary model.TransactionSummary

	seen := make(map[string]struct{}, len(transactions))
	for _, tx := range transactions {
		if _, dup := seen[tx.ID]; dup {
			continue
		}
		seen[tx.ID] = struct{}{}
		fold(&summary, tx)
	}

	if pending != nil && !supersedes(transactions, *pending) {
		fold(&summary, *pending)
	}

	summary.Cash.NetFlow = summary.Cash.TotalCredits.Sub(summary.Cash.TotalDebits)
	summary.Gold.NetFlow = summary.Gold.TotalCredits.Sub(summary.Gold.TotalDebits)

	return Result{
		Summary: summary,
		BalanceInfo: model.BalanceInfo{
			CashBalance:      balance.Cash,
			TotalGoldBalance: balance.GoldGrams,
		},
	}
}

// fold adds one transaction's amount to the matching flow bucket.
func fold(summary *model.TransactionSummary, tx model.Transaction) {
	flow := &summary.Cash
	if tx.BalanceType == model.BalanceGold {
		flow = &summary.Gold
	}
	if tx.Type == model.TransactionDebit {
		flow.TotalDebits = flow.TotalDebits.Add(tx.Amount)
	} else {
		flow.TotalCredits = flow.TotalCredits.Add(tx.Amount)
	}
}

// supersedes reports whether an authoritative transaction already covers
// the pending record's logical operation, either by sharing its id or by
// referencing the same order.
func supersedes(transactions []model.Transaction, pending model.Transaction) bool {
	for _, tx := range transactions {
		if tx.ID == pending.ID {
			return true
		}
		if pending.OrderRef != "" && tx.OrderRef == pending.OrderRef {
			return true
		}
	}
	return false
}

// Paginate slices the transaction stream into one history page and reports
// the page geometry. Pages are 1-based; an out-of-range page yields an
// empty slice.
func Paginate(transactions []model.Transaction, page, perPage int) ([]model.Transaction, model.Pagination) {
	if perPage <= 0 {
		perPage = 10
	}
	if page <= 0 {
		page = 1
	}

	totalPages := (len(transactions) + perPage - 1) / perPage
	if totalPages == 0 {
		totalPages = 1
	}

	start := (page - 1) * perPage
	if start >= len(transactions) {
		return []model.Transaction{}, model.Pagination{CurrentPage: page, TotalPages: totalPages, ItemsPerPage: perPage}
	}
	end := start + perPage
	if end > len(transactions) {
		end = len(transactions)
	}

	pageSlice := make([]model.Transaction, end-start)
	copy(pageSlice, transactions[start:end])
	return pageSlice, model.Pagination{CurrentPage: page, TotalPages: totalPages, ItemsPerPage: perPage}
}

// Zero is a fully initialized empty result, used when an owner has no
// history yet so that JSON consumers see 0 instead of null decimals.
func Zero() Result {
	z := decimal.Zero
	return Result{
		Summary: model.TransactionSummary{
			Cash: model.FlowSummary{TotalCredits: z, TotalDebits: z, NetFlow: z},
			Gold: model.FlowSummary{TotalCredits: z, TotalDebits: z, NetFlow: z},
		},
		BalanceInfo: model.BalanceInfo{CashBalance: z, TotalGoldBalance: z},
	}
}
