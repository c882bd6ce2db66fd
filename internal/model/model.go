// Package model defines the core domain types shared across the bullion engine.
// All monetary and weight values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceType selects which side of a dual-currency account an operation
// touches.
type BalanceType string

const (
	BalanceCash BalanceType = "CASH"
	BalanceGold BalanceType = "GOLD"
)

// TransactionType is the direction of a ledger movement.
type TransactionType string

const (
	TransactionCredit TransactionType = "CREDIT"
	TransactionDebit  TransactionType = "DEBIT"
)

// OverrideScope says whether a price override binds to a product category
// or to a single user.
type OverrideScope string

const (
	ScopeCategory OverrideScope = "category"
	ScopeUser     OverrideScope = "user"
)

// AdjustmentType is the sign convention for a premium/discount override.
type AdjustmentType string

const (
	AdjustmentPremium  AdjustmentType = "premium"
	AdjustmentDiscount AdjustmentType = "discount"
)

// Quote is an immutable market snapshot for one instrument. The engine
// always prices against the latest snapshot available at call time.
type Quote struct {
	Instrument string          `json:"instrument"`
	Bid        decimal.Decimal `json:"bid"`
	Ask        decimal.Decimal `json:"ask"`
	Low        decimal.Decimal `json:"low"`
	High       decimal.Decimal `json:"high"`
	Timestamp  time.Time       `json:"timestamp"`
}

// SpreadConfig holds the admin-level additive adjustments between a raw
// market quote and the customer-facing bidding/asking prices. One per
// owner; versionless, last write wins.
type SpreadConfig struct {
	OwnerID    string          `json:"owner_id" db:"owner_id"`
	BidSpread  decimal.Decimal `json:"bid_spread" db:"bid_spread"`
	AskSpread  decimal.Decimal `json:"ask_spread" db:"ask_spread"`
	LowMargin  decimal.Decimal `json:"low_margin" db:"low_margin"`
	HighMargin decimal.Decimal `json:"high_margin" db:"high_margin"`
}

// PriceOverride is an optional per-category or per-user pricing override:
// a flat making charge added after conversion plus a signed premium or
// discount applied to the bid before conversion. At most one active
// override per (scope, scopeID, productID).
type PriceOverride struct {
	Scope           OverrideScope   `json:"scope" db:"scope"`
	ScopeID         string          `json:"scope_id" db:"scope_id"`
	ProductID       string          `json:"product_id" db:"product_id"`
	ChargeValue     decimal.Decimal `json:"charge_value" db:"charge_value"`
	AdjustmentType  AdjustmentType  `json:"adjustment_type" db:"adjustment_type"`
	AdjustmentValue decimal.Decimal `json:"adjustment_value" db:"adjustment_value"`
}

// Product is immutable reference data for pricing. Purity is a legacy
// integer encoding whose digit count implies the decimal scale
// (9999 → 0.9999, 750 → 0.750); purity 1 means 100%.
type Product struct {
	ID       string          `json:"id" db:"id"`
	Name     string          `json:"name" db:"name"`
	Category string          `json:"category" db:"category"`
	Weight   decimal.Decimal `json:"weight" db:"weight"` // grams
	Purity   int64           `json:"purity" db:"purity"`
}

// Balance is the dual-currency account state for one owner. Both sides
// are signed: negative cash is debt, negative gold is a deficit. No
// clamping — the business runs a line-of-credit model.
type Balance struct {
	OwnerID   string          `json:"owner_id" db:"owner_id"`
	Cash      decimal.Decimal `json:"cash" db:"cash"`
	GoldGrams decimal.Decimal `json:"gold_grams" db:"gold_grams"`
}

// Amount returns the side of the balance selected by bt.
func (b Balance) Amount(bt BalanceType) decimal.Decimal {
	if bt == BalanceGold {
		return b.GoldGrams
	}
	return b.Cash
}

// WithAmount returns a copy of the balance with the selected side replaced.
func (b Balance) WithAmount(bt BalanceType, v decimal.Decimal) Balance {
	if bt == BalanceGold {
		b.GoldGrams = v
	} else {
		b.Cash = v
	}
	return b
}

// Transaction is an append-only ledger record. Authoritative records come
// from the server; a pending client-synthesized record may exist
// transiently with a temporary id until the commit resolves.
type Transaction struct {
	ID           string          `json:"id" db:"id"`
	OwnerID      string          `json:"owner_id" db:"owner_id"`
	Type         TransactionType `json:"type" db:"type"`
	Method       string          `json:"method" db:"method"`
	Amount       decimal.Decimal `json:"amount" db:"amount"` // always >= 0
	BalanceType  BalanceType     `json:"balance_type" db:"balance_type"`
	BalanceAfter decimal.Decimal `json:"balance_after" db:"balance_after"`
	OrderRef     string          `json:"order_ref,omitempty" db:"order_ref"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// FlowSummary aggregates movement totals for one balance type.
type FlowSummary struct {
	TotalCredits decimal.Decimal `json:"totalCredits"`
	TotalDebits  decimal.Decimal `json:"totalDebits"`
	NetFlow      decimal.Decimal `json:"netFlow"`
}

// TransactionSummary is the per-currency breakdown shown alongside the
// transaction history.
type TransactionSummary struct {
	Cash FlowSummary `json:"cash"`
	Gold FlowSummary `json:"gold"`
}

// BalanceInfo mirrors the balance figures the history view displays.
type BalanceInfo struct {
	CashBalance      decimal.Decimal `json:"cashBalance"`
	TotalGoldBalance decimal.Decimal `json:"totalGoldBalance"`
}

// Pagination describes one page of the transaction history.
type Pagination struct {
	CurrentPage  int `json:"currentPage"`
	TotalPages   int `json:"totalPages"`
	ItemsPerPage int `json:"itemsPerPage"`
}
