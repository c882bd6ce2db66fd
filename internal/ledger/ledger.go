// Package ledger manages dual-currency account balances with optimistic
// adjustments. An apply mutates the in-memory balance immediately and
// synthesizes a pending transaction; the caller then either commits the
// server-confirmed balance or rolls the apply back exactly.
//
// All monetary values use shopspring/decimal — never float64 for money.
package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/goldsouk/bullion-engine/internal/model"
	"github.com/goldsouk/bullion-engine/internal/pricing"
)

var (
	// ErrInvalidAmount is returned when an adjustment is zero.
	ErrInvalidAmount = errors.New("ledger: adjustment amount must be a non-zero number")

	// ErrBusy is returned when an apply arrives while another adjustment
	// for the same owner and balance type is still in flight. Overlapping
	// optimistic states cannot be unambiguously rolled back.
	ErrBusy = errors.New("ledger: adjustment already in flight for this balance")

	// ErrNoPendingAdjustment is returned by Commit/Rollback when there is
	// nothing in flight for the given owner and balance type.
	ErrNoPendingAdjustment = errors.New("ledger: no pending adjustment")

	// ErrCommitFailed wraps a server rejection or network failure after an
	// optimistic apply. The ledger has already been rolled back when a
	// caller sees this.
	ErrCommitFailed = errors.New("ledger: commit failed")
)

// MethodReceived is the transaction method for direct balance adjustments.
const MethodReceived = "RECEIVED"

// ApplyResult is returned from Apply for immediate display: the optimistic
// balance plus the client-synthesized pending transaction.
type ApplyResult struct {
	Balance model.Balance
	Pending model.Transaction
}

// pendingKey identifies the single in-flight slot per owner and balance type.
type pendingKey struct {
	ownerID     string
	balanceType model.BalanceType
}

// pendingAdjustment records exactly what an apply did, so rollback can
// restore the pre-apply state bit for bit rather than recompute it.
type pendingAdjustment struct {
	amount      decimal.Decimal
	transaction model.Transaction
}

// Ledger is the sole mutator of balance state. All other components read
// snapshots. Safe for concurrent use; operations on distinct owners or
// balance types proceed independently.
type Ledger struct {
	mu       sync.Mutex
	balances map[string]model.Balance
	pending  map[pendingKey]pendingAdjustment
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		balances: make(map[string]model.Balance),
		pending:  make(map[pendingKey]pendingAdjustment),
	}
}

// Load seeds the ledger with a balance snapshot, typically fetched from
// the system of record on profile entry. Replaces any existing snapshot
// for the owner; rejected while an adjustment is in flight.
func (l *Ledger) Load(balance model.Balance) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key := range l.pending {
		if key.ownerID == balance.OwnerID {
			return ErrBusy
		}
	}
	l.balances[balance.OwnerID] = balance
	return nil
}

// Balance returns the current (possibly optimistic) balance snapshot.
func (l *Ledger) Balance(ownerID string) (model.Balance, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.balances[ownerID]
	return b, ok
}

// Pending returns the in-flight transaction for the owner and balance
// type, if any.
func (l *Ledger) Pending(ownerID string, bt model.BalanceType) (model.Transaction, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	adj, ok := l.pending[pendingKey{ownerID, bt}]
	return adj.transaction, ok
}

// Apply validates the signed amount, mutates the balance optimistically,
// and synthesizes a pending transaction with a temporary id. Only one
// apply may be in flight per (owner, balanceType); a second is rejected
// with ErrBusy.
func (l *Ledger) Apply(ownerID string, bt model.BalanceType, amount decimal.Decimal) (ApplyResult, error) {
	if amount.IsZero() {
		return ApplyResult{}, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := pendingKey{ownerID, bt}
	if _, inFlight := l.pending[key]; inFlight {
		return ApplyResult{}, ErrBusy
	}

	balance, ok := l.balances[ownerID]
	if !ok {
		balance = model.Balance{OwnerID: ownerID}
	}

	before := balance.Amount(bt)
	after := before.Add(amount)
	balance = balance.WithAmount(bt, after)
	l.balances[ownerID] = balance

	txType := model.TransactionCredit
	if amount.IsNegative() {
		txType = model.TransactionDebit
	}
	tx := model.Transaction{
		ID:           "temp-" + uuid.New().String(),
		OwnerID:      ownerID,
		Type:         txType,
		Method:       MethodReceived,
		Amount:       amount.Abs(),
		BalanceType:  bt,
		BalanceAfter: after,
		CreatedAt:    time.Now().UTC(),
	}

	l.pending[key] = pendingAdjustment{
		amount:      amount,
		transaction: tx,
	}

	return ApplyResult{Balance: balance, Pending: tx}, nil
}

// ApplyGoldWeight derives the gold-gram amount from a weight+purity pair
// (purity factor × weight, rounded to three decimals) and applies it as a
// signed GOLD adjustment.
func (l *Ledger) ApplyGoldWeight(ownerID string, purity int64, weight decimal.Decimal) (ApplyResult, error) {
	return l.Apply(ownerID, model.BalanceGold, pricing.PureGoldWeight(purity, weight))
}

// Commit resolves the in-flight adjustment with the server-confirmed
// balance. The server value overwrites the optimistic one — the server
// may have applied concurrent adjustments, so local arithmetic is not
// trusted. Clears the pending slot.
func (l *Ledger) Commit(ownerID string, bt model.BalanceType, serverBalance decimal.Decimal) (model.Balance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := pendingKey{ownerID, bt}
	if _, inFlight := l.pending[key]; !inFlight {
		return model.Balance{}, ErrNoPendingAdjustment
	}
	delete(l.pending, key)

	balance := l.balances[ownerID].WithAmount(bt, serverBalance)
	balance.OwnerID = ownerID
	l.balances[ownerID] = balance
	return balance, nil
}

// Rollback reverts a failed adjustment by subtracting the exact amount
// that was applied, restoring the pre-apply balance bit for bit, and
// discards the pending transaction.
func (l *Ledger) Rollback(ownerID string, bt model.BalanceType) (model.Balance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := pendingKey{ownerID, bt}
	adj, inFlight := l.pending[key]
	if !inFlight {
		return model.Balance{}, ErrNoPendingAdjustment
	}
	delete(l.pending, key)

	balance := l.balances[ownerID]
	balance = balance.WithAmount(bt, balance.Amount(bt).Sub(adj.amount))
	l.balances[ownerID] = balance
	return balance, nil
}

// CommitError builds the error surfaced after a rollback, preserving the
// underlying cause.
func CommitError(cause error) error {
	if cause == nil {
		return ErrCommitFailed
	}
	return fmt.Errorf("%w: %v", ErrCommitFailed, cause)
}
