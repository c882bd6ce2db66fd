package ledger

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/goldsouk/bullion-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func seeded(t *testing.T, cash, gold float64) *Ledger {
	t.Helper()
	l := New()
	if err := l.Load(model.Balance{OwnerID: "u1", Cash: d(cash), GoldGrams: d(gold)}); err != nil {
		t.Fatalf("failed to seed balance: %v", err)
	}
	return l
}

func TestApply_OptimisticCredit(t *testing.T) {
	l := seeded(t, 1000, 0)

	res, err := l.Apply("u1", model.BalanceCash, d(500))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Balance.Cash.Equal(d(1500)) {
		t.Errorf("optimistic balance = %s, want 1500", res.Balance.Cash)
	}
	if res.Pending.Type != model.TransactionCredit {
		t.Errorf("pending type = %s, want CREDIT", res.Pending.Type)
	}
	if !res.Pending.Amount.Equal(d(500)) {
		t.Errorf("pending amount = %s, want 500", res.Pending.Amount)
	}
	if !res.Pending.BalanceAfter.Equal(d(1500)) {
		t.Errorf("pending balanceAfter = %s, want 1500", res.Pending.BalanceAfter)
	}
	if res.Pending.ID == "" {
		t.Error("pending transaction should carry a temporary id")
	}
}

func TestApply_DebitSynthesizesDebit(t *testing.T) {
	l := seeded(t, 1000, 0)

	res, err := l.Apply("u1", model.BalanceCash, d(-300))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Pending.Type != model.TransactionDebit {
		t.Errorf("pending type = %s, want DEBIT", res.Pending.Type)
	}
	if !res.Pending.Amount.Equal(d(300)) {
		t.Errorf("pending amount = %s, want 300 (absolute)", res.Pending.Amount)
	}
	if !res.Balance.Cash.Equal(d(700)) {
		t.Errorf("balance = %s, want 700", res.Balance.Cash)
	}
}

func TestApply_ZeroAmountRejected(t *testing.T) {
	l := seeded(t, 1000, 0)

	if _, err := l.Apply("u1", model.BalanceCash, decimal.Zero); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestApply_SecondInFlightRejected(t *testing.T) {
	l := seeded(t, 1000, 0)

	if _, err := l.Apply("u1", model.BalanceCash, d(100)); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if _, err := l.Apply("u1", model.BalanceCash, d(50)); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}
}

func TestApply_IndependentBalanceTypes(t *testing.T) {
	l := seeded(t, 1000, 20)

	if _, err := l.Apply("u1", model.BalanceCash, d(100)); err != nil {
		t.Fatalf("cash apply: %v", err)
	}
	// A gold adjustment for the same owner is not blocked by the cash one.
	if _, err := l.Apply("u1", model.BalanceGold, d(5)); err != nil {
		t.Errorf("gold apply should proceed independently, got %v", err)
	}
}

func TestApply_NegativeBalancePermitted(t *testing.T) {
	l := seeded(t, 100, 0)

	res, err := l.Apply("u1", model.BalanceCash, d(-500))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Balance.Cash.Equal(d(-400)) {
		t.Errorf("balance = %s, want -400 (debt allowed)", res.Balance.Cash)
	}
}

func TestRollback_RestoresPreApplyBalance(t *testing.T) {
	l := seeded(t, 1234.56, 0)
	before, _ := l.Balance("u1")

	if _, err := l.Apply("u1", model.BalanceCash, d(500)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	reverted, err := l.Rollback("u1", model.BalanceCash)
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if !reverted.Cash.Equal(before.Cash) {
		t.Errorf("rolled-back balance = %s, want %s", reverted.Cash, before.Cash)
	}
	if _, pending := l.Pending("u1", model.BalanceCash); pending {
		t.Error("pending transaction should be discarded after rollback")
	}
	// Slot is free again.
	if _, err := l.Apply("u1", model.BalanceCash, d(1)); err != nil {
		t.Errorf("apply after rollback should succeed, got %v", err)
	}
}

func TestRollback_WithoutPending(t *testing.T) {
	l := seeded(t, 100, 0)

	if _, err := l.Rollback("u1", model.BalanceCash); !errors.Is(err, ErrNoPendingAdjustment) {
		t.Errorf("expected ErrNoPendingAdjustment, got %v", err)
	}
}

func TestCommit_ServerValueWins(t *testing.T) {
	l := seeded(t, 1000, 0)

	if _, err := l.Apply("u1", model.BalanceCash, d(500)); err != nil {
		t.Fatalf("apply: %v", err)
	}

	// The server applied a concurrent external adjustment: it reports
	// 1700, not the locally computed 1500.
	confirmed, err := l.Commit("u1", model.BalanceCash, d(1700))
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if !confirmed.Cash.Equal(d(1700)) {
		t.Errorf("confirmed balance = %s, want server value 1700", confirmed.Cash)
	}
	if _, pending := l.Pending("u1", model.BalanceCash); pending {
		t.Error("pending slot should be cleared after commit")
	}
}

func TestCommit_WithoutPending(t *testing.T) {
	l := seeded(t, 100, 0)

	if _, err := l.Commit("u1", model.BalanceCash, d(100)); !errors.Is(err, ErrNoPendingAdjustment) {
		t.Errorf("expected ErrNoPendingAdjustment, got %v", err)
	}
}

func TestApplyGoldWeight_PurityEncoding(t *testing.T) {
	l := seeded(t, 0, 10)

	// 0.9999 × 11.5 = 11.49885 → 11.499 grams
	res, err := l.ApplyGoldWeight("u1", 9999, d(11.5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Balance.GoldGrams.Equal(d(21.499)) {
		t.Errorf("gold balance = %s, want 21.499", res.Balance.GoldGrams)
	}
	if res.Pending.BalanceType != model.BalanceGold {
		t.Errorf("balance type = %s, want GOLD", res.Pending.BalanceType)
	}
}

func TestApplyGoldWeight_PurityOne(t *testing.T) {
	l := seeded(t, 0, 0)

	// purity=1 encodes 100%: 1 × 5 = 5.000 grams, not 0.5.
	res, err := l.ApplyGoldWeight("u1", 1, d(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Balance.GoldGrams.Equal(d(5)) {
		t.Errorf("gold balance = %s, want 5", res.Balance.GoldGrams)
	}
}

func TestLoad_RejectedWhileInFlight(t *testing.T) {
	l := seeded(t, 100, 0)

	if _, err := l.Apply("u1", model.BalanceCash, d(50)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	err := l.Load(model.Balance{OwnerID: "u1", Cash: d(999)})
	if !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy while adjustment in flight, got %v", err)
	}
}

func TestCommitError_WrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := CommitError(cause)
	if !errors.Is(err, ErrCommitFailed) {
		t.Errorf("expected ErrCommitFailed in chain, got %v", err)
	}
}
