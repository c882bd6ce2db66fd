package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldsouk/bullion-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestMemoryStore_SpreadConfigLastWriteWins(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.GetSpreadConfig(ctx, "admin1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SaveSpreadConfig(ctx, &model.SpreadConfig{
		OwnerID: "admin1", BidSpread: d(1), AskSpread: d(2),
	}))
	require.NoError(t, s.SaveSpreadConfig(ctx, &model.SpreadConfig{
		OwnerID: "admin1", BidSpread: d(3), AskSpread: d(4), HighMargin: d(5),
	}))

	cfg, err := s.GetSpreadConfig(ctx, "admin1")
	require.NoError(t, err)
	assert.True(t, cfg.BidSpread.Equal(d(3)))
	assert.True(t, cfg.AskSpread.Equal(d(4)))
	assert.True(t, cfg.HighMargin.Equal(d(5)))
}

func TestMemoryStore_SingleOverridePerKey(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.UpsertPriceOverride(ctx, &model.PriceOverride{
		Scope: model.ScopeUser, ScopeID: "u1", ProductID: "p1",
		AdjustmentType: model.AdjustmentPremium, AdjustmentValue: d(2), ChargeValue: d(10),
	}))
	require.NoError(t, s.UpsertPriceOverride(ctx, &model.PriceOverride{
		Scope: model.ScopeUser, ScopeID: "u1", ProductID: "p1",
		AdjustmentType: model.AdjustmentDiscount, AdjustmentValue: d(5), ChargeValue: d(15),
	}))

	ov, err := s.GetPriceOverride(ctx, model.ScopeUser, "u1", "p1")
	require.NoError(t, err)
	assert.Equal(t, model.AdjustmentDiscount, ov.AdjustmentType)
	assert.True(t, ov.ChargeValue.Equal(d(15)), "upsert must replace, not accumulate")

	// Category scope with the same ids is a distinct override.
	_, err = s.GetPriceOverride(ctx, model.ScopeCategory, "u1", "p1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.DeletePriceOverride(ctx, model.ScopeUser, "u1", "p1"))
	_, err = s.GetPriceOverride(ctx, model.ScopeUser, "u1", "p1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_AdjustBalance(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	v, err := s.AdjustBalance(ctx, "u1", model.BalanceCash, d(500))
	require.NoError(t, err)
	assert.True(t, v.Equal(d(500)))

	v, err = s.AdjustBalance(ctx, "u1", model.BalanceCash, d(-800))
	require.NoError(t, err)
	assert.True(t, v.Equal(d(-300)), "negative balances are permitted")

	v, err = s.AdjustBalance(ctx, "u1", model.BalanceGold, d(12.345))
	require.NoError(t, err)
	assert.True(t, v.Equal(d(12.345)), "gold side is independent of cash")

	b, err := s.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, b.Cash.Equal(d(-300)))
	assert.True(t, b.GoldGrams.Equal(d(12.345)))
}

func TestMemoryStore_TransactionsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	base := time.Now().UTC()
	for i, id := range []string{"t1", "t2", "t3"} {
		require.NoError(t, s.InsertTransaction(ctx, &model.Transaction{
			ID: id, OwnerID: "u1", Type: model.TransactionCredit,
			Amount: d(1), BalanceType: model.BalanceCash,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, s.InsertTransaction(ctx, &model.Transaction{
		ID: "other", OwnerID: "u2", Type: model.TransactionCredit,
		Amount: d(1), BalanceType: model.BalanceCash, CreatedAt: base,
	}))

	txs, err := s.ListTransactions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, "t3", txs[0].ID)
	assert.Equal(t, "t1", txs[2].ID)
}

func TestMemoryStore_Products(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.PutProduct(ctx, &model.Product{
		ID: "p1", Name: "Bar 10g", Category: "bars", Weight: d(10), Purity: 9999,
	}))
	require.NoError(t, s.PutProduct(ctx, &model.Product{
		ID: "p2", Name: "Coin", Category: "coins", Weight: d(8), Purity: 916,
	}))

	p, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, p.Weight.Equal(d(10)))
	assert.EqualValues(t, 9999, p.Purity)

	bars, err := s.ListProductsByCategory(ctx, "bars")
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, "p1", bars[0].ID)
}
