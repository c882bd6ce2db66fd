package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/goldsouk/bullion-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary. Spread configs and
// overrides sit on the pricing hot path and benefit most; transaction
// listings pass through uncached since they change on every commit.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Spread configuration ---

func (s *CachedStore) GetSpreadConfig(ctx context.Context, ownerID string) (*model.SpreadConfig, error) {
	data, err := s.rdb.Get(ctx, spreadKey(ownerID)).Bytes()
	if err == nil {
		var cfg model.SpreadConfig
		if json.Unmarshal(data, &cfg) == nil {
			return &cfg, nil
		}
	}

	cfg, err := s.primary.GetSpreadConfig(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	s.cacheJSON(ctx, spreadKey(ownerID), cfg)
	return cfg, nil
}

func (s *CachedStore) SaveSpreadConfig(ctx context.Context, cfg *model.SpreadConfig) error {
	if err := s.primary.SaveSpreadConfig(ctx, cfg); err != nil {
		return err
	}
	s.cacheJSON(ctx, spreadKey(cfg.OwnerID), cfg)
	return nil
}

// --- Price overrides ---

func (s *CachedStore) GetPriceOverride(ctx context.Context, scope model.OverrideScope, scopeID, productID string) (*model.PriceOverride, error) {
	data, err := s.rdb.Get(ctx, overrideCacheKey(scope, scopeID, productID)).Bytes()
	if err == nil {
		var ov model.PriceOverride
		if json.Unmarshal(data, &ov) == nil {
			return &ov, nil
		}
	}

	ov, err := s.primary.GetPriceOverride(ctx, scope, scopeID, productID)
	if err != nil {
		return nil, err
	}

	s.cacheJSON(ctx, overrideCacheKey(scope, scopeID, productID), ov)
	return ov, nil
}

func (s *CachedStore) UpsertPriceOverride(ctx context.Context, ov *model.PriceOverride) error {
	if err := s.primary.UpsertPriceOverride(ctx, ov); err != nil {
		return err
	}
	s.cacheJSON(ctx, overrideCacheKey(ov.Scope, ov.ScopeID, ov.ProductID), ov)
	return nil
}

func (s *CachedStore) DeletePriceOverride(ctx context.Context, scope model.OverrideScope, scopeID, productID string) error {
	if err := s.primary.DeletePriceOverride(ctx, scope, scopeID, productID); err != nil {
		return err
	}
	s.rdb.Del(ctx, overrideCacheKey(scope, scopeID, productID))
	return nil
}

// --- Products ---

func (s *CachedStore) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	data, err := s.rdb.Get(ctx, productKey(id)).Bytes()
	if err == nil {
		var p model.Product
		if json.Unmarshal(data, &p) == nil {
			return &p, nil
		}
	}

	p, err := s.primary.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheJSON(ctx, productKey(id), p)
	return p, nil
}

func (s *CachedStore) ListProductsByCategory(ctx context.Context, category string) ([]model.Product, error) {
	return s.primary.ListProductsByCategory(ctx, category)
}

func (s *CachedStore) PutProduct(ctx context.Context, p *model.Product) error {
	if err := s.primary.PutProduct(ctx, p); err != nil {
		return err
	}
	s.cacheJSON(ctx, productKey(p.ID), p)
	return nil
}

// --- Balances ---

func (s *CachedStore) GetBalance(ctx context.Context, ownerID string) (*model.Balance, error) {
	data, err := s.rdb.Get(ctx, balanceKey(ownerID)).Bytes()
	if err == nil {
		var b model.Balance
		if json.Unmarshal(data, &b) == nil {
			return &b, nil
		}
	}

	b, err := s.primary.GetBalance(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	s.cacheJSON(ctx, balanceKey(ownerID), b)
	return b, nil
}

func (s *CachedStore) AdjustBalance(ctx context.Context, ownerID string, bt model.BalanceType, amount decimal.Decimal) (decimal.Decimal, error) {
	newValue, err := s.primary.AdjustBalance(ctx, ownerID, bt, amount)
	if err != nil {
		return decimal.Zero, err
	}
	// Invalidate; next read re-populates with the authoritative row.
	s.rdb.Del(ctx, balanceKey(ownerID))
	return newValue, nil
}

// --- Transactions (passthrough) ---

func (s *CachedStore) InsertTransaction(ctx context.Context, tx *model.Transaction) error {
	return s.primary.InsertTransaction(ctx, tx)
}

func (s *CachedStore) ListTransactions(ctx context.Context, ownerID string) ([]model.Transaction, error) {
	return s.primary.ListTransactions(ctx, ownerID)
}

// --- Cache helpers ---

func (s *CachedStore) cacheJSON(ctx context.Context, key string, v any) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

func spreadKey(ownerID string) string  { return fmt.Sprintf("spread:%s", ownerID) }
func productKey(id string) string      { return fmt.Sprintf("product:%s", id) }
func balanceKey(ownerID string) string { return fmt.Sprintf("balance:%s", ownerID) }

func overrideCacheKey(scope model.OverrideScope, scopeID, productID string) string {
	return fmt.Sprintf("override:%s:%s:%s", scope, scopeID, productID)
}
