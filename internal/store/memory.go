package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/goldsouk/bullion-engine/internal/model"
)

// overrideKey identifies the single active override per (scope, scopeID,
// productID).
type overrideKey struct {
	scope     model.OverrideScope
	scopeID   string
	productID string
}

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu           sync.RWMutex
	spreads      map[string]model.SpreadConfig
	overrides    map[overrideKey]model.PriceOverride
	products     map[string]model.Product
	balances     map[string]model.Balance
	transactions []model.Transaction
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		spreads:   make(map[string]model.SpreadConfig),
		overrides: make(map[overrideKey]model.PriceOverride),
		products:  make(map[string]model.Product),
		balances:  make(map[string]model.Balance),
	}
}

func (s *MemoryStore) GetSpreadConfig(_ context.Context, ownerID string) (*model.SpreadConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.spreads[ownerID]
	if !ok {
		return nil, ErrNotFound
	}
	return &cfg, nil
}

func (s *MemoryStore) SaveSpreadConfig(_ context.Context, cfg *model.SpreadConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.spreads[cfg.OwnerID] = *cfg
	return nil
}

func (s *MemoryStore) GetPriceOverride(_ context.Context, scope model.OverrideScope, scopeID, productID string) (*model.PriceOverride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ov, ok := s.overrides[overrideKey{scope, scopeID, productID}]
	if !ok {
		return nil, ErrNotFound
	}
	return &ov, nil
}

func (s *MemoryStore) UpsertPriceOverride(_ context.Context, ov *model.PriceOverride) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.overrides[overrideKey{ov.Scope, ov.ScopeID, ov.ProductID}] = *ov
	return nil
}

func (s *MemoryStore) DeletePriceOverride(_ context.Context, scope model.OverrideScope, scopeID, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.overrides, overrideKey{scope, scopeID, productID})
	return nil
}

func (s *MemoryStore) GetProduct(_ context.Context, id string) (*model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) ListProductsByCategory(_ context.Context, category string) ([]model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var products []model.Product
	for _, p := range s.products {
		if p.Category == category {
			products = append(products, p)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func (s *MemoryStore) PutProduct(_ context.Context, p *model.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.products[p.ID] = *p
	return nil
}

func (s *MemoryStore) GetBalance(_ context.Context, ownerID string) (*model.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.balances[ownerID]
	if !ok {
		b = model.Balance{OwnerID: ownerID}
		s.balances[ownerID] = b
	}
	return &b, nil
}

func (s *MemoryStore) AdjustBalance(_ context.Context, ownerID string, bt model.BalanceType, amount decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.balances[ownerID]
	if !ok {
		b = model.Balance{OwnerID: ownerID}
	}
	newValue := b.Amount(bt).Add(amount)
	s.balances[ownerID] = b.WithAmount(bt, newValue)
	return newValue, nil
}

func (s *MemoryStore) InsertTransaction(_ context.Context, tx *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transactions = append(s.transactions, *tx)
	return nil
}

func (s *MemoryStore) ListTransactions(_ context.Context, ownerID string) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Transaction
	for _, tx := range s.transactions {
		if tx.OwnerID == ownerID {
			result = append(result, tx)
		}
	}
	// Newest first, matching the history view.
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}
