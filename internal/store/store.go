// Package store defines the persistence interface for the bullion engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/goldsouk/bullion-engine/internal/model"
)

// ErrNotFound is returned when the requested record does not exist. A
// missing price override is a normal condition, not a failure.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer. The balance rows here are the
// authoritative values the ledger reconciles against.
type Store interface {
	// --- Spread configuration ---

	// GetSpreadConfig returns the per-owner spreads and margins.
	GetSpreadConfig(ctx context.Context, ownerID string) (*model.SpreadConfig, error)

	// SaveSpreadConfig upserts the owner's spread config. Versionless,
	// last write wins.
	SaveSpreadConfig(ctx context.Context, cfg *model.SpreadConfig) error

	// --- Price overrides ---

	// GetPriceOverride returns the active override for (scope, scopeID,
	// productID), or ErrNotFound when none is configured.
	GetPriceOverride(ctx context.Context, scope model.OverrideScope, scopeID, productID string) (*model.PriceOverride, error)

	// UpsertPriceOverride creates or replaces the single active override
	// for its (scope, scopeID, productID).
	UpsertPriceOverride(ctx context.Context, ov *model.PriceOverride) error

	// DeletePriceOverride removes an override.
	DeletePriceOverride(ctx context.Context, scope model.OverrideScope, scopeID, productID string) error

	// --- Products (immutable reference data) ---

	// GetProduct retrieves a product by id.
	GetProduct(ctx context.Context, id string) (*model.Product, error)

	// ListProductsByCategory returns the products in a category.
	ListProductsByCategory(ctx context.Context, category string) ([]model.Product, error)

	// PutProduct stores reference data (seeding and admin imports).
	PutProduct(ctx context.Context, p *model.Product) error

	// --- Balances (authoritative) ---

	// GetBalance returns the owner's dual-currency balance, creating a
	// zero record on first access.
	GetBalance(ctx context.Context, ownerID string) (*model.Balance, error)

	// AdjustBalance atomically adds a signed amount to one side of the
	// balance and returns the new authoritative value. This is the commit
	// the ledger reconciles against.
	AdjustBalance(ctx context.Context, ownerID string, bt model.BalanceType, amount decimal.Decimal) (decimal.Decimal, error)

	// --- Transactions (append-only) ---

	// InsertTransaction appends an authoritative ledger record.
	InsertTransaction(ctx context.Context, tx *model.Transaction) error

	// ListTransactions returns all records for an owner, newest first.
	ListTransactions(ctx context.Context, ownerID string) ([]model.Transaction, error)
}
