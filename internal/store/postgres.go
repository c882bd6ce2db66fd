package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/goldsouk/bullion-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary and weight values are stored as NUMERIC for exact decimal
// precision and scanned through TEXT.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) GetSpreadConfig(ctx context.Context, ownerID string) (*model.SpreadConfig, error) {
	var cfg model.SpreadConfig
	var bidSpread, askSpread, lowMargin, highMargin string

	err := s.pool.QueryRow(ctx,
		`SELECT owner_id,
		        bid_spread::TEXT, ask_spread::TEXT,
		        low_margin::TEXT, high_margin::TEXT
		 FROM spread_configs WHERE owner_id = $1`, ownerID).
		Scan(&cfg.OwnerID, &bidSpread, &askSpread, &lowMargin, &highMargin)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get spread config %s: %w", ownerID, err)
	}

	cfg.BidSpread, _ = decimal.NewFromString(bidSpread)
	cfg.AskSpread, _ = decimal.NewFromString(askSpread)
	cfg.LowMargin, _ = decimal.NewFromString(lowMargin)
	cfg.HighMargin, _ = decimal.NewFromString(highMargin)

	return &cfg, nil
}

func (s *PostgresStore) SaveSpreadConfig(ctx context.Context, cfg *model.SpreadConfig) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO spread_configs (owner_id, bid_spread, ask_spread, low_margin, high_margin)
		 VALUES ($1, $2::NUMERIC, $3::NUMERIC, $4::NUMERIC, $5::NUMERIC)
		 ON CONFLICT (owner_id) DO UPDATE SET
		   bid_spread = EXCLUDED.bid_spread,
		   ask_spread = EXCLUDED.ask_spread,
		   low_margin = EXCLUDED.low_margin,
		   high_margin = EXCLUDED.high_margin`,
		cfg.OwnerID,
		cfg.BidSpread.String(), cfg.AskSpread.String(),
		cfg.LowMargin.String(), cfg.HighMargin.String(),
	)
	return err
}

func (s *PostgresStore) GetPriceOverride(ctx context.Context, scope model.OverrideScope, scopeID, productID string) (*model.PriceOverride, error) {
	var ov model.PriceOverride
	var charge, adjustment string

	err := s.pool.QueryRow(ctx,
		`SELECT scope, scope_id, product_id,
		        charge_value::TEXT, adjustment_type, adjustment_value::TEXT
		 FROM price_overrides
		 WHERE scope = $1 AND scope_id = $2 AND product_id = $3`,
		string(scope), scopeID, productID).
		Scan(&ov.Scope, &ov.ScopeID, &ov.ProductID, &charge, &ov.AdjustmentType, &adjustment)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get price override %s/%s/%s: %w", scope, scopeID, productID, err)
	}

	ov.ChargeValue, _ = decimal.NewFromString(charge)
	ov.AdjustmentValue, _ = decimal.NewFromString(adjustment)

	return &ov, nil
}

func (s *PostgresStore) UpsertPriceOverride(ctx context.Context, ov *model.PriceOverride) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO price_overrides (scope, scope_id, product_id, charge_value, adjustment_type, adjustment_value)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5, $6::NUMERIC)
		 ON CONFLICT (scope, scope_id, product_id) DO UPDATE SET
		   charge_value = EXCLUDED.charge_value,
		   adjustment_type = EXCLUDED.adjustment_type,
		   adjustment_value = EXCLUDED.adjustment_value`,
		string(ov.Scope), ov.ScopeID, ov.ProductID,
		ov.ChargeValue.String(), string(ov.AdjustmentType), ov.AdjustmentValue.String(),
	)
	return err
}

func (s *PostgresStore) DeletePriceOverride(ctx context.Context, scope model.OverrideScope, scopeID, productID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM price_overrides WHERE scope = $1 AND scope_id = $2 AND product_id = $3`,
		string(scope), scopeID, productID)
	return err
}

func (s *PostgresStore) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	var p model.Product
	var weight string

	err := s.pool.QueryRow(ctx,
		`SELECT id, name, category, weight::TEXT, purity
		 FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Category, &weight, &p.Purity)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}

	p.Weight, _ = decimal.NewFromString(weight)
	return &p, nil
}

func (s *PostgresStore) ListProductsByCategory(ctx context.Context, category string) ([]model.Product, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, category, weight::TEXT, purity
		 FROM products WHERE category = $1 ORDER BY id`, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var p model.Product
		var weight string
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &weight, &p.Purity); err != nil {
			return nil, err
		}
		p.Weight, _ = decimal.NewFromString(weight)
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *PostgresStore) PutProduct(ctx context.Context, p *model.Product) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO products (id, name, category, weight, purity)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5)
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name,
		   category = EXCLUDED.category,
		   weight = EXCLUDED.weight,
		   purity = EXCLUDED.purity`,
		p.ID, p.Name, p.Category, p.Weight.String(), p.Purity,
	)
	return err
}

func (s *PostgresStore) GetBalance(ctx context.Context, ownerID string) (*model.Balance, error) {
	var b model.Balance
	var cash, gold string

	err := s.pool.QueryRow(ctx,
		`INSERT INTO balances (owner_id, cash, gold_grams)
		 VALUES ($1, 0, 0)
		 ON CONFLICT (owner_id) DO UPDATE SET owner_id = EXCLUDED.owner_id
		 RETURNING owner_id, cash::TEXT, gold_grams::TEXT`, ownerID).
		Scan(&b.OwnerID, &cash, &gold)
	if err != nil {
		return nil, fmt.Errorf("get balance %s: %w", ownerID, err)
	}

	b.Cash, _ = decimal.NewFromString(cash)
	b.GoldGrams, _ = decimal.NewFromString(gold)
	return &b, nil
}

// AdjustBalance adds the signed amount atomically in the database and
// returns the authoritative new value. Concurrent adjustments serialize on
// the row, so the returned value may differ from any locally computed one.
func (s *PostgresStore) AdjustBalance(ctx context.Context, ownerID string, bt model.BalanceType, amount decimal.Decimal) (decimal.Decimal, error) {
	column := "cash"
	if bt == model.BalanceGold {
		column = "gold_grams"
	}

	var newValue string
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(
			`INSERT INTO balances (owner_id, %s)
			 VALUES ($1, $2::NUMERIC)
			 ON CONFLICT (owner_id) DO UPDATE SET %s = balances.%s + $2::NUMERIC
			 RETURNING %s::TEXT`, column, column, column, column),
		ownerID, amount.String()).
		Scan(&newValue)
	if err != nil {
		return decimal.Zero, fmt.Errorf("adjust balance %s/%s: %w", ownerID, bt, err)
	}

	v, _ := decimal.NewFromString(newValue)
	return v, nil
}

func (s *PostgresStore) InsertTransaction(ctx context.Context, tx *model.Transaction) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO transactions (id, owner_id, type, method, amount, balance_type, balance_after, order_ref, created_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6, $7::NUMERIC, NULLIF($8, ''), $9)`,
		tx.ID, tx.OwnerID, string(tx.Type), tx.Method,
		tx.Amount.String(), string(tx.BalanceType), tx.BalanceAfter.String(),
		tx.OrderRef, tx.CreatedAt,
	)
	return err
}

func (s *PostgresStore) ListTransactions(ctx context.Context, ownerID string) ([]model.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, type, method,
		        amount::TEXT, balance_type, balance_after::TEXT,
		        COALESCE(order_ref, ''), created_at
		 FROM transactions WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []model.Transaction
	for rows.Next() {
		var tx model.Transaction
		var amount, after string
		if err := rows.Scan(&tx.ID, &tx.OwnerID, &tx.Type, &tx.Method,
			&amount, &tx.BalanceType, &after, &tx.OrderRef, &tx.CreatedAt); err != nil {
			return nil, err
		}
		tx.Amount, _ = decimal.NewFromString(amount)
		tx.BalanceAfter, _ = decimal.NewFromString(after)
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}
