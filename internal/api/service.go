// Package api provides the HTTP handlers for spot rates, price overrides,
// product pricing, balance adjustments, and transaction history.
//
// All monetary values use shopspring/decimal — never float64 for money.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/goldsouk/bullion-engine/internal/ledger"
	"github.com/goldsouk/bullion-engine/internal/metrics"
	"github.com/goldsouk/bullion-engine/internal/model"
	"github.com/goldsouk/bullion-engine/internal/pricing"
	"github.com/goldsouk/bullion-engine/internal/projection"
	"github.com/goldsouk/bullion-engine/internal/quote"
	"github.com/goldsouk/bullion-engine/internal/store"
)

// HistoryPageSize is the transaction history page length.
const HistoryPageSize = 10

// Service handles the engine's HTTP surface. The ledger serializes
// balance mutation; stores and the quote tracker are read concurrently.
type Service struct {
	store   store.Store
	tracker *quote.Tracker
	ledger  *ledger.Ledger
	hub     *Hub // optional WebSocket hub for rate broadcasts
}

// NewService creates a new API service. Pass nil for hub if WebSocket
// broadcasting is not needed.
func NewService(st store.Store, tracker *quote.Tracker, lg *ledger.Ledger, hub *Hub) *Service {
	return &Service{
		store:   st,
		tracker: tracker,
		ledger:  lg,
		hub:     hub,
	}
}

// Routes mounts all handlers on a chi router.
func (s *Service) Routes(r chi.Router) {
	r.Get("/rates/{ownerID}", s.GetRates)
	r.Post("/rates/{ownerID}/spread", s.UpdateSpread)

	r.Get("/overrides/{scope}/{scopeID}/{productID}", s.GetOverride)
	r.Patch("/overrides/{scope}/{scopeID}/{productID}", s.UpsertOverride)
	r.Delete("/overrides/{scope}/{scopeID}/{productID}", s.DeleteOverride)

	r.Get("/products", s.ListProducts)
	r.Get("/products/{productID}", s.GetProduct)
	r.Get("/products/{productID}/price", s.GetProductPrice)

	r.Get("/balances/{ownerID}", s.GetBalance)
	r.Patch("/balances/{ownerID}/{balanceType}", s.AdjustBalance)

	r.Get("/transactions/{ownerID}", s.GetTransactionHistory)
}

// --- Request/Response types ---

// RatesResponse is the spot-rate view for one owner: the raw quote plus
// the spread-adjusted customer prices and display range.
type RatesResponse struct {
	Instrument   string          `json:"instrument"`
	Bid          decimal.Decimal `json:"bid"`
	Ask          decimal.Decimal `json:"ask"`
	BiddingPrice decimal.Decimal `json:"bidding_price"`
	AskingPrice  decimal.Decimal `json:"asking_price"`
	Low          decimal.Decimal `json:"low"`
	High         decimal.Decimal `json:"high"`
	Spread       model.SpreadConfig `json:"spread"`
	Timestamp    time.Time       `json:"timestamp"`
}

// UpdateSpreadRequest updates a single spread field; last write wins.
type UpdateSpreadRequest struct {
	Type  string          `json:"type"` // "bid", "ask", "low", "high"
	Value decimal.Decimal `json:"value"`
}

// OverrideRequest is the JSON body for PATCH override.
type OverrideRequest struct {
	ChargeValue     decimal.Decimal      `json:"charge_value"`
	AdjustmentType  model.AdjustmentType `json:"adjustment_type"`
	AdjustmentValue decimal.Decimal      `json:"adjustment_value"`
}

// PriceResponse carries the displayed price plus the unrounded value. A
// zero price with priced=false means "not yet computable", not an error.
type PriceResponse struct {
	ProductID string          `json:"product_id"`
	Price     decimal.Decimal `json:"price"`
	Exact     decimal.Decimal `json:"exact"`
	Priced    bool            `json:"priced"`
}

// AdjustBalanceRequest is the JSON body for PATCH balance. Either a direct
// signed amount, or (for gold) a weight+purity pair resolved through the
// pure-gold-weight rule.
type AdjustBalanceRequest struct {
	Amount *decimal.Decimal `json:"amount,omitempty"`
	Weight *decimal.Decimal `json:"weight,omitempty"`
	Purity *int64           `json:"purity,omitempty"`
}

// AdjustBalanceResponse mirrors the authoritative commit result.
type AdjustBalanceResponse struct {
	Success     bool              `json:"success"`
	NewBalance  decimal.Decimal   `json:"newBalance"`
	Transaction model.Transaction `json:"transaction"`
}

// HistoryResponse is the transaction history page with its aggregates.
type HistoryResponse struct {
	Transactions []model.Transaction      `json:"transactions"`
	Summary      model.TransactionSummary `json:"summary"`
	BalanceInfo  model.BalanceInfo        `json:"balanceInfo"`
	Pagination   model.Pagination         `json:"pagination"`
}

// --- Rates ---

// GetRates handles GET /api/v1/rates/{ownerID}.
func (s *Service) GetRates(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "ownerID")

	q, ok := s.tracker.Latest()
	if !ok {
		// Quote not loaded yet: an unobtrusive unavailable state, not an
		// error dialog.
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "quote unavailable"})
		return
	}

	spread := s.spreadOrZero(r, ownerID)
	low, high := pricing.DisplayRange(q, spread)

	writeJSON(w, http.StatusOK, RatesResponse{
		Instrument:   q.Instrument,
		Bid:          q.Bid,
		Ask:          q.Ask,
		BiddingPrice: pricing.BiddingPrice(q, spread),
		AskingPrice:  pricing.AskingPrice(q, spread),
		Low:          low,
		High:         high,
		Spread:       spread,
		Timestamp:    q.Timestamp,
	})
}

// UpdateSpread handles POST /api/v1/rates/{ownerID}/spread.
// Updates one spread field at a time; versionless, last write wins.
func (s *Service) UpdateSpread(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "ownerID")

	var req UpdateSpreadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	spread := s.spreadOrZero(r, ownerID)
	spread.OwnerID = ownerID

	switch req.Type {
	case "bid":
		spread.BidSpread = req.Value
	case "ask":
		spread.AskSpread = req.Value
	case "low":
		spread.LowMargin = req.Value
	case "high":
		spread.HighMargin = req.Value
	default:
		writeError(w, "type must be one of bid, ask, low, high", http.StatusBadRequest)
		return
	}

	if err := s.store.SaveSpreadConfig(r.Context(), &spread); err != nil {
		writeError(w, "failed to save spread config", http.StatusInternalServerError)
		return
	}

	slog.Info("spread updated", "owner", ownerID, "type", req.Type, "value", req.Value.String())
	writeJSON(w, http.StatusOK, spread)
}

// --- Overrides ---

// GetOverride handles GET /api/v1/overrides/{scope}/{scopeID}/{productID}.
func (s *Service) GetOverride(w http.ResponseWriter, r *http.Request) {
	scope, ok := parseScope(chi.URLParam(r, "scope"))
	if !ok {
		writeError(w, "scope must be category or user", http.StatusBadRequest)
		return
	}

	ov, err := s.store.GetPriceOverride(r.Context(), scope, chi.URLParam(r, "scopeID"), chi.URLParam(r, "productID"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "override not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, "failed to load override", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

// UpsertOverride handles PATCH /api/v1/overrides/{scope}/{scopeID}/{productID}.
// Creates or replaces the single active override for the key. The flat
// making charge lives here, not on the product.
func (s *Service) UpsertOverride(w http.ResponseWriter, r *http.Request) {
	scope, ok := parseScope(chi.URLParam(r, "scope"))
	if !ok {
		writeError(w, "scope must be category or user", http.StatusBadRequest)
		return
	}

	var req OverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.AdjustmentType != model.AdjustmentPremium && req.AdjustmentType != model.AdjustmentDiscount {
		writeError(w, "adjustment_type must be premium or discount", http.StatusBadRequest)
		return
	}
	if req.ChargeValue.IsNegative() || req.AdjustmentValue.IsNegative() {
		writeError(w, "charge_value and adjustment_value must be non-negative", http.StatusBadRequest)
		return
	}

	ov := &model.PriceOverride{
		Scope:           scope,
		ScopeID:         chi.URLParam(r, "scopeID"),
		ProductID:       chi.URLParam(r, "productID"),
		ChargeValue:     req.ChargeValue,
		AdjustmentType:  req.AdjustmentType,
		AdjustmentValue: req.AdjustmentValue,
	}
	if err := s.store.UpsertPriceOverride(r.Context(), ov); err != nil {
		writeError(w, "failed to save override", http.StatusInternalServerError)
		return
	}

	slog.Info("override saved",
		"scope", scope, "scope_id", ov.ScopeID, "product", ov.ProductID,
		"charge", ov.ChargeValue.String(),
		"adjustment", string(ov.AdjustmentType)+" "+ov.AdjustmentValue.String(),
	)
	writeJSON(w, http.StatusOK, ov)
}

// DeleteOverride handles DELETE /api/v1/overrides/{scope}/{scopeID}/{productID}.
func (s *Service) DeleteOverride(w http.ResponseWriter, r *http.Request) {
	scope, ok := parseScope(chi.URLParam(r, "scope"))
	if !ok {
		writeError(w, "scope must be category or user", http.StatusBadRequest)
		return
	}

	if err := s.store.DeletePriceOverride(r.Context(), scope, chi.URLParam(r, "scopeID"), chi.URLParam(r, "productID")); err != nil {
		writeError(w, "failed to delete override", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Products & pricing ---

// ListProducts handles GET /api/v1/products?category=X.
func (s *Service) ListProducts(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category == "" {
		writeError(w, "category query parameter is required", http.StatusBadRequest)
		return
	}

	products, err := s.store.ListProductsByCategory(r.Context(), category)
	if err != nil {
		writeError(w, "failed to list products", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// GetProduct handles GET /api/v1/products/{productID}.
func (s *Service) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProduct(r.Context(), chi.URLParam(r, "productID"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "product not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, "failed to load product", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GetProductPrice handles GET /api/v1/products/{productID}/price.
// Query parameters: owner (spread config key), and optionally scope +
// scope_id to select a price override. A zero price means the quote has
// not loaded or the product is missing fields — not an error.
func (s *Service) GetProductPrice(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	ctx := r.Context()

	product, err := s.store.GetProduct(ctx, productID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "product not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, "failed to load product", http.StatusInternalServerError)
		return
	}

	q, _ := s.tracker.Latest() // zero quote prices to the 0 sentinel
	spread := s.spreadOrZero(r, r.URL.Query().Get("owner"))

	var override *model.PriceOverride
	if scopeParam := r.URL.Query().Get("scope"); scopeParam != "" {
		scope, ok := parseScope(scopeParam)
		if !ok {
			writeError(w, "scope must be category or user", http.StatusBadRequest)
			return
		}
		ov, err := s.store.GetPriceOverride(ctx, scope, r.URL.Query().Get("scope_id"), productID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			writeError(w, "failed to load override", http.StatusInternalServerError)
			return
		}
		override = ov // nil when not configured
	}

	exact := pricing.ComputePriceExact(q, spread, override, *product)
	price := exact.Round(0)

	outcome := "priced"
	if price.IsZero() {
		outcome = "incomplete"
	}
	metrics.PriceComputations.WithLabelValues(outcome).Inc()

	writeJSON(w, http.StatusOK, PriceResponse{
		ProductID: productID,
		Price:     price,
		Exact:     exact,
		Priced:    !price.IsZero(),
	})
}

// --- Balances ---

// GetBalance handles GET /api/v1/balances/{ownerID}.
func (s *Service) GetBalance(w http.ResponseWriter, r *http.Request) {
	b, err := s.store.GetBalance(r.Context(), chi.URLParam(r, "ownerID"))
	if err != nil {
		writeError(w, "failed to load balance", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// AdjustBalance handles PATCH /api/v1/balances/{ownerID}/{balanceType}.
//
// The adjustment is applied optimistically in the ledger, committed
// against the store (the system of record), and rolled back fully if the
// commit fails. Only one adjustment per (owner, balanceType) may be in
// flight.
func (s *Service) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "ownerID")
	bt, ok := parseBalanceType(chi.URLParam(r, "balanceType"))
	if !ok {
		writeError(w, "balance type must be cash or gold", http.StatusBadRequest)
		return
	}

	var req AdjustBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	amount, err := resolveAmount(bt, req)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := s.ledger.Apply(ownerID, bt, amount)
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount):
		writeError(w, "amount must be a non-zero number", http.StatusBadRequest)
		return
	case errors.Is(err, ledger.ErrBusy):
		metrics.LedgerBusyRejections.Inc()
		writeError(w, "an adjustment is already in flight for this balance", http.StatusConflict)
		return
	case err != nil:
		writeError(w, "failed to apply adjustment", http.StatusInternalServerError)
		return
	}
	metrics.LedgerApplies.WithLabelValues(string(bt)).Inc()

	// Commit against the system of record. The returned value is
	// authoritative: the store may have serialized concurrent adjustments.
	newBalance, err := s.store.AdjustBalance(r.Context(), ownerID, bt, amount)
	if err != nil {
		if _, rbErr := s.ledger.Rollback(ownerID, bt); rbErr != nil {
			slog.Error("rollback failed", "owner", ownerID, "balance_type", bt, "err", rbErr)
		}
		metrics.LedgerRollbacks.WithLabelValues(string(bt)).Inc()
		slog.Warn("balance adjustment rolled back",
			"owner", ownerID, "balance_type", bt, "amount", amount.String(), "err", err)
		writeError(w, ledger.CommitError(err).Error(), http.StatusBadGateway)
		return
	}

	if _, err := s.ledger.Commit(ownerID, bt, newBalance); err != nil {
		writeError(w, "failed to confirm adjustment", http.StatusInternalServerError)
		return
	}
	metrics.LedgerCommits.WithLabelValues(string(bt)).Inc()

	// Replace the pending record with the authoritative transaction.
	tx := res.Pending
	tx.ID = uuid.New().String()
	tx.BalanceAfter = newBalance
	if err := s.store.InsertTransaction(r.Context(), &tx); err != nil {
		// The balance is already committed; losing the history row is
		// recoverable from the server ledger, so log and continue.
		slog.Error("failed to record transaction", "owner", ownerID, "err", err)
	}

	slog.Info("balance adjusted",
		"owner", ownerID,
		"balance_type", bt,
		"amount", amount.String(),
		"new_balance", newBalance.String(),
	)

	writeJSON(w, http.StatusOK, AdjustBalanceResponse{
		Success:     true,
		NewBalance:  newBalance,
		Transaction: tx,
	})
}

// --- Transaction history ---

// GetTransactionHistory handles GET /api/v1/transactions/{ownerID}?page=N.
// Returns one page of history with credit/debit/net-flow summaries per
// balance type; an in-flight adjustment is folded into the summary.
func (s *Service) GetTransactionHistory(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "ownerID")
	ctx := r.Context()

	transactions, err := s.store.ListTransactions(ctx, ownerID)
	if err != nil {
		writeError(w, "failed to load transactions", http.StatusInternalServerError)
		return
	}

	balance, err := s.store.GetBalance(ctx, ownerID)
	if err != nil {
		writeError(w, "failed to load balance", http.StatusInternalServerError)
		return
	}

	var pending *model.Transaction
	if tx, ok := s.ledger.Pending(ownerID, model.BalanceCash); ok {
		pending = &tx
	} else if tx, ok := s.ledger.Pending(ownerID, model.BalanceGold); ok {
		pending = &tx
	}

	result := projection.Project(transactions, pending, *balance)

	page := 1
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	pageTxs, pagination := projection.Paginate(transactions, page, HistoryPageSize)

	writeJSON(w, http.StatusOK, HistoryResponse{
		Transactions: pageTxs,
		Summary:      result.Summary,
		BalanceInfo:  result.BalanceInfo,
		Pagination:   pagination,
	})
}

// --- Helpers ---

// spreadOrZero loads the owner's spread config, defaulting to zero spreads
// when none is configured yet.
func (s *Service) spreadOrZero(r *http.Request, ownerID string) model.SpreadConfig {
	if ownerID == "" {
		return model.SpreadConfig{}
	}
	cfg, err := s.store.GetSpreadConfig(r.Context(), ownerID)
	if err != nil {
		return model.SpreadConfig{OwnerID: ownerID}
	}
	return *cfg
}

// resolveAmount extracts the signed adjustment: a direct amount, or for
// gold a weight+purity pair resolved to grams.
func resolveAmount(bt model.BalanceType, req AdjustBalanceRequest) (decimal.Decimal, error) {
	if req.Amount != nil {
		return *req.Amount, nil
	}
	if bt == model.BalanceGold && req.Weight != nil && req.Purity != nil {
		return pricing.PureGoldWeight(*req.Purity, *req.Weight), nil
	}
	return decimal.Zero, errors.New("amount is required (or weight and purity for gold)")
}

func parseScope(s string) (model.OverrideScope, bool) {
	switch model.OverrideScope(s) {
	case model.ScopeCategory:
		return model.ScopeCategory, true
	case model.ScopeUser:
		return model.ScopeUser, true
	}
	return "", false
}

func parseBalanceType(s string) (model.BalanceType, bool) {
	switch s {
	case "cash", "CASH":
		return model.BalanceCash, true
	case "gold", "GOLD":
		return model.BalanceGold, true
	}
	return "", false
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
