package pricing

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/goldsouk/bullion-engine/internal/model"
)

// d is a test helper for creating decimals from float64.
func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func goldQuote(bid float64) model.Quote {
	return model.Quote{Instrument: "GOLD", Bid: d(bid)}
}

// --- Purity factor tests ---

func TestPurityFactor_DigitCount(t *testing.T) {
	tests := []struct {
		purity int64
		want   float64
	}{
		{9999, 0.9999},
		{999, 0.999},
		{995, 0.995},
		{916, 0.916},
		{750, 0.750},
		{22, 0.22},
		{9, 0.9},
	}
	for _, tt := range tests {
		got := PurityFactor(tt.purity)
		if !got.Equal(d(tt.want)) {
			t.Errorf("PurityFactor(%d) = %s, want %v", tt.purity, got, tt.want)
		}
	}
}

func TestPurityFactor_OneMeansFull(t *testing.T) {
	// 1 encodes 100% purity, not 0.1.
	if got := PurityFactor(1); !got.Equal(decimal.NewFromInt(1)) {
		t.Errorf("PurityFactor(1) = %s, want 1", got)
	}
}

func TestPurityFactor_NonPositive(t *testing.T) {
	for _, p := range []int64{0, -5} {
		if got := PurityFactor(p); !got.Equal(decimal.NewFromInt(1)) {
			t.Errorf("PurityFactor(%d) = %s, want 1", p, got)
		}
	}
}

// --- Pure gold weight tests ---

func TestPureGoldWeight_RoundsToThreeDecimals(t *testing.T) {
	// 0.9999 * 11.5 = 11.49885 → 11.499
	got := PureGoldWeight(9999, d(11.5))
	if !got.Equal(d(11.499)) {
		t.Errorf("PureGoldWeight(9999, 11.5) = %s, want 11.499", got)
	}
}

func TestPureGoldWeight_PurityOne(t *testing.T) {
	// purity=1 means 100%: 1 × 5 = 5.000, not 0.5.
	got := PureGoldWeight(1, d(5))
	if !got.Equal(d(5)) {
		t.Errorf("PureGoldWeight(1, 5) = %s, want 5", got)
	}
}

// --- ComputePrice tests ---

func TestComputePrice_BaselineScenario(t *testing.T) {
	// bid=2000, bidSpread=1, askSpread=1, no override, weight=10, purity=9999.
	// biddingPrice = 2002.5; per gram = 2002.5/31.103; ×10 ×0.9999 ×3.674
	// ≈ 2365.19 → displays 2365.
	quote := goldQuote(2000)
	spread := model.SpreadConfig{BidSpread: d(1), AskSpread: d(1)}
	product := model.Product{ID: "p1", Weight: d(10), Purity: 9999}

	exact := ComputePriceExact(quote, spread, nil, product)
	if exact.LessThan(d(2365.18)) || exact.GreaterThan(d(2365.20)) {
		t.Errorf("exact price = %s, want ≈2365.19", exact)
	}

	price := ComputePrice(quote, spread, nil, product)
	if !price.Equal(d(2365)) {
		t.Errorf("display price = %s, want 2365", price)
	}
}

func TestComputePrice_Deterministic(t *testing.T) {
	quote := goldQuote(2712.35)
	spread := model.SpreadConfig{BidSpread: d(2.5), AskSpread: d(1.25)}
	ov := &model.PriceOverride{
		AdjustmentType:  model.AdjustmentPremium,
		AdjustmentValue: d(3),
		ChargeValue:     d(25),
	}
	product := model.Product{ID: "p1", Weight: d(116.5), Purity: 995}

	first := ComputePrice(quote, spread, ov, product)
	for i := 0; i < 10; i++ {
		if got := ComputePrice(quote, spread, ov, product); !got.Equal(first) {
			t.Fatalf("run %d: price %s != %s", i, got, first)
		}
	}
}

func TestComputePrice_DiscountLowersPrice(t *testing.T) {
	quote := goldQuote(2000)
	spread := model.SpreadConfig{BidSpread: d(1), AskSpread: d(1)}
	product := model.Product{ID: "p1", Weight: d(10), Purity: 9999}

	base := ComputePriceExact(quote, spread, nil, product)
	discounted := ComputePriceExact(quote, spread, &model.PriceOverride{
		AdjustmentType:  model.AdjustmentDiscount,
		AdjustmentValue: d(5),
	}, product)

	if !discounted.LessThan(base) {
		t.Errorf("discounted %s should be strictly less than base %s", discounted, base)
	}
}

func TestComputePrice_DiscountUsesAbsoluteValue(t *testing.T) {
	quote := goldQuote(2000)
	spread := model.SpreadConfig{}
	product := model.Product{ID: "p1", Weight: d(10), Purity: 9999}

	pos := ComputePriceExact(quote, spread, &model.PriceOverride{
		AdjustmentType:  model.AdjustmentDiscount,
		AdjustmentValue: d(5),
	}, product)
	neg := ComputePriceExact(quote, spread, &model.PriceOverride{
		AdjustmentType:  model.AdjustmentDiscount,
		AdjustmentValue: d(-5),
	}, product)

	if !pos.Equal(neg) {
		t.Errorf("discount must subtract |value|: got %s vs %s", pos, neg)
	}
}

func TestComputePrice_PremiumRaisesPrice(t *testing.T) {
	quote := goldQuote(2000)
	spread := model.SpreadConfig{BidSpread: d(1), AskSpread: d(1)}
	product := model.Product{ID: "p1", Weight: d(10), Purity: 9999}

	base := ComputePriceExact(quote, spread, nil, product)
	premium := ComputePriceExact(quote, spread, &model.PriceOverride{
		AdjustmentType:  model.AdjustmentPremium,
		AdjustmentValue: d(5),
	}, product)

	if !premium.GreaterThan(base) {
		t.Errorf("premium %s should be strictly greater than base %s", premium, base)
	}
}

func TestComputePrice_MakingChargeIsFlat(t *testing.T) {
	quote := goldQuote(2000)
	spread := model.SpreadConfig{}
	product := model.Product{ID: "p1", Weight: d(10), Purity: 9999}

	base := ComputePriceExact(quote, spread, nil, product)
	charged := ComputePriceExact(quote, spread, &model.PriceOverride{
		AdjustmentType: model.AdjustmentPremium,
		ChargeValue:    d(40),
	}, product)

	if !charged.Sub(base).Equal(d(40)) {
		t.Errorf("making charge should add exactly 40: base=%s charged=%s", base, charged)
	}
}

func TestComputePrice_IncompleteInputsReturnZero(t *testing.T) {
	spread := model.SpreadConfig{BidSpread: d(1), AskSpread: d(1)}
	complete := model.Product{ID: "p1", Weight: d(10), Purity: 9999}

	tests := []struct {
		name    string
		quote   model.Quote
		product model.Product
	}{
		{"no quote", model.Quote{}, complete},
		{"zero weight", goldQuote(2000), model.Product{ID: "p1", Purity: 9999}},
		{"negative weight", goldQuote(2000), model.Product{ID: "p1", Weight: d(-1), Purity: 9999}},
		{"zero purity", goldQuote(2000), model.Product{ID: "p1", Weight: d(10)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputePrice(tt.quote, spread, nil, tt.product); !got.IsZero() {
				t.Errorf("expected 0 sentinel, got %s", got)
			}
		})
	}
}

// --- Rates derivation tests ---

func TestAskingPrice(t *testing.T) {
	quote := goldQuote(2000)
	spread := model.SpreadConfig{BidSpread: d(2), AskSpread: d(3)}

	if got := BiddingPrice(quote, spread); !got.Equal(d(2002)) {
		t.Errorf("bidding price = %s, want 2002", got)
	}
	// bidding + askSpread + 0.5
	if got := AskingPrice(quote, spread); !got.Equal(d(2005.5)) {
		t.Errorf("asking price = %s, want 2005.5", got)
	}
}

func TestDisplayRange(t *testing.T) {
	quote := model.Quote{Bid: d(2000), Low: d(1980), High: d(2020)}
	spread := model.SpreadConfig{LowMargin: d(-2), HighMargin: d(4)}

	low, high := DisplayRange(quote, spread)
	if !low.Equal(d(1978)) || !high.Equal(d(2024)) {
		t.Errorf("range = (%s, %s), want (1978, 2024)", low, high)
	}
}
