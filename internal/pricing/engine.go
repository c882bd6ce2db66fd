// Package pricing implements the deterministic gold price formula: a live
// market bid plus admin-configured spreads, an optional per-category or
// per-user premium/discount, troy-ounce-to-gram conversion, the legacy
// digit-count purity encoding, and a flat making charge.
//
// All monetary values use shopspring/decimal — never float64 for money.
// The computation order is fixed; reordering or rounding intermediates
// changes the result.
package pricing

import (
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/goldsouk/bullion-engine/internal/model"
)

var (
	// TroyOunceGrams converts a per-troy-ounce quote to per-gram.
	TroyOunceGrams = decimal.NewFromFloat(31.103)

	// ConversionFactor is the fixed USD-to-AED conversion applied after
	// the weight/purity multiplication.
	ConversionFactor = decimal.NewFromFloat(3.674)

	// AskMarkup is the fixed half-unit markup baked into the asking-price
	// derivation.
	AskMarkup = decimal.NewFromFloat(0.5)

	// GoldWeightScale is the decimal precision for gold-gram amounts.
	GoldWeightScale int32 = 3
)

// PurityFactor converts the legacy integer purity encoding to a fraction.
// The digit count of the integer determines the divisor: 9999 → 0.9999,
// 750 → 0.750. Purity 1 is an explicit special case meaning 100%
// (factor 1, not 0.1). Non-positive purity yields factor 1.
func PurityFactor(purity int64) decimal.Decimal {
	if purity <= 0 || purity == 1 {
		return decimal.NewFromInt(1)
	}
	digits := int32(len(strconv.FormatInt(purity, 10)))
	return decimal.NewFromInt(purity).Shift(-digits)
}

// PureGoldWeight derives the gold-gram amount for a weight+purity pair,
// rounded to three decimal places. This is the signed amount fed to the
// ledger when an adjustment is entered as metal rather than grams.
func PureGoldWeight(purity int64, weight decimal.Decimal) decimal.Decimal {
	return PurityFactor(purity).Mul(weight).Round(GoldWeightScale)
}

// ComputePrice returns the displayed unit price, rounded to the nearest
// whole currency unit. A zero result is the designed "not yet computable"
// sentinel, not an error: it means the quote has not loaded or the product
// is missing weight/purity.
func ComputePrice(quote model.Quote, spread model.SpreadConfig, override *model.PriceOverride, product model.Product) decimal.Decimal {
	return ComputePriceExact(quote, spread, override, product).Round(0)
}

// ComputePriceExact is ComputePrice without the final display rounding.
func ComputePriceExact(quote model.Quote, spread model.SpreadConfig, override *model.PriceOverride, product model.Product) decimal.Decimal {
	if quote.Bid.IsZero() || product.Purity <= 0 || !product.Weight.IsPositive() {
		return decimal.Zero
	}

	// bid + bidSpread + askSpread + 0.5
	biddingPrice := quote.Bid.Add(spread.BidSpread).Add(spread.AskSpread).Add(AskMarkup)

	adjustedBid := biddingPrice
	if override != nil {
		if override.AdjustmentType == model.AdjustmentDiscount {
			adjustedBid = adjustedBid.Sub(override.AdjustmentValue.Abs())
		} else {
			adjustedBid = adjustedBid.Add(override.AdjustmentValue)
		}
	}

	pricePerGram := adjustedBid.Div(TroyOunceGrams)

	basePrice := pricePerGram.
		Mul(product.Weight).
		Mul(PurityFactor(product.Purity)).
		Mul(ConversionFactor)

	if override != nil {
		return basePrice.Add(override.ChargeValue)
	}
	return basePrice
}

// BiddingPrice is the spread-adjusted customer bid for one owner.
func BiddingPrice(quote model.Quote, spread model.SpreadConfig) decimal.Decimal {
	return quote.Bid.Add(spread.BidSpread)
}

// AskingPrice derives the customer ask from the bidding price:
// biddingPrice + askSpread + 0.5.
func AskingPrice(quote model.Quote, spread model.SpreadConfig) decimal.Decimal {
	return BiddingPrice(quote, spread).Add(spread.AskSpread).Add(AskMarkup)
}

// DisplayRange applies the configured low/high margins to the session
// low/high of the quote.
func DisplayRange(quote model.Quote, spread model.SpreadConfig) (low, high decimal.Decimal) {
	return quote.Low.Add(spread.LowMargin), quote.High.Add(spread.HighMargin)
}
