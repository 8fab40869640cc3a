// Package fees implements the parabolic trading-fee formula and its inverse.
//
// The fee curve is feeBase * quantity * price * (1 - price) with price and
// feeBase expressed as microunit fractions. All arithmetic is fixed-point
// integer math: the three scaled terms are multiplied into a 128-bit
// intermediate so the ceiling of the exact rational result is reproduced
// bit-for-bit.
package fees

import (
	"math/bits"

	"github.com/rickgao/chaintrader/internal/model"
)

// Fee returns the trading fee in microunits for filling quantity at price
// under the market's feeBase rate.
//
//	fee = ceil(feeBase/1e6 * quantity * price/1e6 * (1 - price/1e6))
//
// Degenerate inputs (zero quantity or feeBase, price at 0 or certainty)
// cost nothing.
func Fee(quantity, price, feeBase int64) int64 {
	if quantity <= 0 || feeBase <= 0 || price <= 0 || price >= model.Unit {
		return 0
	}

	// price*(1e6-price) <= 2.5e11 and feeBase*quantity <= ~9.2e18, so each
	// factor fits in 64 bits; the product needs 128.
	curve := uint64(price) * uint64(model.Unit-price)
	scaled := uint64(feeBase) * uint64(quantity)

	hi, lo := bits.Mul64(curve, scaled)
	quo, rem := bits.Div64(hi, lo, scaleCubed)
	if rem > 0 {
		quo++
	}
	return int64(quo)
}

// scaleCubed is 1e6^3, the divisor that removes the three microunit scale
// factors from the intermediate product.
const scaleCubed = 1_000_000_000_000_000_000

// QuantityFromTotal inverts the funding equation
//
//	total = quantity*price/1e6 + Fee(quantity, price, feeBase)
//
// and returns the quantity a funding amount of total can purchase. The
// closed form is
//
//	quantity = total / (price/1e6 * (1 + feeBase/1e6*(1 - price/1e6)))
//
// When price is zero the denominator vanishes; the inversion is undefined
// and ok is false. Callers must treat that as an unusable degenerate state,
// not an exception.
func QuantityFromTotal(total, price, feeBase int64) (quantity int64, ok bool) {
	if price <= 0 || total <= 0 {
		return 0, price > 0
	}
	if feeBase < 0 {
		feeBase = 0
	}

	// denom = price * (1e12 + feeBase*(1e6-price)), at most ~2e18.
	denom := uint64(price) * (1_000_000_000_000 + uint64(feeBase)*uint64(model.Unit-price))

	hi, lo := bits.Mul64(uint64(total), scaleCubed)
	if hi >= denom {
		// Quotient would not fit in 64 bits; no realistic funding amount
		// reaches this, but it must not panic either.
		return 0, false
	}
	quo, _ := bits.Div64(hi, lo, denom)
	return int64(quo), true
}

// FeeFromTotal returns the fee embedded in a funding amount that already
// includes it. ok is false when price is zero (see QuantityFromTotal).
func FeeFromTotal(total, price, feeBase int64) (fee int64, ok bool) {
	quantity, ok := QuantityFromTotal(total, price, feeBase)
	if !ok {
		return 0, false
	}
	return Fee(quantity, price, feeBase), true
}
