// Package gridmath implements the pure, deterministic, idempotent
// functions behind the grid: level placement, side assignment, and order
// sizing. Nothing here touches the venue, the journal, or a clock.
package gridmath

import (
	"fmt"
	"math"

	"gridbot/internal/core"
	apperrors "gridbot/pkg/errors"

	"github.com/shopspring/decimal"
)

// LevelPrice pairs a placement price with the side it should trade.
type LevelPrice struct {
	Price core.Decimal
	Side  core.Side
}

// Levels returns n price points between lower and upper inclusive.
// Arithmetic: p_i = lower + i*(upper-lower)/(n-1).
// Geometric:  p_i = lower*(upper/lower)^(i/(n-1)).
// p_0 = lower and p_(n-1) = upper exactly, for both spacings.
func Levels(lower, upper core.Decimal, n int, spacing core.Spacing) ([]core.Decimal, error) {
	if n < 2 {
		return nil, fmt.Errorf("gridmath: numLevels must be >= 2: %w", apperrors.ErrInvalidConfig)
	}
	if !lower.IsPositive() || !upper.GreaterThan(lower) {
		return nil, fmt.Errorf("gridmath: require 0 < lower < upper: %w", apperrors.ErrInvalidConfig)
	}

	out := make([]core.Decimal, n)
	out[0] = lower
	out[n-1] = upper

	denom := decimal.NewFromInt(int64(n - 1))

	switch spacing {
	case core.Arithmetic:
		step := upper.Sub(lower).Div(denom)
		for i := 1; i < n-1; i++ {
			out[i] = lower.Add(step.Mul(decimal.NewFromInt(int64(i))))
		}
	case core.Geometric:
		ratio := upper.Div(lower)
		ratioF, _ := ratio.Float64()
		for i := 1; i < n-1; i++ {
			exp := float64(i) / float64(n-1)
			factor := math.Pow(ratioF, exp)
			out[i] = lower.Mul(decimal.NewFromFloat(factor))
		}
	default:
		return nil, fmt.Errorf("gridmath: unknown spacing %q: %w", spacing, apperrors.ErrInvalidConfig)
	}

	return out, nil
}

// Sides assigns buy/sell to each level relative to a reference price:
// buy if price < ref, sell otherwise.
func Sides(levels []core.Decimal, ref core.Decimal) []LevelPrice {
	out := make([]LevelPrice, len(levels))
	for i, p := range levels {
		side := core.Sell
		if p.LessThan(ref) {
			side = core.Buy
		}
		out[i] = LevelPrice{Price: p, Side: side}
	}
	return out
}

// Amount returns sizeBase if set, else sizeQuote/price. Exactly one of
// sizeQuote/sizeBase must be a positive decimal.
func Amount(sizeQuote, sizeBase, price core.Decimal) (core.Decimal, error) {
	hasBase := sizeBase.IsPositive()
	hasQuote := sizeQuote.IsPositive()

	switch {
	case hasBase && hasQuote:
		return core.Decimal{}, fmt.Errorf("gridmath: exactly one of orderSizeQuote/orderSizeBase must be set: %w", apperrors.ErrInvalidConfig)
	case hasBase:
		return sizeBase, nil
	case hasQuote:
		if !price.IsPositive() {
			return core.Decimal{}, fmt.Errorf("gridmath: price must be positive to convert orderSizeQuote: %w", apperrors.ErrInvalidConfig)
		}
		return sizeQuote.Div(price), nil
	default:
		return core.Decimal{}, fmt.Errorf("gridmath: exactly one of orderSizeQuote/orderSizeBase must be set: %w", apperrors.ErrInvalidConfig)
	}
}
