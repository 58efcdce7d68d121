package gridmath

import (
	"testing"

	"gridbot/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelsArithmeticEndpointsAndMonotonic(t *testing.T) {
	lower := decimal.NewFromInt(55000)
	upper := decimal.NewFromInt(65000)

	levels, err := Levels(lower, upper, 5, core.Arithmetic)
	require.NoError(t, err)
	require.Len(t, levels, 5)

	assert.True(t, levels[0].Equal(lower))
	assert.True(t, levels[len(levels)-1].Equal(upper))

	for i := 1; i < len(levels); i++ {
		assert.True(t, levels[i].GreaterThan(levels[i-1]), "levels must be strictly increasing")
	}
}

func TestLevelsGeometricEndpointsConstantRatio(t *testing.T) {
	lower := decimal.NewFromInt(100)
	upper := decimal.NewFromInt(200)

	levels, err := Levels(lower, upper, 5, core.Geometric)
	require.NoError(t, err)

	assert.True(t, levels[0].Equal(lower))
	assert.True(t, levels[len(levels)-1].Equal(upper))

	ratio := levels[1].Div(levels[0])
	for i := 2; i < len(levels); i++ {
		r := levels[i].Div(levels[i-1])
		diff := r.Sub(ratio).Abs()
		assert.True(t, diff.LessThan(decimal.NewFromFloat(1e-6)), "ratio between consecutive levels must be constant")
	}
}

func TestLevelsRejectsBadBounds(t *testing.T) {
	_, err := Levels(decimal.NewFromInt(10), decimal.NewFromInt(5), 5, core.Arithmetic)
	require.Error(t, err)

	_, err = Levels(decimal.NewFromInt(10), decimal.NewFromInt(20), 1, core.Arithmetic)
	require.Error(t, err)
}

func TestSidesAssignsBuySellAroundReference(t *testing.T) {
	levels := []core.Decimal{
		decimal.NewFromInt(90),
		decimal.NewFromInt(100),
		decimal.NewFromInt(110),
	}
	ref := decimal.NewFromInt(100)

	sides := Sides(levels, ref)
	require.Len(t, sides, 3)
	assert.Equal(t, core.Buy, sides[0].Side)
	assert.Equal(t, core.Sell, sides[1].Side) // not strictly less than ref => sell
	assert.Equal(t, core.Sell, sides[2].Side)
}

func TestAmountUsesBaseWhenSet(t *testing.T) {
	amt, err := Amount(decimal.Zero, decimal.NewFromFloat(0.5), decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.True(t, amt.Equal(decimal.NewFromFloat(0.5)))
}

func TestAmountDerivesFromQuote(t *testing.T) {
	amt, err := Amount(decimal.NewFromInt(100), decimal.Zero, decimal.NewFromInt(50))
	require.NoError(t, err)
	assert.True(t, amt.Equal(decimal.NewFromInt(2)))
}

func TestAmountRejectsBothOrNeitherSet(t *testing.T) {
	_, err := Amount(decimal.Zero, decimal.Zero, decimal.NewFromInt(50))
	require.Error(t, err)

	_, err = Amount(decimal.NewFromInt(100), decimal.NewFromFloat(0.5), decimal.NewFromInt(50))
	require.Error(t, err)
}
