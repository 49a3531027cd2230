package profit

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetPriceLadder(t *testing.T) {
	cases := []struct {
		gross float64
		net   float64
	}{
		{0.01, 0.00},
		{0.02, 0.00},
		{0.10, 0.07},
		{0.21, 0.18},
		{0.25, 0.21},
		{0.43, 0.38},
		{0.50, 0.43},
		{1.00, 0.87},
		{2.50, 2.17},
		{5.00, 4.34},
		{10.00, 8.68},
		{20.00, 17.38},
		{37.83, 32.88},
		{45.50, 39.56},
		{50.00, 43.48},
		{100.00, 86.95},
		{250.00, 217.38},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("gross_%.2f", tc.gross), func(t *testing.T) {
			assert.InDelta(t, tc.net, NetPrice(tc.gross), 0.005)
		})
	}
}

func TestNetPriceBounds(t *testing.T) {
	// Sweep the whole tested range: the seller never receives more than
	// gross and never a negative amount.
	for cents := 1; cents <= 50000; cents++ {
		gross := float64(cents) / 100.0
		net := NetPrice(gross)
		require.GreaterOrEqual(t, net, 0.0, "gross %.2f", gross)
		require.LessOrEqual(t, net, gross+1e-9, "gross %.2f", gross)
	}
}

func TestNetPriceZeroAndNegative(t *testing.T) {
	assert.Zero(t, NetPrice(0))
	assert.Zero(t, NetPrice(-1.50))
}

func TestProfitMargin(t *testing.T) {
	// Buy at 37.83, sell at 45.50 gross: the seller nets 39.56, a 1.73
	// absolute edge of about 4.6%.
	abs, pct := ProfitMargin(45.50, 37.83)
	assert.InDelta(t, 1.73, abs, 0.005)
	assert.InDelta(t, 0.046, pct, 0.001)

	abs, pct = ProfitMargin(1.00, 2.00)
	assert.InDelta(t, -1.13, abs, 0.005)
	assert.Less(t, pct, 0.0)

	_, pct = ProfitMargin(1.00, 0)
	assert.Zero(t, pct)
}
