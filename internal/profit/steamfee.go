// Package profit joins normalized venue catalogs against Steam reference
// prices and surfaces ranked arbitrage opportunities, net of Steam's fee
// schedule.
package profit

import "math"

// Steam's fee schedule is a ladder of price intervals with a fee per
// interval. The ladder below 0.43 is fixed; above it the intervals extend
// by alternating steps of 0.12 and 0.11 and the fees by alternating 0.01
// and 0.02, selected by the parity of the current ladder length. This exact
// construction is required for bit-compatible results with existing data.
var (
	baseIntervals = []float64{0.02, 0.21, 0.32, 0.43}
	baseFees      = []float64{0.02, 0.03, 0.04, 0.05, 0.07, 0.09}
)

// NetPrice returns the amount a seller receives for a gross Steam sale
// price, both in USD. The result is clamped to [0, gross] and rounded to
// cents.
func NetPrice(gross float64) float64 {
	if gross <= 0 {
		return 0
	}

	intervals := append([]float64(nil), baseIntervals...)
	fees := append([]float64(nil), baseFees...)

	for gross > intervals[len(intervals)-1] {
		last := intervals[len(intervals)-1]
		if len(intervals)%2 == 0 {
			intervals = append(intervals, round2(last+0.12))
		} else {
			intervals = append(intervals, round2(last+0.11))
		}
	}
	for len(fees) < len(intervals) {
		last := fees[len(fees)-1]
		if len(fees)%2 == 0 {
			fees = append(fees, round2(last+0.01))
		} else {
			fees = append(fees, round2(last+0.02))
		}
	}

	idx := len(intervals) - 1
	for i, bound := range intervals {
		if gross <= bound {
			idx = i
			break
		}
	}

	net := round2(gross - fees[idx])
	if net < 0 {
		return 0
	}
	return net
}

// ProfitMargin returns the absolute and percentage profit of buying at
// buyPrice and selling at gross on Steam, net of fees.
func ProfitMargin(gross, buyPrice float64) (absolute, percentage float64) {
	net := NetPrice(gross)
	absolute = net - buyPrice
	if buyPrice > 0 {
		percentage = absolute / buyPrice
	}
	return absolute, percentage
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
