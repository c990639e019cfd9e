// Package calc provides deterministic time-value-of-money primitives.
// Functions here are pure and perform no validation beyond what the
// formulas need; callers validate inputs before arithmetic.
package calc

import (
	"math"
)

// =============================================================================
// DISCOUNTING
// =============================================================================

// DiscountFactor returns the compounding divisor for a cash flow at the end of
// the given period.
//
// FORMULA: DF_t = (1 + r)^t
func DiscountFactor(discountRate float64, period int) float64 {
	return math.Pow(1+discountRate, float64(period))
}

// PresentValue calculates PV of a single cash flow.
//
// FORMULA: PV = CF / (1 + r)^t
func PresentValue(cashFlow, discountRate float64, period int) float64 {
	return cashFlow / DiscountFactor(discountRate, period)
}

// PresentValueOfCashFlows calculates PV of a series of cash flows.
//
// FORMULA: PV = Σ [ CF_t / (1 + r)^t ]
//
// Cash flows are assumed to be at the end of each period (ordinary annuity),
// the first element being period 1. Summation runs in period order so results
// are reproducible bit-for-bit.
func PresentValueOfCashFlows(cashFlows []float64, discountRate float64) float64 {
	var pv float64
	for t, cf := range cashFlows {
		pv += PresentValue(cf, discountRate, t+1)
	}
	return pv
}

// =============================================================================
// TERMINAL VALUE
// =============================================================================

// GordonGrowth values a perpetuity that starts one period after finalCashFlow
// and grows at growthRate.
//
// FORMULA: TV = CF_N × (1 + g) / (r - g)
//
// Where:
//   - CF_N = cash flow of the final explicit year
//   - r = discount rate (WACC)
//   - g = perpetual growth rate (must be < r)
//
// ok is false when r <= g; the perpetuity diverges and no value is returned.
func GordonGrowth(finalCashFlow, discountRate, growthRate float64) (value float64, ok bool) {
	if discountRate <= growthRate {
		return 0, false
	}
	return finalCashFlow * (1 + growthRate) / (discountRate - growthRate), true
}

// =============================================================================
// GROWTH
// =============================================================================

// ProjectFromGrowth calculates projected amount from prior period growth.
//
// FORMULA: Amount_t = Amount_{t-1} × (1 + Growth_t)
func ProjectFromGrowth(priorAmount, growthRate float64) float64 {
	return priorAmount * (1 + growthRate)
}

// ProjectFromRatio calculates projected amount from a ratio of revenue.
//
// FORMULA: Amount = Revenue × Ratio
//
// Used for free cash flow = revenue × FCF margin.
func ProjectFromRatio(revenue, ratio float64) float64 {
	return revenue * ratio
}
