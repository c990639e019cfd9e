// Package projection builds the explicit-period revenue and free cash flow
// forecast that the DCF discounts.
package projection

import (
	"equity_valuation/pkg/core/assumption"
	"equity_valuation/pkg/core/calc"
)

// Engine projects revenue and FCF from growth and margin assumptions.
// An Engine holds only configuration and is safe for concurrent use.
type Engine struct {
	schedule  DecaySchedule
	marginCap float64
	capped    bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithDecaySchedule replaces the default FlatDecay schedule.
func WithDecaySchedule(s DecaySchedule) Option {
	return func(e *Engine) {
		if s != nil {
			e.schedule = s
		}
	}
}

// WithMarginCap limits the FCF margin to limit. Without it margins expand
// without bound, which is kept as a stress-test property.
func WithMarginCap(limit float64) Option {
	return func(e *Engine) {
		e.marginCap = limit
		e.capped = true
	}
}

// NewEngine creates a projection engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{schedule: FlatDecay}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Project forecasts HorizonYears years.
//
//	Year 1:  Rev_1 = Rev_0 × (1 + g1),          m_1 = m0
//	Year t:  Rev_t = Rev_{t-1} × (1 + g(t)),    m_t = m_{t-1} + Δm
//	         FCF_t = Rev_t × m_t
func (e *Engine) Project(a assumption.Assumptions) (Series, error) {
	if err := a.Validate(); err != nil {
		return Series{}, err
	}

	years := make([]YearProjection, a.HorizonYears)
	revenue := a.CurrentRevenue
	margin := a.InitialFCFMargin
	growth := a.YearOneGrowth

	for i := range years {
		year := i + 1
		if year > 1 {
			growth = e.schedule(a.YearOneGrowth, a.GrowthDecayFactor, year)
			margin = e.clamp(margin + a.MarginExpansionPerYear)
		} else {
			margin = e.clamp(margin)
		}
		revenue = calc.ProjectFromGrowth(revenue, growth)
		fcf := calc.ProjectFromRatio(revenue, margin)

		if !assumption.IsFinite(fcf) {
			return Series{}, assumption.Invalid("free_cash_flow", fcf, "finite")
		}

		years[i] = YearProjection{
			Year:         year,
			Revenue:      revenue,
			Growth:       growth,
			Margin:       margin,
			FreeCashFlow: fcf,
		}
	}

	return Series{years: years}, nil
}

func (e *Engine) clamp(margin float64) float64 {
	if e.capped && margin > e.marginCap {
		return e.marginCap
	}
	return margin
}
