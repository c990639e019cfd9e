// Package assumption defines the forecast inputs that drive every DCF run.
// An Assumptions value is passed by value and never mutated by the engine;
// sweeps derive per-cell copies with WithRates.
package assumption

import (
	"fmt"
	"strings"
)

// =============================================================================
// FORECAST ASSUMPTIONS
// =============================================================================

// Assumptions holds the inputs for one projection + discount run.
// All rates are decimals (0.105 = 10.5%). CurrentRevenue is the last actual
// revenue figure; the first projected year is CurrentRevenue × (1 + YearOneGrowth).
type Assumptions struct {
	CurrentRevenue         float64 `json:"current_revenue" yaml:"current_revenue" validate:"finite"`
	YearOneGrowth          float64 `json:"year_one_growth" yaml:"year_one_growth" validate:"finite"`
	GrowthDecayFactor      float64 `json:"growth_decay_factor" yaml:"growth_decay_factor" validate:"finite"`
	InitialFCFMargin       float64 `json:"initial_fcf_margin" yaml:"initial_fcf_margin" validate:"finite"`
	MarginExpansionPerYear float64 `json:"margin_expansion_per_year" yaml:"margin_expansion_per_year" validate:"finite"`
	TerminalGrowth         float64 `json:"terminal_growth" yaml:"terminal_growth" validate:"finite"`
	WACC                   float64 `json:"wacc" yaml:"wacc" validate:"finite,gt=-1,gtfield=TerminalGrowth"`
	HorizonYears           int     `json:"horizon_years" yaml:"horizon_years" validate:"min=1"`
}

// Validate checks every invariant, including WACC > TerminalGrowth.
// The returned error is an *Error of kind ErrInvalidAssumption.
func (a Assumptions) Validate() error {
	return ValidateStruct(a)
}

// ValidateShared checks everything except the WACC / terminal growth pair.
// Sensitivity sweeps replace both rates per cell, so only the remaining fields
// can invalidate a whole sweep.
func (a Assumptions) ValidateShared() error {
	return a.WithRates(1, 0).Validate()
}

// WithRates returns a copy with the discount rate and terminal growth replaced.
func (a Assumptions) WithRates(wacc, terminalGrowth float64) Assumptions {
	a.WACC = wacc
	a.TerminalGrowth = terminalGrowth
	return a
}

// =============================================================================
// SCENARIO PRESETS
// =============================================================================

// ScenarioName identifies one of the named assumption presets.
type ScenarioName string

const (
	Bear ScenarioName = "bear"
	Base ScenarioName = "base"
	Bull ScenarioName = "bull"
)

// ScenarioOrder is the canonical evaluation and reporting order.
// Downstream monotonicity checks rely on it.
var ScenarioOrder = [...]ScenarioName{Bear, Base, Bull}

// ParseScenarioName accepts a case-insensitive bear/base/bull name.
func ParseScenarioName(s string) (ScenarioName, error) {
	name := ScenarioName(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ScenarioOrder {
		if name == known {
			return name, nil
		}
	}
	return "", &Error{Kind: ErrInvalidAssumption, Field: "scenario", Rule: fmt.Sprintf("oneof=bear base bull (got %q)", s)}
}

// Presets maps each scenario to its assumptions.
type Presets map[ScenarioName]Assumptions

// Validate requires exactly the bear, base and bull presets, keyed in
// lowercase, each valid.
func (p Presets) Validate() error {
	for name := range p {
		canonical, err := ParseScenarioName(string(name))
		if err != nil {
			return err
		}
		// Map keys are matched exactly, so "Bear" would never be found.
		if canonical != name {
			return &Error{Kind: ErrInvalidAssumption, Field: "scenario", Rule: fmt.Sprintf("lowercase key %q, got %q", canonical, name)}
		}
	}
	for _, name := range ScenarioOrder {
		a, ok := p[name]
		if !ok {
			return &Error{Kind: ErrInvalidAssumption, Field: "scenario." + string(name), Rule: "required"}
		}
		if err := a.Validate(); err != nil {
			return fmt.Errorf("scenario %s: %w", name, err)
		}
	}
	return nil
}
