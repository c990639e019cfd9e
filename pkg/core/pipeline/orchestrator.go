// Package pipeline runs a complete valuation case: scenarios, comparables,
// the football-field report and the sensitivity grid.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"equity_valuation/pkg/core/assumption"
	"equity_valuation/pkg/core/projection"
	"equity_valuation/pkg/core/sensitivity"
	"equity_valuation/pkg/core/valuation"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Outcome is the plain-data result of one case run.
type Outcome struct {
	RunID                  string                         `json:"run_id"`
	Case                   string                         `json:"case"`
	Currency               string                         `json:"currency,omitempty"`
	CostOfCapital          *valuation.CostOfCapitalResult `json:"cost_of_capital,omitempty"`
	Scenarios              []valuation.ScenarioResult     `json:"scenarios"`
	ScenariosMonotonic     bool                           `json:"scenarios_monotonic"`
	BaseProjection         []projection.YearProjection    `json:"base_projection"`
	Comparables            []valuation.ValuationRange     `json:"comparables"`
	Report                 *valuation.Report              `json:"report"`
	ImpliedRevenueMultiple *float64                       `json:"implied_revenue_multiple,omitempty"`
	Sensitivity            *sensitivity.Snapshot          `json:"sensitivity,omitempty"`
}

// Orchestrator wires the engine components together for whole cases.
type Orchestrator struct {
	pipeline *valuation.Pipeline
	grid     *sensitivity.Builder
	source   CaseSource
	log      zerolog.Logger
}

// NewOrchestrator creates an orchestrator. A nil grid builder gets one that
// shares p.
func NewOrchestrator(p *valuation.Pipeline, grid *sensitivity.Builder, log zerolog.Logger) *Orchestrator {
	if p == nil {
		p = valuation.NewPipeline(valuation.WithLogger(log))
	}
	if grid == nil {
		grid = sensitivity.NewBuilder(p, sensitivity.WithLogger(log))
	}
	return &Orchestrator{pipeline: p, grid: grid, log: log}
}

// SetCaseSource sets where RunNamed looks cases up.
func (o *Orchestrator) SetCaseSource(src CaseSource) {
	o.source = src
}

// LoadCase fetches a case from the configured source.
func (o *Orchestrator) LoadCase(ctx context.Context, name string) (*Case, error) {
	if o.source == nil {
		return nil, fmt.Errorf("%w: %s (no case source configured)", ErrCaseNotFound, name)
	}
	return o.source.LoadCase(ctx, name)
}

// RunNamed loads a case by name and runs it.
func (o *Orchestrator) RunNamed(ctx context.Context, name string) (*Outcome, error) {
	c, err := o.LoadCase(ctx, name)
	if err != nil {
		return nil, err
	}
	return o.Run(ctx, c)
}

// Run values a case. The grid is only computed when the case asks for one.
func (o *Orchestrator) Run(ctx context.Context, c *Case) (*Outcome, error) {
	start := time.Now()
	if err := c.Validate(); err != nil {
		return nil, err
	}

	out := &Outcome{RunID: uuid.NewString(), Case: c.Name, Currency: c.Currency}
	log := o.log.With().Str("run_id", out.RunID).Str("case", c.Name).Logger()

	presets, coc, err := resolvePresets(c)
	if err != nil {
		return nil, err
	}
	out.CostOfCapital = coc

	// 1. Scenarios
	scenarios, err := o.pipeline.RunScenarios(presets)
	if err != nil {
		return nil, err
	}
	out.Scenarios = scenarios.Entries()
	out.ScenariosMonotonic = scenarios.Monotonic()
	if !out.ScenariosMonotonic {
		log.Warn().Msg("scenario enterprise values are not ordered bear <= base <= bull")
	}

	series, _, err := o.pipeline.RunDetailed(presets[assumption.Base])
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", assumption.Base, err)
	}
	out.BaseProjection = series.Years()

	// 2. Comparables
	comps, err := valuation.ApplyComparables(c.Metrics, c.Comparables)
	if err != nil {
		return nil, err
	}
	out.Comparables = comps

	// 3. Football field
	report, err := valuation.Aggregate(scenarios, comps, c.SharesOutstanding)
	if err != nil {
		return nil, err
	}
	out.Report = report
	if c.Metrics.Revenue > 0 {
		if m, err := report.ImpliedRevenueMultiple(c.Metrics.Revenue); err == nil {
			out.ImpliedRevenueMultiple = &m
		}
	}

	// 4. Sensitivity
	if c.Sensitivity != nil {
		m, err := o.sweep(ctx, *c.Sensitivity, presets)
		if err != nil {
			return nil, err
		}
		snap := m.Snapshot()
		out.Sensitivity = &snap
	}

	log.Info().
		Float64("base_ev", report.BaseEnterpriseValue).
		Float64("share_price", report.ImpliedSharePrice).
		Int("ranges", len(report.Ranges)).
		Dur("elapsed", time.Since(start)).
		Msg("valuation case complete")
	return out, nil
}

// Sensitivity builds only the grid for a case, using DefaultSweep around the
// base scenario when the case has no sweep of its own.
func (o *Orchestrator) Sensitivity(ctx context.Context, c *Case) (*sensitivity.Matrix, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	presets, _, err := resolvePresets(c)
	if err != nil {
		return nil, err
	}
	if err := presets.Validate(); err != nil {
		return nil, err
	}
	spec := DefaultSweep(presets[assumption.Base])
	if c.Sensitivity != nil {
		spec = *c.Sensitivity
	}
	return o.sweep(ctx, spec, presets)
}

func (o *Orchestrator) sweep(ctx context.Context, spec SweepSpec, presets assumption.Presets) (*sensitivity.Matrix, error) {
	name := spec.Scenario
	if name == "" {
		name = assumption.Base
	}
	base, ok := presets[name]
	if !ok {
		return nil, &assumption.Error{Kind: assumption.ErrInvalidAssumption, Field: "scenario." + string(name), Rule: "required"}
	}
	m, err := o.grid.Build(ctx, spec.WACC.Resolve(), spec.TerminalGrowth.Resolve(), base)
	if err != nil {
		return nil, fmt.Errorf("sensitivity on %s: %w", name, err)
	}
	return m, nil
}

// resolvePresets fills a zero WACC in any preset from the case's cost of
// capital block, when it has one. The case itself is left untouched.
func resolvePresets(c *Case) (assumption.Presets, *valuation.CostOfCapitalResult, error) {
	presets := make(assumption.Presets, len(c.Scenarios))
	for name, a := range c.Scenarios {
		presets[name] = a
	}
	if c.CostOfCapital == nil {
		return presets, nil, nil
	}

	coc, err := valuation.CostOfCapital(*c.CostOfCapital)
	if err != nil {
		return nil, nil, fmt.Errorf("cost of capital: %w", err)
	}
	for name, a := range presets {
		if a.WACC == 0 {
			a.WACC = coc.WACC
			presets[name] = a
		}
	}
	return presets, &coc, nil
}
