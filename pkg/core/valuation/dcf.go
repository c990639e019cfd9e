package valuation

import (
	"equity_valuation/pkg/core/assumption"
	"equity_valuation/pkg/core/calc"
	"equity_valuation/pkg/core/projection"

	"github.com/rs/zerolog"
)

// Result holds the DCF outputs of one pipeline run.
type Result struct {
	EnterpriseValue float64 `json:"enterprise_value"`
	PVExplicitFCF   float64 `json:"pv_explicit_fcf"`
	PVTerminal      float64 `json:"pv_terminal"`
	TerminalValue   float64 `json:"terminal_value"`
}

// Discount converts a projection and its terminal value into present value.
//
//	PV_FCF      = Σ FCF_t / (1 + WACC)^t,  t = 1..N
//	PV_Terminal = TV / (1 + WACC)^N
//	EV          = PV_FCF + PV_Terminal
func Discount(series projection.Series, terminalValue, wacc float64) (Result, error) {
	if series.Len() == 0 {
		return Result{}, assumption.Invalid("horizon_years", 0, "min=1")
	}
	if !assumption.IsFinite(wacc) || wacc <= -1 {
		return Result{}, assumption.Invalid("wacc", wacc, "gt=-1")
	}
	if !assumption.IsFinite(terminalValue) {
		return Result{}, assumption.Invalid("terminal_value", terminalValue, "finite")
	}

	pvFCF := calc.PresentValueOfCashFlows(series.FreeCashFlows(), wacc)
	pvTerminal := calc.PresentValue(terminalValue, wacc, series.Len())
	ev := pvFCF + pvTerminal

	if !assumption.IsFinite(ev) {
		return Result{}, assumption.Invalid("enterprise_value", ev, "finite")
	}

	return Result{
		EnterpriseValue: ev,
		PVExplicitFCF:   pvFCF,
		PVTerminal:      pvTerminal,
		TerminalValue:   terminalValue,
	}, nil
}

// =============================================================================
// PIPELINE
// =============================================================================

// Pipeline chains projection → terminal value → discounting.
// It keeps no per-run state and may be shared across goroutines.
type Pipeline struct {
	projector *projection.Engine
	policy    *assumption.RangePolicy
	log       zerolog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithProjector sets the projection engine (default: flat decay, uncapped).
func WithProjector(e *projection.Engine) PipelineOption {
	return func(p *Pipeline) { p.projector = e }
}

// WithRangePolicy enables the stricter ErrOutOfRange checks.
func WithRangePolicy(policy assumption.RangePolicy) PipelineOption {
	return func(p *Pipeline) { p.policy = &policy }
}

// WithLogger attaches a logger; the default discards everything.
func WithLogger(l zerolog.Logger) PipelineOption {
	return func(p *Pipeline) { p.log = l }
}

// NewPipeline creates a DCF pipeline.
func NewPipeline(opts ...PipelineOption) *Pipeline {
	p := &Pipeline{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(p)
	}
	if p.projector == nil {
		p.projector = projection.NewEngine()
	}
	return p
}

// Run values one set of assumptions.
func (p *Pipeline) Run(a assumption.Assumptions) (Result, error) {
	_, res, err := p.RunDetailed(a)
	return res, err
}

// RunDetailed is Run that also returns the explicit-period projection.
func (p *Pipeline) RunDetailed(a assumption.Assumptions) (projection.Series, Result, error) {
	if p.policy != nil {
		if err := p.policy.Check(a); err != nil {
			return projection.Series{}, Result{}, err
		}
	}

	series, err := p.projector.Project(a)
	if err != nil {
		return projection.Series{}, Result{}, err
	}

	tv, err := TerminalValue(series.Final().FreeCashFlow, a.TerminalGrowth, a.WACC)
	if err != nil {
		return projection.Series{}, Result{}, err
	}

	res, err := Discount(series, tv, a.WACC)
	if err != nil {
		return projection.Series{}, Result{}, err
	}
	return series, res, nil
}
