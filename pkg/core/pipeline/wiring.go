package pipeline

import (
	"fmt"

	"equity_valuation/pkg/core/config"
	"equity_valuation/pkg/core/projection"
	"equity_valuation/pkg/core/sensitivity"
	"equity_valuation/pkg/core/valuation"

	"github.com/rs/zerolog"
)

// NewFromConfig builds an orchestrator whose projection, range policy and
// grid settings come from cfg. Cases are read from cfg.CasesDir until the
// caller sets another source.
func NewFromConfig(cfg *config.Config, log zerolog.Logger) (*Orchestrator, error) {
	projOpts, err := cfg.ProjectionOptions()
	if err != nil {
		return nil, fmt.Errorf("projection config: %w", err)
	}

	pipeOpts := []valuation.PipelineOption{
		valuation.WithProjector(projection.NewEngine(projOpts...)),
		valuation.WithLogger(log),
	}
	if policy := cfg.RangePolicy(); policy != nil {
		pipeOpts = append(pipeOpts, valuation.WithRangePolicy(*policy))
	}
	p := valuation.NewPipeline(pipeOpts...)

	grid := sensitivity.NewBuilder(p,
		sensitivity.WithWorkers(cfg.Grid.Workers),
		sensitivity.WithScale(cfg.Grid.Scale),
		sensitivity.WithLogger(log),
	)

	o := NewOrchestrator(p, grid, log)
	o.SetCaseSource(FileCaseSource{Dir: cfg.CasesDir})
	return o, nil
}
