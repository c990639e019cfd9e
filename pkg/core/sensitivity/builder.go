// Package sensitivity sweeps the DCF pipeline over a WACC × terminal growth grid.
package sensitivity

import (
	"context"
	"runtime"

	"equity_valuation/pkg/core/assumption"
	"equity_valuation/pkg/core/valuation"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Builder runs sweeps. It holds no per-sweep state and may be reused.
type Builder struct {
	pipeline *valuation.Pipeline
	workers  int
	scale    float64
	log      zerolog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithWorkers bounds the number of cells computed at once. n < 1 means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(b *Builder) { b.workers = n }
}

// WithScale sets the divisor applied to enterprise values read from the
// matrix (1000 turns millions into billions).
func WithScale(divisor float64) Option {
	return func(b *Builder) { b.scale = divisor }
}

// WithLogger attaches a logger.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Builder) { b.log = l }
}

// NewBuilder creates a grid builder on top of p.
func NewBuilder(p *valuation.Pipeline, opts ...Option) *Builder {
	b := &Builder{pipeline: p, scale: 1, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(b)
	}
	if b.pipeline == nil {
		b.pipeline = valuation.NewPipeline()
	}
	if b.workers < 1 {
		b.workers = runtime.GOMAXPROCS(0)
	}
	return b
}

// Build values base once per (wacc, terminal growth) pair. Rows follow waccs,
// columns follow growths, both in caller order.
//
// A cell that fails (wacc <= g, overflow, range policy) is kept with its error
// and the sweep carries on. Build itself fails only for empty axes, an invalid
// scale, shared assumptions that no cell could satisfy, or ctx cancellation,
// and then returns no matrix at all.
func (b *Builder) Build(ctx context.Context, waccs, growths []float64, base assumption.Assumptions) (*Matrix, error) {
	if len(waccs) == 0 {
		return nil, assumption.Invalid("waccs", 0, "min=1")
	}
	if len(growths) == 0 {
		return nil, assumption.Invalid("terminal_growths", 0, "min=1")
	}
	if !assumption.IsFinite(b.scale) || b.scale <= 0 {
		return nil, assumption.Invalid("scale", b.scale, "gt=0")
	}
	if err := base.ValidateShared(); err != nil {
		return nil, err
	}

	rows, cols := len(waccs), len(growths)
	cells := make([]Cell, rows*cols)

	b.log.Debug().
		Int("rows", rows).
		Int("cols", cols).
		Int("workers", b.workers).
		Msg("sensitivity sweep started")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)

sweep:
	for r, w := range waccs {
		for c, tg := range growths {
			if gctx.Err() != nil {
				break sweep
			}
			slot := &cells[r*cols+c]
			w, tg := w, tg
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				*slot = b.cell(base, w, tg)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := &Matrix{
		waccs:   append([]float64(nil), waccs...),
		growths: append([]float64(nil), growths...),
		cells:   cells,
		scale:   b.scale,
	}

	b.log.Debug().
		Int("cells", len(cells)).
		Int("invalid", len(m.InvalidCells())).
		Msg("sensitivity sweep finished")
	return m, nil
}

func (b *Builder) cell(base assumption.Assumptions, wacc, growth float64) Cell {
	res, err := b.pipeline.Run(base.WithRates(wacc, growth))
	return Cell{WACC: wacc, TerminalGrowth: growth, Result: res, Err: err}
}
