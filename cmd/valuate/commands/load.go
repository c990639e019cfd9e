package commands

import (
	"context"
	"os"

	"equity_valuation/pkg/core/pipeline"
)

// loadCase treats arg as a file path when one exists, otherwise as a case
// name for the configured source.
func loadCase(ctx context.Context, arg string) (*pipeline.Case, error) {
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		return pipeline.LoadCaseFile(arg)
	}
	return orch.LoadCase(ctx, arg)
}
