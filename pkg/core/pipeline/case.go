package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"equity_valuation/pkg/core/assumption"
	"equity_valuation/pkg/core/sensitivity"
	"equity_valuation/pkg/core/utils"
	"equity_valuation/pkg/core/valuation"

	"gopkg.in/yaml.v2"
)

// ErrCaseNotFound is returned by a CaseSource that has no case of that name.
var ErrCaseNotFound = errors.New("valuation case not found")

// ErrInvalidCaseName is returned for names that are empty or could escape
// the case directory.
var ErrInvalidCaseName = errors.New("invalid case name")

// Case bundles everything needed to value one company.
type Case struct {
	Name              string                         `json:"name" yaml:"name"`
	Currency          string                         `json:"currency,omitempty" yaml:"currency"`
	Metrics           valuation.CompanyMetrics       `json:"metrics" yaml:"metrics"`
	SharesOutstanding float64                        `json:"shares_outstanding" yaml:"shares_outstanding"`
	CostOfCapital     *valuation.CostOfCapitalInput  `json:"cost_of_capital,omitempty" yaml:"cost_of_capital"`
	Scenarios         assumption.Presets             `json:"scenarios" yaml:"scenarios"`
	Comparables       []valuation.ComparableMultiple `json:"comparables,omitempty" yaml:"comparables"`
	Sensitivity       *SweepSpec                     `json:"sensitivity,omitempty" yaml:"sensitivity"`
}

// SweepSpec picks the scenario a sensitivity grid is centred on and its axes.
type SweepSpec struct {
	Scenario       assumption.ScenarioName `json:"scenario,omitempty" yaml:"scenario"`
	WACC           AxisSpec                `json:"wacc" yaml:"wacc"`
	TerminalGrowth AxisSpec                `json:"terminal_growth" yaml:"terminal_growth"`
}

// AxisSpec lists axis values explicitly, or as Steps evenly spaced points
// from From to To inclusive.
type AxisSpec struct {
	Values []float64 `json:"values,omitempty" yaml:"values"`
	From   float64   `json:"from,omitempty" yaml:"from"`
	To     float64   `json:"to,omitempty" yaml:"to"`
	Steps  int       `json:"steps,omitempty" yaml:"steps"`
}

// Resolve returns the axis values; explicit Values win over a range.
func (a AxisSpec) Resolve() []float64 {
	if len(a.Values) > 0 {
		return append([]float64(nil), a.Values...)
	}
	return sensitivity.Linspace(a.From, a.To, a.Steps)
}

// DefaultSweep centres a 5×5 grid on base: WACC ±2 points, terminal growth
// ±1 point.
func DefaultSweep(base assumption.Assumptions) SweepSpec {
	return SweepSpec{
		Scenario:       assumption.Base,
		WACC:           AxisSpec{From: base.WACC - 0.02, To: base.WACC + 0.02, Steps: 5},
		TerminalGrowth: AxisSpec{From: base.TerminalGrowth - 0.01, To: base.TerminalGrowth + 0.01, Steps: 5},
	}
}

// Validate checks the case-level fields. Assumptions, multiples and shares
// are checked by the engine when the case runs.
func (c *Case) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return &assumption.Error{Kind: assumption.ErrInvalidAssumption, Field: "name", Rule: "required"}
	}
	if c.Sensitivity != nil && c.Sensitivity.Scenario != "" {
		if _, err := assumption.ParseScenarioName(string(c.Sensitivity.Scenario)); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// LOADING
// =============================================================================

// CaseSource retrieves a named case (files, database, test fakes).
type CaseSource interface {
	LoadCase(ctx context.Context, name string) (*Case, error)
}

// caseExtensions are tried in order by FileCaseSource.
var caseExtensions = []string{".yaml", ".yml", ".json", ".hjson", ".toml"}

// FileCaseSource loads <Dir>/<name>.{yaml,yml,json,hjson,toml}.
type FileCaseSource struct {
	Dir string
}

func (s FileCaseSource) LoadCase(ctx context.Context, name string) (*Case, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return nil, fmt.Errorf("%w %q", ErrInvalidCaseName, name)
	}
	for _, ext := range caseExtensions {
		path := filepath.Join(s.Dir, name+ext)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return LoadCaseFile(path)
	}
	return nil, fmt.Errorf("%w: %s", ErrCaseNotFound, name)
}

// LoadCaseFile reads a case, choosing the format from the file extension.
func LoadCaseFile(path string) (*Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read case %s: %w", path, err)
	}
	c, err := ParseCase(data, strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return nil, fmt.Errorf("case %s: %w", path, err)
	}
	return c, nil
}

// ParseCase decodes a case document. format is yaml, yml, json, hjson or toml;
// JSON input goes through the lenient parser so hand-edited files with
// trailing commas or comments still load.
func ParseCase(data []byte, format string) (*Case, error) {
	var c Case
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.UnmarshalStrict(data, &c); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	case "json":
		if _, err := utils.SmartParse(string(data), &c); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	case "hjson":
		if err := utils.ParseHJSONToStruct(string(data), &c); err != nil {
			return nil, fmt.Errorf("parse hjson: %w", err)
		}
	case "toml":
		if err := utils.ParseTOMLToStruct(string(data), &c); err != nil {
			return nil, fmt.Errorf("parse toml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported case format %q", format)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
