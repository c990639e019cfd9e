package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"equity_valuation/pkg/core/assumption"
	"equity_valuation/pkg/core/valuation"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type MockCaseSource struct {
	LoadCaseFunc func(ctx context.Context, name string) (*Case, error)
}

func (m *MockCaseSource) LoadCase(ctx context.Context, name string) (*Case, error) {
	if m.LoadCaseFunc != nil {
		return m.LoadCaseFunc(ctx, name)
	}
	return nil, ErrCaseNotFound
}

// --- Fixtures ---

const referenceCasePath = "../../../config/cases/monzo.yaml"

func referenceCase(t *testing.T) *Case {
	t.Helper()
	c, err := LoadCaseFile(referenceCasePath)
	require.NoError(t, err)
	return c
}

func newTestOrchestrator() *Orchestrator {
	return NewOrchestrator(nil, nil, zerolog.Nop())
}

// --- Tests ---

func TestOrchestrator_Run(t *testing.T) {
	o := newTestOrchestrator()

	out, err := o.Run(context.Background(), referenceCase(t))
	require.NoError(t, err)

	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, "monzo", out.Case)
	assert.Equal(t, "GBP", out.Currency)
	assert.Nil(t, out.CostOfCapital)

	require.Len(t, out.Scenarios, 3)
	assert.Equal(t, assumption.Bear, out.Scenarios[0].Name)
	assert.Equal(t, assumption.Base, out.Scenarios[1].Name)
	assert.Equal(t, assumption.Bull, out.Scenarios[2].Name)
	assert.True(t, out.ScenariosMonotonic)

	require.Len(t, out.BaseProjection, 5)
	assert.InDelta(t, 234.0, out.BaseProjection[0].FreeCashFlow, 1e-9)
	assert.InDelta(t, 933.398971908, out.BaseProjection[4].FreeCashFlow, 1e-6)

	report := out.Report
	require.NotNil(t, report)
	assert.InDelta(t, 9639.531089493972, report.BaseEnterpriseValue, 1e-6)
	assert.InDelta(t, 16.0659, report.ImpliedSharePrice, 1e-4)
	require.Len(t, report.Ranges, 5)

	dcf, ok := report.Range(valuation.DCFLabel)
	require.True(t, ok)
	assert.InDelta(t, 5096.40, dcf.Min, 0.01)
	assert.InDelta(t, 17832.37, dcf.Max, 0.01)

	fintech, ok := report.Range("Global Fintech (EV/Rev)")
	require.True(t, ok)
	assert.InDelta(t, 12643.75, fintech.Min, 1e-9)
	assert.InDelta(t, 17106.25, fintech.Max, 1e-9)

	challenger, ok := report.Range("UK Challenger (P/E)")
	require.True(t, ok)
	assert.InDelta(t, 4547.5, challenger.Min, 1e-9)
	assert.InDelta(t, 6152.5, challenger.Max, 1e-9)

	require.NotNil(t, out.ImpliedRevenueMultiple)
	assert.InDelta(t, 5.5083, *out.ImpliedRevenueMultiple, 1e-4)

	require.NotNil(t, out.Sensitivity)
	assert.Equal(t, []string{"8.5%", "9.5%", "10.5%", "11.5%", "12.5%"}, out.Sensitivity.RowLabels)
	assert.Equal(t, []string{"2.0%", "2.5%", "3.0%", "3.5%", "4.0%"}, out.Sensitivity.ColLabels)
	require.NotNil(t, out.Sensitivity.Values[3][2])
	assert.InDelta(t, 8364.569, *out.Sensitivity.Values[3][2], 1e-3)
	assert.Empty(t, out.Sensitivity.Invalid)
}

func TestOrchestrator_CostOfCapitalFillsWACC(t *testing.T) {
	c := referenceCase(t)
	c.CostOfCapital = &valuation.CostOfCapitalInput{
		RiskFreeRate:     0.04,
		Beta:             1.4,
		MarketReturn:     0.095,
		PreTaxCostOfDebt: 0.065,
		TaxRate:          0.25,
		DebtWeight:       0.10,
	}
	bull := c.Scenarios[assumption.Bull]
	bull.WACC = 0
	c.Scenarios[assumption.Bull] = bull

	out, err := newTestOrchestrator().Run(context.Background(), c)
	require.NoError(t, err)

	require.NotNil(t, out.CostOfCapital)
	assert.InDelta(t, 0.110175, out.CostOfCapital.WACC, 1e-12)
	assert.InDelta(t, 0.110175, out.Scenarios[2].Assumptions.WACC, 1e-12)
	// Explicit rates are kept.
	assert.Equal(t, 0.105, out.Scenarios[1].Assumptions.WACC)
	// The case itself is not modified.
	assert.Zero(t, c.Scenarios[assumption.Bull].WACC)
}

func TestOrchestrator_RunFailures(t *testing.T) {
	o := newTestOrchestrator()
	ctx := context.Background()

	missing := referenceCase(t)
	delete(missing.Scenarios, assumption.Bear)
	_, err := o.Run(ctx, missing)
	assert.True(t, errors.Is(err, assumption.ErrInvalidAssumption))

	noShares := referenceCase(t)
	noShares.SharesOutstanding = 0
	_, err = o.Run(ctx, noShares)
	var aerr *assumption.Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "shares_outstanding", aerr.Field)

	badBand := referenceCase(t)
	badBand.Comparables[0].SensitivityBand = 1.2
	_, err = o.Run(ctx, badBand)
	assert.True(t, errors.Is(err, assumption.ErrInvalidAssumption))

	unnamed := referenceCase(t)
	unnamed.Name = " "
	_, err = o.Run(ctx, unnamed)
	assert.True(t, errors.Is(err, assumption.ErrInvalidAssumption))
}

func TestOrchestrator_RunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := newTestOrchestrator().Run(ctx, referenceCase(t))
	assert.Nil(t, out)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOrchestrator_SensitivityDefaultSweep(t *testing.T) {
	c := referenceCase(t)
	c.Sensitivity = nil

	m, err := newTestOrchestrator().Sensitivity(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, []string{"8.5%", "9.5%", "10.5%", "11.5%", "12.5%"}, m.RowLabels())
	assert.Equal(t, []string{"2.0%", "2.5%", "3.0%", "3.5%", "4.0%"}, m.ColLabels())

	cell, ok := m.LookupLabel("10.5%", "3.0%")
	require.True(t, ok)
	assert.InDelta(t, 9639.531089493972, cell.Result.EnterpriseValue, 1e-6)
}

func TestOrchestrator_SensitivityExplicitValues(t *testing.T) {
	c := referenceCase(t)
	c.Sensitivity = &SweepSpec{
		Scenario:       assumption.Bull,
		WACC:           AxisSpec{Values: []float64{0.03, 0.105}},
		TerminalGrowth: AxisSpec{Values: []float64{0.04}},
	}

	m, err := newTestOrchestrator().Sensitivity(context.Background(), c)
	require.NoError(t, err)
	assert.Len(t, m.InvalidCells(), 1)

	v, ok := m.Value(1, 0)
	require.True(t, ok)
	assert.InDelta(t, 17832.37, v, 0.01)
}

func TestOrchestrator_RunNamed(t *testing.T) {
	o := newTestOrchestrator()

	_, err := o.RunNamed(context.Background(), "monzo")
	assert.ErrorIs(t, err, ErrCaseNotFound)

	var asked string
	o.SetCaseSource(&MockCaseSource{
		LoadCaseFunc: func(ctx context.Context, name string) (*Case, error) {
			asked = name
			return referenceCase(t), nil
		},
	})
	out, err := o.RunNamed(context.Background(), "monzo")
	require.NoError(t, err)
	assert.Equal(t, "monzo", asked)
	assert.InDelta(t, 9639.531089493972, out.Report.BaseEnterpriseValue, 1e-6)
}

func TestParseCase_Formats(t *testing.T) {
	jsonCase := `{
		"name": "acme",
		"shares_outstanding": 100,
		"scenarios": {
			"base": {"current_revenue": 100, "wacc": 0.1, "terminal_growth": 0.02, "horizon_years": 3,},
		},
	}`
	c, err := ParseCase([]byte(jsonCase), "json")
	require.NoError(t, err)
	assert.Equal(t, "acme", c.Name)
	assert.Equal(t, 3, c.Scenarios[assumption.Base].HorizonYears)

	hjsonCase := `
# hand-written case
{
  name: acme
  shares_outstanding: 100
  scenarios: {
    base: {
      current_revenue: 100
      wacc: 0.1
      terminal_growth: 0.02
      horizon_years: 3
    }
  }
}`
	c, err = ParseCase([]byte(hjsonCase), "hjson")
	require.NoError(t, err)
	assert.Equal(t, 0.1, c.Scenarios[assumption.Base].WACC)

	_, err = ParseCase([]byte("name: acme\nshare_count: 5\n"), "yaml")
	assert.Error(t, err)

	tomlCase := `
name = "acme"
shares_outstanding = 100

[scenarios.base]
current_revenue = 100
wacc = 0.1
terminal_growth = 0.02
horizon_years = 3
`
	c, err = ParseCase([]byte(tomlCase), "toml")
	require.NoError(t, err)
	assert.Equal(t, 100.0, c.Scenarios[assumption.Base].CurrentRevenue)
	assert.Equal(t, 3, c.Scenarios[assumption.Base].HorizonYears)

	_, err = ParseCase([]byte("name=acme"), "ini")
	assert.ErrorContains(t, err, "unsupported case format")

	_, err = ParseCase([]byte("currency: GBP\n"), "yml")
	assert.True(t, errors.Is(err, assumption.ErrInvalidAssumption))

	_, err = ParseCase([]byte("name: acme\nsensitivity:\n  scenario: sideways\n"), "yaml")
	assert.True(t, errors.Is(err, assumption.ErrInvalidAssumption))
}

func TestParseCase_LenientJSONMatchesStrict(t *testing.T) {
	strict, err := json.Marshal(referenceCase(t))
	require.NoError(t, err)

	// Trailing commas after every scenario and before the closing brace.
	loose := strings.ReplaceAll(string(strict), `"horizon_years":5}`, `"horizon_years":5,}`)
	loose = strings.TrimSuffix(loose, "}") + ",\n}"
	require.NotEqual(t, string(strict), loose)

	want, err := ParseCase(strict, "json")
	require.NoError(t, err)
	got, err := ParseCase([]byte(loose), "json")
	require.NoError(t, err)
	assert.Equal(t, want.Scenarios, got.Scenarios)
	assert.Equal(t, 0.105, got.Scenarios[assumption.Base].WACC)

	o := newTestOrchestrator()
	wantOut, err := o.Run(context.Background(), want)
	require.NoError(t, err)
	gotOut, err := o.Run(context.Background(), got)
	require.NoError(t, err)
	assert.Equal(t, wantOut.Report.BaseEnterpriseValue, gotOut.Report.BaseEnterpriseValue)
	assert.InDelta(t, 9639.531089493972, gotOut.Report.BaseEnterpriseValue, 1e-9)
}

func TestFileCaseSource(t *testing.T) {
	dir := t.TempDir()
	data, err := os.ReadFile(referenceCasePath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "monzo.yml"), data, 0o600))

	src := FileCaseSource{Dir: dir}
	c, err := src.LoadCase(context.Background(), "monzo")
	require.NoError(t, err)
	assert.Equal(t, 600.0, c.SharesOutstanding)
	assert.Len(t, c.Comparables, 4)

	_, err = src.LoadCase(context.Background(), "revolut")
	assert.ErrorIs(t, err, ErrCaseNotFound)

	for _, name := range []string{"../monzo", "..x", "a/b", ""} {
		_, err = src.LoadCase(context.Background(), name)
		assert.ErrorIs(t, err, ErrInvalidCaseName, name)
	}
}

func TestAxisSpec_Resolve(t *testing.T) {
	explicit := AxisSpec{Values: []float64{0.1, 0.2}, From: 0, To: 1, Steps: 3}
	assert.Equal(t, []float64{0.1, 0.2}, explicit.Resolve())

	ranged := AxisSpec{From: 0.02, To: 0.04, Steps: 3}
	got := ranged.Resolve()
	require.Len(t, got, 3)
	assert.InDelta(t, 0.03, got[1], 1e-12)

	assert.Empty(t, AxisSpec{}.Resolve())
}
