package valuation

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"equity_valuation/pkg/core/assumption"
	"equity_valuation/pkg/core/projection"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func referenceAssumptions() assumption.Assumptions {
	return assumption.Assumptions{
		CurrentRevenue:         1200,
		YearOneGrowth:          0.30,
		GrowthDecayFactor:      0.9,
		InitialFCFMargin:       0.15,
		MarginExpansionPerYear: 0.02,
		TerminalGrowth:         0.03,
		WACC:                   0.105,
		HorizonYears:           5,
	}
}

func referencePresets() assumption.Presets {
	bear := referenceAssumptions()
	bear.YearOneGrowth = 0.15
	bear.TerminalGrowth = 0.02

	bull := referenceAssumptions()
	bull.YearOneGrowth = 0.45
	bull.TerminalGrowth = 0.04

	return assumption.Presets{
		assumption.Bull: bull,
		assumption.Bear: bear,
		assumption.Base: referenceAssumptions(),
	}
}

// recompute is the closed-form, year-by-year evaluation in a fixed order.
func recompute(a assumption.Assumptions) float64 {
	fcfs := make([]float64, a.HorizonYears)
	revenue := a.CurrentRevenue * (1 + a.YearOneGrowth)
	margin := a.InitialFCFMargin
	fcfs[0] = revenue * margin
	growth := float64(a.YearOneGrowth * a.GrowthDecayFactor)
	for i := 1; i < a.HorizonYears; i++ {
		revenue = revenue * (1 + growth)
		margin = margin + a.MarginExpansionPerYear
		fcfs[i] = revenue * margin
	}
	tv := fcfs[len(fcfs)-1] * (1 + a.TerminalGrowth) / (a.WACC - a.TerminalGrowth)

	var pv float64
	for i, f := range fcfs {
		pv += f / math.Pow(1+a.WACC, float64(i+1))
	}
	pvTerminal := tv / math.Pow(1+a.WACC, float64(a.HorizonYears))
	return pv + pvTerminal
}

// =============================================================================
// TERMINAL VALUE
// =============================================================================

func TestTerminalValue_ClosedForm(t *testing.T) {
	tv, err := TerminalValue(100, 0.03, 0.105)
	require.NoError(t, err)
	assert.InDelta(t, 1373.33, tv, 0.01)
}

func TestTerminalValue_WACCEqualsGrowth(t *testing.T) {
	tv, err := TerminalValue(100, 0.05, 0.05)
	require.Error(t, err)
	assert.True(t, errors.Is(err, assumption.ErrInvalidAssumption))
	assert.Zero(t, tv)
	assert.False(t, math.IsNaN(tv) || math.IsInf(tv, 0))
}

func TestTerminalValue_WACCBelowGrowth(t *testing.T) {
	_, err := TerminalValue(100, 0.06, 0.05)
	assert.ErrorIs(t, err, assumption.ErrInvalidAssumption)
}

func TestTerminalValue_NonFinite(t *testing.T) {
	_, err := TerminalValue(math.NaN(), 0.03, 0.10)
	assert.ErrorIs(t, err, assumption.ErrInvalidAssumption)
	_, err = TerminalValue(100, 0.03, math.Inf(1))
	assert.ErrorIs(t, err, assumption.ErrInvalidAssumption)
}

// =============================================================================
// DISCOUNT
// =============================================================================

func TestDiscount_SingleYear(t *testing.T) {
	a := assumption.Assumptions{
		CurrentRevenue:   100,
		YearOneGrowth:    0.10,
		InitialFCFMargin: 0.10,
		WACC:             0.10,
		HorizonYears:     1,
	}
	series, err := projection.NewEngine().Project(a)
	require.NoError(t, err)

	res, err := Discount(series, 110, 0.10)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, res.PVExplicitFCF, 1e-9)
	assert.InDelta(t, 100.0, res.PVTerminal, 1e-9)
	assert.InDelta(t, 110.0, res.EnterpriseValue, 1e-9)
	assert.Equal(t, 110.0, res.TerminalValue)
}

func TestDiscount_RejectsEmptySeries(t *testing.T) {
	_, err := Discount(projection.Series{}, 100, 0.10)
	assert.ErrorIs(t, err, assumption.ErrInvalidAssumption)
}

func TestDiscount_RejectsDegenerateRate(t *testing.T) {
	series, err := projection.NewEngine().Project(referenceAssumptions())
	require.NoError(t, err)

	_, err = Discount(series, 100, -1)
	assert.ErrorIs(t, err, assumption.ErrInvalidAssumption)
	_, err = Discount(series, math.Inf(1), 0.10)
	assert.ErrorIs(t, err, assumption.ErrInvalidAssumption)
}

// =============================================================================
// PIPELINE
// =============================================================================

func TestPipeline_ReferenceCase(t *testing.T) {
	a := referenceAssumptions()
	res, err := NewPipeline().Run(a)
	require.NoError(t, err)

	assert.Equal(t, recompute(a), res.EnterpriseValue, "must match the closed-form recomputation bit-for-bit")
	assert.InDelta(t, 9639.53, res.EnterpriseValue, 0.005)
	assert.InDelta(t, 1858.59, res.PVExplicitFCF, 0.005)
	assert.InDelta(t, 7780.94, res.PVTerminal, 0.005)
	assert.Equal(t, res.PVExplicitFCF+res.PVTerminal, res.EnterpriseValue)
}

func TestPipeline_Idempotent(t *testing.T) {
	p := NewPipeline()
	first, err := p.Run(referenceAssumptions())
	require.NoError(t, err)
	second, err := p.Run(referenceAssumptions())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestPipeline_EnterpriseValueDecreasesWithWACC(t *testing.T) {
	p := NewPipeline()
	waccs := []float64{0.06, 0.07, 0.085, 0.095, 0.105, 0.115, 0.125, 0.15, 0.2}

	prev := math.Inf(1)
	for _, w := range waccs {
		res, err := p.Run(referenceAssumptions().WithRates(w, 0.03))
		require.NoError(t, err)
		assert.Less(t, res.EnterpriseValue, prev, "wacc %.3f", w)
		prev = res.EnterpriseValue
	}
}

func TestPipeline_WACCEqualsGrowthFails(t *testing.T) {
	res, err := NewPipeline().Run(referenceAssumptions().WithRates(0.03, 0.03))
	require.Error(t, err)
	assert.ErrorIs(t, err, assumption.ErrInvalidAssumption)
	assert.Equal(t, Result{}, res)
}

func TestPipeline_RangePolicy(t *testing.T) {
	a := referenceAssumptions()
	a.WACC = 0.45

	_, err := NewPipeline().Run(a)
	require.NoError(t, err, "no policy configured")

	_, err = NewPipeline(WithRangePolicy(assumption.DefaultRangePolicy())).Run(a)
	assert.ErrorIs(t, err, assumption.ErrOutOfRange)
}

func TestPipeline_RunDetailed(t *testing.T) {
	series, res, err := NewPipeline().RunDetailed(referenceAssumptions())
	require.NoError(t, err)
	assert.Equal(t, 5, series.Len())
	assert.InDelta(t, 9639.53, res.EnterpriseValue, 0.005)
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestRunScenarios_Ordered(t *testing.T) {
	set, err := NewPipeline().RunScenarios(referencePresets())
	require.NoError(t, err)

	entries := set.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, assumption.Bear, entries[0].Name)
	assert.Equal(t, assumption.Base, entries[1].Name)
	assert.Equal(t, assumption.Bull, entries[2].Name)
	assert.True(t, set.Monotonic())

	bear, _ := set.Get(assumption.Bear)
	base, _ := set.Get(assumption.Base)
	bull, _ := set.Get(assumption.Bull)
	assert.LessOrEqual(t, bear.EnterpriseValue, base.EnterpriseValue)
	assert.LessOrEqual(t, base.EnterpriseValue, bull.EnterpriseValue)
	assert.InDelta(t, 9639.53, base.EnterpriseValue, 0.005)
}

func TestRunScenarios_MatchesIndependentRuns(t *testing.T) {
	p := NewPipeline()
	presets := referencePresets()
	set, err := p.RunScenarios(presets)
	require.NoError(t, err)

	for _, name := range assumption.ScenarioOrder {
		want, err := p.Run(presets[name])
		require.NoError(t, err)
		got, ok := set.Get(name)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestRunScenarios_InvalidPresetFailsWholeCall(t *testing.T) {
	presets := referencePresets()
	bull := presets[assumption.Bull]
	bull.WACC = bull.TerminalGrowth
	presets[assumption.Bull] = bull

	set, err := NewPipeline().RunScenarios(presets)
	require.Error(t, err)
	assert.ErrorIs(t, err, assumption.ErrInvalidAssumption)
	assert.Zero(t, set.Len())
}

func TestRunScenarios_MissingPreset(t *testing.T) {
	presets := referencePresets()
	delete(presets, assumption.Bear)

	_, err := NewPipeline().RunScenarios(presets)
	assert.ErrorIs(t, err, assumption.ErrInvalidAssumption)
}

func TestScenarioSet_MarshalJSON(t *testing.T) {
	set := NewScenarioSet(
		ScenarioResult{Name: assumption.Bull, Result: Result{EnterpriseValue: 3}},
		ScenarioResult{Name: assumption.Bear, Result: Result{EnterpriseValue: 1}},
		ScenarioResult{Name: assumption.Base, Result: Result{EnterpriseValue: 2}},
	)

	data, err := json.Marshal(set)
	require.NoError(t, err)

	var decoded []ScenarioResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 3)
	assert.Equal(t, assumption.Bear, decoded[0].Name)
	assert.Equal(t, assumption.Bull, decoded[2].Name)
}

// =============================================================================
// COMPARABLES
// =============================================================================

func TestApplyMultiple(t *testing.T) {
	r, err := ApplyMultiple(1750, ComparableMultiple{
		PeerGroup:       "Global Fintech (EV/Rev)",
		Metric:          MetricRevenue,
		Multiple:        8.5,
		SensitivityBand: 0.15,
	})
	require.NoError(t, err)
	assert.Equal(t, "Global Fintech (EV/Rev)", r.Label)
	assert.InDelta(t, 12643.75, r.Min, 1e-9)
	assert.InDelta(t, 17106.25, r.Max, 1e-9)
	assert.InDelta(t, 14875.0, r.Mid(), 1e-9)
}

func TestApplyMultiple_Preconditions(t *testing.T) {
	valid := ComparableMultiple{PeerGroup: "UK Challenger (P/E)", Metric: MetricNetIncome, Multiple: 25, SensitivityBand: 0.15}

	_, err := ApplyMultiple(-1, valid)
	assert.ErrorIs(t, err, assumption.ErrInvalidAssumption)

	for _, band := range []float64{-0.01, 1.0, 1.5, math.NaN()} {
		m := valid
		m.SensitivityBand = band
		_, err := ApplyMultiple(214, m)
		assert.ErrorIs(t, err, assumption.ErrInvalidAssumption, "band %v", band)
	}

	m := valid
	m.SensitivityBand = 0
	r, err := ApplyMultiple(214, m)
	require.NoError(t, err)
	assert.Equal(t, r.Min, r.Max)
}

func TestApplyComparables(t *testing.T) {
	metrics := CompanyMetrics{Revenue: 1750, NetIncome: 214}
	ranges, err := ApplyComparables(metrics, []ComparableMultiple{
		{PeerGroup: "US Neobank (EV/Rev)", Metric: MetricRevenue, Multiple: 4.5, SensitivityBand: 0.15},
		{PeerGroup: "UK Challenger (P/E)", Metric: MetricNetIncome, Multiple: 25, SensitivityBand: 0.15},
	})
	require.NoError(t, err)
	require.Len(t, ranges, 2)
	assert.Equal(t, "US Neobank (EV/Rev)", ranges[0].Label)
	assert.InDelta(t, 1750*4.5*0.85, ranges[0].Min, 1e-9)
	assert.InDelta(t, 4547.5, ranges[1].Min, 1e-9)
	assert.InDelta(t, 6152.5, ranges[1].Max, 1e-9)

	_, err = ApplyComparables(metrics, []ComparableMultiple{{PeerGroup: "x", Metric: "ebitda", Multiple: 10}})
	assert.ErrorIs(t, err, assumption.ErrInvalidAssumption)
}

// =============================================================================
// AGGREGATION
// =============================================================================

func TestAggregate(t *testing.T) {
	set, err := NewPipeline().RunScenarios(referencePresets())
	require.NoError(t, err)

	comps := []ValuationRange{
		{Label: "Global Fintech (EV/Rev)", Min: 12643.75, Max: 17106.25},
		{Label: "UK Trad Bank (P/E)", Min: 1455.2, Max: 1968.8},
	}
	report, err := Aggregate(set, comps, 600)
	require.NoError(t, err)

	require.Len(t, report.Ranges, 3)
	bear, _ := set.Get(assumption.Bear)
	bull, _ := set.Get(assumption.Bull)
	assert.Equal(t, ValuationRange{Label: DCFLabel, Min: bear.EnterpriseValue, Max: bull.EnterpriseValue}, report.Ranges[0])
	assert.Equal(t, comps[0], report.Ranges[1])
	assert.Equal(t, comps[1], report.Ranges[2])

	assert.InDelta(t, 16.07, report.ImpliedSharePrice, 0.005)

	r, ok := report.Range("UK Trad Bank (P/E)")
	require.True(t, ok)
	assert.Equal(t, 1455.2, r.Min)
	_, ok = report.Range("missing")
	assert.False(t, ok)

	multiple, err := report.ImpliedRevenueMultiple(1750)
	require.NoError(t, err)
	assert.InDelta(t, 5.51, multiple, 0.005)
	_, err = report.ImpliedRevenueMultiple(0)
	assert.ErrorIs(t, err, assumption.ErrInvalidAssumption)
}

func TestAggregate_SharesOutstanding(t *testing.T) {
	set := NewScenarioSet(
		ScenarioResult{Name: assumption.Bear, Result: Result{EnterpriseValue: 1}},
		ScenarioResult{Name: assumption.Base, Result: Result{EnterpriseValue: 2}},
		ScenarioResult{Name: assumption.Bull, Result: Result{EnterpriseValue: 3}},
	)
	for _, shares := range []float64{0, -600, math.NaN()} {
		report, err := Aggregate(set, nil, shares)
		assert.ErrorIs(t, err, assumption.ErrInvalidAssumption)
		assert.Nil(t, report)
	}
}

func TestAggregate_RequiresAllScenarios(t *testing.T) {
	set := NewScenarioSet(ScenarioResult{Name: assumption.Base, Result: Result{EnterpriseValue: 2}})
	_, err := Aggregate(set, nil, 600)
	assert.ErrorIs(t, err, assumption.ErrInvalidAssumption)
}

func TestAggregate_DoesNotAliasInput(t *testing.T) {
	set := NewScenarioSet(
		ScenarioResult{Name: assumption.Bear, Result: Result{EnterpriseValue: 1}},
		ScenarioResult{Name: assumption.Base, Result: Result{EnterpriseValue: 2}},
		ScenarioResult{Name: assumption.Bull, Result: Result{EnterpriseValue: 3}},
	)
	comps := []ValuationRange{{Label: "peer", Min: 1, Max: 2}}
	report, err := Aggregate(set, comps, 1)
	require.NoError(t, err)

	comps[0].Label = "changed"
	assert.Equal(t, "peer", report.Ranges[1].Label)
}

// =============================================================================
// COST OF CAPITAL
// =============================================================================

func TestCostOfCapital(t *testing.T) {
	res, err := CostOfCapital(CostOfCapitalInput{
		RiskFreeRate:     0.040,
		Beta:             1.4,
		MarketReturn:     0.095,
		PreTaxCostOfDebt: 0.065,
		TaxRate:          0.25,
		DebtWeight:       0.10,
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.117, res.CostOfEquity, 1e-12)
	assert.InDelta(t, 0.04875, res.AfterTaxCostOfDebt, 1e-12)
	assert.InDelta(t, 0.90, res.EquityWeight, 1e-12)
	assert.InDelta(t, 0.110175, res.WACC, 1e-12)
}

func TestCostOfCapital_InvalidWeights(t *testing.T) {
	_, err := CostOfCapital(CostOfCapitalInput{DebtWeight: 1.2})
	assert.ErrorIs(t, err, assumption.ErrInvalidAssumption)

	_, err = CostOfCapital(CostOfCapitalInput{TaxRate: 1})
	assert.ErrorIs(t, err, assumption.ErrInvalidAssumption)
}
