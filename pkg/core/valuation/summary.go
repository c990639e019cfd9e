package valuation

import (
	"equity_valuation/pkg/core/assumption"
)

// DCFLabel is the label of the DCF bar in a Report.
const DCFLabel = "DCF"

// Report is the aggregated football-field output. The caller owns it.
type Report struct {
	Ranges              []ValuationRange `json:"ranges"`
	BaseEnterpriseValue float64          `json:"base_enterprise_value"`
	SharesOutstanding   float64          `json:"shares_outstanding"`
	ImpliedSharePrice   float64          `json:"implied_share_price"`
}

// Range looks up a bar by its label.
func (r *Report) Range(label string) (ValuationRange, bool) {
	for _, vr := range r.Ranges {
		if vr.Label == label {
			return vr, true
		}
	}
	return ValuationRange{}, false
}

// ImpliedRevenueMultiple returns base EV / revenue (EV/Revenue).
func (r *Report) ImpliedRevenueMultiple(revenue float64) (float64, error) {
	if !assumption.IsFinite(revenue) || revenue <= 0 {
		return 0, assumption.Invalid("revenue", revenue, "gt=0")
	}
	return r.BaseEnterpriseValue / revenue, nil
}

// Aggregate builds the report: the DCF bar spans bear → bull enterprise value,
// followed by the comparable ranges in caller order. The implied share price
// is the base-case EV over shares outstanding.
func Aggregate(scenarios ScenarioSet, comparables []ValuationRange, sharesOutstanding float64) (*Report, error) {
	if !assumption.IsFinite(sharesOutstanding) || sharesOutstanding <= 0 {
		return nil, assumption.Invalid("shares_outstanding", sharesOutstanding, "gt=0")
	}

	results := make(map[assumption.ScenarioName]Result, len(assumption.ScenarioOrder))
	for _, name := range assumption.ScenarioOrder {
		res, ok := scenarios.Get(name)
		if !ok {
			return nil, &assumption.Error{Kind: assumption.ErrInvalidAssumption, Field: "scenario." + string(name), Rule: "required"}
		}
		results[name] = res
	}

	ranges := make([]ValuationRange, 0, len(comparables)+1)
	ranges = append(ranges, ValuationRange{
		Label: DCFLabel,
		Min:   results[assumption.Bear].EnterpriseValue,
		Max:   results[assumption.Bull].EnterpriseValue,
	})
	ranges = append(ranges, comparables...)

	base := results[assumption.Base].EnterpriseValue
	return &Report{
		Ranges:              ranges,
		BaseEnterpriseValue: base,
		SharesOutstanding:   sharesOutstanding,
		ImpliedSharePrice:   base / sharesOutstanding,
	}, nil
}
