package valuation

import (
	"fmt"

	"equity_valuation/pkg/core/assumption"
)

// MetricKind selects which company metric a peer multiple applies to.
type MetricKind string

const (
	MetricRevenue   MetricKind = "revenue"    // EV / Revenue
	MetricNetIncome MetricKind = "net_income" // P / E
)

// ComparableMultiple is a peer-group trading multiple with a symmetric
// uncertainty band (0.15 = ±15%).
type ComparableMultiple struct {
	PeerGroup       string     `json:"peer_group" yaml:"peer_group" validate:"required"`
	Metric          MetricKind `json:"metric" yaml:"metric" validate:"oneof=revenue net_income"`
	Multiple        float64    `json:"multiple" yaml:"multiple" validate:"finite,gte=0"`
	SensitivityBand float64    `json:"sensitivity_band" yaml:"sensitivity_band" validate:"finite,gte=0,lt=1"`
}

// CompanyMetrics are the target's own forward figures.
type CompanyMetrics struct {
	Revenue   float64 `json:"revenue" yaml:"revenue"`
	NetIncome float64 `json:"net_income" yaml:"net_income"`
}

// ValuationRange is one bar of the football field.
type ValuationRange struct {
	Label string  `json:"label"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Mid returns the midpoint of the range.
func (r ValuationRange) Mid() float64 { return (r.Min + r.Max) / 2 }

// ApplyMultiple turns one peer multiple into a valuation range.
//
//	center = metric × multiple
//	range  = [center × (1 − band), center × (1 + band)]
func ApplyMultiple(metricValue float64, m ComparableMultiple) (ValuationRange, error) {
	if !assumption.IsFinite(metricValue) || metricValue < 0 {
		return ValuationRange{}, assumption.Invalid("metric_value", metricValue, "gte=0")
	}
	if err := assumption.ValidateStruct(m); err != nil {
		return ValuationRange{}, fmt.Errorf("comparable %q: %w", m.PeerGroup, err)
	}

	center := metricValue * m.Multiple
	return ValuationRange{
		Label: m.PeerGroup,
		Min:   center * (1 - m.SensitivityBand),
		Max:   center * (1 + m.SensitivityBand),
	}, nil
}

// ApplyComparables applies each multiple to the matching company metric,
// preserving input order.
func ApplyComparables(metrics CompanyMetrics, multiples []ComparableMultiple) ([]ValuationRange, error) {
	ranges := make([]ValuationRange, 0, len(multiples))
	for _, m := range multiples {
		var metric float64
		switch m.Metric {
		case MetricRevenue:
			metric = metrics.Revenue
		case MetricNetIncome:
			metric = metrics.NetIncome
		default:
			return nil, fmt.Errorf("comparable %q: %w", m.PeerGroup,
				&assumption.Error{Kind: assumption.ErrInvalidAssumption, Field: "metric", Rule: "oneof=revenue net_income"})
		}
		r, err := ApplyMultiple(metric, m)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}
