package projection

import "encoding/json"

// YearProjection is one forecast year. Year is 1-based.
type YearProjection struct {
	Year         int     `json:"year"`
	Revenue      float64 `json:"revenue"`
	Growth       float64 `json:"growth"`
	Margin       float64 `json:"fcf_margin"`
	FreeCashFlow float64 `json:"free_cash_flow"`
}

// Series is the chronological output of Engine.Project.
// Its backing slice is never exposed, so a Series cannot change after
// construction.
type Series struct {
	years []YearProjection
}

// Len returns the number of projected years.
func (s Series) Len() int { return len(s.years) }

// At returns the projection at zero-based index i.
func (s Series) At(i int) YearProjection { return s.years[i] }

// Final returns the last projected year.
func (s Series) Final() YearProjection { return s.years[len(s.years)-1] }

// Years returns a copy of all years in order.
func (s Series) Years() []YearProjection {
	out := make([]YearProjection, len(s.years))
	copy(out, s.years)
	return out
}

// FreeCashFlows returns FCF per year, year 1 first.
func (s Series) FreeCashFlows() []float64 {
	out := make([]float64, len(s.years))
	for i, y := range s.years {
		out[i] = y.FreeCashFlow
	}
	return out
}

func (s Series) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.years)
}
