package projection

import (
	"fmt"
	"math"
)

// =============================================================================
// GROWTH DECAY SCHEDULES
// =============================================================================

// DecaySchedule returns the revenue growth rate for a projection year >= 2.
// Year 1 always grows at yearOneGrowth; the schedule only governs later years.
type DecaySchedule func(yearOneGrowth, decayFactor float64, year int) float64

// FlatDecay dampens every year after the first by the same single factor.
// Formula: g(t) = g1 × d, for all t >= 2
// Year 3 does not apply the factor twice relative to year 2.
func FlatDecay(yearOneGrowth, decayFactor float64, year int) float64 {
	return yearOneGrowth * decayFactor
}

// CompoundingDecay applies the factor once per elapsed year.
// Formula: g(t) = g1 × d^(t-1)
func CompoundingDecay(yearOneGrowth, decayFactor float64, year int) float64 {
	return yearOneGrowth * math.Pow(decayFactor, float64(year-1))
}

// Schedule names accepted by ScheduleByName.
const (
	ScheduleFlat        = "flat"
	ScheduleCompounding = "compounding"
)

// ScheduleByName resolves a configured schedule name. Empty means flat.
func ScheduleByName(name string) (DecaySchedule, error) {
	switch name {
	case "", ScheduleFlat:
		return FlatDecay, nil
	case ScheduleCompounding:
		return CompoundingDecay, nil
	}
	return nil, fmt.Errorf("unknown decay schedule %q (want %q or %q)", name, ScheduleFlat, ScheduleCompounding)
}
