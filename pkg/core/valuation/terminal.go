package valuation

import (
	"equity_valuation/pkg/core/assumption"
	"equity_valuation/pkg/core/calc"
)

// TerminalValue capitalises the final explicit-year FCF with the Gordon
// growth model: FCF_N × (1 + g) / (WACC − g).
// WACC must exceed g; otherwise the perpetuity diverges and an
// ErrInvalidAssumption error is returned instead of a number.
func TerminalValue(finalYearFCF, terminalGrowth, wacc float64) (float64, error) {
	switch {
	case !assumption.IsFinite(finalYearFCF):
		return 0, assumption.Invalid("final_year_fcf", finalYearFCF, "finite")
	case !assumption.IsFinite(terminalGrowth):
		return 0, assumption.Invalid("terminal_growth", terminalGrowth, "finite")
	case !assumption.IsFinite(wacc):
		return 0, assumption.Invalid("wacc", wacc, "finite")
	}

	tv, ok := calc.GordonGrowth(finalYearFCF, wacc, terminalGrowth)
	if !ok {
		return 0, assumption.Invalid("wacc", wacc, "gtfield=TerminalGrowth")
	}
	return tv, nil
}
