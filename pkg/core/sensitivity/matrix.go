package sensitivity

import (
	"encoding/json"
	"fmt"
	"math"

	"equity_valuation/pkg/core/valuation"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
)

// lookupTol is the tolerance for matching a rate against an axis value.
const lookupTol = 1e-9

// Cell is one grid point. Err is non-nil when the pipeline rejected the
// pair; Result is then the zero value.
type Cell struct {
	WACC           float64
	TerminalGrowth float64
	Result         valuation.Result
	Err            error
}

// Valid reports whether the cell holds a value.
func (c Cell) Valid() bool { return c.Err == nil }

// Matrix is the read-only outcome of a sweep.
type Matrix struct {
	waccs   []float64
	growths []float64
	cells   []Cell // row-major
	scale   float64
}

func (m *Matrix) Rows() int { return len(m.waccs) }
func (m *Matrix) Cols() int { return len(m.growths) }

// Scale returns the divisor applied by Value.
func (m *Matrix) Scale() float64 { return m.scale }

// WACCs returns a copy of the row axis.
func (m *Matrix) WACCs() []float64 { return append([]float64(nil), m.waccs...) }

// TerminalGrowths returns a copy of the column axis.
func (m *Matrix) TerminalGrowths() []float64 { return append([]float64(nil), m.growths...) }

// At returns the raw cell. It panics on out-of-range indices, like a slice.
func (m *Matrix) At(row, col int) Cell {
	if row < 0 || row >= m.Rows() || col < 0 || col >= m.Cols() {
		panic(fmt.Sprintf("sensitivity: cell (%d, %d) out of range %dx%d", row, col, m.Rows(), m.Cols()))
	}
	return m.cells[row*m.Cols()+col]
}

// Value returns the scaled enterprise value of a cell, false when invalid.
func (m *Matrix) Value(row, col int) (float64, bool) {
	c := m.At(row, col)
	if !c.Valid() {
		return 0, false
	}
	return c.Result.EnterpriseValue / m.scale, true
}

// Dense returns the scaled values as a matrix, NaN marking invalid cells.
func (m *Matrix) Dense() *mat.Dense {
	data := make([]float64, len(m.cells))
	for i, c := range m.cells {
		if c.Valid() {
			data[i] = c.Result.EnterpriseValue / m.scale
		} else {
			data[i] = math.NaN()
		}
	}
	return mat.NewDense(m.Rows(), m.Cols(), data)
}

// InvalidCells lists the cells the pipeline rejected, row-major.
func (m *Matrix) InvalidCells() []Cell {
	var out []Cell
	for _, c := range m.cells {
		if !c.Valid() {
			out = append(out, c)
		}
	}
	return out
}

// Lookup finds the cell for a rate pair, matching axis values within 1e-9.
func (m *Matrix) Lookup(wacc, growth float64) (Cell, bool) {
	r := indexOf(m.waccs, wacc)
	c := indexOf(m.growths, growth)
	if r < 0 || c < 0 {
		return Cell{}, false
	}
	return m.At(r, c), true
}

// LookupLabel finds a cell by its formatted axis labels, e.g. ("11.5%", "3.0%").
func (m *Matrix) LookupLabel(waccLabel, growthLabel string) (Cell, bool) {
	r := labelIndex(m.waccs, waccLabel)
	c := labelIndex(m.growths, growthLabel)
	if r < 0 || c < 0 {
		return Cell{}, false
	}
	return m.At(r, c), true
}

// RowLabels formats the WACC axis as percentages.
func (m *Matrix) RowLabels() []string { return labels(m.waccs) }

// ColLabels formats the terminal growth axis as percentages.
func (m *Matrix) ColLabels() []string { return labels(m.growths) }

// FormatRate renders a decimal rate with one decimal place: 0.115 → "11.5%".
func FormatRate(rate float64) string {
	return fmt.Sprintf("%.1f%%", rate*100)
}

// Linspace returns n evenly spaced values from `from` to `to` inclusive.
func Linspace(from, to float64, n int) []float64 {
	switch {
	case n < 1:
		return nil
	case n == 1:
		return []float64{from}
	}
	return floats.Span(make([]float64, n), from, to)
}

func indexOf(axis []float64, v float64) int {
	for i, x := range axis {
		if scalar.EqualWithinAbs(x, v, lookupTol) {
			return i
		}
	}
	return -1
}

func labelIndex(axis []float64, label string) int {
	for i, x := range axis {
		if FormatRate(x) == label {
			return i
		}
	}
	return -1
}

func labels(axis []float64) []string {
	out := make([]string, len(axis))
	for i, x := range axis {
		out[i] = FormatRate(x)
	}
	return out
}

// =============================================================================
// SERIALISATION
// =============================================================================

// Snapshot is the wire form of a Matrix. Values are scaled; a nil entry is an
// invalid cell whose reason is listed in Invalid.
type Snapshot struct {
	WACCs           []float64     `json:"waccs"`
	TerminalGrowths []float64     `json:"terminal_growths"`
	RowLabels       []string      `json:"row_labels"`
	ColLabels       []string      `json:"col_labels"`
	Scale           float64       `json:"scale"`
	Values          [][]*float64  `json:"values"`
	Invalid         []InvalidCell `json:"invalid,omitempty"`
}

// InvalidCell describes one rejected grid point.
type InvalidCell struct {
	Row            int     `json:"row"`
	Col            int     `json:"col"`
	WACC           float64 `json:"wacc"`
	TerminalGrowth float64 `json:"terminal_growth"`
	Reason         string  `json:"reason"`
}

// Snapshot copies the matrix into its wire form.
func (m *Matrix) Snapshot() Snapshot {
	s := Snapshot{
		WACCs:           m.WACCs(),
		TerminalGrowths: m.TerminalGrowths(),
		RowLabels:       m.RowLabels(),
		ColLabels:       m.ColLabels(),
		Scale:           m.scale,
		Values:          make([][]*float64, m.Rows()),
	}
	for r := range s.Values {
		s.Values[r] = make([]*float64, m.Cols())
		for c := range s.Values[r] {
			if v, ok := m.Value(r, c); ok {
				s.Values[r][c] = &v
				continue
			}
			cell := m.At(r, c)
			s.Invalid = append(s.Invalid, InvalidCell{
				Row:            r,
				Col:            c,
				WACC:           cell.WACC,
				TerminalGrowth: cell.TerminalGrowth,
				Reason:         cell.Err.Error(),
			})
		}
	}
	return s
}

func (m *Matrix) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Snapshot())
}
