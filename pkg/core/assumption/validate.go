package assumption

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is safe for concurrent use once its validations are registered.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report json field names so errors read like the case files.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field()
		switch f.Kind() {
		case reflect.Float32, reflect.Float64:
			return IsFinite(f.Float())
		}
		return true
	})
	return v
}

// IsFinite reports whether f is neither NaN nor ±Inf.
func IsFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// ValidateStruct runs the struct tags on v and converts the first failure
// into an *Error of kind ErrInvalidAssumption.
func ValidateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidAssumption, err)
	}
	fe := verrs[0]
	rule := fe.Tag()
	if fe.Param() != "" {
		rule += "=" + fe.Param()
	}
	return Invalid(fe.Field(), toFloat(fe.Value()), rule)
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	}
	return math.NaN()
}

// =============================================================================
// OPTIONAL RANGE POLICY
// =============================================================================

// RangePolicy is the stricter "sane economics" check. It is opt-in: the engine
// only applies it when a caller configures one.
type RangePolicy struct {
	MinGrowth         float64 `json:"min_growth" yaml:"min_growth"`
	MaxGrowth         float64 `json:"max_growth" yaml:"max_growth"`
	MinTerminalGrowth float64 `json:"min_terminal_growth" yaml:"min_terminal_growth"`
	MaxTerminalGrowth float64 `json:"max_terminal_growth" yaml:"max_terminal_growth"`
	MinWACC           float64 `json:"min_wacc" yaml:"min_wacc"`
	MaxWACC           float64 `json:"max_wacc" yaml:"max_wacc"`
	MaxMargin         float64 `json:"max_margin" yaml:"max_margin"`
}

// DefaultRangePolicy returns bounds wide enough for high-growth companies
// while still catching percent-vs-decimal typos (30 instead of 0.30).
func DefaultRangePolicy() RangePolicy {
	return RangePolicy{
		MinGrowth:         -0.5,
		MaxGrowth:         1.0,
		MinTerminalGrowth: -0.02,
		MaxTerminalGrowth: 0.06,
		MinWACC:           0.0,
		MaxWACC:           0.30,
		MaxMargin:         1.0,
	}
}

// Check returns an ErrOutOfRange error for the first field outside bounds.
func (p RangePolicy) Check(a Assumptions) error {
	checks := []struct {
		field    string
		value    float64
		min, max float64
	}{
		{"year_one_growth", a.YearOneGrowth, p.MinGrowth, p.MaxGrowth},
		{"terminal_growth", a.TerminalGrowth, p.MinTerminalGrowth, p.MaxTerminalGrowth},
		{"wacc", a.WACC, p.MinWACC, p.MaxWACC},
		{"initial_fcf_margin", a.InitialFCFMargin, -p.MaxMargin, p.MaxMargin},
	}
	for _, c := range checks {
		if c.value < c.min || c.value > c.max {
			return OutOfRange(c.field, c.value, fmt.Sprintf("range=[%g,%g]", c.min, c.max))
		}
	}
	return nil
}
