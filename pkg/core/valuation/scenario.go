package valuation

import (
	"encoding/json"
	"fmt"

	"equity_valuation/pkg/core/assumption"
)

// ScenarioResult is one named pipeline run.
type ScenarioResult struct {
	Name        assumption.ScenarioName `json:"name"`
	Assumptions assumption.Assumptions  `json:"assumptions"`
	Result      Result                  `json:"result"`
}

// ScenarioSet is an ordered name → result mapping (bear, base, bull).
type ScenarioSet struct {
	entries []ScenarioResult
}

// NewScenarioSet builds a set from already computed results, keeping the
// canonical order regardless of argument order.
func NewScenarioSet(results ...ScenarioResult) ScenarioSet {
	var set ScenarioSet
	for _, name := range assumption.ScenarioOrder {
		for _, r := range results {
			if r.Name == name {
				set.entries = append(set.entries, r)
				break
			}
		}
	}
	return set
}

// Get returns the result for name.
func (s ScenarioSet) Get(name assumption.ScenarioName) (Result, bool) {
	for _, e := range s.entries {
		if e.Name == name {
			return e.Result, true
		}
	}
	return Result{}, false
}

// Entries returns a copy of the ordered entries.
func (s ScenarioSet) Entries() []ScenarioResult {
	out := make([]ScenarioResult, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of scenarios in the set.
func (s ScenarioSet) Len() int { return len(s.entries) }

// Monotonic reports bear EV <= base EV <= bull EV.
func (s ScenarioSet) Monotonic() bool {
	bear, ok1 := s.Get(assumption.Bear)
	base, ok2 := s.Get(assumption.Base)
	bull, ok3 := s.Get(assumption.Bull)
	if !ok1 || !ok2 || !ok3 {
		return false
	}
	return bear.EnterpriseValue <= base.EnterpriseValue && base.EnterpriseValue <= bull.EnterpriseValue
}

func (s ScenarioSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Entries())
}

// RunScenarios values each preset independently, in bear, base, bull order.
// Any invalid preset fails the whole call; no partial set is returned.
func (p *Pipeline) RunScenarios(presets assumption.Presets) (ScenarioSet, error) {
	if err := presets.Validate(); err != nil {
		return ScenarioSet{}, err
	}

	entries := make([]ScenarioResult, 0, len(assumption.ScenarioOrder))
	for _, name := range assumption.ScenarioOrder {
		a := presets[name]
		res, err := p.Run(a)
		if err != nil {
			return ScenarioSet{}, fmt.Errorf("scenario %s: %w", name, err)
		}
		p.log.Debug().
			Str("scenario", string(name)).
			Float64("wacc", a.WACC).
			Float64("terminal_growth", a.TerminalGrowth).
			Float64("enterprise_value", res.EnterpriseValue).
			Msg("scenario valued")
		entries = append(entries, ScenarioResult{Name: name, Assumptions: a, Result: res})
	}
	return ScenarioSet{entries: entries}, nil
}
