package valuation

import (
	"equity_valuation/pkg/core/assumption"
)

// CostOfCapitalInput parameters for deriving the discount rate
type CostOfCapitalInput struct {
	RiskFreeRate     float64 `json:"risk_free_rate" yaml:"risk_free_rate" validate:"finite"`
	Beta             float64 `json:"beta" yaml:"beta" validate:"finite"`
	MarketReturn     float64 `json:"market_return" yaml:"market_return" validate:"finite"`
	PreTaxCostOfDebt float64 `json:"pre_tax_cost_of_debt" yaml:"pre_tax_cost_of_debt" validate:"finite"`
	TaxRate          float64 `json:"tax_rate" yaml:"tax_rate" validate:"finite,gte=0,lt=1"`
	DebtWeight       float64 `json:"debt_weight" yaml:"debt_weight" validate:"finite,gte=0,lte=1"` // D/V
}

// CostOfCapitalResult holds the calculated rates
type CostOfCapitalResult struct {
	CostOfEquity       float64 `json:"cost_of_equity"`
	AfterTaxCostOfDebt float64 `json:"after_tax_cost_of_debt"`
	EquityWeight       float64 `json:"equity_weight"`
	DebtWeight         float64 `json:"debt_weight"`
	WACC               float64 `json:"wacc"`
}

// CostOfCapital computes the Weighted Average Cost of Capital using CAPM.
func CostOfCapital(input CostOfCapitalInput) (CostOfCapitalResult, error) {
	if err := assumption.ValidateStruct(input); err != nil {
		return CostOfCapitalResult{}, err
	}

	// 1. Cost of Equity (CAPM)
	// Ke = Rf + β × (Rm − Rf)
	ke := input.RiskFreeRate + input.Beta*(input.MarketReturn-input.RiskFreeRate)

	// 2. Cost of Debt (After-tax)
	// Kd = PreTaxKd × (1 − t)
	kd := input.PreTaxCostOfDebt * (1 - input.TaxRate)

	// 3. Weights
	wd := input.DebtWeight
	we := 1 - wd

	// 4. WACC
	wacc := (ke * we) + (kd * wd)

	return CostOfCapitalResult{
		CostOfEquity:       ke,
		AfterTaxCostOfDebt: kd,
		EquityWeight:       we,
		DebtWeight:         wd,
		WACC:               wacc,
	}, nil
}
