package emissions

import (
	"math"

	"soul-carbon/carbon-tracker-backend/pkg/apperrors"
)

// emissionFactors maps (type, category) to kg CO2e per unit.
var emissionFactors = map[string]map[string]float64{
	"travel": {
		"car_gasoline":         0.21, // per km
		"car_diesel":           0.17, // per km
		"flight_domestic":      0.25, // per km
		"flight_international": 0.15, // per km
		"train":                0.04, // per km
		"bus":                  0.08, // per km
	},
	"energy": {
		"electricity": 0.5, // per kWh
		"natural_gas": 2.0, // per cubic meter
		"heating_oil": 2.7, // per liter
	},
	"food": {
		"beef":       27, // per kg
		"pork":       12, // per kg
		"chicken":    6,  // per kg
		"fish":       5,  // per kg
		"vegetables": 2,  // per kg
	},
}

// CalculationResult describes a factor-table calculation.
type CalculationResult struct {
	Co2eKg     float64 `json:"co2e_kg"`
	FactorUsed float64 `json:"factor_used"`
	Method     string  `json:"method"`
}

// Calculate converts an activity amount to kg CO2e using the static factor
// table. Unknown (type, category) pairs fail clearly.
func Calculate(emissionType, category string, amount float64) (*CalculationResult, error) {
	factor, ok := emissionFactors[emissionType][category]
	if !ok {
		return nil, apperrors.Validation("unknown emission category: " + emissionType + "." + category)
	}

	co2e := math.Round(amount*factor*100) / 100
	return &CalculationResult{
		Co2eKg:     co2e,
		FactorUsed: factor,
		Method:     MethodInternal,
	}, nil
}

// SupportedCategories returns the factor table for client display.
func SupportedCategories() map[string]map[string]float64 {
	return emissionFactors
}
