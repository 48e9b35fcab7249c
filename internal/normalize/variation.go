package normalize

import "github.com/shopspring/decimal"

// Variation computes final - open, truncated to 2 decimal places (the
// variation-column rounding rule in §4.2), returning nil when either
// side is nil so a missing component never fabricates a zero variation.
func Variation(open, final *decimal.Decimal) *decimal.Decimal {
	if open == nil || final == nil {
		return nil
	}
	v := final.Sub(*open).Truncate(2)
	return &v
}
