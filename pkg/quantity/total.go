package quantity

import "github.com/shopspring/decimal"

// DefaultLossPercent applies when a material carries no explicit loss.
const DefaultLossPercent = 10.0

// Scale is the number of decimal places kept on stored totals.
const Scale = 4

// Column limits: loss_percent is numeric(7,4), dim_qty and total numeric(14,4).
const (
	MaxLossPercent = 999.9999
	MaxAmount      = 9999999999.9999
)

var hundred = decimal.NewFromInt(100)

// Total returns dimQty grossed up by lossPercent, rounded to Scale places.
func Total(dimQty, lossPercent float64) float64 {
	factor := decimal.NewFromInt(1).Add(decimal.NewFromFloat(lossPercent).Div(hundred))
	total, _ := decimal.NewFromFloat(dimQty).Mul(factor).Round(Scale).Float64()
	return total
}

// Round trims value to Scale decimal places.
func Round(value float64) float64 {
	rounded, _ := decimal.NewFromFloat(value).Round(Scale).Float64()
	return rounded
}

// Check returns a message per column that dimQty and lossPercent, or the
// total derived from them, would not fit. It returns nil when all fit.
func Check(dimQty, lossPercent float64) map[string]string {
	details := map[string]string{}
	dim, loss := Round(dimQty), Round(lossPercent)
	switch {
	case dim < 0:
		details["dim_qty"] = "must be greater than or equal to 0"
	case dim > MaxAmount:
		details["dim_qty"] = "must be at most 9999999999.9999"
	}
	switch {
	case loss < 0:
		details["loss_percent"] = "must be greater than or equal to 0"
	case loss > MaxLossPercent:
		details["loss_percent"] = "must be at most 999.9999"
	}
	if len(details) == 0 && Total(dim, loss) > MaxAmount {
		details["total"] = "must be at most 9999999999.9999"
	}
	if len(details) == 0 {
		return nil
	}
	return details
}
