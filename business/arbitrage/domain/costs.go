package domain

import (
	"github.com/shopspring/decimal"
)

var (
	gweiToNative = decimal.New(1, -9)
	hundred      = decimal.NewFromInt(100)
)

// LegGasCost converts a gas price in gwei and a gas-unit estimate into quote
// units using the chain's native coin price.
func LegGasCost(gasPriceGwei decimal.Decimal, units uint64, nativePrice decimal.Decimal) decimal.Decimal {
	return gasPriceGwei.
		Mul(decimal.NewFromInt(int64(units))).
		Mul(gweiToNative).
		Mul(nativePrice)
}

// GasCost is the estimated cost of one opportunity in quote units. The
// bridge leg is paid on the source chain and includes the bridge's own fee.
type GasCost struct {
	Source decimal.Decimal
	Target decimal.Decimal
	Bridge decimal.Decimal
	Total  decimal.Decimal
}

// NewGasCost sums the three legs.
func NewGasCost(source, target, bridge decimal.Decimal) GasCost {
	return GasCost{
		Source: source,
		Target: target,
		Bridge: bridge,
		Total:  source.Add(target).Add(bridge),
	}
}

// ProfitResult is the estimated profitability of a trade. NetProfit and
// MarginPercent are always derived, never set independently.
type ProfitResult struct {
	Notional      decimal.Decimal
	GrossProfit   decimal.Decimal
	NetProfit     decimal.Decimal
	MarginPercent decimal.Decimal
}

// IsProfitable reports whether the trade clears gas.
func (p ProfitResult) IsProfitable() bool {
	return p.NetProfit.IsPositive()
}

// CalculateProfit prices a trade of tradeAmount tokens bought at sourcePrice
// and sold at targetPrice. All results are in quote units.
func CalculateProfit(sourcePrice, targetPrice, tradeAmount decimal.Decimal, gas GasCost) ProfitResult {
	notional := tradeAmount.Mul(sourcePrice)

	gross := decimal.Zero
	if sourcePrice.IsPositive() {
		gross = targetPrice.Sub(sourcePrice).Mul(notional).Div(sourcePrice)
	}
	net := gross.Sub(gas.Total)

	margin := decimal.Zero
	if notional.IsPositive() {
		margin = net.Div(notional).Mul(hundred)
	}

	return ProfitResult{
		Notional:      notional,
		GrossProfit:   gross,
		NetProfit:     net,
		MarginPercent: margin,
	}
}

// SpreadPercent is (target - source) / source * 100.
func SpreadPercent(sourcePrice, targetPrice decimal.Decimal) decimal.Decimal {
	if !sourcePrice.IsPositive() {
		return decimal.Zero
	}
	return targetPrice.Sub(sourcePrice).Div(sourcePrice).Mul(hundred)
}
