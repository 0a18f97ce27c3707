package domain

import (
	"github.com/shopspring/decimal"
)

// Complexity is a coarse operational classification of an opportunity.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

const maxRiskScore = 100

// RiskWeights are the additive risk heuristics. Scores are points out of 100.
type RiskWeights struct {
	HighSpreadPercent   decimal.Decimal
	MediumSpreadPercent decimal.Decimal
	HighSpreadScore     int
	MediumSpreadScore   int
	LowSpreadScore      int
	VolatileChainScore  int
	BridgeScore         int
	LiquidityScore      int
}

// DefaultRiskWeights returns the stock heuristics.
func DefaultRiskWeights() RiskWeights {
	return RiskWeights{
		HighSpreadPercent:   decimal.NewFromInt(5),
		MediumSpreadPercent: decimal.NewFromInt(2),
		HighSpreadScore:     30,
		MediumSpreadScore:   15,
		LowSpreadScore:      5,
		VolatileChainScore:  20,
		BridgeScore:         15,
		LiquidityScore:      10,
	}
}

// ChainTraits are the chain properties risk and complexity look at.
type ChainTraits struct {
	L2              bool
	HighGasVariance bool
}

// ScoreRisk adds the spread, chain, bridge and liquidity factors and clamps
// the result to [0, 100]. Large spreads score higher because they are more
// often stale than real.
func ScoreRisk(w RiskWeights, spreadPercent decimal.Decimal, source, target ChainTraits) int {
	score := 0

	spread := spreadPercent.Abs()
	switch {
	case spread.GreaterThan(w.HighSpreadPercent):
		score += w.HighSpreadScore
	case spread.GreaterThan(w.MediumSpreadPercent):
		score += w.MediumSpreadScore
	default:
		score += w.LowSpreadScore
	}

	for _, c := range []ChainTraits{source, target} {
		if c.HighGasVariance {
			score += w.VolatileChainScore
		}
	}

	score += w.BridgeScore + w.LiquidityScore

	return min(max(score, 0), maxRiskScore)
}

// ClassifyComplexity is high when either leg runs on a volatile-gas chain,
// medium when both legs are on L2s, low otherwise.
func ClassifyComplexity(source, target ChainTraits) Complexity {
	switch {
	case source.HighGasVariance || target.HighGasVariance:
		return ComplexityHigh
	case source.L2 && target.L2:
		return ComplexityMedium
	default:
		return ComplexityLow
	}
}
