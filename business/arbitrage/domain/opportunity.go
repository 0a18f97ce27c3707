// Package domain contains the core domain types for the arbitrage context.
package domain

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// TrackedToken is a token scanned across chains.
type TrackedToken struct {
	Symbol      string
	TradeAmount decimal.Decimal
	Addresses   map[string]common.Address // chain name -> token address
}

// AddressOn returns the token address on chain.
func (t TrackedToken) AddressOn(chain string) (common.Address, bool) {
	addr, ok := t.Addresses[chain]
	return addr, ok
}

// Candidate is a raw spread that passed the scanner's threshold.
type Candidate struct {
	Token         TrackedToken
	Direction     Direction
	SourcePrice   decimal.Decimal
	TargetPrice   decimal.Decimal
	TradeAmount   decimal.Decimal
	SpreadPercent decimal.Decimal
}

// Opportunity is a fully costed candidate. It is never mutated after
// creation except to append execution results.
type Opportunity struct {
	ID            string
	TokenSymbol   string
	SourceToken   common.Address
	TargetToken   common.Address
	SourceChain   string
	TargetChain   string
	SourcePrice   decimal.Decimal
	TargetPrice   decimal.Decimal
	TradeAmount   decimal.Decimal
	SpreadPercent decimal.Decimal

	Profit  ProfitResult
	GasCost GasCost

	SourceGasGwei     decimal.Decimal
	TargetGasGwei     decimal.Decimal
	SourceNativePrice decimal.Decimal
	TargetNativePrice decimal.Decimal

	Bridge              string
	BridgeFee           decimal.Decimal // quote units, part of GasCost.Bridge
	BridgeEstimatedTime time.Duration

	RiskScore  int
	Complexity Complexity

	CreatedAt time.Time
	ExpiresAt time.Time

	Executions []ExecutionResult
}

// OpportunityID builds {source}-{target}-{symbol}-{createdAt unix nanos}.
func OpportunityID(source, target, symbol string, createdAt time.Time) string {
	return fmt.Sprintf("%s-%s-%s-%d", source, target, symbol, createdAt.UnixNano())
}

// RouteKey identifies the chain pair and token regardless of when the
// opportunity was seen.
func (o *Opportunity) RouteKey() string {
	return o.SourceChain + "-" + o.TargetChain + "-" + o.TokenSymbol
}

func (o *Opportunity) Direction() Direction {
	return Direction{Source: o.SourceChain, Target: o.TargetChain}
}

// NetProfit is gross profit minus total gas.
func (o *Opportunity) NetProfit() decimal.Decimal { return o.Profit.NetProfit }

// IsExpired reports whether the TTL has elapsed at now.
func (o *Opportunity) IsExpired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}

// TimeLeft is the remaining TTL, zero once expired.
func (o *Opportunity) TimeLeft(now time.Time) time.Duration {
	if o.IsExpired(now) {
		return 0
	}
	return o.ExpiresAt.Sub(now)
}

// IsProfitable returns true if this opportunity has positive net profit.
func (o *Opportunity) IsProfitable() bool {
	return o.Profit.IsProfitable()
}
