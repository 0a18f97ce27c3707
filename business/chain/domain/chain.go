// Package domain contains the core domain types for the chain connectivity context.
package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Layer is the network layer of a chain.
type Layer string

const (
	LayerL1 Layer = "L1"
	LayerL2 Layer = "L2"
)

// GasTier selects which configured floor applies to a gas price.
type GasTier string

const (
	GasTierStandard GasTier = "standard"
	GasTierFast     GasTier = "fast"
	GasTierInstant  GasTier = "instant"
)

// GasFloors are the per-tier minimum gas prices in gwei.
type GasFloors struct {
	Standard decimal.Decimal
	Fast     decimal.Decimal
	Instant  decimal.Decimal
}

// For returns the floor for a tier. Unknown tiers use the standard floor.
func (f GasFloors) For(tier GasTier) decimal.Decimal {
	switch tier {
	case GasTierFast:
		return f.Fast
	case GasTierInstant:
		return f.Instant
	default:
		return f.Standard
	}
}

// ChainHandle identifies one supported network. It is immutable once built.
type ChainHandle struct {
	Name            string
	ChainID         uint64
	NativeCurrency  string
	WrappedNative   common.Address
	Layer           Layer
	HighGasVariance bool
	Confirmations   uint64
	GasFloors       GasFloors

	// Endpoints lists the primary RPC endpoint first, then backups.
	Endpoints []string

	QuoterAddress common.Address
	RouterAddress common.Address
	QuoteToken    common.Address
}

func (h ChainHandle) IsL2() bool { return h.Layer == LayerL2 }

// HealthStatus is the last observed health of a chain.
type HealthStatus struct {
	IsHealthy         bool
	LatencyMs         int64
	LastObservedBlock uint64
	CurrentGasPrice   decimal.Decimal // gwei
	ObservedAt        time.Time
	ActiveEndpoint    string
	LastError         string
}

// ProbeResult is what one endpoint reported during a health probe.
type ProbeResult struct {
	ChainID     uint64
	BlockNumber uint64
}

// ChainSnapshot pairs a handle with its current health.
type ChainSnapshot struct {
	Handle ChainHandle
	Health HealthStatus
}
