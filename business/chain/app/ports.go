// Package app contains the connectivity manager and port definitions for the chain context.
package app

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fd1az/crosschain-arb/business/chain/domain"
)

// Prober checks network identity and block height on one endpoint.
type Prober interface {
	Probe(ctx context.Context, chain domain.ChainHandle, endpoint string) (domain.ProbeResult, error)
}

// GasOracle samples the live gas price (gwei) from one endpoint.
type GasOracle interface {
	Sample(ctx context.Context, chain domain.ChainHandle, endpoint string) (decimal.Decimal, error)
}

// ChainClient submits swaps and reports their status.
type ChainClient interface {
	SubmitTransaction(ctx context.Context, chain string, spec domain.TxSpec) (domain.TxHandle, error)
	GetStatus(ctx context.Context, h domain.TxHandle) (domain.TxReceipt, error)
}

// EndpointResolver lets adapters follow failover.
type EndpointResolver interface {
	GetHandle(chain string) (domain.ChainHandle, bool)
	ActiveEndpoint(chain string) (string, bool)
}

// HealthListener is notified when a chain's availability or active endpoint
// changes. It is called outside the manager's lock.
type HealthListener interface {
	ChainHealthChanged(ctx context.Context, chain string, status domain.HealthStatus)
}
