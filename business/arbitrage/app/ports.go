// Package app contains application services and port definitions for the arbitrage context.
package app

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/crosschain-arb/business/arbitrage/domain"
	bridgeDomain "github.com/fd1az/crosschain-arb/business/bridge/domain"
	chainDomain "github.com/fd1az/crosschain-arb/business/chain/domain"
	"github.com/fd1az/crosschain-arb/internal/asset"
)

// ChainView is the read side of the connectivity manager.
type ChainView interface {
	GetHandle(chain string) (chainDomain.ChainHandle, bool)
	IsAvailable(chain string) bool
	RequireAvailable(chain string) error
	Health(chain string) (chainDomain.HealthStatus, bool)
	AvailableChains() []string
}

// GasPricer returns the effective gas price in gwei for a tier.
type GasPricer interface {
	GetOptimalGasPrice(ctx context.Context, chain string, tier chainDomain.GasTier) (decimal.Decimal, error)
}

// PriceSource is the market data gateway as seen by the scanner and analyzer.
type PriceSource interface {
	GetPrice(ctx context.Context, chain string, token common.Address) (decimal.Decimal, error)
	NativePrice(ctx context.Context, chain string) (decimal.Decimal, error)
}

// BridgeSelector picks the cheapest eligible bridge for a route.
type BridgeSelector interface {
	Cheapest(from, to string, amount decimal.Decimal) (bridgeDomain.Bridge, error)
}

// AssetResolver resolves token metadata per chain.
type AssetResolver interface {
	GetBySymbolAndChain(symbol string, chainID uint64) (*asset.Asset, bool)
	GetToken(chainID uint64, address common.Address) (*asset.Asset, bool)
}

// ExecutionLock extends single-flight across processes. Acquire fails with
// ALREADY_EXECUTING when another holder owns key.
type ExecutionLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// Clock abstracts time for expiry decisions.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// NoLock is the ExecutionLock used when no shared lock is configured.
type NoLock struct{}

func (NoLock) Acquire(context.Context, string, time.Duration) (func(), error) {
	return func() {}, nil
}

// Reporter observes engine events. Calls arrive from a single goroutine in
// emission order; each event is delivered at least once, so handlers must
// be idempotent.
type Reporter interface {
	// Start initializes the reporter.
	Start(ctx context.Context) error

	// OpportunityFound is called for every opportunity a scan stores.
	OpportunityFound(ctx context.Context, opp domain.Opportunity)

	// ExecutionFinished is called once per execution attempt.
	ExecutionFinished(ctx context.Context, result domain.ExecutionResult)

	// ChainHealthChanged is called when a chain's availability or active
	// endpoint changes.
	ChainHealthChanged(ctx context.Context, chain string, status chainDomain.HealthStatus)

	// Stop gracefully shuts down the reporter.
	Stop() error
}
