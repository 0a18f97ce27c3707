// Package chain implements the chain connectivity bounded context.
package chain

import (
	"context"

	"github.com/fd1az/crosschain-arb/business/chain/app"
	chainDI "github.com/fd1az/crosschain-arb/business/chain/di"
	"github.com/fd1az/crosschain-arb/business/chain/infra/ethereum"
	"github.com/fd1az/crosschain-arb/internal/di"
	"github.com/fd1az/crosschain-arb/internal/monolith"
)

// Module implements the chain bounded context.
type Module struct{}

// RegisterServices registers all chain services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, chainDI.ClientPool, func(sr di.ServiceRegistry) *ethereum.ClientPool {
		return ethereum.NewClientPool(monolith.LoggerFrom(sr))
	})

	di.RegisterToken(c, chainDI.Prober, func(sr di.ServiceRegistry) app.Prober {
		return ethereum.NewProber(chainDI.GetClientPool(sr))
	})

	di.RegisterToken(c, chainDI.GasOracle, func(sr di.ServiceRegistry) app.GasOracle {
		cfg := monolith.ConfigFrom(sr)
		oracle, err := ethereum.NewGasOracle(
			ethereum.GasOracleConfigFrom(cfg.Connectivity),
			chainDI.GetClientPool(sr),
			monolith.LoggerFrom(sr),
		)
		if err != nil {
			panic("failed to create gas oracle: " + err.Error())
		}
		return oracle
	})

	di.RegisterToken(c, chainDI.Manager, func(sr di.ServiceRegistry) *app.Manager {
		cfg := monolith.ConfigFrom(sr)
		mgr, err := app.NewManager(
			app.ManagerConfigFrom(cfg.Connectivity),
			chainDI.GetProber(sr),
			chainDI.GetGasOracle(sr),
			monolith.LoggerFrom(sr),
		)
		if err != nil {
			panic("failed to create connectivity manager: " + err.Error())
		}
		return mgr
	})

	// Without a wallet the pipeline still scans; execution aborts in phase 1.
	di.RegisterToken(c, chainDI.ChainClient, func(sr di.ServiceRegistry) app.ChainClient {
		cfg := monolith.ConfigFrom(sr)
		client, err := ethereum.NewTxClient(
			ethereum.DefaultTxClientConfig(cfg.Executor.PrivateKey),
			chainDI.GetClientPool(sr),
			chainDI.GetManager(sr),
			monolith.LoggerFrom(sr),
		)
		if err != nil {
			return app.DisabledClient{Reason: err}
		}
		return client
	})

	return nil
}

// Startup registers and probes every configured chain.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	mgr := chainDI.GetManager(mono.Services())
	if err := mgr.Initialize(ctx, app.HandlesFromConfig(mono.Config().Chains)); err != nil {
		return err
	}

	if _, disabled := chainDI.GetChainClient(mono.Services()).(app.DisabledClient); disabled {
		log.Warn(ctx, "executor wallet not configured, execution is disabled")
	}

	log.Info(ctx, "chain module started", "chains", len(mgr.Chains()), "available", len(mgr.AvailableChains()))
	return nil
}
