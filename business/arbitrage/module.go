// Package arbitrage implements the cross-chain arbitrage bounded context.
package arbitrage

import (
	"context"

	"github.com/fd1az/crosschain-arb/business/arbitrage/app"
	arbDI "github.com/fd1az/crosschain-arb/business/arbitrage/di"
	arbRedis "github.com/fd1az/crosschain-arb/business/arbitrage/infra/redis"
	bridgeDI "github.com/fd1az/crosschain-arb/business/bridge/di"
	chainDI "github.com/fd1az/crosschain-arb/business/chain/di"
	marketDI "github.com/fd1az/crosschain-arb/business/market/di"
	"github.com/fd1az/crosschain-arb/internal/di"
	"github.com/fd1az/crosschain-arb/internal/monolith"
)

// Module implements the arbitrage bounded context. Reporters are chosen by
// the caller (console or TUI); the redis stream reporter is added when
// redis is enabled.
type Module struct {
	Reporters []app.Reporter
}

// RegisterServices registers all arbitrage services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, arbDI.Analyzer, func(sr di.ServiceRegistry) *app.Analyzer {
		cfg := monolith.ConfigFrom(sr)
		mgr := chainDI.GetManager(sr)
		return app.NewAnalyzer(
			app.AnalyzerConfigFrom(cfg.Analyzer),
			mgr,
			mgr,
			marketDI.GetGateway(sr),
			bridgeDI.GetRegistry(sr),
			app.SystemClock,
		)
	})

	di.RegisterToken(c, arbDI.Scanner, func(sr di.ServiceRegistry) *app.Scanner {
		cfg := monolith.ConfigFrom(sr)
		s, err := app.NewScanner(
			app.ScannerConfigFrom(cfg.Scanner),
			marketDI.GetGateway(sr),
			arbDI.GetAnalyzer(sr),
			monolith.LoggerFrom(sr),
		)
		if err != nil {
			panic("failed to create scanner: " + err.Error())
		}
		return s
	})

	di.RegisterToken(c, arbDI.Store, func(sr di.ServiceRegistry) *app.Store {
		cfg := monolith.ConfigFrom(sr)
		ecfg := app.EngineConfigFrom(cfg.Scanner, cfg.Executor)
		return app.NewStore(app.SystemClock, ecfg.ArchiveSize)
	})

	// A shared lock only matters when several processes share one wallet.
	di.RegisterToken(c, arbDI.Lock, func(sr di.ServiceRegistry) app.ExecutionLock {
		if rdb := monolith.RedisFrom(sr); rdb != nil {
			return arbRedis.NewLock(rdb, monolith.LoggerFrom(sr))
		}
		return app.NoLock{}
	})

	di.RegisterToken(c, arbDI.Orchestrator, func(sr di.ServiceRegistry) *app.Orchestrator {
		cfg := monolith.ConfigFrom(sr)
		mgr := chainDI.GetManager(sr)
		o, err := app.NewOrchestrator(
			app.OrchestratorConfigFrom(cfg.Executor, cfg.Redis, cfg.Market),
			app.OrchestratorDeps{
				Chains:  mgr,
				Bridges: bridgeDI.GetRegistry(sr),
				Assets:  monolith.AssetsFrom(sr),
				Tx:      chainDI.GetChainClient(sr),
				Bridge:  bridgeDI.GetBridgeClient(sr),
				Store:   arbDI.GetStore(sr),
				Lock:    arbDI.GetLock(sr),
				Clock:   app.SystemClock,
				Logger:  monolith.LoggerFrom(sr),
			},
		)
		if err != nil {
			panic("failed to create execution orchestrator: " + err.Error())
		}
		return o
	})

	di.RegisterToken(c, arbDI.Reporters, func(sr di.ServiceRegistry) []app.Reporter {
		cfg := monolith.ConfigFrom(sr)
		reporters := append([]app.Reporter(nil), m.Reporters...)
		if rdb := monolith.RedisFrom(sr); rdb != nil && cfg.Redis.EventStream != "" {
			reporters = append(reporters, arbRedis.NewStreamReporter(
				rdb,
				cfg.Redis.EventStream,
				cfg.Redis.StreamMaxLen,
				monolith.LoggerFrom(sr),
			))
		}
		return reporters
	})

	di.RegisterToken(c, arbDI.Engine, func(sr di.ServiceRegistry) *app.Engine {
		cfg := monolith.ConfigFrom(sr)
		return app.NewEngine(
			app.EngineConfigFrom(cfg.Scanner, cfg.Executor),
			app.TrackedTokensFrom(cfg.Tokens),
			chainDI.GetManager(sr),
			arbDI.GetScanner(sr),
			arbDI.GetStore(sr),
			arbDI.GetOrchestrator(sr),
			monolith.LoggerFrom(sr),
			arbDI.GetReporters(sr)...,
		)
	})

	return nil
}

// Startup builds the engine and subscribes it to chain health changes. The
// engine's loops are started by the command that needs them.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	engine := arbDI.GetEngine(mono.Services())
	chainDI.GetManager(mono.Services()).Subscribe(engine)

	cfg := mono.Config()
	_, shared := arbDI.GetLock(mono.Services()).(*arbRedis.Lock)
	mono.Logger().Info(ctx, "arbitrage module started",
		"tokens", len(app.TrackedTokensFrom(cfg.Tokens)),
		"auto_execute", cfg.Executor.AutoExecute,
		"shared_lock", shared,
		"reporters", len(arbDI.GetReporters(mono.Services())),
	)
	return nil
}
