package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/fd1az/crosschain-arb/business/arbitrage"
	arbApp "github.com/fd1az/crosschain-arb/business/arbitrage/app"
	arbDI "github.com/fd1az/crosschain-arb/business/arbitrage/di"
	"github.com/fd1az/crosschain-arb/business/bridge"
	"github.com/fd1az/crosschain-arb/business/chain"
	chainApp "github.com/fd1az/crosschain-arb/business/chain/app"
	chainDI "github.com/fd1az/crosschain-arb/business/chain/di"
	"github.com/fd1az/crosschain-arb/business/market"
	"github.com/fd1az/crosschain-arb/internal/apm"
	"github.com/fd1az/crosschain-arb/internal/config"
	"github.com/fd1az/crosschain-arb/internal/health"
	"github.com/fd1az/crosschain-arb/internal/logger"
	"github.com/fd1az/crosschain-arb/internal/metrics"
	"github.com/fd1az/crosschain-arb/internal/monolith"
)

// runtime is a started application: modules registered and started.
type runtime struct {
	cfg     *config.Config
	log     logger.LoggerInterface
	closers []func(context.Context) error

	mgr    *chainApp.Manager
	engine *arbApp.Engine
	redis  *redis.Client
}

// newLogger builds the process logger. w receives output; events may be nil.
func newLogger(c *config.Config, w io.Writer, events *logger.Events) *logger.Logger {
	level := logger.ParseLevel(c.App.LogLevel)
	if c.App.LogFormat == "console" {
		return logger.NewConsole(w, level, c.App.Name, events)
	}
	return logger.New(w, level, c.App.Name, events)
}

// bootstrap creates the monolith and starts every module in dependency
// order. Telemetry is installed first so module meters and tracers bind to
// the real providers.
func bootstrap(ctx context.Context, c *config.Config, log logger.LoggerInterface, consoleSpans io.Writer, reporters ...arbApp.Reporter) (*runtime, error) {
	rt := &runtime{cfg: c, log: log}

	if err := rt.setupTelemetry(ctx, consoleSpans); err != nil {
		_ = rt.close(ctx)
		return nil, err
	}

	mono, err := monolith.New(ctx, c, log)
	if err != nil {
		_ = rt.close(ctx)
		return nil, fmt.Errorf("failed to create monolith: %w", err)
	}
	rt.closers = append(rt.closers, func(context.Context) error { return mono.Close() })

	modules := []monolith.Module{
		&chain.Module{},
		&bridge.Module{},
		&market.Module{},
		&arbitrage.Module{Reporters: reporters},
	}

	if err := mono.RegisterModules(modules...); err != nil {
		_ = rt.close(ctx)
		return nil, fmt.Errorf("failed to register modules: %w", err)
	}
	if err := mono.StartModules(ctx, modules...); err != nil {
		_ = rt.close(ctx)
		return nil, fmt.Errorf("failed to start modules: %w", err)
	}

	rt.mgr = chainDI.GetManager(mono.Services())
	rt.engine = arbDI.GetEngine(mono.Services())
	rt.redis = mono.Redis()
	return rt, nil
}

func (rt *runtime) setupTelemetry(ctx context.Context, consoleSpans io.Writer) error {
	t := rt.cfg.Telemetry
	if !t.Enabled {
		return nil
	}
	name := t.ServiceName
	if name == "" {
		name = rt.cfg.App.Name
	}

	tp, err := apm.NewTraceProvider(ctx, rt.log, apm.Options{
		ServiceName:   name,
		Provider:      apm.Provider(t.TraceExporter),
		Endpoint:      t.Endpoint,
		ConsoleWriter: consoleSpans,
	})
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	rt.closers = append(rt.closers, func(context.Context) error { return tp.Stop() })

	opts := []metrics.OptionFn{
		metrics.WithServiceName(name),
		metrics.WithProviderConfig(metrics.NewPrometheusConfig()),
	}
	if t.OTLPMetrics && t.Endpoint != "" {
		opts = append(opts, metrics.WithProviderConfig(metrics.NewOtelCollectorConfig(t.Endpoint, nil, true)))
	}
	mp, err := metrics.NewMetricProvider(ctx, opts...)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	rt.closers = append(rt.closers, mp.Shutdown)

	if t.MetricsPort > 0 {
		srv := metrics.NewPrometheusServer(t.MetricsPort)
		errs := srv.Start()
		go func() {
			if err, ok := <-errs; ok && err != nil {
				rt.log.Error(ctx, "prometheus server stopped", "error", err, "port", t.MetricsPort)
			}
		}()
		rt.closers = append(rt.closers, srv.Stop)
		rt.log.Info(ctx, "prometheus metrics server started", "port", t.MetricsPort)
	}

	rt.log.Info(ctx, "telemetry initialized", "traces", t.TraceExporter, "otlp_metrics", t.OTLPMetrics)
	return nil
}

// startHealth serves /health, /ready and /live. Readiness needs at least
// two available chains since a scan needs a pair.
func (rt *runtime) startHealth(ctx context.Context) {
	if !rt.cfg.Health.Enabled {
		return
	}
	srv := health.NewServer(rt.cfg.Health.Port, build.Version, rt.log)

	for _, name := range rt.mgr.Chains() {
		srv.RegisterCheck("chain:"+name, func(context.Context) (bool, string) {
			h, ok := rt.mgr.Health(name)
			if !ok {
				return false, "not registered"
			}
			if !h.IsHealthy {
				return false, h.LastError
			}
			return true, fmt.Sprintf("block %d, %dms", h.LastObservedBlock, h.LatencyMs)
		})
	}
	if rt.redis != nil {
		srv.RegisterCheck("redis", func(ctx context.Context) (bool, string) {
			if err := rt.redis.Ping(ctx).Err(); err != nil {
				return false, err.Error()
			}
			return true, ""
		})
	}
	srv.SetReadiness(func(context.Context) (bool, string) {
		n := len(rt.mgr.AvailableChains())
		return n >= 2, fmt.Sprintf("%d chains available", n)
	})

	if err := srv.Start(); err != nil {
		rt.log.Warn(ctx, "failed to start health server", "error", err)
		return
	}
	rt.closers = append(rt.closers, srv.Stop)
	rt.log.Info(ctx, "health server started", "port", rt.cfg.Health.Port)
}

// replayHealth reports every chain's current status to the engine's
// reporters; changes that happened during startup predate the dispatcher.
func (rt *runtime) replayHealth(ctx context.Context) {
	for _, s := range rt.mgr.Snapshot() {
		rt.engine.ChainHealthChanged(ctx, s.Handle.Name, s.Health)
	}
}

// close releases resources in reverse order of acquisition.
func (rt *runtime) close(ctx context.Context) error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}

func stderrLogger(c *config.Config) *logger.Logger {
	return newLogger(c, os.Stderr, nil)
}
