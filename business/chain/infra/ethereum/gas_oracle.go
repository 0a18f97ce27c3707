package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/crosschain-arb/business/chain/app"
	"github.com/fd1az/crosschain-arb/business/chain/domain"
	"github.com/fd1az/crosschain-arb/internal/apperror"
	"github.com/fd1az/crosschain-arb/internal/cache"
	"github.com/fd1az/crosschain-arb/internal/config"
	"github.com/fd1az/crosschain-arb/internal/logger"
)

var _ app.GasOracle = (*GasOracle)(nil)

// GasOracleConfig holds configuration for the gas oracle.
type GasOracleConfig struct {
	CacheTTL    time.Duration   // how long a sample is reused, per chain
	MaxGasPrice decimal.Decimal // samples above this (gwei) are clamped; zero disables
}

// DefaultGasOracleConfig returns sensible defaults.
func DefaultGasOracleConfig() GasOracleConfig {
	return GasOracleConfig{
		CacheTTL:    12 * time.Second, // ~1 L1 block
		MaxGasPrice: decimal.NewFromInt(500),
	}
}

// GasOracleConfigFrom maps the connectivity config section.
func GasOracleConfigFrom(c config.ConnectivityConfig) GasOracleConfig {
	return GasOracleConfig{CacheTTL: c.GasCacheTTL, MaxGasPrice: c.MaxGasPriceGwei}
}

type gasOracleMetrics struct {
	gasPriceFetches metric.Int64Counter
	gasPriceGwei    metric.Float64Gauge
	cacheHits       metric.Int64Counter
	cacheMisses     metric.Int64Counter
}

// GasOracle samples eth_gasPrice per chain, with a short per-chain cache.
type GasOracle struct {
	config GasOracleConfig
	pool   *ClientPool
	logger logger.LoggerInterface

	priceCache *cache.Cache[string, decimal.Decimal]

	tracer  trace.Tracer
	metrics *gasOracleMetrics
}

// NewGasOracle creates a new gas oracle instance.
func NewGasOracle(cfg GasOracleConfig, pool *ClientPool, log logger.LoggerInterface) (*GasOracle, error) {
	g := &GasOracle{
		config:     cfg,
		pool:       pool,
		logger:     log,
		priceCache: cache.New[string, decimal.Decimal](5 * time.Minute),
		tracer:     otel.Tracer(tracerName),
	}

	if err := g.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return g, nil
}

func (g *GasOracle) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	g.metrics = &gasOracleMetrics{}

	g.metrics.gasPriceFetches, err = meter.Int64Counter(
		"gas_price_fetches_total",
		metric.WithDescription("Total gas price fetch attempts"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return err
	}

	g.metrics.gasPriceGwei, err = meter.Float64Gauge(
		"gas_price_gwei",
		metric.WithDescription("Current gas price in gwei"),
		metric.WithUnit("gwei"),
	)
	if err != nil {
		return err
	}

	g.metrics.cacheHits, err = meter.Int64Counter(
		"gas_cache_hits_total",
		metric.WithDescription("Gas price cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return err
	}

	g.metrics.cacheMisses, err = meter.Int64Counter(
		"gas_cache_misses_total",
		metric.WithDescription("Gas price cache misses"),
		metric.WithUnit("{miss}"),
	)
	return err
}

// Sample returns the chain's gas price in gwei.
func (g *GasOracle) Sample(ctx context.Context, chain domain.ChainHandle, endpoint string) (decimal.Decimal, error) {
	ctx, span := g.tracer.Start(ctx, "gas.sample",
		trace.WithAttributes(attribute.String("chain", chain.Name)),
	)
	defer span.End()

	chainAttr := metric.WithAttributes(attribute.String("chain", chain.Name))

	if price, found := g.priceCache.Get(ctx, chain.Name); found {
		g.metrics.cacheHits.Add(ctx, 1, chainAttr)
		span.AddEvent("cache_hit")
		return price, nil
	}

	g.metrics.cacheMisses.Add(ctx, 1, chainAttr)
	g.metrics.gasPriceFetches.Add(ctx, 1, chainAttr)

	wei, err := call(ctx, g.pool, endpoint, func(c *ethclient.Client) (*big.Int, error) {
		return c.SuggestGasPrice(ctx)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return decimal.Zero, apperror.New(apperror.CodeGasPriceUnavailable,
			apperror.WithCause(err),
			apperror.WithContext(chain.Name))
	}

	gwei := WeiToGwei(wei)

	if g.config.MaxGasPrice.IsPositive() && gwei.GreaterThan(g.config.MaxGasPrice) {
		span.AddEvent("gas_price_exceeded_max",
			trace.WithAttributes(attribute.String("gwei", gwei.String())))
		g.logger.Warn(ctx, "gas price exceeds max", "chain", chain.Name, "gwei", gwei.String())
		gwei = g.config.MaxGasPrice
	}

	g.priceCache.Set(ctx, chain.Name, gwei, g.config.CacheTTL)

	f, _ := gwei.Float64()
	g.metrics.gasPriceGwei.Record(ctx, f, chainAttr)

	span.SetAttributes(attribute.String("gwei", gwei.String()))
	span.SetStatus(codes.Ok, "fetched")

	return gwei, nil
}

// Close stops the cache janitor.
func (g *GasOracle) Close() {
	g.priceCache.Close()
}

// WeiToGwei converts a wei amount to gwei.
func WeiToGwei(wei *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(wei, -9)
}

// WeiToEther converts a wei amount to whole native coin units.
func WeiToEther(wei *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(wei, -18)
}
