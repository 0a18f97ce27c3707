package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	chainApp "github.com/fd1az/crosschain-arb/business/chain/app"
	"github.com/fd1az/crosschain-arb/business/market/domain"
	"github.com/fd1az/crosschain-arb/internal/apperror"
	"github.com/fd1az/crosschain-arb/internal/asset"
	"github.com/fd1az/crosschain-arb/internal/circuitbreaker"
	"github.com/fd1az/crosschain-arb/internal/config"
	"github.com/fd1az/crosschain-arb/internal/logger"
	"github.com/fd1az/crosschain-arb/internal/ratelimit"
)

const (
	tracerName = "github.com/fd1az/crosschain-arb/business/market/app"
	meterName  = "github.com/fd1az/crosschain-arb/business/market/app"
)

// GatewayConfig tunes the gateway's protection of the upstream feed.
type GatewayConfig struct {
	RequestTimeout    time.Duration
	RequestsPerMinute int // per chain; <= 0 disables limiting
	Burst             int
	Source            string
}

// DefaultGatewayConfig returns sensible defaults.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		RequestTimeout:    4 * time.Second,
		RequestsPerMinute: 600,
		Burst:             10,
	}
}

// GatewayConfigFrom maps the market config section.
func GatewayConfigFrom(c config.MarketConfig) GatewayConfig {
	return GatewayConfig{
		RequestTimeout:    c.RequestTimeout,
		RequestsPerMinute: c.RequestsPerMinute,
		Burst:             c.Burst,
		Source:            c.Provider,
	}
}

type gatewayMetrics struct {
	requests metric.Int64Counter
	misses   metric.Int64Counter
	latency  metric.Float64Histogram
}

// Gateway is the consumer side of the market data service. It rate limits
// per chain, bounds every call with a timeout, and remembers the last
// observed price per token for display.
type Gateway struct {
	config  GatewayConfig
	feed    PriceFeed
	chains  chainApp.EndpointResolver
	assets  *asset.Registry
	limiter *ratelimit.Keyed
	logger  logger.LoggerInterface

	mu       sync.RWMutex
	last     map[domain.Key]domain.Price
	breakers map[string]*circuitbreaker.CircuitBreaker[decimal.Decimal]

	tracer  trace.Tracer
	metrics *gatewayMetrics
}

// NewGateway creates a gateway over feed.
func NewGateway(cfg GatewayConfig, feed PriceFeed, chains chainApp.EndpointResolver, assets *asset.Registry, log logger.LoggerInterface) (*Gateway, error) {
	g := &Gateway{
		config:   cfg,
		feed:     feed,
		chains:   chains,
		assets:   assets,
		limiter:  ratelimit.NewKeyed(cfg.RequestsPerMinute, cfg.Burst),
		logger:   log,
		last:     make(map[domain.Key]domain.Price),
		breakers: make(map[string]*circuitbreaker.CircuitBreaker[decimal.Decimal]),
		tracer:   otel.Tracer(tracerName),
	}
	if err := g.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return g, nil
}

func (g *Gateway) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	g.metrics = &gatewayMetrics{}

	g.metrics.requests, err = meter.Int64Counter(
		"market_price_requests_total",
		metric.WithDescription("Price requests by chain"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	g.metrics.misses, err = meter.Int64Counter(
		"market_price_unavailable_total",
		metric.WithDescription("Price requests that returned no price"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	g.metrics.latency, err = meter.Float64Histogram(
		"market_price_latency_ms",
		metric.WithDescription("Price request latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	return err
}

// GetPrice returns the token price on chain. Every failure is reported as
// PRICE_UNAVAILABLE so callers can skip the candidate.
func (g *Gateway) GetPrice(ctx context.Context, chain string, token common.Address) (decimal.Decimal, error) {
	ctx, span := g.tracer.Start(ctx, "market.get_price",
		trace.WithAttributes(
			attribute.String("chain", chain),
			attribute.String("token", token.Hex()),
		),
	)
	defer span.End()

	chainAttr := metric.WithAttributes(attribute.String("chain", chain))
	g.metrics.requests.Add(ctx, 1, chainAttr)

	if err := g.limiter.Wait(ctx, chain); err != nil {
		span.RecordError(err)
		g.metrics.misses.Add(ctx, 1, chainAttr)
		return decimal.Zero, apperror.New(apperror.CodePriceUnavailable,
			apperror.WithCause(err),
			apperror.WithContext("rate limiter wait"))
	}

	callCtx, cancel := context.WithTimeout(ctx, g.config.RequestTimeout)
	defer cancel()

	start := time.Now()
	price, err := g.breaker(chain).Execute(func() (decimal.Decimal, error) {
		return g.feed.GetPrice(callCtx, chain, token)
	})
	g.metrics.latency.Record(ctx, float64(time.Since(start).Milliseconds()), chainAttr)

	if err == nil && !price.IsPositive() {
		err = apperror.New(apperror.CodePriceUnavailable,
			apperror.WithContext(fmt.Sprintf("non-positive price %s", price)))
	}
	if err != nil {
		g.metrics.misses.Add(ctx, 1, chainAttr)
		span.RecordError(err)
		span.SetStatus(codes.Error, "unavailable")
		if apperror.IsCode(err, apperror.CodePriceUnavailable) {
			return decimal.Zero, err
		}
		return decimal.Zero, apperror.New(apperror.CodePriceUnavailable,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("%s %s", chain, token.Hex())))
	}

	g.remember(chain, token, price)

	span.SetAttributes(attribute.String("price", price.String()))
	span.SetStatus(codes.Ok, "priced")
	return price, nil
}

// NativePrice returns the price of the chain's native coin via its wrapped
// token. It is used to convert gas costs to quote units.
func (g *Gateway) NativePrice(ctx context.Context, chain string) (decimal.Decimal, error) {
	handle, ok := g.chains.GetHandle(chain)
	if !ok {
		return decimal.Zero, apperror.NotFound(apperror.CodeChainNotFound, chain)
	}
	if handle.WrappedNative == (common.Address{}) {
		return decimal.Zero, apperror.New(apperror.CodePriceUnavailable,
			apperror.WithContext(chain+" has no wrapped native token configured"))
	}
	return g.GetPrice(ctx, chain, handle.WrappedNative)
}

// breaker returns the chain's breaker. A token without a pool is an answer,
// not an outage, so PRICE_UNAVAILABLE does not count as a failure.
func (g *Gateway) breaker(chain string) *circuitbreaker.CircuitBreaker[decimal.Decimal] {
	g.mu.Lock()
	defer g.mu.Unlock()
	if b, ok := g.breakers[chain]; ok {
		return b
	}
	cfg := circuitbreaker.DefaultConfig("price-feed:" + chain)
	cfg.IsSuccessful = func(err error) bool {
		return err == nil || apperror.IsCode(err, apperror.CodePriceUnavailable)
	}
	b := circuitbreaker.New[decimal.Decimal](cfg)
	g.breakers[chain] = b
	return b
}

func (g *Gateway) remember(chain string, token common.Address, price decimal.Decimal) {
	symbol := token.Hex()[:8]
	if handle, ok := g.chains.GetHandle(chain); ok && g.assets != nil {
		if a, ok := g.assets.GetToken(handle.ChainID, token); ok {
			symbol = a.Symbol()
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.last[domain.Key{Chain: chain, Token: token}] = domain.Price{
		Chain:      chain,
		Token:      token,
		Symbol:     symbol,
		Value:      price,
		Source:     g.config.Source,
		ObservedAt: time.Now(),
	}
}

// LastPrices returns the most recent price per chain and token, sorted by
// symbol then chain.
func (g *Gateway) LastPrices() []domain.Price {
	g.mu.RLock()
	out := make([]domain.Price, 0, len(g.last))
	for _, p := range g.last {
		out = append(out, p)
	}
	g.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Chain < out[j].Chain
	})
	return out
}
