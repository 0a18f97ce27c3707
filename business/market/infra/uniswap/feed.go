// Package uniswap prices tokens against each chain's quote token through
// the Uniswap V3 QuoterV2 contract.
package uniswap

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	chainApp "github.com/fd1az/crosschain-arb/business/chain/app"
	"github.com/fd1az/crosschain-arb/business/market/app"
	"github.com/fd1az/crosschain-arb/internal/apperror"
	"github.com/fd1az/crosschain-arb/internal/asset"
	"github.com/fd1az/crosschain-arb/internal/logger"
)

const (
	tracerName = "github.com/fd1az/crosschain-arb/business/market/infra/uniswap"
	meterName  = "github.com/fd1az/crosschain-arb/business/market/infra/uniswap"
)

var _ app.PriceFeed = (*Feed)(nil)

// ContractCaller runs a read-only contract call against one endpoint.
type ContractCaller interface {
	CallContract(ctx context.Context, endpoint string, msg ethereum.CallMsg) ([]byte, error)
}

type feedMetrics struct {
	quotesTotal  metric.Int64Counter
	quoteLatency metric.Float64Histogram
	quoteErrors  metric.Int64Counter
}

// Feed implements PriceFeed by quoting one whole token into the chain's
// quote token, trying every fee tier and keeping the best output.
type Feed struct {
	caller    ContractCaller
	chains    chainApp.EndpointResolver
	assets    *asset.Registry
	quoterABI abi.ABI
	feeTiers  []int
	logger    logger.LoggerInterface

	tracer  trace.Tracer
	metrics *feedMetrics
}

// NewFeed creates a feed. preferredTier is tried first.
func NewFeed(caller ContractCaller, chains chainApp.EndpointResolver, assets *asset.Registry, preferredTier int, log logger.LoggerInterface) (*Feed, error) {
	parsed, err := abi.JSON(strings.NewReader(QuoterV2ABI))
	if err != nil {
		return nil, fmt.Errorf("parse quoter ABI: %w", err)
	}

	tiers := []int{preferredTier}
	for _, t := range []int{FeeTier005, FeeTier030, FeeTier100, FeeTier001} {
		if t != preferredTier {
			tiers = append(tiers, t)
		}
	}

	f := &Feed{
		caller:    caller,
		chains:    chains,
		assets:    assets,
		quoterABI: parsed,
		feeTiers:  tiers,
		logger:    log,
		tracer:    otel.Tracer(tracerName),
	}
	if err := f.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return f, nil
}

func (f *Feed) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	f.metrics = &feedMetrics{}

	f.metrics.quotesTotal, err = meter.Int64Counter(
		"uniswap_quotes_total",
		metric.WithDescription("Total quote requests"),
	)
	if err != nil {
		return err
	}

	f.metrics.quoteLatency, err = meter.Float64Histogram(
		"uniswap_quote_latency_ms",
		metric.WithDescription("Quote request latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	f.metrics.quoteErrors, err = meter.Int64Counter(
		"uniswap_quote_errors_total",
		metric.WithDescription("Total quote errors"),
	)
	return err
}

// GetPrice returns the quote-token value of one whole token on chain.
func (f *Feed) GetPrice(ctx context.Context, chain string, token common.Address) (decimal.Decimal, error) {
	ctx, span := f.tracer.Start(ctx, "uniswap.get_price",
		trace.WithAttributes(
			attribute.String("chain", chain),
			attribute.String("token", token.Hex()),
		),
	)
	defer span.End()

	handle, ok := f.chains.GetHandle(chain)
	if !ok {
		return decimal.Zero, apperror.NotFound(apperror.CodeChainNotFound, chain)
	}
	if token == handle.QuoteToken {
		return decimal.NewFromInt(1), nil
	}
	if handle.QuoterAddress == (common.Address{}) {
		return decimal.Zero, apperror.New(apperror.CodePriceUnavailable,
			apperror.WithContext(chain+" has no quoter configured"))
	}
	endpoint, ok := f.chains.ActiveEndpoint(chain)
	if !ok {
		return decimal.Zero, apperror.New(apperror.CodePriceUnavailable,
			apperror.WithContext(chain+" has no active endpoint"))
	}

	in, ok := f.assets.GetToken(handle.ChainID, token)
	if !ok {
		return decimal.Zero, apperror.New(apperror.CodePriceUnavailable,
			apperror.WithContext(fmt.Sprintf("unknown token %s on %s", token.Hex(), chain)))
	}
	out, ok := f.assets.GetToken(handle.ChainID, handle.QuoteToken)
	if !ok {
		return decimal.Zero, apperror.New(apperror.CodePriceUnavailable,
			apperror.WithContext("quote token not registered on "+chain))
	}

	start := time.Now()
	f.metrics.quotesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("chain", chain)))

	oneUnit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(in.Decimals())), nil)

	var best *quoteResult
	for _, tier := range f.feeTiers {
		amountOut, err := f.quote(ctx, endpoint, handle.QuoterAddress, token, handle.QuoteToken, oneUnit, tier)
		if err != nil {
			span.AddEvent("fee_tier_failed",
				trace.WithAttributes(
					attribute.Int("fee_tier", tier),
					attribute.String("error", err.Error()),
				),
			)
			continue
		}
		if best == nil || amountOut.Cmp(best.amountOut) > 0 {
			best = &quoteResult{amountOut: amountOut, feeTier: tier}
		}
	}

	f.metrics.quoteLatency.Record(ctx, float64(time.Since(start).Milliseconds()))

	if best == nil || best.amountOut.Sign() == 0 {
		f.metrics.quoteErrors.Add(ctx, 1)
		span.SetStatus(codes.Error, "no valid quote")
		return decimal.Zero, apperror.New(apperror.CodePriceUnavailable,
			apperror.WithContext(fmt.Sprintf("no pool for %s/%s on %s", in.Symbol(), out.Symbol(), chain)))
	}

	price := asset.NewAmount(out, best.amountOut).ToDecimal()

	span.SetAttributes(
		attribute.String("price", price.String()),
		attribute.Int("fee_tier", best.feeTier),
	)
	span.SetStatus(codes.Ok, "quote received")

	f.logger.Debug(ctx, "uniswap quote",
		"chain", chain,
		"token", in.Symbol(),
		"price", price.String(),
		"fee_tier", best.feeTier,
	)
	return price, nil
}

func (f *Feed) quote(ctx context.Context, endpoint string, quoter, tokenIn, tokenOut common.Address, amountIn *big.Int, tier int) (*big.Int, error) {
	data, err := f.quoterABI.Pack(quoteMethod, QuoteExactInputSingleParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		AmountIn:          amountIn,
		Fee:               big.NewInt(int64(tier)),
		SqrtPriceLimitX96: big.NewInt(0),
	})
	if err != nil {
		return nil, fmt.Errorf("encode call: %w", err)
	}

	raw, err := f.caller.CallContract(ctx, endpoint, ethereum.CallMsg{To: &quoter, Data: data})
	if err != nil {
		return nil, apperror.New(apperror.CodeQuoteFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("quoter call failed for fee tier %d", tier)))
	}

	outputs, err := f.quoterABI.Unpack(quoteMethod, raw)
	if err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	if len(outputs) < 4 {
		return nil, fmt.Errorf("unexpected output length: %d", len(outputs))
	}
	amountOut, ok := outputs[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected amountOut type %T", outputs[0])
	}
	return amountOut, nil
}
