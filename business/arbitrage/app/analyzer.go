package app

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/crosschain-arb/business/arbitrage/domain"
	chainDomain "github.com/fd1az/crosschain-arb/business/chain/domain"
	"github.com/fd1az/crosschain-arb/internal/apperror"
)

const tracerName = "github.com/fd1az/crosschain-arb/business/arbitrage/app"

// Analyzer turns a candidate into a costed, risk-scored opportunity.
type Analyzer struct {
	cfg     AnalyzerConfig
	chains  ChainView
	gas     GasPricer
	prices  PriceSource
	bridges BridgeSelector
	clock   Clock
	tracer  trace.Tracer
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(cfg AnalyzerConfig, chains ChainView, gas GasPricer, prices PriceSource, bridges BridgeSelector, clock Clock) *Analyzer {
	if clock == nil {
		clock = SystemClock
	}
	return &Analyzer{
		cfg:     cfg,
		chains:  chains,
		gas:     gas,
		prices:  prices,
		bridges: bridges,
		clock:   clock,
		tracer:  otel.Tracer(tracerName),
	}
}

// Analyze costs c. It returns NOT_PROFITABLE when net profit is not
// positive; filtering on margin or risk is left to the caller.
func (a *Analyzer) Analyze(ctx context.Context, c domain.Candidate) (*domain.Opportunity, error) {
	ctx, span := a.tracer.Start(ctx, "arbitrage.analyze",
		trace.WithAttributes(
			attribute.String("token", c.Token.Symbol),
			attribute.String("source", c.Direction.Source),
			attribute.String("target", c.Direction.Target),
			attribute.String("spread_pct", c.SpreadPercent.StringFixed(4)),
		),
	)
	defer span.End()

	opp, err := a.analyze(ctx, c)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperror.GetCode(err)))
		return nil, err
	}
	span.SetAttributes(
		attribute.String("net_profit", opp.Profit.NetProfit.StringFixed(2)),
		attribute.Int("risk_score", opp.RiskScore),
	)
	span.SetStatus(codes.Ok, "profitable")
	return opp, nil
}

func (a *Analyzer) analyze(ctx context.Context, c domain.Candidate) (*domain.Opportunity, error) {
	src, ok := a.chains.GetHandle(c.Direction.Source)
	if !ok {
		return nil, apperror.NotFound(apperror.CodeChainNotFound, c.Direction.Source)
	}
	dst, ok := a.chains.GetHandle(c.Direction.Target)
	if !ok {
		return nil, apperror.NotFound(apperror.CodeChainNotFound, c.Direction.Target)
	}

	bridge, err := a.bridges.Cheapest(src.Name, dst.Name, c.TradeAmount)
	if err != nil {
		return nil, err
	}

	srcGas, err := a.gas.GetOptimalGasPrice(ctx, src.Name, chainDomain.GasTierFast)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeGasPriceUnavailable, src.Name)
	}
	dstGas, err := a.gas.GetOptimalGasPrice(ctx, dst.Name, chainDomain.GasTierFast)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeGasPriceUnavailable, dst.Name)
	}

	srcNative, err := a.prices.NativePrice(ctx, src.Name)
	if err != nil {
		return nil, err
	}
	dstNative, err := a.prices.NativePrice(ctx, dst.Name)
	if err != nil {
		return nil, err
	}

	bridgeFee := bridge.Fee(c.TradeAmount).Mul(c.SourcePrice)
	gas := domain.NewGasCost(
		domain.LegGasCost(srcGas, a.cfg.SwapGasUnits, srcNative),
		domain.LegGasCost(dstGas, a.cfg.SwapGasUnits, dstNative),
		domain.LegGasCost(srcGas, a.cfg.BridgeGasUnits, srcNative).Add(bridgeFee),
	)

	profit := domain.CalculateProfit(c.SourcePrice, c.TargetPrice, c.TradeAmount, gas)
	if !profit.IsProfitable() {
		return nil, apperror.New(apperror.CodeNotProfitable,
			apperror.WithContext(fmt.Sprintf("net %s after gas %s",
				profit.NetProfit.StringFixed(2), gas.Total.StringFixed(2))))
	}

	srcTraits := domain.ChainTraits{L2: src.IsL2(), HighGasVariance: src.HighGasVariance}
	dstTraits := domain.ChainTraits{L2: dst.IsL2(), HighGasVariance: dst.HighGasVariance}

	now := a.clock.Now()
	srcToken, _ := c.Token.AddressOn(src.Name)
	dstToken, _ := c.Token.AddressOn(dst.Name)

	return &domain.Opportunity{
		ID:                  domain.OpportunityID(src.Name, dst.Name, c.Token.Symbol, now),
		TokenSymbol:         c.Token.Symbol,
		SourceToken:         srcToken,
		TargetToken:         dstToken,
		SourceChain:         src.Name,
		TargetChain:         dst.Name,
		SourcePrice:         c.SourcePrice,
		TargetPrice:         c.TargetPrice,
		TradeAmount:         c.TradeAmount,
		SpreadPercent:       c.SpreadPercent,
		Profit:              profit,
		GasCost:             gas,
		SourceGasGwei:       srcGas,
		TargetGasGwei:       dstGas,
		SourceNativePrice:   srcNative,
		TargetNativePrice:   dstNative,
		Bridge:              bridge.Name,
		BridgeFee:           bridgeFee,
		BridgeEstimatedTime: bridge.EstimatedDuration(),
		RiskScore:           domain.ScoreRisk(a.cfg.Risk, c.SpreadPercent, srcTraits, dstTraits),
		Complexity:          domain.ClassifyComplexity(srcTraits, dstTraits),
		CreatedAt:           now,
		ExpiresAt:           now.Add(a.cfg.OpportunityTTL),
	}, nil
}
