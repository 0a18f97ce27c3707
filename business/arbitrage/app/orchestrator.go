package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/crosschain-arb/business/arbitrage/domain"
	bridgeApp "github.com/fd1az/crosschain-arb/business/bridge/app"
	bridgeDomain "github.com/fd1az/crosschain-arb/business/bridge/domain"
	chainApp "github.com/fd1az/crosschain-arb/business/chain/app"
	chainDomain "github.com/fd1az/crosschain-arb/business/chain/domain"
	"github.com/fd1az/crosschain-arb/internal/apperror"
	"github.com/fd1az/crosschain-arb/internal/asset"
	"github.com/fd1az/crosschain-arb/internal/logger"
)

// OrchestratorDeps are the collaborators of an Orchestrator.
type OrchestratorDeps struct {
	Chains  ChainView
	Bridges BridgeSelector
	Assets  AssetResolver
	Tx      chainApp.ChainClient
	Bridge  bridgeApp.BridgeClient
	Store   *Store
	Lock    ExecutionLock
	Clock   Clock
	Logger  logger.LoggerInterface
}

type orchestratorMetrics struct {
	executions metric.Int64Counter
	duration   metric.Float64Histogram
}

// Orchestrator sequences buy, bridge and sell for one opportunity. At most
// one execution per opportunity id runs at a time; a partially executed
// trade is reported, never retried.
type Orchestrator struct {
	cfg OrchestratorConfig
	OrchestratorDeps

	executing sync.Map // opportunity id -> struct{}
	running   atomic.Int64

	tracer  trace.Tracer
	metrics *orchestratorMetrics
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(cfg OrchestratorConfig, deps OrchestratorDeps) (*Orchestrator, error) {
	if deps.Lock == nil {
		deps.Lock = NoLock{}
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.FeeTier == 0 {
		return nil, apperror.New(apperror.CodeConfigInvalid,
			apperror.WithContext("swap fee tier is not set"))
	}
	o := &Orchestrator{
		cfg:              cfg,
		OrchestratorDeps: deps,
		tracer:           otel.Tracer(tracerName),
	}
	if err := o.initMetrics(); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *Orchestrator) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	o.metrics = &orchestratorMetrics{}

	o.metrics.executions, err = meter.Int64Counter(
		"arbitrage_executions_total",
		metric.WithDescription("Execution attempts by outcome"),
	)
	if err != nil {
		return err
	}

	o.metrics.duration, err = meter.Float64Histogram(
		"arbitrage_execution_duration_ms",
		metric.WithDescription("Execution wall time in milliseconds"),
		metric.WithUnit("ms"),
	)
	return err
}

// ActiveExecutions is the number of executions in flight.
func (o *Orchestrator) ActiveExecutions() int64 {
	return o.running.Load()
}

// IsExecuting reports whether id has an execution in flight.
func (o *Orchestrator) IsExecuting(id string) bool {
	_, ok := o.executing.Load(id)
	return ok
}

// tradePlan holds the assets resolved before anything is submitted.
type tradePlan struct {
	source, target chainDomain.ChainHandle
	bridge         bridgeDomain.Bridge
	quoteIn        *asset.Asset // quote token on source
	tokenIn        *asset.Asset // traded token on source
	tokenOut       *asset.Asset // traded token on target
	quoteOut       *asset.Asset // quote token on target
}

// Execute runs the opportunity. Preconditions (unknown id, expired, already
// executing, chain unavailable, no bridge) are returned as errors with no
// side effects. Once a phase has been attempted the outcome, including phase
// failures, is reported in the ExecutionResult and the error is nil.
func (o *Orchestrator) Execute(ctx context.Context, id string) (*domain.ExecutionResult, error) {
	ctx, span := o.tracer.Start(ctx, "arbitrage.execute",
		trace.WithAttributes(attribute.String("opportunity_id", id)),
	)
	defer span.End()

	if _, err := o.Store.Lookup(id); err != nil {
		span.RecordError(err)
		return nil, err
	}

	if _, loaded := o.executing.LoadOrStore(id, struct{}{}); loaded {
		err := apperror.Conflict(apperror.CodeAlreadyExecuting, id)
		span.RecordError(err)
		return nil, err
	}
	defer o.executing.Delete(id)
	o.running.Add(1)
	defer o.running.Add(-1)

	// A previous attempt may have archived it between lookup and claim.
	opp, err := o.Store.Lookup(id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	release, err := o.Lock.Acquire(ctx, "execution:"+id, o.cfg.LockTTL)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer release()

	plan, err := o.plan(opp)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	result := o.run(ctx, opp, plan)
	o.Store.Complete(opp, result)

	o.metrics.executions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(result.Outcome))))
	o.metrics.duration.Record(ctx, float64(result.ExecutionTimeMs()))

	span.SetAttributes(attribute.String("outcome", string(result.Outcome)))
	if result.Outcome == domain.OutcomeCompleted {
		span.SetStatus(codes.Ok, "completed")
	} else {
		span.SetStatus(codes.Error, string(result.Outcome))
	}
	return &result, nil
}

func (o *Orchestrator) plan(opp domain.Opportunity) (tradePlan, error) {
	for _, chain := range []string{opp.SourceChain, opp.TargetChain} {
		if err := o.Chains.RequireAvailable(chain); err != nil {
			return tradePlan{}, err
		}
	}
	src, _ := o.Chains.GetHandle(opp.SourceChain)
	dst, _ := o.Chains.GetHandle(opp.TargetChain)

	bridge, err := o.Bridges.Cheapest(src.Name, dst.Name, opp.TradeAmount)
	if err != nil {
		return tradePlan{}, err
	}

	p := tradePlan{source: src, target: dst, bridge: bridge}
	lookups := []struct {
		dst   **asset.Asset
		chain chainDomain.ChainHandle
		addr  common.Address
		what  string
	}{
		{&p.quoteIn, src, src.QuoteToken, "quote token"},
		{&p.tokenIn, src, opp.SourceToken, opp.TokenSymbol},
		{&p.tokenOut, dst, opp.TargetToken, opp.TokenSymbol},
		{&p.quoteOut, dst, dst.QuoteToken, "quote token"},
	}
	for _, l := range lookups {
		a, ok := o.Assets.GetToken(l.chain.ChainID, l.addr)
		if !ok {
			return tradePlan{}, apperror.New(apperror.CodeConfigInvalid,
				apperror.WithContext(fmt.Sprintf("%s not registered on %s", l.what, l.chain.Name)))
		}
		*l.dst = a
	}
	return p, nil
}

func (o *Orchestrator) run(ctx context.Context, opp domain.Opportunity, p tradePlan) domain.ExecutionResult {
	started := o.Clock.Now()
	res := domain.ExecutionResult{
		AttemptID:     uuid.NewString(),
		OpportunityID: opp.ID,
		StartedAt:     started,
	}
	finish := func(outcome domain.Outcome, phase domain.Phase, chain string, err error) domain.ExecutionResult {
		res.Outcome = outcome
		res.FailedPhase = phase
		res.FailedChain = chain
		res.Err = err
		for i := len(res.Legs) - 1; i >= 0; i-- {
			if res.Legs[i].Handle != "" {
				res.LastHandle = res.Legs[i].Handle
				break
			}
		}
		res.ExecutionTime = o.Clock.Now().Sub(started)
		o.logOutcome(ctx, opp, res)
		return res
	}

	// Phase 1: buy the token on the source chain with quote currency.
	notional := opp.Profit.Notional
	buySpec := chainDomain.TxSpec{
		TokenIn:      p.quoteIn,
		TokenOut:     p.tokenIn,
		AmountIn:     notional,
		MinAmountOut: o.withSlippage(opp.TradeAmount),
		FeeTier:      o.cfg.FeeTier,
	}
	buy, err := o.swap(ctx, domain.PhaseBuy, p.source.Name, buySpec)
	res.Legs = append(res.Legs, buy)
	if err != nil {
		return finish(domain.OutcomeAborted, domain.PhaseBuy, p.source.Name, err)
	}

	if opp.IsExpired(o.Clock.Now()) {
		return finish(domain.OutcomeCancelled, domain.PhaseBridge, p.source.Name,
			apperror.New(apperror.CodeOpportunityExpired, apperror.WithContext("before bridge")))
	}

	// Phase 2: bridge what was bought. The router guarantees at least
	// MinAmountOut when the Transfer log could not be read.
	bought := buy.AmountOut
	if !bought.IsPositive() {
		bought = buySpec.MinAmountOut
	}
	bridged, err := o.transfer(ctx, p, opp.TokenSymbol, bought)
	res.Legs = append(res.Legs, bridged)
	if err != nil {
		return finish(domain.OutcomeStrandedMidTransfer, domain.PhaseBridge, p.source.Name, err)
	}

	if opp.IsExpired(o.Clock.Now()) {
		return finish(domain.OutcomeCancelled, domain.PhaseSell, p.target.Name,
			apperror.New(apperror.CodeOpportunityExpired, apperror.WithContext("before sell")))
	}

	// Phase 3: sell on the target chain.
	delivered := bridged.AmountOut
	if !delivered.IsPositive() {
		delivered = bought.Sub(p.bridge.Fee(bought))
	}
	sell, err := o.swap(ctx, domain.PhaseSell, p.target.Name, chainDomain.TxSpec{
		TokenIn:      p.tokenOut,
		TokenOut:     p.quoteOut,
		AmountIn:     delivered,
		MinAmountOut: o.withSlippage(delivered.Mul(opp.TargetPrice)),
		FeeTier:      o.cfg.FeeTier,
	})
	res.Legs = append(res.Legs, sell)
	if err != nil {
		return finish(domain.OutcomeRecoverableUnsold, domain.PhaseSell, p.target.Name, err)
	}

	if !sell.AmountOut.IsPositive() {
		return finish(domain.OutcomeCompleted, domain.PhaseNone, "",
			apperror.New(apperror.CodeInsufficientObservable,
				apperror.WithContext("sell output not observed; actual profit unknown")))
	}
	gas := buy.GasFeeNative.Mul(opp.SourceNativePrice).Add(sell.GasFeeNative.Mul(opp.TargetNativePrice))
	actual := sell.AmountOut.Sub(buy.AmountIn).Sub(gas)
	res.ActualProfit = &actual
	return finish(domain.OutcomeCompleted, domain.PhaseNone, "", nil)
}

func (o *Orchestrator) withSlippage(amount decimal.Decimal) decimal.Decimal {
	bps := decimal.NewFromInt(int64(10_000 - o.cfg.SlippageBps))
	return amount.Mul(bps).Div(decimal.NewFromInt(10_000))
}

// swap submits one swap and polls it to a terminal state within the swap
// deadline. On timeout the leg stays pending with its handle recorded.
func (o *Orchestrator) swap(ctx context.Context, phase domain.Phase, chain string, spec chainDomain.TxSpec) (domain.Leg, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.SwapTimeout)
	defer cancel()

	leg := domain.Leg{
		Phase:       phase,
		Chain:       chain,
		Status:      domain.LegPending,
		AmountIn:    spec.AmountIn,
		SubmittedAt: o.Clock.Now(),
	}

	h, err := o.Tx.SubmitTransaction(ctx, chain, spec)
	if err != nil {
		leg.Status = domain.LegFailed
		leg.FinishedAt = o.Clock.Now()
		return leg, phaseError(phase, chain, err)
	}
	leg.Handle = h.Hash.Hex()

	rcpt, err := poll(ctx, o.cfg.PollInterval, func(ctx context.Context) (chainDomain.TxReceipt, bool, error) {
		r, err := o.Tx.GetStatus(ctx, h)
		if err != nil {
			o.Logger.Warn(ctx, "transaction status poll failed", "tx", h.String(), "error", err)
			return r, false, nil
		}
		switch r.Status {
		case chainDomain.TxConfirmed:
			return r, true, nil
		case chainDomain.TxFailed:
			return r, true, fmt.Errorf("transaction %s reverted", h)
		}
		return r, false, nil
	})
	if err != nil {
		if rcpt.Status == chainDomain.TxFailed {
			leg.Status = domain.LegFailed
			leg.GasUsed = rcpt.GasUsed
			leg.GasFeeNative = rcpt.GasFeeNative
			leg.FinishedAt = o.Clock.Now()
		}
		return leg, phaseError(phase, chain, err)
	}

	leg.Status = domain.LegConfirmed
	leg.GasUsed = rcpt.GasUsed
	leg.GasFeeNative = rcpt.GasFeeNative
	leg.AmountOut = rcpt.AmountOut
	leg.FinishedAt = o.Clock.Now()
	return leg, nil
}

// transfer starts the bridge transfer and polls it within the bridge
// deadline.
func (o *Orchestrator) transfer(ctx context.Context, p tradePlan, token string, amount decimal.Decimal) (domain.Leg, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.BridgeTimeout)
	defer cancel()

	leg := domain.Leg{
		Phase:       domain.PhaseBridge,
		Chain:       p.source.Name,
		Status:      domain.LegPending,
		AmountIn:    amount,
		SubmittedAt: o.Clock.Now(),
	}

	h, err := o.Bridge.Transfer(ctx, bridgeDomain.TransferRequest{
		Bridge: p.bridge.Name,
		From:   p.source.Name,
		To:     p.target.Name,
		Token:  token,
		Amount: amount,
	})
	if err != nil {
		leg.Status = domain.LegFailed
		leg.FinishedAt = o.Clock.Now()
		return leg, phaseError(domain.PhaseBridge, p.source.Name, err)
	}
	leg.Handle = h.Bridge + ":" + h.ID

	tr, err := poll(ctx, o.cfg.PollInterval, func(ctx context.Context) (bridgeDomain.Transfer, bool, error) {
		t, err := o.Bridge.GetTransfer(ctx, h)
		if err != nil {
			o.Logger.Warn(ctx, "bridge status poll failed", "transfer", leg.Handle, "error", err)
			return t, false, nil
		}
		switch t.Status {
		case bridgeDomain.TransferCompleted:
			return t, true, nil
		case bridgeDomain.TransferFailed:
			return t, true, fmt.Errorf("bridge transfer %s failed: %s", leg.Handle, t.Error)
		}
		return t, false, nil
	})
	if err != nil {
		if tr.Status == bridgeDomain.TransferFailed {
			leg.Status = domain.LegFailed
			leg.FinishedAt = o.Clock.Now()
		}
		return leg, phaseError(domain.PhaseBridge, p.source.Name, err)
	}

	leg.Status = domain.LegConfirmed
	leg.AmountOut = tr.DeliveredAmount
	leg.FinishedAt = o.Clock.Now()
	return leg, nil
}

// poll calls check until it reports done or ctx ends. check reports
// transient problems by returning done=false with a nil error.
func poll[T any](ctx context.Context, interval time.Duration, check func(context.Context) (T, bool, error)) (T, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		v, done, err := check(ctx)
		if done {
			return v, err
		}
		select {
		case <-ctx.Done():
			return v, ctx.Err()
		case <-ticker.C:
		}
	}
}

func phaseError(phase domain.Phase, chain string, err error) error {
	code := apperror.CodePhaseFailed
	if errors.Is(err, context.DeadlineExceeded) {
		code = apperror.CodePhaseTimeout
	}
	return apperror.New(code,
		apperror.WithCause(err),
		apperror.WithContext(fmt.Sprintf("%s on %s", phase, chain)))
}

func (o *Orchestrator) logOutcome(ctx context.Context, opp domain.Opportunity, res domain.ExecutionResult) {
	kv := []any{
		"opportunity_id", opp.ID,
		"attempt_id", res.AttemptID,
		"outcome", res.Outcome,
		"duration_ms", res.ExecutionTimeMs(),
		"confirmed", res.ConfirmedHandles(),
	}
	if res.Err != nil {
		kv = append(kv, "failed_phase", res.FailedPhase.String(), "failed_chain", res.FailedChain,
			"last_handle", res.LastHandle, "error", res.Err)
	}
	if res.ActualProfit != nil {
		kv = append(kv, "actual_profit", res.ActualProfit.StringFixed(2),
			"estimated_profit", opp.Profit.NetProfit.StringFixed(2))
	}

	switch res.Outcome {
	case domain.OutcomeStrandedMidTransfer, domain.OutcomeRecoverableUnsold:
		o.Logger.Error(ctx, "execution needs manual reconciliation", kv...)
	case domain.OutcomeCompleted:
		o.Logger.Info(ctx, "execution completed", kv...)
	default:
		o.Logger.Warn(ctx, "execution did not trade", kv...)
	}
}
