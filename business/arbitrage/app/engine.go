package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/semaphore"

	"github.com/fd1az/crosschain-arb/business/arbitrage/domain"
	chainApp "github.com/fd1az/crosschain-arb/business/chain/app"
	chainDomain "github.com/fd1az/crosschain-arb/business/chain/domain"
	"github.com/fd1az/crosschain-arb/internal/apperror"
	"github.com/fd1az/crosschain-arb/internal/logger"
)

var _ chainApp.HealthListener = (*Engine)(nil)

// Statistics summarizes the engine state.
type Statistics struct {
	TotalOpportunities  int64
	ActiveOpportunities int
	ActiveExecutions    int64
	AverageNetProfit    decimal.Decimal
}

// Engine is the facade over scanning, storage and execution.
type Engine struct {
	cfg       EngineConfig
	tokens    []domain.TrackedToken
	chains    ChainView
	scanner   *Scanner
	store     *Store
	orch      *Orchestrator
	events    *Dispatcher
	reporters []Reporter
	logger    logger.LoggerInterface
	sem       *semaphore.Weighted

	mu      sync.Mutex
	cancel  context.CancelFunc
	loops   sync.WaitGroup
	running sync.WaitGroup // automatic executions
}

// NewEngine wires the engine.
func NewEngine(
	cfg EngineConfig,
	tokens []domain.TrackedToken,
	chains ChainView,
	scanner *Scanner,
	store *Store,
	orch *Orchestrator,
	log logger.LoggerInterface,
	reporters ...Reporter,
) *Engine {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	return &Engine{
		cfg:       cfg,
		tokens:    tokens,
		chains:    chains,
		scanner:   scanner,
		store:     store,
		orch:      orch,
		events:    NewDispatcher(cfg.EventBuffer, log, reporters...),
		reporters: reporters,
		logger:    log,
		sem:       semaphore.NewWeighted(cfg.MaxConcurrent),
	}
}

// ScanOpportunities scans every available chain pair, stores what it finds
// and returns it by net profit descending.
func (e *Engine) ScanOpportunities(ctx context.Context) ([]domain.Opportunity, error) {
	chains := e.chains.AvailableChains()
	if len(chains) < 2 {
		e.logger.Warn(ctx, "scan skipped, fewer than two chains available", "available", chains)
		return nil, nil
	}

	opps, err := e.scanner.Scan(ctx, e.tokens, chains)
	if err != nil {
		return nil, err
	}
	for _, opp := range opps {
		e.store.Put(opp)
		e.events.Emit(ctx, Event{Kind: EventOpportunityFound, Opportunity: opp})
	}
	return opps, nil
}

// GetActiveOpportunities returns live opportunities by net profit descending.
func (e *Engine) GetActiveOpportunities() []domain.Opportunity {
	return e.store.GetActive()
}

// ExecuteOpportunity runs one opportunity; see Orchestrator.Execute.
func (e *Engine) ExecuteOpportunity(ctx context.Context, id string) (*domain.ExecutionResult, error) {
	res, err := e.orch.Execute(ctx, id)
	if res != nil {
		e.events.Emit(ctx, Event{Kind: EventExecutionFinished, Result: *res})
	}
	return res, err
}

// GetChainHealth returns the last observed health of chain.
func (e *Engine) GetChainHealth(chain string) (chainDomain.HealthStatus, error) {
	h, ok := e.chains.Health(chain)
	if !ok {
		return chainDomain.HealthStatus{}, apperror.NotFound(apperror.CodeChainNotFound, chain)
	}
	return h, nil
}

// GetStatistics returns counters over the store and orchestrator.
func (e *Engine) GetStatistics() Statistics {
	active := e.store.GetActive()
	return Statistics{
		TotalOpportunities:  e.store.Total(),
		ActiveOpportunities: len(active),
		ActiveExecutions:    e.orch.ActiveExecutions(),
		AverageNetProfit:    averageNetProfit(active),
	}
}

// Executions returns archived opportunities with their results, newest first.
func (e *Engine) Executions() []domain.Opportunity {
	return e.store.Archive()
}

// ChainHealthChanged forwards connectivity changes to reporters.
func (e *Engine) ChainHealthChanged(ctx context.Context, chain string, status chainDomain.HealthStatus) {
	e.events.Emit(ctx, Event{Kind: EventChainHealthChanged, Chain: chain, Health: status})
}

// Start starts reporters, the event dispatcher, the scan loop and the
// cleanup loop.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return apperror.New(apperror.CodeInvalidState, apperror.WithContext("engine already started"))
	}

	for _, r := range e.reporters {
		if err := r.Start(ctx); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	e.events.Start(context.WithoutCancel(ctx))

	e.loops.Add(2)
	go func() {
		defer e.loops.Done()
		e.scanLoop(ctx)
	}()
	go func() {
		defer e.loops.Done()
		e.cleanupLoop(ctx)
	}()

	e.logger.Info(ctx, "arbitrage engine started",
		"tokens", len(e.tokens),
		"scan_interval", e.cfg.ScanInterval.String(),
		"auto_execute", e.cfg.AutoExecute,
	)
	return nil
}

// Stop cancels the loops, waits for in-flight automatic executions to
// reach a terminal state, flushes events and stops reporters.
func (e *Engine) Stop() error {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	// The scan loop is the only producer of automatic executions.
	e.loops.Wait()
	e.running.Wait()
	e.events.Close()

	var errs []error
	for _, r := range e.reporters {
		if err := r.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) scanLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		if _, err := e.ScanOpportunities(ctx); err != nil && ctx.Err() == nil {
			e.logger.Error(ctx, "scan failed", "error", err)
		}
		if e.cfg.AutoExecute {
			e.autoExecute(ctx)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (e *Engine) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := e.store.CleanupExpired(); n > 0 {
				e.logger.Debug(ctx, "expired opportunities removed", "count", n)
			}
		}
	}
}

// Eligible reports whether opp meets the automatic execution thresholds.
func (e *Engine) Eligible(opp domain.Opportunity) bool {
	return opp.Profit.NetProfit.GreaterThanOrEqual(e.cfg.MinNetProfit) &&
		opp.Profit.MarginPercent.GreaterThanOrEqual(e.cfg.MinMarginPercent) &&
		opp.RiskScore <= e.cfg.MaxRiskScore
}

// autoExecute starts executions for eligible opportunities while execution
// slots are free. Executions outlive loop cancellation; a submitted leg is
// followed to its deadline rather than abandoned.
func (e *Engine) autoExecute(ctx context.Context) {
	for _, opp := range e.store.GetActive() {
		if !e.Eligible(opp) || e.orch.IsExecuting(opp.ID) {
			continue
		}
		if !e.sem.TryAcquire(1) {
			return
		}
		e.running.Add(1)
		go func() {
			defer e.running.Done()
			defer e.sem.Release(1)

			execCtx := context.WithoutCancel(ctx)
			if _, err := e.ExecuteOpportunity(execCtx, opp.ID); err != nil {
				e.logger.Debug(execCtx, "automatic execution skipped", "id", opp.ID, "reason", apperror.GetCode(err))
			}
		}()
	}
}
