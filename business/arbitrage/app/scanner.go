package app

import (
	"context"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/fd1az/crosschain-arb/business/arbitrage/domain"
	"github.com/fd1az/crosschain-arb/internal/apperror"
	"github.com/fd1az/crosschain-arb/internal/logger"
)

const meterName = "github.com/fd1az/crosschain-arb/business/arbitrage/app"

type scannerMetrics struct {
	scans      metric.Int64Counter
	candidates metric.Int64Counter
	skipped    metric.Int64Counter
}

// Scanner walks chain pairs × tracked tokens and hands spreads above the
// threshold to the Analyzer.
type Scanner struct {
	cfg      ScannerConfig
	prices   PriceSource
	analyzer *Analyzer
	logger   logger.LoggerInterface

	tracer  trace.Tracer
	metrics *scannerMetrics
}

// NewScanner creates a Scanner.
func NewScanner(cfg ScannerConfig, prices PriceSource, analyzer *Analyzer, log logger.LoggerInterface) (*Scanner, error) {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	s := &Scanner{
		cfg:      cfg,
		prices:   prices,
		analyzer: analyzer,
		logger:   log,
		tracer:   otel.Tracer(tracerName),
	}
	if err := s.initMetrics(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scanner) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &scannerMetrics{}

	s.metrics.scans, err = meter.Int64Counter(
		"arbitrage_scans_total",
		metric.WithDescription("Completed scans"),
	)
	if err != nil {
		return err
	}

	s.metrics.candidates, err = meter.Int64Counter(
		"arbitrage_candidates_total",
		metric.WithDescription("Spreads above the minimum threshold"),
	)
	if err != nil {
		return err
	}

	s.metrics.skipped, err = meter.Int64Counter(
		"arbitrage_candidates_skipped_total",
		metric.WithDescription("Candidates skipped by reason"),
	)
	return err
}

type chainPair struct {
	a, b string
}

// Scan returns the profitable opportunities across every unordered pair of
// chains, sorted by net profit descending. Missing data skips one pair.
func (s *Scanner) Scan(ctx context.Context, tokens []domain.TrackedToken, chains []string) ([]domain.Opportunity, error) {
	ctx, span := s.tracer.Start(ctx, "arbitrage.scan",
		trace.WithAttributes(
			attribute.Int("chains", len(chains)),
			attribute.Int("tokens", len(tokens)),
		),
	)
	defer span.End()

	var pairs []chainPair
	for i := 0; i < len(chains); i++ {
		for j := i + 1; j < len(chains); j++ {
			pairs = append(pairs, chainPair{a: chains[i], b: chains[j]})
		}
	}

	prices := newPriceMemo(s.prices)

	var (
		mu    sync.Mutex
		found []domain.Opportunity
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrency)

	for _, p := range pairs {
		for _, tok := range tokens {
			addrA, okA := tok.AddressOn(p.a)
			addrB, okB := tok.AddressOn(p.b)
			if !okA || !okB {
				continue
			}
			g.Go(func() error {
				opp, ok := s.scanPair(gctx, prices, tok, p.a, addrA, p.b, addrB)
				if ok {
					mu.Lock()
					found = append(found, *opp)
					mu.Unlock()
				}
				return nil
			})
		}
	}
	// Workers never return errors; only cancellation ends the group early.
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].Profit.NetProfit.GreaterThan(found[j].Profit.NetProfit)
	})

	s.metrics.scans.Add(ctx, 1)
	span.SetAttributes(attribute.Int("opportunities", len(found)))
	return found, nil
}

func (s *Scanner) scanPair(ctx context.Context, prices *priceMemo, tok domain.TrackedToken, chainA string, addrA common.Address, chainB string, addrB common.Address) (*domain.Opportunity, bool) {
	priceA, err := prices.get(ctx, chainA, addrA)
	if err != nil {
		s.skip(ctx, tok.Symbol, chainA, chainB, err)
		return nil, false
	}
	priceB, err := prices.get(ctx, chainB, addrB)
	if err != nil {
		s.skip(ctx, tok.Symbol, chainA, chainB, err)
		return nil, false
	}

	dir, sp, tp := domain.Orient(chainA, priceA, chainB, priceB)
	spread := domain.SpreadPercent(sp, tp)
	if spread.LessThan(s.cfg.MinSpreadPercent) {
		return nil, false
	}

	s.metrics.candidates.Add(ctx, 1)

	opp, err := s.analyzer.Analyze(ctx, domain.Candidate{
		Token:         tok,
		Direction:     dir,
		SourcePrice:   sp,
		TargetPrice:   tp,
		TradeAmount:   tok.TradeAmount,
		SpreadPercent: spread,
	})
	if err != nil {
		s.skip(ctx, tok.Symbol, dir.Source, dir.Target, err)
		return nil, false
	}

	s.logger.Info(ctx, "opportunity found",
		"id", opp.ID,
		"spread_pct", spread.StringFixed(3),
		"net_profit", opp.Profit.NetProfit.StringFixed(2),
		"risk", opp.RiskScore,
	)
	return opp, true
}

func (s *Scanner) skip(ctx context.Context, token, source, target string, err error) {
	code := apperror.GetCode(err)
	s.metrics.skipped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", string(code))))
	s.logger.Debug(ctx, "candidate skipped",
		"token", token,
		"source", source,
		"target", target,
		"reason", code,
		"error", err,
	)
}

// priceMemo fetches each (chain, token) price at most once per scan even
// when several pairs ask for it concurrently.
type priceMemo struct {
	src   PriceSource
	group singleflight.Group

	mu   sync.Mutex
	done map[string]memoEntry
}

type memoEntry struct {
	price decimal.Decimal
	err   error
}

func newPriceMemo(src PriceSource) *priceMemo {
	return &priceMemo{src: src, done: make(map[string]memoEntry)}
}

func (m *priceMemo) get(ctx context.Context, chain string, token common.Address) (decimal.Decimal, error) {
	key := chain + ":" + token.Hex()

	m.mu.Lock()
	e, ok := m.done[key]
	m.mu.Unlock()
	if ok {
		return e.price, e.err
	}

	v, err, _ := m.group.Do(key, func() (any, error) {
		// Another caller may have finished between the check above and Do.
		m.mu.Lock()
		e, ok := m.done[key]
		m.mu.Unlock()
		if ok {
			return e.price, e.err
		}

		price, err := m.src.GetPrice(ctx, chain, token)
		m.mu.Lock()
		m.done[key] = memoEntry{price: price, err: err}
		m.mu.Unlock()
		return price, err
	})
	if err != nil {
		return decimal.Zero, err
	}
	return v.(decimal.Decimal), nil
}
