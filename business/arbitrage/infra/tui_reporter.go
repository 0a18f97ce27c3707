package infra

import (
	"context"
	"sync"
	"time"

	"github.com/fd1az/crosschain-arb/business/arbitrage/app"
	"github.com/fd1az/crosschain-arb/business/arbitrage/domain"
	chainDomain "github.com/fd1az/crosschain-arb/business/chain/domain"
	"github.com/fd1az/crosschain-arb/pkg/ui"
)

const defaultStatsInterval = time.Second

var _ app.Reporter = (*TUIReporter)(nil)

// StatsFunc returns current engine statistics.
type StatsFunc func() app.Statistics

// TUIReporter implements Reporter for the Bubble Tea TUI.
type TUIReporter struct {
	out      ui.Sender
	stats    StatsFunc
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewTUIReporter creates a TUIReporter sending to out. stats may be nil.
func NewTUIReporter(out ui.Sender, stats StatsFunc) *TUIReporter {
	return &TUIReporter{out: out, stats: stats, interval: defaultStatsInterval}
}

// SetStats sets the statistics source. The engine is built after its
// reporters, so the source is attached once it exists.
func (r *TUIReporter) SetStats(fn StatsFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = fn
}

// Start begins pushing statistics on a ticker.
func (r *TUIReporter) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return nil
	}
	r.out.Send(ui.StartupMsg{Step: "engine", Status: "done"})
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	go r.statsLoop(ctx, r.done)
	return nil
}

func (r *TUIReporter) statsLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.pushStats()
		}
	}
}

func (r *TUIReporter) pushStats() {
	r.mu.Lock()
	fn := r.stats
	r.mu.Unlock()
	if fn == nil {
		return
	}
	s := fn()
	r.out.Send(ui.StatsMsg{
		TotalOpportunities:  s.TotalOpportunities,
		ActiveOpportunities: s.ActiveOpportunities,
		ActiveExecutions:    s.ActiveExecutions,
		AverageNetProfit:    s.AverageNetProfit,
	})
}

// OpportunityFound sends an opportunity to the TUI.
func (r *TUIReporter) OpportunityFound(_ context.Context, opp domain.Opportunity) {
	r.out.Send(ui.OpportunityMsg{Opportunity: opp})
}

// ExecutionFinished sends an execution result to the TUI, followed by fresh
// statistics.
func (r *TUIReporter) ExecutionFinished(_ context.Context, res domain.ExecutionResult) {
	r.out.Send(ui.ExecutionMsg{Result: res})
	r.pushStats()
}

// ChainHealthChanged sends a chain status change to the TUI.
func (r *TUIReporter) ChainHealthChanged(_ context.Context, chain string, status chainDomain.HealthStatus) {
	r.out.Send(ui.ChainHealthMsg{Chain: chain, Status: status})
}

// Stop halts the statistics ticker.
func (r *TUIReporter) Stop() error {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel = nil
	r.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}
