// Package infra contains infrastructure adapters for the arbitrage context.
package infra

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fd1az/crosschain-arb/business/arbitrage/app"
	"github.com/fd1az/crosschain-arb/business/arbitrage/domain"
	chainDomain "github.com/fd1az/crosschain-arb/business/chain/domain"
)

const (
	heavyRule = "================================================================================"
	lightRule = "--------------------------------------------------------------------------------"
)

var _ app.Reporter = (*ConsoleReporter)(nil)

// ConsoleReporter implements Reporter for CLI output.
type ConsoleReporter struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

// NewConsoleReporter creates a ConsoleReporter writing to out, or stdout
// when out is nil.
func NewConsoleReporter(out io.Writer) *ConsoleReporter {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleReporter{out: out, now: time.Now}
}

// Start initializes the console reporter.
func (r *ConsoleReporter) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, "Cross-Chain Arbitrage Engine Started")
	fmt.Fprintln(r.out, "====================================")
	return nil
}

// OpportunityFound prints one opportunity block.
func (r *ConsoleReporter) OpportunityFound(_ context.Context, opp domain.Opportunity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	WriteOpportunity(r.out, opp, r.now())
}

// ExecutionFinished prints one execution block.
func (r *ConsoleReporter) ExecutionFinished(_ context.Context, res domain.ExecutionResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	WriteExecution(r.out, res)
}

// ChainHealthChanged prints a one-line status change.
func (r *ConsoleReporter) ChainHealthChanged(_ context.Context, chain string, s chainDomain.HealthStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	status := "unavailable"
	if s.IsHealthy {
		status = fmt.Sprintf("healthy (%dms, block #%d)", s.LatencyMs, s.LastObservedBlock)
	}
	if s.LastError != "" && !s.IsHealthy {
		status += ": " + s.LastError
	}
	fmt.Fprintf(r.out, "[%s] %s: %s\n", r.now().Format("15:04:05"), chain, status)
}

// Stop gracefully shuts down the console reporter.
func (r *ConsoleReporter) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, "Cross-Chain Arbitrage Engine Stopped")
	return nil
}

// WriteOpportunity renders opp as a console block. The CLI scan command
// uses it directly.
func WriteOpportunity(w io.Writer, opp domain.Opportunity, now time.Time) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, heavyRule)
	fmt.Fprintln(w, "CROSS-CHAIN OPPORTUNITY")
	fmt.Fprintln(w, heavyRule)
	fmt.Fprintf(w, "ID:             %s\n", opp.ID)
	fmt.Fprintf(w, "Token:          %s\n", opp.TokenSymbol)
	fmt.Fprintf(w, "Route:          %s -> %s via %s\n", opp.SourceChain, opp.TargetChain, opp.Bridge)
	fmt.Fprintf(w, "Expires in:     %s\n", opp.TimeLeft(now).Round(time.Second))
	fmt.Fprintln(w, lightRule)
	fmt.Fprintln(w, "PRICES")
	fmt.Fprintf(w, "  %-14s $%s\n", opp.SourceChain+":", opp.SourcePrice.StringFixed(2))
	fmt.Fprintf(w, "  %-14s $%s\n", opp.TargetChain+":", opp.TargetPrice.StringFixed(2))
	fmt.Fprintf(w, "  Spread:         %s%%\n", opp.SpreadPercent.StringFixed(3))
	fmt.Fprintln(w, lightRule)
	fmt.Fprintln(w, "COSTS")
	fmt.Fprintf(w, "  Trade Size:     %s %s ($%s)\n", opp.TradeAmount.String(), opp.TokenSymbol, opp.Profit.Notional.StringFixed(2))
	fmt.Fprintf(w, "  Gas:            $%s (src $%s, dst $%s, bridge $%s)\n",
		opp.GasCost.Total.StringFixed(2),
		opp.GasCost.Source.StringFixed(2),
		opp.GasCost.Target.StringFixed(2),
		opp.GasCost.Bridge.StringFixed(2))
	fmt.Fprintf(w, "  Bridge Fee:     $%s (~%s)\n", opp.BridgeFee.StringFixed(2), opp.BridgeEstimatedTime)
	fmt.Fprintln(w, lightRule)
	fmt.Fprintln(w, "PROFIT")
	fmt.Fprintf(w, "  Gross:          $%s\n", opp.Profit.GrossProfit.StringFixed(2))
	fmt.Fprintf(w, "  Net:            $%s (%s%%)\n", opp.Profit.NetProfit.StringFixed(2), opp.Profit.MarginPercent.StringFixed(2))
	fmt.Fprintf(w, "  Risk:           %d/100 (%s)\n", opp.RiskScore, opp.Complexity)
	fmt.Fprintln(w, heavyRule)
}

// WriteExecution renders res as a console block.
func WriteExecution(w io.Writer, res domain.ExecutionResult) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, heavyRule)
	fmt.Fprintf(w, "EXECUTION %s [%s]\n", res.Outcome, res.Outcome.Severity())
	fmt.Fprintln(w, heavyRule)
	fmt.Fprintf(w, "Attempt:        %s\n", res.AttemptID)
	fmt.Fprintf(w, "Opportunity:    %s\n", res.OpportunityID)
	fmt.Fprintf(w, "Duration:       %dms\n", res.ExecutionTimeMs())
	if res.ActualProfit != nil {
		fmt.Fprintf(w, "Actual Profit:  $%s\n", res.ActualProfit.StringFixed(2))
	}
	if res.FailedPhase != domain.PhaseNone {
		fmt.Fprintf(w, "Failed Phase:   %s on %s\n", res.FailedPhase, res.FailedChain)
	}
	if msg := res.ErrorMessage(); msg != "" {
		fmt.Fprintf(w, "Error:          %s\n", msg)
	}
	if res.LastHandle != "" {
		fmt.Fprintf(w, "Last Handle:    %s\n", res.LastHandle)
	}
	if len(res.Legs) > 0 {
		fmt.Fprintln(w, lightRule)
		fmt.Fprintln(w, "LEGS")
		for _, leg := range res.Legs {
			handle := leg.Handle
			if handle == "" {
				handle = "-"
			}
			fmt.Fprintf(w, "  %-7s %-10s %-9s %s\n", leg.Phase, leg.Chain, leg.Status, handle)
		}
	}
	fmt.Fprintln(w, heavyRule)
}
