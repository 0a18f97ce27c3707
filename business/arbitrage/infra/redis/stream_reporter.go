package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/fd1az/crosschain-arb/business/arbitrage/app"
	"github.com/fd1az/crosschain-arb/business/arbitrage/domain"
	chainDomain "github.com/fd1az/crosschain-arb/business/chain/domain"
	"github.com/fd1az/crosschain-arb/internal/logger"
)

const (
	defaultStream       = "arb:events"
	defaultStreamMaxLen = 10_000
	appendTimeout       = 2 * time.Second
)

// Event types written to the stream.
const (
	EventOpportunity  = "opportunity"
	EventExecution    = "execution"
	EventChainHealth  = "chain_health"
)

// StreamEvent is the JSON payload of one stream entry.
type StreamEvent struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`

	Opportunity *OpportunityEvent `json:"opportunity,omitempty"`
	Execution   *ExecutionEvent   `json:"execution,omitempty"`
	Chain       *ChainEvent       `json:"chain,omitempty"`
}

type OpportunityEvent struct {
	ID            string          `json:"id"`
	Token         string          `json:"token"`
	Source        string          `json:"source"`
	Target        string          `json:"target"`
	SourcePrice   decimal.Decimal `json:"source_price"`
	TargetPrice   decimal.Decimal `json:"target_price"`
	SpreadPercent decimal.Decimal `json:"spread_percent"`
	NetProfit     decimal.Decimal `json:"net_profit"`
	MarginPercent decimal.Decimal `json:"margin_percent"`
	GasCost       decimal.Decimal `json:"gas_cost"`
	Bridge        string          `json:"bridge"`
	RiskScore     int             `json:"risk_score"`
	Complexity    string          `json:"complexity"`
	ExpiresAt     time.Time       `json:"expires_at"`
}

type ExecutionEvent struct {
	AttemptID       string           `json:"attempt_id"`
	OpportunityID   string           `json:"opportunity_id"`
	Outcome         string           `json:"outcome"`
	Severity        string           `json:"severity"`
	ActualProfit    *decimal.Decimal `json:"actual_profit,omitempty"`
	ExecutionTimeMs int64            `json:"execution_time_ms"`
	FailedPhase     string           `json:"failed_phase,omitempty"`
	FailedChain     string           `json:"failed_chain,omitempty"`
	LastHandle      string           `json:"last_handle,omitempty"`
	Confirmed       []string         `json:"confirmed,omitempty"`
	Error           string           `json:"error,omitempty"`
}

type ChainEvent struct {
	Name           string          `json:"name"`
	Healthy        bool            `json:"healthy"`
	LatencyMs      int64           `json:"latency_ms"`
	Block          uint64          `json:"block"`
	GasPriceGwei   decimal.Decimal `json:"gas_price_gwei"`
	ActiveEndpoint string          `json:"active_endpoint,omitempty"`
	LastError      string          `json:"last_error,omitempty"`
}

// StreamReporter appends every engine event to a capped redis stream so
// other processes can follow the pipeline.
type StreamReporter struct {
	rdb    *redis.Client
	stream string
	maxLen int64
	log    logger.LoggerInterface
}

var _ app.Reporter = (*StreamReporter)(nil)

// NewStreamReporter creates a StreamReporter. Empty stream and non-positive
// maxLen select the defaults.
func NewStreamReporter(rdb *redis.Client, stream string, maxLen int64, log logger.LoggerInterface) *StreamReporter {
	if stream == "" {
		stream = defaultStream
	}
	if maxLen <= 0 {
		maxLen = defaultStreamMaxLen
	}
	return &StreamReporter{rdb: rdb, stream: stream, maxLen: maxLen, log: log}
}

func (r *StreamReporter) Start(ctx context.Context) error {
	r.log.Info(ctx, "event stream reporter started", "stream", r.stream)
	return nil
}

func (r *StreamReporter) OpportunityFound(ctx context.Context, opp domain.Opportunity) {
	r.append(ctx, opportunityEvent(opp))
}

func (r *StreamReporter) ExecutionFinished(ctx context.Context, res domain.ExecutionResult) {
	r.append(ctx, executionEvent(res))
}

func (r *StreamReporter) ChainHealthChanged(ctx context.Context, chain string, status chainDomain.HealthStatus) {
	r.append(ctx, chainEvent(chain, status))
}

func (r *StreamReporter) Stop() error { return nil }

// append never fails the caller; a lost event is logged.
func (r *StreamReporter) append(ctx context.Context, ev StreamEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		r.log.Error(ctx, "stream event encode failed", "type", ev.Type, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, appendTimeout)
	defer cancel()

	err = r.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		MaxLen: r.maxLen,
		Approx: true,
		Values: map[string]any{
			"type":    ev.Type,
			"payload": payload,
		},
	}).Err()
	if err != nil {
		r.log.Warn(ctx, "stream append failed", "stream", r.stream, "type", ev.Type, "error", err)
	}
}

func opportunityEvent(opp domain.Opportunity) StreamEvent {
	return StreamEvent{
		Type: EventOpportunity,
		At:   opp.CreatedAt,
		Opportunity: &OpportunityEvent{
			ID:            opp.ID,
			Token:         opp.TokenSymbol,
			Source:        opp.SourceChain,
			Target:        opp.TargetChain,
			SourcePrice:   opp.SourcePrice,
			TargetPrice:   opp.TargetPrice,
			SpreadPercent: opp.SpreadPercent,
			NetProfit:     opp.Profit.NetProfit,
			MarginPercent: opp.Profit.MarginPercent,
			GasCost:       opp.GasCost.Total,
			Bridge:        opp.Bridge,
			RiskScore:     opp.RiskScore,
			Complexity:    string(opp.Complexity),
			ExpiresAt:     opp.ExpiresAt,
		},
	}
}

func executionEvent(res domain.ExecutionResult) StreamEvent {
	ev := &ExecutionEvent{
		AttemptID:       res.AttemptID,
		OpportunityID:   res.OpportunityID,
		Outcome:         string(res.Outcome),
		Severity:        res.Outcome.Severity(),
		ActualProfit:    res.ActualProfit,
		ExecutionTimeMs: res.ExecutionTimeMs(),
		LastHandle:      res.LastHandle,
		Confirmed:       res.ConfirmedHandles(),
		Error:           res.ErrorMessage(),
	}
	if res.FailedPhase != domain.PhaseNone {
		ev.FailedPhase = res.FailedPhase.String()
		ev.FailedChain = res.FailedChain
	}
	return StreamEvent{
		Type:      EventExecution,
		At:        res.StartedAt.Add(res.ExecutionTime),
		Execution: ev,
	}
}

func chainEvent(chain string, s chainDomain.HealthStatus) StreamEvent {
	return StreamEvent{
		Type: EventChainHealth,
		At:   s.ObservedAt,
		Chain: &ChainEvent{
			Name:           chain,
			Healthy:        s.IsHealthy,
			LatencyMs:      s.LatencyMs,
			Block:          s.LastObservedBlock,
			GasPriceGwei:   s.CurrentGasPrice,
			ActiveEndpoint: s.ActiveEndpoint,
			LastError:      s.LastError,
		},
	}
}
