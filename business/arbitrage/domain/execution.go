package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Phase is one ordered step of an execution.
type Phase int

const (
	PhaseNone Phase = iota
	PhaseBuy
	PhaseBridge
	PhaseSell
)

func (p Phase) String() string {
	switch p {
	case PhaseBuy:
		return "buy"
	case PhaseBridge:
		return "bridge"
	case PhaseSell:
		return "sell"
	default:
		return "none"
	}
}

// LegStatus is the last known state of one leg.
type LegStatus string

const (
	LegPending   LegStatus = "pending"
	LegConfirmed LegStatus = "confirmed"
	LegFailed    LegStatus = "failed"
)

// Outcome classifies an execution attempt. The classes need different
// operator responses and are never collapsed.
type Outcome string

const (
	// OutcomeCompleted means all three legs confirmed.
	OutcomeCompleted Outcome = "completed"
	// OutcomeAborted means the buy leg failed; no funds were committed.
	OutcomeAborted Outcome = "aborted"
	// OutcomeStrandedMidTransfer means the buy confirmed but the bridge
	// failed or timed out. Value is split across chains; never retried.
	OutcomeStrandedMidTransfer Outcome = "stranded_mid_transfer"
	// OutcomeRecoverableUnsold means the asset arrived on the target chain
	// but the sell leg failed or timed out.
	OutcomeRecoverableUnsold Outcome = "recoverable_unsold"
	// OutcomeCancelled means the TTL elapsed before a phase was submitted.
	OutcomeCancelled Outcome = "cancelled"
)

// Severity orders outcomes for display and alerting.
func (o Outcome) Severity() string {
	switch o {
	case OutcomeStrandedMidTransfer:
		return "critical"
	case OutcomeRecoverableUnsold:
		return "high"
	case OutcomeAborted, OutcomeCancelled:
		return "low"
	default:
		return "none"
	}
}

// Leg is one on-chain or bridge operation of an execution.
type Leg struct {
	Phase        Phase
	Chain        string
	Handle       string // tx hash or bridge transfer id, empty if never submitted
	Status       LegStatus
	GasUsed      uint64
	GasFeeNative decimal.Decimal
	AmountIn     decimal.Decimal
	AmountOut    decimal.Decimal
	SubmittedAt  time.Time
	FinishedAt   time.Time
}

// ExecutionResult is created once per attempt and appended to the
// opportunity's audit trail.
type ExecutionResult struct {
	AttemptID     string
	OpportunityID string
	Outcome       Outcome
	Legs          []Leg

	// ActualProfit is computed from observed amounts and is nil unless the
	// outcome is completed.
	ActualProfit *decimal.Decimal

	StartedAt     time.Time
	ExecutionTime time.Duration

	FailedPhase Phase
	FailedChain string
	LastHandle  string
	Err         error
}

// ExecutionTimeMs is the wall time of the attempt in milliseconds.
func (r ExecutionResult) ExecutionTimeMs() int64 {
	return r.ExecutionTime.Milliseconds()
}

// ErrorMessage returns the phase error text, empty on success.
func (r ExecutionResult) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// ConfirmedHandles returns the handles of every confirmed leg in order.
func (r ExecutionResult) ConfirmedHandles() []string {
	var out []string
	for _, l := range r.Legs {
		if l.Status == LegConfirmed && l.Handle != "" {
			out = append(out, l.Handle)
		}
	}
	return out
}
