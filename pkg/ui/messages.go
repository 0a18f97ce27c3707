// Package ui provides the Bubble Tea TUI for the cross-chain arbitrage engine.
package ui

import (
	"github.com/shopspring/decimal"

	"github.com/fd1az/crosschain-arb/business/arbitrage/domain"
	chainDomain "github.com/fd1az/crosschain-arb/business/chain/domain"
)

// Message types for TUI updates

// OpportunityMsg is sent when a scan stores an opportunity.
type OpportunityMsg struct {
	Opportunity domain.Opportunity
}

// ExecutionMsg is sent when an execution attempt finishes.
type ExecutionMsg struct {
	Result domain.ExecutionResult
}

// ChainHealthMsg is sent when a chain's availability changes.
type ChainHealthMsg struct {
	Chain  string
	Status chainDomain.HealthStatus
}

// StatsMsg carries engine statistics.
type StatsMsg struct {
	TotalOpportunities  int64
	ActiveOpportunities int
	ActiveExecutions    int64
	AverageNetProfit    decimal.Decimal
}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Error error
}

// TickMsg is sent periodically for UI updates.
type TickMsg struct{}

// LogMsg is sent to display a log message in the UI.
type LogMsg struct {
	Level   string // "info", "warn", "error"
	Message string
}

// StartupMsg is sent during application startup to show progress.
type StartupMsg struct {
	Step    string // "config", "engine" or a chain name
	Status  string // "connecting", "connected", "done", "failed"
	Message string
}
