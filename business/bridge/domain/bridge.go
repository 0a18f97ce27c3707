// Package domain contains the core domain types for the bridge context.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Route is an ordered chain pair a bridge can move value across.
type Route struct {
	From string
	To   string
}

// Bridge is the static description of one inter-chain transfer mechanism.
type Bridge struct {
	Name                     string
	FeePercent               decimal.Decimal
	EstimatedTransferSeconds int
	// MinAmount and MaxAmount bound the transferable token quantity. A zero
	// MaxAmount means no upper bound.
	MinAmount decimal.Decimal
	MaxAmount decimal.Decimal
	Routes    map[Route]struct{}
}

// Supports reports whether the bridge serves the ordered pair.
func (b Bridge) Supports(from, to string) bool {
	_, ok := b.Routes[Route{From: from, To: to}]
	return ok
}

// Accepts reports whether amount is within the bridge's limits.
func (b Bridge) Accepts(amount decimal.Decimal) bool {
	if amount.LessThan(b.MinAmount) {
		return false
	}
	return !b.MaxAmount.IsPositive() || amount.LessThanOrEqual(b.MaxAmount)
}

// Fee returns amount * feePercent / 100, in the same unit as amount.
func (b Bridge) Fee(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(b.FeePercent).Div(decimal.NewFromInt(100))
}

// EstimatedDuration returns the configured transfer latency.
func (b Bridge) EstimatedDuration() time.Duration {
	return time.Duration(b.EstimatedTransferSeconds) * time.Second
}

// TransferStatus is the lifecycle of a bridge transfer.
type TransferStatus string

const (
	TransferPending   TransferStatus = "pending"
	TransferCompleted TransferStatus = "completed"
	TransferFailed    TransferStatus = "failed"
)

// TransferRequest asks a bridge to move Amount of Token from one chain to another.
type TransferRequest struct {
	Bridge string
	From   string
	To     string
	Token  string
	Amount decimal.Decimal
}

// TransferHandle references an initiated transfer.
type TransferHandle struct {
	Bridge string
	ID     string
}

// Transfer is the observed state of a bridge transfer.
type Transfer struct {
	Handle          TransferHandle
	Status          TransferStatus
	DeliveredAmount decimal.Decimal // set when completed
	SourceTxHash    string
	TargetTxHash    string
	Error           string
}
