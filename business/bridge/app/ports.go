// Package app contains the bridge registry and port definitions for the bridge context.
package app

import (
	"context"

	"github.com/fd1az/crosschain-arb/business/bridge/domain"
)

// BridgeClient initiates transfers and reports their status.
type BridgeClient interface {
	Transfer(ctx context.Context, req domain.TransferRequest) (domain.TransferHandle, error)
	GetTransfer(ctx context.Context, h domain.TransferHandle) (domain.Transfer, error)
}
