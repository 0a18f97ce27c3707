package app

import (
	"context"

	"github.com/fd1az/crosschain-arb/business/bridge/domain"
)

// DisabledClient stands in for a BridgeClient when no bridge API is configured.
type DisabledClient struct {
	Reason error
}

func (d DisabledClient) Transfer(context.Context, domain.TransferRequest) (domain.TransferHandle, error) {
	return domain.TransferHandle{}, d.Reason
}

func (d DisabledClient) GetTransfer(context.Context, domain.TransferHandle) (domain.Transfer, error) {
	return domain.Transfer{}, d.Reason
}
