package app

import (
	"context"

	"github.com/fd1az/crosschain-arb/business/chain/domain"
)

// DisabledClient stands in for a ChainClient when no executor wallet is
// configured. Every call fails with the configuration error.
type DisabledClient struct {
	Reason error
}

func (d DisabledClient) SubmitTransaction(context.Context, string, domain.TxSpec) (domain.TxHandle, error) {
	return domain.TxHandle{}, d.Reason
}

func (d DisabledClient) GetStatus(context.Context, domain.TxHandle) (domain.TxReceipt, error) {
	return domain.TxReceipt{}, d.Reason
}
