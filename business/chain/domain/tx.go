package domain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/crosschain-arb/internal/asset"
)

// TxStatus is the lifecycle state of a submitted transaction.
type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxConfirmed TxStatus = "confirmed"
	TxFailed    TxStatus = "failed"
)

// TxSpec describes an exact-input swap on one chain. Amounts are in token
// units of the respective assets.
type TxSpec struct {
	TokenIn      *asset.Asset
	TokenOut     *asset.Asset
	AmountIn     decimal.Decimal
	MinAmountOut decimal.Decimal
	FeeTier      uint32
}

// TxHandle references a submitted transaction.
type TxHandle struct {
	Chain string
	Hash  common.Hash
}

func (h TxHandle) String() string {
	return fmt.Sprintf("%s:%s", h.Chain, h.Hash.Hex())
}

// IsZero reports whether the handle was never assigned.
func (h TxHandle) IsZero() bool {
	return h.Hash == (common.Hash{})
}

// TxReceipt is the observed state of a transaction.
type TxReceipt struct {
	Status      TxStatus
	BlockNumber uint64
	GasUsed     uint64

	// GasFeeNative is gasUsed * effectiveGasPrice in native coin units.
	GasFeeNative decimal.Decimal

	// AmountOut is the TokenOut amount transferred to the wallet, decoded
	// from ERC-20 Transfer logs. Zero until confirmed.
	AmountOut decimal.Decimal
}
