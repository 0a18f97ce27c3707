package app

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/crosschain-arb/business/chain/domain"
	"github.com/fd1az/crosschain-arb/internal/config"
)

// HandlesFromConfig builds one handle per configured chain, in config order.
func HandlesFromConfig(chains []config.ChainConfig) []domain.ChainHandle {
	out := make([]domain.ChainHandle, 0, len(chains))
	for _, c := range chains {
		native := c.NativeCurrency
		if native == "" {
			native = "ETH"
		}
		out = append(out, domain.ChainHandle{
			Name:            c.Name,
			ChainID:         c.ChainID,
			NativeCurrency:  native,
			WrappedNative:   common.HexToAddress(c.WrappedNative),
			Layer:           domain.Layer(c.Layer),
			HighGasVariance: c.HighGasVariance,
			Confirmations:   c.Confirmations,
			GasFloors: domain.GasFloors{
				Standard: c.GasFloorsGwei.Standard,
				Fast:     c.GasFloorsGwei.Fast,
				Instant:  c.GasFloorsGwei.Instant,
			},
			Endpoints:     c.Endpoints(),
			QuoterAddress: common.HexToAddress(c.QuoterAddress),
			RouterAddress: common.HexToAddress(c.RouterAddress),
			QuoteToken:    common.HexToAddress(c.QuoteToken),
		})
	}
	return out
}
