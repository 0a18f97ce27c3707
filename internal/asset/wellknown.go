package asset

import "github.com/ethereum/go-ethereum/common"

// Chain IDs
const (
	ChainIDEthereum = 1
	ChainIDOptimism = 10
	ChainIDPolygon  = 137
	ChainIDBase     = 8453
	ChainIDArbitrum = 42161
)

// Wrapped ether and USDC on the supported networks.
var (
	AddrWETHEthereum = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	AddrWETHArbitrum = common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1")
	AddrWETHOptimism = common.HexToAddress("0x4200000000000000000000000000000000000006")
	AddrWETHBase     = common.HexToAddress("0x4200000000000000000000000000000000000006")

	AddrUSDCEthereum = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	AddrUSDCArbitrum = common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831")
	AddrUSDCOptimism = common.HexToAddress("0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85")
	AddrUSDCBase     = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
)

// DefaultRegistry returns a registry with WETH, USDC and ETH on Ethereum,
// Arbitrum, Optimism and Base.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	weth := map[uint64]common.Address{
		ChainIDEthereum: AddrWETHEthereum,
		ChainIDArbitrum: AddrWETHArbitrum,
		ChainIDOptimism: AddrWETHOptimism,
		ChainIDBase:     AddrWETHBase,
	}
	usdc := map[uint64]common.Address{
		ChainIDEthereum: AddrUSDCEthereum,
		ChainIDArbitrum: AddrUSDCArbitrum,
		ChainIDOptimism: AddrUSDCOptimism,
		ChainIDBase:     AddrUSDCBase,
	}

	for id, addr := range weth {
		_ = r.Register(NewNative(id, "ETH", "Ether"))
		_ = r.Register(NewToken(id, addr, "WETH", "Wrapped Ether", 18))
		_ = r.Register(NewToken(id, usdc[id], "USDC", "USD Coin", 6))
	}

	return r
}
