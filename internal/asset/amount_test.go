package asset_test

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/crosschain-arb/internal/asset"
	"github.com/fd1az/crosschain-arb/internal/config"
)

var (
	wethArb = asset.NewToken(asset.ChainIDArbitrum, asset.AddrWETHArbitrum, "WETH", "Wrapped Ether", 18)
	wethEth = asset.NewToken(asset.ChainIDEthereum, asset.AddrWETHEthereum, "WETH", "Wrapped Ether", 18)
	usdcArb = asset.NewToken(asset.ChainIDArbitrum, asset.AddrUSDCArbitrum, "USDC", "USD Coin", 6)
)

func TestAmount_ToDecimal(t *testing.T) {
	one := asset.NewAmount(wethArb, big.NewInt(1e18))

	if !one.ToDecimal().Equal(decimal.NewFromInt(1)) {
		t.Errorf("ToDecimal() = %s, want 1", one.ToDecimal())
	}
	if one.String() != "1 WETH" {
		t.Errorf("String() = %q", one.String())
	}
}

func TestAmount_SameSymbolDifferentChainsDoNotMix(t *testing.T) {
	a := asset.NewAmount(wethArb, big.NewInt(1))
	b := asset.NewAmount(wethEth, big.NewInt(1))

	if _, err := a.Add(b); err == nil {
		t.Error("expected mismatch error for WETH on different chains")
	}
}

func TestAmount_SubNegative(t *testing.T) {
	a := asset.NewAmount(usdcArb, big.NewInt(1))
	b := asset.NewAmount(usdcArb, big.NewInt(2))
	if _, err := a.Sub(b); err != asset.ErrNegativeResult {
		t.Errorf("err = %v, want ErrNegativeResult", err)
	}
}

func TestParseDecimalAndFloor(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		parseRaw string
		parseErr error
		floorRaw string
	}{
		{"exact", "2000.5", "2000500000", nil, "2000500000"},
		{"too precise", "1.0000001", "", asset.ErrTooManyDecimals, "1000000"},
		{"zero", "0", "0", nil, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := decimal.RequireFromString(tt.in)

			got, err := asset.ParseDecimal(usdcArb, d)
			if err != tt.parseErr {
				t.Fatalf("ParseDecimal err = %v, want %v", err, tt.parseErr)
			}
			if err == nil && got.Raw().String() != tt.parseRaw {
				t.Errorf("ParseDecimal raw = %s, want %s", got.Raw(), tt.parseRaw)
			}

			floor, err := asset.FloorDecimal(usdcArb, d)
			if err != nil {
				t.Fatalf("FloorDecimal err = %v", err)
			}
			if floor.Raw().String() != tt.floorRaw {
				t.Errorf("FloorDecimal raw = %s, want %s", floor.Raw(), tt.floorRaw)
			}
		})
	}
}

func TestRegistry_FromConfig(t *testing.T) {
	cfg := &config.Config{
		Chains: []config.ChainConfig{
			{Name: "ethereum", ChainID: asset.ChainIDEthereum, NativeCurrency: "ETH"},
			{Name: "arbitrum", ChainID: asset.ChainIDArbitrum, NativeCurrency: "ETH"},
		},
		Tokens: []config.TokenConfig{{
			Symbol:   "WETH",
			Decimals: 18,
			Addresses: map[string]string{
				"ethereum": asset.AddrWETHEthereum.Hex(),
				"arbitrum": asset.AddrWETHArbitrum.Hex(),
			},
		}},
	}

	reg, err := asset.NewRegistryFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewRegistryFromConfig() error = %v", err)
	}
	if reg.Count() != 4 {
		t.Errorf("Count() = %d, want 4", reg.Count())
	}

	a, ok := reg.GetBySymbolAndChain("WETH", asset.ChainIDArbitrum)
	if !ok || a.Address() != asset.AddrWETHArbitrum {
		t.Fatalf("WETH on arbitrum not found: %v %v", a, ok)
	}
	if got := reg.Chains("WETH"); len(got) != 2 || got[0] != asset.ChainIDEthereum {
		t.Errorf("Chains() = %v", got)
	}
	if _, ok := reg.GetToken(asset.ChainIDEthereum, [20]byte{}); !ok {
		t.Error("native coin lookup by zero address failed")
	}
	if err := reg.Register(a); err == nil {
		t.Error("expected duplicate registration error")
	}
}

func TestDefaultRegistry(t *testing.T) {
	reg := asset.DefaultRegistry()
	if _, ok := reg.GetBySymbolAndChain("USDC", asset.ChainIDBase); !ok {
		t.Error("USDC on base missing")
	}
}
