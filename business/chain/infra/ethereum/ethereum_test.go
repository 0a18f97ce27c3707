package ethereum

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"github.com/fd1az/crosschain-arb/business/chain/domain"
	"github.com/fd1az/crosschain-arb/internal/apperror"
	"github.com/fd1az/crosschain-arb/internal/asset"
	"github.com/fd1az/crosschain-arb/internal/logger"
)

func TestProber_Probe(t *testing.T) {
	_, srv := newRPCStub(t, map[string]any{
		"eth_chainId":     "0xa4b1", // 42161
		"eth_blockNumber": "0x10",
	})

	pool := NewClientPool(logger.NewNop())
	defer pool.Close()

	res, err := NewProber(pool).Probe(context.Background(), domain.ChainHandle{Name: "arbitrum"}, srv.URL)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if res.ChainID != 42161 || res.BlockNumber != 16 {
		t.Errorf("Probe = %+v", res)
	}
}

func TestProber_ProbeError(t *testing.T) {
	_, srv := newRPCStub(t, map[string]any{"eth_chainId": "0x1"})

	pool := NewClientPool(logger.NewNop())
	defer pool.Close()

	_, err := NewProber(pool).Probe(context.Background(), domain.ChainHandle{Name: "ethereum"}, srv.URL)
	if !apperror.IsCode(err, apperror.CodeChainRPCError) {
		t.Errorf("err = %v, want CHAIN_RPC_ERROR", err)
	}
}

func TestGasOracle_SampleCachesAndClamps(t *testing.T) {
	stub, srv := newRPCStub(t, map[string]any{
		"eth_gasPrice": "0x2540be400", // 10 gwei
	})

	pool := NewClientPool(logger.NewNop())
	defer pool.Close()

	tests := []struct {
		name string
		max  string
		want string
	}{
		{"under max", "500", "10"},
		{"clamped", "5", "5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GasOracleConfig{CacheTTL: time.Minute, MaxGasPrice: decimal.RequireFromString(tt.max)}
			g, err := NewGasOracle(cfg, pool, logger.NewNop())
			if err != nil {
				t.Fatal(err)
			}
			defer g.Close()

			chain := domain.ChainHandle{Name: "ethereum"}
			for i := 0; i < 3; i++ {
				got, err := g.Sample(context.Background(), chain, srv.URL)
				if err != nil {
					t.Fatal(err)
				}
				if !got.Equal(decimal.RequireFromString(tt.want)) {
					t.Errorf("Sample = %s, want %s", got, tt.want)
				}
			}
		})
	}

	// One fetch per oracle; the rest are cache hits.
	if n := stub.count("eth_gasPrice"); n != 2 {
		t.Errorf("eth_gasPrice calls = %d, want 2", n)
	}
}

func TestGasOracle_SampleUnavailable(t *testing.T) {
	_, srv := newRPCStub(t, map[string]any{})
	pool := NewClientPool(logger.NewNop())
	defer pool.Close()

	g, _ := NewGasOracle(DefaultGasOracleConfig(), pool, logger.NewNop())
	defer g.Close()

	_, err := g.Sample(context.Background(), domain.ChainHandle{Name: "base"}, srv.URL)
	if !apperror.IsCode(err, apperror.CodeGasPriceUnavailable) {
		t.Errorf("err = %v, want GAS_PRICE_UNAVAILABLE", err)
	}
}

func TestReceivedAmount(t *testing.T) {
	token := common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1")
	wallet := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	other := common.HexToAddress("0x000000000000000000000000000000000000dEaD")

	transfer := func(tok, to common.Address, v int64) *types.Log {
		return &types.Log{
			Address: tok,
			Topics: []common.Hash{
				transferTopic,
				common.BytesToHash(other.Bytes()),
				common.BytesToHash(to.Bytes()),
			},
			Data: common.LeftPadBytes(big.NewInt(v).Bytes(), 32),
		}
	}

	logs := []*types.Log{
		transfer(token, wallet, 700),
		transfer(token, other, 5),  // not to the wallet
		transfer(other, wallet, 9), // other token
		transfer(token, wallet, 300),
		{Address: token, Topics: []common.Hash{transferTopic}}, // malformed
	}

	if got := receivedAmount(logs, token, wallet); got.Int64() != 1000 {
		t.Errorf("receivedAmount = %s, want 1000", got)
	}
}

func TestIsConfirmed(t *testing.T) {
	tests := []struct {
		head, block, conf uint64
		want              bool
	}{
		{100, 100, 1, true},
		{100, 100, 0, true},
		{100, 100, 2, false},
		{101, 100, 2, true},
		{99, 100, 1, false},
		{111, 100, 12, true},
	}
	for _, tt := range tests {
		if got := isConfirmed(tt.head, tt.block, tt.conf); got != tt.want {
			t.Errorf("isConfirmed(%d, %d, %d) = %v, want %v", tt.head, tt.block, tt.conf, got, tt.want)
		}
	}
}

func TestRouterABI_PacksExactInputSingle(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(SwapRouter02ABI))
	if err != nil {
		t.Fatal(err)
	}
	data, err := parsed.Pack("exactInputSingle", ExactInputSingleParams{
		TokenIn:           common.HexToAddress("0x01"),
		TokenOut:          common.HexToAddress("0x02"),
		Fee:               big.NewInt(500),
		Recipient:         common.HexToAddress("0x03"),
		AmountIn:          big.NewInt(1e18),
		AmountOutMinimum:  big.NewInt(1),
		SqrtPriceLimitX96: big.NewInt(0),
	})
	if err != nil {
		t.Fatal(err)
	}
	// selector + 7 words
	if len(data) != 4+7*32 {
		t.Errorf("calldata length = %d", len(data))
	}
}

func TestNewTxClient(t *testing.T) {
	pool := NewClientPool(logger.NewNop())

	if _, err := NewTxClient(DefaultTxClientConfig(""), pool, nil, logger.NewNop()); !apperror.IsCode(err, apperror.CodeExecutorNotConfigured) {
		t.Errorf("empty key err = %v", err)
	}
	if _, err := NewTxClient(DefaultTxClientConfig("zz"), pool, nil, logger.NewNop()); !apperror.IsCode(err, apperror.CodeConfigInvalid) {
		t.Errorf("bad key err = %v", err)
	}

	c, err := NewTxClient(DefaultTxClientConfig("0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"), pool, nil, logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	want := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	if c.Address() != want {
		t.Errorf("Address = %s, want %s", c.Address().Hex(), want.Hex())
	}
}

func TestWeiConversions(t *testing.T) {
	wei, _ := new(big.Int).SetString("1500000000000000000", 10)
	if got := WeiToEther(wei); !got.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("WeiToEther = %s", got)
	}
	if got := WeiToGwei(big.NewInt(2_500_000_000)); !got.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("WeiToGwei = %s", got)
	}
}

type staticResolver struct {
	handle   domain.ChainHandle
	endpoint string
}

func (r staticResolver) GetHandle(chain string) (domain.ChainHandle, bool) {
	return r.handle, chain == r.handle.Name
}

func (r staticResolver) ActiveEndpoint(string) (string, bool) {
	return r.endpoint, true
}

func TestTxClient_SubmitApprovesShortAllowance(t *testing.T) {
	weth := asset.NewToken(42161, common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1"), "WETH", "Wrapped Ether", 18)
	usdc := asset.NewToken(42161, common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831"), "USDC", "USD Coin", 6)
	router := common.HexToAddress("0x68b3465833fb72A70ecDF485E0e4C7bD8665Fc45")

	tests := []struct {
		name        string
		allowance   string
		wantSends   int
		wantSwapNum uint64
	}{
		{"short allowance", "0x" + strings.Repeat("0", 64), 2, 6},
		{"already approved", "0x" + strings.Repeat("f", 64), 1, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub, srv := newRPCStub(t, map[string]any{
				"eth_getTransactionCount":  "0x5",
				"eth_maxPriorityFeePerGas": "0x3b9aca00",
				"eth_getBlockByNumber":     testHeaderJSON(),
				"eth_call":                 tt.allowance,
				"eth_estimateGas":          "0x30d40",
				"eth_sendRawTransaction":   "0x" + strings.Repeat("0", 64),
			})
			pool := NewClientPool(logger.NewNop())
			defer pool.Close()

			resolver := staticResolver{
				handle:   domain.ChainHandle{Name: "arbitrum", ChainID: 42161, RouterAddress: router, Confirmations: 1},
				endpoint: srv.URL,
			}
			c, err := NewTxClient(DefaultTxClientConfig("0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"), pool, resolver, logger.NewNop())
			if err != nil {
				t.Fatal(err)
			}

			_, err = c.SubmitTransaction(context.Background(), "arbitrum", domain.TxSpec{
				TokenIn:      usdc,
				TokenOut:     weth,
				AmountIn:     decimal.RequireFromString("2000"),
				MinAmountOut: decimal.RequireFromString("0.995"),
				FeeTier:      500,
			})
			if err != nil {
				t.Fatalf("SubmitTransaction: %v", err)
			}

			sent := sentTransactions(t, stub)
			if len(sent) != tt.wantSends {
				t.Fatalf("sent %d transactions, want %d", len(sent), tt.wantSends)
			}

			if tt.wantSends == 2 {
				approve := sent[0]
				if *approve.To() != usdc.Address() || approve.Nonce() != 5 {
					t.Errorf("approve to=%s nonce=%d", approve.To().Hex(), approve.Nonce())
				}
				if !bytes.Equal(approve.Data()[:4], c.erc20ABI.Methods["approve"].ID) {
					t.Error("first transaction is not an approve")
				}
				if spender := common.BytesToAddress(approve.Data()[4:36]); spender != router {
					t.Errorf("approve spender = %s", spender.Hex())
				}
				if stub.count("eth_estimateGas") != 0 {
					t.Error("swap gas estimated before approve was mined")
				}
			}

			swap := sent[len(sent)-1]
			if *swap.To() != router || swap.Nonce() != tt.wantSwapNum {
				t.Errorf("swap to=%s nonce=%d, want nonce %d", swap.To().Hex(), swap.Nonce(), tt.wantSwapNum)
			}
			if !bytes.Equal(swap.Data()[:4], c.routerABI.Methods["exactInputSingle"].ID) {
				t.Fatal("last transaction is not exactInputSingle")
			}
			// tokenIn, tokenOut, fee
			fee := new(big.Int).SetBytes(swap.Data()[4+2*32 : 4+3*32])
			if fee.Int64() != 500 {
				t.Errorf("swap fee = %s, want 500", fee)
			}
		})
	}
}

func TestTxClient_SubmitRejectsMissingFeeTier(t *testing.T) {
	pool := NewClientPool(logger.NewNop())
	defer pool.Close()
	router := common.HexToAddress("0x68b3465833fb72A70ecDF485E0e4C7bD8665Fc45")
	resolver := staticResolver{
		handle:   domain.ChainHandle{Name: "arbitrum", ChainID: 42161, RouterAddress: router},
		endpoint: "http://127.0.0.1:1",
	}
	c, err := NewTxClient(DefaultTxClientConfig("0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"), pool, resolver, logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	usdc := asset.NewToken(42161, common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831"), "USDC", "USD Coin", 6)
	weth := asset.NewToken(42161, common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1"), "WETH", "Wrapped Ether", 18)
	_, err = c.SubmitTransaction(context.Background(), "arbitrum", domain.TxSpec{
		TokenIn:  usdc,
		TokenOut: weth,
		AmountIn: decimal.RequireFromString("2000"),
	})
	if !apperror.IsCode(err, apperror.CodeInvalidInput) {
		t.Errorf("err = %v, want INVALID_INPUT", err)
	}
}

func testHeaderJSON() map[string]any {
	zero := "0x" + strings.Repeat("0", 64)
	return map[string]any{
		"parentHash":       zero,
		"sha3Uncles":       zero,
		"miner":            "0x" + strings.Repeat("0", 40),
		"stateRoot":        zero,
		"transactionsRoot": zero,
		"receiptsRoot":     zero,
		"logsBloom":        "0x" + strings.Repeat("0", 512),
		"difficulty":       "0x0",
		"number":           "0x10",
		"gasLimit":         "0x1c9c380",
		"gasUsed":          "0x0",
		"timestamp":        "0x0",
		"extraData":        "0x",
		"baseFeePerGas":    "0x5f5e100",
	}
}

func sentTransactions(t *testing.T, stub *rpcStub) []*types.Transaction {
	t.Helper()
	var out []*types.Transaction
	for _, raw := range stub.paramsOf("eth_sendRawTransaction") {
		var params []string
		if err := json.Unmarshal(raw, &params); err != nil || len(params) != 1 {
			t.Fatalf("sendRawTransaction params %s: %v", raw, err)
		}
		b, err := hexutil.Decode(params[0])
		if err != nil {
			t.Fatal(err)
		}
		tx := new(types.Transaction)
		if err := tx.UnmarshalBinary(b); err != nil {
			t.Fatal(err)
		}
		out = append(out, tx)
	}
	return out
}
