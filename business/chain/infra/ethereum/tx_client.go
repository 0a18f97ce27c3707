package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/crosschain-arb/business/chain/app"
	"github.com/fd1az/crosschain-arb/business/chain/domain"
	"github.com/fd1az/crosschain-arb/internal/apperror"
	"github.com/fd1az/crosschain-arb/internal/asset"
	"github.com/fd1az/crosschain-arb/internal/logger"
)

var _ app.ChainClient = (*TxClient)(nil)

// TxClientConfig configures transaction signing and submission.
type TxClientConfig struct {
	PrivateKey       string // hex, with or without 0x
	FallbackGasLimit uint64 // used when eth_estimateGas fails
	ApproveGasLimit  uint64
}

// DefaultTxClientConfig returns sensible defaults.
func DefaultTxClientConfig(privateKey string) TxClientConfig {
	return TxClientConfig{PrivateKey: privateKey, FallbackGasLimit: 300_000, ApproveGasLimit: 100_000}
}

type txClientMetrics struct {
	submitted metric.Int64Counter
	failures  metric.Int64Counter
}

// TxClient signs and submits SwapRouter02 exactInputSingle swaps from the
// executor wallet and tracks them to confirmation. A swap whose TokenIn
// allowance is short is preceded by an approve to the router.
type TxClient struct {
	config   TxClientConfig
	pool     *ClientPool
	resolver app.EndpointResolver
	logger   logger.LoggerInterface

	key       *ecdsa.PrivateKey
	from      common.Address
	routerABI abi.ABI
	erc20ABI  abi.ABI

	// per-chain submit lock keeps nonces sequential
	nonceMu sync.Mutex
	nonces  map[string]*sync.Mutex

	pending sync.Map // common.Hash -> domain.TxSpec

	tracer  trace.Tracer
	metrics *txClientMetrics
}

// NewTxClient creates a transaction client for the configured wallet.
func NewTxClient(cfg TxClientConfig, pool *ClientPool, resolver app.EndpointResolver, log logger.LoggerInterface) (*TxClient, error) {
	if cfg.PrivateKey == "" {
		return nil, apperror.New(apperror.CodeExecutorNotConfigured,
			apperror.WithContext("executor private key is not set"))
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, apperror.New(apperror.CodeConfigInvalid,
			apperror.WithCause(err),
			apperror.WithContext("executor private key"))
	}

	parsed, err := abi.JSON(strings.NewReader(SwapRouter02ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse router ABI: %w", err)
	}
	erc20, err := abi.JSON(strings.NewReader(ERC20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC-20 ABI: %w", err)
	}

	c := &TxClient{
		config:    cfg,
		pool:      pool,
		resolver:  resolver,
		logger:    log,
		key:       key,
		from:      crypto.PubkeyToAddress(key.PublicKey),
		routerABI: parsed,
		erc20ABI:  erc20,
		nonces:    make(map[string]*sync.Mutex),
		tracer:    otel.Tracer(tracerName),
	}

	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return c, nil
}

func (c *TxClient) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	c.metrics = &txClientMetrics{}

	c.metrics.submitted, err = meter.Int64Counter(
		"tx_submitted_total",
		metric.WithDescription("Transactions submitted"),
		metric.WithUnit("{tx}"),
	)
	if err != nil {
		return err
	}

	c.metrics.failures, err = meter.Int64Counter(
		"tx_submit_failures_total",
		metric.WithDescription("Transaction submissions that failed"),
		metric.WithUnit("{tx}"),
	)
	return err
}

// Address returns the executor wallet address.
func (c *TxClient) Address() common.Address {
	return c.from
}

func (c *TxClient) chainLock(chain string) *sync.Mutex {
	c.nonceMu.Lock()
	defer c.nonceMu.Unlock()
	mu, ok := c.nonces[chain]
	if !ok {
		mu = &sync.Mutex{}
		c.nonces[chain] = mu
	}
	return mu
}

func (c *TxClient) endpoint(chain string) (domain.ChainHandle, string, error) {
	handle, ok := c.resolver.GetHandle(chain)
	if !ok {
		return domain.ChainHandle{}, "", apperror.NotFound(apperror.CodeChainNotFound, chain)
	}
	ep, _ := c.resolver.ActiveEndpoint(chain)
	return handle, ep, nil
}

// SubmitTransaction signs and broadcasts an EIP-1559 swap.
func (c *TxClient) SubmitTransaction(ctx context.Context, chain string, spec domain.TxSpec) (domain.TxHandle, error) {
	ctx, span := c.tracer.Start(ctx, "tx.submit",
		trace.WithAttributes(
			attribute.String("chain", chain),
			attribute.String("token_in", spec.TokenIn.Symbol()),
			attribute.String("token_out", spec.TokenOut.Symbol()),
			attribute.String("amount_in", spec.AmountIn.String()),
		),
	)
	defer span.End()

	handle, endpoint, err := c.endpoint(chain)
	if err != nil {
		span.RecordError(err)
		return domain.TxHandle{}, err
	}
	if handle.RouterAddress == (common.Address{}) {
		err := apperror.New(apperror.CodeExecutorNotConfigured,
			apperror.WithContext(fmt.Sprintf("no router configured for %s", chain)))
		span.RecordError(err)
		return domain.TxHandle{}, err
	}

	signed, err := c.submitSwap(ctx, handle, endpoint, spec)
	if err != nil {
		c.metrics.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("chain", chain)))
		span.RecordError(err)
		span.SetStatus(codes.Error, "submit failed")
		return domain.TxHandle{}, err
	}

	h := domain.TxHandle{Chain: chain, Hash: signed.Hash()}
	c.pending.Store(h.Hash, spec)
	c.metrics.submitted.Add(ctx, 1, metric.WithAttributes(attribute.String("chain", chain)))

	span.SetAttributes(attribute.String("tx_hash", h.Hash.Hex()))
	span.SetStatus(codes.Ok, "submitted")
	c.logger.Info(ctx, "swap submitted", "chain", chain, "tx", h.Hash.Hex(),
		"in", spec.TokenIn.Symbol(), "out", spec.TokenOut.Symbol(), "amount_in", spec.AmountIn.String(),
		"fee_tier", spec.FeeTier)

	return h, nil
}

// submitSwap signs and broadcasts the swap, preceded by an approve when the
// router's allowance is short. Both hold the chain's nonce lock until sent.
func (c *TxClient) submitSwap(ctx context.Context, handle domain.ChainHandle, endpoint string, spec domain.TxSpec) (*types.Transaction, error) {
	if spec.FeeTier == 0 {
		return nil, apperror.New(apperror.CodeInvalidInput, apperror.WithContext("swap fee tier is not set"))
	}
	amountIn, err := asset.FloorDecimal(spec.TokenIn, spec.AmountIn)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInvalidInput, "amount in")
	}
	minOut, err := asset.FloorDecimal(spec.TokenOut, spec.MinAmountOut)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInvalidInput, "min amount out")
	}

	router := handle.RouterAddress
	data, err := c.routerABI.Pack("exactInputSingle", ExactInputSingleParams{
		TokenIn:           spec.TokenIn.Address(),
		TokenOut:          spec.TokenOut.Address(),
		Fee:               new(big.Int).SetUint64(uint64(spec.FeeTier)),
		Recipient:         c.from,
		AmountIn:          amountIn.Raw(),
		AmountOutMinimum:  minOut.Raw(),
		SqrtPriceLimitX96: big.NewInt(0),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode swap: %w", err)
	}

	client, err := c.pool.Client(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	mu := c.chainLock(handle.Name)
	mu.Lock()
	defer mu.Unlock()

	nonce, err := client.PendingNonceAt(ctx, c.from)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeChainRPCError, "pending nonce")
	}
	tip, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeChainRPCError, "gas tip cap")
	}
	feeCap, err := feeCapFor(ctx, client, tip)
	if err != nil {
		return nil, err
	}
	chainID := new(big.Int).SetUint64(handle.ChainID)

	allowance, err := c.allowance(ctx, endpoint, spec.TokenIn.Address(), router)
	if err != nil {
		return nil, err
	}
	approved := allowance.Cmp(amountIn.Raw()) >= 0
	if !approved {
		approveData, err := c.erc20ABI.Pack("approve", router, maxAllowance)
		if err != nil {
			return nil, fmt.Errorf("failed to encode approve: %w", err)
		}
		token := spec.TokenIn.Address()
		approveTx, err := c.sign(chainID, nonce, tip, feeCap, c.config.ApproveGasLimit, token, approveData)
		if err != nil {
			return nil, err
		}
		if err := client.SendTransaction(ctx, approveTx); err != nil {
			return nil, apperror.New(apperror.CodeTxSubmitFailed,
				apperror.WithCause(err),
				apperror.WithContext("approve "+spec.TokenIn.Symbol()+" on "+handle.Name))
		}
		c.logger.Info(ctx, "router allowance approved", "chain", handle.Name,
			"token", spec.TokenIn.Symbol(), "tx", approveTx.Hash().Hex())
		nonce++
	}

	// Until the approve is mined the swap would revert in simulation.
	gas := c.config.FallbackGasLimit
	if approved {
		est, err := client.EstimateGas(ctx, ethereum.CallMsg{From: c.from, To: &router, Data: data})
		if err != nil {
			c.logger.Warn(ctx, "gas estimate failed, using fallback", "chain", handle.Name, "error", err)
		} else {
			gas = est
		}
	}
	gas += gas / 5

	signed, err := c.sign(chainID, nonce, tip, feeCap, gas, router, data)
	if err != nil {
		return nil, err
	}
	if err := client.SendTransaction(ctx, signed); err != nil {
		return nil, apperror.New(apperror.CodeTxSubmitFailed,
			apperror.WithCause(err),
			apperror.WithContext(handle.Name))
	}
	return signed, nil
}

// allowance reads the router's ERC-20 allowance from the executor wallet.
func (c *TxClient) allowance(ctx context.Context, endpoint string, token, spender common.Address) (*big.Int, error) {
	data, err := c.erc20ABI.Pack("allowance", c.from, spender)
	if err != nil {
		return nil, fmt.Errorf("failed to encode allowance: %w", err)
	}
	out, err := c.pool.CallContract(ctx, endpoint, ethereum.CallMsg{From: c.from, To: &token, Data: data})
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeChainRPCError, "allowance")
	}
	values, err := c.erc20ABI.Unpack("allowance", out)
	if err != nil || len(values) != 1 {
		return nil, apperror.New(apperror.CodeChainRPCError,
			apperror.WithCause(err),
			apperror.WithContext("allowance result"))
	}
	v, ok := values[0].(*big.Int)
	if !ok {
		return nil, apperror.New(apperror.CodeChainRPCError, apperror.WithContext("allowance result type"))
	}
	return v, nil
}

func (c *TxClient) sign(chainID *big.Int, nonce uint64, tip, feeCap *big.Int, gas uint64, to common.Address, data []byte) (*types.Transaction, error) {
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     big.NewInt(0),
		Data:      data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), c.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}
	return signed, nil
}

// feeCapFor returns 2*baseFee + tip, or the legacy gas price on chains
// without a base fee.
func feeCapFor(ctx context.Context, client *ethclient.Client, tip *big.Int) (*big.Int, error) {
	head, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeChainRPCError, "latest header")
	}
	if head.BaseFee == nil {
		price, err := client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, apperror.Wrap(err, apperror.CodeChainRPCError, "gas price")
		}
		return price, nil
	}
	feeCap := new(big.Int).Mul(head.BaseFee, big.NewInt(2))
	return feeCap.Add(feeCap, tip), nil
}

// GetStatus reports pending until the receipt is buried under the chain's
// confirmation count.
func (c *TxClient) GetStatus(ctx context.Context, h domain.TxHandle) (domain.TxReceipt, error) {
	ctx, span := c.tracer.Start(ctx, "tx.status",
		trace.WithAttributes(
			attribute.String("chain", h.Chain),
			attribute.String("tx_hash", h.Hash.Hex()),
		),
	)
	defer span.End()

	handle, endpoint, err := c.endpoint(h.Chain)
	if err != nil {
		span.RecordError(err)
		return domain.TxReceipt{}, err
	}

	client, err := c.pool.Client(ctx, endpoint)
	if err != nil {
		span.RecordError(err)
		return domain.TxReceipt{}, err
	}

	receipt, err := client.TransactionReceipt(ctx, h.Hash)
	if errors.Is(err, ethereum.NotFound) {
		return domain.TxReceipt{Status: domain.TxPending}, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "receipt failed")
		return domain.TxReceipt{}, apperror.New(apperror.CodeTxStatusFailed,
			apperror.WithCause(err),
			apperror.WithContext(h.String()))
	}

	out := domain.TxReceipt{
		BlockNumber:  receipt.BlockNumber.Uint64(),
		GasUsed:      receipt.GasUsed,
		GasFeeNative: gasFee(receipt),
		AmountOut:    decimal.Zero,
	}

	if receipt.Status == types.ReceiptStatusFailed {
		out.Status = domain.TxFailed
		span.SetStatus(codes.Error, "reverted")
		return out, nil
	}

	head, err := client.BlockNumber(ctx)
	if err != nil {
		span.RecordError(err)
		return domain.TxReceipt{}, apperror.New(apperror.CodeTxStatusFailed,
			apperror.WithCause(err),
			apperror.WithContext("head block"))
	}

	if !isConfirmed(head, out.BlockNumber, handle.Confirmations) {
		out.Status = domain.TxPending
		return out, nil
	}

	out.Status = domain.TxConfirmed
	if v, ok := c.pending.Load(h.Hash); ok {
		spec := v.(domain.TxSpec)
		raw := receivedAmount(receipt.Logs, spec.TokenOut.Address(), c.from)
		out.AmountOut = asset.NewAmount(spec.TokenOut, raw).ToDecimal()
		c.pending.Delete(h.Hash)
	}

	span.SetAttributes(attribute.String("amount_out", out.AmountOut.String()))
	span.SetStatus(codes.Ok, "confirmed")
	return out, nil
}

// isConfirmed counts the receipt's own block as the first confirmation.
func isConfirmed(head, block, confirmations uint64) bool {
	if confirmations == 0 {
		confirmations = 1
	}
	return head >= block && head-block+1 >= confirmations
}

func gasFee(r *types.Receipt) decimal.Decimal {
	if r.EffectiveGasPrice == nil {
		return decimal.Zero
	}
	wei := new(big.Int).Mul(r.EffectiveGasPrice, new(big.Int).SetUint64(r.GasUsed))
	return WeiToEther(wei)
}
