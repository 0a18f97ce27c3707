package app

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/crosschain-arb/business/arbitrage/domain"
	bridgeApp "github.com/fd1az/crosschain-arb/business/bridge/app"
	bridgeDomain "github.com/fd1az/crosschain-arb/business/bridge/domain"
	chainDomain "github.com/fd1az/crosschain-arb/business/chain/domain"
	"github.com/fd1az/crosschain-arb/internal/apperror"
	"github.com/fd1az/crosschain-arb/internal/asset"
	"github.com/fd1az/crosschain-arb/internal/logger"
)

var (
	usdcArb = common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831")
	wethArb = common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1")
	usdcOp  = common.HexToAddress("0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85")
	wethOp  = common.HexToAddress("0x4200000000000000000000000000000000000006")
	usdcBas = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	wethBas = common.HexToAddress("0x4200000000000000000000000000000000000006")

	epoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testHandle(name string, id uint64, quote common.Address) chainDomain.ChainHandle {
	return chainDomain.ChainHandle{
		Name:           name,
		ChainID:        id,
		NativeCurrency: "ETH",
		Layer:          chainDomain.LayerL2,
		QuoteToken:     quote,
		Endpoints:      []string{"https://" + name + ".example"},
	}
}

func wethToken() domain.TrackedToken {
	return domain.TrackedToken{
		Symbol:      "WETH",
		TradeAmount: dec("1"),
		Addresses: map[string]common.Address{
			"arbitrum": wethArb,
			"optimism": wethOp,
			"base":     wethBas,
		},
	}
}

func testAssets(t *testing.T) *asset.Registry {
	t.Helper()
	r := asset.NewRegistry()
	for _, a := range []*asset.Asset{
		asset.NewToken(42161, usdcArb, "USDC", "USD Coin", 6),
		asset.NewToken(42161, wethArb, "WETH", "Wrapped Ether", 18),
		asset.NewToken(10, usdcOp, "USDC", "USD Coin", 6),
		asset.NewToken(10, wethOp, "WETH", "Wrapped Ether", 18),
	} {
		if err := r.Register(a); err != nil {
			t.Fatalf("Register(%s): %v", a, err)
		}
	}
	return r
}

func testBridges(t *testing.T) *bridgeApp.Registry {
	t.Helper()
	return testBridgesWithFee(t, "0.1")
}

// testBridgesWithFee routes every pair of the test chains through "across".
func testBridgesWithFee(t *testing.T, feePercent string) *bridgeApp.Registry {
	t.Helper()
	routes := map[bridgeDomain.Route]struct{}{}
	for _, a := range []string{"arbitrum", "optimism", "base"} {
		for _, b := range []string{"arbitrum", "optimism", "base"} {
			if a != b {
				routes[bridgeDomain.Route{From: a, To: b}] = struct{}{}
			}
		}
	}
	r, err := bridgeApp.NewRegistry([]bridgeDomain.Bridge{{
		Name:                     "across",
		FeePercent:               dec(feePercent),
		EstimatedTransferSeconds: 120,
		Routes:                   routes,
	}})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

// fakeClock is a settable Clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: epoch} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(dur time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(dur)
	c.mu.Unlock()
}

// fakeChains is a ChainView over a fixed set of handles.
type fakeChains struct {
	mu      sync.Mutex
	order   []string
	handles map[string]chainDomain.ChainHandle
	down    map[string]bool
}

func newFakeChains(handles ...chainDomain.ChainHandle) *fakeChains {
	f := &fakeChains{handles: map[string]chainDomain.ChainHandle{}, down: map[string]bool{}}
	for _, h := range handles {
		f.order = append(f.order, h.Name)
		f.handles[h.Name] = h
	}
	return f
}

func (f *fakeChains) setDown(chain string, down bool) {
	f.mu.Lock()
	f.down[chain] = down
	f.mu.Unlock()
}

func (f *fakeChains) GetHandle(chain string) (chainDomain.ChainHandle, bool) {
	h, ok := f.handles[chain]
	return h, ok
}

func (f *fakeChains) IsAvailable(chain string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.handles[chain]
	return ok && !f.down[chain]
}

func (f *fakeChains) RequireAvailable(chain string) error {
	if _, ok := f.handles[chain]; !ok {
		return apperror.NotFound(apperror.CodeChainNotFound, chain)
	}
	if !f.IsAvailable(chain) {
		return apperror.New(apperror.CodeChainUnavailable, apperror.WithContext(chain))
	}
	return nil
}

func (f *fakeChains) Health(chain string) (chainDomain.HealthStatus, bool) {
	if _, ok := f.handles[chain]; !ok {
		return chainDomain.HealthStatus{}, false
	}
	return chainDomain.HealthStatus{IsHealthy: f.IsAvailable(chain), ObservedAt: epoch}, true
}

func (f *fakeChains) AvailableChains() []string {
	var out []string
	for _, c := range f.order {
		if f.IsAvailable(c) {
			out = append(out, c)
		}
	}
	return out
}

// fakeGas returns a fixed gwei price per chain.
type fakeGas map[string]decimal.Decimal

func (g fakeGas) GetOptimalGasPrice(_ context.Context, chain string, _ chainDomain.GasTier) (decimal.Decimal, error) {
	p, ok := g[chain]
	if !ok {
		return decimal.Zero, apperror.New(apperror.CodeGasPriceUnavailable, apperror.WithContext(chain))
	}
	return p, nil
}

// fakePrices serves fixed prices and records how many lookups overlap.
type fakePrices struct {
	prices map[string]decimal.Decimal // chain:address
	native map[string]decimal.Decimal
	delay  time.Duration

	calls    atomic.Int64
	inflight atomic.Int64
	peak     atomic.Int64
}

func newFakePrices() *fakePrices {
	return &fakePrices{prices: map[string]decimal.Decimal{}, native: map[string]decimal.Decimal{}}
}

func (f *fakePrices) set(chain string, token common.Address, price string) {
	f.prices[chain+":"+token.Hex()] = dec(price)
}

func (f *fakePrices) GetPrice(_ context.Context, chain string, token common.Address) (decimal.Decimal, error) {
	f.calls.Add(1)
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	p, ok := f.prices[chain+":"+token.Hex()]
	if !ok {
		return decimal.Zero, apperror.New(apperror.CodePriceUnavailable, apperror.WithContext(chain))
	}
	return p, nil
}

func (f *fakePrices) NativePrice(_ context.Context, chain string) (decimal.Decimal, error) {
	p, ok := f.native[chain]
	if !ok {
		return decimal.Zero, apperror.New(apperror.CodePriceUnavailable, apperror.WithContext(chain))
	}
	return p, nil
}

type submittedTx struct {
	chain string
	spec  chainDomain.TxSpec
}

// fakeTx is a ChainClient whose receipts are set per chain. A chain without
// a receipt stays pending forever.
type fakeTx struct {
	// gate, when set, holds every submission until closed.
	gate     chan struct{}
	onSubmit func(chain string)

	mu        sync.Mutex
	next      int64
	submitted []submittedTx
	submitErr map[string]error
	receipts  map[string]chainDomain.TxReceipt
}

func newFakeTx() *fakeTx {
	return &fakeTx{submitErr: map[string]error{}, receipts: map[string]chainDomain.TxReceipt{}}
}

func (f *fakeTx) SubmitTransaction(ctx context.Context, chain string, spec chainDomain.TxSpec) (chainDomain.TxHandle, error) {
	if f.onSubmit != nil {
		f.onSubmit(chain)
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return chainDomain.TxHandle{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, submittedTx{chain: chain, spec: spec})
	if err := f.submitErr[chain]; err != nil {
		return chainDomain.TxHandle{}, err
	}
	f.next++
	return chainDomain.TxHandle{Chain: chain, Hash: common.BigToHash(big.NewInt(f.next))}, nil
}

func (f *fakeTx) GetStatus(_ context.Context, h chainDomain.TxHandle) (chainDomain.TxReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.receipts[h.Chain]
	if !ok {
		return chainDomain.TxReceipt{Status: chainDomain.TxPending}, nil
	}
	return r, nil
}

func (f *fakeTx) submissions() []submittedTx {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]submittedTx(nil), f.submitted...)
}

// fakeBridge is a BridgeClient with one scripted transfer state.
type fakeBridge struct {
	mu        sync.Mutex
	requests  []bridgeDomain.TransferRequest
	err       error
	transfer  bridgeDomain.Transfer
	pollError error
}

func (f *fakeBridge) Transfer(_ context.Context, req bridgeDomain.TransferRequest) (bridgeDomain.TransferHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return bridgeDomain.TransferHandle{}, f.err
	}
	return bridgeDomain.TransferHandle{Bridge: req.Bridge, ID: "t-1"}, nil
}

func (f *fakeBridge) GetTransfer(_ context.Context, h bridgeDomain.TransferHandle) (bridgeDomain.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pollError != nil {
		return bridgeDomain.Transfer{}, f.pollError
	}
	t := f.transfer
	t.Handle = h
	if t.Status == "" {
		t.Status = bridgeDomain.TransferPending
	}
	return t, nil
}

func (f *fakeBridge) transfers() []bridgeDomain.TransferRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bridgeDomain.TransferRequest(nil), f.requests...)
}

// recordingReporter keeps every event it sees in order.
type recordingReporter struct {
	mu      sync.Mutex
	events  []string
	started bool
	stopped bool
}

func (r *recordingReporter) Start(context.Context) error {
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()
	return nil
}

func (r *recordingReporter) OpportunityFound(_ context.Context, opp domain.Opportunity) {
	r.add("opportunity:" + opp.ID)
}

func (r *recordingReporter) ExecutionFinished(_ context.Context, res domain.ExecutionResult) {
	r.add("execution:" + string(res.Outcome))
}

func (r *recordingReporter) ChainHealthChanged(_ context.Context, chain string, _ chainDomain.HealthStatus) {
	r.add("health:" + chain)
}

func (r *recordingReporter) Stop() error {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
	return nil
}

func (r *recordingReporter) add(ev string) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recordingReporter) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// testOpportunity is a costed opportunity: buy 1 WETH at 2000 on
// arbitrum, sell at 2030 on optimism, 8 of gas.
func testOpportunity(now time.Time) domain.Opportunity {
	sp, tp, amount := dec("2000"), dec("2030"), dec("1")
	gas := domain.NewGasCost(dec("2"), dec("4"), dec("2"))
	return domain.Opportunity{
		ID:                domain.OpportunityID("arbitrum", "optimism", "WETH", now),
		TokenSymbol:       "WETH",
		SourceToken:       wethArb,
		TargetToken:       wethOp,
		SourceChain:       "arbitrum",
		TargetChain:       "optimism",
		SourcePrice:       sp,
		TargetPrice:       tp,
		TradeAmount:       amount,
		SpreadPercent:     domain.SpreadPercent(sp, tp),
		Profit:            domain.CalculateProfit(sp, tp, amount, gas),
		GasCost:           gas,
		SourceNativePrice: dec("2000"),
		TargetNativePrice: dec("2000"),
		Bridge:            "across",
		RiskScore:         30,
		CreatedAt:         now,
		ExpiresAt:         now.Add(5 * time.Minute),
	}
}

func nopLogger() logger.LoggerInterface { return logger.NewNop() }
