package app

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/crosschain-arb/business/arbitrage/domain"
	"github.com/fd1az/crosschain-arb/internal/apperror"
)

type scanFixture struct {
	clock  *fakeClock
	chains *fakeChains
	prices *fakePrices
	gas    fakeGas
	scan   *Scanner
	an     *Analyzer
}

func newScanFixture(t *testing.T, cfg ScannerConfig) *scanFixture {
	t.Helper()
	f := &scanFixture{
		clock: newFakeClock(),
		chains: newFakeChains(
			testHandle("arbitrum", 42161, usdcArb),
			testHandle("optimism", 10, usdcOp),
			testHandle("base", 8453, usdcBas),
		),
		prices: newFakePrices(),
		gas: fakeGas{
			"arbitrum": dec("10"),
			"optimism": dec("20"),
			"base":     dec("10"),
		},
	}
	for _, c := range []string{"arbitrum", "optimism", "base"} {
		f.prices.native[c] = dec("2000")
	}

	acfg := DefaultAnalyzerConfig()
	acfg.SwapGasUnits = 100_000
	acfg.BridgeGasUnits = 100_000
	f.an = NewAnalyzer(acfg, f.chains, f.gas, f.prices, testBridgesWithFee(t, "0"), f.clock)

	s, err := NewScanner(cfg, f.prices, f.an, nopLogger())
	if err != nil {
		t.Fatalf("NewScanner: %v", err)
	}
	f.scan = s
	return f
}

func TestAnalyzer_NetProfitAfterGas(t *testing.T) {
	f := newScanFixture(t, DefaultScannerConfig())

	opp, err := f.an.Analyze(context.Background(), domain.Candidate{
		Token:         wethToken(),
		Direction:     domain.Direction{Source: "arbitrum", Target: "optimism"},
		SourcePrice:   dec("2000"),
		TargetPrice:   dec("2030"),
		TradeAmount:   dec("1"),
		SpreadPercent: dec("1.5"),
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	checks := []struct {
		name      string
		got, want string
	}{
		{"gross", opp.Profit.GrossProfit.String(), "30"},
		{"source gas", opp.GasCost.Source.String(), "2"},
		{"target gas", opp.GasCost.Target.String(), "4"},
		{"bridge gas", opp.GasCost.Bridge.String(), "2"},
		{"net", opp.Profit.NetProfit.String(), "22"},
		{"margin", opp.Profit.MarginPercent.String(), "1.1"},
		{"bridge fee", opp.BridgeFee.String(), "0"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %s, want %s", c.name, c.got, c.want)
		}
	}

	if opp.Bridge != "across" {
		t.Errorf("bridge = %q", opp.Bridge)
	}
	if opp.SourceToken != wethArb || opp.TargetToken != wethOp {
		t.Errorf("tokens = %s/%s", opp.SourceToken.Hex(), opp.TargetToken.Hex())
	}
	// low spread 5 + bridge 15 + liquidity 10
	if opp.RiskScore != 30 {
		t.Errorf("risk = %d, want 30", opp.RiskScore)
	}
	if opp.Complexity != domain.ComplexityMedium {
		t.Errorf("complexity = %s, want medium", opp.Complexity)
	}
	if !opp.ExpiresAt.Equal(epoch.Add(5 * time.Minute)) {
		t.Errorf("expiresAt = %v", opp.ExpiresAt)
	}
	if opp.ID != domain.OpportunityID("arbitrum", "optimism", "WETH", epoch) {
		t.Errorf("id = %s", opp.ID)
	}
}

func TestAnalyzer_BridgeFeeCountsAgainstNetProfit(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		wantBridge string
		wantNet    string
		wantCode   apperror.Code
	}{
		// fee 0.2% of 2000 = 4 on top of 2 of bridge gas
		{name: "profitable after fee", target: "2030", wantBridge: "6", wantNet: "18"},
		{name: "fee erases the edge", target: "2012", wantCode: apperror.CodeNotProfitable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newScanFixture(t, DefaultScannerConfig())
			acfg := DefaultAnalyzerConfig()
			acfg.SwapGasUnits = 100_000
			acfg.BridgeGasUnits = 100_000
			an := NewAnalyzer(acfg, f.chains, f.gas, f.prices, testBridgesWithFee(t, "0.2"), f.clock)

			opp, err := an.Analyze(context.Background(), domain.Candidate{
				Token:         wethToken(),
				Direction:     domain.Direction{Source: "arbitrum", Target: "optimism"},
				SourcePrice:   dec("2000"),
				TargetPrice:   dec(tt.target),
				TradeAmount:   dec("1"),
				SpreadPercent: domain.SpreadPercent(dec("2000"), dec(tt.target)),
			})
			if tt.wantCode != "" {
				if !apperror.IsCode(err, tt.wantCode) {
					t.Fatalf("err = %v, want %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("Analyze: %v", err)
			}
			if opp.GasCost.Bridge.String() != tt.wantBridge || !opp.BridgeFee.Equal(dec("4")) {
				t.Errorf("bridge cost = %s (fee %s), want %s", opp.GasCost.Bridge, opp.BridgeFee, tt.wantBridge)
			}
			if opp.Profit.NetProfit.String() != tt.wantNet {
				t.Errorf("net = %s, want %s", opp.Profit.NetProfit, tt.wantNet)
			}
			total := opp.GasCost.Source.Add(opp.GasCost.Target).Add(opp.GasCost.Bridge)
			if !opp.Profit.NetProfit.Equal(opp.Profit.GrossProfit.Sub(total)) {
				t.Errorf("net %s != gross %s - costs %s", opp.Profit.NetProfit, opp.Profit.GrossProfit, total)
			}
		})
	}
}

func TestAnalyzer_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *scanFixture)
		target string
		price  string
		want   apperror.Code
	}{
		{
			name:   "gas exceeds gross",
			target: "optimism",
			price:  "2005",
			want:   apperror.CodeNotProfitable,
		},
		{
			name:   "no bridge route",
			target: "polygon",
			price:  "2030",
			mutate: func(f *scanFixture) {
				f.chains.handles["polygon"] = testHandle("polygon", 137, common.Address{})
				f.gas["polygon"] = dec("30")
			},
			want: apperror.CodeNoBridgeRoute,
		},
		{
			name:   "gas unavailable",
			target: "optimism",
			price:  "2030",
			mutate: func(f *scanFixture) { delete(f.gas, "optimism") },
			want:   apperror.CodeGasPriceUnavailable,
		},
		{
			name:   "native price unavailable",
			target: "optimism",
			price:  "2030",
			mutate: func(f *scanFixture) { delete(f.prices.native, "optimism") },
			want:   apperror.CodePriceUnavailable,
		},
		{
			name:   "unknown chain",
			target: "zksync",
			price:  "2030",
			want:   apperror.CodeChainNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newScanFixture(t, DefaultScannerConfig())
			if tt.mutate != nil {
				tt.mutate(f)
			}
			_, err := f.an.Analyze(context.Background(), domain.Candidate{
				Token:         wethToken(),
				Direction:     domain.Direction{Source: "arbitrum", Target: tt.target},
				SourcePrice:   dec("2000"),
				TargetPrice:   dec(tt.price),
				TradeAmount:   dec("1"),
				SpreadPercent: domain.SpreadPercent(dec("2000"), dec(tt.price)),
			})
			if !apperror.IsCode(err, tt.want) {
				t.Fatalf("err = %v, want %s", err, tt.want)
			}
		})
	}
}

func TestScanner_SpreadBelowThreshold(t *testing.T) {
	f := newScanFixture(t, DefaultScannerConfig())
	f.prices.set("arbitrum", wethArb, "2000")
	f.prices.set("optimism", wethOp, "2001.5")

	opps, err := f.scan.Scan(context.Background(), []domain.TrackedToken{wethToken()}, []string{"arbitrum", "optimism"})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(opps) != 0 {
		t.Fatalf("got %d opportunities, want none", len(opps))
	}
}

func TestScanner_OrientsCheaperChainAsSource(t *testing.T) {
	f := newScanFixture(t, DefaultScannerConfig())
	// optimism is listed first but arbitrum is cheaper.
	f.prices.set("optimism", wethOp, "2030")
	f.prices.set("arbitrum", wethArb, "2000")

	opps, err := f.scan.Scan(context.Background(), []domain.TrackedToken{wethToken()}, []string{"optimism", "arbitrum"})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(opps) != 1 {
		t.Fatalf("got %d opportunities, want 1", len(opps))
	}
	opp := opps[0]
	if opp.SourceChain != "arbitrum" || opp.TargetChain != "optimism" {
		t.Errorf("direction = %s", opp.Direction())
	}
	if !opp.Profit.NetProfit.Equal(dec("22")) {
		t.Errorf("net = %s, want 22", opp.Profit.NetProfit)
	}
}

func TestScanner_MissingPriceSkipsOnlyThatPair(t *testing.T) {
	f := newScanFixture(t, DefaultScannerConfig())
	f.prices.set("arbitrum", wethArb, "2000")
	f.prices.set("optimism", wethOp, "2030")
	// base has no price

	opps, err := f.scan.Scan(context.Background(), []domain.TrackedToken{wethToken()},
		[]string{"arbitrum", "optimism", "base"})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(opps) != 1 || opps[0].RouteKey() != "arbitrum-optimism-WETH" {
		t.Fatalf("opportunities = %+v", opps)
	}
}

func TestScanner_SortedByNetProfit(t *testing.T) {
	f := newScanFixture(t, DefaultScannerConfig())
	f.prices.set("arbitrum", wethArb, "2000")
	f.prices.set("optimism", wethOp, "2030")
	f.prices.set("base", wethBas, "2060")

	opps, err := f.scan.Scan(context.Background(), []domain.TrackedToken{wethToken()},
		[]string{"arbitrum", "optimism", "base"})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(opps) != 3 {
		t.Fatalf("got %d opportunities, want 3", len(opps))
	}
	for i := 1; i < len(opps); i++ {
		if opps[i].Profit.NetProfit.GreaterThan(opps[i-1].Profit.NetProfit) {
			t.Fatalf("not sorted at %d: %s > %s", i, opps[i].Profit.NetProfit, opps[i-1].Profit.NetProfit)
		}
	}
	if opps[0].RouteKey() != "arbitrum-base-WETH" {
		t.Errorf("best = %s, want arbitrum-base-WETH", opps[0].RouteKey())
	}
}

func TestScanner_BoundedParallelism(t *testing.T) {
	cfg := DefaultScannerConfig()
	cfg.MaxConcurrency = 2
	f := newScanFixture(t, cfg)
	f.prices.delay = 5 * time.Millisecond

	var chains []string
	tok := domain.TrackedToken{Symbol: "WETH", TradeAmount: dec("1"), Addresses: map[string]common.Address{}}
	for i := range 8 {
		name := string(rune('a' + i))
		chains = append(chains, name)
		tok.Addresses[name] = common.HexToAddress("0x01")
		// equal prices: every pair is priced on both sides, none qualifies
		f.prices.set(name, common.HexToAddress("0x01"), "2000")
	}

	if _, err := f.scan.Scan(context.Background(), []domain.TrackedToken{tok}, chains); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if peak := f.prices.peak.Load(); peak > 2 {
		t.Fatalf("peak concurrent price lookups = %d, want <= 2", peak)
	}
	// Each (chain, token) price is fetched once per scan.
	if calls := f.prices.calls.Load(); calls != int64(len(chains)) {
		t.Fatalf("price lookups = %d, want %d", calls, len(chains))
	}
}

func TestScanner_CancelledContext(t *testing.T) {
	f := newScanFixture(t, DefaultScannerConfig())
	f.prices.set("arbitrum", wethArb, "2000")
	f.prices.set("optimism", wethOp, "2030")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.scan.Scan(ctx, []domain.TrackedToken{wethToken()}, []string{"arbitrum", "optimism"}); err == nil {
		t.Fatal("expected context error")
	}
}
