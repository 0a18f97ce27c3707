package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/crosschain-arb/business/chain/domain"
	"github.com/fd1az/crosschain-arb/internal/apperror"
	"github.com/fd1az/crosschain-arb/internal/logger"
)

type fakeProber struct {
	mu      sync.Mutex
	fail    map[string]bool          // endpoint -> fail
	delay   map[string]time.Duration // endpoint -> delay before answering
	chainID map[string]uint64        // endpoint -> reported chain id override
	block   uint64
	calls   atomic.Int32
}

func newFakeProber() *fakeProber {
	return &fakeProber{
		fail:    make(map[string]bool),
		delay:   make(map[string]time.Duration),
		chainID: make(map[string]uint64),
		block:   100,
	}
}

func (p *fakeProber) setFail(endpoint string, fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail[endpoint] = fail
}

func (p *fakeProber) Probe(ctx context.Context, chain domain.ChainHandle, endpoint string) (domain.ProbeResult, error) {
	p.calls.Add(1)
	p.mu.Lock()
	fail, delay := p.fail[endpoint], p.delay[endpoint]
	id, override := p.chainID[endpoint]
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return domain.ProbeResult{}, ctx.Err()
		}
	}
	if fail {
		return domain.ProbeResult{}, errors.New("connection refused")
	}
	if !override {
		id = chain.ChainID
	}
	return domain.ProbeResult{ChainID: id, BlockNumber: p.block}, nil
}

type fakeGasOracle struct {
	mu    sync.Mutex
	price map[string]decimal.Decimal // chain -> gwei
	err   error
}

func (g *fakeGasOracle) Sample(_ context.Context, chain domain.ChainHandle, _ string) (decimal.Decimal, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return decimal.Zero, g.err
	}
	p, ok := g.price[chain.Name]
	if !ok {
		return decimal.Zero, errors.New("no sample")
	}
	return p, nil
}

type recordingListener struct {
	mu     sync.Mutex
	events []domain.HealthStatus
}

func (r *recordingListener) ChainHealthChanged(_ context.Context, _ string, s domain.HealthStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, s)
}

func testHandle(name string, id uint64, endpoints ...string) domain.ChainHandle {
	return domain.ChainHandle{
		Name:      name,
		ChainID:   id,
		Layer:     domain.LayerL2,
		Endpoints: endpoints,
		GasFloors: domain.GasFloors{
			Standard: decimal.RequireFromString("0.01"),
			Fast:     decimal.RequireFromString("0.05"),
			Instant:  decimal.RequireFromString("0.1"),
		},
	}
}

func newTestManager(t *testing.T, p Prober, g GasOracle) *Manager {
	t.Helper()
	cfg := DefaultManagerConfig()
	cfg.ProbeTimeout = 200 * time.Millisecond
	cfg.GasSampleTimeout = 100 * time.Millisecond
	m, err := NewManager(cfg, p, g, logger.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestManager_InitializeKeepsFailedChainsRegistered(t *testing.T) {
	p := newFakeProber()
	p.setFail("http://b", true)
	g := &fakeGasOracle{price: map[string]decimal.Decimal{"a": decimal.RequireFromString("1")}}
	m := newTestManager(t, p, g)

	err := m.Initialize(context.Background(), []domain.ChainHandle{
		testHandle("a", 1, "http://a"),
		testHandle("b", 2, "http://b"),
	})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if !m.IsAvailable("a") {
		t.Error("chain a should be available")
	}
	if m.IsAvailable("b") {
		t.Error("chain b should be unavailable")
	}
	h, ok := m.Health("b")
	if !ok {
		t.Fatal("chain b should still be registered")
	}
	if h.IsHealthy || h.LastError == "" {
		t.Errorf("chain b health = %+v, want unhealthy with error", h)
	}
	if _, ok := m.GetHandle("missing"); ok {
		t.Error("unknown chain should have no handle")
	}
	if err := m.RequireAvailable("b"); !apperror.IsCode(err, apperror.CodeChainUnavailable) {
		t.Errorf("RequireAvailable(b) = %v, want CHAIN_UNAVAILABLE", err)
	}
	if err := m.RequireAvailable("zzz"); !apperror.IsCode(err, apperror.CodeChainNotFound) {
		t.Errorf("RequireAvailable(zzz) = %v, want CHAIN_NOT_FOUND", err)
	}
}

func TestManager_InitializeRejectsDuplicates(t *testing.T) {
	m := newTestManager(t, newFakeProber(), &fakeGasOracle{})
	err := m.Initialize(context.Background(), []domain.ChainHandle{
		testHandle("a", 1, "http://a"),
		testHandle("a", 1, "http://a2"),
	})
	if err == nil {
		t.Fatal("expected duplicate chain error")
	}
}

func TestManager_HealthRestoredAfterRecovery(t *testing.T) {
	p := newFakeProber()
	p.setFail("http://a", true)
	m := newTestManager(t, p, &fakeGasOracle{})
	l := &recordingListener{}
	m.Subscribe(l)

	ctx := context.Background()
	if err := m.Initialize(ctx, []domain.ChainHandle{testHandle("a", 1, "http://a")}); err != nil {
		t.Fatal(err)
	}
	if m.IsAvailable("a") {
		t.Fatal("chain should start unhealthy")
	}

	p.setFail("http://a", false)
	st, err := m.RunHealthCheck(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if !st.IsHealthy || !m.IsAvailable("a") {
		t.Error("successful health check should restore health")
	}
	if st.LastObservedBlock != 100 {
		t.Errorf("LastObservedBlock = %d, want 100", st.LastObservedBlock)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.events) == 0 || !l.events[len(l.events)-1].IsHealthy {
		t.Errorf("listener should see recovery, got %+v", l.events)
	}
}

func TestManager_FailoverSwapsActiveEndpoint(t *testing.T) {
	p := newFakeProber()
	m := newTestManager(t, p, &fakeGasOracle{})
	ctx := context.Background()

	if err := m.Initialize(ctx, []domain.ChainHandle{testHandle("a", 1, "http://primary", "http://backup")}); err != nil {
		t.Fatal(err)
	}
	if ep, _ := m.ActiveEndpoint("a"); ep != "http://primary" {
		t.Fatalf("active = %s, want primary", ep)
	}

	p.setFail("http://primary", true)
	st, _ := m.RunHealthCheck(ctx, "a")
	if !st.IsHealthy {
		t.Fatalf("backup should keep chain healthy: %+v", st)
	}
	if ep, _ := m.ActiveEndpoint("a"); ep != "http://backup" {
		t.Errorf("active = %s, want backup", ep)
	}

	// The backup stays active while it works even after the primary recovers.
	p.setFail("http://primary", false)
	_, _ = m.RunHealthCheck(ctx, "a")
	if ep, _ := m.ActiveEndpoint("a"); ep != "http://backup" {
		t.Errorf("active = %s, want backup to stay", ep)
	}
}

func TestManager_ChainIDMismatchIsUnhealthy(t *testing.T) {
	p := newFakeProber()
	p.chainID["http://a"] = 999
	m := newTestManager(t, p, &fakeGasOracle{})
	_ = m.Initialize(context.Background(), []domain.ChainHandle{testHandle("a", 1, "http://a")})

	h, _ := m.Health("a")
	if h.IsHealthy {
		t.Error("mismatched chain id should be unhealthy")
	}
}

func TestManager_GetOptimalGasPrice(t *testing.T) {
	tests := []struct {
		name   string
		sample string
		err    error
		tier   domain.GasTier
		want   string
	}{
		{"sample above floor", "0.2", nil, domain.GasTierFast, "0.2"},
		{"floor above sample", "0.02", nil, domain.GasTierFast, "0.05"},
		{"sample fails", "", errors.New("rpc down"), domain.GasTierInstant, "0.1"},
		{"sample fails standard", "", errors.New("rpc down"), domain.GasTierStandard, "0.01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &fakeGasOracle{price: map[string]decimal.Decimal{}, err: tt.err}
			if tt.sample != "" {
				g.price["a"] = decimal.RequireFromString(tt.sample)
			}
			m := newTestManager(t, newFakeProber(), g)
			_ = m.Initialize(context.Background(), []domain.ChainHandle{testHandle("a", 1, "http://a")})

			got, err := m.GetOptimalGasPrice(context.Background(), "a", tt.tier)
			if err != nil {
				t.Fatal(err)
			}
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}

	m := newTestManager(t, newFakeProber(), &fakeGasOracle{})
	if _, err := m.GetOptimalGasPrice(context.Background(), "nope", domain.GasTierFast); !apperror.IsCode(err, apperror.CodeChainNotFound) {
		t.Errorf("unknown chain err = %v", err)
	}
}

func TestManager_SlowChainDoesNotBlockOthers(t *testing.T) {
	p := newFakeProber()
	p.delay["http://slow"] = time.Second
	m := newTestManager(t, p, &fakeGasOracle{})

	start := time.Now()
	_ = m.Initialize(context.Background(), []domain.ChainHandle{
		testHandle("slow", 1, "http://slow"),
		testHandle("fast1", 2, "http://f1"),
		testHandle("fast2", 3, "http://f2"),
	})
	elapsed := time.Since(start)

	// Bounded by the health check timeout, not the slow chain's one second delay.
	if elapsed > 600*time.Millisecond {
		t.Errorf("initialize took %s", elapsed)
	}
	if m.IsAvailable("slow") {
		t.Error("slow chain should time out and be unhealthy")
	}
	if !m.IsAvailable("fast1") || !m.IsAvailable("fast2") {
		t.Error("fast chains should be healthy")
	}
	if got := len(m.AvailableChains()); got != 2 {
		t.Errorf("AvailableChains = %d, want 2", got)
	}
}

func TestManager_ConcurrentReadsDuringChecks(t *testing.T) {
	p := newFakeProber()
	m := newTestManager(t, p, &fakeGasOracle{})
	ctx := context.Background()
	_ = m.Initialize(ctx, []domain.ChainHandle{testHandle("a", 1, "http://a", "http://b")})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = m.RunHealthCheck(ctx, "a")
		}()
		go func() {
			defer wg.Done()
			_ = m.IsAvailable("a")
			_ = m.Snapshot()
			_, _ = m.ActiveEndpoint("a")
		}()
	}
	wg.Wait()
}

func TestManager_RequireAvailableDuringChecks(t *testing.T) {
	p := newFakeProber()
	m := newTestManager(t, p, &fakeGasOracle{})
	ctx := context.Background()
	_ = m.Initialize(ctx, []domain.ChainHandle{testHandle("a", 1, "http://a")})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := range 200 {
			p.setFail("http://a", i%2 == 0)
			_, _ = m.RunHealthCheck(ctx, "a")
		}
	}()
	go func() {
		defer wg.Done()
		for range 2000 {
			err := m.RequireAvailable("a")
			if err != nil && !apperror.IsCode(err, apperror.CodeChainUnavailable) {
				t.Errorf("RequireAvailable: %v", err)
				return
			}
		}
	}()
	wg.Wait()

	p.setFail("http://a", false)
	if _, err := m.RunHealthCheck(ctx, "a"); err != nil {
		t.Fatalf("RunHealthCheck: %v", err)
	}
	if err := m.RequireAvailable("a"); err != nil {
		t.Errorf("RequireAvailable after recovery: %v", err)
	}
	if err := m.RequireAvailable("missing"); !apperror.IsCode(err, apperror.CodeChainNotFound) {
		t.Errorf("unknown chain err = %v, want CHAIN_NOT_FOUND", err)
	}
}
