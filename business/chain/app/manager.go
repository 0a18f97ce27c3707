package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/crosschain-arb/business/chain/domain"
	"github.com/fd1az/crosschain-arb/internal/apperror"
	"github.com/fd1az/crosschain-arb/internal/config"
	"github.com/fd1az/crosschain-arb/internal/logger"
)

const (
	tracerName = "github.com/fd1az/crosschain-arb/business/chain/app"
	meterName  = "github.com/fd1az/crosschain-arb/business/chain/app"
)

// ManagerConfig tunes health checking and gas sampling.
type ManagerConfig struct {
	HealthCheckInterval time.Duration
	ProbeTimeout        time.Duration
	GasSampleTimeout    time.Duration
	MaxConcurrentChecks int
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		HealthCheckInterval: 30 * time.Second,
		ProbeTimeout:        5 * time.Second,
		GasSampleTimeout:    3 * time.Second,
		MaxConcurrentChecks: 8,
	}
}

// ManagerConfigFrom maps the connectivity config section.
func ManagerConfigFrom(c config.ConnectivityConfig) ManagerConfig {
	return ManagerConfig{
		HealthCheckInterval: c.HealthCheckInterval,
		ProbeTimeout:        c.ProbeTimeout,
		GasSampleTimeout:    c.GasSampleTimeout,
		MaxConcurrentChecks: c.MaxConcurrentChecks,
	}
}

type managerMetrics struct {
	healthChecks metric.Int64Counter
	failovers    metric.Int64Counter
	probeLatency metric.Float64Histogram
	gasFallbacks metric.Int64Counter
}

type chainState struct {
	handle domain.ChainHandle
	health domain.HealthStatus
	active int // index into handle.Endpoints
}

// Manager owns one handle per supported chain and its health. Health is
// written only by RunHealthCheck; everything else reads.
type Manager struct {
	config ManagerConfig
	prober Prober
	gas    GasOracle
	logger logger.LoggerInterface

	mu     sync.RWMutex
	chains map[string]*chainState
	order  []string

	listenersMu sync.RWMutex
	listeners   []HealthListener

	now func() time.Time

	tracer  trace.Tracer
	metrics *managerMetrics
}

// NewManager creates a connectivity manager with no chains registered.
func NewManager(cfg ManagerConfig, prober Prober, gas GasOracle, log logger.LoggerInterface) (*Manager, error) {
	if cfg.MaxConcurrentChecks <= 0 {
		cfg.MaxConcurrentChecks = 1
	}
	m := &Manager{
		config: cfg,
		prober: prober,
		gas:    gas,
		logger: log,
		chains: make(map[string]*chainState),
		now:    time.Now,
		tracer: otel.Tracer(tracerName),
	}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return m, nil
}

func (m *Manager) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	m.metrics = &managerMetrics{}

	m.metrics.healthChecks, err = meter.Int64Counter(
		"chain_health_checks_total",
		metric.WithDescription("Health checks by chain and outcome"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return err
	}

	m.metrics.failovers, err = meter.Int64Counter(
		"chain_failovers_total",
		metric.WithDescription("Active endpoint swaps"),
		metric.WithUnit("{failover}"),
	)
	if err != nil {
		return err
	}

	m.metrics.probeLatency, err = meter.Float64Histogram(
		"chain_probe_latency_ms",
		metric.WithDescription("Successful probe latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	m.metrics.gasFallbacks, err = meter.Int64Counter(
		"chain_gas_floor_fallbacks_total",
		metric.WithDescription("Gas price requests answered by the configured floor after a failed sample"),
		metric.WithUnit("{fallback}"),
	)
	return err
}

// Subscribe registers a health listener.
func (m *Manager) Subscribe(l HealthListener) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Initialize registers every chain and probes them all concurrently. A chain
// whose probe fails stays registered and unhealthy.
func (m *Manager) Initialize(ctx context.Context, chains []domain.ChainHandle) error {
	if len(chains) == 0 {
		return apperror.New(apperror.CodeInvalidInput, apperror.WithContext("no chains to initialize"))
	}

	m.mu.Lock()
	for _, h := range chains {
		if _, dup := m.chains[h.Name]; dup {
			m.mu.Unlock()
			return apperror.New(apperror.CodeInvalidInput,
				apperror.WithContext(fmt.Sprintf("chain %s registered twice", h.Name)))
		}
		if len(h.Endpoints) == 0 {
			m.mu.Unlock()
			return apperror.New(apperror.CodeInvalidInput,
				apperror.WithContext(fmt.Sprintf("chain %s has no endpoints", h.Name)))
		}
		m.chains[h.Name] = &chainState{
			handle: h,
			health: domain.HealthStatus{ActiveEndpoint: h.Endpoints[0], LastError: "not probed"},
		}
		m.order = append(m.order, h.Name)
	}
	m.mu.Unlock()

	m.RunHealthChecks(ctx)

	healthy := 0
	for _, s := range m.Snapshot() {
		if s.Health.IsHealthy {
			healthy++
		}
	}
	m.logger.Info(ctx, "chains initialized", "registered", len(chains), "healthy", healthy)
	return nil
}

// GetHandle returns the handle for a chain.
func (m *Manager) GetHandle(chain string) (domain.ChainHandle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.chains[chain]
	if !ok {
		return domain.ChainHandle{}, false
	}
	return s.handle, true
}

// IsAvailable reports whether the chain is registered and healthy.
func (m *Manager) IsAvailable(chain string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.chains[chain]
	return ok && s.health.IsHealthy
}

// RequireAvailable returns a typed error when the chain cannot be used.
func (m *Manager) RequireAvailable(chain string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.chains[chain]
	if !ok {
		return apperror.NotFound(apperror.CodeChainNotFound, chain)
	}
	if !s.health.IsHealthy {
		return apperror.New(apperror.CodeChainUnavailable, apperror.WithContext(chain))
	}
	return nil
}

// Health returns the last observed health of a chain.
func (m *Manager) Health(chain string) (domain.HealthStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.chains[chain]
	if !ok {
		return domain.HealthStatus{}, false
	}
	return s.health, true
}

// ActiveEndpoint returns the endpoint that last passed a probe.
func (m *Manager) ActiveEndpoint(chain string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.chains[chain]
	if !ok {
		return "", false
	}
	return s.handle.Endpoints[s.active], true
}

// Chains returns registered chain names in registration order.
func (m *Manager) Chains() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

// AvailableChains returns the healthy chains in registration order.
func (m *Manager) AvailableChains() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.order))
	for _, name := range m.order {
		if m.chains[name].health.IsHealthy {
			out = append(out, name)
		}
	}
	return out
}

// Snapshot returns every chain with its health, in registration order.
func (m *Manager) Snapshot() []domain.ChainSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.ChainSnapshot, 0, len(m.order))
	for _, name := range m.order {
		s := m.chains[name]
		out = append(out, domain.ChainSnapshot{Handle: s.handle, Health: s.health})
	}
	return out
}

// GetOptimalGasPrice returns max(live sample, floor[tier]) in gwei, or the
// floor alone when sampling fails.
func (m *Manager) GetOptimalGasPrice(ctx context.Context, chain string, tier domain.GasTier) (decimal.Decimal, error) {
	ctx, span := m.tracer.Start(ctx, "chain.optimal_gas_price",
		trace.WithAttributes(
			attribute.String("chain", chain),
			attribute.String("tier", string(tier)),
		),
	)
	defer span.End()

	m.mu.RLock()
	s, ok := m.chains[chain]
	var (
		handle   domain.ChainHandle
		endpoint string
	)
	if ok {
		handle = s.handle
		endpoint = s.handle.Endpoints[s.active]
	}
	m.mu.RUnlock()

	if !ok {
		err := apperror.NotFound(apperror.CodeChainNotFound, chain)
		span.RecordError(err)
		span.SetStatus(codes.Error, "unknown chain")
		return decimal.Zero, err
	}

	floor := handle.GasFloors.For(tier)

	sampleCtx, cancel := context.WithTimeout(ctx, m.config.GasSampleTimeout)
	defer cancel()

	sampled, err := m.gas.Sample(sampleCtx, handle, endpoint)
	if err != nil {
		m.metrics.gasFallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("chain", chain)))
		span.AddEvent("gas_floor_fallback", trace.WithAttributes(attribute.String("error", err.Error())))
		m.logger.Debug(ctx, "gas sample failed, using floor", "chain", chain, "tier", tier, "floor", floor.String(), "error", err)
		return floor, nil
	}

	price := decimal.Max(sampled, floor)
	span.SetAttributes(attribute.String("gwei", price.String()))
	span.SetStatus(codes.Ok, "priced")
	return price, nil
}

// RunHealthCheck probes a chain starting at its active endpoint and walking
// the backups. The first endpoint that passes becomes active. If none pass
// the chain is marked unhealthy but stays registered.
func (m *Manager) RunHealthCheck(ctx context.Context, chain string) (domain.HealthStatus, error) {
	ctx, span := m.tracer.Start(ctx, "chain.health_check",
		trace.WithAttributes(attribute.String("chain", chain)),
	)
	defer span.End()

	m.mu.RLock()
	s, ok := m.chains[chain]
	var (
		handle domain.ChainHandle
		active int
		prev   domain.HealthStatus
	)
	if ok {
		handle, active, prev = s.handle, s.active, s.health
	}
	m.mu.RUnlock()

	if !ok {
		err := apperror.NotFound(apperror.CodeChainNotFound, chain)
		span.RecordError(err)
		return domain.HealthStatus{}, err
	}

	var (
		status  domain.HealthStatus
		lastErr error
		chosen  = -1
	)

	n := len(handle.Endpoints)
	for i := 0; i < n; i++ {
		idx := (active + i) % n
		endpoint := handle.Endpoints[idx]

		st, err := m.probeEndpoint(ctx, handle, endpoint)
		if err != nil {
			lastErr = err
			span.AddEvent("endpoint_failed", trace.WithAttributes(
				attribute.String("endpoint", endpoint),
				attribute.String("error", err.Error()),
			))
			m.logger.Warn(ctx, "chain probe failed", "chain", chain, "endpoint", endpoint, "error", err)
			continue
		}
		status, chosen = st, idx
		break
	}

	if chosen < 0 {
		status = domain.HealthStatus{
			IsHealthy:         false,
			LastObservedBlock: prev.LastObservedBlock,
			CurrentGasPrice:   prev.CurrentGasPrice,
			ObservedAt:        m.now(),
			ActiveEndpoint:    handle.Endpoints[active],
			LastError:         lastErr.Error(),
		}
		chosen = active
		span.SetStatus(codes.Error, "all endpoints failed")
		m.metrics.healthChecks.Add(ctx, 1, metric.WithAttributes(
			attribute.String("chain", chain), attribute.Bool("healthy", false)))
	} else {
		span.SetStatus(codes.Ok, "healthy")
		m.metrics.healthChecks.Add(ctx, 1, metric.WithAttributes(
			attribute.String("chain", chain), attribute.Bool("healthy", true)))
		m.metrics.probeLatency.Record(ctx, float64(status.LatencyMs),
			metric.WithAttributes(attribute.String("chain", chain)))
	}

	m.mu.Lock()
	s.health = status
	s.active = chosen
	m.mu.Unlock()

	if chosen != active {
		m.metrics.failovers.Add(ctx, 1, metric.WithAttributes(attribute.String("chain", chain)))
		m.logger.Warn(ctx, "chain.failover", "chain", chain,
			"from", handle.Endpoints[active], "to", handle.Endpoints[chosen])
	}

	if prev.IsHealthy != status.IsHealthy || prev.ActiveEndpoint != status.ActiveEndpoint {
		m.notify(ctx, chain, status)
	}

	return status, nil
}

// probeEndpoint runs the identity, block height and fee probes against one
// endpoint under the probe timeout. A failed fee sample does not fail the
// probe; the standard floor is recorded instead.
func (m *Manager) probeEndpoint(ctx context.Context, handle domain.ChainHandle, endpoint string) (domain.HealthStatus, error) {
	probeCtx, cancel := context.WithTimeout(ctx, m.config.ProbeTimeout)
	defer cancel()

	start := m.now()
	res, err := m.prober.Probe(probeCtx, handle, endpoint)
	if err != nil {
		if errors.Is(probeCtx.Err(), context.DeadlineExceeded) {
			return domain.HealthStatus{}, apperror.New(apperror.CodeChainProbeFailed,
				apperror.WithCause(err),
				apperror.WithContext(fmt.Sprintf("probe timed out after %s", m.config.ProbeTimeout)))
		}
		return domain.HealthStatus{}, apperror.Wrap(err, apperror.CodeChainProbeFailed, endpoint)
	}
	latency := m.now().Sub(start)

	if res.ChainID != handle.ChainID {
		return domain.HealthStatus{}, apperror.New(apperror.CodeChainIDMismatch,
			apperror.WithContext(fmt.Sprintf("%s reports chain id %d, want %d", endpoint, res.ChainID, handle.ChainID)))
	}

	status := domain.HealthStatus{
		IsHealthy:         true,
		LatencyMs:         latency.Milliseconds(),
		LastObservedBlock: res.BlockNumber,
		ObservedAt:        m.now(),
		ActiveEndpoint:    endpoint,
	}

	gas, err := m.gas.Sample(probeCtx, handle, endpoint)
	if err != nil {
		status.CurrentGasPrice = handle.GasFloors.Standard
		status.LastError = "gas sample: " + err.Error()
	} else {
		status.CurrentGasPrice = gas
	}

	return status, nil
}

// RunHealthChecks checks every chain concurrently, capped at
// MaxConcurrentChecks. One slow chain only occupies its own slot.
func (m *Manager) RunHealthChecks(ctx context.Context) {
	var g errgroup.Group
	g.SetLimit(m.config.MaxConcurrentChecks)

	for _, name := range m.Chains() {
		g.Go(func() error {
			_, _ = m.RunHealthCheck(ctx, name)
			return nil
		})
	}
	_ = g.Wait()
}

// Start runs the health loop until ctx is cancelled.
func (m *Manager) Start(ctx context.Context) {
	ticker := time.NewTicker(m.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.RunHealthChecks(ctx)
		}
	}
}

func (m *Manager) notify(ctx context.Context, chain string, status domain.HealthStatus) {
	m.listenersMu.RLock()
	listeners := append([]HealthListener(nil), m.listeners...)
	m.listenersMu.RUnlock()

	for _, l := range listeners {
		l.ChainHealthChanged(ctx, chain, status)
	}
}

var _ EndpointResolver = (*Manager)(nil)
