// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Telemetry    TelemetryConfig    `mapstructure:"telemetry"`
	Health       HealthConfig       `mapstructure:"health"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Connectivity ConnectivityConfig `mapstructure:"connectivity"`
	Chains       []ChainConfig      `mapstructure:"chains"`
	Tokens       []TokenConfig      `mapstructure:"tokens"`
	Bridges      []BridgeConfig     `mapstructure:"bridges"`
	Market       MarketConfig       `mapstructure:"market"`
	Scanner      ScannerConfig      `mapstructure:"scanner"`
	Analyzer     AnalyzerConfig     `mapstructure:"analyzer"`
	Executor     ExecutorConfig     `mapstructure:"executor"`
	TUIMode      bool               `mapstructure:"-"` // set at runtime
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"` // json | console
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ServiceName   string `mapstructure:"service_name"`
	TraceExporter string `mapstructure:"trace_exporter"` // zipkin | otlp-grpc | otlp-http | console | none
	Endpoint      string `mapstructure:"endpoint"`
	MetricsPort   int    `mapstructure:"metrics_port"`
	OTLPMetrics   bool   `mapstructure:"otlp_metrics"`
}

// HealthConfig configures the health HTTP server.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// RedisConfig configures the optional shared redis instance.
type RedisConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Addr          string        `mapstructure:"addr"`
	Password      string        `mapstructure:"password"`
	DB            int           `mapstructure:"db"`
	LockTTL       time.Duration `mapstructure:"lock_ttl"`
	PriceCacheTTL time.Duration `mapstructure:"price_cache_ttl"`
	EventStream   string        `mapstructure:"event_stream"`
	StreamMaxLen  int64         `mapstructure:"stream_max_len"`
}

// ConnectivityConfig tunes health checking and gas sampling.
type ConnectivityConfig struct {
	HealthCheckInterval time.Duration   `mapstructure:"health_check_interval"`
	ProbeTimeout        time.Duration   `mapstructure:"probe_timeout"`
	GasSampleTimeout    time.Duration   `mapstructure:"gas_sample_timeout"`
	GasCacheTTL         time.Duration   `mapstructure:"gas_cache_ttl"`
	MaxConcurrentChecks int             `mapstructure:"max_concurrent_checks"`
	MaxGasPriceGwei     decimal.Decimal `mapstructure:"max_gas_price_gwei"`
}

// GasFloorsConfig are the per-tier gas price floors in gwei.
type GasFloorsConfig struct {
	Standard decimal.Decimal `mapstructure:"standard"`
	Fast     decimal.Decimal `mapstructure:"fast"`
	Instant  decimal.Decimal `mapstructure:"instant"`
}

// ChainConfig describes one supported network.
type ChainConfig struct {
	Name            string          `mapstructure:"name"`
	ChainID         uint64          `mapstructure:"chain_id"`
	NativeCurrency  string          `mapstructure:"native_currency"`
	WrappedNative   string          `mapstructure:"wrapped_native"`
	Layer           string          `mapstructure:"layer"` // L1 | L2
	HighGasVariance bool            `mapstructure:"high_gas_variance"`
	Confirmations   uint64          `mapstructure:"confirmations"`
	RPCURL          string          `mapstructure:"rpc_url"`
	BackupRPCURLs   []string        `mapstructure:"backup_rpc_urls"`
	GasFloorsGwei   GasFloorsConfig `mapstructure:"gas_floors_gwei"`
	QuoterAddress   string          `mapstructure:"quoter_address"`
	RouterAddress   string          `mapstructure:"router_address"`
	QuoteToken      string          `mapstructure:"quote_token"`
}

// Endpoints returns the primary endpoint followed by backups.
func (c ChainConfig) Endpoints() []string {
	out := make([]string, 0, 1+len(c.BackupRPCURLs))
	if c.RPCURL != "" {
		out = append(out, c.RPCURL)
	}
	for _, u := range c.BackupRPCURLs {
		if u != "" {
			out = append(out, u)
		}
	}
	return out
}

// TokenConfig describes a tracked token and its per-chain addresses.
type TokenConfig struct {
	Symbol      string            `mapstructure:"symbol"`
	Name        string            `mapstructure:"name"`
	Decimals    uint8             `mapstructure:"decimals"`
	TradeAmount decimal.Decimal   `mapstructure:"trade_amount"`
	Tracked     bool              `mapstructure:"tracked"`
	Addresses   map[string]string `mapstructure:"addresses"`
}

// BridgeConfig describes one bridge. Routes are "from:to" pairs.
type BridgeConfig struct {
	Name                     string          `mapstructure:"name"`
	FeePercent               decimal.Decimal `mapstructure:"fee_percent"`
	EstimatedTransferSeconds int             `mapstructure:"estimated_transfer_seconds"`
	MinAmount                decimal.Decimal `mapstructure:"min_amount"`
	MaxAmount                decimal.Decimal `mapstructure:"max_amount"`
	Routes                   []string        `mapstructure:"routes"`
	Bidirectional            bool            `mapstructure:"bidirectional"`
}

// MarketConfig configures the price gateway.
type MarketConfig struct {
	Provider          string        `mapstructure:"provider"` // uniswap | http
	HTTPBaseURL       string        `mapstructure:"http_base_url"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Burst             int           `mapstructure:"burst"`
	FeeTier           int           `mapstructure:"fee_tier"`
}

// ScannerConfig configures opportunity scanning.
type ScannerConfig struct {
	Interval         time.Duration   `mapstructure:"interval"`
	CleanupInterval  time.Duration   `mapstructure:"cleanup_interval"`
	MinSpreadPercent decimal.Decimal `mapstructure:"min_spread_percent"`
	MaxConcurrency   int             `mapstructure:"max_concurrency"`
}

// RiskConfig holds the additive risk weights.
type RiskConfig struct {
	HighSpreadPercent   decimal.Decimal `mapstructure:"high_spread_percent"`
	MediumSpreadPercent decimal.Decimal `mapstructure:"medium_spread_percent"`
	HighSpreadScore     int             `mapstructure:"high_spread_score"`
	MediumSpreadScore   int             `mapstructure:"medium_spread_score"`
	LowSpreadScore      int             `mapstructure:"low_spread_score"`
	VolatileChainScore  int             `mapstructure:"volatile_chain_score"`
	BridgeScore         int             `mapstructure:"bridge_score"`
	LiquidityScore      int             `mapstructure:"liquidity_score"`
}

// AnalyzerConfig configures costing and risk.
type AnalyzerConfig struct {
	SwapGasUnits   uint64        `mapstructure:"swap_gas_units"`
	BridgeGasUnits uint64        `mapstructure:"bridge_gas_units"`
	OpportunityTTL time.Duration `mapstructure:"opportunity_ttl"`
	Risk           RiskConfig    `mapstructure:"risk"`
}

// ExecutorConfig configures the execution orchestrator.
type ExecutorConfig struct {
	AutoExecute      bool            `mapstructure:"auto_execute"`
	SwapTimeout      time.Duration   `mapstructure:"swap_timeout"`
	BridgeTimeout    time.Duration   `mapstructure:"bridge_timeout"`
	PollInterval     time.Duration   `mapstructure:"poll_interval"`
	MaxConcurrent    int             `mapstructure:"max_concurrent"`
	MinNetProfit     decimal.Decimal `mapstructure:"min_net_profit"`
	MinMarginPercent decimal.Decimal `mapstructure:"min_margin_percent"`
	MaxRiskScore     int             `mapstructure:"max_risk_score"`
	PrivateKey       string          `mapstructure:"private_key"`
	SlippageBps      int             `mapstructure:"slippage_bps"`
	BridgeAPIURL     string          `mapstructure:"bridge_api_url"`
	BridgeAPIKey     string          `mapstructure:"bridge_api_key"`
	ArchiveSize      int             `mapstructure:"archive_size"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("ARB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		decimalHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

// decimalHook decodes strings and numbers into decimal.Decimal. Strings are
// preferred in config files since they avoid float rounding.
func decimalHook() mapstructure.DecodeHookFuncType {
	return func(_ reflect.Type, to reflect.Type, data any) (any, error) {
		if to != decimalType {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			if v == "" {
				return decimal.Zero, nil
			}
			return decimal.NewFromString(v)
		case float64:
			return decimal.NewFromFloat(v), nil
		case float32:
			return decimal.NewFromFloat32(v), nil
		case int:
			return decimal.NewFromInt(int64(v)), nil
		case int64:
			return decimal.NewFromInt(v), nil
		case decimal.Decimal:
			return v, nil
		case nil:
			return decimal.Zero, nil
		}
		return data, nil
	}
}

func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("app.log_level", "ARB_LOG_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv("app.environment", "ARB_ENVIRONMENT", "ENVIRONMENT")

	_ = v.BindEnv("redis.addr", "ARB_REDIS_ADDR", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "ARB_REDIS_PASSWORD", "REDIS_PASSWORD")

	_ = v.BindEnv("executor.private_key", "ARB_EXECUTOR_PRIVATE_KEY")
	_ = v.BindEnv("executor.bridge_api_key", "ARB_BRIDGE_API_KEY")

	_ = v.BindEnv("telemetry.enabled", "ARB_OTEL_ENABLED", "OTEL_ENABLED")
	_ = v.BindEnv("telemetry.endpoint", "ARB_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "crossarb")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "crossarb")
	v.SetDefault("telemetry.trace_exporter", "zipkin")
	v.SetDefault("telemetry.endpoint", "http://localhost:9411/api/v2/spans")
	v.SetDefault("telemetry.metrics_port", 9090)

	v.SetDefault("health.enabled", true)
	v.SetDefault("health.port", 8081)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.lock_ttl", "45m")
	v.SetDefault("redis.price_cache_ttl", "3s")
	v.SetDefault("redis.event_stream", "crossarb:events")
	v.SetDefault("redis.stream_max_len", 10000)

	v.SetDefault("connectivity.health_check_interval", "30s")
	v.SetDefault("connectivity.probe_timeout", "5s")
	v.SetDefault("connectivity.gas_sample_timeout", "3s")
	v.SetDefault("connectivity.gas_cache_ttl", "12s")
	v.SetDefault("connectivity.max_concurrent_checks", 8)
	v.SetDefault("connectivity.max_gas_price_gwei", "500")

	v.SetDefault("market.provider", "uniswap")
	v.SetDefault("market.request_timeout", "4s")
	v.SetDefault("market.requests_per_minute", 600)
	v.SetDefault("market.burst", 10)
	v.SetDefault("market.fee_tier", 500)

	v.SetDefault("scanner.interval", "15s")
	v.SetDefault("scanner.cleanup_interval", "30s")
	v.SetDefault("scanner.min_spread_percent", "0.5")
	v.SetDefault("scanner.max_concurrency", 4)

	v.SetDefault("analyzer.swap_gas_units", 200000)
	v.SetDefault("analyzer.bridge_gas_units", 150000)
	v.SetDefault("analyzer.opportunity_ttl", "5m")
	v.SetDefault("analyzer.risk.high_spread_percent", "5")
	v.SetDefault("analyzer.risk.medium_spread_percent", "2")
	v.SetDefault("analyzer.risk.high_spread_score", 30)
	v.SetDefault("analyzer.risk.medium_spread_score", 15)
	v.SetDefault("analyzer.risk.low_spread_score", 5)
	v.SetDefault("analyzer.risk.volatile_chain_score", 20)
	v.SetDefault("analyzer.risk.bridge_score", 15)
	v.SetDefault("analyzer.risk.liquidity_score", 10)

	v.SetDefault("executor.auto_execute", false)
	v.SetDefault("executor.swap_timeout", "2m")
	v.SetDefault("executor.bridge_timeout", "30m")
	v.SetDefault("executor.poll_interval", "3s")
	v.SetDefault("executor.max_concurrent", 2)
	v.SetDefault("executor.min_net_profit", "10")
	v.SetDefault("executor.min_margin_percent", "0.3")
	v.SetDefault("executor.max_risk_score", 70)
	v.SetDefault("executor.private_key", "")
	v.SetDefault("executor.slippage_bps", 50)
	v.SetDefault("executor.bridge_api_key", "")
	v.SetDefault("executor.archive_size", 500)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if len(c.Chains) < 2 {
		return fmt.Errorf("at least two chains are required, got %d", len(c.Chains))
	}

	chains := make(map[string]struct{}, len(c.Chains))
	for _, ch := range c.Chains {
		if ch.Name == "" {
			return fmt.Errorf("chain name is required")
		}
		if _, dup := chains[ch.Name]; dup {
			return fmt.Errorf("duplicate chain %q", ch.Name)
		}
		chains[ch.Name] = struct{}{}

		if ch.ChainID == 0 {
			return fmt.Errorf("chain %s: chain_id is required", ch.Name)
		}
		if len(ch.Endpoints()) == 0 {
			return fmt.Errorf("chain %s: rpc_url is required", ch.Name)
		}
		if ch.Layer != "L1" && ch.Layer != "L2" {
			return fmt.Errorf("chain %s: layer must be L1 or L2, got %q", ch.Name, ch.Layer)
		}
		f := ch.GasFloorsGwei
		if f.Standard.IsNegative() || f.Fast.IsNegative() || f.Instant.IsNegative() {
			return fmt.Errorf("chain %s: gas floors must not be negative", ch.Name)
		}
		for _, addr := range []string{ch.WrappedNative, ch.QuoterAddress, ch.RouterAddress} {
			if addr != "" && !common.IsHexAddress(addr) {
				return fmt.Errorf("chain %s: invalid address %s", ch.Name, addr)
			}
		}
	}

	for _, t := range c.Tokens {
		if t.Symbol == "" {
			return fmt.Errorf("token symbol is required")
		}
		for chain, addr := range t.Addresses {
			if _, ok := chains[chain]; !ok {
				return fmt.Errorf("token %s: unknown chain %q", t.Symbol, chain)
			}
			if !common.IsHexAddress(addr) {
				return fmt.Errorf("token %s: invalid address %s on %s", t.Symbol, addr, chain)
			}
		}
		if t.Tracked && !t.TradeAmount.IsPositive() {
			return fmt.Errorf("token %s: trade_amount must be positive", t.Symbol)
		}
	}

	for _, b := range c.Bridges {
		if b.Name == "" {
			return fmt.Errorf("bridge name is required")
		}
		if b.FeePercent.IsNegative() {
			return fmt.Errorf("bridge %s: fee_percent must not be negative", b.Name)
		}
		if b.MaxAmount.IsPositive() && b.MinAmount.GreaterThan(b.MaxAmount) {
			return fmt.Errorf("bridge %s: min_amount exceeds max_amount", b.Name)
		}
		for _, r := range b.Routes {
			from, to, ok := SplitRoute(r)
			if !ok {
				return fmt.Errorf("bridge %s: invalid route %q", b.Name, r)
			}
			if _, ok := chains[from]; !ok {
				return fmt.Errorf("bridge %s: unknown chain %q", b.Name, from)
			}
			if _, ok := chains[to]; !ok {
				return fmt.Errorf("bridge %s: unknown chain %q", b.Name, to)
			}
		}
	}

	if c.Connectivity.HealthCheckInterval <= 0 || c.Connectivity.ProbeTimeout <= 0 {
		return fmt.Errorf("connectivity intervals must be positive")
	}
	if c.Connectivity.MaxConcurrentChecks <= 0 || c.Scanner.MaxConcurrency <= 0 {
		return fmt.Errorf("concurrency limits must be positive")
	}
	if c.Scanner.MinSpreadPercent.IsNegative() {
		return fmt.Errorf("scanner.min_spread_percent must not be negative")
	}
	if c.Analyzer.OpportunityTTL <= 0 {
		return fmt.Errorf("analyzer.opportunity_ttl must be positive")
	}
	if c.Executor.SwapTimeout <= 0 || c.Executor.BridgeTimeout <= 0 || c.Executor.PollInterval <= 0 {
		return fmt.Errorf("executor timeouts must be positive")
	}
	if c.Executor.SlippageBps < 0 || c.Executor.SlippageBps >= 10_000 {
		return fmt.Errorf("executor.slippage_bps must be within 0-9999, got %d", c.Executor.SlippageBps)
	}
	// The lock must outlive the longest execution: buy, bridge, sell.
	if maxExec := 2*c.Executor.SwapTimeout + c.Executor.BridgeTimeout; c.Redis.Enabled && c.Redis.LockTTL < maxExec {
		return fmt.Errorf("redis.lock_ttl %s is shorter than the longest execution %s", c.Redis.LockTTL, maxExec)
	}

	r := c.Analyzer.Risk
	for _, w := range []int{r.HighSpreadScore, r.MediumSpreadScore, r.LowSpreadScore, r.VolatileChainScore, r.BridgeScore, r.LiquidityScore} {
		if w < 0 || w > 100 {
			return fmt.Errorf("risk weights must be within 0-100, got %d", w)
		}
	}

	switch c.Market.FeeTier {
	case 100, 500, 3000, 10000:
	default:
		return fmt.Errorf("market.fee_tier must be one of 100, 500, 3000, 10000, got %d", c.Market.FeeTier)
	}

	switch c.Market.Provider {
	case "uniswap":
	case "http":
		if c.Market.HTTPBaseURL == "" {
			return fmt.Errorf("market.http_base_url is required for the http provider")
		}
	default:
		return fmt.Errorf("unknown market.provider %q", c.Market.Provider)
	}

	return nil
}

// SplitRoute parses a "from:to" bridge route.
func SplitRoute(route string) (from, to string, ok bool) {
	from, to, ok = strings.Cut(route, ":")
	if !ok || from == "" || to == "" || from == to {
		return "", "", false
	}
	return strings.TrimSpace(from), strings.TrimSpace(to), true
}
