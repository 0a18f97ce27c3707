package app

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/crosschain-arb/business/arbitrage/domain"
	"github.com/fd1az/crosschain-arb/internal/config"
)

// ScannerConfig tunes candidate discovery.
type ScannerConfig struct {
	MinSpreadPercent decimal.Decimal
	MaxConcurrency   int
}

// DefaultScannerConfig returns sensible defaults.
func DefaultScannerConfig() ScannerConfig {
	return ScannerConfig{
		MinSpreadPercent: decimal.RequireFromString("0.5"),
		MaxConcurrency:   4,
	}
}

// AnalyzerConfig holds the costing heuristics.
type AnalyzerConfig struct {
	SwapGasUnits   uint64
	BridgeGasUnits uint64
	OpportunityTTL time.Duration
	Risk           domain.RiskWeights
}

// DefaultAnalyzerConfig returns sensible defaults.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		SwapGasUnits:   200_000,
		BridgeGasUnits: 150_000,
		OpportunityTTL: 5 * time.Minute,
		Risk:           domain.DefaultRiskWeights(),
	}
}

// OrchestratorConfig holds phase deadlines and trade protection.
type OrchestratorConfig struct {
	SwapTimeout   time.Duration
	BridgeTimeout time.Duration
	PollInterval  time.Duration
	SlippageBps   int
	LockTTL       time.Duration

	// FeeTier is the Uniswap V3 pool fee (hundredths of a bip) both swaps
	// route through.
	FeeTier uint32
}

// DefaultOrchestratorConfig returns sensible defaults.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		SwapTimeout:   2 * time.Minute,
		BridgeTimeout: 30 * time.Minute,
		PollInterval:  3 * time.Second,
		SlippageBps:   50,
		LockTTL:       45 * time.Minute,
		FeeTier:       500,
	}
}

// EngineConfig drives the background loops and automatic trigger.
type EngineConfig struct {
	ScanInterval     time.Duration
	CleanupInterval  time.Duration
	AutoExecute      bool
	MaxConcurrent    int64
	MinNetProfit     decimal.Decimal
	MinMarginPercent decimal.Decimal
	MaxRiskScore     int
	EventBuffer      int
	ArchiveSize      int
}

// DefaultEngineConfig returns sensible defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		ScanInterval:     15 * time.Second,
		CleanupInterval:  30 * time.Second,
		MaxConcurrent:    2,
		MinNetProfit:     decimal.NewFromInt(10),
		MinMarginPercent: decimal.RequireFromString("0.3"),
		MaxRiskScore:     70,
		EventBuffer:      256,
		ArchiveSize:      500,
	}
}

// ScannerConfigFrom maps the scanner config section.
func ScannerConfigFrom(c config.ScannerConfig) ScannerConfig {
	return ScannerConfig{
		MinSpreadPercent: c.MinSpreadPercent,
		MaxConcurrency:   c.MaxConcurrency,
	}
}

// AnalyzerConfigFrom maps the analyzer config section.
func AnalyzerConfigFrom(c config.AnalyzerConfig) AnalyzerConfig {
	return AnalyzerConfig{
		SwapGasUnits:   c.SwapGasUnits,
		BridgeGasUnits: c.BridgeGasUnits,
		OpportunityTTL: c.OpportunityTTL,
		Risk: domain.RiskWeights{
			HighSpreadPercent:   c.Risk.HighSpreadPercent,
			MediumSpreadPercent: c.Risk.MediumSpreadPercent,
			HighSpreadScore:     c.Risk.HighSpreadScore,
			MediumSpreadScore:   c.Risk.MediumSpreadScore,
			LowSpreadScore:      c.Risk.LowSpreadScore,
			VolatileChainScore:  c.Risk.VolatileChainScore,
			BridgeScore:         c.Risk.BridgeScore,
			LiquidityScore:      c.Risk.LiquidityScore,
		},
	}
}

// OrchestratorConfigFrom maps the executor, redis and market sections.
func OrchestratorConfigFrom(e config.ExecutorConfig, r config.RedisConfig, m config.MarketConfig) OrchestratorConfig {
	return OrchestratorConfig{
		SwapTimeout:   e.SwapTimeout,
		BridgeTimeout: e.BridgeTimeout,
		PollInterval:  e.PollInterval,
		SlippageBps:   e.SlippageBps,
		LockTTL:       r.LockTTL,
		FeeTier:       uint32(m.FeeTier),
	}
}

// EngineConfigFrom maps the scanner and executor sections.
func EngineConfigFrom(s config.ScannerConfig, e config.ExecutorConfig) EngineConfig {
	cfg := DefaultEngineConfig()
	cfg.ScanInterval = s.Interval
	cfg.CleanupInterval = s.CleanupInterval
	cfg.AutoExecute = e.AutoExecute
	cfg.MaxConcurrent = int64(e.MaxConcurrent)
	cfg.MinNetProfit = e.MinNetProfit
	cfg.MinMarginPercent = e.MinMarginPercent
	cfg.MaxRiskScore = e.MaxRiskScore
	if e.ArchiveSize > 0 {
		cfg.ArchiveSize = e.ArchiveSize
	}
	return cfg
}

// TrackedTokensFrom returns the tokens flagged tracked in config.
func TrackedTokensFrom(tokens []config.TokenConfig) []domain.TrackedToken {
	var out []domain.TrackedToken
	for _, t := range tokens {
		if !t.Tracked {
			continue
		}
		addrs := make(map[string]common.Address, len(t.Addresses))
		for chain, hex := range t.Addresses {
			addrs[chain] = common.HexToAddress(hex)
		}
		out = append(out, domain.TrackedToken{
			Symbol:      t.Symbol,
			TradeAmount: t.TradeAmount,
			Addresses:   addrs,
		})
	}
	return out
}
