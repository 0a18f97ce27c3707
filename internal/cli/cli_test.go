package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	chainDomain "github.com/fd1az/crosschain-arb/business/chain/domain"
	"github.com/fd1az/crosschain-arb/internal/config"
)

func TestWriteChains(t *testing.T) {
	snaps := []chainDomain.ChainSnapshot{
		{
			Handle: chainDomain.ChainHandle{Name: "ethereum", ChainID: 1, Layer: chainDomain.LayerL1},
			Health: chainDomain.HealthStatus{
				IsHealthy:         true,
				LatencyMs:         42,
				LastObservedBlock: 19000000,
				CurrentGasPrice:   decimal.RequireFromString("12.5"),
				ActiveEndpoint:    "https://eth.example",
			},
		},
		{
			Handle: chainDomain.ChainHandle{Name: "base", ChainID: 8453, Layer: chainDomain.LayerL2},
			Health: chainDomain.HealthStatus{LastError: "dial tcp: connection refused"},
		},
	}

	var buf bytes.Buffer
	writeChains(&buf, snaps)
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")

	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), buf.String())
	}
	tests := []struct {
		line int
		want []string
	}{
		{0, []string{"CHAIN", "LATENCY", "ENDPOINT"}},
		{1, []string{"ethereum", "L1", "healthy", "42ms", "19000000", "12.500", "https://eth.example"}},
		{2, []string{"base", "8453", "L2", "down"}},
		{3, []string{"error: dial tcp: connection refused"}},
	}
	for _, tt := range tests {
		for _, w := range tt.want {
			if !strings.Contains(lines[tt.line], w) {
				t.Errorf("line %d = %q, missing %q", tt.line, lines[tt.line], w)
			}
		}
	}
}

func TestVersionCommand(t *testing.T) {
	prev := build
	build = BuildInfo{Version: "1.2.3", Commit: "abc123", BuildDate: "2026-01-01"}
	defer func() { build = prev }()

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"version"})
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	}()

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	want := "crossarb 1.2.3 (commit: abc123, built: 2026-01-01)\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
	if cfg != nil {
		t.Error("version must not load configuration")
	}
}

func TestNewLogger_Format(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"json", `"message":"hello"`},
		{"console", "hello"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			c := &config.Config{App: config.AppConfig{Name: "crossarb", LogLevel: "info", LogFormat: tt.format}}
			log := newLogger(c, &buf, nil)
			log.Info(t.Context(), "hello")
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output %q missing %q", buf.String(), tt.want)
			}
		})
	}
}
