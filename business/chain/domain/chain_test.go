package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestGasFloors_For(t *testing.T) {
	f := GasFloors{
		Standard: decimal.RequireFromString("10"),
		Fast:     decimal.RequireFromString("15"),
		Instant:  decimal.RequireFromString("25"),
	}

	tests := []struct {
		tier GasTier
		want string
	}{
		{GasTierStandard, "10"},
		{GasTierFast, "15"},
		{GasTierInstant, "25"},
		{GasTier("unknown"), "10"},
	}

	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			if got := f.For(tt.tier); !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("For(%s) = %s, want %s", tt.tier, got, tt.want)
			}
		})
	}
}

func TestTxHandle(t *testing.T) {
	var h TxHandle
	if !h.IsZero() {
		t.Error("zero handle should report IsZero")
	}
	h.Chain = "base"
	h.Hash[31] = 1
	if h.IsZero() {
		t.Error("assigned handle should not report IsZero")
	}
}
