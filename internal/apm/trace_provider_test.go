package apm

import (
	"bytes"
	"context"
	"testing"

	"github.com/fd1az/crosschain-arb/internal/logger"
)

func TestNewTraceProvider_Empty(t *testing.T) {
	tp, err := NewTraceProvider(context.Background(), logger.NewNop(), Options{Provider: EmptyProvider})
	if err != nil {
		t.Fatal(err)
	}
	if err := tp.Stop(); err != nil {
		t.Errorf("Stop() = %v", err)
	}
}

func TestNewTraceProvider_Console(t *testing.T) {
	var buf bytes.Buffer
	tp, err := NewTraceProvider(context.Background(), logger.NewNop(), Options{
		ServiceName:   "crossarb",
		Provider:      ConsoleProvider,
		ConsoleWriter: &buf,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := tp.Stop(); err != nil {
		t.Errorf("Stop() = %v", err)
	}
}

func TestNewTraceProvider_Unknown(t *testing.T) {
	if _, err := NewTraceProvider(context.Background(), logger.NewNop(), Options{Provider: "jaeger"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}
