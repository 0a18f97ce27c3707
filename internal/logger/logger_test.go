package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestLogger_WritesJSONWithAttributes(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelInfo, "crossarb", nil)

	log.Info(context.Background(), "chain healthy", "chain", "arbitrum", "latency_ms", 42, "err", errors.New("none"))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if rec["message"] != "chain healthy" {
		t.Errorf("message = %v", rec["message"])
	}
	if rec["service"] != "crossarb" {
		t.Errorf("service = %v", rec["service"])
	}
	if rec["chain"] != "arbitrum" {
		t.Errorf("chain = %v", rec["chain"])
	}
	if rec["err"] != "none" {
		t.Errorf("err = %v", rec["err"])
	}
}

func TestLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelWarn, "crossarb", nil)

	log.Debug(context.Background(), "debug")
	log.Info(context.Background(), "info")
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %s", buf.String())
	}

	log.Warn(context.Background(), "warn")
	if buf.Len() == 0 {
		t.Fatal("expected warn output")
	}
}

func TestLogger_EventsReceiveRecords(t *testing.T) {
	var got []Record
	events := &Events{
		Error: func(_ context.Context, r Record) { got = append(got, r) },
	}
	log := New(&bytes.Buffer{}, LevelDebug, "crossarb", events)

	log.Info(context.Background(), "ignored")
	log.Error(context.Background(), "stranded", "opportunity", "a-b-ETH-1")

	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}
	if got[0].Message != "stranded" || got[0].Attrs["opportunity"] != "a-b-ETH-1" {
		t.Errorf("unexpected record %+v", got[0])
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
