package redis

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/fd1az/crosschain-arb/business/market/app"
	"github.com/fd1az/crosschain-arb/internal/logger"
)

func TestParseEntry(t *testing.T) {
	ts := time.Unix(1_700_000_000, 0)
	tests := []struct {
		name    string
		vals    map[string]string
		want    string
		wantErr bool
	}{
		{"ok", map[string]string{"price": "3000.5", "ts": "1700000000000000000"}, "3000.5", false},
		{"empty", map[string]string{}, "", true},
		{"bad price", map[string]string{"price": "x", "ts": "1"}, "", true},
		{"no ts", map[string]string{"price": "1"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price, got, err := parseEntry(tt.vals)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !price.Equal(decimal.RequireFromString(tt.want)) || !got.Equal(ts) {
				t.Errorf("got %s at %s", price, got)
			}
		})
	}
}

func TestPriceKey(t *testing.T) {
	got := priceKey("base", common.HexToAddress("0x4200000000000000000000000000000000000006"))
	if got != "price:base:0x4200000000000000000000000000000000000006" {
		t.Errorf("key = %q", got)
	}
}

// Requires a running redis; set REDIS_ADDR to enable.
func TestCachedFeed_ReadThrough(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	ctx := context.Background()
	token := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	rdb.Del(ctx, priceKey("testchain", token))

	var calls atomic.Int32
	inner := app.PriceFeedFunc(func(context.Context, string, common.Address) (decimal.Decimal, error) {
		calls.Add(1)
		return decimal.RequireFromString("12.5"), nil
	})
	feed := NewCachedFeed(rdb, inner, time.Minute, logger.NewNop())

	for i := 0; i < 3; i++ {
		got, err := feed.GetPrice(ctx, "testchain", token)
		if err != nil {
			t.Fatal(err)
		}
		if !got.Equal(decimal.RequireFromString("12.5")) {
			t.Errorf("price = %s", got)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("inner calls = %d, want 1", calls.Load())
	}
}
