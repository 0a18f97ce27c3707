// Package redis provides a shared read-through price cache so several
// processes scanning the same chains do not multiply quoter calls.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/fd1az/crosschain-arb/business/market/app"
	"github.com/fd1az/crosschain-arb/internal/logger"
)

var _ app.PriceFeed = (*CachedFeed)(nil)

// CachedFeed decorates a PriceFeed with a redis hash per price at
// "price:{chain}:{token}" holding fields price and ts (unix nanos).
// Redis failures fall through to the inner feed.
type CachedFeed struct {
	rdb    *redis.Client
	inner  app.PriceFeed
	ttl    time.Duration
	logger logger.LoggerInterface
	now    func() time.Time
}

// NewCachedFeed wraps inner. Entries older than ttl are refreshed.
func NewCachedFeed(rdb *redis.Client, inner app.PriceFeed, ttl time.Duration, log logger.LoggerInterface) *CachedFeed {
	return &CachedFeed{rdb: rdb, inner: inner, ttl: ttl, logger: log, now: time.Now}
}

func priceKey(chain string, token common.Address) string {
	return "price:" + chain + ":" + strings.ToLower(token.Hex())
}

func (c *CachedFeed) GetPrice(ctx context.Context, chain string, token common.Address) (decimal.Decimal, error) {
	key := priceKey(chain, token)

	vals, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		c.logger.Warn(ctx, "price cache read failed", "key", key, "error", err)
	} else if price, ok := c.fresh(vals); ok {
		return price, nil
	}

	price, err := c.inner.GetPrice(ctx, chain, token)
	if err != nil {
		return decimal.Zero, err
	}

	if err := c.store(ctx, key, price); err != nil {
		c.logger.Warn(ctx, "price cache write failed", "key", key, "error", err)
	}
	return price, nil
}

func (c *CachedFeed) fresh(vals map[string]string) (decimal.Decimal, bool) {
	price, ts, err := parseEntry(vals)
	if err != nil {
		return decimal.Zero, false
	}
	if c.now().Sub(ts) > c.ttl {
		return decimal.Zero, false
	}
	return price, true
}

func (c *CachedFeed) store(ctx context.Context, key string, price decimal.Decimal) error {
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"price": price.String(),
		"ts":    strconv.FormatInt(c.now().UnixNano(), 10),
	})
	pipe.PExpire(ctx, key, 2*c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set price %s: %w", key, err)
	}
	return nil
}

func parseEntry(vals map[string]string) (decimal.Decimal, time.Time, error) {
	priceStr, ok := vals["price"]
	if !ok {
		return decimal.Zero, time.Time{}, fmt.Errorf("missing price field")
	}
	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("parse price: %w", err)
	}
	tsStr, ok := vals["ts"]
	if !ok {
		return decimal.Zero, time.Time{}, fmt.Errorf("missing ts field")
	}
	nanos, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("parse ts: %w", err)
	}
	return price, time.Unix(0, nanos), nil
}
