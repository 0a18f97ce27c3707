// Package market implements the market data bounded context.
package market

import (
	"context"

	chainDI "github.com/fd1az/crosschain-arb/business/chain/di"
	"github.com/fd1az/crosschain-arb/business/market/app"
	marketDI "github.com/fd1az/crosschain-arb/business/market/di"
	"github.com/fd1az/crosschain-arb/business/market/infra/httpfeed"
	marketRedis "github.com/fd1az/crosschain-arb/business/market/infra/redis"
	"github.com/fd1az/crosschain-arb/business/market/infra/uniswap"
	"github.com/fd1az/crosschain-arb/internal/di"
	"github.com/fd1az/crosschain-arb/internal/monolith"
)

// Module implements the market data bounded context.
type Module struct{}

// RegisterServices registers all market services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, marketDI.PriceFeed, func(sr di.ServiceRegistry) app.PriceFeed {
		cfg := monolith.ConfigFrom(sr)
		log := monolith.LoggerFrom(sr)

		var feed app.PriceFeed
		switch cfg.Market.Provider {
		case "http":
			f, err := httpfeed.NewFeed(cfg.Market.HTTPBaseURL, cfg.Market.RequestTimeout, log)
			if err != nil {
				panic("failed to create http price feed: " + err.Error())
			}
			feed = f
		default:
			f, err := uniswap.NewFeed(
				chainDI.GetClientPool(sr),
				chainDI.GetManager(sr),
				monolith.AssetsFrom(sr),
				cfg.Market.FeeTier,
				log,
			)
			if err != nil {
				panic("failed to create uniswap price feed: " + err.Error())
			}
			feed = f
		}

		if rdb := monolith.RedisFrom(sr); rdb != nil && cfg.Redis.PriceCacheTTL > 0 {
			feed = marketRedis.NewCachedFeed(rdb, feed, cfg.Redis.PriceCacheTTL, log)
		}
		return feed
	})

	di.RegisterToken(c, marketDI.Gateway, func(sr di.ServiceRegistry) *app.Gateway {
		cfg := monolith.ConfigFrom(sr)
		g, err := app.NewGateway(
			app.GatewayConfigFrom(cfg.Market),
			marketDI.GetPriceFeed(sr),
			chainDI.GetManager(sr),
			monolith.AssetsFrom(sr),
			monolith.LoggerFrom(sr),
		)
		if err != nil {
			panic("failed to create market gateway: " + err.Error())
		}
		return g
	})

	return nil
}

// Startup logs the selected price source.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	cfg := mono.Config()
	mono.Logger().Info(ctx, "market module started",
		"provider", cfg.Market.Provider,
		"shared_cache", mono.Redis() != nil && cfg.Redis.PriceCacheTTL > 0,
	)
	return nil
}
