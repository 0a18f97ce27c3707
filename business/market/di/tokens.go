// Package di contains dependency injection tokens for the market context.
package di

import (
	"github.com/fd1az/crosschain-arb/business/market/app"
	"github.com/fd1az/crosschain-arb/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Gateway = di.NewToken[*app.Gateway]("market.Gateway")
)

// Private dependency tokens - internal to the market module
var (
	PriceFeed = di.NewToken[app.PriceFeed]("market:priceFeed")
)

func GetGateway(c di.ServiceRegistry) *app.Gateway {
	return di.GetToken(c, Gateway)
}

func GetPriceFeed(c di.ServiceRegistry) app.PriceFeed {
	return di.GetToken(c, PriceFeed)
}
