// Package app contains the market data gateway and port definitions.
package app

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// PriceFeed supplies the current price of a token on a chain in quote
// units. A missing price is reported as a PRICE_UNAVAILABLE app error.
type PriceFeed interface {
	GetPrice(ctx context.Context, chain string, token common.Address) (decimal.Decimal, error)
}

// PriceFeedFunc adapts a function to PriceFeed.
type PriceFeedFunc func(ctx context.Context, chain string, token common.Address) (decimal.Decimal, error)

func (f PriceFeedFunc) GetPrice(ctx context.Context, chain string, token common.Address) (decimal.Decimal, error) {
	return f(ctx, chain, token)
}
