// Package domain contains the core domain types for the market data context.
package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Price is one observed token price on one chain, in quote units.
type Price struct {
	Chain      string
	Token      common.Address
	Symbol     string
	Value      decimal.Decimal
	Source     string
	ObservedAt time.Time
}

// Key identifies a price by chain and token.
type Key struct {
	Chain string
	Token common.Address
}
