package domain

import "github.com/shopspring/decimal"

// Direction is an ordered chain pair: buy on Source, sell on Target.
type Direction struct {
	Source string
	Target string
}

// String returns a human-readable description of the direction.
func (d Direction) String() string {
	return d.Source + " → " + d.Target
}

// Orient orders two quotes of the same token so the cheaper chain is the
// source. Equal prices keep the given order.
func Orient(chainA string, priceA decimal.Decimal, chainB string, priceB decimal.Decimal) (Direction, decimal.Decimal, decimal.Decimal) {
	if priceB.LessThan(priceA) {
		return Direction{Source: chainB, Target: chainA}, priceB, priceA
	}
	return Direction{Source: chainA, Target: chainB}, priceA, priceB
}
