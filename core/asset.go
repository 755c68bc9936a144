package core

import (
	"github.com/shopspring/decimal"
)

type Asset struct {
	Mint     string `json:"mint"`
	Symbol   string `json:"symbol"`
	Decimals int32  `json:"decimals"`
}

// Unit is the smallest representable native amount of the asset.
func (a Asset) Unit() decimal.Decimal {
	return decimal.New(1, -a.Decimals)
}

func (a Asset) Truncate(amount decimal.Decimal) decimal.Decimal {
	return amount.RoundFloor(a.Decimals)
}

func (a Asset) String() string {
	if a.Symbol != "" {
		return a.Symbol
	}
	return a.Mint
}
