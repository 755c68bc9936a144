package core

import (
	"testing"

	"github.com/facebookgo/clock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}

// newTestGroup builds a BTC/ETH/USDC group with 6 decimals everywhere.
func newTestGroup(t *testing.T, clk clock.Clock) *Group {
	t.Helper()
	g, err := NewGroup(clk, GroupSpec{
		Name: "BTC_ETH_USDC",
		Assets: []Asset{
			{Mint: "btc-mint", Symbol: "BTC", Decimals: 6},
			{Mint: "eth-mint", Symbol: "ETH", Decimals: 6},
			{Mint: "usdc-mint", Symbol: "USDC", Decimals: 6},
		},
		BorrowLimits: []decimal.Decimal{d("10"), d("100"), d("1000000")},
		Markets: []Market{
			{Id: "BTC/USDC", BaseIndex: 0, MinSize: d("0.0001"), TickSize: d("0.01")},
			{Id: "ETH/USDC", BaseIndex: 1, MinSize: d("0.001"), TickSize: d("0.01")},
		},
		Oracles:        []string{"BTC/USD", "ETH/USD"},
		MaintCollRatio: d("1.1"),
		InitCollRatio:  d("1.2"),
	})
	require.NoError(t, err)
	return g
}
