package core

import (
	"testing"

	"github.com/facebookgo/clock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountWrapper(t *testing.T) {
	clk := clock.NewMock()
	g := newTestGroup(t, clk)
	g.Indexes[2].DepositIndex = d("1.1")
	g.Indexes[2].BorrowIndex = d("1.3")

	account := NewMarginAccount(clk, g, "owner", 0)
	w := NewAccountWrapper(g, account)

	require.NoError(t, w.IncreaseDeposit(2, d("110")))
	assert.True(t, account.Deposits[2].Equal(d("100")))
	assert.True(t, g.TotalDeposits[2].Equal(d("100")))
	assert.True(t, w.NativeDeposit(2).Equal(d("110")))

	err := w.DecreaseDeposit(2, d("110.000001"))
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	require.NoError(t, w.DecreaseDeposit(2, d("10")))
	assert.True(t, w.NativeDeposit(2).Equal(d("100")))

	// taking everything leaves no dust shares behind
	require.NoError(t, w.DecreaseDeposit(2, d("100")))
	assert.True(t, account.Deposits[2].IsZero())
	assert.True(t, g.TotalDeposits[2].IsZero())

	assert.ErrorIs(t, w.IncreaseDeposit(2, decimal.Zero), ErrInvalidAmount)
	assert.ErrorIs(t, w.IncreaseBorrow(2, d("-1")), ErrInvalidAmount)
}

func TestAccountWrapperBorrowLimit(t *testing.T) {
	clk := clock.NewMock()
	g := newTestGroup(t, clk)
	account := NewMarginAccount(clk, g, "owner", 0)
	w := NewAccountWrapper(g, account)

	require.NoError(t, w.IncreaseBorrow(0, d("10")))
	assert.NoError(t, w.CheckBorrowLimit(0))

	require.NoError(t, w.IncreaseBorrow(0, d("0.000001")))
	assert.ErrorIs(t, w.CheckBorrowLimit(0), ErrBorrowLimitExceeded)
}

func TestAccountWrapperSettleBorrow(t *testing.T) {
	tests := []struct {
		name     string
		deposit  decimal.Decimal
		borrow   decimal.Decimal
		amount   decimal.Decimal
		settled  decimal.Decimal
		deposits decimal.Decimal
		borrows  decimal.Decimal
	}{
		{name: "settle all", deposit: d("5"), borrow: d("3"), amount: decimal.Zero, settled: d("3"), deposits: d("2"), borrows: decimal.Zero},
		{name: "limited by deposit", deposit: d("1"), borrow: d("3"), amount: decimal.Zero, settled: d("1"), deposits: decimal.Zero, borrows: d("2")},
		{name: "limited by amount", deposit: d("5"), borrow: d("3"), amount: d("0.5"), settled: d("0.5"), deposits: d("4.5"), borrows: d("2.5")},
		{name: "nothing owed", deposit: d("5"), borrow: decimal.Zero, amount: decimal.Zero, settled: decimal.Zero, deposits: d("5"), borrows: decimal.Zero},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clk := clock.NewMock()
			g := newTestGroup(t, clk)
			account := NewMarginAccount(clk, g, "owner", 0)
			w := NewAccountWrapper(g, account)
			if tt.deposit.IsPositive() {
				require.NoError(t, w.IncreaseDeposit(1, tt.deposit))
			}
			if tt.borrow.IsPositive() {
				require.NoError(t, w.IncreaseBorrow(1, tt.borrow))
			}

			settled, err := w.SettleBorrow(1, tt.amount)
			require.NoError(t, err)
			assert.True(t, settled.Equal(tt.settled), "settled %s", settled)
			assert.True(t, w.NativeDeposit(1).Equal(tt.deposits), "deposits %s", w.NativeDeposit(1))
			assert.True(t, w.NativeBorrow(1).Equal(tt.borrows), "borrows %s", w.NativeBorrow(1))
		})
	}
}
