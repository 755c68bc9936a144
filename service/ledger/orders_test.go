package ledger

import (
	"testing"

	"github.com/DomeLiquid/margin/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceOrderAndSettle(t *testing.T) {
	f := newFixture(t)
	alice := f.newAccount(t, "alice")
	f.deposit(t, alice, BTC, "0.5")

	_, err := f.svc.PlaceOrder(f.ctx, alice, "alice", core.OrderRequest{Market: BTC, Side: core.Ask, Price: d("38000"), Size: d("0.00001"), Type: core.Limit})
	assert.ErrorIs(t, err, core.ErrBelowMinLot)

	_, err = f.svc.PlaceOrder(f.ctx, alice, "alice", core.OrderRequest{Market: 5, Side: core.Ask, Price: d("38000"), Size: d("0.1"), Type: core.Limit})
	assert.ErrorIs(t, err, core.ErrInvalidMarket)

	_, w := f.balances(t, alice)
	assert.False(t, w.Account.HasOpenOrdersAccount(BTC))

	// crosses the 40000 mark and fills there
	order, err := f.svc.PlaceOrder(f.ctx, alice, "alice", core.OrderRequest{Market: BTC, Side: core.Ask, Price: d("38000"), Size: d("0.5"), Type: core.Limit})
	require.NoError(t, err)
	assert.NotEmpty(t, order.Id)

	group, w := f.balances(t, alice)
	assert.Equal(t, order.OpenOrdersId, w.Account.OpenOrders[BTC])
	assert.True(t, w.NativeDeposit(BTC).IsZero())
	assert.True(t, group.Vaults[BTC].Equal(d("10")))

	base, quote, err := f.svc.SettleFunds(f.ctx, alice, BTC)
	require.NoError(t, err)
	assert.True(t, base.IsZero())
	assert.True(t, quote.Equal(d("20000")))

	group, w = f.balances(t, alice)
	assert.True(t, w.NativeDeposit(USDC).Equal(d("20000")))
	assert.True(t, group.Vaults[USDC].Equal(d("120000")))

	version := w.Account.Version
	base, quote, err = f.svc.SettleFunds(f.ctx, alice, BTC)
	require.NoError(t, err)
	assert.True(t, base.IsZero())
	assert.True(t, quote.IsZero())
	_, w = f.balances(t, alice)
	assert.Equal(t, version, w.Account.Version)

	// never traded on ETH
	base, quote, err = f.svc.SettleFunds(f.ctx, alice, ETH)
	require.NoError(t, err)
	assert.True(t, base.IsZero() && quote.IsZero())
}

func TestPlaceOrderBorrowsShortfall(t *testing.T) {
	f := newFixture(t)
	alice := f.newAccount(t, "alice")
	f.deposit(t, alice, BTC, "1")
	f.deposit(t, alice, USDC, "1000")

	// 0.05 * 40000 needs 2000, half of it borrowed
	_, err := f.svc.PlaceOrder(f.ctx, alice, "alice", core.OrderRequest{Market: BTC, Side: core.Bid, Price: d("40000"), Size: d("0.05"), Type: core.Limit})
	require.NoError(t, err)

	_, w := f.balances(t, alice)
	assert.True(t, w.NativeDeposit(USDC).IsZero())
	assert.True(t, w.NativeBorrow(USDC).Equal(d("1000")))

	base, quote, err := f.svc.SettleFunds(f.ctx, alice, BTC)
	require.NoError(t, err)
	assert.True(t, base.Equal(d("0.05")))
	assert.True(t, quote.IsZero())

	_, w = f.balances(t, alice)
	assert.True(t, w.NativeDeposit(BTC).Equal(d("1.05")))
}

func TestPlaceOrderRejectsUnbackedBorrow(t *testing.T) {
	f := newFixture(t)
	alice := f.newAccount(t, "alice")
	f.deposit(t, alice, USDC, "1000")

	// 41000 of quote against 1000 of collateral
	_, err := f.svc.PlaceOrder(f.ctx, alice, "alice", core.OrderRequest{Market: BTC, Side: core.Bid, Price: d("41000"), Size: d("1"), Type: core.Limit})
	assert.ErrorIs(t, err, core.ErrCollateralRatioLimit)

	group, w := f.balances(t, alice)
	assert.True(t, w.NativeDeposit(USDC).Equal(d("1000")))
	assert.False(t, w.Account.HasBorrows())
	assert.True(t, group.Vaults[USDC].Equal(d("101000")))
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	alice := f.newAccount(t, "alice")
	f.deposit(t, alice, BTC, "0.3")

	// nothing to cancel yet
	n, err := f.svc.CancelAllByMarket(f.ctx, alice, "alice", BTC)
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, f.svc.CancelOrder(f.ctx, alice, "alice", BTC, "missing"))

	first, err := f.svc.PlaceOrder(f.ctx, alice, "alice", core.OrderRequest{Market: BTC, Side: core.Ask, Price: d("50000"), Size: d("0.1"), Type: core.Limit})
	require.NoError(t, err)
	_, err = f.svc.PlaceOrder(f.ctx, alice, "alice", core.OrderRequest{Market: BTC, Side: core.Ask, Price: d("51000"), Size: d("0.2"), Type: core.Limit})
	require.NoError(t, err)

	_, err = f.svc.CancelAllByMarket(f.ctx, alice, "bob", BTC)
	assert.ErrorIs(t, err, core.ErrInvalidAccountOwner)

	require.NoError(t, f.svc.CancelOrder(f.ctx, alice, "alice", BTC, first.Id))
	n, err = f.svc.CancelAllByMarket(f.ctx, alice, "alice", BTC)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	group, _ := f.svc.GetGroup(f.ctx, f.group.Id)
	account, _ := f.svc.GetAccount(f.ctx, alice)
	openOrders, err := f.svc.LoadOpenOrders(f.ctx, group, account)
	require.NoError(t, err)
	require.NotNil(t, openOrders[BTC])
	assert.False(t, openOrders[BTC].HasOrders())
	assert.Nil(t, openOrders[ETH])

	base, _, err := f.svc.SettleFunds(f.ctx, alice, BTC)
	require.NoError(t, err)
	assert.True(t, base.Equal(d("0.3")))

	_, w := f.balances(t, alice)
	assert.True(t, w.NativeDeposit(BTC).Equal(d("0.3")))
	assert.True(t, w.NativeBorrow(BTC).Equal(decimal.Zero))
}
