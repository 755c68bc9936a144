package liquidator

import (
	"context"
	"testing"
	"time"

	"github.com/DomeLiquid/margin/core"
	"github.com/DomeLiquid/margin/oracle"
	"github.com/DomeLiquid/margin/pkg/retry"
	"github.com/DomeLiquid/margin/service/ledger"
	"github.com/DomeLiquid/margin/store/memory"
	"github.com/DomeLiquid/margin/venue/paper"
	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	BTC  = 0
	ETH  = 1
	USDC = 2
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func groupSpec() core.GroupSpec {
	return core.GroupSpec{
		Name:   "BTC_ETH_USDC",
		Signer: "admin",
		Assets: []core.Asset{
			{Mint: "btc-mint", Symbol: "BTC", Decimals: 6},
			{Mint: "eth-mint", Symbol: "ETH", Decimals: 6},
			{Mint: "usdc-mint", Symbol: "USDC", Decimals: 6},
		},
		BorrowLimits: []decimal.Decimal{d("10"), d("100"), d("1000000")},
		Markets: []core.Market{
			{Id: "BTC/USDC", BaseIndex: BTC, MinSize: d("0.0001"), TickSize: d("0.01")},
			{Id: "ETH/USDC", BaseIndex: ETH, MinSize: d("0.001"), TickSize: d("0.01")},
		},
		Oracles:        []string{"BTC/USD", "ETH/USD"},
		MaintCollRatio: d("1.1"),
		InitCollRatio:  d("1.2"),
	}
}

type fixture struct {
	ctx    context.Context
	clk    *clock.Mock
	store  *memory.Store
	venue  *paper.Venue
	oracle *oracle.Static
	ledger *ledger.Service
	group  *core.Group
	lp     uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := clock.NewMock()
	clk.Add(1700000000 * time.Second)

	f := &fixture{
		ctx:    context.Background(),
		clk:    clk,
		store:  memory.New(),
		venue:  paper.New(),
		oracle: oracle.NewStatic(clk, nil),
	}
	f.ledger = ledger.New(f.store, f.venue, f.oracle, clk, zerolog.Nop(), ledger.Config{MaxPriceAge: time.Minute})

	group, err := f.ledger.InitGroup(f.ctx, groupSpec())
	require.NoError(t, err)
	f.group = group
	f.setPrice(BTC, "40000")
	f.setPrice(ETH, "2000")

	f.lp = f.account(t, "lp")
	for asset, amount := range []string{"10", "100", "100000"} {
		require.NoError(t, f.ledger.Deposit(f.ctx, f.lp, asset, d(amount)))
	}
	return f
}

func (f *fixture) setPrice(asset int, price string) {
	f.oracle.Set(f.group.Oracles[asset], d(price))
	f.venue.SetMark(f.group.Markets[asset].Id, d(price))
}

func (f *fixture) account(t *testing.T, owner string) uuid.UUID {
	t.Helper()
	account, err := f.ledger.CreateAccount(f.ctx, f.group.Id, owner, 0)
	require.NoError(t, err)
	return account.Id
}

// bob holds 0.1 BTC against 3000 USDC of debt.
func (f *fixture) bob(t *testing.T) uuid.UUID {
	t.Helper()
	bob := f.account(t, "bob")
	require.NoError(t, f.ledger.Deposit(f.ctx, bob, BTC, d("0.1")))
	require.NoError(t, f.ledger.Borrow(f.ctx, bob, "bob", USDC, d("3000")))
	_, err := f.ledger.Withdraw(f.ctx, bob, "bob", USDC, d("3000"), "bob-wallet")
	require.NoError(t, err)
	return bob
}

func (f *fixture) worker(cfg func(*Config)) *Worker {
	c := Config{
		GroupId:     f.group.Id,
		Liquidator:  "liquidator",
		Wallet:      "liquidator-wallet",
		Interval:    time.Second,
		MaxPriceAge: time.Minute,
		Retry:       retry.Policy{MaxAttempts: 3, Interval: time.Millisecond},
	}
	if cfg != nil {
		cfg(&c)
	}
	return New(f.ledger, f.oracle, f.clk, zerolog.Nop(), nil, c)
}

func (f *fixture) wrapper(t *testing.T, accountId uuid.UUID) *core.AccountWrapper {
	t.Helper()
	account, err := f.ledger.GetAccount(f.ctx, accountId)
	require.NoError(t, err)
	group, err := f.ledger.GetGroup(f.ctx, account.GroupId)
	require.NoError(t, err)
	return core.NewAccountWrapper(group, account)
}

func TestScanLiquidatesAndDrains(t *testing.T) {
	f := newFixture(t)
	bob := f.bob(t)
	w := f.worker(nil)

	report, err := w.Scan(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Evaluated)
	assert.Equal(t, OutcomeHealthy, report.Outcomes[f.lp])
	assert.Equal(t, OutcomeHealthy, report.Outcomes[bob])

	f.setPrice(BTC, "32000")
	report, err = w.Scan(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeLiquidated, report.Outcomes[bob])

	// 404 deposited, 0.1 BTC sold at the 32000 mark, 3000 repaid
	bw := f.wrapper(t, bob)
	assert.Equal(t, "liquidator", bw.Account.Owner)
	assert.True(t, bw.Account.GetFlag(core.LiquidatedFlag))
	assert.False(t, bw.Account.HasBorrows())
	assert.True(t, bw.NativeDeposit(BTC).IsZero())
	assert.True(t, bw.NativeDeposit(USDC).Equal(d("0.604")), "residual %s", bw.NativeDeposit(USDC))

	transfers, err := f.store.ListTransfers(f.ctx, bob)
	require.NoError(t, err)
	require.Len(t, transfers, 2)
	assert.Equal(t, "liquidator-wallet", transfers[1].Opponent)
	assert.True(t, transfers[1].Amount.Equal(d("603.396")), "withdrawn %s", transfers[1].Amount)

	// nothing left to do for a drained account
	report, err = w.Scan(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, report.Outcomes[bob])
}

func TestScanLeavesHealthyAccounts(t *testing.T) {
	f := newFixture(t)
	bob := f.bob(t)
	before := f.wrapper(t, bob).Account

	// 3500 / 3000 is above maintenance
	f.setPrice(BTC, "35000")
	report, err := f.worker(nil).Scan(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeHealthy, report.Outcomes[bob])

	after := f.wrapper(t, bob).Account
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, "bob", after.Owner)
}

func TestScanInsolventAccount(t *testing.T) {
	f := newFixture(t)
	bob := f.bob(t)
	f.setPrice(BTC, "25000")

	report, err := f.worker(func(c *Config) { c.SkipInsolvent = true }).Scan(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInsolvent, report.Outcomes[bob])
	assert.Equal(t, "bob", f.wrapper(t, bob).Account.Owner)
	assert.False(t, f.wrapper(t, bob).Account.GetFlag(core.InsolventFlag))

	report, err = f.worker(nil).Scan(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeLiquidated, report.Outcomes[bob])

	account := f.wrapper(t, bob).Account
	assert.Equal(t, "liquidator", account.Owner)
	assert.True(t, account.GetFlag(core.InsolventFlag))
}

func TestScanRespectsDepositBudget(t *testing.T) {
	f := newFixture(t)
	bob := f.bob(t)
	f.setPrice(BTC, "32000")

	report, err := f.worker(func(c *Config) { c.MaxDeposit = d("100") }).Scan(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, report.Outcomes[bob])
	assert.Equal(t, "bob", f.wrapper(t, bob).Account.Owner)
}

func TestScanQuarantinesBrokenAccounts(t *testing.T) {
	f := newFixture(t)
	broken := f.account(t, "broken")

	account, err := f.store.GetAccountById(f.ctx, broken)
	require.NoError(t, err)
	account.Deposits[BTC] = d("-1")
	require.NoError(t, f.store.UpdateAccount(f.ctx, account))

	w := f.worker(nil)
	report, err := w.Scan(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeError, report.Outcomes[broken])
	assert.Equal(t, OutcomeHealthy, report.Outcomes[f.lp])

	quarantined := w.Quarantined()
	require.Contains(t, quarantined, broken)
	assert.True(t, core.IsInvariant(quarantined[broken]))

	report, err = w.Scan(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, report.Outcomes[broken])
}

func TestScanRetriesTransientVenueFailures(t *testing.T) {
	f := newFixture(t)
	bob := f.bob(t)
	f.setPrice(BTC, "32000")

	f.venue.FailNext("PlaceOrder", core.Transient(errors.New("venue busy")))
	report, err := f.worker(nil).Scan(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeLiquidated, report.Outcomes[bob])

	bw := f.wrapper(t, bob)
	assert.True(t, bw.NativeDeposit(BTC).IsZero())
	assert.False(t, bw.Account.HasBorrows())
}

func TestScanResumesInterruptedDrain(t *testing.T) {
	f := newFixture(t)
	bob := f.bob(t)
	f.setPrice(BTC, "32000")
	w := f.worker(nil)

	f.venue.FailNext("PlaceOrder", errors.New("venue down"))
	report, err := w.Scan(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeLiquidated, report.Outcomes[bob])

	bw := f.wrapper(t, bob)
	assert.Equal(t, "liquidator", bw.Account.Owner)
	assert.True(t, bw.NativeDeposit(BTC).Equal(d("0.1")))

	report, err = w.Scan(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDrained, report.Outcomes[bob])

	bw = f.wrapper(t, bob)
	assert.True(t, bw.NativeDeposit(BTC).IsZero())
	assert.False(t, bw.Account.HasBorrows())
}

func TestScanCancelsRestingOrdersBeforeRebalancing(t *testing.T) {
	f := newFixture(t)
	bob := f.account(t, "bob")
	require.NoError(t, f.ledger.Deposit(f.ctx, bob, BTC, d("0.1")))
	require.NoError(t, f.ledger.Borrow(f.ctx, bob, "bob", USDC, d("3000")))
	_, err := f.ledger.Withdraw(f.ctx, bob, "bob", USDC, d("3000"), "bob-wallet")
	require.NoError(t, err)

	// half the BTC rests far above the market
	_, err = f.ledger.PlaceOrder(f.ctx, bob, "bob", core.OrderRequest{Market: BTC, Side: core.Ask, Price: d("60000"), Size: d("0.05"), Type: core.Limit})
	require.NoError(t, err)

	f.setPrice(BTC, "32000")
	report, err := f.worker(nil).Scan(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeLiquidated, report.Outcomes[bob])

	bw := f.wrapper(t, bob)
	openOrders, err := f.ledger.LoadOpenOrders(f.ctx, bw.Group, bw.Account)
	require.NoError(t, err)
	require.NotNil(t, openOrders[BTC])
	assert.False(t, openOrders[BTC].HasOrders())
	assert.False(t, openOrders[BTC].HasUnsettled())
	assert.True(t, bw.NativeDeposit(BTC).IsZero())
	assert.False(t, bw.Account.HasBorrows())
}

func TestRunStopsOnConfigErrors(t *testing.T) {
	f := newFixture(t)

	err := f.worker(func(c *Config) { c.Liquidator = "" }).Run(f.ctx)
	assert.True(t, core.IsConfigError(err))

	err = f.worker(func(c *Config) { c.GroupId = uuid.Must(uuid.NewV4()) }).Run(f.ctx)
	assert.True(t, core.IsConfigError(err))

	ctx, cancel := context.WithCancel(f.ctx)
	cancel()
	assert.NoError(t, f.worker(nil).Run(ctx))
}
