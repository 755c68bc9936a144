package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/DomeLiquid/margin/core"
	"github.com/DomeLiquid/margin/oracle"
	"github.com/DomeLiquid/margin/store/memory"
	"github.com/DomeLiquid/margin/venue/paper"
	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
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

type fixture struct {
	ctx    context.Context
	clk    *clock.Mock
	store  *memory.Store
	venue  *paper.Venue
	oracle *oracle.Static
	svc    *Service
	group  *core.Group
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
	f.svc = New(f.store, f.venue, f.oracle, clk, zerolog.Nop(), Config{MaxPriceAge: time.Minute})

	group, err := f.svc.InitGroup(f.ctx, core.GroupSpec{
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
	})
	require.NoError(t, err)
	f.group = group

	f.setPrice(BTC, "40000")
	f.setPrice(ETH, "2000")

	lp := f.newAccount(t, "lp")
	f.deposit(t, lp, USDC, "100000")
	f.deposit(t, lp, BTC, "10")
	f.deposit(t, lp, ETH, "100")
	return f
}

// setPrice moves the oracle and the venue mark together.
func (f *fixture) setPrice(asset int, price string) {
	f.oracle.Set(f.group.Oracles[asset], d(price))
	f.venue.SetMark(f.group.Markets[asset].Id, d(price))
}

func (f *fixture) newAccount(t *testing.T, owner string) uuid.UUID {
	t.Helper()
	account, err := f.svc.CreateAccount(f.ctx, f.group.Id, owner, 0)
	require.NoError(t, err)
	return account.Id
}

func (f *fixture) deposit(t *testing.T, accountId uuid.UUID, asset int, amount string) {
	t.Helper()
	require.NoError(t, f.svc.Deposit(f.ctx, accountId, asset, d(amount)))
}

func (f *fixture) balances(t *testing.T, accountId uuid.UUID) (*core.Group, *core.AccountWrapper) {
	t.Helper()
	account, err := f.svc.GetAccount(f.ctx, accountId)
	require.NoError(t, err)
	group, err := f.svc.GetGroup(f.ctx, account.GroupId)
	require.NoError(t, err)
	return group, core.NewAccountWrapper(group, account)
}

// undercollateralized opens bob with 0.1 BTC of collateral against 3000 USDC
// of debt, then drops BTC to price.
func (f *fixture) undercollateralized(t *testing.T, price string) uuid.UUID {
	t.Helper()
	bob := f.newAccount(t, "bob")
	f.deposit(t, bob, BTC, "0.1")
	require.NoError(t, f.svc.Borrow(f.ctx, bob, "bob", USDC, d("3000")))
	_, err := f.svc.Withdraw(f.ctx, bob, "bob", USDC, d("3000"), "bob-wallet")
	require.NoError(t, err)
	f.setPrice(BTC, price)
	return bob
}

// frozenPrices publishes every price at the same fixed instant.
type frozenPrices struct {
	at     time.Time
	prices map[string]string
}

func (f frozenPrices) GetPrices(_ context.Context, keys []string) (map[string]core.Price, error) {
	out := make(map[string]core.Price, len(keys))
	for _, key := range keys {
		if p, ok := f.prices[key]; ok {
			out[key] = core.Price{Key: key, Price: d(p), PublishedAt: f.at}
		}
	}
	return out, nil
}
