package memory

import (
	"context"
	"testing"

	"github.com/DomeLiquid/margin/core"
	"github.com/facebookgo/clock"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGroup(t *testing.T, clk clock.Clock) *core.Group {
	t.Helper()
	g, err := core.NewGroup(clk, core.GroupSpec{
		Name: "BTC_USDC",
		Assets: []core.Asset{
			{Mint: "btc-mint", Symbol: "BTC", Decimals: 6},
			{Mint: "usdc-mint", Symbol: "USDC", Decimals: 6},
		},
		BorrowLimits:   []decimal.Decimal{decimal.NewFromInt(10), decimal.NewFromInt(100000)},
		Markets:        []core.Market{{Id: "BTC/USDC", BaseIndex: 0, MinSize: decimal.RequireFromString("0.0001"), TickSize: decimal.RequireFromString("0.01")}},
		Oracles:        []string{"BTC/USD"},
		MaintCollRatio: decimal.RequireFromString("1.1"),
		InitCollRatio:  decimal.RequireFromString("1.2"),
	})
	require.NoError(t, err)
	return g
}

func TestTransactionCommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()
	s := New()
	g := testGroup(t, clk)
	require.NoError(t, s.CreateGroup(ctx, g))

	account := core.NewMarginAccount(clk, g, "alice", 0)
	err := s.Transaction(ctx, func(ctx context.Context, tx core.LedgerStore) error {
		if err := tx.CreateAccount(ctx, account); err != nil {
			return err
		}
		return tx.CreateOperate(ctx, core.NewOperate(clk, g.Id, account.Id, "alice", core.ActionCreateAccount))
	})
	require.NoError(t, err)

	stored, err := s.GetAccountById(ctx, account.Id)
	require.NoError(t, err)
	assert.Equal(t, "alice", stored.Owner)
	assert.Equal(t, int64(1), stored.Version)

	ops, err := s.ListOperates(ctx, account.Id, 0, 10)
	require.NoError(t, err)
	assert.Len(t, ops, 1)
	assert.Equal(t, core.ActionCreateAccount, ops[0].Op)
}

func TestTransactionRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()
	s := New()
	g := testGroup(t, clk)
	require.NoError(t, s.CreateGroup(ctx, g))
	account := core.NewMarginAccount(clk, g, "alice", 0)
	require.NoError(t, s.CreateAccount(ctx, account))

	boom := errors.New("boom")
	err := s.Transaction(ctx, func(ctx context.Context, tx core.LedgerStore) error {
		a, err := tx.GetAccountById(ctx, account.Id)
		require.NoError(t, err)
		a.Deposits[1] = decimal.NewFromInt(100)
		require.NoError(t, tx.UpdateAccount(ctx, a))

		group, err := tx.GetGroupById(ctx, g.Id)
		require.NoError(t, err)
		group.TotalDeposits[1] = decimal.NewFromInt(100)
		require.NoError(t, tx.UpdateGroup(ctx, group))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	stored, err := s.GetAccountById(ctx, account.Id)
	require.NoError(t, err)
	assert.True(t, stored.Deposits[1].IsZero())

	group, err := s.GetGroupById(ctx, g.Id)
	require.NoError(t, err)
	assert.True(t, group.TotalDeposits[1].IsZero())
}

func TestUpdateAccountVersionConflict(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()
	s := New()
	g := testGroup(t, clk)
	account := core.NewMarginAccount(clk, g, "alice", 0)
	require.NoError(t, s.CreateAccount(ctx, account))

	first, err := s.GetAccountById(ctx, account.Id)
	require.NoError(t, err)
	second, err := s.GetAccountById(ctx, account.Id)
	require.NoError(t, err)

	require.NoError(t, s.UpdateAccount(ctx, first))
	err = s.UpdateAccount(ctx, second)
	assert.ErrorIs(t, err, core.ErrVersionConflict)
	assert.True(t, core.IsTransient(err))
}

func TestReadsReturnCopies(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()
	s := New()
	g := testGroup(t, clk)
	account := core.NewMarginAccount(clk, g, "alice", 0)
	require.NoError(t, s.CreateAccount(ctx, account))

	a, err := s.GetAccountById(ctx, account.Id)
	require.NoError(t, err)
	a.Deposits[0] = decimal.NewFromInt(5)

	b, err := s.GetAccountById(ctx, account.Id)
	require.NoError(t, err)
	assert.True(t, b.Deposits[0].IsZero())

	_, err = s.GetAccountById(ctx, core.AccountId(g.Id, "bob", 0))
	assert.ErrorIs(t, err, core.ErrAccountNotFound)
}

func TestListAccounts(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()
	s := New()
	g := testGroup(t, clk)
	for i, owner := range []string{"alice", "bob", "alice"} {
		require.NoError(t, s.CreateAccount(ctx, core.NewMarginAccount(clk, g, owner, uint8(i))))
	}

	all, err := s.ListAccountsByGroup(ctx, g.Id)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	alice, err := s.ListAccountsByOwner(ctx, g.Id, "alice")
	require.NoError(t, err)
	assert.Len(t, alice, 2)
}
