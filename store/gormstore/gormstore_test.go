package gormstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/DomeLiquid/margin/core"
	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(Config{Driver: "sqlite", Dsn: filepath.Join(t.TempDir(), "ledger.db")})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return New(db)
}

func testGroup(t *testing.T, clk clock.Clock) *core.Group {
	t.Helper()
	g, err := core.NewGroup(clk, core.GroupSpec{
		Name: "BTC_USDC",
		Assets: []core.Asset{
			{Mint: "btc-mint", Symbol: "BTC", Decimals: 8},
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

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestGroupRoundTrip(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()
	s := openTestStore(t)

	g := testGroup(t, clk)
	g.Indexes[0].BorrowIndex = decimal.RequireFromString("1.000000317097919837645865")
	require.NoError(t, s.CreateGroup(ctx, g))

	stored, err := s.GetGroupById(ctx, g.Id)
	require.NoError(t, err)
	assert.Equal(t, g.Name, stored.Name)
	assert.Equal(t, g.Assets, stored.Assets)
	assert.True(t, stored.Indexes[0].BorrowIndex.Equal(g.Indexes[0].BorrowIndex))
	assert.Equal(t, int64(1), stored.Version)

	stored.BorrowLimits[0] = decimal.NewFromInt(20)
	require.NoError(t, s.UpdateGroup(ctx, stored))
	assert.Equal(t, int64(2), stored.Version)

	stale := g.Clone()
	err = s.UpdateGroup(ctx, stale)
	assert.ErrorIs(t, err, core.ErrVersionConflict)

	groups, err := s.ListGroups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.True(t, groups[0].BorrowLimits[0].Equal(decimal.NewFromInt(20)))

	_, err = s.GetGroupById(ctx, uuid.Must(uuid.NewV4()))
	assert.ErrorIs(t, err, core.ErrGroupNotFound)
}

func TestAccountTransaction(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()
	s := openTestStore(t)
	g := testGroup(t, clk)
	require.NoError(t, s.CreateGroup(ctx, g))

	account := core.NewMarginAccount(clk, g, "alice", 0)
	require.NoError(t, s.CreateAccount(ctx, account))
	assert.ErrorIs(t, s.CreateAccount(ctx, account), core.ErrAccountExists)

	err := s.Transaction(ctx, func(ctx context.Context, tx core.LedgerStore) error {
		a, err := tx.GetAccountById(ctx, account.Id)
		if err != nil {
			return err
		}
		a.Deposits[1] = decimal.NewFromInt(1000)
		a.Owner = "liquidator"
		if err := tx.UpdateAccount(ctx, a); err != nil {
			return err
		}
		return tx.CreateOperate(ctx, core.NewOperate(clk, g.Id, a.Id, "liquidator", core.ActionLiquidate,
			core.ActionDetail{ActionType: core.ActionDeposit, Asset: "USDC", Amount: decimal.NewFromInt(1000)}))
	})
	require.NoError(t, err)

	byOwner, err := s.ListAccountsByOwner(ctx, g.Id, "liquidator")
	require.NoError(t, err)
	require.Len(t, byOwner, 1)
	assert.True(t, byOwner[0].Deposits[1].Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, int64(2), byOwner[0].Version)

	ops, err := s.ListOperates(ctx, account.Id, 0, 10)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, core.ActionLiquidate, ops[0].Op)
	require.Len(t, ops[0].Extra.Actions, 1)
	assert.True(t, ops[0].Extra.Actions[0].Amount.Equal(decimal.NewFromInt(1000)))

	boom := errors.New("boom")
	err = s.Transaction(ctx, func(ctx context.Context, tx core.LedgerStore) error {
		a, err := tx.GetAccountById(ctx, account.Id)
		if err != nil {
			return err
		}
		a.Deposits[1] = decimal.Zero
		if err := tx.UpdateAccount(ctx, a); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	stored, err := s.GetAccountById(ctx, account.Id)
	require.NoError(t, err)
	assert.True(t, stored.Deposits[1].Equal(decimal.NewFromInt(1000)))
}

func TestTransfersAreIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	accountId := uuid.Must(uuid.NewV4())
	transfer := &core.Transfer{
		TraceId:   uuid.Must(uuid.NewV4()),
		AccountId: accountId,
		Asset:     "usdc-mint",
		Amount:    decimal.RequireFromString("123.456789"),
		Opponent:  "wallet",
	}
	require.NoError(t, s.CreateTransfer(ctx, transfer))
	require.NoError(t, s.CreateTransfer(ctx, transfer))

	transfers, err := s.ListTransfers(ctx, accountId)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.True(t, transfers[0].Amount.Equal(transfer.Amount))
}
