package core

import (
	"context"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type (
	// LedgerStore persists ledger state. Transaction runs fn atomically: every
	// write made through tx is applied or none is.
	LedgerStore interface {
		GroupStore
		AccountStore
		OperateStore
		TransferStore

		Transaction(ctx context.Context, fn func(ctx context.Context, tx LedgerStore) error) error
	}

	// LedgerService is the authoritative state machine over groups and margin
	// accounts. Every mutating call is all-or-nothing.
	LedgerService interface {
		GetGroup(ctx context.Context, groupId uuid.UUID) (*Group, error)
		GetAccount(ctx context.Context, accountId uuid.UUID) (*MarginAccount, error)
		ListAccounts(ctx context.Context, groupId uuid.UUID) ([]*MarginAccount, error)
		ListAccountsByOwner(ctx context.Context, groupId uuid.UUID, owner string) ([]*MarginAccount, error)
		LoadOpenOrders(ctx context.Context, group *Group, account *MarginAccount) ([]*OpenOrders, error)

		Deposit(ctx context.Context, accountId uuid.UUID, asset int, amount decimal.Decimal) error
		Withdraw(ctx context.Context, accountId uuid.UUID, owner string, asset int, amount decimal.Decimal, opponent string) (*Transfer, error)
		Borrow(ctx context.Context, accountId uuid.UUID, owner string, asset int, amount decimal.Decimal) error
		SettleBorrow(ctx context.Context, accountId uuid.UUID, owner string, asset int, amount decimal.Decimal) error
		Liquidate(ctx context.Context, accountId uuid.UUID, liquidator string, deposits []decimal.Decimal) (*LiquidateResult, error)

		PlaceOrder(ctx context.Context, accountId uuid.UUID, owner string, req OrderRequest) (*Order, error)
		CancelOrder(ctx context.Context, accountId uuid.UUID, owner string, market int, orderId string) error
		CancelAllByMarket(ctx context.Context, accountId uuid.UUID, owner string, market int) (int, error)
		SettleFunds(ctx context.Context, accountId uuid.UUID, market int) (base, quote decimal.Decimal, err error)
	}
)
