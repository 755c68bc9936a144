package core

import (
	"context"

	"github.com/shopspring/decimal"
)

// Venue is the external order book. Cancelling a missing order or settling
// nothing is a no-op, and CreateOpenOrders hands back the existing account
// when the owner already has one on the market.
//
// PlaceOrder and SettleFunds are keyed for replay: an order whose ClientId
// was seen before returns the existing order id, and a settleId seen before
// returns the amounts of the first settlement without moving funds again.
type Venue interface {
	CreateOpenOrders(ctx context.Context, market Market, owner string) (string, error)
	LoadOpenOrders(ctx context.Context, market Market, openOrdersId string) (*OpenOrders, error)
	PlaceOrder(ctx context.Context, market Market, openOrdersId string, req OrderRequest) (string, error)
	CancelOrder(ctx context.Context, market Market, openOrdersId, orderId string) error
	CancelAll(ctx context.Context, market Market, openOrdersId string) (int, error)
	SettleFunds(ctx context.Context, market Market, openOrdersId, settleId string) (base, quote decimal.Decimal, err error)
}
