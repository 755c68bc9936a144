package core

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type Side uint8

const (
	Bid Side = iota
	Ask
)

func (s Side) String() string {
	switch s {
	case Bid:
		return "bid"
	case Ask:
		return "ask"
	default:
		return "unknown"
	}
}

func ParseSide(s string) (Side, error) {
	switch s {
	case "bid", "buy":
		return Bid, nil
	case "ask", "sell":
		return Ask, nil
	default:
		return 0, errors.Wrapf(ErrInvalidConfig, "side %q", s)
	}
}

type OrderType uint8

const (
	Limit OrderType = iota
	ImmediateOrCancel
	PostOnly
)

func (t OrderType) String() string {
	switch t {
	case Limit:
		return "limit"
	case ImmediateOrCancel:
		return "ioc"
	case PostOnly:
		return "post_only"
	default:
		return "unknown"
	}
}

func ParseOrderType(s string) (OrderType, error) {
	switch s {
	case "limit", "":
		return Limit, nil
	case "ioc":
		return ImmediateOrCancel, nil
	case "post_only":
		return PostOnly, nil
	default:
		return 0, errors.Wrapf(ErrInvalidConfig, "order type %q", s)
	}
}

type SelfTradeBehavior uint8

const (
	DecrementTake SelfTradeBehavior = iota
	CancelProvide
	AbortTransaction
)

func (b SelfTradeBehavior) String() string {
	switch b {
	case DecrementTake:
		return "decrement_take"
	case CancelProvide:
		return "cancel_provide"
	case AbortTransaction:
		return "abort_transaction"
	default:
		return "unknown"
	}
}

type OrderRequest struct {
	Market            int               `json:"market"`
	Side              Side              `json:"side"`
	Price             decimal.Decimal   `json:"price"`
	Size              decimal.Decimal   `json:"size"`
	Type              OrderType         `json:"type"`
	SelfTradeBehavior SelfTradeBehavior `json:"selfTradeBehavior"`
	ClientId          string            `json:"clientId"`
}

type Order struct {
	Id           string `json:"id"`
	OpenOrdersId string `json:"openOrdersId"`
	OrderRequest
}

// LockAmount is the native amount the order takes out of deposits: base for
// an ask, quote rounded up for a bid.
func (r *OrderRequest) LockAmount(quote Asset) decimal.Decimal {
	if r.Side == Ask {
		return r.Size
	}
	return r.Size.Mul(r.Price).RoundCeil(quote.Decimals)
}

// LockedAsset returns the group slot the order locks funds from.
func (r *OrderRequest) LockedAsset(group *Group) int {
	if r.Side == Ask {
		return group.Markets[r.Market].BaseIndex
	}
	return group.QuoteIndex()
}

func (r *OrderRequest) CheckLot(market Market) error {
	if r.Size.LessThan(market.MinSize) || r.Price.LessThan(market.TickSize) {
		return ErrBelowMinLot
	}
	return nil
}
