package core

import (
	"context"
	"strconv"

	"github.com/DomeLiquid/margin/utils"
	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type (
	AccountStore interface {
		GetAccountById(ctx context.Context, accountId uuid.UUID) (*MarginAccount, error)
		ListAccountsByGroup(ctx context.Context, groupId uuid.UUID) ([]*MarginAccount, error)
		ListAccountsByOwner(ctx context.Context, groupId uuid.UUID, owner string) ([]*MarginAccount, error)
		CreateAccount(ctx context.Context, account *MarginAccount) error
		UpdateAccount(ctx context.Context, account *MarginAccount) error
	}

	// MarginAccount keeps deposits and borrows as shares of the group indexes.
	MarginAccount struct {
		Id           uuid.UUID         `json:"id"`
		GroupId      uuid.UUID         `json:"groupId"`
		Owner        string            `json:"owner"`
		Index        uint8             `json:"index"`
		Deposits     []decimal.Decimal `json:"deposits"`
		Borrows      []decimal.Decimal `json:"borrows"`
		OpenOrders   []string          `json:"openOrders"`
		AccountFlags AccountFlags      `json:"accountFlags"`

		// venue calls committed here but not yet confirmed, per market
		PendingOrders  []*PendingOrder `json:"pendingOrders,omitempty"`
		PendingSettles []string        `json:"pendingSettles,omitempty"`

		Version   int64 `json:"version"`
		CreatedAt int64 `json:"createdAt"`
		UpdatedAt int64 `json:"updatedAt"`
	}
)

// PendingOrder is an order whose funds are already locked out of deposits
// but which the venue has not acknowledged yet.
type PendingOrder struct {
	Request  OrderRequest    `json:"request"`
	Asset    int             `json:"asset"`
	Locked   decimal.Decimal `json:"locked"`
	Borrowed decimal.Decimal `json:"borrowed"`
}

type AccountFlags uint8

const (
	LiquidatedFlag AccountFlags = 1 << 0
	InsolventFlag  AccountFlags = 1 << 1
)

func (f AccountFlags) String() string {
	switch f {
	case 0:
		return "None"
	case LiquidatedFlag:
		return "Liquidated"
	case InsolventFlag:
		return "Insolvent"
	case LiquidatedFlag | InsolventFlag:
		return "Liquidated Insolvent"
	default:
		return "Unknown"
	}
}

func (a *MarginAccount) SetFlag(flag AccountFlags) {
	a.AccountFlags |= flag
}

func (a *MarginAccount) GetFlag(flag AccountFlags) bool {
	return a.AccountFlags&flag != 0
}

func AccountId(groupId uuid.UUID, owner string, index uint8) uuid.UUID {
	return utils.GenUuid(groupId.String(), owner, strconv.Itoa(int(index)))
}

func NewMarginAccount(clk clock.Clock, group *Group, owner string, index uint8) *MarginAccount {
	n := group.NumAssets()
	return &MarginAccount{
		Id:         AccountId(group.Id, owner, index),
		GroupId:    group.Id,
		Owner:      owner,
		Index:      index,
		Deposits:   zeros(n),
		Borrows:    zeros(n),
		OpenOrders: make([]string, n-1),
		CreatedAt:  clk.Now().Unix(),
		UpdatedAt:  clk.Now().Unix(),
	}
}

func (a *MarginAccount) HasBorrows() bool {
	for _, b := range a.Borrows {
		if b.IsPositive() {
			return true
		}
	}
	return false
}

func (a *MarginAccount) HasOpenOrdersAccount(market int) bool {
	return market < len(a.OpenOrders) && a.OpenOrders[market] != ""
}

func (a *MarginAccount) PendingOrderOn(market int) *PendingOrder {
	if market < 0 || market >= len(a.PendingOrders) {
		return nil
	}
	return a.PendingOrders[market]
}

func (a *MarginAccount) SetPendingOrder(market int, p *PendingOrder) {
	for len(a.PendingOrders) < len(a.OpenOrders) {
		a.PendingOrders = append(a.PendingOrders, nil)
	}
	a.PendingOrders[market] = p
}

func (a *MarginAccount) PendingSettleOn(market int) string {
	if market < 0 || market >= len(a.PendingSettles) {
		return ""
	}
	return a.PendingSettles[market]
}

func (a *MarginAccount) SetPendingSettle(market int, settleId string) {
	for len(a.PendingSettles) < len(a.OpenOrders) {
		a.PendingSettles = append(a.PendingSettles, "")
	}
	a.PendingSettles[market] = settleId
}

// HasPending reports whether a venue call on market still waits for its
// ledger side.
func (a *MarginAccount) HasPending(market int) bool {
	return a.PendingOrderOn(market) != nil || a.PendingSettleOn(market) != ""
}

func (a *MarginAccount) Clone() *MarginAccount {
	clone := *a
	clone.Deposits = append([]decimal.Decimal(nil), a.Deposits...)
	clone.Borrows = append([]decimal.Decimal(nil), a.Borrows...)
	clone.OpenOrders = append([]string(nil), a.OpenOrders...)
	clone.PendingSettles = append([]string(nil), a.PendingSettles...)
	clone.PendingOrders = nil
	for _, p := range a.PendingOrders {
		if p != nil {
			p = &PendingOrder{Request: p.Request, Asset: p.Asset, Locked: p.Locked, Borrowed: p.Borrowed}
		}
		clone.PendingOrders = append(clone.PendingOrders, p)
	}
	return &clone
}
