// Package paper is an in-memory venue. Orders that cross the mark price of
// their market fill in full at the mark; others rest until the mark moves
// through them or they are cancelled.
package paper

import (
	"context"
	"strconv"
	"sync"

	"github.com/DomeLiquid/margin/core"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	ErrWouldCross     = errors.New("post only order would cross")
	ErrUnknownAccount = errors.New("unknown open orders account")
	ErrMarketMismatch = errors.New("open orders account belongs to another market")
)

type restingOrder struct {
	id           string
	openOrdersId string
	market       string
	side         core.Side
	price        decimal.Decimal
	size         decimal.Decimal
	locked       decimal.Decimal
}

type Venue struct {
	mu       sync.Mutex
	seq      int
	marks    map[string]decimal.Decimal
	accounts map[string]*core.OpenOrders
	byOwner  map[string]string
	orders   map[string]*restingOrder
	failures map[string][]error
	// replay keys
	clientIds map[string]string
	settled   map[string][2]decimal.Decimal
}

func New() *Venue {
	return &Venue{
		marks:    map[string]decimal.Decimal{},
		accounts: map[string]*core.OpenOrders{},
		byOwner:  map[string]string{},
		orders:   map[string]*restingOrder{},
		failures: map[string][]error{},

		clientIds: map[string]string{},
		settled:   map[string][2]decimal.Decimal{},
	}
}

var _ core.Venue = (*Venue)(nil)

// SetMark moves the reference price of market and fills resting orders it
// crosses.
func (v *Venue) SetMark(market string, price decimal.Decimal) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.marks[market] = price
	for id, o := range v.orders {
		if o.market == market && v.crosses(o.side, o.price, market) {
			v.fill(v.accounts[o.openOrdersId], o.side, o.size, o.locked, price)
			v.removeOrder(id)
		}
	}
}

// FailNext makes the next call of method ("PlaceOrder", "CancelAll", ...)
// return err.
func (v *Venue) FailNext(method string, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.failures[method] = append(v.failures[method], err)
}

func (v *Venue) injected(method string) error {
	errs := v.failures[method]
	if len(errs) == 0 {
		return nil
	}
	v.failures[method] = errs[1:]
	return errs[0]
}

func (v *Venue) nextId(prefix string) string {
	v.seq++
	return prefix + "-" + strconv.Itoa(v.seq)
}

func (v *Venue) CreateOpenOrders(_ context.Context, market core.Market, owner string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.injected("CreateOpenOrders"); err != nil {
		return "", err
	}

	key := market.Id + "|" + owner
	if id, ok := v.byOwner[key]; ok {
		return id, nil
	}
	id := v.nextId("oo")
	v.accounts[id] = &core.OpenOrders{
		Id:         id,
		Market:     market.Id,
		Owner:      owner,
		BaseFree:   decimal.Zero,
		BaseTotal:  decimal.Zero,
		QuoteFree:  decimal.Zero,
		QuoteTotal: decimal.Zero,
	}
	v.byOwner[key] = id
	return id, nil
}

func (v *Venue) account(market core.Market, openOrdersId string) (*core.OpenOrders, error) {
	oo, ok := v.accounts[openOrdersId]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownAccount, "%s", openOrdersId)
	}
	if oo.Market != market.Id {
		return nil, errors.Wrapf(ErrMarketMismatch, "%s is on %s", openOrdersId, oo.Market)
	}
	return oo, nil
}

func (v *Venue) LoadOpenOrders(_ context.Context, market core.Market, openOrdersId string) (*core.OpenOrders, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.injected("LoadOpenOrders"); err != nil {
		return nil, err
	}

	oo, err := v.account(market, openOrdersId)
	if err != nil {
		return nil, err
	}
	return oo.Clone(), nil
}

func (v *Venue) PlaceOrder(_ context.Context, market core.Market, openOrdersId string, req core.OrderRequest) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.injected("PlaceOrder"); err != nil {
		return "", err
	}

	oo, err := v.account(market, openOrdersId)
	if err != nil {
		return "", err
	}
	if !req.Size.IsPositive() || !req.Price.IsPositive() {
		return "", core.ErrInvalidAmount
	}
	clientKey := openOrdersId + "|" + req.ClientId
	if id, ok := v.clientIds[clientKey]; ok && req.ClientId != "" {
		return id, nil
	}

	crosses := v.crosses(req.Side, req.Price, market.Id)
	if req.Type == core.PostOnly && crosses {
		return "", ErrWouldCross
	}

	locked := req.Size
	if req.Side == core.Bid {
		locked = req.Size.Mul(req.Price)
		oo.QuoteTotal = oo.QuoteTotal.Add(locked)
	} else {
		oo.BaseTotal = oo.BaseTotal.Add(locked)
	}

	id := v.nextId("order")
	if req.ClientId != "" {
		v.clientIds[clientKey] = id
	}
	switch {
	case crosses:
		v.fill(oo, req.Side, req.Size, locked, v.marks[market.Id])
	case req.Type == core.ImmediateOrCancel:
		v.release(oo, req.Side, locked)
	default:
		v.orders[id] = &restingOrder{
			id:           id,
			openOrdersId: openOrdersId,
			market:       market.Id,
			side:         req.Side,
			price:        req.Price,
			size:         req.Size,
			locked:       locked,
		}
		oo.OrderIds = append(oo.OrderIds, id)
	}
	return id, nil
}

func (v *Venue) crosses(side core.Side, price decimal.Decimal, market string) bool {
	mark, ok := v.marks[market]
	if !ok {
		return false
	}
	if side == core.Ask {
		return price.LessThanOrEqual(mark)
	}
	return price.GreaterThanOrEqual(mark)
}

// fill converts the locked funds of an order into the proceeds of a trade at
// mark. Any quote locked above the trade cost is released.
func (v *Venue) fill(oo *core.OpenOrders, side core.Side, size, locked, mark decimal.Decimal) {
	proceeds := size.Mul(mark)
	switch side {
	case core.Ask:
		oo.BaseTotal = oo.BaseTotal.Sub(size)
		oo.QuoteFree = oo.QuoteFree.Add(proceeds)
		oo.QuoteTotal = oo.QuoteTotal.Add(proceeds)
	case core.Bid:
		refund := locked.Sub(proceeds)
		oo.QuoteTotal = oo.QuoteTotal.Sub(proceeds)
		oo.QuoteFree = oo.QuoteFree.Add(refund)
		oo.BaseFree = oo.BaseFree.Add(size)
		oo.BaseTotal = oo.BaseTotal.Add(size)
	}
}

func (v *Venue) release(oo *core.OpenOrders, side core.Side, locked decimal.Decimal) {
	switch side {
	case core.Ask:
		oo.BaseFree = oo.BaseFree.Add(locked)
	case core.Bid:
		oo.QuoteFree = oo.QuoteFree.Add(locked)
	}
}

func (v *Venue) removeOrder(id string) {
	o, ok := v.orders[id]
	if !ok {
		return
	}
	delete(v.orders, id)
	oo := v.accounts[o.openOrdersId]
	for i, oid := range oo.OrderIds {
		if oid == id {
			oo.OrderIds = append(oo.OrderIds[:i], oo.OrderIds[i+1:]...)
			break
		}
	}
}

func (v *Venue) CancelOrder(_ context.Context, market core.Market, openOrdersId, orderId string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.injected("CancelOrder"); err != nil {
		return err
	}

	oo, err := v.account(market, openOrdersId)
	if err != nil {
		return err
	}
	o, ok := v.orders[orderId]
	if !ok || o.openOrdersId != openOrdersId {
		return nil
	}
	v.release(oo, o.side, o.locked)
	v.removeOrder(orderId)
	return nil
}

func (v *Venue) CancelAll(_ context.Context, market core.Market, openOrdersId string) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.injected("CancelAll"); err != nil {
		return 0, err
	}

	oo, err := v.account(market, openOrdersId)
	if err != nil {
		return 0, err
	}
	ids := append([]string(nil), oo.OrderIds...)
	for _, id := range ids {
		o := v.orders[id]
		v.release(oo, o.side, o.locked)
		v.removeOrder(id)
	}
	return len(ids), nil
}

func (v *Venue) SettleFunds(_ context.Context, market core.Market, openOrdersId, settleId string) (decimal.Decimal, decimal.Decimal, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.injected("SettleFunds"); err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	oo, err := v.account(market, openOrdersId)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	settleKey := openOrdersId + "|" + settleId
	if r, ok := v.settled[settleKey]; ok && settleId != "" {
		return r[0], r[1], nil
	}
	base, quote := oo.BaseFree, oo.QuoteFree
	if settleId != "" {
		v.settled[settleKey] = [2]decimal.Decimal{base, quote}
	}
	oo.BaseTotal = oo.BaseTotal.Sub(base)
	oo.QuoteTotal = oo.QuoteTotal.Sub(quote)
	oo.BaseFree = decimal.Zero
	oo.QuoteFree = decimal.Zero
	return base, quote, nil
}
