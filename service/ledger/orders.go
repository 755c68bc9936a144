package ledger

import (
	"context"
	"strconv"

	"github.com/DomeLiquid/margin/core"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// PlaceOrder locks the funds an order needs out of deposits and forwards it
// to the venue. A shortfall is borrowed, within the borrow limit and the
// initial collateral ratio.
//
// The lock commits before the venue sees the order, which is recorded as
// pending under a client id the venue dedupes on. A venue rejection releases
// the lock. Any other failure leaves the order pending, and the next
// PlaceOrder, CancelOrder, CancelAllByMarket or SettleFunds on the market
// submits it again first.
func (s *Service) PlaceOrder(ctx context.Context, accountId uuid.UUID, owner string, req core.OrderRequest) (*core.Order, error) {
	if _, err := s.resolvePendingOrder(ctx, accountId, req.Market); err != nil {
		return nil, err
	}
	pending, err := s.lockOrder(ctx, accountId, owner, req)
	if err != nil {
		return nil, err
	}
	return s.submitOrder(ctx, accountId, req.Market, pending)
}

func (s *Service) lockOrder(ctx context.Context, accountId uuid.UUID, owner string, req core.OrderRequest) (*core.PendingOrder, error) {
	var pending *core.PendingOrder
	err := s.update(ctx, accountId, owner, core.ActionPlaceOrder, func(ctx context.Context, st *txState) ([]core.ActionDetail, error) {
		group, account := st.group, st.account
		if err := checkOwner(account, owner); err != nil {
			return nil, err
		}
		if err := group.CheckMarketIndex(req.Market); err != nil {
			return nil, err
		}
		market := group.Markets[req.Market]
		if err := req.CheckLot(market); err != nil {
			return nil, errors.Wrapf(err, "%s %s @ %s on %s", req.Side, req.Size, req.Price, market.Id)
		}

		if !account.HasOpenOrdersAccount(req.Market) {
			id, err := s.venue.CreateOpenOrders(ctx, market, account.Id.String())
			if err != nil {
				return nil, errors.Wrapf(err, "create open orders on %s", market.Id)
			}
			account.OpenOrders[req.Market] = id
		}
		openOrdersId := account.OpenOrders[req.Market]

		asset := req.LockedAsset(group)
		amount := req.LockAmount(group.QuoteAsset())
		take := decimal.Min(amount, st.wrapper.NativeDeposit(asset))
		shortfall := amount.Sub(take)

		if take.IsPositive() {
			if err := st.wrapper.DecreaseDeposit(asset, take); err != nil {
				return nil, err
			}
		}
		if st.group.Vaults[asset].LessThan(amount) {
			return nil, errors.Wrapf(core.ErrInsufficientFunds, "vault of %s holds %s", group.Assets[asset], group.Vaults[asset])
		}
		group.Vaults[asset] = group.Vaults[asset].Sub(amount)

		if shortfall.IsPositive() {
			if err := st.wrapper.IncreaseBorrow(asset, shortfall); err != nil {
				return nil, err
			}
			if err := st.wrapper.CheckBorrowLimit(asset); err != nil {
				return nil, err
			}

			openOrders, err := s.LoadOpenOrders(ctx, group, account)
			if err != nil {
				return nil, err
			}
			openOrders[req.Market] = lockedView(openOrders[req.Market], openOrdersId, req.Side, amount)
			if err := s.checkInitRatio(ctx, st, openOrders); err != nil {
				return nil, err
			}
		}

		req.ClientId = traceId(account.Id.String(), core.ActionPlaceOrder.String(), strconv.Itoa(req.Market), versionTag(account)).String()
		pending = &core.PendingOrder{Request: req, Asset: asset, Locked: amount, Borrowed: shortfall}
		account.SetPendingOrder(req.Market, pending)

		return []core.ActionDetail{{
			ActionType: core.ActionPlaceOrder,
			Asset:      group.Assets[asset].Mint,
			Market:     market.Id,
			Amount:     amount,
			Ref:        req.ClientId,
		}}, nil
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}

// rejectedError is a venue refusal after which the locked funds went back
// to deposits.
type rejectedError struct {
	error
}

func (e rejectedError) Unwrap() error { return e.error }

// submitOrder sends a pending order to the venue and settles its ledger side:
// confirmed when the venue takes it, released when the venue refuses it.
func (s *Service) submitOrder(ctx context.Context, accountId uuid.UUID, market int, p *core.PendingOrder) (*core.Order, error) {
	account, err := s.store.GetAccountById(ctx, accountId)
	if err != nil {
		return nil, err
	}
	group, err := s.store.GetGroupById(ctx, account.GroupId)
	if err != nil {
		return nil, err
	}
	m := group.Markets[market]
	openOrdersId := account.OpenOrders[market]

	orderId, err := s.venue.PlaceOrder(ctx, m, openOrdersId, p.Request)
	if err != nil {
		err = errors.Wrapf(err, "place order on %s", m.Id)
		// the venue may still have taken it
		if core.IsTransient(err) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		if rerr := s.releaseOrder(ctx, accountId, market, p); rerr != nil {
			return nil, errors.Wrapf(rerr, "release order refused with %v", err)
		}
		return nil, rejectedError{err}
	}

	if err := s.confirmOrder(ctx, accountId, market, p, orderId); err != nil {
		return nil, err
	}
	s.log.Debug().
		Str("account", accountId.String()).
		Str("market", m.Id).
		Str("side", p.Request.Side.String()).
		Str("price", p.Request.Price.String()).
		Str("size", p.Request.Size.String()).
		Str("borrowed", p.Borrowed.String()).
		Str("order", orderId).
		Msg("order placed")
	return &core.Order{Id: orderId, OpenOrdersId: openOrdersId, OrderRequest: p.Request}, nil
}

func samePending(cur, p *core.PendingOrder) bool {
	return cur != nil && cur.Request.ClientId == p.Request.ClientId
}

func (s *Service) confirmOrder(ctx context.Context, accountId uuid.UUID, market int, p *core.PendingOrder, orderId string) error {
	return s.update(ctx, accountId, "", core.ActionPlaceOrder, func(ctx context.Context, st *txState) ([]core.ActionDetail, error) {
		if !samePending(st.account.PendingOrderOn(market), p) {
			return nil, errNoop
		}
		st.account.SetPendingOrder(market, nil)
		return []core.ActionDetail{{
			ActionType: core.ActionPlaceOrder,
			Market:     st.group.Markets[market].Id,
			Amount:     p.Locked,
			Ref:        orderId,
		}}, nil
	})
}

// releaseOrder undoes the lock of a refused order: the funds go back to
// deposits and whatever the lock borrowed is repaid out of them.
func (s *Service) releaseOrder(ctx context.Context, accountId uuid.UUID, market int, p *core.PendingOrder) error {
	return s.update(ctx, accountId, "", core.ActionPlaceOrder, func(ctx context.Context, st *txState) ([]core.ActionDetail, error) {
		group := st.group
		if !samePending(st.account.PendingOrderOn(market), p) {
			return nil, errNoop
		}
		if err := st.wrapper.IncreaseDeposit(p.Asset, p.Locked); err != nil {
			return nil, err
		}
		group.Vaults[p.Asset] = group.Vaults[p.Asset].Add(p.Locked)
		if p.Borrowed.IsPositive() {
			if _, err := st.wrapper.SettleBorrow(p.Asset, p.Borrowed); err != nil {
				return nil, err
			}
		}
		st.account.SetPendingOrder(market, nil)
		return []core.ActionDetail{{
			ActionType: core.ActionPlaceOrder,
			Asset:      group.Assets[p.Asset].Mint,
			Market:     group.Markets[market].Id,
			Amount:     p.Locked.Neg(),
			Ref:        p.Request.ClientId,
		}}, nil
	})
}

// resolvePendingOrder submits the pending order of market again, if there is
// one. A refusal is not an error here; the lock is released either way.
func (s *Service) resolvePendingOrder(ctx context.Context, accountId uuid.UUID, market int) (*core.Order, error) {
	account, err := s.store.GetAccountById(ctx, accountId)
	if err != nil {
		return nil, err
	}
	p := account.PendingOrderOn(market)
	if p == nil {
		return nil, nil
	}

	log := s.log.With().Str("account", accountId.String()).Str("client", p.Request.ClientId).Logger()
	log.Info().Msg("resubmitting pending order")
	order, err := s.submitOrder(ctx, accountId, market, p)
	var rejected rejectedError
	if errors.As(err, &rejected) {
		log.Warn().Err(err).Msg("pending order refused, lock released")
		return nil, nil
	}
	return order, err
}

// lockedView is the open orders account as it will look once the venue holds
// the locked funds of the order.
func lockedView(oo *core.OpenOrders, id string, side core.Side, amount decimal.Decimal) *core.OpenOrders {
	if oo == nil {
		oo = &core.OpenOrders{Id: id}
	} else {
		oo = oo.Clone()
	}
	if side == core.Ask {
		oo.BaseTotal = oo.BaseTotal.Add(amount)
	} else {
		oo.QuoteTotal = oo.QuoteTotal.Add(amount)
	}
	return oo
}

// CancelOrder releases the funds of one resting order back to the open orders
// account. Cancelling an order that is gone is a no-op.
func (s *Service) CancelOrder(ctx context.Context, accountId uuid.UUID, owner string, market int, orderId string) error {
	group, account, err := s.loadForCancel(ctx, accountId, owner, market)
	if err != nil || account == nil {
		return err
	}
	return s.venue.CancelOrder(ctx, group.Markets[market], account.OpenOrders[market], orderId)
}

// CancelAllByMarket cancels every resting order of the account on market and
// returns how many were cancelled.
func (s *Service) CancelAllByMarket(ctx context.Context, accountId uuid.UUID, owner string, market int) (int, error) {
	group, account, err := s.loadForCancel(ctx, accountId, owner, market)
	if err != nil || account == nil {
		return 0, err
	}
	return s.venue.CancelAll(ctx, group.Markets[market], account.OpenOrders[market])
}

// loadForCancel returns a nil account when the account never traded on market.
func (s *Service) loadForCancel(ctx context.Context, accountId uuid.UUID, owner string, market int) (*core.Group, *core.MarginAccount, error) {
	account, err := s.store.GetAccountById(ctx, accountId)
	if err != nil {
		return nil, nil, err
	}
	if err := checkOwner(account, owner); err != nil {
		return nil, nil, err
	}
	group, err := s.store.GetGroupById(ctx, account.GroupId)
	if err != nil {
		return nil, nil, err
	}
	if err := group.CheckMarketIndex(market); err != nil {
		return nil, nil, err
	}
	if !account.HasOpenOrdersAccount(market) {
		return group, nil, nil
	}
	if _, err := s.resolvePendingOrder(ctx, accountId, market); err != nil {
		return nil, nil, err
	}
	return group, account, nil
}

// SettleFunds moves free base and quote from the open orders account on market
// back into deposits. Anyone may call it; nothing pending is a no-op.
//
// The settlement is recorded on the account under an id before the venue
// moves anything and credited in a second transaction. One left half done is
// finished by the next call, which replays the same id at the venue.
func (s *Service) SettleFunds(ctx context.Context, accountId uuid.UUID, market int) (decimal.Decimal, decimal.Decimal, error) {
	if _, err := s.resolvePendingOrder(ctx, accountId, market); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	settleId, err := s.beginSettle(ctx, accountId, market)
	if err != nil || settleId == "" {
		return decimal.Zero, decimal.Zero, err
	}
	return s.finishSettle(ctx, accountId, market, settleId)
}

// beginSettle returns the id of the settlement to run on market, or "" when
// there is nothing to settle.
func (s *Service) beginSettle(ctx context.Context, accountId uuid.UUID, market int) (string, error) {
	var settleId string
	err := s.update(ctx, accountId, "", core.ActionSettleFunds, func(ctx context.Context, st *txState) ([]core.ActionDetail, error) {
		group, account := st.group, st.account
		if err := group.CheckMarketIndex(market); err != nil {
			return nil, err
		}
		if id := account.PendingSettleOn(market); id != "" {
			settleId = id
			return nil, errNoop
		}
		if !account.HasOpenOrdersAccount(market) {
			return nil, errNoop
		}
		oo, err := s.venue.LoadOpenOrders(ctx, group.Markets[market], account.OpenOrders[market])
		if err != nil {
			return nil, err
		}
		if oo.Owner != "" && oo.Owner != account.Id.String() {
			return nil, errors.Wrapf(core.ErrInvalidOpenOrdersAccount, "%s belongs to %s", oo.Id, oo.Owner)
		}
		if !oo.HasUnsettled() {
			return nil, errNoop
		}

		settleId = traceId(account.Id.String(), core.ActionSettleFunds.String(), strconv.Itoa(market), versionTag(account)).String()
		account.SetPendingSettle(market, settleId)
		return nil, nil
	})
	if err != nil {
		return "", err
	}
	return settleId, nil
}

func (s *Service) finishSettle(ctx context.Context, accountId uuid.UUID, market int, settleId string) (decimal.Decimal, decimal.Decimal, error) {
	account, err := s.store.GetAccountById(ctx, accountId)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	group, err := s.store.GetGroupById(ctx, account.GroupId)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	m := group.Markets[market]
	settledBase, settledQuote, err := s.venue.SettleFunds(ctx, m, account.OpenOrders[market], settleId)
	if err != nil {
		return decimal.Zero, decimal.Zero, errors.Wrapf(err, "settle %s", m.Id)
	}

	base, quote := decimal.Zero, decimal.Zero
	err = s.update(ctx, accountId, "", core.ActionSettleFunds, func(ctx context.Context, st *txState) ([]core.ActionDetail, error) {
		group, account := st.group, st.account
		if account.PendingSettleOn(market) != settleId {
			return nil, errNoop
		}
		account.SetPendingSettle(market, "")

		var actions []core.ActionDetail
		for _, credit := range []struct {
			asset  int
			amount decimal.Decimal
		}{
			{asset: m.BaseIndex, amount: group.Assets[m.BaseIndex].Truncate(settledBase)},
			{asset: group.QuoteIndex(), amount: group.QuoteAsset().Truncate(settledQuote)},
		} {
			if !credit.amount.IsPositive() {
				continue
			}
			if err := st.wrapper.IncreaseDeposit(credit.asset, credit.amount); err != nil {
				return nil, err
			}
			group.Vaults[credit.asset] = group.Vaults[credit.asset].Add(credit.amount)
			actions = append(actions, core.ActionDetail{ActionType: core.ActionSettleFunds, Asset: group.Assets[credit.asset].Mint, Market: m.Id, Amount: credit.amount, Ref: settleId})
		}

		base = group.Assets[m.BaseIndex].Truncate(settledBase)
		quote = group.QuoteAsset().Truncate(settledQuote)
		return actions, nil
	})
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return base, quote, nil
}
