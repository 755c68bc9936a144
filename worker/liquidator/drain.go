package liquidator

import (
	"context"

	"github.com/DomeLiquid/margin/core"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type position struct {
	group      *core.Group
	account    *core.MarginAccount
	openOrders []*core.OpenOrders
}

func (w *Worker) load(ctx context.Context, accountId uuid.UUID) (*position, error) {
	account, err := w.ledger.GetAccount(ctx, accountId)
	if err != nil {
		return nil, err
	}
	group, err := w.ledger.GetGroup(ctx, account.GroupId)
	if err != nil {
		return nil, err
	}
	if account.Owner != w.cfg.Liquidator {
		return nil, errors.Wrapf(core.ErrInvalidAccountOwner, "account %s is owned by %s", account.Id, account.Owner)
	}
	openOrders, err := w.ledger.LoadOpenOrders(ctx, group, account)
	if err != nil {
		return nil, err
	}
	return &position{group: group, account: account, openOrders: openOrders}, nil
}

// drain turns a liquidated account back into quote and withdraws it. Every
// step reloads the account, so a drain interrupted anywhere resumes from the
// start on the next scan and skips what is already done.
func (w *Worker) drain(ctx context.Context, log zerolog.Logger, accountId uuid.UUID) (result, error) {
	steps := []struct {
		state DrainState
		run   func(ctx context.Context, log zerolog.Logger, accountId uuid.UUID) (bool, error)
	}{
		{state: CancelingOrders, run: w.cancelOrders},
		{state: SettlingFunds, run: w.settleFunds},
		{state: Rebalancing, run: w.rebalance},
		{state: WithdrawingSurplus, run: w.withdrawSurplus},
	}

	for _, step := range steps {
		log := log.With().Str("state", step.state.String()).Logger()

		var done bool
		err := w.cfg.Retry.Do(ctx, log, step.state.String(), func(ctx context.Context) error {
			var err error
			done, err = step.run(ctx, log, accountId)
			return err
		})
		if err != nil {
			w.metrics.Drains.WithLabelValues("failed").Inc()
			return result{Outcome: OutcomeDraining, State: step.state}, errors.Wrap(err, step.state.String())
		}
		if !done {
			w.metrics.Drains.WithLabelValues("incomplete").Inc()
			log.Info().Msg("drain continues next scan")
			return result{Outcome: OutcomeDraining, State: step.state}, nil
		}
	}

	w.metrics.Drains.WithLabelValues("completed").Inc()
	return result{Outcome: OutcomeDrained, State: Scanning}, nil
}

// cancelOrders cancels every market at once and only then checks that
// nothing rests anymore.
func (w *Worker) cancelOrders(ctx context.Context, log zerolog.Logger, accountId uuid.UUID) (bool, error) {
	pos, err := w.load(ctx, accountId)
	if err != nil {
		return false, err
	}

	g, gctx := errgroup.WithContext(ctx)
	for m, oo := range pos.openOrders {
		if (oo == nil || !oo.HasOrders()) && pos.account.PendingOrderOn(m) == nil {
			continue
		}
		g.Go(func() error {
			n, err := w.ledger.CancelAllByMarket(gctx, accountId, w.cfg.Liquidator, m)
			if err != nil {
				return errors.Wrapf(err, "cancel %s", pos.group.Markets[m].Id)
			}
			log.Debug().Str("market", pos.group.Markets[m].Id).Int("cancelled", n).Msg("orders cancelled")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}

	pos, err = w.load(ctx, accountId)
	if err != nil {
		return false, err
	}
	for m, oo := range pos.openOrders {
		if (oo != nil && oo.HasOrders()) || pos.account.PendingOrderOn(m) != nil {
			return false, core.Transient(errors.Errorf("orders still resting on %s", pos.group.Markets[m].Id))
		}
	}
	return true, nil
}

// settleFunds pulls everything free out of the open orders accounts and
// pays borrows back with the deposits that brings.
func (w *Worker) settleFunds(ctx context.Context, log zerolog.Logger, accountId uuid.UUID) (bool, error) {
	pos, err := w.load(ctx, accountId)
	if err != nil {
		return false, err
	}
	for m, oo := range pos.openOrders {
		if (oo == nil || !oo.HasUnsettled()) && !pos.account.HasPending(m) {
			continue
		}
		if err := w.settleMarket(ctx, log, accountId, pos.group, m); err != nil {
			return false, err
		}
	}
	return true, w.settleBorrows(ctx, accountId)
}

func (w *Worker) settleMarket(ctx context.Context, log zerolog.Logger, accountId uuid.UUID, group *core.Group, market int) error {
	base, quote, err := w.ledger.SettleFunds(ctx, accountId, market)
	if err != nil {
		return errors.Wrapf(err, "settle %s", group.Markets[market].Id)
	}
	log.Debug().Str("market", group.Markets[market].Id).Str("base", base.String()).Str("quote", quote.String()).Msg("funds settled")
	return nil
}

func (w *Worker) settleBorrows(ctx context.Context, accountId uuid.UUID) error {
	account, err := w.ledger.GetAccount(ctx, accountId)
	if err != nil {
		return err
	}
	for i, shares := range account.Borrows {
		if !shares.IsPositive() {
			continue
		}
		if err := w.ledger.SettleBorrow(ctx, accountId, w.cfg.Liquidator, i, decimal.Zero); err != nil {
			return errors.Wrapf(err, "settle borrow of asset %d", i)
		}
	}
	return nil
}

// rebalance closes every tradable position against quote. It reports done
// only once nothing is left to trade.
func (w *Worker) rebalance(ctx context.Context, log zerolog.Logger, accountId uuid.UUID) (bool, error) {
	pos, err := w.load(ctx, accountId)
	if err != nil {
		return false, err
	}
	// an order left pending by an earlier attempt lands before planning
	pending := false
	for m := range pos.group.Markets {
		if !pos.account.HasPending(m) {
			continue
		}
		if err := w.settleMarket(ctx, log, accountId, pos.group, m); err != nil {
			return false, err
		}
		pending = true
	}
	if pending {
		if err := w.settleBorrows(ctx, accountId); err != nil {
			return false, err
		}
		if pos, err = w.load(ctx, accountId); err != nil {
			return false, err
		}
	}

	prices, err := core.FetchPriceVector(ctx, w.oracle, pos.group, w.clk.Now(), w.cfg.MaxPriceAge)
	if err != nil {
		return false, err
	}

	orders := PlanRebalance(pos.group, pos.account, prices)
	if len(orders) == 0 {
		return true, nil
	}

	for _, req := range orders {
		market := pos.group.Markets[req.Market]
		order, err := w.ledger.PlaceOrder(ctx, accountId, w.cfg.Liquidator, req)
		if err != nil {
			return false, errors.Wrapf(err, "%s %s %s @ %s", market.Id, req.Side, req.Size, req.Price)
		}
		log.Info().
			Str("market", market.Id).
			Str("side", req.Side.String()).
			Str("size", req.Size.String()).
			Str("price", req.Price.String()).
			Str("order", order.Id).
			Msg("rebalance order placed")

		if err := w.settleMarket(ctx, log, accountId, pos.group, req.Market); err != nil {
			return false, err
		}
		if err := w.settleBorrows(ctx, accountId); err != nil {
			return false, err
		}
	}

	account, err := w.ledger.GetAccount(ctx, accountId)
	if err != nil {
		return false, err
	}
	return len(PlanRebalance(pos.group, account, prices)) == 0, nil
}

// withdrawSurplus sends the quote deposit, less a small buffer, to the
// liquidator wallet once no debt is left.
func (w *Worker) withdrawSurplus(ctx context.Context, log zerolog.Logger, accountId uuid.UUID) (bool, error) {
	pos, err := w.load(ctx, accountId)
	if err != nil {
		return false, err
	}
	if pos.account.HasBorrows() {
		log.Warn().Msg("debt left after rebalance")
		return false, nil
	}

	group := pos.group
	quote := group.QuoteIndex()
	available := core.NewAccountWrapper(group, pos.account).NativeDeposit(quote)
	amount := group.QuoteAsset().Truncate(available.Mul(core.WITHDRAW_BUFFER))
	if amount.IsPositive() && amount.GreaterThanOrEqual(w.cfg.MinWithdraw) {
		transfer, err := w.ledger.Withdraw(ctx, accountId, w.cfg.Liquidator, quote, amount, w.cfg.Wallet)
		if err != nil {
			return false, err
		}
		log.Info().Str("amount", amount.String()).Str("trace", transfer.TraceId.String()).Msg("surplus withdrawn")
	}

	w.markDrained(accountId)
	return true, nil
}
