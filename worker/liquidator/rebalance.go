package liquidator

import (
	"sort"

	"github.com/DomeLiquid/margin/core"
	"github.com/shopspring/decimal"
)

// PlanRebalance returns the orders that flatten every tradable position of
// the account into quote, largest net value first. Longs are sold at 0.95
// of the oracle price and shorts bought back at 1.05 of it, both as
// immediate-or-cancel orders. Positions below the market lot are left alone.
func PlanRebalance(group *core.Group, account *core.MarginAccount, prices core.PriceVector) []core.OrderRequest {
	type position struct {
		market int
		net    decimal.Decimal
		value  decimal.Decimal
	}

	w := core.NewAccountWrapper(group, account)
	positions := make([]position, 0, len(group.Markets))
	for m, market := range group.Markets {
		net := w.NativeDeposit(market.BaseIndex).Sub(w.NativeBorrow(market.BaseIndex))
		if net.IsZero() {
			continue
		}
		positions = append(positions, position{
			market: m,
			net:    net,
			value:  net.Mul(prices.Price(market.BaseIndex)),
		})
	}
	sort.SliceStable(positions, func(i, j int) bool {
		return positions[i].value.GreaterThan(positions[j].value)
	})

	orders := make([]core.OrderRequest, 0, len(positions))
	for _, p := range positions {
		market := group.Markets[p.market]
		price := prices.Price(market.BaseIndex)

		req := core.OrderRequest{
			Market:            p.market,
			Type:              core.ImmediateOrCancel,
			SelfTradeBehavior: core.DecrementTake,
		}
		if p.net.IsPositive() {
			req.Side = core.Ask
			req.Price = roundDown(price.Mul(core.REBALANCE_ASK_FACTOR), market.TickSize)
			req.Size = roundDown(p.net, market.MinSize)
		} else {
			req.Side = core.Bid
			req.Price = roundUp(price.Mul(core.REBALANCE_BID_FACTOR), market.TickSize)
			req.Size = roundUp(p.net.Neg(), market.MinSize)
		}
		if req.CheckLot(market) != nil {
			continue
		}
		orders = append(orders, req)
	}
	return orders
}

func roundDown(v, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return v
	}
	return v.Div(step).Floor().Mul(step)
}

func roundUp(v, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return v
	}
	return v.Div(step).Ceil().Mul(step)
}
