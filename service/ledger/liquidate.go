package ledger

import (
	"context"

	"github.com/DomeLiquid/margin/core"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Liquidate hands an account below the maintenance ratio to liquidator. The
// liquidator credits deposits, one amount per asset, which must lift the
// account to at least the initial ratio. Collateral and debt move as a whole.
func (s *Service) Liquidate(ctx context.Context, accountId uuid.UUID, liquidator string, deposits []decimal.Decimal) (*core.LiquidateResult, error) {
	var result *core.LiquidateResult
	err := s.update(ctx, accountId, liquidator, core.ActionLiquidate, func(ctx context.Context, st *txState) ([]core.ActionDetail, error) {
		group, account := st.group, st.account
		if len(deposits) != group.NumAssets() {
			return nil, errors.Wrapf(core.ErrInvalidAmount, "%d deposits for %d assets", len(deposits), group.NumAssets())
		}

		openOrders, err := s.LoadOpenOrders(ctx, group, account)
		if err != nil {
			return nil, err
		}
		prices, err := core.FetchPriceVector(ctx, s.oracle, group, s.clk.Now(), s.cfg.MaxPriceAge)
		if err != nil {
			return nil, err
		}

		pre, err := core.Valuate(group, account, openOrders, prices)
		if err != nil {
			return nil, err
		}
		preRatio, ok := pre.CollateralRatio()
		if !ok || preRatio.GreaterThanOrEqual(group.CollateralRatio(core.Maintenance)) {
			return nil, errors.Wrapf(core.ErrNotLiquidatable, "account %s ratio %s", account.Id, preRatio.StringFixed(4))
		}

		actions := []core.ActionDetail{}
		for i, amount := range deposits {
			if amount.IsNegative() {
				return nil, errors.Wrapf(core.ErrInvalidAmount, "deposit of %s", group.Assets[i])
			}
			if amount.IsZero() {
				continue
			}
			if err := st.wrapper.IncreaseDeposit(i, amount); err != nil {
				return nil, err
			}
			group.Vaults[i] = group.Vaults[i].Add(amount)
			actions = append(actions, core.ActionDetail{ActionType: core.ActionDeposit, Asset: group.Assets[i].Mint, Amount: amount})
		}

		post, err := core.Valuate(group, account, openOrders, prices)
		if err != nil {
			return nil, err
		}
		postRatio, _ := post.CollateralRatio()
		if minRatio := group.CollateralRatio(core.Initial); !post.Meets(minRatio) {
			return nil, errors.Wrapf(core.ErrLiquidatorUnderfunded, "ratio %s < %s", postRatio.StringFixed(4), minRatio)
		}

		result = &core.LiquidateResult{
			AccountId:     account.Id,
			PreviousOwner: account.Owner,
			Liquidator:    liquidator,
			Deposits:      deposits,
			PreValuation:  pre,
			PostValuation: post,
			PreRatio:      preRatio,
			PostRatio:     postRatio,
			Insolvent:     preRatio.LessThan(core.ONE),
		}

		account.Owner = liquidator
		account.SetFlag(core.LiquidatedFlag)
		if result.Insolvent {
			account.SetFlag(core.InsolventFlag)
		}

		s.log.Info().
			Str("account", account.Id.String()).
			Str("from", result.PreviousOwner).
			Str("to", liquidator).
			Str("preRatio", preRatio.StringFixed(4)).
			Str("postRatio", postRatio.StringFixed(4)).
			Bool("insolvent", result.Insolvent).
			Msg("account liquidated")

		actions = append(actions, core.ActionDetail{ActionType: core.ActionLiquidate, Ref: result.PreviousOwner, Amount: pre.LiabilitiesValue})
		return actions, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
