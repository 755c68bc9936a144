package ledger

import (
	"context"

	"github.com/DomeLiquid/margin/core"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

func (s *Service) Deposit(ctx context.Context, accountId uuid.UUID, asset int, amount decimal.Decimal) error {
	return s.update(ctx, accountId, "", core.ActionDeposit, func(ctx context.Context, st *txState) ([]core.ActionDetail, error) {
		if err := st.group.CheckAssetIndex(asset); err != nil {
			return nil, err
		}
		if err := st.wrapper.IncreaseDeposit(asset, amount); err != nil {
			return nil, err
		}
		st.group.Vaults[asset] = st.group.Vaults[asset].Add(amount)

		return []core.ActionDetail{{ActionType: core.ActionDeposit, Asset: st.group.Assets[asset].Mint, Amount: amount}}, nil
	})
}

// Withdraw moves amount out of the vault to opponent. The returned transfer is
// what the wallet side has to pay out.
func (s *Service) Withdraw(ctx context.Context, accountId uuid.UUID, owner string, asset int, amount decimal.Decimal, opponent string) (*core.Transfer, error) {
	var transfer *core.Transfer
	err := s.update(ctx, accountId, owner, core.ActionWithdraw, func(ctx context.Context, st *txState) ([]core.ActionDetail, error) {
		if err := checkOwner(st.account, owner); err != nil {
			return nil, err
		}
		if err := st.group.CheckAssetIndex(asset); err != nil {
			return nil, err
		}
		if err := st.wrapper.DecreaseDeposit(asset, amount); err != nil {
			return nil, err
		}
		if st.group.Vaults[asset].LessThan(amount) {
			return nil, errors.Wrapf(core.ErrInsufficientFunds, "vault of %s holds %s", st.group.Assets[asset], st.group.Vaults[asset])
		}
		st.group.Vaults[asset] = st.group.Vaults[asset].Sub(amount)

		if err := s.checkInitRatio(ctx, st, nil); err != nil {
			return nil, err
		}

		transfer = &core.Transfer{
			TraceId:   traceId(st.account.Id.String(), core.ActionWithdraw.String(), versionTag(st.account)),
			GroupId:   st.group.Id,
			AccountId: st.account.Id,
			Asset:     st.group.Assets[asset].Mint,
			Amount:    amount,
			Opponent:  opponent,
			CreatedAt: s.clk.Now().Unix(),
		}
		if err := st.tx.CreateTransfer(ctx, transfer); err != nil {
			return nil, err
		}

		return []core.ActionDetail{{ActionType: core.ActionWithdraw, Asset: transfer.Asset, Amount: amount, Ref: transfer.TraceId.String()}}, nil
	})
	if err != nil {
		return nil, err
	}
	return transfer, nil
}

// Borrow adds amount to both the borrows and the deposits of the account;
// the tokens stay in the vault until withdrawn or locked by an order.
func (s *Service) Borrow(ctx context.Context, accountId uuid.UUID, owner string, asset int, amount decimal.Decimal) error {
	return s.update(ctx, accountId, owner, core.ActionBorrow, func(ctx context.Context, st *txState) ([]core.ActionDetail, error) {
		if err := checkOwner(st.account, owner); err != nil {
			return nil, err
		}
		if err := st.group.CheckAssetIndex(asset); err != nil {
			return nil, err
		}
		if err := st.wrapper.IncreaseBorrow(asset, amount); err != nil {
			return nil, err
		}
		if err := st.wrapper.CheckBorrowLimit(asset); err != nil {
			return nil, err
		}
		if err := st.wrapper.IncreaseDeposit(asset, amount); err != nil {
			return nil, err
		}
		if err := s.checkInitRatio(ctx, st, nil); err != nil {
			return nil, err
		}

		return []core.ActionDetail{{ActionType: core.ActionBorrow, Asset: st.group.Assets[asset].Mint, Amount: amount}}, nil
	})
}

// SettleBorrow repays up to amount of the borrow out of deposits of the same
// asset; a non-positive amount settles as much as possible. Nothing owed is
// a no-op.
func (s *Service) SettleBorrow(ctx context.Context, accountId uuid.UUID, owner string, asset int, amount decimal.Decimal) error {
	return s.update(ctx, accountId, owner, core.ActionSettleBorrow, func(ctx context.Context, st *txState) ([]core.ActionDetail, error) {
		if err := checkOwner(st.account, owner); err != nil {
			return nil, err
		}
		if err := st.group.CheckAssetIndex(asset); err != nil {
			return nil, err
		}

		settled, err := st.wrapper.SettleBorrow(asset, amount)
		if err != nil {
			return nil, err
		}
		if settled.IsZero() {
			return nil, errNoop
		}

		return []core.ActionDetail{{ActionType: core.ActionSettleBorrow, Asset: st.group.Assets[asset].Mint, Amount: settled}}, nil
	})
}
