package ledger

import (
	"context"

	"github.com/DomeLiquid/margin/core"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

func (s *Service) InitGroup(ctx context.Context, spec core.GroupSpec) (*core.Group, error) {
	group, err := core.NewGroup(s.clk, spec)
	if err != nil {
		return nil, err
	}

	err = s.store.Transaction(ctx, func(ctx context.Context, tx core.LedgerStore) error {
		if err := tx.CreateGroup(ctx, group); err != nil {
			return err
		}
		return tx.CreateOperate(ctx, core.NewOperate(s.clk, group.Id, uuid.Nil, spec.Signer, core.ActionInitGroup))
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("group", group.Name).Str("id", group.Id.String()).Int("assets", group.NumAssets()).Msg("group initialized")
	return group, nil
}

func (s *Service) ChangeBorrowLimit(ctx context.Context, groupId uuid.UUID, signer string, asset int, limit decimal.Decimal) error {
	return s.store.Transaction(ctx, func(ctx context.Context, tx core.LedgerStore) error {
		group, err := tx.GetGroupById(ctx, groupId)
		if err != nil {
			return err
		}
		if group.Signer != signer {
			return errors.Wrapf(core.ErrInvalidGroupOwner, "group %s", group.Name)
		}
		if err := group.CheckAssetIndex(asset); err != nil {
			return err
		}
		if limit.IsNegative() {
			return core.ErrInvalidAmount
		}

		now := s.clk.Now().Unix()
		if err := group.AccrueAll(&s.log, now); err != nil {
			return err
		}
		group.BorrowLimits[asset] = limit
		group.UpdatedAt = now
		if err := tx.UpdateGroup(ctx, group); err != nil {
			return err
		}
		return tx.CreateOperate(ctx, core.NewOperate(s.clk, group.Id, uuid.Nil, signer, core.ActionChangeBorrowLimit,
			core.ActionDetail{ActionType: core.ActionChangeBorrowLimit, Asset: group.Assets[asset].Mint, Amount: limit}))
	})
}

// CreateAccount opens margin account index of owner in the group.
func (s *Service) CreateAccount(ctx context.Context, groupId uuid.UUID, owner string, index uint8) (*core.MarginAccount, error) {
	var account *core.MarginAccount
	err := s.store.Transaction(ctx, func(ctx context.Context, tx core.LedgerStore) error {
		group, err := tx.GetGroupById(ctx, groupId)
		if err != nil {
			return err
		}
		account = core.NewMarginAccount(s.clk, group, owner, index)
		if err := tx.CreateAccount(ctx, account); err != nil {
			return err
		}
		return tx.CreateOperate(ctx, core.NewOperate(s.clk, group.Id, account.Id, owner, core.ActionCreateAccount))
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}
