// Package ledger implements the authoritative margin ledger. Every mutation
// runs in one store transaction: interest is accrued first, the change is
// applied and checked, and the group, the account and an audit record are
// written together or not at all.
package ledger

import (
	"context"
	"strconv"
	"time"

	"github.com/DomeLiquid/margin/core"
	"github.com/DomeLiquid/margin/utils"
	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type Config struct {
	// MaxPriceAge bounds the age of oracle prices used by collateral checks.
	MaxPriceAge time.Duration
}

type Service struct {
	store  core.LedgerStore
	venue  core.Venue
	oracle core.PriceAdapter
	clk    clock.Clock
	log    zerolog.Logger
	cfg    Config
}

var _ core.LedgerService = (*Service)(nil)

func New(store core.LedgerStore, venue core.Venue, oracle core.PriceAdapter, clk clock.Clock, log zerolog.Logger, cfg Config) *Service {
	return &Service{
		store:  store,
		venue:  venue,
		oracle: oracle,
		clk:    clk,
		log:    log.With().Str("service", "ledger").Logger(),
		cfg:    cfg,
	}
}

// errNoop aborts a transaction that turned out to have nothing to do.
var errNoop = errors.New("noop")

// txState is what one ledger transaction works on.
type txState struct {
	tx      core.LedgerStore
	group   *core.Group
	account *core.MarginAccount
	wrapper *core.AccountWrapper
}

// update loads the account and its group, accrues interest, runs fn and
// persists the result along with an audit record. fn returning no actions
// writes the state without a record.
func (s *Service) update(ctx context.Context, accountId uuid.UUID, actor string, action core.ActionType, fn func(ctx context.Context, st *txState) ([]core.ActionDetail, error)) error {
	err := s.store.Transaction(ctx, func(ctx context.Context, tx core.LedgerStore) error {
		account, err := tx.GetAccountById(ctx, accountId)
		if err != nil {
			return err
		}
		group, err := tx.GetGroupById(ctx, account.GroupId)
		if err != nil {
			return err
		}

		prev := group.Clone()
		now := s.clk.Now().Unix()
		if err := group.AccrueAll(&s.log, now); err != nil {
			return err
		}

		st := &txState{tx: tx, group: group, account: account, wrapper: core.NewAccountWrapper(group, account)}
		actions, err := fn(ctx, st)
		if err != nil {
			return err
		}

		if err := group.CheckIndexes(prev); err != nil {
			return err
		}
		group.UpdatedAt = now
		account.UpdatedAt = now
		if err := tx.UpdateGroup(ctx, group); err != nil {
			return err
		}
		if err := tx.UpdateAccount(ctx, account); err != nil {
			return err
		}
		if actions == nil {
			return nil
		}
		if actor == "" {
			actor = account.Owner
		}
		return tx.CreateOperate(ctx, core.NewOperate(s.clk, group.Id, account.Id, actor, action, actions...))
	})
	if errors.Is(err, errNoop) {
		return nil
	}
	return err
}

func checkOwner(account *core.MarginAccount, owner string) error {
	if account.Owner != owner {
		return errors.Wrapf(core.ErrInvalidAccountOwner, "account %s", account.Id)
	}
	return nil
}

func (s *Service) GetGroup(ctx context.Context, groupId uuid.UUID) (*core.Group, error) {
	return s.store.GetGroupById(ctx, groupId)
}

func (s *Service) GetAccount(ctx context.Context, accountId uuid.UUID) (*core.MarginAccount, error) {
	return s.store.GetAccountById(ctx, accountId)
}

func (s *Service) ListAccounts(ctx context.Context, groupId uuid.UUID) ([]*core.MarginAccount, error) {
	return s.store.ListAccountsByGroup(ctx, groupId)
}

func (s *Service) ListAccountsByOwner(ctx context.Context, groupId uuid.UUID, owner string) ([]*core.MarginAccount, error) {
	return s.store.ListAccountsByOwner(ctx, groupId, owner)
}

// LoadOpenOrders resolves the open orders accounts of every market the
// account traded on; untouched markets are nil.
func (s *Service) LoadOpenOrders(ctx context.Context, group *core.Group, account *core.MarginAccount) ([]*core.OpenOrders, error) {
	openOrders := make([]*core.OpenOrders, len(group.Markets))
	for m, id := range account.OpenOrders {
		if id == "" {
			continue
		}
		if m >= len(group.Markets) {
			return nil, errors.Wrapf(core.ErrInvalidOpenOrdersAccount, "account %s market %d", account.Id, m)
		}
		oo, err := s.venue.LoadOpenOrders(ctx, group.Markets[m], id)
		if err != nil {
			return nil, errors.Wrapf(err, "load open orders %s", id)
		}
		openOrders[m] = oo
	}
	return openOrders, nil
}

// valuate prices the account with fresh oracle data.
func (s *Service) valuate(ctx context.Context, group *core.Group, account *core.MarginAccount, openOrders []*core.OpenOrders) (*core.Valuation, error) {
	if openOrders == nil {
		var err error
		if openOrders, err = s.LoadOpenOrders(ctx, group, account); err != nil {
			return nil, err
		}
	}
	prices, err := core.FetchPriceVector(ctx, s.oracle, group, s.clk.Now(), s.cfg.MaxPriceAge)
	if err != nil {
		return nil, err
	}
	return core.Valuate(group, account, openOrders, prices)
}

// checkInitRatio rejects a state change that leaves a borrowing account
// below the initial collateral ratio.
func (s *Service) checkInitRatio(ctx context.Context, st *txState, openOrders []*core.OpenOrders) error {
	if !st.account.HasBorrows() {
		return nil
	}
	v, err := s.valuate(ctx, st.group, st.account, openOrders)
	if err != nil {
		return err
	}
	minRatio := st.group.CollateralRatio(core.Initial)
	if !v.Meets(minRatio) {
		ratio, _ := v.CollateralRatio()
		return errors.Wrapf(core.ErrCollateralRatioLimit, "ratio %s < %s", ratio.StringFixed(4), minRatio)
	}
	return nil
}

func traceId(parts ...string) uuid.UUID {
	return utils.GenUuid(parts...)
}

func versionTag(account *core.MarginAccount) string {
	return "v" + strconv.FormatInt(account.Version, 10)
}
