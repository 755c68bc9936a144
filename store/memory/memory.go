// Package memory keeps the ledger in process memory. Transactions run one at
// a time against a deep copy of the state that replaces the live state only
// when the transaction function succeeds.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/DomeLiquid/margin/core"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
)

type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	st   *state
}

func New() *Store {
	return &Store{st: newState()}
}

var _ core.LedgerStore = (*Store)(nil)

func (s *Store) Transaction(ctx context.Context, fn func(ctx context.Context, tx core.LedgerStore) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	working := s.st.clone()
	s.mu.RUnlock()

	if err := fn(ctx, &txStore{state: working}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.st = working
	s.mu.Unlock()
	return nil
}

func (s *Store) read() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st
}

func (s *Store) write(fn func(st *state) error) error {
	return s.Transaction(context.Background(), func(_ context.Context, tx core.LedgerStore) error {
		return fn(tx.(*txStore).state)
	})
}

func (s *Store) GetGroupById(ctx context.Context, groupId uuid.UUID) (*core.Group, error) {
	return s.read().GetGroupById(ctx, groupId)
}

func (s *Store) ListGroups(ctx context.Context) ([]*core.Group, error) {
	return s.read().ListGroups(ctx)
}

func (s *Store) CreateGroup(ctx context.Context, group *core.Group) error {
	return s.write(func(st *state) error { return st.CreateGroup(ctx, group) })
}

func (s *Store) UpdateGroup(ctx context.Context, group *core.Group) error {
	return s.write(func(st *state) error { return st.UpdateGroup(ctx, group) })
}

func (s *Store) GetAccountById(ctx context.Context, accountId uuid.UUID) (*core.MarginAccount, error) {
	return s.read().GetAccountById(ctx, accountId)
}

func (s *Store) ListAccountsByGroup(ctx context.Context, groupId uuid.UUID) ([]*core.MarginAccount, error) {
	return s.read().ListAccountsByGroup(ctx, groupId)
}

func (s *Store) ListAccountsByOwner(ctx context.Context, groupId uuid.UUID, owner string) ([]*core.MarginAccount, error) {
	return s.read().ListAccountsByOwner(ctx, groupId, owner)
}

func (s *Store) CreateAccount(ctx context.Context, account *core.MarginAccount) error {
	return s.write(func(st *state) error { return st.CreateAccount(ctx, account) })
}

func (s *Store) UpdateAccount(ctx context.Context, account *core.MarginAccount) error {
	return s.write(func(st *state) error { return st.UpdateAccount(ctx, account) })
}

func (s *Store) CreateOperate(ctx context.Context, operate *core.Operate) error {
	return s.write(func(st *state) error { return st.CreateOperate(ctx, operate) })
}

func (s *Store) ListOperates(ctx context.Context, accountId uuid.UUID, createdBeforeAt, limit int64) ([]*core.Operate, error) {
	return s.read().ListOperates(ctx, accountId, createdBeforeAt, limit)
}

func (s *Store) CreateTransfer(ctx context.Context, transfer *core.Transfer) error {
	return s.write(func(st *state) error { return st.CreateTransfer(ctx, transfer) })
}

func (s *Store) ListTransfers(ctx context.Context, accountId uuid.UUID) ([]*core.Transfer, error) {
	return s.read().ListTransfers(ctx, accountId)
}

type txStore struct {
	*state
}

// Transaction inside a transaction joins the outer one.
func (t *txStore) Transaction(ctx context.Context, fn func(ctx context.Context, tx core.LedgerStore) error) error {
	return fn(ctx, t)
}

// state is never mutated once published; readers may keep using a stale
// pointer without locks.
type state struct {
	groups    map[uuid.UUID]*core.Group
	accounts  map[uuid.UUID]*core.MarginAccount
	operates  []*core.Operate
	transfers []*core.Transfer
}

func newState() *state {
	return &state{
		groups:   map[uuid.UUID]*core.Group{},
		accounts: map[uuid.UUID]*core.MarginAccount{},
	}
}

func (st *state) clone() *state {
	c := &state{
		groups:    make(map[uuid.UUID]*core.Group, len(st.groups)),
		accounts:  make(map[uuid.UUID]*core.MarginAccount, len(st.accounts)),
		operates:  append([]*core.Operate(nil), st.operates...),
		transfers: append([]*core.Transfer(nil), st.transfers...),
	}
	for id, g := range st.groups {
		c.groups[id] = g
	}
	for id, a := range st.accounts {
		c.accounts[id] = a
	}
	return c
}

func (st *state) GetGroupById(_ context.Context, groupId uuid.UUID) (*core.Group, error) {
	g, ok := st.groups[groupId]
	if !ok {
		return nil, errors.Wrapf(core.ErrGroupNotFound, "%s", groupId)
	}
	return g.Clone(), nil
}

func (st *state) ListGroups(_ context.Context) ([]*core.Group, error) {
	groups := make([]*core.Group, 0, len(st.groups))
	for _, g := range st.groups {
		groups = append(groups, g.Clone())
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups, nil
}

func (st *state) CreateGroup(_ context.Context, group *core.Group) error {
	if _, ok := st.groups[group.Id]; ok {
		return errors.Errorf("group %s already exists", group.Id)
	}
	group.Version = 1
	st.groups[group.Id] = group.Clone()
	return nil
}

func (st *state) UpdateGroup(_ context.Context, group *core.Group) error {
	stored, ok := st.groups[group.Id]
	if !ok {
		return errors.Wrapf(core.ErrGroupNotFound, "%s", group.Id)
	}
	if stored.Version != group.Version {
		return errors.Wrapf(core.ErrVersionConflict, "group %s at %d, have %d", group.Id, stored.Version, group.Version)
	}
	group.Version++
	st.groups[group.Id] = group.Clone()
	return nil
}

func (st *state) GetAccountById(_ context.Context, accountId uuid.UUID) (*core.MarginAccount, error) {
	a, ok := st.accounts[accountId]
	if !ok {
		return nil, errors.Wrapf(core.ErrAccountNotFound, "%s", accountId)
	}
	return a.Clone(), nil
}

func (st *state) ListAccountsByGroup(_ context.Context, groupId uuid.UUID) ([]*core.MarginAccount, error) {
	return st.filterAccounts(func(a *core.MarginAccount) bool { return a.GroupId == groupId }), nil
}

func (st *state) ListAccountsByOwner(_ context.Context, groupId uuid.UUID, owner string) ([]*core.MarginAccount, error) {
	return st.filterAccounts(func(a *core.MarginAccount) bool { return a.GroupId == groupId && a.Owner == owner }), nil
}

func (st *state) filterAccounts(keep func(a *core.MarginAccount) bool) []*core.MarginAccount {
	accounts := []*core.MarginAccount{}
	for _, a := range st.accounts {
		if keep(a) {
			accounts = append(accounts, a.Clone())
		}
	}
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].CreatedAt != accounts[j].CreatedAt {
			return accounts[i].CreatedAt < accounts[j].CreatedAt
		}
		return accounts[i].Id.String() < accounts[j].Id.String()
	})
	return accounts
}

func (st *state) CreateAccount(_ context.Context, account *core.MarginAccount) error {
	if _, ok := st.accounts[account.Id]; ok {
		return errors.Wrapf(core.ErrAccountExists, "%s", account.Id)
	}
	account.Version = 1
	st.accounts[account.Id] = account.Clone()
	return nil
}

func (st *state) UpdateAccount(_ context.Context, account *core.MarginAccount) error {
	stored, ok := st.accounts[account.Id]
	if !ok {
		return errors.Wrapf(core.ErrAccountNotFound, "%s", account.Id)
	}
	if stored.Version != account.Version {
		return errors.Wrapf(core.ErrVersionConflict, "account %s at %d, have %d", account.Id, stored.Version, account.Version)
	}
	account.Version++
	st.accounts[account.Id] = account.Clone()
	return nil
}

func (st *state) CreateOperate(_ context.Context, operate *core.Operate) error {
	clone := *operate
	clone.Id = uint64(len(st.operates) + 1)
	operate.Id = clone.Id
	st.operates = append(st.operates, &clone)
	return nil
}

// ListOperates returns the newest operations first.
func (st *state) ListOperates(_ context.Context, accountId uuid.UUID, createdBeforeAt, limit int64) ([]*core.Operate, error) {
	operates := []*core.Operate{}
	for i := len(st.operates) - 1; i >= 0; i-- {
		op := st.operates[i]
		if op.AccountId != accountId || (createdBeforeAt > 0 && op.CreatedAt >= createdBeforeAt) {
			continue
		}
		clone := *op
		operates = append(operates, &clone)
		if limit > 0 && int64(len(operates)) >= limit {
			break
		}
	}
	return operates, nil
}

func (st *state) CreateTransfer(_ context.Context, transfer *core.Transfer) error {
	for _, t := range st.transfers {
		if t.TraceId == transfer.TraceId {
			return nil
		}
	}
	clone := *transfer
	st.transfers = append(st.transfers, &clone)
	return nil
}

func (st *state) ListTransfers(_ context.Context, accountId uuid.UUID) ([]*core.Transfer, error) {
	transfers := []*core.Transfer{}
	for _, t := range st.transfers {
		if t.AccountId == accountId {
			clone := *t
			transfers = append(transfers, &clone)
		}
	}
	return transfers, nil
}
