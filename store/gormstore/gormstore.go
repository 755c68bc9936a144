// Package gormstore persists the ledger with gorm on postgres or sqlite.
// Group and account state is stored as a JSON document next to the columns
// used for lookups, and every update is guarded by a version column.
package gormstore

import (
	"context"

	"github.com/DomeLiquid/margin/core"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type Config struct {
	Driver string `json:"driver"`
	Dsn    string `json:"dsn"`
	Debug  bool   `json:"debug"`
}

func Open(cfg Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.Dsn)
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(cfg.Dsn)
	default:
		return nil, errors.Wrapf(core.ErrInvalidConfig, "database driver %q", cfg.Driver)
	}

	level := logger.Silent
	if cfg.Debug {
		level = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(level)})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", cfg.Driver)
	}
	return db, nil
}

type groupRow struct {
	Id        string     `gorm:"size:36;primaryKey"`
	Name      string     `gorm:"size:64;uniqueIndex"`
	State     core.Group `gorm:"serializer:json;type:text"`
	Version   int64
	UpdatedAt int64
}

func (groupRow) TableName() string { return "groups" }

type accountRow struct {
	Id        string             `gorm:"size:36;primaryKey"`
	GroupId   string             `gorm:"size:36;index:idx_accounts_owner"`
	Owner     string             `gorm:"size:128;index:idx_accounts_owner"`
	State     core.MarginAccount `gorm:"serializer:json;type:text"`
	Version   int64
	CreatedAt int64
	UpdatedAt int64
}

func (accountRow) TableName() string { return "margin_accounts" }

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&groupRow{}, &accountRow{}, &core.Operate{}, &core.Transfer{})
}

type Store struct {
	db *gorm.DB
	tx bool
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

var _ core.LedgerStore = (*Store)(nil)

func (s *Store) Transaction(ctx context.Context, fn func(ctx context.Context, tx core.LedgerStore) error) error {
	if s.tx {
		return fn(ctx, s)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &Store{db: tx, tx: true})
	})
}

// locking takes row locks inside a transaction; sqlite ignores them and
// serializes writers on its own.
func (s *Store) locking(ctx context.Context) *gorm.DB {
	db := s.db.WithContext(ctx)
	if s.tx {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

func (s *Store) GetGroupById(ctx context.Context, groupId uuid.UUID) (*core.Group, error) {
	var row groupRow
	if err := s.locking(ctx).Where("id = ?", groupId.String()).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(core.ErrGroupNotFound, "%s", groupId)
		}
		return nil, core.Transient(errors.Wrap(err, "get group"))
	}
	return row.group(), nil
}

func (s *Store) ListGroups(ctx context.Context) ([]*core.Group, error) {
	var rows []groupRow
	if err := s.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, core.Transient(errors.Wrap(err, "list groups"))
	}
	groups := make([]*core.Group, 0, len(rows))
	for i := range rows {
		groups = append(groups, rows[i].group())
	}
	return groups, nil
}

func (s *Store) CreateGroup(ctx context.Context, group *core.Group) error {
	group.Version = 1
	row := groupRow{Id: group.Id.String(), Name: group.Name, State: *group, Version: group.Version, UpdatedAt: group.UpdatedAt}
	return errors.Wrap(s.db.WithContext(ctx).Create(&row).Error, "create group")
}

func (s *Store) UpdateGroup(ctx context.Context, group *core.Group) error {
	next := group.Clone()
	next.Version = group.Version + 1

	tx := s.db.WithContext(ctx).Model(&groupRow{}).
		Where("id = ? AND version = ?", group.Id.String(), group.Version).
		Select("state", "version", "updated_at").
		Updates(&groupRow{State: *next, Version: next.Version, UpdatedAt: next.UpdatedAt})
	if tx.Error != nil {
		return core.Transient(errors.Wrap(tx.Error, "update group"))
	}
	if tx.RowsAffected == 0 {
		return errors.Wrapf(core.ErrVersionConflict, "group %s at version %d", group.Id, group.Version)
	}
	group.Version = next.Version
	return nil
}

func (s *Store) GetAccountById(ctx context.Context, accountId uuid.UUID) (*core.MarginAccount, error) {
	var row accountRow
	if err := s.locking(ctx).Where("id = ?", accountId.String()).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(core.ErrAccountNotFound, "%s", accountId)
		}
		return nil, core.Transient(errors.Wrap(err, "get account"))
	}
	return row.account(), nil
}

func (s *Store) ListAccountsByGroup(ctx context.Context, groupId uuid.UUID) ([]*core.MarginAccount, error) {
	return s.listAccounts(s.db.WithContext(ctx).Where("group_id = ?", groupId.String()))
}

func (s *Store) ListAccountsByOwner(ctx context.Context, groupId uuid.UUID, owner string) ([]*core.MarginAccount, error) {
	return s.listAccounts(s.db.WithContext(ctx).Where("group_id = ? AND owner = ?", groupId.String(), owner))
}

func (s *Store) listAccounts(query *gorm.DB) ([]*core.MarginAccount, error) {
	var rows []accountRow
	if err := query.Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, core.Transient(errors.Wrap(err, "list accounts"))
	}
	accounts := make([]*core.MarginAccount, 0, len(rows))
	for i := range rows {
		accounts = append(accounts, rows[i].account())
	}
	return accounts, nil
}

func (s *Store) CreateAccount(ctx context.Context, account *core.MarginAccount) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&accountRow{}).Where("id = ?", account.Id.String()).Count(&count).Error; err != nil {
		return core.Transient(errors.Wrap(err, "count accounts"))
	}
	if count > 0 {
		return errors.Wrapf(core.ErrAccountExists, "%s", account.Id)
	}

	account.Version = 1
	row := accountRow{
		Id:        account.Id.String(),
		GroupId:   account.GroupId.String(),
		Owner:     account.Owner,
		State:     *account,
		Version:   account.Version,
		CreatedAt: account.CreatedAt,
		UpdatedAt: account.UpdatedAt,
	}
	return errors.Wrap(s.db.WithContext(ctx).Create(&row).Error, "create account")
}

func (s *Store) UpdateAccount(ctx context.Context, account *core.MarginAccount) error {
	next := account.Clone()
	next.Version = account.Version + 1

	// owner is a column as well as part of the document: liquidation moves it
	tx := s.db.WithContext(ctx).Model(&accountRow{}).
		Where("id = ? AND version = ?", account.Id.String(), account.Version).
		Select("owner", "state", "version", "updated_at").
		Updates(&accountRow{Owner: next.Owner, State: *next, Version: next.Version, UpdatedAt: next.UpdatedAt})
	if tx.Error != nil {
		return core.Transient(errors.Wrap(tx.Error, "update account"))
	}
	if tx.RowsAffected == 0 {
		return errors.Wrapf(core.ErrVersionConflict, "account %s at version %d", account.Id, account.Version)
	}
	account.Version = next.Version
	return nil
}

func (s *Store) CreateOperate(ctx context.Context, operate *core.Operate) error {
	return errors.Wrap(s.db.WithContext(ctx).Create(operate).Error, "create operate")
}

func (s *Store) ListOperates(ctx context.Context, accountId uuid.UUID, createdBeforeAt, limit int64) ([]*core.Operate, error) {
	query := s.db.WithContext(ctx).Where("account_id = ?", accountId)
	if createdBeforeAt > 0 {
		query = query.Where("created_at < ?", createdBeforeAt)
	}
	if limit > 0 {
		query = query.Limit(int(limit))
	}

	var operates []*core.Operate
	if err := query.Order("id DESC").Find(&operates).Error; err != nil {
		return nil, core.Transient(errors.Wrap(err, "list operates"))
	}
	return operates, nil
}

func (s *Store) CreateTransfer(ctx context.Context, transfer *core.Transfer) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(transfer).Error
	return errors.Wrap(err, "create transfer")
}

func (s *Store) ListTransfers(ctx context.Context, accountId uuid.UUID) ([]*core.Transfer, error) {
	var transfers []*core.Transfer
	if err := s.db.WithContext(ctx).Where("account_id = ?", accountId).Order("created_at").Find(&transfers).Error; err != nil {
		return nil, core.Transient(errors.Wrap(err, "list transfers"))
	}
	return transfers, nil
}

func (r *groupRow) group() *core.Group {
	g := r.State.Clone()
	g.Version = r.Version
	return g
}

func (r *accountRow) account() *core.MarginAccount {
	a := r.State.Clone()
	a.Version = r.Version
	return a
}
