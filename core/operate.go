package core

import (
	"context"
	"database/sql/driver"
	"encoding/json"

	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type (
	OperateStore interface {
		CreateOperate(ctx context.Context, operate *Operate) error
		ListOperates(ctx context.Context, accountId uuid.UUID, createdBeforeAt, limit int64) ([]*Operate, error)
	}

	Operate struct {
		Id        uint64        `json:"id" gorm:"primaryKey;autoIncrement"`
		GroupId   uuid.UUID     `json:"groupId" gorm:"type:varchar(36);index"`
		AccountId uuid.UUID     `json:"accountId" gorm:"type:varchar(36);index:idx_operates_account"`
		Actor     string        `json:"actor" gorm:"size:128"`
		Op        ActionType    `json:"op"`
		Extra     OperateDetail `json:"extra" gorm:"type:text"`
		CreatedAt int64         `json:"createdAt" gorm:"index:idx_operates_account"`
	}

	OperateDetail struct {
		Type    ActionType     `json:"type"`
		Actions []ActionDetail `json:"actions"`
	}

	ActionDetail struct {
		ActionType ActionType      `json:"actionType"`
		Asset      string          `json:"asset,omitempty"`
		Market     string          `json:"market,omitempty"`
		Amount     decimal.Decimal `json:"amount"`
		Ref        string          `json:"ref,omitempty"`
	}
)

type ActionType uint8

const (
	ActionCreateAccount ActionType = iota + 1
	ActionDeposit
	ActionWithdraw
	ActionBorrow
	ActionSettleBorrow
	ActionLiquidate
	ActionPlaceOrder
	ActionSettleFunds
	ActionChangeBorrowLimit
	ActionInitGroup
)

func (t ActionType) String() string {
	switch t {
	case ActionCreateAccount:
		return "create_account"
	case ActionDeposit:
		return "deposit"
	case ActionWithdraw:
		return "withdraw"
	case ActionBorrow:
		return "borrow"
	case ActionSettleBorrow:
		return "settle_borrow"
	case ActionLiquidate:
		return "liquidate"
	case ActionPlaceOrder:
		return "place_order"
	case ActionSettleFunds:
		return "settle_funds"
	case ActionChangeBorrowLimit:
		return "change_borrow_limit"
	case ActionInitGroup:
		return "init_group"
	default:
		return "unknown"
	}
}

func NewOperate(clk clock.Clock, groupId, accountId uuid.UUID, actor string, typ ActionType, actions ...ActionDetail) *Operate {
	return &Operate{
		GroupId:   groupId,
		AccountId: accountId,
		Actor:     actor,
		Op:        typ,
		Extra:     OperateDetail{Type: typ, Actions: actions},
		CreatedAt: clk.Now().Unix(),
	}
}

func (j OperateDetail) Value() (driver.Value, error) {
	valueString, err := json.Marshal(j)
	return string(valueString), err
}

func (j *OperateDetail) Scan(value any) error {
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.Errorf("unsupported operate detail type %T", value)
	}
	return json.Unmarshal(b, j)
}
