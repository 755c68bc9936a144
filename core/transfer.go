package core

import (
	"context"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type (
	TransferStore interface {
		CreateTransfer(ctx context.Context, transfer *Transfer) error
		ListTransfers(ctx context.Context, accountId uuid.UUID) ([]*Transfer, error)
	}

	// Transfer records funds leaving a vault towards an external wallet. The
	// wallet side picks these up by trace id.
	Transfer struct {
		TraceId   uuid.UUID       `json:"traceId" gorm:"type:varchar(36);primaryKey"`
		GroupId   uuid.UUID       `json:"groupId" gorm:"type:varchar(36);index"`
		AccountId uuid.UUID       `json:"accountId" gorm:"type:varchar(36);index"`
		Asset     string          `json:"asset" gorm:"size:64"`
		Amount    decimal.Decimal `json:"amount" gorm:"type:varchar(96)"`
		Opponent  string          `json:"opponent" gorm:"size:128"`
		CreatedAt int64           `json:"createdAt"`
	}
)
