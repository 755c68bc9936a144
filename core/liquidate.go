package core

import (
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type LiquidateResult struct {
	AccountId     uuid.UUID         `json:"accountId"`
	PreviousOwner string            `json:"previousOwner"`
	Liquidator    string            `json:"liquidator"`
	Deposits      []decimal.Decimal `json:"deposits"`

	PreValuation  *Valuation      `json:"preValuation"`
	PostValuation *Valuation      `json:"postValuation"`
	PreRatio      decimal.Decimal `json:"preRatio"`
	PostRatio     decimal.Decimal `json:"postRatio"`

	// Insolvent is set when assets were worth less than liabilities before
	// the liquidator stepped in.
	Insolvent bool `json:"insolvent"`
}
