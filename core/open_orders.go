package core

import (
	"github.com/shopspring/decimal"
)

// OpenOrders is a snapshot of the venue account holding one margin account's
// orders and unsettled funds on one market.
type OpenOrders struct {
	Id         string          `json:"id"`
	Market     string          `json:"market"`
	Owner      string          `json:"owner"`
	BaseFree   decimal.Decimal `json:"baseFree"`
	BaseTotal  decimal.Decimal `json:"baseTotal"`
	QuoteFree  decimal.Decimal `json:"quoteFree"`
	QuoteTotal decimal.Decimal `json:"quoteTotal"`
	OrderIds   []string        `json:"orderIds"`
}

func (o *OpenOrders) HasOrders() bool {
	return len(o.OrderIds) > 0
}

// HasUnsettled reports whether matched or released funds wait for SettleFunds.
func (o *OpenOrders) HasUnsettled() bool {
	return o.BaseFree.IsPositive() || o.QuoteFree.IsPositive()
}

func (o *OpenOrders) Clone() *OpenOrders {
	clone := *o
	clone.OrderIds = append([]string(nil), o.OrderIds...)
	return &clone
}
