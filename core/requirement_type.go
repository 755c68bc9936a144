package core

import (
	"github.com/shopspring/decimal"
)

type RequirementType uint8

const (
	Initial RequirementType = iota
	Maintenance
	Equity
)

func (rt RequirementType) String() string {
	switch rt {
	case Initial:
		return "initial"
	case Maintenance:
		return "maintenance"
	case Equity:
		return "equity"
	default:
		return "unknown"
	}
}

// CollateralRatio is the minimum assets/liabilities ratio for the requirement.
func (g *Group) CollateralRatio(rt RequirementType) decimal.Decimal {
	switch rt {
	case Initial:
		return g.InitCollRatio
	case Maintenance:
		return g.MaintCollRatio
	case Equity:
		return ONE
	default:
		return g.InitCollRatio
	}
}
