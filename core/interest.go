package core

import (
	"github.com/shopspring/decimal"
)

type InterestRateConfig struct {
	OptimalUtilizationRate decimal.Decimal `json:"optimalUtilizationRate"`
	OptimalInterestRate    decimal.Decimal `json:"optimalInterestRate"`
	MaxInterestRate        decimal.Decimal `json:"maxInterestRate"`
}

func DefaultInterestRateConfig() InterestRateConfig {
	return InterestRateConfig{
		OptimalUtilizationRate: DEFAULT_OPTIMAL_UTILIZATION,
		OptimalInterestRate:    DEFAULT_OPTIMAL_RATE,
		MaxInterestRate:        DEFAULT_MAX_RATE,
	}
}

// InterestRateCurve maps a utilization in [0, 1] to a yearly borrow rate.
func (i *InterestRateConfig) InterestRateCurve(utilizationRatio decimal.Decimal) decimal.Decimal {
	optimalUr := i.OptimalUtilizationRate
	optimalIr := i.OptimalInterestRate
	maxIr := i.MaxInterestRate

	if utilizationRatio.LessThanOrEqual(optimalUr) {
		// ur / optimal_ur * optimal_ir
		return utilizationRatio.Mul(optimalIr).Div(optimalUr)
	}

	// (ur - optimal_ur) / (1 - optimal_ur) * (max_ir - optimal_ir) + optimal_ir
	oneMinusOptimalUr := ONE.Sub(optimalUr)
	maxIrMinusOptimal := maxIr.Sub(optimalIr)
	utilizationRatioMinusOptimalUr := utilizationRatio.Sub(optimalUr)

	return utilizationRatioMinusOptimalUr.Div(oneMinusOptimalUr).Mul(maxIrMinusOptimal).Add(optimalIr)
}

// BorrowRate returns the yearly borrow rate for native totals. No deposits, or
// more borrowed than deposited, saturates at the max rate.
func (i *InterestRateConfig) BorrowRate(totalDeposits, totalBorrows decimal.Decimal) decimal.Decimal {
	if !totalDeposits.IsPositive() || totalDeposits.LessThan(totalBorrows) {
		return i.MaxInterestRate
	}
	return i.InterestRateCurve(Utilization(totalDeposits, totalBorrows))
}

// DepositRate is the borrow rate scaled by utilization so that interest paid
// by borrowers equals interest earned by depositors.
func (i *InterestRateConfig) DepositRate(totalDeposits, totalBorrows decimal.Decimal) decimal.Decimal {
	if !totalDeposits.IsPositive() {
		return decimal.Zero
	}
	return i.BorrowRate(totalDeposits, totalBorrows).Mul(Utilization(totalDeposits, totalBorrows))
}

func (i *InterestRateConfig) Validate() error {
	optimalUr := i.OptimalUtilizationRate
	optimalIr := i.OptimalInterestRate
	maxIr := i.MaxInterestRate

	if optimalUr.LessThanOrEqual(decimal.Zero) || optimalUr.GreaterThanOrEqual(ONE) {
		return ErrOptimalUr
	}
	if optimalIr.LessThanOrEqual(decimal.Zero) {
		return ErrPlateauIr
	}
	if maxIr.LessThanOrEqual(decimal.Zero) {
		return ErrMaxIr
	}
	if optimalIr.GreaterThanOrEqual(maxIr) {
		return ErrPlateauGreaterThanMax
	}

	return nil
}

func Utilization(totalDeposits, totalBorrows decimal.Decimal) decimal.Decimal {
	if !totalDeposits.IsPositive() {
		return decimal.Zero
	}
	return totalBorrows.DivRound(totalDeposits, INDEX_PRECISION)
}

// CalcAccruedInterestFactor returns the simple-interest growth factor
// 1 + apr * dt / SECONDS_PER_YEAR.
func CalcAccruedInterestFactor(apr decimal.Decimal, timeDelta int64) decimal.Decimal {
	if timeDelta <= 0 {
		return ONE
	}
	interest := apr.Mul(decimal.NewFromInt(timeDelta)).DivRound(decimal.NewFromInt(SECONDS_PER_YEAR), INDEX_PRECISION)
	return ONE.Add(interest)
}
