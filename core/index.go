package core

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type Index struct {
	BorrowIndex  decimal.Decimal `json:"borrowIndex"`
	DepositIndex decimal.Decimal `json:"depositIndex"`
	LastUpdate   int64           `json:"lastUpdate"`
}

func NewIndex(ts int64) Index {
	return Index{
		BorrowIndex:  ONE,
		DepositIndex: ONE,
		LastUpdate:   ts,
	}
}

// NativeAmount converts shares into a native amount at the asset precision,
// rounding half away from zero. Ledger and valuation both go through here.
func NativeAmount(shares, index decimal.Decimal, decimals int32) decimal.Decimal {
	return shares.Mul(index).Round(decimals)
}

// SharesFor converts a native amount into shares at the given index.
func SharesFor(native, index decimal.Decimal) decimal.Decimal {
	return native.DivRound(index, INDEX_PRECISION)
}

// Accrue moves the index to ts using the native group totals, the same
// figures the displayed rates are computed from. Nothing accrues while
// nothing is borrowed. It returns an invariant error if either index would
// decrease.
func (idx *Index) Accrue(config *InterestRateConfig, totalDeposits, totalBorrows decimal.Decimal, ts int64) error {
	timeDelta := ts - idx.LastUpdate
	if timeDelta <= 0 {
		return nil
	}
	if !totalBorrows.IsPositive() {
		idx.LastUpdate = ts
		return nil
	}

	borrowRate := config.BorrowRate(totalDeposits, totalBorrows)
	borrowFactor := CalcAccruedInterestFactor(borrowRate, timeDelta)
	borrowIndex := idx.BorrowIndex.Mul(borrowFactor).Round(INDEX_PRECISION)

	depositIndex := idx.DepositIndex
	if totalDeposits.IsPositive() {
		// interest paid on borrows is spread over deposits
		growth := borrowFactor.Sub(ONE).Mul(Utilization(totalDeposits, totalBorrows))
		depositIndex = idx.DepositIndex.Mul(ONE.Add(growth)).Round(INDEX_PRECISION)
	}

	if borrowIndex.LessThan(idx.BorrowIndex) || depositIndex.LessThan(idx.DepositIndex) {
		return errors.Wrapf(ErrIndexDecreased, "accrual from %d to %d: borrow %s -> %s, deposit %s -> %s",
			idx.LastUpdate, ts, idx.BorrowIndex, borrowIndex, idx.DepositIndex, depositIndex)
	}

	idx.BorrowIndex = borrowIndex
	idx.DepositIndex = depositIndex
	idx.LastUpdate = ts
	return nil
}
