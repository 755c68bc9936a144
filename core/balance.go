package core

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// AccountWrapper applies native balance changes to an account and keeps the
// group totals in step with it.
type AccountWrapper struct {
	Group   *Group
	Account *MarginAccount
}

func NewAccountWrapper(group *Group, account *MarginAccount) *AccountWrapper {
	return &AccountWrapper{Group: group, Account: account}
}

func (w *AccountWrapper) NativeDeposit(asset int) decimal.Decimal {
	return w.Group.NativeDeposit(asset, w.Account.Deposits[asset])
}

func (w *AccountWrapper) NativeBorrow(asset int) decimal.Decimal {
	return w.Group.NativeBorrow(asset, w.Account.Borrows[asset])
}

func (w *AccountWrapper) ChangeDepositShares(asset int, shares decimal.Decimal) error {
	deposits := w.Account.Deposits[asset].Add(shares)
	total := w.Group.TotalDeposits[asset].Add(shares)
	if deposits.IsNegative() || total.IsNegative() {
		return errors.Wrapf(ErrNegativeBalance, "deposit shares of %s", w.Group.Assets[asset])
	}
	w.Account.Deposits[asset] = deposits
	w.Group.TotalDeposits[asset] = total
	return nil
}

func (w *AccountWrapper) ChangeBorrowShares(asset int, shares decimal.Decimal) error {
	borrows := w.Account.Borrows[asset].Add(shares)
	total := w.Group.TotalBorrows[asset].Add(shares)
	if borrows.IsNegative() || total.IsNegative() {
		return errors.Wrapf(ErrNegativeBalance, "borrow shares of %s", w.Group.Assets[asset])
	}
	w.Account.Borrows[asset] = borrows
	w.Group.TotalBorrows[asset] = total
	return nil
}

// IncreaseDeposit credits a native amount to the account deposits.
func (w *AccountWrapper) IncreaseDeposit(asset int, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	return w.ChangeDepositShares(asset, SharesFor(amount, w.Group.Indexes[asset].DepositIndex))
}

// DecreaseDeposit removes a native amount from the account deposits. Taking the
// whole native balance removes every share so no dust is left behind.
func (w *AccountWrapper) DecreaseDeposit(asset int, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	available := w.NativeDeposit(asset)
	if amount.GreaterThan(available) {
		return errors.Wrapf(ErrInsufficientFunds, "deposit of %s: %s > %s", w.Group.Assets[asset], amount, available)
	}

	shares := w.Account.Deposits[asset]
	if amount.LessThan(available) {
		shares = decimal.Min(shares, SharesFor(amount, w.Group.Indexes[asset].DepositIndex))
	}
	return w.ChangeDepositShares(asset, shares.Neg())
}

func (w *AccountWrapper) IncreaseBorrow(asset int, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	return w.ChangeBorrowShares(asset, SharesFor(amount, w.Group.Indexes[asset].BorrowIndex))
}

func (w *AccountWrapper) DecreaseBorrow(asset int, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	owed := w.NativeBorrow(asset)
	if amount.GreaterThan(owed) {
		return errors.Wrapf(ErrInsufficientFunds, "borrow of %s: %s > %s", w.Group.Assets[asset], amount, owed)
	}

	shares := w.Account.Borrows[asset]
	if amount.LessThan(owed) {
		shares = decimal.Min(shares, SharesFor(amount, w.Group.Indexes[asset].BorrowIndex))
	}
	return w.ChangeBorrowShares(asset, shares.Neg())
}

// CheckBorrowLimit rejects a native borrow above the per-asset limit.
func (w *AccountWrapper) CheckBorrowLimit(asset int) error {
	borrowed := w.NativeBorrow(asset)
	limit := w.Group.BorrowLimits[asset]
	if borrowed.GreaterThan(limit) {
		return errors.Wrapf(ErrBorrowLimitExceeded, "%s: %s > %s", w.Group.Assets[asset], borrowed, limit)
	}
	return nil
}

// SettleBorrow offsets up to amount of the borrow with deposits of the same
// asset. A non-positive amount settles as much as possible.
func (w *AccountWrapper) SettleBorrow(asset int, amount decimal.Decimal) (decimal.Decimal, error) {
	settle := decimal.Min(w.NativeBorrow(asset), w.NativeDeposit(asset))
	if amount.IsPositive() {
		settle = decimal.Min(settle, amount)
	}
	if !settle.IsPositive() {
		return decimal.Zero, nil
	}
	if err := w.DecreaseBorrow(asset, settle); err != nil {
		return decimal.Zero, err
	}
	if err := w.DecreaseDeposit(asset, settle); err != nil {
		return decimal.Zero, err
	}
	return settle, nil
}
