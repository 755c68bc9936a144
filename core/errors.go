package core

import (
	"context"

	"github.com/pkg/errors"
)

// ledger errors, named after the error codes of the margin program
var (
	ErrInvalidAmount            = errors.New("amount must be positive")
	ErrInsufficientFunds        = errors.New("quantity requested is above the available balance")
	ErrBorrowLimitExceeded      = errors.New("borrow limit exceeded")
	ErrCollateralRatioLimit     = errors.New("collateral ratio is below the initial collateral ratio")
	ErrNotLiquidatable          = errors.New("account is not liquidatable")
	ErrLiquidatorUnderfunded    = errors.New("liquidator deposits do not restore the initial collateral ratio")
	ErrInvalidOpenOrdersAccount = errors.New("invalid open orders account")
	ErrInvalidAccountOwner      = errors.New("invalid margin account owner")
	ErrInvalidGroupOwner        = errors.New("invalid group owner")
	ErrBelowMinLot              = errors.New("order size or price is below the venue minimum")
	ErrAccountExists            = errors.New("margin account already exists")
	ErrAccountNotFound          = errors.New("margin account not found")
	ErrGroupNotFound            = errors.New("group not found")
)

// configuration errors, fatal at startup
var (
	ErrInvalidConfig         = errors.New("invalid config")
	ErrUnknownAsset          = errors.New("unknown asset")
	ErrInvalidMarket         = errors.New("invalid market")
	ErrInvalidGroupSize      = errors.New("invalid group size")
	ErrOptimalUr             = errors.New("optimal utilization rate must be in (0, 1)")
	ErrPlateauIr             = errors.New("optimal interest rate must be positive")
	ErrMaxIr                 = errors.New("max interest rate must be positive")
	ErrPlateauGreaterThanMax = errors.New("optimal interest rate must be below max interest rate")
	ErrCollateralRatios      = errors.New("collateral ratios must satisfy 1 <= maint <= init")
)

// transient by nature
var (
	ErrStalePrice      = errors.New("stale price")
	ErrMissingPrice    = errors.New("missing price")
	ErrInvalidPrice    = errors.New("non-positive price")
	ErrVersionConflict = errors.New("version conflict")
)

var (
	ErrInvariant       = errors.New("invariant violation")
	ErrIndexDecreased  = errors.Wrap(ErrInvariant, "index decreased")
	ErrNegativeBalance = errors.Wrap(ErrInvariant, "negative balance")
)

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks err as safe to retry after re-fetching state.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var t *transientError
	if errors.As(err, &t) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrStalePrice) ||
		errors.Is(err, ErrMissingPrice) ||
		errors.Is(err, ErrInvalidPrice) ||
		errors.Is(err, ErrVersionConflict)
}

func IsInvariant(err error) bool {
	return errors.Is(err, ErrInvariant)
}

func IsConfigError(err error) bool {
	for _, target := range []error{
		ErrInvalidConfig, ErrUnknownAsset, ErrInvalidMarket, ErrInvalidGroupSize,
		ErrOptimalUr, ErrPlateauIr, ErrMaxIr, ErrPlateauGreaterThanMax, ErrCollateralRatios,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func Invariantf(format string, args ...any) error {
	return errors.Wrapf(ErrInvariant, format, args...)
}
