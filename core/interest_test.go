package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestBorrowRate(t *testing.T) {
	config := DefaultInterestRateConfig()

	tests := []struct {
		name     string
		deposits decimal.Decimal
		borrows  decimal.Decimal
		expected decimal.Decimal
	}{
		{name: "no borrows", deposits: d("1000"), borrows: decimal.Zero, expected: decimal.Zero},
		{name: "half of optimal", deposits: d("1000"), borrows: d("350"), expected: d("0.05")},
		{name: "at optimal", deposits: d("1000"), borrows: d("700"), expected: d("0.1")},
		{name: "above optimal", deposits: d("1000"), borrows: d("850"), expected: d("0.55")},
		{name: "fully used", deposits: d("1000"), borrows: d("1000"), expected: d("1")},
		{name: "no deposits", deposits: decimal.Zero, borrows: decimal.Zero, expected: d("1")},
		{name: "borrows above deposits", deposits: d("100"), borrows: d("101"), expected: d("1")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := config.BorrowRate(tt.deposits, tt.borrows)
			assert.True(t, result.Equal(tt.expected), "expected %s, got %s", tt.expected, result)
		})
	}
}

func TestDepositRate(t *testing.T) {
	config := DefaultInterestRateConfig()

	// 0.1 * 0.7
	assert.True(t, config.DepositRate(d("1000"), d("700")).Equal(d("0.07")))
	assert.True(t, config.DepositRate(decimal.Zero, decimal.Zero).IsZero())
}

func TestInterestRateConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		config InterestRateConfig
		err    error
	}{
		{name: "default", config: DefaultInterestRateConfig()},
		{
			name:   "optimal utilization of one",
			config: InterestRateConfig{OptimalUtilizationRate: ONE, OptimalInterestRate: d("0.1"), MaxInterestRate: ONE},
			err:    ErrOptimalUr,
		},
		{
			name:   "zero optimal rate",
			config: InterestRateConfig{OptimalUtilizationRate: d("0.7"), OptimalInterestRate: decimal.Zero, MaxInterestRate: ONE},
			err:    ErrPlateauIr,
		},
		{
			name:   "optimal above max",
			config: InterestRateConfig{OptimalUtilizationRate: d("0.7"), OptimalInterestRate: d("2"), MaxInterestRate: ONE},
			err:    ErrPlateauGreaterThanMax,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
			assert.True(t, IsConfigError(err))
		})
	}
}

func TestCalcAccruedInterestFactor(t *testing.T) {
	assert.True(t, CalcAccruedInterestFactor(d("0.1"), SECONDS_PER_YEAR).Equal(d("1.1")))
	assert.True(t, CalcAccruedInterestFactor(d("0.1"), SECONDS_PER_YEAR/2).Equal(d("1.05")))
	assert.True(t, CalcAccruedInterestFactor(d("0.1"), 0).Equal(ONE))
	assert.True(t, CalcAccruedInterestFactor(d("0.1"), -10).Equal(ONE))
}
