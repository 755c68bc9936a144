package core

import (
	"github.com/shopspring/decimal"
)

const (
	SECONDS_PER_YEAR = 31_536_000

	// digits kept after the decimal point by share and index math, about 79 bits
	INDEX_PRECISION int32 = 24
)

var (
	ONE = decimal.NewFromInt(1)

	ZERO_AMOUNT_THRESHOLD = decimal.Zero

	DEFAULT_OPTIMAL_UTILIZATION = decimal.NewFromFloat(0.7)
	DEFAULT_OPTIMAL_RATE        = decimal.NewFromFloat(0.1)
	DEFAULT_MAX_RATE            = ONE

	LIQUIDATION_SAFETY_MARGIN = decimal.NewFromFloat(1.01)
	REBALANCE_ASK_FACTOR      = decimal.NewFromFloat(0.95)
	REBALANCE_BID_FACTOR      = decimal.NewFromFloat(1.05)
	WITHDRAW_BUFFER           = decimal.NewFromFloat(0.999)
)
