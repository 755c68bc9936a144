package liquidator

// DrainState is where an account stands in the liquidation state machine.
type DrainState uint8

const (
	Scanning DrainState = iota
	Evaluating
	Healthy
	Liquidating
	CancelingOrders
	SettlingFunds
	Rebalancing
	WithdrawingSurplus
)

func (s DrainState) String() string {
	switch s {
	case Scanning:
		return "scanning"
	case Evaluating:
		return "evaluating"
	case Healthy:
		return "healthy"
	case Liquidating:
		return "liquidating"
	case CancelingOrders:
		return "canceling_orders"
	case SettlingFunds:
		return "settling_funds"
	case Rebalancing:
		return "rebalancing"
	case WithdrawingSurplus:
		return "withdrawing_surplus"
	default:
		return "unknown"
	}
}

// Outcome is what one scan did with one account.
type Outcome uint8

const (
	OutcomeHealthy Outcome = iota
	OutcomeLiquidated
	OutcomeDraining
	OutcomeDrained
	OutcomeInsolvent
	OutcomeSkipped
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeHealthy:
		return "healthy"
	case OutcomeLiquidated:
		return "liquidated"
	case OutcomeDraining:
		return "drain-in-progress"
	case OutcomeDrained:
		return "drained"
	case OutcomeInsolvent:
		return "insolvent"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}
