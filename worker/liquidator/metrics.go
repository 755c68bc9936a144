package liquidator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	errorClassTransient = "transient"
	errorClassAccount   = "account"
	errorClassInvariant = "invariant"
	errorClassConfig    = "config"
)

type Metrics struct {
	Evaluated     prometheus.Counter
	Outcomes      *prometheus.CounterVec
	Liquidations  prometheus.Counter
	Drains        *prometheus.CounterVec
	Errors        *prometheus.CounterVec
	Quarantined   prometheus.Gauge
	CycleDuration prometheus.Gauge
}

// NewMetrics registers the coordinator metrics with reg. A nil reg leaves
// them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Evaluated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "margin",
			Subsystem: "liquidator",
			Name:      "accounts_evaluated_total",
			Help:      "Accounts evaluated by the scan loop",
		}),
		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "margin",
			Subsystem: "liquidator",
			Name:      "outcomes_total",
			Help:      "Per account scan outcomes",
		}, []string{"outcome"}),
		Liquidations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "margin",
			Subsystem: "liquidator",
			Name:      "liquidations_total",
			Help:      "Accounts taken over by the liquidator",
		}),
		Drains: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "margin",
			Subsystem: "liquidator",
			Name:      "drains_total",
			Help:      "Drain runs by result",
		}, []string{"result"}),
		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "margin",
			Subsystem: "liquidator",
			Name:      "errors_total",
			Help:      "Errors by class",
		}, []string{"class"}),
		Quarantined: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "margin",
			Subsystem: "liquidator",
			Name:      "quarantined_accounts",
			Help:      "Accounts waiting for manual intervention",
		}),
		CycleDuration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "margin",
			Subsystem: "liquidator",
			Name:      "last_cycle_duration_seconds",
			Help:      "Duration of the last scan cycle",
		}),
	}
}
