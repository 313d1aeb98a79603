package gdao

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Unit-of-work outcomes
const (
	OutcomeCommit   = "commit"
	OutcomeRollback = "rollback"
	OutcomePanic    = "panic"
	OutcomeClosed   = "closed"
)

// Metrics records unit-of-work outcomes. A nil *Metrics records nothing.
type Metrics struct {
	units    *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg, if non-nil
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gdao",
			Name:      "unit_of_work_total",
			Help:      "Units of work by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gdao",
			Name:      "unit_of_work_duration_seconds",
			Help:      "Duration of units of work, from session open to release.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.units, m.duration)
	}
	return m
}

// Units returns the outcome counter
func (m *Metrics) Units() *prometheus.CounterVec { return m.units }

func (m *Metrics) observe(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.units.WithLabelValues(outcome).Inc()
	m.duration.Observe(d.Seconds())
}
