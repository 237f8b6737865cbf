package multicaster

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/drblury/reportflow/internal/runtime/metrics"
)

const metricsSubsystem = "multicaster"

// Metrics counts deliveries per event, subscriber and outcome.
type Metrics struct {
	deliveries *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewMetrics creates and registers the multicaster collectors on reg. A nil
// registerer uses the Prometheus default registry.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	deliveries, err := metrics.Register(reg, metrics.NewCounterVec(metricsSubsystem,
		"deliveries_total", "Event deliveries by subscriber and outcome.",
		"event", "subscriber", "outcome"))
	if err != nil {
		return nil, err
	}
	duration, err := metrics.Register(reg, metrics.NewHistogramVec(metricsSubsystem,
		"delivery_duration_seconds", "Time spent in one subscriber.", nil,
		"event", "subscriber"))
	if err != nil {
		return nil, err
	}
	return &Metrics{deliveries: deliveries, duration: duration}, nil
}

func (m *Metrics) observe(event, subscriber string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(event, subscriber, outcome(err)).Inc()
	m.duration.WithLabelValues(event, subscriber).Observe(elapsed.Seconds())
}

func outcome(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		return metrics.OutcomePanic
	}
	return metrics.OutcomeFailure
}
