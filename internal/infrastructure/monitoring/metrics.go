package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics of the remote host. Every method is
// safe to call on a nil *Metrics so components can run without telemetry.
type Metrics struct {
	// Admin HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Action metrics
	ActionsTotal   *prometheus.CounterVec
	ActionDuration *prometheus.HistogramVec
	LimitTrips     *prometheus.CounterVec

	// Lifecycle and fan-out metrics
	EventsTotal    *prometheus.CounterVec
	EventsDropped  *prometheus.CounterVec
	QueueSaturated *prometheus.CounterVec
	Subscribers    *prometheus.GaugeVec
	WorkersStarted prometheus.Gauge

	// Timer metrics
	TimersActive prometheus.Gauge
	TimersFired  *prometheus.CounterVec

	Registry prometheus.Gatherer
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.NewRegistry())
}

// NewMetricsWith registers every collector on reg.
func NewMetricsWith(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uniremote_http_requests_total",
				Help: "Total number of admin HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "uniremote_http_request_duration_seconds",
				Help:    "Admin HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"method", "path"},
		),

		ActionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uniremote_actions_total",
				Help: "Total number of processed action requests",
			},
			[]string{"remote", "status"},
		),
		ActionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "uniremote_action_duration_seconds",
				Help:    "Action execution time in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"remote"},
		),
		LimitTrips: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uniremote_limit_trips_total",
				Help: "Script executions aborted by a resource limit",
			},
			[]string{"remote", "limit"},
		),

		EventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uniremote_events_total",
				Help: "Lifecycle events delivered to scripts",
			},
			[]string{"remote", "event", "status"},
		),
		EventsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uniremote_events_dropped_total",
				Help: "Outbound updates a lagging subscriber missed",
			},
			[]string{"remote"},
		),
		QueueSaturated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uniremote_queue_saturated_total",
				Help: "Action requests rejected after exhausting send retries",
			},
			[]string{"remote"},
		),
		Subscribers: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "uniremote_subscribers",
				Help: "Attached subscribers per remote",
			},
			[]string{"remote"},
		),
		WorkersStarted: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "uniremote_workers_started",
				Help: "Workers whose drain loop is running",
			},
		),

		TimersActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "uniremote_timers_active",
				Help: "Registered script timers",
			},
		),
		TimersFired: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uniremote_timer_fired_total",
				Help: "Script timer callbacks invoked",
			},
			[]string{"kind"},
		),
	}
}

// RecordHTTPRequest records one admin HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordAction records one processed action request
func (m *Metrics) RecordAction(remote, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ActionsTotal.WithLabelValues(remote, status).Inc()
	m.ActionDuration.WithLabelValues(remote).Observe(duration.Seconds())
}

// RecordLimitTrip records an execution aborted by the named limit
func (m *Metrics) RecordLimitTrip(remote, limit string) {
	if m == nil {
		return
	}
	m.LimitTrips.WithLabelValues(remote, limit).Inc()
}

// RecordEvent records a lifecycle event delivery
func (m *Metrics) RecordEvent(remote, event, status string) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(remote, event, status).Inc()
}

// RecordDroppedEvent records an update a subscriber missed
func (m *Metrics) RecordDroppedEvent(remote string) {
	if m == nil {
		return
	}
	m.EventsDropped.WithLabelValues(remote).Inc()
}

// RecordQueueSaturated records a rejected send
func (m *Metrics) RecordQueueSaturated(remote string) {
	if m == nil {
		return
	}
	m.QueueSaturated.WithLabelValues(remote).Inc()
}

// SetSubscribers publishes the subscriber count of a remote
func (m *Metrics) SetSubscribers(remote string, n int64) {
	if m == nil {
		return
	}
	m.Subscribers.WithLabelValues(remote).Set(float64(n))
}

// WorkerStarted and WorkerStopped track running drain loops
func (m *Metrics) WorkerStarted() {
	if m == nil {
		return
	}
	m.WorkersStarted.Inc()
}

func (m *Metrics) WorkerStopped() {
	if m == nil {
		return
	}
	m.WorkersStarted.Dec()
}

// TimerAdded and TimerRemoved track the registered timer count
func (m *Metrics) TimerAdded() {
	if m == nil {
		return
	}
	m.TimersActive.Inc()
}

func (m *Metrics) TimerRemoved(n int) {
	if m == nil || n == 0 {
		return
	}
	m.TimersActive.Sub(float64(n))
}

// RecordTimerFired records a timer callback invocation
func (m *Metrics) RecordTimerFired(kind string) {
	if m == nil {
		return
	}
	m.TimersFired.WithLabelValues(kind).Inc()
}
