// Package metrics exposes Prometheus metrics for the timer daemon.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/bread-timer/internal/timer"
)

// Metrics holds the daemon's collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	reg *prometheus.Registry

	timerEvents     *prometheus.CounterVec
	expirations     *prometheus.CounterVec
	alarms          *prometheus.CounterVec
	persistFailures *prometheus.CounterVec
	notifications   *prometheus.CounterVec

	remaining prometheus.Gauge
	step      prometheus.Gauge
	weight    prometheus.Gauge
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),

		timerEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bread_timer_events_total",
				Help: "Timer transitions by event type",
			},
			[]string{"event"},
		),
		expirations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bread_timer_expirations_total",
				Help: "Timer expirations, split by detection while away",
			},
			[]string{"while_away"},
		),
		alarms: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bread_timer_alarms_total",
				Help: "Alarms rung by delivery mode",
			},
			[]string{"mode"}, // continuous, fallback, none
		),
		persistFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bread_timer_persist_failures_total",
				Help: "Failed state store operations",
			},
			[]string{"op"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bread_timer_notifications_total",
				Help: "Push notifications by outcome",
			},
			[]string{"status"}, // sent, failed
		),
		remaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bread_timer_remaining_seconds",
			Help: "Seconds left on the current step timer",
		}),
		step: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bread_timer_step_index",
			Help: "Index of the current walkthrough step",
		}),
		weight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bread_timer_target_weight_grams",
			Help: "Target loaf weight",
		}),
	}

	m.reg.MustRegister(
		m.timerEvents,
		m.expirations,
		m.alarms,
		m.persistFailures,
		m.notifications,
		m.remaining,
		m.step,
		m.weight,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler returns the HTTP handler for /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// TimerEvent records a timer transition.
func (m *Metrics) TimerEvent(e timer.Event) {
	if m == nil {
		return
	}
	m.timerEvents.WithLabelValues(string(e.Type)).Inc()
	if e.Type == timer.EventExpired {
		m.expirations.WithLabelValues(strconv.FormatBool(e.WhileAway)).Inc()
	}
}

// AlarmRung records a started ring.
func (m *Metrics) AlarmRung(mode string) {
	if m == nil {
		return
	}
	m.alarms.WithLabelValues(mode).Inc()
}

// PersistFailure records a failed store operation.
func (m *Metrics) PersistFailure(op string) {
	if m == nil {
		return
	}
	m.persistFailures.WithLabelValues(op).Inc()
}

// Notification records a push delivery outcome.
func (m *Metrics) Notification(err error) {
	if m == nil {
		return
	}
	status := "sent"
	if err != nil {
		status = "failed"
	}
	m.notifications.WithLabelValues(status).Inc()
}

// SetPosition records the current step, target weight and remaining time.
func (m *Metrics) SetPosition(stepIndex int, weight float64, remainingSeconds int) {
	if m == nil {
		return
	}
	m.step.Set(float64(stepIndex))
	m.weight.Set(weight)
	m.remaining.Set(float64(remainingSeconds))
}
