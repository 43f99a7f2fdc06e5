package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shared_alarm"

// Request outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Metrics owns a private registry and the server's collectors.
type Metrics struct {
	// registry holds every collector below plus the runtime collectors.
	registry *prometheus.Registry
	// requests counts device operations by action and outcome.
	requests *prometheus.CounterVec
	// alarms counts accepted alarms by type.
	alarms *prometheus.CounterVec
	// publishFailures counts failed push hand-offs.
	publishFailures prometheus.Counter
	// swept counts devices removed by the stale-device sweeper.
	swept prometheus.Counter
	// devices reports registered and active device counts.
	devices *prometheus.GaugeVec
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Device operations handled, by action and outcome.",
		}, []string{"action", "outcome"}),
		alarms: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alarms_total",
			Help:      "Alarms appended to the history, by type.",
		}, []string{"type"}),
		publishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_failures_total",
			Help:      "Push notifications that could not be delivered.",
		}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "devices_swept_total",
			Help:      "Devices removed by the stale-device sweeper.",
		}),
		devices: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "devices",
			Help:      "Devices in the registry, by state.",
		}, []string{"state"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.alarms,
		m.publishFailures,
		m.swept,
		m.devices,
	)

	return m
}

// ObserveRequest counts one device operation.
func (m *Metrics) ObserveRequest(action, outcome string) {
	m.requests.WithLabelValues(action, outcome).Inc()
}

// ObserveAlarm counts one accepted alarm.
func (m *Metrics) ObserveAlarm(alarmType string) {
	m.alarms.WithLabelValues(alarmType).Inc()
}

// ObservePublishFailure counts one failed push hand-off.
func (m *Metrics) ObservePublishFailure() {
	m.publishFailures.Inc()
}

// ObserveSwept counts devices removed by the sweeper.
func (m *Metrics) ObserveSwept(n int) {
	m.swept.Add(float64(n))
}

// SetDevices records the registry totals.
func (m *Metrics) SetDevices(total, active int) {
	m.devices.WithLabelValues("registered").Set(float64(total))
	m.devices.WithLabelValues("active").Set(float64(active))
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
