package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics holds Prometheus collectors for the mixer remote.
type Metrics struct {
	registry      *prometheus.Registry
	requestsTotal prometheus.Counter
	errorsTotal   prometheus.Counter
	pollsTotal    *prometheus.CounterVec
	pollDuration  prometheus.Histogram
	commandsTotal *prometheus.CounterVec
	connected     prometheus.Gauge
	inputs        prometheus.Gauge
}

// New creates and registers the collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vmix_requests_total",
		Help: "Total number of operator API requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vmix_errors_total",
		Help: "Total number of operator API responses with error status (4xx or 5xx)",
	})
	pollsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vmix_polls_total",
		Help: "Status polls applied, by result",
	}, []string{"result"})
	pollDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "vmix_poll_duration_seconds",
		Help:    "Time spent fetching and parsing the status document",
		Buckets: prometheus.DefBuckets,
	})
	commandsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vmix_commands_total",
		Help: "Mixer functions dispatched, by function and result",
	}, []string{"function", "result"})
	connected := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vmix_connected",
		Help: "1 if the last status poll succeeded",
	})
	inputs := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vmix_inputs",
		Help: "Number of inputs in the current snapshot",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		pollsTotal,
		pollDuration,
		commandsTotal,
		connected,
		inputs,
	)

	return &Metrics{
		registry:      registry,
		requestsTotal: requestsTotal,
		errorsTotal:   errorsTotal,
		pollsTotal:    pollsTotal,
		pollDuration:  pollDuration,
		commandsTotal: commandsTotal,
		connected:     connected,
		inputs:        inputs,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// ObservePoll records one completed poll.
func (m *Metrics) ObservePoll(d time.Duration, err error) {
	m.pollDuration.Observe(d.Seconds())
	m.pollsTotal.WithLabelValues(result(err)).Inc()
}

// ObserveCommand records one dispatched mixer function.
func (m *Metrics) ObserveCommand(function string, err error) {
	m.commandsTotal.WithLabelValues(function, result(err)).Inc()
}

// SetConnected sets the connectivity gauge.
func (m *Metrics) SetConnected(ok bool) {
	if ok {
		m.connected.Set(1)
		return
	}
	m.connected.Set(0)
}

// SetInputs sets the input count gauge.
func (m *Metrics) SetInputs(n int) {
	m.inputs.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
