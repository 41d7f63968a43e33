package scheduler

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks tool execution outcomes (successes, errors, timeouts,
// panics) and durations, exposed through a prometheus registry.
type Metrics struct {
	mu sync.Mutex

	executions prometheus.Counter
	errors     prometheus.Counter
	timeouts   prometheus.Counter
	panics     prometheus.Counter
	durations  prometheus.Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{
		executions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agentcore_tool_executions_total",
			Help: "Total tool executions that completed successfully.",
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agentcore_tool_errors_total",
			Help: "Total tool executions that ended in error.",
		}),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agentcore_tool_timeouts_total",
			Help: "Total tool executions that exceeded their per-tool timeout.",
		}),
		panics: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agentcore_tool_panics_total",
			Help: "Total tool executions that panicked and were recovered.",
		}),
		durations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "agentcore_tool_duration_ms",
			Help:    "Tool execution duration in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(10, 2, 12),
		}),
	}
}

// Register adds this Metrics' collectors to reg, for callers that want to
// expose them via a /metrics endpoint.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.executions, m.errors, m.timeouts, m.panics, m.durations} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) RecordSuccess(toolName string, durationMs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executions.Inc()
	m.durations.Observe(float64(durationMs))
}

func (m *Metrics) RecordError(toolName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors.Inc()
}

func (m *Metrics) RecordTimeout(toolName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeouts.Inc()
}

func (m *Metrics) RecordPanic(toolName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panics.Inc()
}
