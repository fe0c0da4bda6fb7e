package mongodb

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/event"
)

var _ prometheus.Collector = &CommandMetrics{}

// CommandMetrics is a prometheus.Collector counting and timing the commands
// sent to MongoDB, fed by the driver command monitor returned by Monitor.
type CommandMetrics struct {
	commands *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewCommandMetrics returns a new CommandMetrics using the given metrics namespace.
func NewCommandMetrics(namespace string) *CommandMetrics {
	return &CommandMetrics{
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "mongodb",
				Name:      "commands_total",
				Help:      "The total number of commands sent to MongoDB.",
			},
			[]string{"command", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "mongodb",
				Name:      "command_duration_seconds",
				Help:      "The duration of the commands sent to MongoDB.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"command"},
		),
	}
}

// Describe implements the prometheus.Collector interface.
func (m *CommandMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.commands.Describe(ch)
	m.duration.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *CommandMetrics) Collect(ch chan<- prometheus.Metric) {
	m.commands.Collect(ch)
	m.duration.Collect(ch)
}

// Monitor returns the command monitor to set on the MongoDB client options.
func (m *CommandMetrics) Monitor() *event.CommandMonitor {
	return &event.CommandMonitor{
		Succeeded: func(_ context.Context, evt *event.CommandSucceededEvent) {
			m.commands.WithLabelValues(evt.CommandName, "success").Inc()
			m.duration.WithLabelValues(evt.CommandName).Observe(evt.Duration.Seconds())
		},
		Failed: func(_ context.Context, evt *event.CommandFailedEvent) {
			m.commands.WithLabelValues(evt.CommandName, "failed").Inc()
			m.duration.WithLabelValues(evt.CommandName).Observe(evt.Duration.Seconds())
		},
	}
}
