package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// NotifyMetrics contains Prometheus metrics for post-commit notifications.
type NotifyMetrics struct {
	registry *prometheus.Registry

	MessagesTotal    *prometheus.CounterVec
	PublishLatency   *prometheus.HistogramVec
	ConnectionStatus *prometheus.GaugeVec
}

// NewNotifyMetrics creates and registers new notification metrics.
func NewNotifyMetrics(registry *prometheus.Registry) (*NotifyMetrics, error) {
	m := &NotifyMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *NotifyMetrics) initMetrics() {
	m.MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notify_messages_total",
		Help: "Total number of notification messages by channel and status",
	}, []string{"channel", "status"})

	m.PublishLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "notify_publish_latency_seconds",
		Help:    "Latency of notification publish operations in seconds",
		Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12),
	}, []string{"channel"})

	m.ConnectionStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "notify_connection_status",
		Help: "Current connection status of a notification channel (1 for connected, 0 for disconnected)",
	}, []string{"channel"})
}

// Describe implements the Collector interface
func (m *NotifyMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.MessagesTotal.Describe(ch)
	m.PublishLatency.Describe(ch)
	m.ConnectionStatus.Describe(ch)
}

// Collect implements the Collector interface
func (m *NotifyMetrics) Collect(ch chan<- prometheus.Metric) {
	m.MessagesTotal.Collect(ch)
	m.PublishLatency.Collect(ch)
	m.ConnectionStatus.Collect(ch)
}

// RecordPublish records one message sent on channel.
func (m *NotifyMetrics) RecordPublish(channel string, latency time.Duration, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.MessagesTotal.WithLabelValues(channel, status).Inc()
	m.PublishLatency.WithLabelValues(channel).Observe(latency.Seconds())
}

// UpdateConnectionStatus sets the connection gauge of channel.
func (m *NotifyMetrics) UpdateConnectionStatus(channel string, connected bool) {
	v := 0.0
	if connected {
		v = 1
	}
	m.ConnectionStatus.WithLabelValues(channel).Set(v)
}
