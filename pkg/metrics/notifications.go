package metrics

import "github.com/prometheus/client_golang/prometheus"

// NotificationMetrics tracks per-channel delivery outcomes.
type NotificationMetrics struct {
	deliveries *prometheus.CounterVec
	dropped    prometheus.Counter
}

// NewNotificationMetrics registers the fan-out metrics on the provided registerer.
func NewNotificationMetrics(reg prometheus.Registerer) *NotificationMetrics {
	if reg == nil {
		return &NotificationMetrics{}
	}
	m := &NotificationMetrics{
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_deliveries_total",
			Help:      "Notification deliveries by channel, type and result.",
		}, []string{"channel", "type", "result"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_events_dropped_total",
			Help:      "Events that could not be delivered to any recipient.",
		}),
	}
	reg.MustRegister(m.deliveries, m.dropped)
	return m
}

func (m *NotificationMetrics) IncDelivery(channel, notificationType, result string) {
	if m == nil || m.deliveries == nil {
		return
	}
	m.deliveries.WithLabelValues(normalizeLabel(channel), normalizeLabel(notificationType), normalizeLabel(result)).Inc()
}

func (m *NotificationMetrics) IncDropped() {
	if m == nil || m.dropped == nil {
		return
	}
	m.dropped.Inc()
}
