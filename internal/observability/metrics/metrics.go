package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters for the appointment coordinator.
type SchedulingMetrics struct {
	bookedTotal    prometheus.Counter
	cancelledTotal prometheus.Counter
	rejectedTotal  *prometheus.CounterVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		bookedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "telemed",
			Subsystem: "scheduling",
			Name:      "appointments_booked_total",
			Help:      "Total appointments booked",
		}),
		cancelledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "telemed",
			Subsystem: "scheduling",
			Name:      "appointments_cancelled_total",
			Help:      "Total appointments cancelled",
		}),
		rejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telemed",
			Subsystem: "scheduling",
			Name:      "bookings_rejected_total",
			Help:      "Bookings rejected by business rules",
		}, []string{"reason"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookedTotal, m.cancelledTotal, m.rejectedTotal)
	return m
}

func (m *SchedulingMetrics) ObserveBooked() {
	if m == nil {
		return
	}
	m.bookedTotal.Inc()
}

func (m *SchedulingMetrics) ObserveCancelled() {
	if m == nil {
		return
	}
	m.cancelledTotal.Inc()
}

func (m *SchedulingMetrics) ObserveRejected(reason string) {
	if m == nil {
		return
	}
	m.rejectedTotal.WithLabelValues(reason).Inc()
}

// MessagingMetrics exposes counters for the messaging store.
type MessagingMetrics struct {
	sentTotal     *prometheus.CounterVec
	readBatchSize prometheus.Histogram
}

func NewMessagingMetrics(reg prometheus.Registerer) *MessagingMetrics {
	m := &MessagingMetrics{
		sentTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telemed",
			Subsystem: "messaging",
			Name:      "messages_sent_total",
			Help:      "Total direct messages sent",
		}, []string{"sender_type"}),
		readBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "telemed",
			Subsystem: "messaging",
			Name:      "read_receipt_batch_size",
			Help:      "Messages acknowledged per batch read receipt",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.sentTotal, m.readBatchSize)
	return m
}

func (m *MessagingMetrics) ObserveSent(senderType string) {
	if m == nil {
		return
	}
	m.sentTotal.WithLabelValues(senderType).Inc()
}

func (m *MessagingMetrics) ObserveReadBatch(size int) {
	if m == nil {
		return
	}
	m.readBatchSize.Observe(float64(size))
}
