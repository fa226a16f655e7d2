package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics counts booking and status transition outcomes.
type BookingMetrics struct {
	created     *prometheus.CounterVec
	transitions *prometheus.CounterVec
	rejected    *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Name:      "appointments_created_total",
			Help:      "Appointments accepted for booking",
		}, []string{"service"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Name:      "status_transitions_total",
			Help:      "Status change attempts by target status and result",
		}, []string{"to", "result"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Name:      "rejected_bookings_total",
			Help:      "Bookings refused before reaching the store",
		}, []string{"reason"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.created, m.transitions, m.rejected)
	return m
}

func (m *BookingMetrics) ObserveCreated(service string) {
	if m == nil {
		return
	}
	m.created.WithLabelValues(service).Inc()
}

// ObserveTransition records result as one of ok, invalid, conflict,
// forbidden or error.
func (m *BookingMetrics) ObserveTransition(to, result string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(to, result).Inc()
}

func (m *BookingMetrics) ObserveRejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}
