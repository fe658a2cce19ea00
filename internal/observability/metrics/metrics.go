package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters for the booking and availability flows.
type BookingMetrics struct {
	bookingTotal      *prometheus.CounterVec
	availabilityTotal prometheus.Counter
	slotQueryTotal    prometheus.Counter
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "petcare",
			Subsystem: "scheduling",
			Name:      "booking_total",
			Help:      "Booking attempts by outcome (success, conflict, error)",
		}, []string{"outcome"}),
		availabilityTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "petcare",
			Subsystem: "scheduling",
			Name:      "available_dates_queries_total",
			Help:      "Available-dates queries served",
		}),
		slotQueryTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "petcare",
			Subsystem: "scheduling",
			Name:      "free_slot_queries_total",
			Help:      "Free-slot queries served",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingTotal, m.availabilityTotal, m.slotQueryTotal)
	return m
}

func (m *BookingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveAvailabilityQuery() {
	if m == nil {
		return
	}
	m.availabilityTotal.Inc()
}

func (m *BookingMetrics) ObserveSlotQuery() {
	if m == nil {
		return
	}
	m.slotQueryTotal.Inc()
}
