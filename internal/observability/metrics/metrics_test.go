package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestBookingMetricsCounters(t *testing.T) {
	m := NewBookingMetrics(prometheus.NewRegistry())

	m.ObserveBooking("success")
	m.ObserveBooking("success")
	m.ObserveBooking("conflict")
	m.ObserveAvailabilityQuery()
	m.ObserveSlotQuery()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.bookingTotal.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.bookingTotal.WithLabelValues("conflict")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.bookingTotal.WithLabelValues("error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.availabilityTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.slotQueryTotal))
}

func TestNilReceiverIsSafe(t *testing.T) {
	var m *BookingMetrics

	assert.NotPanics(t, func() {
		m.ObserveBooking("success")
		m.ObserveAvailabilityQuery()
		m.ObserveSlotQuery()
	})
}
