package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(t *testing.T, c prometheus.Metric) float64 {
	t.Helper()
	var pb dto.Metric
	require.NoError(t, c.Write(&pb))
	return pb.GetCounter().GetValue()
}

func TestSchedulingMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSchedulingMetrics(reg)

	m.RescheduleFinished("committed", 20*time.Millisecond)
	m.RescheduleFinished("committed", 10*time.Millisecond)
	m.RescheduleFinished("rolled_back", time.Millisecond)
	m.OffersMade(3)
	m.OffersMade(0)
	m.OfferResolved("expired")
	m.ObserveSlots(28)
	m.ObserveHTTP("GET", "/orgs/{orgID}/slots", 200, time.Millisecond)
	m.ObserveHTTP("POST", "/orgs/{orgID}/moves/{appointmentID}/confirm", 502, time.Millisecond)

	assert.Equal(t, 2.0, value(t, m.rescheduleTotal.WithLabelValues("committed")))
	assert.Equal(t, 1.0, value(t, m.rescheduleTotal.WithLabelValues("rolled_back")))
	assert.Equal(t, 3.0, value(t, m.offersTotal))
	assert.Equal(t, 1.0, value(t, m.offerOutcomes.WithLabelValues("expired")))
	assert.Equal(t, 1.0, value(t, m.httpRequests.WithLabelValues("POST", "/orgs/{orgID}/moves/{appointmentID}/confirm", "5xx")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestSchedulingMetricsNilSafe(t *testing.T) {
	var m *SchedulingMetrics
	m.RescheduleFinished("committed", time.Second)
	m.OffersMade(1)
	m.OfferResolved("accepted")
	m.ObserveSlots(1)
	m.ObserveHTTP("GET", "/", 200, time.Second)
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(204))
	assert.Equal(t, "3xx", statusClass(304))
	assert.Equal(t, "4xx", statusClass(409))
	assert.Equal(t, "5xx", statusClass(502))
}
