package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SchedulingMetrics exposes counters/histograms for reschedules, waitlist
// offers and the HTTP surface. A nil *SchedulingMetrics is a no-op.
type SchedulingMetrics struct {
	rescheduleTotal    *prometheus.CounterVec
	rescheduleDuration *prometheus.HistogramVec
	offersTotal        prometheus.Counter
	offerOutcomes      *prometheus.CounterVec
	slotsGenerated     prometheus.Histogram
	httpRequests       *prometheus.CounterVec
	httpLatency        *prometheus.HistogramVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		rescheduleTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "reschedule",
			Name:      "transactions_total",
			Help:      "Resolved reschedule transactions by outcome",
		}, []string{"outcome"}),
		rescheduleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "reschedule",
			Name:      "save_duration_seconds",
			Help:      "Time spent in the Saving state",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		offersTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "waitlist",
			Name:      "offers_total",
			Help:      "Vacancy offers recorded for waitlist entries",
		}),
		offerOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "waitlist",
			Name:      "offer_outcomes_total",
			Help:      "Waitlist offers resolved by response",
		}, []string{"response"}),
		slotsGenerated: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "availability",
			Name:      "slots_per_day",
			Help:      "Slots generated per requested day",
			Buckets:   []float64{0, 6, 12, 24, 36, 48, 96},
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.rescheduleTotal,
		m.rescheduleDuration,
		m.offersTotal,
		m.offerOutcomes,
		m.slotsGenerated,
		m.httpRequests,
		m.httpLatency,
	)
	return m
}

func (m *SchedulingMetrics) RescheduleFinished(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.rescheduleTotal.WithLabelValues(outcome).Inc()
	m.rescheduleDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (m *SchedulingMetrics) OffersMade(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.offersTotal.Add(float64(n))
}

func (m *SchedulingMetrics) OfferResolved(response string) {
	if m == nil {
		return
	}
	m.offerOutcomes.WithLabelValues(response).Inc()
}

func (m *SchedulingMetrics) ObserveSlots(n int) {
	if m == nil {
		return
	}
	m.slotsGenerated.Observe(float64(n))
}

func (m *SchedulingMetrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, statusClass(status)).Inc()
	m.httpLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
