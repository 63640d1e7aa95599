package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	appointmentsBooked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scheduling",
			Name:      "appointments_booked_total",
			Help:      "Count of appointments created, by kind (slot or walk_in).",
		},
		[]string{"kind"},
	)

	appointmentsCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scheduling",
			Name:      "appointments_cancelled_total",
			Help:      "Count of appointments cancelled.",
		},
	)

	bookingConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scheduling",
			Name:      "booking_conflicts_total",
			Help:      "Count of booking attempts rejected for capacity or lock contention.",
		},
	)

	emergencyBlocks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scheduling",
			Name:      "emergency_blocks_total",
			Help:      "Count of emergency day blocks applied.",
		},
	)

	anomaliesRepaired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scheduling",
			Name:      "anomalies_repaired_total",
			Help:      "Count of slot anomalies repaired, by kind (status or counter).",
		},
		[]string{"kind"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "scheduling",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method, path and status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Register registers all collectors (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			appointmentsBooked,
			appointmentsCancelled,
			bookingConflicts,
			emergencyBlocks,
			anomaliesRepaired,
			httpDuration,
		)
	})
}

func IncAppointmentBooked(kind string) {
	appointmentsBooked.WithLabelValues(kind).Inc()
}

func IncAppointmentCancelled() {
	appointmentsCancelled.Inc()
}

func IncBookingConflict() {
	bookingConflicts.Inc()
}

func IncEmergencyBlock() {
	emergencyBlocks.Inc()
}

func AddAnomaliesRepaired(kind string, n int) {
	if n > 0 {
		anomaliesRepaired.WithLabelValues(kind).Add(float64(n))
	}
}

func ObserveHTTPRequest(method, path string, status int, d time.Duration) {
	httpDuration.WithLabelValues(method, path, strconv.Itoa(status)).Observe(d.Seconds())
}
