// Package metrics метрики Prometheus сервиса бронирования.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "review_scheduler"

// Metrics все метрики сервиса.
//
//   - review_scheduler_booking_attempts_total{outcome}
//   - review_scheduler_slots_published_total
//   - review_scheduler_bookings_cancelled_total
//   - review_scheduler_slots_deleted_total
//   - review_scheduler_cascaded_bookings_total
//   - review_scheduler_slots_expired_total
//   - review_scheduler_notifications_total{result}
//   - review_scheduler_http_request_duration_seconds{method,route,status}
type Metrics struct {
	BookingAttempts   *prometheus.CounterVec
	SlotsPublishedN   prometheus.Counter
	BookingsCancelled prometheus.Counter
	SlotsDeleted      prometheus.Counter
	CascadedBookings  prometheus.Counter
	SlotsExpired      prometheus.Counter
	Notifications     *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
}

// New регистрирует метрики в reg. Для тестов передавать prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		BookingAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_attempts_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),

		SlotsPublishedN: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slots_published_total",
			Help:      "Slots created by publish requests",
		}),

		BookingsCancelled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_cancelled_total",
			Help:      "Bookings cancelled",
		}),

		SlotsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slots_deleted_total",
			Help:      "Slots deleted",
		}),

		CascadedBookings: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cascaded_bookings_total",
			Help:      "Bookings removed together with their slot",
		}),

		SlotsExpired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slots_expired_total",
			Help:      "Unbooked slots withdrawn after their booking deadline",
		}),

		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Activity notifications by result",
		}, []string{"result"}),

		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) BookingAttempt(outcome string) {
	m.BookingAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SlotsPublished(count int) {
	m.SlotsPublishedN.Add(float64(count))
}

func (m *Metrics) BookingCancelled() {
	m.BookingsCancelled.Inc()
}

func (m *Metrics) SlotDeleted(bookingsRemoved int64) {
	m.SlotsDeleted.Inc()
	m.CascadedBookings.Add(float64(bookingsRemoved))
}

func (m *Metrics) SlotsWithdrawnExpired(count int64) {
	m.SlotsExpired.Add(float64(count))
}

func (m *Metrics) NotificationDropped() {
	m.Notifications.WithLabelValues("dropped").Inc()
}

func (m *Metrics) NotificationFailed() {
	m.Notifications.WithLabelValues("failed").Inc()
}

func (m *Metrics) NotificationDelivered() {
	m.Notifications.WithLabelValues("delivered").Inc()
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.HTTPDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
