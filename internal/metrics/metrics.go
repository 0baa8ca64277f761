package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studiofit_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "studiofit_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studiofit_bookings_total",
			Help: "Total number of booking attempts by outcome",
		},
		[]string{"outcome"},
	)

	BookingCancellationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "studiofit_booking_cancellations_total",
			Help: "Total number of booking cancellations",
		},
	)

	WaitlistPromotionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studiofit_waitlist_promotions_total",
			Help: "Total number of waitlist promotions",
		},
		[]string{"trigger"},
	)

	CheckInsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studiofit_checkins_total",
			Help: "Total number of check-ins by method",
		},
		[]string{"method"},
	)

	NoShowsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "studiofit_no_shows_total",
			Help: "Total number of bookings marked as no-show",
		},
	)

	SessionsCancelledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "studiofit_sessions_cancelled_total",
			Help: "Total number of cancelled class sessions",
		},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studiofit_notifications_total",
			Help: "Total number of notifications by kind and status",
		},
		[]string{"kind", "status"},
	)

	NotificationQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "studiofit_notification_queue_length",
			Help: "Current length of notification queue",
		},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordBooking(outcome string) {
	BookingsTotal.WithLabelValues(outcome).Inc()
}

func RecordBookingCancellation() {
	BookingCancellationsTotal.Inc()
}

func RecordPromotion(trigger string) {
	WaitlistPromotionsTotal.WithLabelValues(trigger).Inc()
}

func RecordCheckIn(method string) {
	CheckInsTotal.WithLabelValues(method).Inc()
}

func RecordNoShow() {
	NoShowsTotal.Inc()
}

func RecordSessionCancelled() {
	SessionsCancelledTotal.Inc()
}

func RecordNotification(kind, status string) {
	NotificationsTotal.WithLabelValues(kind, status).Inc()
}
