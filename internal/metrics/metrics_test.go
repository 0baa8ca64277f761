package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordHTTPRequest(t *testing.T) {
	// Сбрасываем метрики перед тестом
	HTTPRequestsTotal.Reset()
	HTTPRequestDuration.Reset()

	method := "POST"
	path := "/sessions/:sessionID/book"
	status := "201"
	duration := 0.25

	RecordHTTPRequest(method, path, status, duration)

	count := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(method, path, status))
	assert.Equal(t, float64(1), count)
}

func TestRecordHTTPRequestMultiple(t *testing.T) {
	HTTPRequestsTotal.Reset()

	RecordHTTPRequest("POST", "/auth/login", "200", 0.1)
	RecordHTTPRequest("POST", "/auth/login", "200", 0.2)
	RecordHTTPRequest("POST", "/auth/login", "401", 0.05)

	successCount := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/auth/login", "200"))
	failCount := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/auth/login", "401"))

	assert.Equal(t, float64(2), successCount)
	assert.Equal(t, float64(1), failCount)
}

func TestRecordBooking(t *testing.T) {
	BookingsTotal.Reset()

	RecordBooking("booked")
	RecordBooking("booked")
	RecordBooking("waitlisted")

	bookedCount := testutil.ToFloat64(BookingsTotal.WithLabelValues("booked"))
	waitlistedCount := testutil.ToFloat64(BookingsTotal.WithLabelValues("waitlisted"))

	assert.Equal(t, float64(2), bookedCount)
	assert.Equal(t, float64(1), waitlistedCount)
}

func TestRecordBookingCancellation(t *testing.T) {
	// Создаем новый счетчик для теста
	testCounter := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "studiofit_booking_cancellations_total_test",
			Help: "Total number of booking cancellations",
		},
	)

	// Временно подменяем глобальную переменную
	oldCounter := BookingCancellationsTotal
	BookingCancellationsTotal = testCounter
	defer func() { BookingCancellationsTotal = oldCounter }()

	RecordBookingCancellation()
	RecordBookingCancellation()

	count := testutil.ToFloat64(testCounter)
	assert.Equal(t, float64(2), count)
}

func TestRecordPromotion(t *testing.T) {
	WaitlistPromotionsTotal.Reset()

	RecordPromotion("auto")
	RecordPromotion("auto")
	RecordPromotion("manual")

	autoCount := testutil.ToFloat64(WaitlistPromotionsTotal.WithLabelValues("auto"))
	manualCount := testutil.ToFloat64(WaitlistPromotionsTotal.WithLabelValues("manual"))

	assert.Equal(t, float64(2), autoCount)
	assert.Equal(t, float64(1), manualCount)
}

func TestRecordCheckIn(t *testing.T) {
	CheckInsTotal.Reset()

	RecordCheckIn("qr_scan")
	RecordCheckIn("manual")
	RecordCheckIn("qr_scan")

	qrCount := testutil.ToFloat64(CheckInsTotal.WithLabelValues("qr_scan"))
	manualCount := testutil.ToFloat64(CheckInsTotal.WithLabelValues("manual"))

	assert.Equal(t, float64(2), qrCount)
	assert.Equal(t, float64(1), manualCount)
}

func TestRecordNoShow(t *testing.T) {
	testCounter := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "studiofit_no_shows_total_test",
			Help: "Total number of bookings marked as no-show",
		},
	)

	oldCounter := NoShowsTotal
	NoShowsTotal = testCounter
	defer func() { NoShowsTotal = oldCounter }()

	RecordNoShow()
	RecordNoShow()
	RecordNoShow()

	count := testutil.ToFloat64(testCounter)
	assert.Equal(t, float64(3), count)
}

func TestRecordNotification(t *testing.T) {
	NotificationsTotal.Reset()

	RecordNotification("BOOKING_CONFIRMED", "queued")
	RecordNotification("BOOKING_CONFIRMED", "failed")
	RecordNotification("WAITLIST_PROMOTED", "queued")

	confirmQueued := testutil.ToFloat64(NotificationsTotal.WithLabelValues("BOOKING_CONFIRMED", "queued"))
	confirmFailed := testutil.ToFloat64(NotificationsTotal.WithLabelValues("BOOKING_CONFIRMED", "failed"))
	promotedQueued := testutil.ToFloat64(NotificationsTotal.WithLabelValues("WAITLIST_PROMOTED", "queued"))

	assert.Equal(t, float64(1), confirmQueued)
	assert.Equal(t, float64(1), confirmFailed)
	assert.Equal(t, float64(1), promotedQueued)
}

func TestNotificationQueueLength(t *testing.T) {
	NotificationQueueLength.Set(10)
	value := testutil.ToFloat64(NotificationQueueLength)
	assert.Equal(t, float64(10), value)

	NotificationQueueLength.Set(0)
	value = testutil.ToFloat64(NotificationQueueLength)
	assert.Equal(t, float64(0), value)
}

func TestMetricsIntegration(t *testing.T) {
	// Сбрасываем все метрики
	HTTPRequestsTotal.Reset()
	BookingsTotal.Reset()
	CheckInsTotal.Reset()
	NotificationsTotal.Reset()

	// Имитируем реальный сценарий использования
	RecordHTTPRequest("POST", "/sessions/:sessionID/book", "201", 0.25)
	RecordBooking("booked")
	RecordCheckIn("qr_scan")
	RecordNotification("BOOKING_CONFIRMED", "queued")

	httpCount := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/sessions/:sessionID/book", "201"))
	bookingCount := testutil.ToFloat64(BookingsTotal.WithLabelValues("booked"))
	checkinCount := testutil.ToFloat64(CheckInsTotal.WithLabelValues("qr_scan"))
	notifyCount := testutil.ToFloat64(NotificationsTotal.WithLabelValues("BOOKING_CONFIRMED", "queued"))

	assert.Equal(t, float64(1), httpCount)
	assert.Equal(t, float64(1), bookingCount)
	assert.Equal(t, float64(1), checkinCount)
	assert.Equal(t, float64(1), notifyCount)
}
