package booking_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studiofit/internal/auth"
	"studiofit/internal/booking"
	"studiofit/internal/studio"
)

func newStudioRouter(db *sqlx.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	service := studio.NewService(studio.NewRepository(db), newTestNotifier(db))
	handler := studio.NewHandler(service)

	router := gin.New()
	router.GET("/studios", handler.ListStudios)
	router.GET("/studios/:studioID/sessions", handler.ListSessions)
	router.GET("/sessions/:sessionID", handler.GetSession)

	staff := router.Group("/staff", auth.AuthMiddleware("test-secret"), auth.RequireRole("staff", "admin"))
	{
		staff.POST("/sessions/:sessionID/start", handler.StartSession)
		staff.POST("/sessions/:sessionID/complete", handler.CompleteSession)
	}
	admin := router.Group("/admin", auth.AuthMiddleware("test-secret"), auth.RequireRole("admin"))
	{
		admin.POST("/studios", handler.CreateStudio)
		admin.POST("/studios/:studioID/sessions", handler.CreateSession)
		admin.POST("/sessions/:sessionID/cancel", handler.CancelSession)
	}

	return router
}

func TestSessionLifecycleIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db := setupTestDB(t)
	defer db.Close()

	router := newStudioRouter(db)

	t.Run("Admin creates studio and session", func(t *testing.T) {
		cleanDatabase(t, db)

		_, adminToken := createTestMember(t, db, "admin@example.com", "Admin", "admin")

		body, _ := json.Marshal(studio.CreateStudioRequest{Name: "Downtown Studio", Location: "Almaty"})
		w := doJSON(router, "POST", "/admin/studios", adminToken, body)
		require.Equal(t, http.StatusCreated, w.Code)

		var created studio.Studio
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
		assert.Equal(t, "Downtown Studio", created.Name)

		startsAt := time.Now().Add(24 * time.Hour).UTC()
		sessionBody, _ := json.Marshal(studio.CreateSessionRequest{
			Name:       "Evening Pilates",
			Instructor: "Dana",
			StartsAt:   startsAt.Format(time.RFC3339),
			EndsAt:     startsAt.Add(time.Hour).Format(time.RFC3339),
			Capacity:   15,
		})
		wSession := doJSON(router, "POST", fmt.Sprintf("/admin/studios/%d/sessions", created.ID), adminToken, sessionBody)
		require.Equal(t, http.StatusCreated, wSession.Code)

		var session studio.ClassSession
		require.NoError(t, json.Unmarshal(wSession.Body.Bytes(), &session))
		assert.Equal(t, studio.SessionScheduled, session.Status)
		assert.Equal(t, 15, session.Capacity)
		assert.True(t, session.WaitlistEnabled)
	})

	t.Run("Staff role cannot create studios", func(t *testing.T) {
		cleanDatabase(t, db)

		_, staffToken := createTestMember(t, db, "staff@example.com", "Front Desk", "staff")

		body, _ := json.Marshal(studio.CreateStudioRequest{Name: "Downtown Studio", Location: "Almaty"})
		w := doJSON(router, "POST", "/admin/studios", staffToken, body)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("Session moves through start and complete", func(t *testing.T) {
		cleanDatabase(t, db)

		_, staffToken := createTestMember(t, db, "staff@example.com", "Front Desk", "staff")
		studioID := createTestStudio(t, db, "Test Studio")
		sessionID := createTestSession(t, db, studioID, time.Now().Add(time.Hour), 10, true)

		wStart := doJSON(router, "POST", fmt.Sprintf("/staff/sessions/%d/start", sessionID), staffToken, nil)
		require.Equal(t, http.StatusOK, wStart.Code)

		var status string
		require.NoError(t, db.Get(&status, "SELECT status FROM class_sessions WHERE id = $1", sessionID))
		assert.Equal(t, string(studio.SessionInProgress), status)

		wComplete := doJSON(router, "POST", fmt.Sprintf("/staff/sessions/%d/complete", sessionID), staffToken, nil)
		require.Equal(t, http.StatusOK, wComplete.Code)

		require.NoError(t, db.Get(&status, "SELECT status FROM class_sessions WHERE id = $1", sessionID))
		assert.Equal(t, string(studio.SessionCompleted), status)

		// Completed is terminal, a second start must be rejected
		wAgain := doJSON(router, "POST", fmt.Sprintf("/staff/sessions/%d/start", sessionID), staffToken, nil)
		assert.Equal(t, http.StatusConflict, wAgain.Code)
	})

	t.Run("Cancelling a session sweeps bookings and refunds credits", func(t *testing.T) {
		cleanDatabase(t, db)

		bookingRouter := newBookingRouter(db)
		_, adminToken := createTestMember(t, db, "admin@example.com", "Admin", "admin")

		studioID := createTestStudio(t, db, "Test Studio")
		sessionID := createTestSession(t, db, studioID, time.Now().Add(24*time.Hour), 1, true)

		holderID, holderToken := createTestMember(t, db, "holder@example.com", "Holder", "member")
		waiterID, waiterToken := createTestMember(t, db, "waiter@example.com", "Waiter", "member")
		limit := 10
		createTestMembership(t, db, holderID, &limit)
		createTestMembership(t, db, waiterID, &limit)

		wHold := doJSON(bookingRouter, "POST", fmt.Sprintf("/sessions/%d/book", sessionID), holderToken, nil)
		require.Equal(t, http.StatusCreated, wHold.Code)
		wWait := doJSON(bookingRouter, "POST", fmt.Sprintf("/sessions/%d/book", sessionID), waiterToken, nil)
		require.Equal(t, http.StatusCreated, wWait.Code)

		body, _ := json.Marshal(studio.CancelSessionRequest{Reason: "Instructor sick"})
		wCancel := doJSON(router, "POST", fmt.Sprintf("/admin/sessions/%d/cancel", sessionID), adminToken, body)
		require.Equal(t, http.StatusOK, wCancel.Code)

		var status, reason string
		require.NoError(t, db.Get(&status, "SELECT status FROM class_sessions WHERE id = $1", sessionID))
		require.NoError(t, db.Get(&reason, "SELECT cancel_reason FROM class_sessions WHERE id = $1", sessionID))
		assert.Equal(t, "cancelled", status)
		assert.Equal(t, "Instructor sick", reason)

		// Обе брони отменяются, кредиты возвращаются
		var cancelledCount int
		require.NoError(t, db.Get(&cancelledCount,
			"SELECT COUNT(*) FROM bookings WHERE session_id = $1 AND status = 'cancelled'", sessionID))
		assert.Equal(t, 2, cancelledCount)

		var holderVisits, waiterVisits int
		require.NoError(t, db.Get(&holderVisits, "SELECT visits_used FROM memberships WHERE member_id = $1", holderID))
		require.NoError(t, db.Get(&waiterVisits, "SELECT visits_used FROM memberships WHERE member_id = $1", waiterID))
		assert.Equal(t, 0, holderVisits)
		assert.Equal(t, 0, waiterVisits)

		// Booking against a cancelled session is rejected
		freshID, freshToken := createTestMember(t, db, "fresh@example.com", "Fresh", "member")
		createTestMembership(t, db, freshID, nil)
		wBook := doJSON(bookingRouter, "POST", fmt.Sprintf("/sessions/%d/book", sessionID), freshToken, nil)
		assert.Equal(t, http.StatusConflict, wBook.Code)
		assert.Contains(t, wBook.Body.String(), "SESSION_CLOSED")
	})

	t.Run("Session listing reports availability", func(t *testing.T) {
		cleanDatabase(t, db)

		bookingRouter := newBookingRouter(db)
		studioID := createTestStudio(t, db, "Test Studio")
		sessionID := createTestSession(t, db, studioID, time.Now().Add(24*time.Hour), 2, true)

		memberID, token := createTestMember(t, db, "member@example.com", "Test Member", "member")
		createTestMembership(t, db, memberID, nil)
		wBook := doJSON(bookingRouter, "POST", fmt.Sprintf("/sessions/%d/book", sessionID), token, nil)
		require.Equal(t, http.StatusCreated, wBook.Code)

		w := doJSON(router, "GET", fmt.Sprintf("/studios/%d/sessions?upcoming=true", studioID), "", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var sessions []studio.SessionWithAvailability
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sessions))
		require.Len(t, sessions, 1)
		assert.Equal(t, 1, sessions[0].SpotsLeft)
		assert.False(t, sessions[0].IsFull)
	})
}

func TestWaitlistPromotionIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db := setupTestDB(t)
	defer db.Close()

	router := newBookingRouter(db)
	futureTime := time.Now().Add(24 * time.Hour)

	t.Run("Staff promotes a specific waitlisted member after capacity opens", func(t *testing.T) {
		cleanDatabase(t, db)

		studioID := createTestStudio(t, db, "Test Studio")
		sessionID := createTestSession(t, db, studioID, futureTime, 1, true)

		held, _, holderToken := seedBookedMember(t, db, router, sessionID, "holder@example.com")
		seedBookedMember(t, db, router, sessionID, "first-waiter@example.com")
		secondWaiter, _, _ := seedBookedMember(t, db, router, sessionID, "second-waiter@example.com")
		require.Equal(t, booking.StatusWaitlisted, secondWaiter.Status)

		_, staffToken := createTestMember(t, db, "staff@example.com", "Front Desk", "staff")

		// Force-promoting over the head while the session is full must fail
		wFull := doJSON(router, "POST",
			fmt.Sprintf("/staff/sessions/%d/waitlist/%d/promote", sessionID, secondWaiter.ID), staffToken, nil)
		assert.Equal(t, http.StatusConflict, wFull.Code)
		assert.Contains(t, wFull.Body.String(), "SESSION_FULL_RACE_LOST")

		// Open a seat, then promote the second waiter out of order.
		// The automatic promotion on cancel takes the head, so free two seats
		// via a no-show-free cancel is not possible here; cancel the holder and
		// the head gets the seat, leaving the second waiter at position 1.
		wCancel := doJSON(router, "POST", fmt.Sprintf("/bookings/%d/cancel", held.ID), holderToken, nil)
		require.Equal(t, http.StatusOK, wCancel.Code)

		var position int
		require.NoError(t, db.Get(&position,
			"SELECT waitlist_position FROM bookings WHERE id = $1", secondWaiter.ID))
		assert.Equal(t, 1, position)

		w := doJSON(router, "GET", fmt.Sprintf("/staff/sessions/%d/waitlist", sessionID), staffToken, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var waitlist []booking.WaitlistEntry
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &waitlist))
		require.Len(t, waitlist, 1)
		assert.Equal(t, secondWaiter.ID, waitlist[0].BookingID)
		assert.Equal(t, 1, waitlist[0].Position)
	})
}
