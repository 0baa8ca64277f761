package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockService struct{ mock.Mock }

func (m *MockService) CheckEligibility(ctx context.Context, memberID, sessionID int) (*Eligibility, error) {
	args := m.Called(ctx, memberID, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Eligibility), args.Error(1)
}

func (m *MockService) CreateBooking(ctx context.Context, memberID, sessionID int) (*Booking, error) {
	args := m.Called(ctx, memberID, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Booking), args.Error(1)
}

func (m *MockService) CancelBooking(ctx context.Context, memberID, bookingID int) (*CancelResult, error) {
	args := m.Called(ctx, memberID, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CancelResult), args.Error(1)
}

func (m *MockService) CheckIn(ctx context.Context, bookingID int) (*Booking, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Booking), args.Error(1)
}

func (m *MockService) CheckInWithQR(ctx context.Context, token string) (*Booking, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Booking), args.Error(1)
}

func (m *MockService) MarkNoShow(ctx context.Context, bookingID int) (*Booking, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Booking), args.Error(1)
}

func (m *MockService) PromoteFromWaitlist(ctx context.Context, sessionID, bookingID int) (*Booking, error) {
	args := m.Called(ctx, sessionID, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Booking), args.Error(1)
}

func (m *MockService) GetRoster(ctx context.Context, sessionID int) ([]RosterEntry, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]RosterEntry), args.Error(1)
}

func (m *MockService) GetWaitlist(ctx context.Context, sessionID int) ([]WaitlistEntry, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]WaitlistEntry), args.Error(1)
}

func (m *MockService) GetMemberBookings(ctx context.Context, memberID int) ([]BookingWithSession, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]BookingWithSession), args.Error(1)
}

func (m *MockService) IssueCheckInToken(ctx context.Context, memberID, sessionID int) (string, error) {
	args := m.Called(ctx, memberID, sessionID)
	return args.String(0), args.Error(1)
}

// setMember injects the authenticated member the way the auth middleware
// would.
func setMember(memberID int) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("member_id", memberID)
		c.Next()
	}
}

func setupRouter(svc Service, memberID int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(svc)

	router := gin.New()
	router.Use(setMember(memberID))
	router.POST("/sessions/:sessionID/book", h.BookSession)
	router.GET("/sessions/:sessionID/eligibility", h.CheckEligibility)
	router.POST("/bookings/:bookingID/cancel", h.CancelBooking)
	router.GET("/bookings", h.ListMyBookings)
	router.POST("/staff/bookings/:bookingID/checkin", h.CheckIn)
	router.POST("/staff/bookings/:bookingID/no-show", h.MarkNoShow)
	router.POST("/staff/checkin/qr", h.CheckInWithQR)
	router.GET("/staff/sessions/:sessionID/roster", h.GetRoster)
	router.GET("/staff/sessions/:sessionID/waitlist", h.GetWaitlist)

	return router
}

func TestBookSession_Created(t *testing.T) {
	svc := new(MockService)
	svc.On("CreateBooking", mock.Anything, 1, 2).Return(&Booking{
		ID:        10,
		MemberID:  1,
		SessionID: 2,
		Status:    StatusBooked,
	}, nil)

	router := setupRouter(svc, 1)

	req := httptest.NewRequest("POST", "/sessions/2/book", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var b Booking
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))
	assert.Equal(t, StatusBooked, b.Status)
}

func TestBookSession_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantReason string
	}{
		{"session not found", ErrSessionNotFound, http.StatusNotFound, ""},
		{"already booked", ErrAlreadyBooked, http.StatusConflict, "ALREADY_BOOKED"},
		{"session closed", ErrSessionClosed, http.StatusConflict, "SESSION_CLOSED"},
		{"no membership", ErrNoValidMembership, http.StatusForbidden, "NO_VALID_MEMBERSHIP"},
		{"no credits", ErrNoCreditsRemaining, http.StatusForbidden, "NO_CREDITS_REMAINING"},
		{"session full", ErrSessionFull, http.StatusConflict, "SESSION_FULL_RACE_LOST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			svc.On("CreateBooking", mock.Anything, 1, 2).Return(nil, tt.err)

			router := setupRouter(svc, 1)

			req := httptest.NewRequest("POST", "/sessions/2/book", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantReason != "" {
				assert.Contains(t, w.Body.String(), tt.wantReason)
			}
		})
	}
}

func TestBookSession_BadSessionID(t *testing.T) {
	router := setupRouter(new(MockService), 1)

	req := httptest.NewRequest("POST", "/sessions/abc/book", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckEligibility(t *testing.T) {
	svc := new(MockService)
	svc.On("CheckEligibility", mock.Anything, 1, 2).Return(&Eligibility{
		Eligible: false,
		Reason:   "NO_CREDITS_REMAINING",
	}, nil)

	router := setupRouter(svc, 1)

	req := httptest.NewRequest("GET", "/sessions/2/eligibility", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "NO_CREDITS_REMAINING")
}

func TestCancelBooking_Forbidden(t *testing.T) {
	svc := new(MockService)
	svc.On("CancelBooking", mock.Anything, 2, 10).Return(nil, ErrForbidden)

	router := setupRouter(svc, 2)

	req := httptest.NewRequest("POST", "/bookings/10/cancel", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCheckInWithQR_InvalidToken(t *testing.T) {
	svc := new(MockService)
	svc.On("CheckInWithQR", mock.Anything, "bad-token").Return(nil, ErrInvalidQRCode)

	router := setupRouter(svc, 1)

	body := bytes.NewBufferString(`{"token": "bad-token"}`)
	req := httptest.NewRequest("POST", "/staff/checkin/qr", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_QR_CODE")
}

func TestCheckInWithQR_MissingToken(t *testing.T) {
	router := setupRouter(new(MockService), 1)

	body := bytes.NewBufferString(`{}`)
	req := httptest.NewRequest("POST", "/staff/checkin/qr", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMarkNoShow_Conflict(t *testing.T) {
	svc := new(MockService)
	svc.On("MarkNoShow", mock.Anything, 10).Return(nil, ErrStateConflict)

	router := setupRouter(svc, 1)

	req := httptest.NewRequest("POST", "/staff/bookings/10/no-show", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetRoster(t *testing.T) {
	svc := new(MockService)
	svc.On("GetRoster", mock.Anything, 2).Return([]RosterEntry{
		{BookingID: 10, MemberID: 1, MemberName: "Alice", Status: StatusCheckedIn},
		{BookingID: 12, MemberID: 4, MemberName: "Bob", Status: StatusBooked},
	}, nil)

	router := setupRouter(svc, 1)

	req := httptest.NewRequest("GET", "/staff/sessions/2/roster", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var roster []RosterEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &roster))
	require.Len(t, roster, 2)
	assert.Equal(t, "Alice", roster[0].MemberName)
}
