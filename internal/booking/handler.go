package booking

import (
	"errors"
	"net/http"
	"strconv"

	"studiofit/internal/api"
	"studiofit/internal/auth"
	"studiofit/internal/checkin"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// respondError maps the booking error taxonomy onto HTTP statuses.
// Eligibility rejections surface verbatim; concurrency conflicts come back
// as 409 so clients know a retry may behave differently.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrBookingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrAlreadyBooked):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "reason": ReasonAlreadyBooked})
	case errors.Is(err, ErrSessionClosed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "reason": ReasonSessionClosed})
	case errors.Is(err, ErrNoValidMembership):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error(), "reason": "NO_VALID_MEMBERSHIP"})
	case errors.Is(err, ErrNoCreditsRemaining):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error(), "reason": "NO_CREDITS_REMAINING"})
	case errors.Is(err, ErrSessionFull):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "reason": ReasonSessionFullRaceLost})
	case errors.Is(err, ErrStateConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ErrInvalidQRCode), errors.Is(err, checkin.ErrInvalidToken):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "reason": "INVALID_QR_CODE"})
	case errors.Is(err, ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

func pathID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
}

// BookSession godoc
// @Summary      Book class session
// @Description  Books a seat in the session, or joins the waitlist when full.
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        sessionID  path      int  true  "Class session ID"
// @Success      201        {object}  Booking
// @Failure      400        {object}  gin.H
// @Failure      403        {object}  gin.H
// @Failure      404        {object}  gin.H
// @Failure      409        {object}  gin.H
// @Failure      500        {object}  gin.H
// @Router       /sessions/{sessionID}/book [post]
func (h *Handler) BookSession(c *gin.Context) {
	memberID, exists := auth.GetMemberID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Member not authenticated"})
		return
	}

	sessionID, ok := pathID(c, "sessionID")
	if !ok {
		return
	}

	b, err := h.service.CreateBooking(c.Request.Context(), memberID, sessionID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, b)
}

// CheckEligibility godoc
// @Summary      Check booking eligibility
// @Description  Read-only pre-check; the booking itself revalidates everything.
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        sessionID  path      int  true  "Class session ID"
// @Success      200        {object}  Eligibility
// @Failure      400        {object}  gin.H
// @Failure      404        {object}  gin.H
// @Router       /sessions/{sessionID}/eligibility [get]
func (h *Handler) CheckEligibility(c *gin.Context) {
	memberID, exists := auth.GetMemberID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Member not authenticated"})
		return
	}

	sessionID, ok := pathID(c, "sessionID")
	if !ok {
		return
	}

	eligibility, err := h.service.CheckEligibility(c.Request.Context(), memberID, sessionID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, eligibility)
}

// CancelBooking godoc
// @Summary      Cancel booking
// @Description  Cancels the member's booking and promotes the waitlist head if a seat was freed.
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        bookingID  path      int  true  "Booking ID"
// @Success      200        {object}  CancelResult
// @Failure      400        {object}  gin.H
// @Failure      403        {object}  gin.H
// @Failure      404        {object}  gin.H
// @Failure      409        {object}  gin.H
// @Router       /bookings/{bookingID}/cancel [post]
func (h *Handler) CancelBooking(c *gin.Context) {
	memberID, exists := auth.GetMemberID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Member not authenticated"})
		return
	}

	bookingID, ok := pathID(c, "bookingID")
	if !ok {
		return
	}

	result, err := h.service.CancelBooking(c.Request.Context(), memberID, bookingID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListMyBookings godoc
// @Summary      List my bookings
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   BookingWithSession
// @Failure      500  {object}  gin.H
// @Router       /bookings [get]
func (h *Handler) ListMyBookings(c *gin.Context) {
	memberID, exists := auth.GetMemberID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Member not authenticated"})
		return
	}

	bookings, err := h.service.GetMemberBookings(c.Request.Context(), memberID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch bookings"})
		return
	}

	c.JSON(http.StatusOK, bookings)
}

// GetCheckInQR godoc
// @Summary      Check-in QR code
// @Description  Returns a QR code PNG encoding the member's check-in token for the session.
// @Tags         bookings
// @Security     BearerAuth
// @Produce      image/png
// @Param        sessionID  path      int  true  "Class session ID"
// @Success      200        {string}  binary
// @Failure      404        {object}  gin.H
// @Router       /sessions/{sessionID}/qr [get]
func (h *Handler) GetCheckInQR(c *gin.Context) {
	memberID, exists := auth.GetMemberID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Member not authenticated"})
		return
	}

	sessionID, ok := pathID(c, "sessionID")
	if !ok {
		return
	}

	token, err := h.service.IssueCheckInToken(c.Request.Context(), memberID, sessionID)
	if err != nil {
		respondError(c, err)
		return
	}

	img, err := checkin.RenderPNG(token, 256)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render QR code"})
		return
	}

	c.Data(http.StatusOK, "image/png", img)
}

// CheckIn godoc
// @Summary      Manual check-in
// @Description  Staff-initiated check-in. Idempotent on repeated calls.
// @Tags         checkin
// @Security     BearerAuth
// @Produce      json
// @Param        bookingID  path      int  true  "Booking ID"
// @Success      200        {object}  Booking
// @Failure      400        {object}  gin.H
// @Failure      404        {object}  gin.H
// @Failure      409        {object}  gin.H
// @Router       /staff/bookings/{bookingID}/checkin [post]
func (h *Handler) CheckIn(c *gin.Context) {
	bookingID, ok := pathID(c, "bookingID")
	if !ok {
		return
	}

	b, err := h.service.CheckIn(c.Request.Context(), bookingID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, b)
}

// CheckInWithQR godoc
// @Summary      QR check-in
// @Description  Resolves a scanned QR token and checks the member in. Double scans return the same record.
// @Tags         checkin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      CheckInQRRequest  true  "Scanned token"
// @Success      200      {object}  Booking
// @Failure      400      {object}  gin.H
// @Failure      404      {object}  gin.H
// @Failure      409      {object}  gin.H
// @Router       /staff/checkin/qr [post]
func (h *Handler) CheckInWithQR(c *gin.Context) {
	var req CheckInQRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.BindError(c, err)
		return
	}

	b, err := h.service.CheckInWithQR(c.Request.Context(), req.Token)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "reason": "NO_BOOKING_FOUND"})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, b)
}

// MarkNoShow godoc
// @Summary      Mark no-show
// @Description  Marks a booked member as a no-show. The seat stays occupied.
// @Tags         checkin
// @Security     BearerAuth
// @Produce      json
// @Param        bookingID  path      int  true  "Booking ID"
// @Success      200        {object}  Booking
// @Failure      404        {object}  gin.H
// @Failure      409        {object}  gin.H
// @Router       /staff/bookings/{bookingID}/no-show [post]
func (h *Handler) MarkNoShow(c *gin.Context) {
	bookingID, ok := pathID(c, "bookingID")
	if !ok {
		return
	}

	b, err := h.service.MarkNoShow(c.Request.Context(), bookingID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, b)
}

// GetRoster godoc
// @Summary      Session roster
// @Tags         staff
// @Security     BearerAuth
// @Produce      json
// @Param        sessionID  path      int  true  "Class session ID"
// @Success      200        {array}   RosterEntry
// @Failure      400        {object}  gin.H
// @Failure      500        {object}  gin.H
// @Router       /staff/sessions/{sessionID}/roster [get]
func (h *Handler) GetRoster(c *gin.Context) {
	sessionID, ok := pathID(c, "sessionID")
	if !ok {
		return
	}

	roster, err := h.service.GetRoster(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch roster"})
		return
	}

	c.JSON(http.StatusOK, roster)
}

// GetWaitlist godoc
// @Summary      Session waitlist
// @Tags         staff
// @Security     BearerAuth
// @Produce      json
// @Param        sessionID  path      int  true  "Class session ID"
// @Success      200        {array}   WaitlistEntry
// @Failure      400        {object}  gin.H
// @Failure      500        {object}  gin.H
// @Router       /staff/sessions/{sessionID}/waitlist [get]
func (h *Handler) GetWaitlist(c *gin.Context) {
	sessionID, ok := pathID(c, "sessionID")
	if !ok {
		return
	}

	waitlist, err := h.service.GetWaitlist(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch waitlist"})
		return
	}

	c.JSON(http.StatusOK, waitlist)
}

// PromoteFromWaitlist godoc
// @Summary      Promote waitlisted booking
// @Description  Staff override that moves a specific waitlisted member into a free seat.
// @Tags         staff
// @Security     BearerAuth
// @Produce      json
// @Param        sessionID  path      int  true  "Class session ID"
// @Param        bookingID  path      int  true  "Waitlisted booking ID"
// @Success      200        {object}  Booking
// @Failure      404        {object}  gin.H
// @Failure      409        {object}  gin.H
// @Router       /staff/sessions/{sessionID}/waitlist/{bookingID}/promote [post]
func (h *Handler) PromoteFromWaitlist(c *gin.Context) {
	sessionID, ok := pathID(c, "sessionID")
	if !ok {
		return
	}
	bookingID, ok := pathID(c, "bookingID")
	if !ok {
		return
	}

	b, err := h.service.PromoteFromWaitlist(c.Request.Context(), sessionID, bookingID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, b)
}
