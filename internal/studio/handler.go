package studio

import (
	"errors"
	"net/http"
	"strconv"

	"studiofit/internal/api"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrStudioNotFound), errors.Is(err, ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrSessionInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrInvalidSessionTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
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

// CreateStudio godoc
// @Summary      Create studio
// @Tags         studios
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      CreateStudioRequest  true  "Studio data"
// @Success      201      {object}  Studio
// @Failure      400      {object}  gin.H
// @Failure      500      {object}  gin.H
// @Router       /admin/studios [post]
func (h *Handler) CreateStudio(c *gin.Context) {
	var req CreateStudioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.BindError(c, err)
		return
	}

	studio, err := h.service.CreateStudio(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, studio)
}

// ListStudios godoc
// @Summary      List studios
// @Tags         studios
// @Produce      json
// @Success      200  {array}   Studio
// @Failure      500  {object}  gin.H
// @Router       /studios [get]
func (h *Handler) ListStudios(c *gin.Context) {
	studios, err := h.service.GetAllStudios(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch studios"})
		return
	}

	c.JSON(http.StatusOK, studios)
}

// GetStudio godoc
// @Summary      Get studio
// @Tags         studios
// @Produce      json
// @Param        studioID  path      int  true  "Studio ID"
// @Success      200       {object}  Studio
// @Failure      404       {object}  gin.H
// @Router       /studios/{studioID} [get]
func (h *Handler) GetStudio(c *gin.Context) {
	studioID, ok := pathID(c, "studioID")
	if !ok {
		return
	}

	studio, err := h.service.GetStudioByID(c.Request.Context(), studioID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, studio)
}

// CreateSession godoc
// @Summary      Create class session
// @Tags         sessions
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        studioID  path      int                   true  "Studio ID"
// @Param        request   body      CreateSessionRequest  true  "Session data"
// @Success      201       {object}  ClassSession
// @Failure      400       {object}  gin.H
// @Failure      404       {object}  gin.H
// @Router       /admin/studios/{studioID}/sessions [post]
func (h *Handler) CreateSession(c *gin.Context) {
	studioID, ok := pathID(c, "studioID")
	if !ok {
		return
	}

	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.BindError(c, err)
		return
	}

	session, err := h.service.CreateSession(c.Request.Context(), studioID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, session)
}

// ListSessions godoc
// @Summary      List class sessions
// @Description  Lists the studio's sessions with seat and waitlist availability.
// @Tags         sessions
// @Produce      json
// @Param        studioID  path      int     true   "Studio ID"
// @Param        upcoming  query     bool    false  "Only upcoming sessions"
// @Success      200       {array}   SessionWithAvailability
// @Failure      404       {object}  gin.H
// @Router       /studios/{studioID}/sessions [get]
func (h *Handler) ListSessions(c *gin.Context) {
	studioID, ok := pathID(c, "studioID")
	if !ok {
		return
	}

	onlyUpcoming := c.Query("upcoming") == "true"

	sessions, err := h.service.GetSessions(c.Request.Context(), studioID, onlyUpcoming)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, sessions)
}

// GetSession godoc
// @Summary      Get class session
// @Tags         sessions
// @Produce      json
// @Param        sessionID  path      int  true  "Class session ID"
// @Success      200        {object}  ClassSession
// @Failure      404        {object}  gin.H
// @Router       /sessions/{sessionID} [get]
func (h *Handler) GetSession(c *gin.Context) {
	sessionID, ok := pathID(c, "sessionID")
	if !ok {
		return
	}

	session, err := h.service.GetSessionByID(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// StartSession godoc
// @Summary      Start class session
// @Tags         sessions
// @Security     BearerAuth
// @Produce      json
// @Param        sessionID  path      int  true  "Class session ID"
// @Success      200        {object}  gin.H
// @Failure      404        {object}  gin.H
// @Failure      409        {object}  gin.H
// @Router       /staff/sessions/{sessionID}/start [post]
func (h *Handler) StartSession(c *gin.Context) {
	sessionID, ok := pathID(c, "sessionID")
	if !ok {
		return
	}

	if err := h.service.StartSession(c.Request.Context(), sessionID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Session started"})
}

// CompleteSession godoc
// @Summary      Complete class session
// @Tags         sessions
// @Security     BearerAuth
// @Produce      json
// @Param        sessionID  path      int  true  "Class session ID"
// @Success      200        {object}  gin.H
// @Failure      404        {object}  gin.H
// @Failure      409        {object}  gin.H
// @Router       /staff/sessions/{sessionID}/complete [post]
func (h *Handler) CompleteSession(c *gin.Context) {
	sessionID, ok := pathID(c, "sessionID")
	if !ok {
		return
	}

	if err := h.service.CompleteSession(c.Request.Context(), sessionID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Session completed"})
}

// CancelSession godoc
// @Summary      Cancel class session
// @Description  Cancels the session, cancels all active bookings, refunds consumed credits and notifies affected members.
// @Tags         sessions
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        sessionID  path      int                   true  "Class session ID"
// @Param        request    body      CancelSessionRequest  true  "Cancellation reason"
// @Success      200        {object}  gin.H
// @Failure      400        {object}  gin.H
// @Failure      404        {object}  gin.H
// @Failure      409        {object}  gin.H
// @Router       /admin/sessions/{sessionID}/cancel [post]
func (h *Handler) CancelSession(c *gin.Context) {
	sessionID, ok := pathID(c, "sessionID")
	if !ok {
		return
	}

	var req CancelSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.BindError(c, err)
		return
	}

	if err := h.service.CancelSession(c.Request.Context(), sessionID, req.Reason); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Session cancelled"})
}
