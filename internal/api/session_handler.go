package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fawzii0x3/breath-school-api/internal/core"
	"github.com/fawzii0x3/breath-school-api/internal/models"
)

// SessionHandler handles API endpoints related to breathing sessions.
type SessionHandler struct {
	sessionService core.SessionService
	logger         *zap.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(ss core.SessionService, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{sessionService: ss, logger: logger}
}

// CreateSession handles POST /sessions.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req models.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	session, err := h.sessionService.CreateSession(c.Request.Context(), user, req)
	if err != nil {
		mapContentErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// ListSessions handles GET /sessions.
func (h *SessionHandler) ListSessions(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	sessions, err := h.sessionService.ListSessions(c.Request.Context(), user)
	if err != nil {
		mapContentErrorToStatus(c, h.logger, err)
		return
	}
	if sessions == nil {
		sessions = []*models.BreathingSession{}
	}
	c.JSON(http.StatusOK, sessions)
}

// CompleteSession handles PUT /sessions/:sessionId/complete.
func (h *SessionHandler) CompleteSession(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	session, err := h.sessionService.CompleteSession(c.Request.Context(), user, c.Param("sessionId"))
	if err != nil {
		mapContentErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, session)
}
