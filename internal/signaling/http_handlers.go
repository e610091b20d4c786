package signaling

import (
	"errors"
	"net/http"
	"strconv"

	"telemed-platform/internal/appointments"
	"telemed-platform/internal/auth"

	"github.com/gin-gonic/gin"
)

// Handlers groups the relay's HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call the service, return JSON.

type Handlers struct {
	Svc *Service
}

type publishRequest struct {
	Type    SignalType `json:"signal_type"`
	Payload string     `json:"signal_data"`
}

func sessionID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return 0, false
	}
	return id, true
}

func identity(c *gin.Context) (int64, string, bool) {
	uid, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "identity required"})
		return 0, "", false
	}
	role, err := auth.Role(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "identity required"})
		return 0, "", false
	}
	return uid, role, true
}

func abortWithServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid argument"})
	case errors.Is(err, appointments.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, appointments.ErrNotParticipant):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "not a participant"})
	case errors.Is(err, appointments.ErrNotConfirmed):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "appointment not confirmed"})
	case errors.Is(err, ErrSessionBusy):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "call attempt already in flight"})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
	}
}

// Publish handles POST /v1/sessions/:id/signals.
func (h Handlers) Publish(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	uid, role, ok := identity(c)
	if !ok {
		return
	}

	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if !req.Type.Valid() {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid signal_type"})
		return
	}

	sig, err := h.Svc.Publish(c.Request.Context(), id, uid, role, req.Type, req.Payload)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sig)
}

// List handles GET /v1/sessions/:id/signals?after=N.
func (h Handlers) List(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	uid, _, ok := identity(c)
	if !ok {
		return
	}

	var after int64
	if v := c.Query("after"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid after cursor"})
			return
		}
		after = n
	}

	sigs, err := h.Svc.ListSince(c.Request.Context(), id, uid, after)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	if sigs == nil {
		sigs = []Signal{}
	}
	c.JSON(http.StatusOK, gin.H{"signals": sigs})
}

// Clear handles DELETE /v1/sessions/:id/signals.
func (h Handlers) Clear(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	uid, role, ok := identity(c)
	if !ok {
		return
	}

	if err := h.Svc.Clear(c.Request.Context(), id, uid, role); err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetSession handles GET /v1/sessions/:id, the call view header data.
func (h Handlers) GetSession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	uid, _, ok := identity(c)
	if !ok {
		return
	}

	appt, err := h.Svc.Session(c.Request.Context(), id, uid)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}
