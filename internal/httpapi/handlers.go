package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"telemed-platform/internal/appointments"
	"telemed-platform/internal/auth"
	"telemed-platform/internal/rbac"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth *auth.Manager
	Gate *appointments.Gate
}

// --- Auth ---

type loginRequest struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
		return
	}
	if !rbac.IsParticipantRole(req.Role) && !rbac.IsAdmin(req.Role) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		return
	}

	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

// --- Appointments ---

// GetAppointment returns one appointment. Participants see their own;
// admins see any.
func (h Handlers) GetAppointment(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid appointment id"})
		return
	}

	ctx := c.Request.Context()
	userID, err := auth.UserID(ctx)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	role, _ := auth.Role(ctx)

	var appt appointments.Appointment
	if rbac.IsAdmin(role) {
		appt, err = h.Gate.Appointment(ctx, id)
	} else {
		appt, err = h.Gate.AuthorizeParticipant(ctx, id, userID)
	}
	switch {
	case err == nil:
		c.JSON(http.StatusOK, appt)
	case errors.Is(err, appointments.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "appointment not found"})
	case errors.Is(err, appointments.ErrNotParticipant):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "not a participant"})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
	}
}
