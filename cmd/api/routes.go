package main

import (
	"telemed-platform/internal/appointments"
	"telemed-platform/internal/auth"
	"telemed-platform/internal/httpapi"
	"telemed-platform/internal/rbac"
	"telemed-platform/internal/signaling"

	"github.com/gin-gonic/gin"
)

type routeDeps struct {
	auth      *auth.Manager
	gate      *appointments.Gate
	signaling *signaling.Service
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, deps routeDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := httpapi.Handlers{Auth: deps.auth, Gate: deps.gate}
	r.POST("/v1/auth/login", api.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(auth.RequireAccessToken(deps.auth))
	{
		v1.GET("/me", func(c *gin.Context) {
			uid, _ := auth.UserID(c.Request.Context())
			role, _ := auth.Role(c.Request.Context())
			c.JSON(200, gin.H{"user_id": uid, "role": role})
		})

		v1.GET("/appointments/:id", api.GetAppointment)

		// Call-session signaling. Only the appointment's participants may
		// publish or read; the service enforces participant checks on top
		// of the role gate here.
		h := signaling.Handlers{Svc: deps.signaling}
		sessions := v1.Group("/sessions")
		sessions.Use(rbac.RequireAnyRole(rbac.RolePatient, rbac.RoleDoctor))
		{
			sessions.GET("/:id", h.GetSession)
			sessions.POST("/:id/signals", h.Publish)
			sessions.GET("/:id/signals", h.List)
			sessions.DELETE("/:id/signals", h.Clear)
		}
	}
}
