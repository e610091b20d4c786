package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"telemed-platform/internal/appointments"
	"telemed-platform/internal/auth"
	"telemed-platform/internal/config"

	"github.com/gin-gonic/gin"
)

func newTestHandlers(t *testing.T) Handlers {
	t.Helper()
	m, err := auth.NewManager(config.AuthConfig{
		JWTSecret:       "0123456789abcdef0123456789abcdef",
		JWTIssuer:       "telemed-test",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("auth manager: %v", err)
	}

	repo := appointments.NewMemoryRepo()
	repo.Put(appointments.Appointment{
		ID:        10,
		PatientID: 1,
		DoctorID:  2,
		Status:    appointments.StatusConfirmed,
	})
	return Handlers{Auth: m, Gate: appointments.NewGate(repo, nil, 0)}
}

func newTestRouter(h Handlers, userID int64, role string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/v1/auth/login", h.Login)
	r.GET("/v1/appointments/:id", func(c *gin.Context) {
		if userID > 0 {
			ctx := auth.WithIdentity(c.Request.Context(), userID, role)
			c.Request = c.Request.WithContext(ctx)
		}
		h.GetAppointment(c)
	})
	return r
}

func TestLoginIssuesTokenPair(t *testing.T) {
	h := newTestHandlers(t)
	r := newTestRouter(h, 0, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login",
		strings.NewReader(`{"user_id":1,"role":"patient"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var out map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out["access_token"] == "" || out["refresh_token"] == "" {
		t.Fatalf("expected token pair, got %v", out)
	}
}

func TestLoginRejectsUnknownRole(t *testing.T) {
	h := newTestHandlers(t)
	r := newTestRouter(h, 0, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login",
		strings.NewReader(`{"user_id":1,"role":"router"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetAppointmentParticipant(t *testing.T) {
	h := newTestHandlers(t)
	r := newTestRouter(h, 1, "patient")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/appointments/10", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var appt appointments.Appointment
	if err := json.Unmarshal(w.Body.Bytes(), &appt); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if appt.ID != 10 || appt.DoctorID != 2 {
		t.Fatalf("unexpected appointment %+v", appt)
	}
}

func TestGetAppointmentOutsiderForbidden(t *testing.T) {
	h := newTestHandlers(t)
	r := newTestRouter(h, 99, "patient")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/appointments/10", nil))
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestGetAppointmentAdminBypass(t *testing.T) {
	h := newTestHandlers(t)
	r := newTestRouter(h, 99, "admin")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/appointments/10", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}
