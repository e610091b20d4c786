package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to patients or
//   doctors by default.
// - Callers should treat audit logging as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogCallStarted records that a participant published an offer for a session.
func (s *Service) LogCallStarted(ctx context.Context, sessionID, actorUserID int64, actorRole string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeCallStarted,
		SessionID:   sessionID,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		Message:     "call offer published",
	})
}

// LogCallEnded records that a participant published an end signal.
func (s *Service) LogCallEnded(ctx context.Context, sessionID, actorUserID int64, actorRole string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeCallEnded,
		SessionID:   sessionID,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		Message:     "call end published",
	})
}

// LogSessionCleared records a bulk clear of a session's signal log.
func (s *Service) LogSessionCleared(ctx context.Context, sessionID, actorUserID int64, actorRole string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeSessionCleared,
		SessionID:   sessionID,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		Message:     "signal log cleared",
	})
}
