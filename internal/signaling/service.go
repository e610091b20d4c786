package signaling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"telemed-platform/internal/appointments"
	"telemed-platform/internal/audit"
	"telemed-platform/pkg/logger"
	"telemed-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
)

var (
	ErrInvalidArgument = errors.New("signaling: invalid argument")
	ErrSessionBusy     = errors.New("signaling: too many concurrent call attempts")
)

// Service is the relay: typed operations over the signal store, plus the
// checks the store itself does not know about (participant membership, the
// confirmed-appointment gate, the per-session attempt slot).
//
// The relay is deliberately stateless about consumers: no per-consumer
// cursors exist. Clients poll, diff against their own handled-id set, and a
// crashed client recovers by replaying the log from zero.
type Service struct {
	repo  Repository
	gate  *appointments.Gate
	audit *audit.Service

	rdb     *redis.Client // nil disables the attempt slot
	slotTTL time.Duration
}

func NewService(repo Repository, gate *appointments.Gate, auditSvc *audit.Service, rdb *redis.Client, slotTTL time.Duration) *Service {
	if slotTTL <= 0 {
		slotTTL = 2 * time.Minute
	}
	return &Service{repo: repo, gate: gate, audit: auditSvc, rdb: rdb, slotTTL: slotTTL}
}

func slotKey(sessionID int64) string { return fmt.Sprintf("call:attempt:%d", sessionID) }

// Publish appends one signal to the session log.
//
// Offers carry extra weight: they are the call-start action, so the
// confirmed-appointment gate is re-checked against storage here (not only at
// render time) and an attempt slot is acquired. Two slots exist per session
// so that simultaneous dial from both parties is not rejected at the relay;
// the clients resolve that race themselves.
func (s *Service) Publish(ctx context.Context, sessionID, senderID int64, senderRole string, typ SignalType, payload string) (Signal, error) {
	if sessionID <= 0 || senderID <= 0 || !typ.Valid() {
		return Signal{}, ErrInvalidArgument
	}

	if _, err := s.gate.AuthorizeParticipant(ctx, sessionID, senderID); err != nil {
		return Signal{}, err
	}

	if typ == SignalTypeOffer {
		if err := s.gate.ConfirmCallStart(ctx, sessionID); err != nil {
			return Signal{}, err
		}
		if s.rdb != nil {
			ok, err := utils.AcquireSlot(ctx, s.rdb, slotKey(sessionID), 2, s.slotTTL)
			if err != nil {
				// Redis being down must not take calls down with it.
				logger.From(ctx).Warn("attempt slot acquire failed", "session_id", sessionID, "err", err)
			} else if !ok {
				return Signal{}, ErrSessionBusy
			}
		}
	}

	out, err := s.repo.Append(ctx, Signal{
		SessionID: sessionID,
		SenderID:  senderID,
		Type:      typ,
		Payload:   payload,
	})
	if err != nil {
		return Signal{}, err
	}

	// Audit is best-effort; never fail a publish over it.
	if s.audit != nil {
		switch typ {
		case SignalTypeOffer:
			_ = s.audit.LogCallStarted(ctx, sessionID, senderID, senderRole)
		case SignalTypeEnd:
			_ = s.audit.LogCallEnded(ctx, sessionID, senderID, senderRole)
		}
	}
	return out, nil
}

// ListSince returns the session's signals with id > afterID, ascending.
// afterID = 0 returns the full log.
func (s *Service) ListSince(ctx context.Context, sessionID, userID, afterID int64) ([]Signal, error) {
	if sessionID <= 0 || userID <= 0 || afterID < 0 {
		return nil, ErrInvalidArgument
	}
	if _, err := s.gate.AuthorizeParticipant(ctx, sessionID, userID); err != nil {
		return nil, err
	}
	return s.repo.ListSession(ctx, sessionID, afterID)
}

// Clear removes every signal for the session and releases its attempt slots.
// Idempotent; used before a fresh attempt and after a call ends.
func (s *Service) Clear(ctx context.Context, sessionID, userID int64, userRole string) error {
	if sessionID <= 0 || userID <= 0 {
		return ErrInvalidArgument
	}
	if _, err := s.gate.AuthorizeParticipant(ctx, sessionID, userID); err != nil {
		return err
	}
	if err := s.repo.Clear(ctx, sessionID); err != nil {
		return err
	}
	if s.rdb != nil {
		if err := utils.ReleaseSlots(ctx, s.rdb, slotKey(sessionID)); err != nil {
			logger.From(ctx).Warn("attempt slot release failed", "session_id", sessionID, "err", err)
		}
	}
	if s.audit != nil {
		_ = s.audit.LogSessionCleared(ctx, sessionID, userID, userRole)
	}
	return nil
}

// Session returns the appointment backing the session, for the call view
// header. The caller must be a participant.
func (s *Service) Session(ctx context.Context, sessionID, userID int64) (appointments.Appointment, error) {
	if sessionID <= 0 || userID <= 0 {
		return appointments.Appointment{}, ErrInvalidArgument
	}
	return s.gate.AuthorizeParticipant(ctx, sessionID, userID)
}
