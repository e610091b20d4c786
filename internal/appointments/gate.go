package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrNotConfirmed   = errors.New("appointments: not confirmed")
	ErrNotParticipant = errors.New("appointments: not a participant")
)

// Gate answers the two questions the signaling layer asks of the scheduling
// subsystem: is this caller a participant, and is the appointment confirmed.
//
// Reads through a short-TTL Redis cache to keep the 1s/3s poll ticks off
// Postgres. Call-start checks bypass the cache: the gate condition must be
// re-checked at call-start time, not only at render time.
type Gate struct {
	repo Repository
	rdb  *redis.Client // nil disables caching
	ttl  time.Duration
}

func NewGate(repo Repository, rdb *redis.Client, ttl time.Duration) *Gate {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Gate{repo: repo, rdb: rdb, ttl: ttl}
}

func cacheKey(id int64) string { return fmt.Sprintf("appt:%d", id) }

// Appointment returns the appointment, possibly from cache.
func (g *Gate) Appointment(ctx context.Context, id int64) (Appointment, error) {
	if g.rdb != nil {
		if raw, err := g.rdb.Get(ctx, cacheKey(id)).Bytes(); err == nil {
			var a Appointment
			if json.Unmarshal(raw, &a) == nil && a.ID == id {
				return a, nil
			}
		}
	}

	a, err := g.repo.Get(ctx, id)
	if err != nil {
		return Appointment{}, err
	}

	if g.rdb != nil {
		if raw, err := json.Marshal(a); err == nil {
			// Cache failures are ignored; the source of truth answered.
			_ = g.rdb.Set(ctx, cacheKey(id), raw, g.ttl).Err()
		}
	}
	return a, nil
}

// AuthorizeParticipant ensures userID belongs to the appointment and returns it.
func (g *Gate) AuthorizeParticipant(ctx context.Context, id, userID int64) (Appointment, error) {
	a, err := g.Appointment(ctx, id)
	if err != nil {
		return Appointment{}, err
	}
	if !a.Participant(userID) {
		return Appointment{}, ErrNotParticipant
	}
	return a, nil
}

// ConfirmCallStart re-checks, against the store and not the cache, that the
// appointment is confirmed. Called when an offer is published.
func (g *Gate) ConfirmCallStart(ctx context.Context, id int64) error {
	a, err := g.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if a.Status != StatusConfirmed {
		return ErrNotConfirmed
	}
	return nil
}
