package signaling

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory signal store useful for tests.
// It is not intended for production use.

type MemoryRepo struct {
	mu     sync.Mutex
	nextID int64
	logs   map[int64][]Signal

	// FailNext makes the next mutating call return this error once.
	FailNext error

	clock func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		nextID: 1,
		logs:   make(map[int64][]Signal),
		clock:  time.Now,
	}
}

func (r *MemoryRepo) takeFailure() error {
	err := r.FailNext
	r.FailNext = nil
	return err
}

func (r *MemoryRepo) Append(ctx context.Context, s Signal) (Signal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return Signal{}, err
	}

	s.ID = r.nextID
	r.nextID++
	s.CreatedAt = r.clock().UTC()
	r.logs[s.SessionID] = append(r.logs[s.SessionID], s)
	return s, nil
}

func (r *MemoryRepo) ListSession(ctx context.Context, sessionID, afterID int64) ([]Signal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return nil, err
	}

	var out []Signal
	for _, s := range r.logs[sessionID] {
		if s.ID > afterID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *MemoryRepo) Clear(ctx context.Context, sessionID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return err
	}
	delete(r.logs, sessionID)
	return nil
}
