package call

import (
	"context"
	"log/slog"
	"time"

	"telemed-platform/internal/signaling"
)

// IncomingCall is handed to the watcher callback when a fresh offer from the
// other participant shows up in the session log.
type IncomingCall struct {
	SessionID int64
	From      int64
	Offer     signaling.Signal
}

type WatcherConfig struct {
	Relay     Relay
	SessionID int64
	SelfID    int64
	Interval  time.Duration
	Log       *slog.Logger

	// OnIncoming fires once per detected call. The watcher keeps running;
	// callers that open a call view should cancel the watcher's context.
	OnIncoming func(IncomingCall)
}

// Watcher polls a session log in the background and detects incoming offers
// while no call view is open.
//
// It keeps its own handled set, independent of any Session. On its first
// tick it marks everything already present without ringing, so a relaunch
// does not resurrect old offers. When an offer is detected, the whole
// fetched batch is marked so the companion signals of that attempt do not
// ring a second time.
type Watcher struct {
	relay      Relay
	sessionID  int64
	selfID     int64
	interval   time.Duration
	log        *slog.Logger
	onIncoming func(IncomingCall)

	handled map[int64]struct{}
	primed  bool
}

func NewWatcher(cfg WatcherConfig) *Watcher {
	if cfg.Interval <= 0 {
		cfg.Interval = 3 * time.Second
	}
	return &Watcher{
		relay:      cfg.Relay,
		sessionID:  cfg.SessionID,
		selfID:     cfg.SelfID,
		interval:   cfg.Interval,
		log:        cfg.Log,
		onIncoming: cfg.OnIncoming,
		handled:    make(map[int64]struct{}),
	}
}

// Run polls until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick fetches the log once and fires OnIncoming for at most one fresh
// offer. Fetch failures are transient and retried on the next tick.
func (w *Watcher) Tick(ctx context.Context) {
	sigs, err := w.relay.ListSince(ctx, w.sessionID, 0)
	if err != nil {
		w.log.Debug("watch poll failed", "session_id", w.sessionID, "error", err)
		return
	}

	if !w.primed {
		for _, sig := range sigs {
			w.handled[sig.ID] = struct{}{}
		}
		w.primed = true
		return
	}

	var incoming *signaling.Signal
	for i, sig := range sigs {
		if _, seen := w.handled[sig.ID]; seen {
			continue
		}
		if sig.Type == signaling.SignalTypeOffer && sig.SenderID != w.selfID {
			incoming = &sigs[i]
			break
		}
	}
	if incoming == nil {
		return
	}

	// Swallow the whole batch, then ring.
	for _, sig := range sigs {
		w.handled[sig.ID] = struct{}{}
	}
	w.log.Info("incoming call detected", "session_id", w.sessionID, "from", incoming.SenderID)
	w.onIncoming(IncomingCall{
		SessionID: w.sessionID,
		From:      incoming.SenderID,
		Offer:     *incoming,
	})
}
