package call

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"telemed-platform/internal/signaling"
)

// State of one call attempt.
type State string

const (
	StateIdle      State = "idle"
	StateCalling   State = "calling"
	StateRinging   State = "ringing"
	StateConnected State = "connected"
	StateEnded     State = "ended"
)

// Events are optional hooks for the UI layer. Callbacks run on the session
// goroutine and must not call back into the session.
type Events struct {
	OnStateChange func(State)
	OnRemoteTrack func(kind string)
}

type SessionConfig struct {
	Relay     Relay
	NewPeer   func() (PeerSession, error)
	Media     CaptureManager
	SessionID int64
	SelfID    int64

	PollInterval time.Duration
	Log          *slog.Logger
	Events       Events

	// InitialOffer starts the session in the ringing state, offer already
	// attached. Used when an incoming call was detected by a Watcher.
	InitialOffer *signaling.Signal
}

// Session drives one call attempt against the relay log.
//
// Every signal id is consumed at most once per session instance: ids go into
// the handled set the moment they are seen, regardless of whether they had
// any effect. Own signals echoed back by the relay are marked and skipped.
// On the first poll all signals already in the log are marked as stale
// leftovers, except candidates and answers, which may belong to the attempt
// in flight.
type Session struct {
	relay   Relay
	newPeer func() (PeerSession, error)
	media   CaptureManager

	sessionID int64
	selfID    int64
	interval  time.Duration
	log       *slog.Logger
	events    Events

	mu           sync.Mutex
	state        State
	peer         PeerSession
	handled      map[int64]struct{}
	cursor       int64
	primed       bool
	pendingOffer string
	localOffer   string

	cleanupOnce sync.Once
}

func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}

	s := &Session{
		relay:     cfg.Relay,
		newPeer:   cfg.NewPeer,
		media:     cfg.Media,
		sessionID: cfg.SessionID,
		selfID:    cfg.SelfID,
		interval:  cfg.PollInterval,
		log:       cfg.Log,
		events:    cfg.Events,
		state:     StateIdle,
		handled:   make(map[int64]struct{}),
	}

	peer, err := cfg.NewPeer()
	if err != nil {
		return nil, err
	}
	s.peer = peer
	s.wirePeer(peer)

	if cfg.InitialOffer != nil {
		s.handled[cfg.InitialOffer.ID] = struct{}{}
		s.pendingOffer = cfg.InitialOffer.Payload
		s.state = StateRinging
	}
	return s, nil
}

func (s *Session) wirePeer(p PeerSession) {
	p.OnLocalCandidate(func(payload string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := s.relay.Publish(ctx, s.sessionID, signaling.SignalTypeICE, payload); err != nil {
			s.log.Warn("publishing local candidate failed", "error", err)
		}
	})
	p.OnRemoteTrack(func(kind string) {
		if s.events.OnRemoteTrack != nil {
			s.events.OnRemoteTrack(kind)
		}
	})
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start places an outbound call: clears leftover signals from previous
// attempts, captures local media and publishes the offer.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return fmt.Errorf("cannot start call in state %q", s.state)
	}

	if err := s.relay.Clear(ctx, s.sessionID); err != nil {
		return err
	}
	s.primed = true

	if err := s.peer.AttachLocalMedia(ctx); err != nil {
		s.abortLocked()
		return err
	}

	offer, err := s.peer.CreateOffer(ctx)
	if err != nil {
		s.abortLocked()
		return err
	}
	s.localOffer = offer

	sig, err := s.relay.Publish(ctx, s.sessionID, signaling.SignalTypeOffer, offer)
	if err != nil {
		s.abortLocked()
		return err
	}
	s.handled[sig.ID] = struct{}{}
	s.setStateLocked(StateCalling)
	return nil
}

// Accept answers the attached incoming offer.
func (s *Session) Accept(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRinging {
		return fmt.Errorf("cannot accept call in state %q", s.state)
	}

	if err := s.peer.AttachLocalMedia(ctx); err != nil {
		s.abortLocked()
		return err
	}

	answer, err := s.peer.AcceptOffer(ctx, s.pendingOffer)
	if err != nil {
		s.abortLocked()
		return fmt.Errorf("applying incoming offer: %w", err)
	}

	sig, err := s.relay.Publish(ctx, s.sessionID, signaling.SignalTypeAnswer, answer)
	if err != nil {
		s.abortLocked()
		return err
	}
	s.handled[sig.ID] = struct{}{}
	s.setStateLocked(StateConnected)
	return nil
}

// Reject declines the attached incoming offer. Teardown is local-first:
// state flips and media is released before the end signal goes out, and the
// publish is best-effort.
func (s *Session) Reject(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateRinging {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("cannot reject call in state %q", st)
	}
	s.abortLocked()
	s.mu.Unlock()

	s.publishEnd(ctx, "reject")
	return nil
}

// HangUp ends the attempt from any state. Teardown is local-first: the
// session is ended even when the relay is unreachable, and a slow relay
// cannot delay it.
func (s *Session) HangUp(ctx context.Context) {
	s.mu.Lock()
	if s.state == StateEnded {
		s.mu.Unlock()
		return
	}
	s.abortLocked()
	s.mu.Unlock()

	s.publishEnd(ctx, "hangup")
}

// publishEnd runs after local teardown, outside the session lock, so a hung
// relay cannot block the session.
func (s *Session) publishEnd(ctx context.Context, reason string) {
	sig, err := s.relay.Publish(ctx, s.sessionID, signaling.SignalTypeEnd, reason)
	if err != nil {
		s.log.Warn("publishing end signal failed", "error", err)
		return
	}
	s.mu.Lock()
	s.handled[sig.ID] = struct{}{}
	s.mu.Unlock()
}

// SetAudioEnabled toggles the outgoing microphone track.
func (s *Session) SetAudioEnabled(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peer.SetAudioEnabled(enabled)
}

// SetVideoEnabled toggles the outgoing camera track.
func (s *Session) SetVideoEnabled(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peer.SetVideoEnabled(enabled)
}

// Run polls the relay until the session ends or ctx is cancelled.
func (s *Session) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
			if s.State() == StateEnded {
				return
			}
		}
	}
}

// Tick fetches and applies new signals. A fetch failure is transient: it is
// logged and the same signals are retried on the next tick.
func (s *Session) Tick(ctx context.Context) {
	s.mu.Lock()
	cursor := s.cursor
	s.mu.Unlock()

	sigs, err := s.relay.ListSince(ctx, s.sessionID, cursor)
	if err != nil {
		s.log.Debug("signal poll failed", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sig := range sigs {
		if sig.ID > s.cursor {
			s.cursor = sig.ID
		}
		if s.state == StateEnded {
			break
		}
		if _, seen := s.handled[sig.ID]; seen {
			continue
		}
		s.handled[sig.ID] = struct{}{}
		if !s.primed && sig.Type != signaling.SignalTypeICE && sig.Type != signaling.SignalTypeAnswer {
			// Stale leftover from before this session was opened.
			continue
		}
		if sig.SenderID == s.selfID {
			continue
		}
		s.apply(ctx, sig)
	}
	s.primed = true
}

func (s *Session) apply(ctx context.Context, sig signaling.Signal) {
	switch sig.Type {
	case signaling.SignalTypeOffer:
		switch s.state {
		case StateIdle:
			s.pendingOffer = sig.Payload
			s.setStateLocked(StateRinging)
		case StateCalling:
			// Both sides dialed at once. The participant with the greater
			// id yields and answers the other side's offer; the lesser id
			// keeps calling but puts its own offer back in the log, since
			// the other side's clear-before-dial may have wiped it.
			if s.selfID > sig.SenderID {
				s.yieldLocked(sig)
			} else {
				s.republishOfferLocked(ctx)
			}
		}
	case signaling.SignalTypeAnswer:
		if s.state != StateCalling {
			return
		}
		if err := s.peer.HandleAnswer(sig.Payload); err != nil {
			s.log.Warn("dropping signal", "error", &MalformedSignalError{SignalID: sig.ID, Err: err})
			return
		}
		s.setStateLocked(StateConnected)
	case signaling.SignalTypeICE:
		if s.state != StateCalling && s.state != StateRinging && s.state != StateConnected {
			return
		}
		if err := s.peer.AddRemoteCandidate(sig.Payload); err != nil {
			s.log.Warn("dropping signal", "error", &MalformedSignalError{SignalID: sig.ID, Err: err})
		}
	case signaling.SignalTypeEnd:
		s.abortLocked()
	default:
		s.log.Debug("ignoring signal", "type", sig.Type, "id", sig.ID)
	}
}

// republishOfferLocked restores the local offer after the counterpart's
// clear wiped it; without a live copy the yielding side has nothing to
// answer and both sides would sit in calling forever.
func (s *Session) republishOfferLocked(ctx context.Context) {
	if s.localOffer == "" {
		return
	}
	sig, err := s.relay.Publish(ctx, s.sessionID, signaling.SignalTypeOffer, s.localOffer)
	if err != nil {
		s.log.Warn("republishing offer failed", "error", err)
		return
	}
	s.handled[sig.ID] = struct{}{}
}

// yieldLocked abandons the local offer in favor of the remote one: the peer
// connection is replaced so the attempt can be answered cleanly.
func (s *Session) yieldLocked(sig signaling.Signal) {
	s.log.Info("concurrent offer, yielding", "peer_user_id", sig.SenderID)
	_ = s.peer.Close()
	peer, err := s.newPeer()
	if err != nil {
		s.log.Error("replacing peer connection failed", "error", err)
		s.abortLocked()
		return
	}
	s.peer = peer
	s.wirePeer(peer)
	s.pendingOffer = sig.Payload
	s.setStateLocked(StateRinging)
}

func (s *Session) abortLocked() {
	s.setStateLocked(StateEnded)
	s.cleanup()
}

func (s *Session) setStateLocked(next State) {
	if s.state == next {
		return
	}
	s.state = next
	if s.events.OnStateChange != nil {
		s.events.OnStateChange(next)
	}
}

// cleanup releases media and closes the peer connection exactly once, no
// matter how many paths reach the ended state.
func (s *Session) cleanup() {
	s.cleanupOnce.Do(func() {
		s.media.Release()
		if err := s.peer.Close(); err != nil {
			s.log.Debug("closing peer connection", "error", err)
		}
	})
}
