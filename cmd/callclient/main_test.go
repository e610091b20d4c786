package main

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"telemed-platform/internal/call"
	"telemed-platform/internal/config"
	"telemed-platform/internal/signaling"

	"github.com/pion/webrtc/v4"
)

type stubRelay struct {
	mu      sync.Mutex
	selfID  int64
	nextID  int64
	signals []signaling.Signal
	lists   int
}

func (r *stubRelay) Publish(_ context.Context, sessionID int64, typ signaling.SignalType, payload string) (signaling.Signal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	sig := signaling.Signal{
		ID:        r.nextID,
		SessionID: sessionID,
		SenderID:  r.selfID,
		Type:      typ,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	r.signals = append(r.signals, sig)
	return sig, nil
}

func (r *stubRelay) ListSince(_ context.Context, _ int64, afterID int64) ([]signaling.Signal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists++
	var out []signaling.Signal
	for _, sig := range r.signals {
		if sig.ID > afterID {
			out = append(out, sig)
		}
	}
	return out, nil
}

func (r *stubRelay) Clear(_ context.Context, _ int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = nil
	return nil
}

func (r *stubRelay) listCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lists
}

type stubMedia struct{}

func (stubMedia) ConfigureEngine(_ *webrtc.MediaEngine) error { return nil }
func (stubMedia) Acquire(_ context.Context) error             { return nil }
func (stubMedia) Tracks() []webrtc.TrackLocal                 { return nil }
func (stubMedia) Release()                                    {}

type stubPeer struct{}

func (stubPeer) AttachLocalMedia(_ context.Context) error                { return nil }
func (stubPeer) CreateOffer(_ context.Context) (string, error)           { return "offer", nil }
func (stubPeer) AcceptOffer(_ context.Context, _ string) (string, error) { return "answer", nil }
func (stubPeer) HandleAnswer(_ string) error                             { return nil }
func (stubPeer) AddRemoteCandidate(_ string) error                       { return nil }
func (stubPeer) OnLocalCandidate(_ func(string))                         {}
func (stubPeer) OnRemoteTrack(_ func(string))                            {}
func (stubPeer) SetAudioEnabled(_ bool) error                            { return nil }
func (stubPeer) SetVideoEnabled(_ bool) error                            { return nil }
func (stubPeer) Close() error                                            { return nil }

func newTestApp(t *testing.T, relay *stubRelay) *app {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	return &app{
		cfg: config.ClientConfig{
			AppointmentID: 10,
			// The session poll is parked so every ListSince observed by the
			// stub relay during the call is attributable to the watcher.
			PollInterval:  time.Hour,
			WatchInterval: 5 * time.Millisecond,
		},
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		relay:    relay,
		selfID:   1,
		rootCtx:  ctx,
		newMedia: func() (call.CaptureManager, error) { return stubMedia{}, nil },
		newPeer:  func(call.CaptureManager) (call.PeerSession, error) { return stubPeer{}, nil },
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal(msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWatcherPausesWhileCallViewOpen(t *testing.T) {
	relay := &stubRelay{selfID: 1}
	a := newTestApp(t, relay)

	a.resumeWatcher()
	waitFor(t, func() bool { return relay.listCalls() > 0 }, "watcher never polled")

	if _, err := a.openSession(a.rootCtx, nil); err != nil {
		t.Fatalf("open session: %v", err)
	}

	// Let any tick already in flight drain, then the count must freeze:
	// watcher and call view never poll the same session concurrently.
	time.Sleep(25 * time.Millisecond)
	frozen := relay.listCalls()
	time.Sleep(50 * time.Millisecond)
	if got := relay.listCalls(); got != frozen {
		t.Fatalf("watcher kept polling while the call view was open: %d -> %d", frozen, got)
	}

	// Ending the call resumes watching with a fresh instance.
	a.hangUp()
	waitFor(t, func() bool { return relay.listCalls() > frozen }, "watcher did not resume after the call ended")
}

func TestOpenSessionRejectedWhileCallActive(t *testing.T) {
	relay := &stubRelay{selfID: 1}
	a := newTestApp(t, relay)

	if _, err := a.openSession(a.rootCtx, nil); err != nil {
		t.Fatalf("open session: %v", err)
	}
	if _, err := a.openSession(a.rootCtx, nil); err == nil {
		t.Fatal("expected second session to be rejected while one is active")
	}

	a.hangUp()
	if _, err := a.openSession(a.rootCtx, nil); err != nil {
		t.Fatalf("expected a fresh session after hangup, got %v", err)
	}
}
