package call

import (
	"context"
	"fmt"
	"sync"
	"time"

	"telemed-platform/internal/signaling"

	"github.com/pion/webrtc/v4"
)

// fakeLog is a shared in-memory signal log; one per test session, viewed by
// each participant through its own fakeRelay.
type fakeLog struct {
	mu      sync.Mutex
	nextID  int64
	signals []signaling.Signal

	clears     int
	listErr    error
	publishErr error
	clearErr   error

	// publishGate, when set, blocks Publish until the channel is closed.
	publishGate chan struct{}
}

func (l *fakeLog) append(senderID int64, typ signaling.SignalType, payload string) signaling.Signal {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	sig := signaling.Signal{
		ID:        l.nextID,
		SessionID: 10,
		SenderID:  senderID,
		Type:      typ,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	l.signals = append(l.signals, sig)
	return sig
}

type fakeRelay struct {
	log    *fakeLog
	selfID int64
}

func (r *fakeRelay) Publish(_ context.Context, _ int64, typ signaling.SignalType, payload string) (signaling.Signal, error) {
	r.log.mu.Lock()
	err := r.log.publishErr
	gate := r.log.publishGate
	r.log.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return signaling.Signal{}, &StorageError{Op: "publish", Err: err}
	}
	return r.log.append(r.selfID, typ, payload), nil
}

func (r *fakeRelay) ListSince(_ context.Context, _ int64, afterID int64) ([]signaling.Signal, error) {
	r.log.mu.Lock()
	defer r.log.mu.Unlock()
	if r.log.listErr != nil {
		return nil, &StorageError{Op: "list", Err: r.log.listErr}
	}
	var out []signaling.Signal
	for _, sig := range r.log.signals {
		if sig.ID > afterID {
			out = append(out, sig)
		}
	}
	return out, nil
}

func (r *fakeRelay) Clear(_ context.Context, _ int64) error {
	r.log.mu.Lock()
	defer r.log.mu.Unlock()
	if r.log.clearErr != nil {
		return &StorageError{Op: "clear", Err: r.log.clearErr}
	}
	r.log.clears++
	r.log.signals = nil
	return nil
}

type fakeMedia struct {
	mu         sync.Mutex
	acquires   int
	releases   int
	acquireErr error
}

func (m *fakeMedia) ConfigureEngine(_ *webrtc.MediaEngine) error { return nil }

func (m *fakeMedia) Acquire(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.acquireErr != nil {
		return &MediaAcquisitionError{Err: m.acquireErr}
	}
	m.acquires++
	return nil
}

func (m *fakeMedia) Tracks() []webrtc.TrackLocal { return nil }

func (m *fakeMedia) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releases++
}

func (m *fakeMedia) released() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.releases
}

type fakePeer struct {
	mu sync.Mutex

	name     string
	attached bool
	closed   int

	remoteDesc string
	queued     []string
	applied    []string

	attachErr error

	onCandidate func(string)
	onTrack     func(string)
}

func (p *fakePeer) AttachLocalMedia(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.attachErr != nil {
		return p.attachErr
	}
	p.attached = true
	return nil
}

func (p *fakePeer) CreateOffer(_ context.Context) (string, error) {
	return "offer-from-" + p.name, nil
}

func (p *fakePeer) AcceptOffer(_ context.Context, offerPayload string) (string, error) {
	if offerPayload == "malformed" {
		return "", fmt.Errorf("bad session description")
	}
	p.mu.Lock()
	p.remoteDesc = offerPayload
	p.applied = append(p.applied, p.queued...)
	p.queued = nil
	p.mu.Unlock()
	return "answer-from-" + p.name, nil
}

func (p *fakePeer) HandleAnswer(answerPayload string) error {
	if answerPayload == "malformed" {
		return fmt.Errorf("bad session description")
	}
	p.mu.Lock()
	p.remoteDesc = answerPayload
	p.applied = append(p.applied, p.queued...)
	p.queued = nil
	p.mu.Unlock()
	return nil
}

func (p *fakePeer) AddRemoteCandidate(candidatePayload string) error {
	if candidatePayload == "malformed" {
		return fmt.Errorf("bad candidate")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remoteDesc == "" {
		p.queued = append(p.queued, candidatePayload)
		return nil
	}
	p.applied = append(p.applied, candidatePayload)
	return nil
}

func (p *fakePeer) OnLocalCandidate(fn func(string)) { p.onCandidate = fn }
func (p *fakePeer) OnRemoteTrack(fn func(string))    { p.onTrack = fn }
func (p *fakePeer) SetAudioEnabled(bool) error       { return nil }
func (p *fakePeer) SetVideoEnabled(bool) error       { return nil }

func (p *fakePeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return nil
}
