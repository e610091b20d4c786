package call

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
)

// PeerSession wraps one WebRTC peer connection for one call attempt.
//
// Offer/answer payloads are JSON-encoded session descriptions, candidate
// payloads JSON-encoded ICE candidate inits. Candidates that arrive before
// the remote description are queued and flushed, in arrival order, the
// moment the remote description is applied.
type PeerSession interface {
	// AttachLocalMedia acquires local tracks and adds them to the
	// connection. With no local tracks available it falls back to
	// receive-only transceivers so the SDP still carries valid m-lines.
	AttachLocalMedia(ctx context.Context) error

	CreateOffer(ctx context.Context) (payload string, err error)
	// AcceptOffer applies the remote offer and returns the local answer.
	AcceptOffer(ctx context.Context, offerPayload string) (answerPayload string, err error)
	HandleAnswer(answerPayload string) error
	AddRemoteCandidate(candidatePayload string) error

	// OnLocalCandidate registers the callback invoked for every locally
	// gathered candidate. Register before CreateOffer/AcceptOffer.
	OnLocalCandidate(fn func(candidatePayload string))
	// OnRemoteTrack fires when the first packet of a remote track arrives.
	OnRemoteTrack(fn func(kind string))

	SetAudioEnabled(enabled bool) error
	SetVideoEnabled(enabled bool) error

	Close() error
}

type PeerConfig struct {
	STUNServers []string
	Media       CaptureManager
	Log         *slog.Logger
}

type pionPeer struct {
	pc    *webrtc.PeerConnection
	media CaptureManager
	log   *slog.Logger

	mu        sync.Mutex
	remoteSet bool
	pending   []webrtc.ICECandidateInit
	senders   map[webrtc.RTPCodecType]*webrtc.RTPSender
	original  map[webrtc.RTPCodecType]webrtc.TrackLocal

	onCandidate func(string)
	onTrack     func(string)
}

func NewPeerSession(cfg PeerConfig) (PeerSession, error) {
	engine := &webrtc.MediaEngine{}
	if err := cfg.Media.ConfigureEngine(engine); err != nil {
		return nil, err
	}

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(engine, registry); err != nil {
		return nil, err
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(engine),
		webrtc.WithInterceptorRegistry(registry),
	)

	servers := make([]string, 0, len(cfg.STUNServers))
	for _, s := range cfg.STUNServers {
		if !strings.HasPrefix(s, "stun:") && !strings.HasPrefix(s, "turn:") {
			s = "stun:" + s
		}
		servers = append(servers, s)
	}

	pc, err := api.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: servers}},
	})
	if err != nil {
		return nil, err
	}

	p := &pionPeer{
		pc:       pc,
		media:    cfg.Media,
		log:      cfg.Log,
		senders:  make(map[webrtc.RTPCodecType]*webrtc.RTPSender),
		original: make(map[webrtc.RTPCodecType]webrtc.TrackLocal),
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		data, err := json.Marshal(c.ToJSON())
		if err != nil {
			p.log.Warn("encoding local candidate failed", "error", err)
			return
		}
		p.mu.Lock()
		fn := p.onCandidate
		p.mu.Unlock()
		if fn != nil {
			fn(string(data))
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		p.log.Info("remote track", "kind", track.Kind().String(), "codec", track.Codec().MimeType)
		p.mu.Lock()
		fn := p.onTrack
		p.mu.Unlock()
		if fn != nil {
			fn(track.Kind().String())
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		p.log.Info("peer connection state", "state", state.String())
	})

	return p, nil
}

func (p *pionPeer) AttachLocalMedia(ctx context.Context) error {
	if err := p.media.Acquire(ctx); err != nil {
		return err
	}

	tracks := p.media.Tracks()
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, track := range tracks {
		sender, err := p.pc.AddTrack(track)
		if err != nil {
			return err
		}
		p.senders[track.Kind()] = sender
		p.original[track.Kind()] = track
	}

	// Receive-only m-lines for whatever we are not sending, so the remote
	// side can still send both kinds.
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeVideo, webrtc.RTPCodecTypeAudio} {
		if _, ok := p.senders[kind]; ok {
			continue
		}
		if _, err := p.pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (p *pionPeer) CreateOffer(_ context.Context) (string, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return "", err
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return "", err
	}
	data, err := json.Marshal(offer)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (p *pionPeer) AcceptOffer(_ context.Context, offerPayload string) (string, error) {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal([]byte(offerPayload), &offer); err != nil {
		return "", err
	}
	if err := p.setRemote(offer); err != nil {
		return "", err
	}

	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return "", err
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return "", err
	}
	data, err := json.Marshal(answer)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (p *pionPeer) HandleAnswer(answerPayload string) error {
	var answer webrtc.SessionDescription
	if err := json.Unmarshal([]byte(answerPayload), &answer); err != nil {
		return err
	}
	return p.setRemote(answer)
}

func (p *pionPeer) setRemote(desc webrtc.SessionDescription) error {
	if err := p.pc.SetRemoteDescription(desc); err != nil {
		return err
	}

	p.mu.Lock()
	p.remoteSet = true
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	for _, c := range pending {
		if err := p.pc.AddICECandidate(c); err != nil {
			p.log.Warn("applying queued candidate failed", "error", err)
		}
	}
	return nil
}

func (p *pionPeer) AddRemoteCandidate(candidatePayload string) error {
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal([]byte(candidatePayload), &init); err != nil {
		return err
	}

	p.mu.Lock()
	if !p.remoteSet {
		p.pending = append(p.pending, init)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	return p.pc.AddICECandidate(init)
}

func (p *pionPeer) OnLocalCandidate(fn func(string)) {
	p.mu.Lock()
	p.onCandidate = fn
	p.mu.Unlock()
}

func (p *pionPeer) OnRemoteTrack(fn func(string)) {
	p.mu.Lock()
	p.onTrack = fn
	p.mu.Unlock()
}

// SetAudioEnabled pauses or resumes the outgoing audio track by swapping the
// sender's track. No renegotiation is needed.
func (p *pionPeer) SetAudioEnabled(enabled bool) error {
	return p.setTrackEnabled(webrtc.RTPCodecTypeAudio, enabled)
}

func (p *pionPeer) SetVideoEnabled(enabled bool) error {
	return p.setTrackEnabled(webrtc.RTPCodecTypeVideo, enabled)
}

func (p *pionPeer) setTrackEnabled(kind webrtc.RTPCodecType, enabled bool) error {
	p.mu.Lock()
	sender := p.senders[kind]
	track := p.original[kind]
	p.mu.Unlock()
	if sender == nil {
		return nil
	}
	if enabled {
		return sender.ReplaceTrack(track)
	}
	return sender.ReplaceTrack(nil)
}

func (p *pionPeer) Close() error {
	return p.pc.Close()
}
