// Command callclient is a terminal client for call sessions: it watches an
// appointment's signal log for incoming calls and drives outbound attempts
// over the same relay the web client uses.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"telemed-platform/internal/auth"
	"telemed-platform/internal/call"
	"telemed-platform/internal/config"
	"telemed-platform/internal/signaling"
	"telemed-platform/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
)

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadClient()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(os.Getenv("APP_ENV"))
	slog.SetDefault(log)

	selfID, err := selfIDFromToken(cfg.AccessToken)
	if err != nil {
		log.Error("cannot read user id from access token", "err", err)
		os.Exit(1)
	}

	a := &app{
		cfg:     cfg,
		log:     log,
		relay:   call.NewHTTPRelay(cfg.RelayBaseURL, cfg.AccessToken),
		selfID:  selfID,
		rootCtx: rootCtx,
		newMedia: func() (call.CaptureManager, error) {
			return call.NewCaptureManager(log)
		},
	}
	a.newPeer = func(media call.CaptureManager) (call.PeerSession, error) {
		return call.NewPeerSession(call.PeerConfig{
			STUNServers: cfg.STUNServers,
			Media:       media,
			Log:         log,
		})
	}
	a.resumeWatcher()

	fmt.Printf("watching appointment %d as user %d\n", cfg.AppointmentID, selfID)
	fmt.Println("commands: call, accept, reject, hangup, mute, unmute, video on, video off, status, quit")

	go a.repl(rootCtx, stop)
	<-rootCtx.Done()
	a.hangUp()
}

// selfIDFromToken reads the user id claim without verifying the signature;
// the relay is the one that verifies, the client only needs its own identity
// for echo suppression.
func selfIDFromToken(token string) (int64, error) {
	var claims auth.Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return 0, err
	}
	if claims.UserID <= 0 {
		return 0, fmt.Errorf("token carries no user id")
	}
	return claims.UserID, nil
}

type app struct {
	cfg    config.ClientConfig
	log    *slog.Logger
	relay  call.Relay
	selfID int64

	newMedia func() (call.CaptureManager, error)
	newPeer  func(media call.CaptureManager) (call.PeerSession, error)

	rootCtx context.Context

	mu          sync.Mutex
	session     *call.Session
	cancel      context.CancelFunc
	inCall      bool
	watchCancel context.CancelFunc
}

func (a *app) repl(ctx context.Context, stop func()) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "call":
			a.dial(ctx)
		case "accept":
			a.withSession(func(s *call.Session) {
				if err := s.Accept(ctx); err != nil {
					fmt.Println("accept failed:", err)
				}
			})
		case "reject":
			a.withSession(func(s *call.Session) {
				if err := s.Reject(ctx); err != nil {
					fmt.Println("reject failed:", err)
				}
			})
		case "hangup":
			a.hangUp()
		case "mute":
			a.withSession(func(s *call.Session) { _ = s.SetAudioEnabled(false) })
		case "unmute":
			a.withSession(func(s *call.Session) { _ = s.SetAudioEnabled(true) })
		case "video off":
			a.withSession(func(s *call.Session) { _ = s.SetVideoEnabled(false) })
		case "video on":
			a.withSession(func(s *call.Session) { _ = s.SetVideoEnabled(true) })
		case "status":
			a.mu.Lock()
			s := a.session
			a.mu.Unlock()
			if s == nil {
				fmt.Println("no active call")
			} else {
				fmt.Println("state:", s.State())
			}
		case "quit", "exit":
			stop()
			return
		case "":
		default:
			fmt.Println("unknown command")
		}
	}
}

func (a *app) dial(ctx context.Context) {
	s, err := a.openSession(ctx, nil)
	if err != nil {
		fmt.Println("call setup failed:", err)
		return
	}
	if err := s.Start(ctx); err != nil {
		fmt.Println("call failed:", err)
		return
	}
	fmt.Println("calling...")
}

func (a *app) onIncoming(in call.IncomingCall) {
	if _, err := a.openSession(a.rootCtx, &in.Offer); err != nil {
		a.log.Error("opening incoming call failed", "err", err)
		return
	}
	fmt.Printf("\nincoming call from user %d: type accept or reject\n", in.From)
}

// resumeWatcher starts a fresh background watcher unless one is running or a
// call view is open. A fresh instance re-primes on its first tick, so the
// finished call's signals are treated as stale and never ring.
func (a *app) resumeWatcher() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.watchCancel != nil || a.inCall {
		return
	}
	wctx, cancel := context.WithCancel(a.rootCtx)
	a.watchCancel = cancel
	w := call.NewWatcher(call.WatcherConfig{
		Relay:      a.relay,
		SessionID:  a.cfg.AppointmentID,
		SelfID:     a.selfID,
		Interval:   a.cfg.WatchInterval,
		Log:        a.log,
		OnIncoming: a.onIncoming,
	})
	go w.Run(wctx)
}

// openSession replaces any ended session with a fresh attempt. The watcher
// is stopped first: session and watcher never poll the same log
// concurrently. Each attempt gets its own media capture and peer connection.
func (a *app) openSession(ctx context.Context, offer *signaling.Signal) (*call.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.inCall {
		return nil, fmt.Errorf("a call is already in progress")
	}
	if a.watchCancel != nil {
		a.watchCancel()
		a.watchCancel = nil
	}
	if a.cancel != nil {
		a.cancel()
	}

	media, err := a.newMedia()
	if err != nil {
		return nil, err
	}

	s, err := call.NewSession(call.SessionConfig{
		Relay: a.relay,
		NewPeer: func() (call.PeerSession, error) {
			return a.newPeer(media)
		},
		Media:        media,
		SessionID:    a.cfg.AppointmentID,
		SelfID:       a.selfID,
		PollInterval: a.cfg.PollInterval,
		Log:          a.log,
		Events: call.Events{
			OnStateChange: a.onStateChange,
			OnRemoteTrack: func(kind string) { fmt.Println("receiving remote", kind) },
		},
		InitialOffer: offer,
	})
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	a.session = s
	a.cancel = cancel
	a.inCall = true
	go s.Run(runCtx)
	return s, nil
}

func (a *app) onStateChange(st call.State) {
	fmt.Println("call:", st)
	if st != call.StateEnded {
		return
	}
	a.mu.Lock()
	a.inCall = false
	a.mu.Unlock()
	a.resumeWatcher()
}

func (a *app) withSession(fn func(*call.Session)) {
	a.mu.Lock()
	s := a.session
	a.mu.Unlock()
	if s == nil {
		fmt.Println("no active call")
		return
	}
	fn(s)
}

func (a *app) hangUp() {
	a.mu.Lock()
	s := a.session
	cancel := a.cancel
	a.mu.Unlock()
	if s != nil {
		s.HangUp(context.Background())
	}
	if cancel != nil {
		cancel()
	}
}
