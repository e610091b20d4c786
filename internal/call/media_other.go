//go:build !linux

package call

import (
	"context"
	"log/slog"

	"github.com/pion/webrtc/v4"
)

// nullCapture is used on platforms without pion/mediadevices drivers
// (capture needs V4L2 + malgo, Linux only). The session runs receive-only:
// remote media still flows, nothing is sent.
type nullCapture struct {
	log *slog.Logger
}

func NewCaptureManager(log *slog.Logger) (CaptureManager, error) {
	return &nullCapture{log: log}, nil
}

func (n *nullCapture) ConfigureEngine(engine *webrtc.MediaEngine) error {
	return engine.RegisterDefaultCodecs()
}

func (n *nullCapture) Acquire(_ context.Context) error {
	n.log.Info("no local media capture on this platform, receive-only")
	return nil
}

func (n *nullCapture) Tracks() []webrtc.TrackLocal { return nil }

func (n *nullCapture) Release() {}
