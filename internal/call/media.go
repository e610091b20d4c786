package call

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// CaptureManager owns the local camera/microphone tracks for a single call
// attempt. Acquire is idempotent; Release closes whatever Acquire opened and
// is safe to call multiple times or without a prior Acquire.
//
// ConfigureEngine must be called before the peer connection is created: the
// hardware encoders decide which codecs the SDP can carry.
type CaptureManager interface {
	ConfigureEngine(engine *webrtc.MediaEngine) error
	Acquire(ctx context.Context) error
	Tracks() []webrtc.TrackLocal
	Release()
}
