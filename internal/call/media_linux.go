//go:build linux

package call

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
)

// deviceCapture captures camera and microphone via pion/mediadevices
// (V4L2 + malgo). Capture degrades gracefully: video+audio first, then
// video-only, then audio-only. Only when every attempt fails does Acquire
// return a *MediaAcquisitionError.
type deviceCapture struct {
	log      *slog.Logger
	selector *mediadevices.CodecSelector

	mu     sync.Mutex
	tracks []mediadevices.Track
}

func NewCaptureManager(log *slog.Logger) (CaptureManager, error) {
	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, &MediaAcquisitionError{Err: err}
	}
	vpxParams.BitRate = 1_500_000

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, &MediaAcquisitionError{Err: err}
	}

	return &deviceCapture{
		log: log,
		selector: mediadevices.NewCodecSelector(
			mediadevices.WithVideoEncoders(&vpxParams),
			mediadevices.WithAudioEncoders(&opusParams),
		),
	}, nil
}

func (d *deviceCapture) ConfigureEngine(engine *webrtc.MediaEngine) error {
	d.selector.Populate(engine)
	return nil
}

func (d *deviceCapture) Acquire(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.tracks) > 0 {
		return nil
	}

	attempts := []struct {
		video bool
		audio bool
		label string
	}{
		{true, true, "video+audio"},
		{true, false, "video-only"},
		{false, true, "audio-only"},
	}

	var lastErr error
	for _, a := range attempts {
		constraints := mediadevices.MediaStreamConstraints{Codec: d.selector}
		if a.video {
			constraints.Video = func(c *mediadevices.MediaTrackConstraints) {
				// Raw formats only. Some cameras expose an MJPEG V4L2 node
				// that produces malformed frames and poisons the VP8 encoder.
				c.FrameFormat = prop.FrameFormatOneOf{
					frame.FormatYUYV,
					frame.FormatI420,
					frame.FormatI444,
					frame.FormatRGBA,
				}
				c.Width = prop.IntRanged{Max: 640}
				c.Height = prop.IntRanged{Max: 480}
			}
		}
		if a.audio {
			constraints.Audio = func(_ *mediadevices.MediaTrackConstraints) {}
		}

		stream, err := mediadevices.GetUserMedia(constraints)
		if err != nil {
			d.log.Warn("media capture attempt failed", "attempt", a.label, "error", err)
			lastErr = err
			continue
		}

		d.tracks = stream.GetTracks()
		for _, track := range d.tracks {
			track.OnEnded(func(err error) {
				if err != nil {
					d.log.Warn("local track ended", "error", err)
				}
			})
		}
		d.log.Info("local media captured", "attempt", a.label, "tracks", len(d.tracks))
		return nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no capture attempt succeeded")
	}
	return &MediaAcquisitionError{Err: lastErr}
}

func (d *deviceCapture) Tracks() []webrtc.TrackLocal {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]webrtc.TrackLocal, 0, len(d.tracks))
	for _, t := range d.tracks {
		out = append(out, t)
	}
	return out
}

func (d *deviceCapture) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range d.tracks {
		t.Close()
	}
	d.tracks = nil
}
