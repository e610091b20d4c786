package call

import (
	"context"
	"errors"
	"testing"

	"telemed-platform/internal/signaling"
)

func newTestWatcher(log *fakeLog, selfID int64) (*Watcher, *[]IncomingCall) {
	var calls []IncomingCall
	w := NewWatcher(WatcherConfig{
		Relay:     &fakeRelay{log: log, selfID: selfID},
		SessionID: 10,
		SelfID:    selfID,
		Log:       testLogger(),
		OnIncoming: func(c IncomingCall) {
			calls = append(calls, c)
		},
	})
	return w, &calls
}

func TestWatcherIgnoresPreexistingOffers(t *testing.T) {
	ctx := context.Background()
	log := &fakeLog{}
	log.append(2, signaling.SignalTypeOffer, "stale-offer")

	w, calls := newTestWatcher(log, 1)
	w.Tick(ctx)
	w.Tick(ctx)
	if len(*calls) != 0 {
		t.Fatalf("stale offer must not ring, got %v", *calls)
	}
}

func TestWatcherDetectsFreshOfferOnce(t *testing.T) {
	ctx := context.Background()
	log := &fakeLog{}
	w, calls := newTestWatcher(log, 1)
	w.Tick(ctx)

	offer := log.append(2, signaling.SignalTypeOffer, "offer-sdp")
	log.append(2, signaling.SignalTypeICE, "cand")
	w.Tick(ctx)

	if len(*calls) != 1 {
		t.Fatalf("expected one incoming call, got %d", len(*calls))
	}
	got := (*calls)[0]
	if got.From != 2 || got.Offer.ID != offer.ID || got.Offer.Payload != "offer-sdp" {
		t.Fatalf("unexpected incoming call %+v", got)
	}

	// The whole batch was swallowed: the same attempt never rings twice.
	w.Tick(ctx)
	if len(*calls) != 1 {
		t.Fatalf("attempt rang twice, got %d", len(*calls))
	}
}

func TestWatcherIgnoresOwnOffers(t *testing.T) {
	ctx := context.Background()
	log := &fakeLog{}
	w, calls := newTestWatcher(log, 1)
	w.Tick(ctx)

	log.append(1, signaling.SignalTypeOffer, "my-own-offer")
	w.Tick(ctx)
	if len(*calls) != 0 {
		t.Fatalf("own offer must not ring, got %v", *calls)
	}
}

func TestWatcherRetriesAfterFetchFailure(t *testing.T) {
	ctx := context.Background()
	log := &fakeLog{listErr: errors.New("relay down")}
	w, calls := newTestWatcher(log, 1)

	// Failed tick must not count as the priming pass.
	w.Tick(ctx)
	log.listErr = nil
	w.Tick(ctx)

	log.append(2, signaling.SignalTypeOffer, "offer-sdp")
	w.Tick(ctx)
	if len(*calls) != 1 {
		t.Fatalf("expected one incoming call, got %d", len(*calls))
	}
}
