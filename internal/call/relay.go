package call

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"telemed-platform/internal/signaling"
)

// Relay is the client-side view of the signaling log. Implementations must
// return signals in ascending id order and wrap transport/storage failures
// in *StorageError so callers can treat them as transient.
type Relay interface {
	Publish(ctx context.Context, sessionID int64, typ signaling.SignalType, payload string) (signaling.Signal, error)
	ListSince(ctx context.Context, sessionID, afterID int64) ([]signaling.Signal, error)
	Clear(ctx context.Context, sessionID int64) error
}

// HTTPRelay talks to the relay over its REST surface, authenticating with a
// bearer access token.
type HTTPRelay struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPRelay(baseURL, token string) *HTTPRelay {
	return &HTTPRelay{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *HTTPRelay) Publish(ctx context.Context, sessionID int64, typ signaling.SignalType, payload string) (signaling.Signal, error) {
	body, err := json.Marshal(map[string]string{
		"signal_type": string(typ),
		"signal_data": payload,
	})
	if err != nil {
		return signaling.Signal{}, &StorageError{Op: "publish", Err: err}
	}

	endpoint := fmt.Sprintf("%s/v1/sessions/%d/signals", r.baseURL, sessionID)
	var sig signaling.Signal
	if err := r.do(ctx, http.MethodPost, endpoint, bytes.NewReader(body), http.StatusCreated, &sig); err != nil {
		return signaling.Signal{}, &StorageError{Op: "publish", Err: err}
	}
	return sig, nil
}

func (r *HTTPRelay) ListSince(ctx context.Context, sessionID, afterID int64) ([]signaling.Signal, error) {
	endpoint := fmt.Sprintf("%s/v1/sessions/%d/signals", r.baseURL, sessionID)
	if afterID > 0 {
		endpoint += "?after=" + url.QueryEscape(strconv.FormatInt(afterID, 10))
	}

	var out struct {
		Signals []signaling.Signal `json:"signals"`
	}
	if err := r.do(ctx, http.MethodGet, endpoint, nil, http.StatusOK, &out); err != nil {
		return nil, &StorageError{Op: "list", Err: err}
	}
	return out.Signals, nil
}

func (r *HTTPRelay) Clear(ctx context.Context, sessionID int64) error {
	endpoint := fmt.Sprintf("%s/v1/sessions/%d/signals", r.baseURL, sessionID)
	if err := r.do(ctx, http.MethodDelete, endpoint, nil, http.StatusNoContent, nil); err != nil {
		return &StorageError{Op: "clear", Err: err}
	}
	return nil
}

func (r *HTTPRelay) do(ctx context.Context, method, endpoint string, body io.Reader, wantStatus int, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+r.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
