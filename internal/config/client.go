package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ClientConfig holds configuration for the call client process.
// It is intentionally separate from the API Config: the client never talks to
// Postgres or Redis, only to the relay over HTTP.
type ClientConfig struct {
	// RelayBaseURL is the base URL of the signaling relay API, e.g.
	// http://localhost:8080.
	RelayBaseURL string

	// AccessToken authenticates the participant against the relay.
	AccessToken string

	// AppointmentID scopes every signal this client publishes or consumes.
	AppointmentID int64

	// PollInterval is the tick for the open call view.
	PollInterval time.Duration

	// WatchInterval is the slower tick for the background incoming-call
	// watcher, active only while no call view is open.
	WatchInterval time.Duration

	// STUNServers configure ICE gathering.
	STUNServers []string
}

// DefaultSTUNServers mirror the servers the web client shipped with.
var DefaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
	"stun:stun2.l.google.com:19302",
}

// LoadClient reads client configuration from a .env file (if present) and
// environment variables. Environment variables take precedence over .env
// values.
func LoadClient() (ClientConfig, error) {
	// godotenv.Load does not overwrite existing env vars.
	_ = godotenv.Load()

	c := ClientConfig{
		RelayBaseURL: strings.TrimSpace(os.Getenv("RELAY_BASE_URL")),
		AccessToken:  strings.TrimSpace(os.Getenv("RELAY_ACCESS_TOKEN")),
	}

	var errs []error
	if c.RelayBaseURL == "" {
		errs = append(errs, errors.New("RELAY_BASE_URL is required"))
	}
	if c.AccessToken == "" {
		errs = append(errs, errors.New("RELAY_ACCESS_TOKEN is required"))
	}

	if v := strings.TrimSpace(os.Getenv("APPOINTMENT_ID")); v != "" {
		var id int64
		if _, err := fmt.Sscan(v, &id); err != nil || id <= 0 {
			errs = append(errs, fmt.Errorf("APPOINTMENT_ID must be a positive integer, got %q", v))
		}
		c.AppointmentID = id
	} else {
		errs = append(errs, errors.New("APPOINTMENT_ID is required"))
	}

	c.PollInterval = mustDuration("CALL_POLL_INTERVAL")
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	c.WatchInterval = mustDuration("CALL_WATCH_INTERVAL")
	if c.WatchInterval <= 0 {
		c.WatchInterval = 3 * time.Second
	}

	if v := strings.TrimSpace(os.Getenv("STUN_SERVERS")); v != "" {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				c.STUNServers = append(c.STUNServers, s)
			}
		}
	}
	if len(c.STUNServers) == 0 {
		c.STUNServers = DefaultSTUNServers
	}

	return c, joinErrors(errs)
}
