// Package lcu talks to the game client's local control plane: a reconnecting event socket and a
// request gateway sharing the credentials discovered from the lockfile.
package lcu

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/coachpo/riftpilot/internal/infra/lockfile"
)

type metadata struct {
	identifier    string
	host          string
	principal     string
	readLimit     int64
	writeTimeout  time.Duration
	dialTimeout   time.Duration
	contentType   string
	userAgent     string
	socketPath    string
	maxBodyLength int64
}

var lcuMetadata = metadata{
	identifier:    "lcu",
	host:          "127.0.0.1",
	principal:     "riot",
	readLimit:     16 * 1024 * 1024,
	writeTimeout:  5 * time.Second,
	dialTimeout:   5 * time.Second,
	contentType:   "application/json",
	userAgent:     "riftpilot",
	socketPath:    "/",
	maxBodyLength: 32 * 1024 * 1024,
}

const (
	defaultReconnectInterval = 5 * time.Second
	defaultRequestTimeout    = 10 * time.Second
	defaultRequestRate       = 20.0
	defaultRequestBurst      = 10
)

// DiscoverFunc resolves endpoint credentials from a lockfile hint.
type DiscoverFunc func(hint string) (lockfile.Credentials, bool)

// Config captures user-overridable connector settings.
type Config struct {
	// LockfileHint is the client installation directory or executable path.
	LockfileHint      string
	Host              string
	Principal         string
	ReconnectInterval time.Duration
	RequestTimeout    time.Duration
	RequestRate       float64
	RequestBurst      int
}

// Options configure the session and gateway.
type Options struct {
	Config   Config
	Logger   *log.Logger
	Discover DiscoverFunc
	// OnStateChange runs on the session goroutine after every transition. It must not block.
	OnStateChange func(ctx context.Context, state State)

	metadata metadata
}

func withDefaults(in Options) Options {
	in.metadata = lcuMetadata
	if strings.TrimSpace(in.Config.Host) == "" {
		in.Config.Host = in.metadata.host
	}
	if strings.TrimSpace(in.Config.Principal) == "" {
		in.Config.Principal = in.metadata.principal
	}
	if in.Config.ReconnectInterval <= 0 {
		in.Config.ReconnectInterval = defaultReconnectInterval
	}
	if in.Config.RequestTimeout <= 0 {
		in.Config.RequestTimeout = defaultRequestTimeout
	}
	if in.Config.RequestRate <= 0 {
		in.Config.RequestRate = defaultRequestRate
	}
	if in.Config.RequestBurst <= 0 {
		in.Config.RequestBurst = defaultRequestBurst
	}
	if in.Logger == nil {
		in.Logger = log.Default()
	}
	if in.Discover == nil {
		in.Discover = lockfile.Discover
	}
	return in
}
