package lcu

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/coachpo/riftpilot/internal/domain/schema"
	"github.com/coachpo/riftpilot/internal/infra/lockfile"
)

// State is the connector lifecycle state.
type State int32

const (
	// StateDisconnected means no live socket; the retry timer may attempt a connection.
	StateDisconnected State = iota
	// StateConnecting means credentials were discovered and a dial is in progress.
	StateConnecting
	// StateConnected means the socket is open and the subscribe frame was written.
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// FrameHandler receives every inbound text frame in socket order.
type FrameHandler func(ctx context.Context, raw []byte)

// Session owns the single event socket to the control plane and the last discovered credentials.
type Session struct {
	opts    Options
	logger  *log.Logger
	handler FrameHandler
	metrics *sessionMetrics

	state    atomic.Int32
	attempts atomic.Int64

	credsMu  sync.RWMutex
	creds    lockfile.Credentials
	hasCreds bool

	connMu    sync.Mutex
	conn      *websocket.Conn
	sessionID string

	lifecycleMu sync.Mutex
	cancel      context.CancelFunc
	done        chan struct{}
	readers     sync.WaitGroup
}

// NewSession constructs a disconnected session. A nil handler drops frames.
func NewSession(opts Options, handler FrameHandler) *Session {
	opts = withDefaults(opts)
	if handler == nil {
		handler = func(context.Context, []byte) {}
	}
	return &Session{
		opts:        opts,
		logger:      opts.Logger,
		handler:     handler,
		metrics:     newSessionMetrics(),
		state:       atomic.Int32{},
		attempts:    atomic.Int64{},
		credsMu:     sync.RWMutex{},
		creds:       lockfile.Credentials{},
		hasCreds:    false,
		connMu:      sync.Mutex{},
		conn:        nil,
		sessionID:   "",
		lifecycleMu: sync.Mutex{},
		cancel:      nil,
		done:        nil,
		readers:     sync.WaitGroup{},
	}
}

// Start launches the retry timer. The first attempt happens immediately; later attempts follow
// the configured interval and only run while disconnected. Start is a no-op when already running.
func (s *Session) Start(ctx context.Context) {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	if s.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(runCtx, s.done)
}

// Stop cancels the retry timer and closes the live socket. Gateway requests already in flight are
// not cancelled.
func (s *Session) Stop() {
	s.lifecycleMu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.lifecycleMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done

	s.connMu.Lock()
	conn := s.conn
	s.conn = nil
	s.connMu.Unlock()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "shutdown")
	}
	s.readers.Wait()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Attempts returns how many dials the timer has made. Ticks without a lockfile and ticks while
// connected do not count.
func (s *Session) Attempts() int64 {
	return s.attempts.Load()
}

// SessionID identifies the current connected episode; empty while disconnected.
func (s *Session) SessionID() string {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.sessionID
}

// Credentials returns the last discovered credentials. They survive disconnects so requests can
// still be attempted while the socket is down.
func (s *Session) Credentials() (lockfile.Credentials, bool) {
	s.credsMu.RLock()
	defer s.credsMu.RUnlock()
	return s.creds, s.hasCreds
}

func (s *Session) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := backoff.NewConstantBackOff(s.opts.Config.ReconnectInterval)
	for {
		s.tryConnect(ctx)
		timer := time.NewTimer(ticker.NextBackOff())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// tryConnect performs one discovery and dial. Ticks while connecting or connected are suppressed.
func (s *Session) tryConnect(ctx context.Context) {
	if s.State() != StateDisconnected {
		return
	}
	creds, ok := s.opts.Discover(s.opts.Config.LockfileHint)
	if !ok {
		return
	}
	s.attempts.Add(1)
	s.storeCredentials(creds)
	s.setState(ctx, StateConnecting)

	conn, err := s.dial(ctx, creds)
	if err != nil {
		s.setState(ctx, StateDisconnected)
		s.metrics.recordAttempt(ctx, "error")
		if !errors.Is(err, context.Canceled) {
			s.logger.Printf("lcu session: connect attempt %d failed: %v", s.Attempts(), err)
		}
		return
	}
	conn.SetReadLimit(s.opts.metadata.readLimit)

	writeCtx, cancel := context.WithTimeout(ctx, s.opts.metadata.writeTimeout)
	err = conn.Write(writeCtx, websocket.MessageText, schema.SubscribeFrame())
	cancel()
	if err != nil {
		_ = conn.Close(websocket.StatusInternalError, "subscribe failed")
		s.setState(ctx, StateDisconnected)
		s.metrics.recordAttempt(ctx, "error")
		s.logger.Printf("lcu session: subscribe failed: %v", err)
		return
	}

	id := uuid.NewString()
	s.connMu.Lock()
	s.conn = conn
	s.sessionID = id
	s.connMu.Unlock()
	s.setState(ctx, StateConnected)
	s.metrics.recordAttempt(ctx, "success")
	s.logger.Printf("lcu session %s: connected on port %d", id, creds.Port)

	s.readers.Add(1)
	go func() {
		defer s.readers.Done()
		err := s.readLoop(ctx, conn)
		s.connMu.Lock()
		if s.conn == conn {
			s.conn = nil
			s.sessionID = ""
		}
		s.connMu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.setState(ctx, StateDisconnected)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Printf("lcu session %s: disconnected: %v", id, err)
			return
		}
		s.logger.Printf("lcu session %s: closed", id)
	}()
}

func (s *Session) dial(ctx context.Context, creds lockfile.Credentials) (*websocket.Conn, error) {
	target := url.URL{
		Scheme: creds.SocketScheme(),
		Host:   net.JoinHostPort(s.opts.Config.Host, strconv.Itoa(creds.Port)),
		Path:   s.opts.metadata.socketPath,
	}
	header := http.Header{}
	header.Set("Authorization", basicAuth(s.opts.Config.Principal, creds.Password))
	header.Set("User-Agent", s.opts.metadata.userAgent)

	dialCtx, cancel := context.WithTimeout(ctx, s.opts.metadata.dialTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, target.String(), &websocket.DialOptions{
		HTTPClient: loopbackClient(0),
		HTTPHeader: header,
	})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target.Host, err)
	}
	return conn, nil
}

func (s *Session) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, net.ErrClosed) {
				return context.Canceled
			}
			if status := websocket.CloseStatus(err); status != -1 {
				if status == websocket.StatusNormalClosure {
					return context.Canceled
				}
				return fmt.Errorf("read: remote closed with status %d", status)
			}
			return fmt.Errorf("read: %w", err)
		}
		if msgType != websocket.MessageText {
			continue
		}
		s.metrics.recordFrame(ctx)
		s.handler(ctx, data)
	}
}

func (s *Session) storeCredentials(creds lockfile.Credentials) {
	s.credsMu.Lock()
	s.creds = creds
	s.hasCreds = true
	s.credsMu.Unlock()
}

func (s *Session) setState(ctx context.Context, state State) {
	if State(s.state.Swap(int32(state))) != state {
		s.metrics.recordTransition(ctx, state)
		if s.opts.OnStateChange != nil {
			s.opts.OnStateChange(ctx, state)
		}
	}
}

// loopbackClient trusts the client's self-signed certificate. The endpoint is bound to the
// loopback interface and authenticated with the lockfile secret.
func loopbackClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:           nil,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, // #nosec G402 -- self-signed loopback endpoint.
		},
		CheckRedirect: nil,
		Jar:           nil,
		Timeout:       timeout,
	}
}
