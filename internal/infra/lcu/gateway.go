package lcu

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/coachpo/riftpilot/errs"
	"github.com/coachpo/riftpilot/internal/infra/lockfile"
)

// Outcome classifies a gateway request.
type Outcome int

const (
	// OutcomeOK is a 2xx response.
	OutcomeOK Outcome = iota
	// OutcomeNoCredentials means no lockfile has been discovered yet.
	OutcomeNoCredentials
	// OutcomeTransport covers dial, TLS, timeout and reset failures.
	OutcomeTransport
	// OutcomeStatus is a non-2xx response.
	OutcomeStatus
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeNoCredentials:
		return "no_credentials"
	case OutcomeTransport:
		return "transport"
	case OutcomeStatus:
		return "status"
	default:
		return "unknown"
	}
}

// Result is the outcome of one control-plane request.
type Result struct {
	Outcome Outcome
	Status  int
	Body    []byte
	Err     error

	method string
	path   string
}

// OK reports a 2xx response.
func (r Result) OK() bool {
	return r.Outcome == OutcomeOK
}

// Null reports an empty or JSON null body.
func (r Result) Null() bool {
	trimmed := bytes.TrimSpace(r.Body)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// Decode unmarshals a successful body into v.
func (r Result) Decode(v any) error {
	if err := r.Error(); err != nil {
		return err
	}
	if r.Null() {
		return errs.New("lcu/gateway", errs.CodeDecode,
			errs.WithRequest(r.method, r.path),
			errs.WithMessage("empty response body"))
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return errs.New("lcu/gateway", errs.CodeDecode,
			errs.WithRequest(r.method, r.path),
			errs.WithCause(err))
	}
	return nil
}

// Error returns nil for OK results and an *errs.E describing the failure otherwise.
func (r Result) Error() error {
	switch r.Outcome {
	case OutcomeOK:
		return nil
	case OutcomeNoCredentials:
		return errs.New("lcu/gateway", errs.CodeNoCredentials,
			errs.WithRequest(r.method, r.path),
			errs.WithMessage("client endpoint not discovered"))
	case OutcomeStatus:
		return errs.New("lcu/gateway", errs.CodeStatus,
			errs.WithRequest(r.method, r.path),
			errs.WithHTTP(r.Status),
			errs.WithMessage(snippet(r.Body)))
	default:
		return errs.New("lcu/gateway", errs.CodeNetwork,
			errs.WithRequest(r.method, r.path),
			errs.WithCause(r.Err))
	}
}

// CredentialSource yields the most recently discovered endpoint credentials.
type CredentialSource interface {
	Credentials() (lockfile.Credentials, bool)
}

// Gateway issues authenticated REST calls against the control plane. Each call is a single
// best-effort attempt; failures are logged and returned as non-OK results.
type Gateway struct {
	opts    Options
	source  CredentialSource
	client  *http.Client
	limiter *rate.Limiter
	logger  *log.Logger
	metrics *gatewayMetrics
}

// NewGateway builds a gateway reading credentials from source (normally the Session).
func NewGateway(source CredentialSource, opts Options) *Gateway {
	opts = withDefaults(opts)
	return &Gateway{
		opts:    opts,
		source:  source,
		client:  loopbackClient(opts.Config.RequestTimeout),
		limiter: rate.NewLimiter(rate.Limit(opts.Config.RequestRate), opts.Config.RequestBurst),
		logger:  opts.Logger,
		metrics: newGatewayMetrics(),
	}
}

// Do sends one request. body may be nil, raw JSON ([]byte or json.RawMessage) or any value to be
// JSON encoded.
func (g *Gateway) Do(ctx context.Context, method, path string, body any) Result {
	method = strings.ToUpper(strings.TrimSpace(method))
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	result := Result{Outcome: OutcomeOK, Status: 0, Body: nil, Err: nil, method: method, path: path}
	start := time.Now()
	defer func() {
		g.metrics.recordRequest(ctx, method, path, result.Outcome, time.Since(start))
	}()

	var creds lockfile.Credentials
	ok := false
	if g.source != nil {
		creds, ok = g.source.Credentials()
	}
	if !ok {
		result.Outcome = OutcomeNoCredentials
		return result
	}

	payload, err := encodeBody(body)
	if err != nil {
		result.Outcome = OutcomeTransport
		result.Err = fmt.Errorf("encode body: %w", err)
		g.logger.Printf("lcu gateway: %s %s: %v", method, path, result.Err)
		return result
	}

	if err := g.limiter.Wait(ctx); err != nil {
		result.Outcome = OutcomeTransport
		result.Err = fmt.Errorf("rate limit wait: %w", err)
		return result
	}

	endpoint := creds.HTTPScheme() + "://" + net.JoinHostPort(g.opts.Config.Host, strconv.Itoa(creds.Port)) + path
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		result.Outcome = OutcomeTransport
		result.Err = fmt.Errorf("build request: %w", err)
		g.logger.Printf("lcu gateway: %s %s: %v", method, path, result.Err)
		return result
	}
	req.Header.Set("Authorization", basicAuth(g.opts.Config.Principal, creds.Password))
	req.Header.Set("Content-Type", g.opts.metadata.contentType)
	req.Header.Set("Accept", g.opts.metadata.contentType)
	req.Header.Set("User-Agent", g.opts.metadata.userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		result.Outcome = OutcomeTransport
		result.Err = err
		g.logger.Printf("lcu gateway: %s %s: %v", method, path, err)
		return result
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, g.opts.metadata.maxBodyLength))
	result.Status = resp.StatusCode
	if err != nil {
		result.Outcome = OutcomeTransport
		result.Err = fmt.Errorf("read response: %w", err)
		g.logger.Printf("lcu gateway: %s %s: %v", method, path, result.Err)
		return result
	}
	result.Body = respBody
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		result.Outcome = OutcomeStatus
		g.logger.Printf("lcu gateway: %s %s: http %d %s", method, path, resp.StatusCode, snippet(respBody))
	}
	return result
}

func encodeBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		return json.Marshal(v)
	}
}

func basicAuth(principal, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(principal+":"+password))
}

func snippet(body []byte) string {
	const limit = 256
	trimmed := strings.TrimSpace(string(body))
	if len(trimmed) > limit {
		return trimmed[:limit] + "..."
	}
	return trimmed
}
