package lcu

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/coachpo/riftpilot/internal/infra/telemetry"
)

type sessionMetrics struct {
	environment string

	attempts    metric.Int64Counter
	transitions metric.Int64Counter
	frames      metric.Int64Counter
}

func newSessionMetrics() *sessionMetrics {
	meter := otel.Meter("lcu.session")
	sm := &sessionMetrics{
		environment: telemetry.Environment(),
		attempts:    nil,
		transitions: nil,
		frames:      nil,
	}
	sm.attempts, _ = meter.Int64Counter("lcu.session.connect_attempts",
		metric.WithDescription("Dial attempts made after a successful discovery"),
		metric.WithUnit("{attempt}"))
	sm.transitions, _ = meter.Int64Counter("lcu.session.transitions",
		metric.WithDescription("Session state transitions"),
		metric.WithUnit("{transition}"))
	sm.frames, _ = meter.Int64Counter("lcu.session.frames_received",
		metric.WithDescription("Text frames read from the event socket"),
		metric.WithUnit("{frame}"))
	return sm
}

func (sm *sessionMetrics) recordAttempt(ctx context.Context, result string) {
	if sm == nil || sm.attempts == nil {
		return
	}
	attrs := telemetry.ConnectionAttributes(sm.environment, StateConnecting.String())
	attrs = append(attrs, telemetry.AttrResult.String(result))
	sm.attempts.Add(ensureContext(ctx), 1, metric.WithAttributes(attrs...))
}

func (sm *sessionMetrics) recordTransition(ctx context.Context, state State) {
	if sm == nil || sm.transitions == nil {
		return
	}
	attrs := telemetry.ConnectionAttributes(sm.environment, state.String())
	sm.transitions.Add(ensureContext(ctx), 1, metric.WithAttributes(attrs...))
}

func (sm *sessionMetrics) recordFrame(ctx context.Context) {
	if sm == nil || sm.frames == nil {
		return
	}
	attrs := telemetry.ConnectionAttributes(sm.environment, StateConnected.String())
	sm.frames.Add(ensureContext(ctx), 1, metric.WithAttributes(attrs...))
}

type gatewayMetrics struct {
	environment string

	requests metric.Int64Counter
	latency  metric.Float64Histogram
}

func newGatewayMetrics() *gatewayMetrics {
	meter := otel.Meter("lcu.gateway")
	gm := &gatewayMetrics{
		environment: telemetry.Environment(),
		requests:    nil,
		latency:     nil,
	}
	gm.requests, _ = meter.Int64Counter("lcu.request.count",
		metric.WithDescription("Control-plane requests by outcome"),
		metric.WithUnit("{request}"))
	gm.latency, _ = meter.Float64Histogram("lcu.request.duration",
		metric.WithDescription("Control-plane request duration"),
		metric.WithUnit("ms"))
	return gm
}

func (gm *gatewayMetrics) recordRequest(ctx context.Context, method, path string, outcome Outcome, elapsed time.Duration) {
	if gm == nil {
		return
	}
	ctx = ensureContext(ctx)
	attrs := telemetry.RequestAttributes(gm.environment, method, routeOf(path), outcome.String())
	if gm.requests != nil {
		gm.requests.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if gm.latency != nil && outcome != OutcomeNoCredentials {
		gm.latency.Record(ctx, float64(elapsed.Microseconds())/1000, metric.WithAttributes(attrs...))
	}
}

// routeOf collapses numeric path segments so per-id paths share one series.
func routeOf(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		if segment != "" && strings.Trim(segment, "0123456789") == "" {
			segments[i] = "{id}"
		}
	}
	return strings.Join(segments, "/")
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
