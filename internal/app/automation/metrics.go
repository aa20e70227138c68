package automation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/coachpo/riftpilot/internal/infra/telemetry"
)

type engineMetrics struct {
	environment string
	firings     metric.Int64Counter
}

func newEngineMetrics() *engineMetrics {
	meter := otel.Meter("automation")
	em := &engineMetrics{environment: telemetry.Environment(), firings: nil}
	em.firings, _ = meter.Int64Counter("automation.rule.firings",
		metric.WithDescription("Control-plane commands issued by automation rules"),
		metric.WithUnit("{command}"))
	return em
}

func (em *engineMetrics) recordRule(ctx context.Context, rule, result string) {
	if em == nil || em.firings == nil {
		return
	}
	em.firings.Add(ctx, 1, metric.WithAttributes(telemetry.RuleAttributes(em.environment, rule, result)...))
}
