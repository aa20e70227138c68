package sqlstore

import (
	"context"
	"database/sql"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/coachpo/riftpilot/internal/infra/telemetry"
)

// ObservePoolMetrics registers observable gauges that report database/sql pool health.
// Gauges emit open, idle and in-use connection counts.
func ObservePoolMetrics(db *sql.DB, poolName string) {
	if db == nil {
		return
	}
	normalized := strings.TrimSpace(poolName)
	if normalized == "" {
		normalized = "accounts"
	}
	attrs := []attribute.KeyValue{
		telemetry.AttrEnvironment.String(telemetry.Environment()),
		attribute.String("db_pool", normalized),
	}

	meter := otel.Meter("sqlstore.pool")
	gauges := []struct {
		name        string
		description string
		value       func(sql.DBStats) int64
	}{
		{"riftpilot_db_pool_connections_open", "Established connections (idle + in use)", func(s sql.DBStats) int64 { return int64(s.OpenConnections) }},
		{"riftpilot_db_pool_connections_idle", "Idle connections ready for checkout", func(s sql.DBStats) int64 { return int64(s.Idle) }},
		{"riftpilot_db_pool_connections_in_use", "Connections currently in use", func(s sql.DBStats) int64 { return int64(s.InUse) }},
		{"riftpilot_db_pool_wait_count", "Total connections waited for", func(s sql.DBStats) int64 { return s.WaitCount }},
	}
	for _, g := range gauges {
		value := g.value
		if _, err := meter.Int64ObservableGauge(g.name,
			metric.WithDescription(g.description),
			metric.WithUnit("{connection}"),
			metric.WithInt64Callback(func(_ context.Context, observer metric.Int64Observer) error {
				observer.Observe(value(db.Stats()), metric.WithAttributes(attrs...))
				return nil
			}),
		); err != nil {
			return
		}
	}
}
