package telemetry

import (
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled bool
	// IncludeQueryVariables puts bound values into span statements; keep off in production
	IncludeQueryVariables bool
	SlowQueryThreshold    time.Duration
	DBName                string
}

const slowQueryStartKey = "ledger:query_started_at"

// RegisterDBTracing installs the otelgorm plugin and a callback that flags
// slow statements on their spans and in the log.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBName)}
	if !cfg.IncludeQueryVariables {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	threshold := cfg.SlowQueryThreshold
	if threshold <= 0 {
		threshold = 200 * time.Millisecond
	}
	before := func(tx *gorm.DB) { tx.InstanceSet(slowQueryStartKey, time.Now()) }
	after := func(tx *gorm.DB) { markSlowQuery(tx, threshold, logger) }

	cb := db.Callback()
	if err := cb.Create().Before("gorm:create").Register("ledger:slow_before_create", before); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("ledger:slow_after_create", after); err != nil {
		return err
	}
	if err := cb.Query().Before("gorm:query").Register("ledger:slow_before_query", before); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("ledger:slow_after_query", after); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("ledger:slow_before_update", before); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("ledger:slow_after_update", after); err != nil {
		return err
	}
	if err := cb.Delete().Before("gorm:delete").Register("ledger:slow_before_delete", before); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("ledger:slow_after_delete", after); err != nil {
		return err
	}

	logger.Info("Database tracing enabled", zap.Duration("slow_query_threshold", threshold))
	return nil
}

func markSlowQuery(tx *gorm.DB, threshold time.Duration, logger *zap.Logger) {
	v, ok := tx.InstanceGet(slowQueryStartKey)
	if !ok {
		return
	}
	started, ok := v.(time.Time)
	if !ok {
		return
	}
	elapsed := time.Since(started)
	if elapsed <= threshold {
		return
	}

	span := trace.SpanFromContext(tx.Statement.Context)
	span.SetAttributes(
		attribute.Bool("db.slow_query", true),
		attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
	)
	fields := []zap.Field{
		zap.String("table", tx.Statement.Table),
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", tx.Statement.RowsAffected),
	}
	if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		fields = append(fields, zap.Error(tx.Error))
	}
	logger.Warn("slow query", fields...)
}
