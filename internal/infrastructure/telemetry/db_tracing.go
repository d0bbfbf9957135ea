// Package telemetry provides OpenTelemetry integration for distributed tracing.
package telemetry

import (
	"context"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig configures query span generation.
type DBTracingConfig struct {
	Enabled bool
	// LogFullSQL includes bound parameters in span attributes. Invoice and
	// client rows carry fiscal identifiers, so keep this off outside dev.
	LogFullSQL      bool
	SlowQueryThresh time.Duration
	DBSystem        string
	// WithoutVariables strips query variables from the recorded statement.
	WithoutVariables bool
}

func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		Enabled:          false,
		LogFullSQL:       false,
		SlowQueryThresh:  200 * time.Millisecond,
		DBSystem:         "postgresql",
		WithoutVariables: true,
	}
}

// DBTracingPlugin wraps otelgorm with slow query detection on top.
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
}

func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	return &DBTracingPlugin{
		config: cfg,
		logger: logger,
	}
}

// RegisterOtelGorm installs otelgorm plus the timing callbacks on db.
// A no-op when tracing is disabled.
func (p *DBTracingPlugin) RegisterOtelGorm(db *gorm.DB) error {
	if !p.config.Enabled {
		p.logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{
		otelgorm.WithDBName(p.config.DBSystem),
	}
	if !p.config.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}

	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	if err := p.registerBeforeCallbacks(db); err != nil {
		return err
	}
	// Runs after otelgorm so the span is already open.
	if err := p.registerSlowQueryCallback(db); err != nil {
		return err
	}

	p.logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", p.config.LogFullSQL),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
		zap.String("db_system", p.config.DBSystem),
	)

	return nil
}

// registerFn registers a named callback on one GORM operation hook.
type registerFn = func(name string, fn func(*gorm.DB)) error

// forEachGormOp visits the six GORM operation types. The before and after
// arguments register a callback around the operation's core callback.
func forEachGormOp(db *gorm.DB, visit func(suffix string, before, after registerFn) error) error {
	ops := []struct {
		suffix        string
		before, after registerFn
	}{
		{"create", db.Callback().Create().Before("gorm:create").Register, db.Callback().Create().After("gorm:create").Register},
		{"query", db.Callback().Query().Before("gorm:query").Register, db.Callback().Query().After("gorm:query").Register},
		{"update", db.Callback().Update().Before("gorm:update").Register, db.Callback().Update().After("gorm:update").Register},
		{"delete", db.Callback().Delete().Before("gorm:delete").Register, db.Callback().Delete().After("gorm:delete").Register},
		{"row", db.Callback().Row().Before("gorm:row").Register, db.Callback().Row().After("gorm:row").Register},
		{"raw", db.Callback().Raw().Before("gorm:raw").Register, db.Callback().Raw().After("gorm:raw").Register},
	}
	for _, op := range ops {
		if err := visit(op.suffix, op.before, op.after); err != nil {
			return err
		}
	}
	return nil
}

func (p *DBTracingPlugin) registerBeforeCallbacks(db *gorm.DB) error {
	beforeCallback := func(db *gorm.DB) {
		if db.Statement.Context != nil {
			db.Statement.Context = context.WithValue(db.Statement.Context, queryStartTimeKey, time.Now())
		}
	}

	return forEachGormOp(db, func(suffix string, before, _ registerFn) error {
		return before("otel_timing:before_"+suffix, beforeCallback)
	})
}

func (p *DBTracingPlugin) registerSlowQueryCallback(db *gorm.DB) error {
	return forEachGormOp(db, func(suffix string, _, after registerFn) error {
		return after("otel_slow_query:"+suffix, p.slowQueryCallback)
	})
}

func (p *DBTracingPlugin) slowQueryCallback(db *gorm.DB) {
	if db.Statement.Context == nil {
		return
	}
	annotateQuerySpan(db, p.config.SlowQueryThresh)
}

// annotateQuerySpan adds result attributes to the active query span and
// flags slow queries. ErrRecordNotFound is an ordinary lookup miss, not a
// span error.
func annotateQuerySpan(db *gorm.DB, slowQueryThresh time.Duration) {
	ctx := db.Statement.Context

	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}

	if db.Statement.RowsAffected >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	}
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}

	if db.Error != nil && db.Error != gorm.ErrRecordNotFound {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}

	if startTime, ok := ctx.Value(queryStartTimeKey).(time.Time); ok {
		elapsed := time.Since(startTime)
		if elapsed > slowQueryThresh {
			span.SetAttributes(attribute.Bool("db.slow_query", true))
			span.SetAttributes(attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()))
			span.AddEvent("slow_query_warning", trace.WithAttributes(
				attribute.Int64("duration_ms", elapsed.Milliseconds()),
				attribute.Int64("threshold_ms", slowQueryThresh.Milliseconds()),
			))
		}
	}
}

type contextKey string

const queryStartTimeKey contextKey = "otel_query_start_time"

// WithQueryStartTime stamps the context with the query start time used for
// slow query detection.
func WithQueryStartTime(ctx context.Context) context.Context {
	return context.WithValue(ctx, queryStartTimeKey, time.Now())
}

// DBTracingCallback is the timing callback pair without the otelgorm
// dependency, for databases that already have their own span plugin.
type DBTracingCallback struct {
	slowQueryThresh time.Duration
}

func NewDBTracingCallback(slowQueryThresh time.Duration) *DBTracingCallback {
	return &DBTracingCallback{
		slowQueryThresh: slowQueryThresh,
	}
}

// BeforeCallback stamps the statement context with the start time.
func (c *DBTracingCallback) BeforeCallback(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartTimeKey, time.Now())
	}
}

// AfterCallback annotates the active span with the query outcome.
func (c *DBTracingCallback) AfterCallback(db *gorm.DB) {
	if db.Statement.Context == nil {
		return
	}
	annotateQuerySpan(db, c.slowQueryThresh)
}

// RegisterCallbacks installs the before/after pair on every operation type.
func (c *DBTracingCallback) RegisterCallbacks(db *gorm.DB) error {
	return forEachGormOp(db, func(suffix string, before, after registerFn) error {
		if err := before("otel_timing:before_"+suffix, c.BeforeCallback); err != nil {
			return err
		}
		return after("otel_timing:after_"+suffix, c.AfterCallback)
	})
}
