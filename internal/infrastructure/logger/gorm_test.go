package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func newGormObserver(level zapcore.Level) (*zap.Logger, *observer.ObservedLogs) {
	core, recorded := observer.New(level)
	return zap.New(core), recorded
}

func invoiceQuery() (string, int64) {
	return "SELECT * FROM invoices WHERE client_id = ?", 5
}

func TestNewGormLogger(t *testing.T) {
	zapLogger, _ := newGormObserver(zapcore.InfoLevel)

	gormLog := NewGormLogger(zapLogger, gormlogger.Info)

	require.NotNil(t, gormLog)
	assert.Equal(t, gormlogger.Info, gormLog.logLevel)

	// Interface compliance
	var _ gormlogger.Interface = gormLog
}

func TestGormLoggerWithOptions(t *testing.T) {
	zapLogger, _ := newGormObserver(zapcore.InfoLevel)

	gormLog := NewGormLogger(
		zapLogger,
		gormlogger.Info,
		WithSlowThreshold(500*time.Millisecond),
		WithIgnoreRecordNotFoundError(false),
	)

	require.NotNil(t, gormLog)
	assert.Equal(t, 500*time.Millisecond, gormLog.slowThreshold)
	assert.False(t, gormLog.ignoreRecordNotFoundError)
}

func TestGormLogger_LogMode(t *testing.T) {
	zapLogger, _ := newGormObserver(zapcore.InfoLevel)

	gormLog := NewGormLogger(zapLogger, gormlogger.Info)
	newLogger := gormLog.LogMode(gormlogger.Warn)

	// LogMode returns a copy, the receiver stays untouched
	assert.Equal(t, gormlogger.Info, gormLog.logLevel)

	newGormLog, ok := newLogger.(*GormLogger)
	require.True(t, ok)
	assert.Equal(t, gormlogger.Warn, newGormLog.logLevel)
}

func TestGormLogger_Info(t *testing.T) {
	zapLogger, recorded := newGormObserver(zapcore.InfoLevel)

	gormLog := NewGormLogger(zapLogger, gormlogger.Info)
	gormLog.Info(context.Background(), "migrating table %s", "allocations")

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].Message, "migrating table allocations")
}

func TestGormLogger_Info_Suppressed(t *testing.T) {
	zapLogger, recorded := newGormObserver(zapcore.InfoLevel)

	gormLog := NewGormLogger(zapLogger, gormlogger.Silent)
	gormLog.Info(context.Background(), "migrating table allocations")

	assert.Empty(t, recorded.All())
}

func TestGormLogger_Warn(t *testing.T) {
	zapLogger, recorded := newGormObserver(zapcore.WarnLevel)

	gormLog := NewGormLogger(zapLogger, gormlogger.Warn)
	gormLog.Warn(context.Background(), "pool saturated, %d waiters", 42)

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].Message, "pool saturated, 42 waiters")
	assert.Equal(t, zapcore.WarnLevel, logs[0].Level)
}

func TestGormLogger_Error(t *testing.T) {
	zapLogger, recorded := newGormObserver(zapcore.ErrorLevel)

	gormLog := NewGormLogger(zapLogger, gormlogger.Error)
	gormLog.Error(context.Background(), "connection lost")

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Equal(t, zapcore.ErrorLevel, logs[0].Level)
}

func TestGormLogger_Trace_Error(t *testing.T) {
	zapLogger, recorded := newGormObserver(zapcore.ErrorLevel)

	gormLog := NewGormLogger(zapLogger, gormlogger.Error)
	gormLog.Trace(context.Background(), time.Now(), invoiceQuery, errors.New("deadlock detected"))

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].Message, "SQL Error")
}

func TestGormLogger_Trace_RecordNotFoundIgnored(t *testing.T) {
	zapLogger, recorded := newGormObserver(zapcore.ErrorLevel)

	gormLog := NewGormLogger(zapLogger, gormlogger.Error, WithIgnoreRecordNotFoundError(true))
	gormLog.Trace(context.Background(), time.Now(), invoiceQuery, gormlogger.ErrRecordNotFound)

	// Missing rows are an expected lookup outcome, not an error
	assert.Empty(t, recorded.All())
}

func TestGormLogger_Trace_SlowQuery(t *testing.T) {
	zapLogger, recorded := newGormObserver(zapcore.WarnLevel)

	gormLog := NewGormLogger(
		zapLogger,
		gormlogger.Warn,
		WithSlowThreshold(1*time.Nanosecond),
	)

	begin := time.Now().Add(-1 * time.Second)
	gormLog.Trace(context.Background(), begin, invoiceQuery, nil)

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].Message, "SLOW SQL")
}

func TestGormLogger_Trace_NormalQuery(t *testing.T) {
	zapLogger, recorded := newGormObserver(zapcore.DebugLevel)

	gormLog := NewGormLogger(zapLogger, gormlogger.Info)
	gormLog.Trace(context.Background(), time.Now(), invoiceQuery, nil)

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].Message, "SQL Query")
}

func TestGormLogger_Trace_Silent(t *testing.T) {
	zapLogger, recorded := newGormObserver(zapcore.DebugLevel)

	gormLog := NewGormLogger(zapLogger, gormlogger.Silent)
	gormLog.Trace(context.Background(), time.Now(), invoiceQuery, nil)

	assert.Empty(t, recorded.All())
}

func TestGormLogger_Trace_WithRequestID(t *testing.T) {
	zapLogger, recorded := newGormObserver(zapcore.DebugLevel)

	gormLog := NewGormLogger(zapLogger, gormlogger.Info)

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-7f3a2b")
	gormLog.Trace(ctx, time.Now(), invoiceQuery, nil)

	logs := recorded.All()
	require.Len(t, logs, 1)

	hasRequestID := false
	for _, field := range logs[0].Context {
		if field.Key == "request_id" {
			hasRequestID = true
			assert.Equal(t, "req-7f3a2b", field.String)
		}
	}
	assert.True(t, hasRequestID, "request_id should be in log fields")
}

func TestMapGormLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected gormlogger.LogLevel
	}{
		{"silent", gormlogger.Silent},
		{"error", gormlogger.Error},
		{"warn", gormlogger.Warn},
		{"info", gormlogger.Info},
		{"debug", gormlogger.Info},
		{"unknown", gormlogger.Warn},
		{"", gormlogger.Warn},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, MapGormLogLevel(tt.level))
		})
	}
}
