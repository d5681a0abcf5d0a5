package datastore

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tphakala/safeguard-go/internal/errors"
	"github.com/tphakala/safeguard-go/internal/logger"
	"github.com/tphakala/safeguard-go/internal/observability/metrics"
)

// GetLogger returns the module logger for the datastore.
func GetLogger() logger.Logger { return logger.Global().Module("datastore") }

// DefaultSlowQueryThreshold marks queries logged as slow.
const DefaultSlowQueryThreshold = 200 * time.Millisecond

// GormLogger routes GORM logging through the module logger and records
// query metrics.
type GormLogger struct {
	SlowThreshold time.Duration
	LogLevel      gormlogger.LogLevel
	metrics       *metrics.DatastoreMetrics
	log           logger.Logger
}

// NewGormLogger creates a GORM logger.
func NewGormLogger(slowThreshold time.Duration, level gormlogger.LogLevel, m *metrics.DatastoreMetrics, log logger.Logger) *GormLogger {
	if log == nil {
		log = GetLogger()
	}
	return &GormLogger{SlowThreshold: slowThreshold, LogLevel: level, metrics: m, log: log}
}

// LogMode implements gormlogger.Interface.
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	next := *l
	next.LogLevel = level
	return &next
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= gormlogger.Info {
		l.log.WithContext(ctx).Info(fmt.Sprintf(msg, data...))
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= gormlogger.Warn {
		l.log.WithContext(ctx).Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= gormlogger.Error {
		l.log.WithContext(ctx).Error("GORM error", logger.String("msg", fmt.Sprintf(msg, data...)))
	}
}

// Trace implements gormlogger.Interface.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.LogLevel <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	operation := parseSQLOperation(sql)

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		l.metrics.RecordDbOperation(operation, metrics.StatusError, elapsed)
		enhanced := errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", operation).
			Context("duration_ms", elapsed.Milliseconds()).
			Build()
		l.log.WithContext(ctx).Error("database query failed",
			logger.Error(enhanced),
			logger.String("sql", sql),
			logger.Duration("duration", elapsed))
	case l.SlowThreshold > 0 && elapsed > l.SlowThreshold:
		l.metrics.RecordDbOperation(operation, metrics.StatusSuccess, elapsed)
		l.log.WithContext(ctx).Warn("slow query detected",
			logger.String("sql", sql),
			logger.Duration("duration", elapsed),
			logger.Int64("rows_affected", rows),
			logger.Duration("threshold", l.SlowThreshold))
	default:
		l.metrics.RecordDbOperation(operation, metrics.StatusSuccess, elapsed)
		if l.LogLevel >= gormlogger.Info {
			l.log.WithContext(ctx).Debug("query executed",
				logger.String("sql", sql),
				logger.Duration("duration", elapsed),
				logger.Int64("rows_affected", rows))
		}
	}
}

var sqlVerb = regexp.MustCompile(`^\s*(?i:(select|insert|update|delete|create|drop|alter|pragma))\b`)

// parseSQLOperation returns the lowercase statement verb or "unknown".
func parseSQLOperation(sql string) string {
	if m := sqlVerb.FindStringSubmatch(sql); len(m) > 1 {
		return strings.ToLower(m[1])
	}
	return "unknown"
}
