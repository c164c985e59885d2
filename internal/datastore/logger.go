package datastore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hazardwatch/hazardwatch/internal/errors"
	"github.com/hazardwatch/hazardwatch/internal/logging"
)

// QueryObserver receives the outcome of every SQL statement.
type QueryObserver interface {
	ObserveQuery(operation, table string, duration time.Duration, err error)
}

func getLogger() *slog.Logger {
	return logging.ForService("datastore")
}

// GormLogger implements GORM's logger interface with structured logging
type GormLogger struct {
	SlowThreshold time.Duration
	LogLevel      logger.LogLevel
	observer      QueryObserver
}

// NewGormLogger creates a new GORM logger instance
func NewGormLogger(slowThreshold time.Duration, logLevel logger.LogLevel, observer QueryObserver) *GormLogger {
	return &GormLogger{
		SlowThreshold: slowThreshold,
		LogLevel:      logLevel,
		observer:      observer,
	}
}

// LogMode implements logger.Interface
func (l *GormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

// Info implements logger.Interface
func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= logger.Info {
		getLogger().InfoContext(ctx, fmt.Sprintf(msg, data...))
	}
}

// Warn implements logger.Interface
func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= logger.Warn {
		getLogger().WarnContext(ctx, fmt.Sprintf(msg, data...))
	}
}

// Error implements logger.Interface
func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= logger.Error {
		getLogger().ErrorContext(ctx, "GORM error", "msg", fmt.Sprintf(msg, data...))
	}
}

// Trace implements logger.Interface
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.LogLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	operation, table := parseSQLOperation(sql)

	if l.observer != nil {
		l.observer.ObserveQuery(operation, table, elapsed, err)
	}

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		getLogger().ErrorContext(ctx, "Database query failed",
			"error", err,
			"operation", operation,
			"table", table,
			"sql", sql,
			"duration", elapsed,
			"rows_affected", rows)

	case elapsed > l.SlowThreshold && l.SlowThreshold != 0:
		getLogger().WarnContext(ctx, "Slow query detected",
			"sql", sql,
			"duration", elapsed,
			"rows_affected", rows,
			"threshold", l.SlowThreshold)

	case l.LogLevel >= logger.Info:
		getLogger().DebugContext(ctx, "Query executed",
			"sql", sql,
			"duration", elapsed,
			"rows_affected", rows)
	}
}

// parseSQLOperation extracts the statement verb and main table from sql.
func parseSQLOperation(sql string) (operation, table string) {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "unknown", "unknown"
	}
	operation = strings.ToLower(fields[0])

	var marker string
	switch operation {
	case "select", "delete":
		marker = "from"
	case "insert":
		marker = "into"
	case "update":
		if len(fields) > 1 {
			return operation, cleanTableName(fields[1])
		}
	case "savepoint", "release", "rollback", "begin", "commit":
		return "transaction", "none"
	}

	for i, f := range fields {
		if strings.EqualFold(f, marker) && i+1 < len(fields) {
			return operation, cleanTableName(fields[i+1])
		}
	}
	return operation, "unknown"
}

func cleanTableName(name string) string {
	return strings.Trim(name, "`\"();")
}
