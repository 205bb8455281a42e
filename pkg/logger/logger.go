// Package logger builds the zap loggers used by the server, the admin CLI and GORM.
package logger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

// New builds a zap logger. env "development" switches to the human readable
// console encoder; anything else logs JSON.
func New(level, env string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.EncoderConfig.TimeKey = "timestamp"
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.StacktraceKey = "stacktrace"

	if env == "development" {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = zap.NewAtomicLevelAt(lvl)

	return zapConfig.Build()
}

// MustNew is New for entry points: an unusable logger configuration falls
// back to the zap production defaults.
func MustNew(level, env string) *zap.Logger {
	l, err := New(level, env)
	if err != nil {
		l, _ = zap.NewProduction()
		l.Warn("Falling back to default logger", zap.Error(err))
	}
	return l
}

// slowQueryThreshold marks a statement as slow.
const slowQueryThreshold = time.Second

// gormLogger writes GORM's log through zap, keeping GORM's severity: errors
// log at error level, slow queries at warn and statement traces at debug.
type gormLogger struct {
	log   *zap.Logger
	level gormlogger.LogLevel
}

// NewGormLogger routes GORM's SQL log through zap. SQL statements are only
// traced at debug level; slow queries and errors are always reported.
func NewGormLogger(l *zap.Logger) gormlogger.Interface {
	level := gormlogger.Warn
	if l.Core().Enabled(zapcore.DebugLevel) {
		level = gormlogger.Info
	}
	return &gormLogger{log: l.Named("gorm"), level: level}
}

func (g *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *g
	clone.level = level
	return &clone
}

func (g *gormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if g.level >= gormlogger.Info {
		g.log.Info(fmt.Sprintf(msg, data...), zap.String("source", utils.FileWithLineNum()))
	}
}

func (g *gormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if g.level >= gormlogger.Warn {
		g.log.Warn(fmt.Sprintf(msg, data...), zap.String("source", utils.FileWithLineNum()))
	}
}

func (g *gormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if g.level >= gormlogger.Error {
		g.log.Error(fmt.Sprintf(msg, data...), zap.String("source", utils.FileWithLineNum()))
	}
}

func (g *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	fields := func() []zap.Field {
		sql, rows := fc()
		return []zap.Field{
			zap.String("sql", sql),
			zap.Int64("rows", rows),
			zap.Duration("elapsed", elapsed),
			zap.String("source", utils.FileWithLineNum()),
		}
	}

	switch {
	case err != nil && g.level >= gormlogger.Error && !errors.Is(err, gormlogger.ErrRecordNotFound):
		g.log.Error("SQL error", append(fields(), zap.Error(err))...)
	case elapsed > slowQueryThreshold && g.level >= gormlogger.Warn:
		g.log.Warn("Slow SQL", append(fields(), zap.Duration("threshold", slowQueryThreshold))...)
	case g.level >= gormlogger.Info:
		g.log.Debug("SQL", fields()...)
	}
}
