// Package logger provides structured logging bound to sync runs and requests.
package logger

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appctx "sitesync/internal/core/context"
)

// Logger wraps zap.SugaredLogger with context-aware logging.
type Logger struct {
	*zap.SugaredLogger
}

// Config holds logger configuration.
type Config struct {
	Level       string // debug, info, warn, error
	Development bool   // console encoder with colors
}

// New creates a Logger from configuration. An unknown level falls back to
// info; config validation rejects it before this point.
func New(cfg Config) (*Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zc zap.Config
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zc = zap.NewProductionConfig()
		zc.OutputPaths = []string{"stdout"}
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	zl, err := zc.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return &Logger{zl.Sugar()}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{zap.NewNop().Sugar()}
}

var process atomic.Pointer[Logger]

// SetDefault makes l the logger behind Default and the package helpers.
func SetDefault(l *Logger) {
	process.Store(l)
}

// Default returns the process logger, a production logger on stdout until
// SetDefault is called.
func Default() *Logger {
	if l := process.Load(); l != nil {
		return l
	}
	l, err := New(Config{Level: "info"})
	if err != nil {
		l = NewNop()
	}
	process.CompareAndSwap(nil, l)
	return process.Load()
}

// WithContext adds run scope, request and span info from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	sugar := l.SugaredLogger

	if run := appctx.GetRun(ctx); run != nil {
		sugar = sugar.With("site_id", run.SiteID, "run_id", run.RunID)
		if run.Phase != "" {
			sugar = sugar.With("phase", run.Phase)
		}
	}

	if req := appctx.GetRequest(ctx); req != nil {
		sugar = sugar.With("request_id", req.RequestID)
		if req.SiteID != "" {
			sugar = sugar.With("peer_site_id", req.SiteID)
		}
	}

	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		sugar = sugar.With("trace_id", sc.TraceID().String())
	}

	return &Logger{sugar}
}

// WithComponent tags every line with the emitting component.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{l.SugaredLogger.With("component", name)}
}

// ForSite tags every line with the local site a component serves.
func (l *Logger) ForSite(siteID string) *Logger {
	return &Logger{l.SugaredLogger.With("site_id", siteID)}
}

// Debug logs at debug level through the process logger.
func Debug(ctx context.Context, msg string, keysAndValues ...any) {
	Default().WithContext(ctx).Debugw(msg, keysAndValues...)
}

// Info logs at info level through the process logger.
func Info(ctx context.Context, msg string, keysAndValues ...any) {
	Default().WithContext(ctx).Infow(msg, keysAndValues...)
}

// Error logs at error level through the process logger.
func Error(ctx context.Context, msg string, keysAndValues ...any) {
	Default().WithContext(ctx).Errorw(msg, keysAndValues...)
}
