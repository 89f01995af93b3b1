// File: internal/infra/logging/logging.go
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"course-payments/internal/config"
)

const service = "course-payments"

// New builds the process logger from config.
// Levels: trace|debug|info|warn|error; an unknown level falls back to info.
// Formats: json|console; dev mode always uses console with caller info.
// Sampling only thins debug and info; warnings and errors (signature
// rejections, state conflicts) are always kept.
func New(cfg config.LogConfig, dev bool) *zerolog.Logger {
	return newLogger(os.Stdout, cfg, dev)
}

func newLogger(w io.Writer, cfg config.LogConfig, dev bool) *zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if strings.EqualFold(cfg.Format, "console") || dev {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	lc := zerolog.New(w).Level(level).With().Timestamp().Str("service", service)
	if dev {
		lc = lc.Caller()
	}
	l := lc.Logger()

	if cfg.Sampling && !dev {
		burst := &zerolog.BurstSampler{Burst: 100, Period: time.Second, NextSampler: &zerolog.BasicSampler{N: 100}}
		l = l.Sample(zerolog.LevelSampler{DebugSampler: burst, InfoSampler: burst})
	}
	return &l
}

type ctxKey int

const (
	traceIDKey ctxKey = iota
	userIDKey
	orderIDKey
)

var ctxFields = []struct {
	key  ctxKey
	name string
}{
	{traceIDKey, "trace_id"},
	{userIDKey, "user_id"},
	{orderIDKey, "order_id"},
}

// With returns base enriched with whatever trace, user and order ids ctx carries.
func With(ctx context.Context, base *zerolog.Logger) *zerolog.Logger {
	lc := base.With()
	for _, f := range ctxFields {
		if v, ok := ctx.Value(f.key).(string); ok && v != "" {
			lc = lc.Str(f.name, v)
		}
	}
	l := lc.Logger()
	return &l
}

// TraceDuration logs entry and exit of name at trace level.
// Usage: defer logging.TraceDuration(logger, "PaymentUC.Verify")()
func TraceDuration(logger *zerolog.Logger, name string) func() {
	if logger.GetLevel() > zerolog.TraceLevel {
		return func() {}
	}
	start := time.Now()
	logger.Trace().Str("method", name).Msg("start")
	return func() {
		logger.Trace().Str("method", name).Dur("duration", time.Since(start)).Msg("finish")
	}
}

// Redact shortens signatures and payment ids to a recognisable preview
// outside dev mode.
func Redact(s string, dev bool) string {
	if dev {
		return s
	}
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "..." + s[len(s)-2:]
}

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey, id)
}

func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

func WithOrderID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, orderIDKey, id)
}

// TraceIDFrom returns the request trace id, if any.
func TraceIDFrom(ctx context.Context) string {
	v, _ := ctx.Value(traceIDKey).(string)
	return v
}
