package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"

	pkgerrors "github.com/emlakofis/emlak-backend/pkg/errors"
)

type Options struct {
	ServiceName string
	Level       zerolog.Level
	// WarnStack adds a stack trace to warn entries too.
	WarnStack bool
	// Format is "json" (default) or "console".
	Format string
	Output io.Writer
}

// Logger carries request-scoped fields through context.Context. Fields added
// with WithField and friends travel with the context and appear on every
// entry written from it.
type Logger struct {
	base      *zerolog.Logger
	warnStack bool
}

// Cloud Logging reads the entry level from "severity".
var severities = map[zerolog.Level]string{
	zerolog.DebugLevel: "DEBUG",
	zerolog.InfoLevel:  "INFO",
	zerolog.WarnLevel:  "WARNING",
	zerolog.ErrorLevel: "ERROR",
	zerolog.FatalLevel: "CRITICAL",
	zerolog.PanicLevel: "ALERT",
}

type severityHook struct{}

func (severityHook) Run(e *zerolog.Event, level zerolog.Level, _ string) {
	if s, ok := severities[level]; ok {
		e.Str("severity", s)
	}
}

func New(opts Options) *Logger {
	if opts.Level == zerolog.NoLevel {
		opts.Level = zerolog.InfoLevel
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var base zerolog.Logger
	if strings.EqualFold(strings.TrimSpace(opts.Format), "console") {
		base = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"})
	} else {
		base = zerolog.New(out).Hook(severityHook{})
	}
	base = base.Level(opts.Level).With().Timestamp().Str("service", opts.ServiceName).Logger()
	return &Logger{base: &base, warnStack: opts.WarnStack}
}

// Nop discards every entry.
func Nop() *Logger {
	base := zerolog.Nop()
	return &Logger{base: &base}
}

// ParseLevel maps a config value onto a level; anything unknown is info.
func ParseLevel(value string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func (l *Logger) entry(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if e := zerolog.Ctx(ctx); e.GetLevel() != zerolog.Disabled {
			return e
		}
	}
	return l.base
}

func (l *Logger) derive(ctx context.Context, build func(zerolog.Context) zerolog.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	child := build(l.entry(ctx).With()).Logger()
	return child.WithContext(ctx)
}

func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	return l.derive(ctx, func(c zerolog.Context) zerolog.Context { return c.Interface(key, value) })
}

func (l *Logger) WithFields(ctx context.Context, fields map[string]any) context.Context {
	return l.derive(ctx, func(c zerolog.Context) zerolog.Context { return c.Fields(fields) })
}

func (l *Logger) WithRequestID(ctx context.Context, requestID string) context.Context {
	return l.WithField(ctx, "request_id", requestID)
}

func (l *Logger) WithPersonnelID(ctx context.Context, personnelID string) context.Context {
	return l.WithField(ctx, "personnel_id", personnelID)
}

func (l *Logger) WithJobID(ctx context.Context, jobID string) context.Context {
	return l.WithField(ctx, "job_id", jobID)
}

func (l *Logger) Debug(ctx context.Context, msg string) {
	l.entry(ctx).Debug().Msg(msg)
}

func (l *Logger) Info(ctx context.Context, msg string) {
	l.entry(ctx).Info().Msg(msg)
}

func (l *Logger) Warn(ctx context.Context, msg string) {
	e := l.entry(ctx).Warn()
	if l.warnStack {
		e = e.Str("stack", stack())
	}
	e.Msg(msg)
}

// Error always records a stack trace. Typed errors also carry their code.
func (l *Logger) Error(ctx context.Context, msg string, err error) {
	e := l.entry(ctx).Error()
	if err != nil {
		e = e.Err(err)
		if typed := pkgerrors.As(err); typed != nil {
			e = e.Str("error_code", string(typed.Code()))
		}
	}
	e.Str("stack", stack()).Msg(msg)
}

func stack() string {
	return strings.TrimSpace(string(debug.Stack()))
}
