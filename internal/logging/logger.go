// Package logging provides the structured logger shared by both roles,
// grounded on the teacher's src/logger.go: rs/zerolog with a level/format
// pair, RFC3339 timestamps, caller info, and helpers for logging errors and
// recovered panics with a stack trace.
package logging

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/andrcmdr/australis-indexer/internal/borealiserr"
)

type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelTrace Level = "trace"
)

// LevelFromVerbose maps the --verbose flag to a zerolog level (spec §6):
// 0 -> info, 1 -> debug, 2 or higher -> trace.
func LevelFromVerbose(verbose int) Level {
	switch {
	case verbose <= 0:
		return LevelInfo
	case verbose == 1:
		return LevelDebug
	default:
		return LevelTrace
	}
}

// ParseDirectives parses an optional BOREALIS_LOG value of the form
// "target=level,target=level" (spec §6), the Go analogue of the
// RUST_LOG/env_logger-style per-target directives original_source's
// configs.rs reads. An empty string is not an error and yields a nil map.
func ParseDirectives(s string) (map[string]Level, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	directives := make(map[string]Level)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("%w: malformed BOREALIS_LOG directive %q, want target=level", borealiserr.ErrConfig, part)
		}
		target := strings.TrimSpace(kv[0])
		level := Level(strings.ToLower(strings.TrimSpace(kv[1])))
		switch level {
		case LevelDebug, LevelInfo, LevelWarn, LevelError, LevelTrace:
		default:
			return nil, fmt.Errorf("%w: unknown log level %q in BOREALIS_LOG directive %q", borealiserr.ErrConfig, level, part)
		}
		directives[target] = level
	}
	return directives, nil
}

type Format string

const (
	FormatJSON   Format = "json"
	FormatPretty Format = "pretty"
)

// Config selects the minimum level and output rendering for NewLogger.
type Config struct {
	Level  Level
	Format Format
	// Target is the stable log target spec §6 names for this role:
	// "borealis_producer" or "borealis_consumer".
	Target string
	// Directives holds the parsed BOREALIS_LOG per-target overrides (spec
	// §6). A directive matching Target wins over Level.
	Directives map[string]Level
}

// NewLogger builds a zerolog.Logger with a "target" field fixed to
// cfg.Target, so every event from this process carries it without each
// call site repeating Str("target", ...). A BOREALIS_LOG directive for
// cfg.Target overrides cfg.Level.
func NewLogger(cfg Config) zerolog.Logger {
	var output io.Writer = os.Stdout

	effective := cfg.Level
	if override, ok := cfg.Directives[cfg.Target]; ok {
		effective = override
	}

	var level zerolog.Level
	switch effective {
	case LevelDebug:
		level = zerolog.DebugLevel
	case LevelInfo:
		level = zerolog.InfoLevel
	case LevelWarn:
		level = zerolog.WarnLevel
	case LevelError:
		level = zerolog.ErrorLevel
	case LevelTrace:
		level = zerolog.TraceLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == FormatPretty {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Str("target", cfg.Target).
		Logger()
}

// LogError logs err with additional context fields.
func LogError(logger zerolog.Logger, err error, msg string, fields map[string]interface{}) {
	event := logger.Error().Err(err)
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}

// LogErrorWithStack logs err together with the current goroutine's stack,
// for unexpected failures worth full diagnostics.
func LogErrorWithStack(logger zerolog.Logger, err error, msg string, fields map[string]interface{}) {
	event := logger.Error().Err(err).Str("stack_trace", string(debug.Stack()))
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}

// LogPanic logs a recovered panic value with a stack trace. It does not
// re-panic; callers decide whether to exit after calling it.
func LogPanic(logger zerolog.Logger, panicValue interface{}, msg string, fields map[string]interface{}) {
	event := logger.Error().
		Interface("panic_value", panicValue).
		Str("stack_trace", string(debug.Stack()))
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}
