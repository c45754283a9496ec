package logger

import (
	"log/slog"
	"strconv"
	"time"
)

// Helpers return an empty Attr for zero inputs; slog drops empty attrs, so
// log.Info("msg", logger.Error(err)) needs no nil check.

// ============================================================================
// Error Handling
// ============================================================================

// Errors groups multiple non-nil errors under the key "errors".
// Uses index-based keys to preserve error order. Returns empty Attr for all nil errors.
func Errors(errs ...error) slog.Attr {
	count := 0
	for _, err := range errs {
		if err != nil {
			count++
		}
	}
	if count == 0 {
		return slog.Attr{}
	}

	as := make([]slog.Attr, 0, count)
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Error creates an attribute for a single error under the key "error".
// Returns empty Attr for nil errors.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Panic creates an attribute for a recovered panic value.
func Panic(v any) slog.Attr {
	if v == nil {
		return slog.Attr{}
	}
	return slog.Any("panic", v)
}

// ============================================================================
// Performance and Timing
// ============================================================================

// Duration creates an attribute for a duration.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Elapsed calculates and logs the duration since the start time.
func Elapsed(start time.Time) slog.Attr {
	return slog.Duration("elapsed", time.Since(start))
}

// Timeout creates an attribute for a configured timeout.
func Timeout(d time.Duration) slog.Attr {
	return slog.Duration("timeout", d)
}

// ============================================================================
// Identifiers
// ============================================================================

// ID creates a generic identifier attribute with a custom key.
func ID(key string, value any) slog.Attr {
	if value == nil {
		return slog.Attr{}
	}
	return slog.Any(key, value)
}

// CorrelationID creates an attribute for correlation IDs.
func CorrelationID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("correlation_id", id)
}

// ============================================================================
// Dispatch
// ============================================================================

// Command creates an attribute for a command type name.
func Command(name string) slog.Attr {
	if name == "" {
		return slog.Attr{}
	}
	return slog.String("command", name)
}

// CommandID creates an attribute for a single command execution.
func CommandID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("command_id", id)
}

// Event creates an attribute for event names.
func Event(name string) slog.Attr {
	return slog.String("event", name)
}

// Subscriber creates an attribute for event subscriber names.
func Subscriber(name string) slog.Attr {
	return slog.String("subscriber", name)
}

// Limiter creates an attribute for a named throttle limiter.
func Limiter(name string) slog.Attr {
	if name == "" {
		return slog.Attr{}
	}
	return slog.String("limiter", name)
}

// Result creates an attribute for an operation result value.
func Result(v any) slog.Attr {
	return slog.Any("result", v)
}

// Payload creates an attribute for a command or event value.
func Payload(v any) slog.Attr {
	return slog.Any("payload", v)
}

// ============================================================================
// Generic Metadata
// ============================================================================

// Component creates an attribute for component names.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Type creates an attribute for type classification.
func Type(t string) slog.Attr {
	return slog.String("type", t)
}

// Count creates a generic counter attribute.
func Count(key string, n int) slog.Attr {
	return slog.Int(key, n)
}

