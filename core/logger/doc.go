// Package logger provides structured logging utilities built on Go's standard slog package.
//
// # Features
//
//   - Factory with environment presets (WithDevelopment, WithProduction)
//   - Context-scoped attributes: WithAttrs attaches attributes to a context and
//     ContextHandler adds them to every record logged with that context
//   - Attribute helpers with nil safety for errors, durations and dispatch metadata
//
// # Basic Usage
//
//	log := logger.New(
//		logger.WithProduction("gate"),
//		logger.WithOutput(os.Stderr),
//	)
//
//	log.Info("dispatcher started",
//		logger.Component("dispatcher"),
//		logger.Count("workers", 8),
//	)
//
// # Context-Scoped Attributes
//
// A correlation tag is attached for the duration of a call by deriving a context:
//
//	ctx = logger.WithAttrs(ctx, logger.Command("CreateUser"), logger.CommandID(id))
//	log.InfoContext(ctx, "command started") // carries command and command_id
//
// The tag disappears as soon as the derived context goes out of scope, on normal
// and error returns alike, because the parent context is never modified.
//
// # Attribute Helpers
//
// Helpers returning an empty slog.Attr for empty input can be passed unconditionally:
//
//	log.Error("command failed", logger.Command(name), logger.Error(err))
package logger
