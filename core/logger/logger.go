package logger

// Logger is the logging surface shared by the dispatch engine and its adapters.
type Logger interface {
	Debugf(format string, args ...any)
	// Debugw logs a message with structured fields.
	Debugw(msg string, fields map[string]any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	// Warnw logs a warning with structured fields. Lost assignment races and
	// degraded provider lookups go through here.
	Warnw(msg string, fields map[string]any)
	Errorf(format string, args ...any)
}

// StructuredLogger can log structured debug information.
type StructuredLogger interface {
	Debugw(msg string, fields map[string]any)
}
