package interfaces

// Logger is the structured logging contract every pipeline component takes.
// It is kept to leveled emit plus With so alternative backends slot in
// without touching callers.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a child logger that attaches the given fields to every
	// entry it emits.
	With(fields ...Field) Logger
}

// Field is one structured key/value attached to a log entry.
type Field struct {
	Key   string
	Value any
}
