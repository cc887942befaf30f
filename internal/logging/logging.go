// Package logging provides the JSON line logger used across the pipeline.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"ossensor/internal/interfaces"
)

// Logger and Field alias the cross-package logging contract so call sites
// can depend on this package alone.
type (
	Logger = interfaces.Logger
	Field  = interfaces.Field
)

const (
	levelDebug = iota
	levelInfo
	levelWarn
	levelError
)

// levelFromEnv reads OSSENSOR_LOG_LEVEL. Unknown or unset values keep debug
// so nothing is silently dropped during development.
func levelFromEnv() int {
	switch strings.ToLower(os.Getenv("OSSENSOR_LOG_LEVEL")) {
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelDebug
	}
}

// StdoutLogger writes one JSON object per entry. Persistent fields set via
// With are merged under per-call fields, per-call winning on key collision.
type StdoutLogger struct {
	component string
	out       io.Writer
	minLevel  int
	persist   []interfaces.Field
}

// NewStdoutLogger creates a logger for the named component. component may be
// empty; it is then omitted from the output.
func NewStdoutLogger(component string) *StdoutLogger {
	return &StdoutLogger{
		component: component,
		out:       os.Stdout,
		minLevel:  levelFromEnv(),
	}
}

var levelNames = [...]string{"debug", "info", "warn", "error"}

func (s *StdoutLogger) log(level int, msg string, fields []interfaces.Field) {
	if level < s.minLevel {
		return
	}
	entry := map[string]any{
		"time":  time.Now().UTC().Format(time.RFC3339),
		"level": levelNames[level],
		"msg":   msg,
	}
	if s.component != "" {
		entry["component"] = s.component
	}
	for _, f := range s.persist {
		entry[f.Key] = f.Value
	}
	for _, f := range fields {
		entry[f.Key] = f.Value
	}
	enc, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(s.out, "%s %s (unmarshalable fields)\n", levelNames[level], msg)
		return
	}
	fmt.Fprintln(s.out, string(enc))
}

func (s *StdoutLogger) Debug(msg string, fields ...interfaces.Field) {
	s.log(levelDebug, msg, fields)
}

func (s *StdoutLogger) Info(msg string, fields ...interfaces.Field) {
	s.log(levelInfo, msg, fields)
}

func (s *StdoutLogger) Warn(msg string, fields ...interfaces.Field) {
	s.log(levelWarn, msg, fields)
}

func (s *StdoutLogger) Error(msg string, fields ...interfaces.Field) {
	s.log(levelError, msg, fields)
}

// With returns a child logger carrying the given fields on every entry. A
// "component" field renames the child instead of being duplicated.
func (s *StdoutLogger) With(fields ...interfaces.Field) interfaces.Logger {
	child := &StdoutLogger{
		component: s.component,
		out:       s.out,
		minLevel:  s.minLevel,
		persist:   append([]interfaces.Field(nil), s.persist...),
	}
	for _, f := range fields {
		if f.Key == "component" {
			if name, ok := f.Value.(string); ok {
				child.component = name
				continue
			}
		}
		child.persist = append(child.persist, f)
	}
	return child
}
