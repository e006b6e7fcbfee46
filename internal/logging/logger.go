package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Logger wraps a logrus entry with field names shared by the index packages.
type Logger struct {
	*log.Entry
}

// New wraps base; a nil base selects the logrus standard logger.
func New(base *log.Logger) *Logger {
	if base == nil {
		base = log.StandardLogger()
	}
	return &Logger{Entry: log.NewEntry(base)}
}

// NewText creates a logger writing text (or JSON when format is "json") to w at level.
func NewText(w io.Writer, level, format string) (*Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := log.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	base := log.New()
	base.SetOutput(w)
	base.SetLevel(lvl)
	switch strings.ToLower(format) {
	case "", "text":
		base.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		base.SetFormatter(&log.JSONFormatter{})
	default:
		return nil, fmt.Errorf("logging: unsupported format %q", format)
	}
	return New(base), nil
}

// Discard returns a logger that drops every entry.
func Discard() *Logger {
	base := log.New()
	base.SetOutput(io.Discard)
	return New(base)
}

// With returns a logger carrying key=value on every entry.
func (l *Logger) With(key string, value interface{}) *Logger {
	return &Logger{Entry: l.Entry.WithField(key, value)}
}

// LogInsert records the outcome of an insert.
func (l *Logger) LogInsert(id string, dimension int, err error) {
	entry := l.WithFields(log.Fields{"id": id, "dimension": dimension})
	if err != nil {
		entry.WithError(err).Error("insert failed")
		return
	}
	entry.Debug("inserted")
}

// LogSearch records the outcome of a k-nearest search.
func (l *Logger) LogSearch(k, found int, err error) {
	entry := l.WithFields(log.Fields{"k": k, "found": found})
	if err != nil {
		entry.WithError(err).Warn("search failed")
		return
	}
	entry.Debug("search completed")
}

// LogReset records a teardown that released n nodes.
func (l *Logger) LogReset(released int) {
	l.WithField("released", released).Info("index reset")
}
