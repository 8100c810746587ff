package arbor

import (
	"context"
	"log/slog"
)

// nopHandler is a slog.Handler that discards all records. Enabled returns
// false so callers skip formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// logger is the package logger. It is not guarded: arbor is single-threaded
// apart from texture decoding, which never logs.
var logger = slog.New(nopHandler{})

// SetLogger configures the logger used by arbor. By default nothing is
// logged. Pass nil to restore the silent default.
//
// Levels used:
//   - [slog.LevelDebug]: per-frame stats in debug mode
//   - [slog.LevelInfo]: atlas defragmentation, pool eviction
//   - [slog.LevelWarn]: degraded paths (un-atlased textures, pool over ceiling)
//   - [slog.LevelError]: failed draw and filter operations, texture loads
//     and screenshots
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	logger = l
}

// logError reports a non-nil err at error level and returns it.
func logError(err error) error {
	if err != nil {
		logger.Error(err.Error())
	}
	return err
}

// Logger returns the current logger.
func Logger() *slog.Logger {
	return logger
}
