package progc

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine,
// including compiler workers.
var loggerPtr atomic.Pointer[slog.Logger]

// platforms receive logger updates for as long as a Service uses them.
var (
	platformsMu sync.Mutex
	platforms   = make(map[loggerSetter]struct{})
)

func init() {
	l := newNopLogger()
	loggerPtr.Store(l)
}

// SetLogger configures the logger for progc.
// By default, progc produces no log output. Call SetLogger to enable logging.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by progc:
//   - [slog.LevelDebug]: job lifecycle (queued, started, finalized, discarded)
//   - [slog.LevelInfo]: service mode and compiler pool startup
//   - [slog.LevelWarn]: synchronous fallback, failed programs, recovered panics
//
// Platforms that implement SetLogger(*slog.Logger) receive the logger when
// a Service is created over them and on every later SetLogger call.
//
// Example:
//
//	progc.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	platformsMu.Lock()
	ps := make([]loggerSetter, 0, len(platforms))
	for p := range platforms {
		ps = append(ps, p)
	}
	platformsMu.Unlock()
	for _, p := range ps {
		p.SetLogger(l)
	}
}

// Logger returns the current logger used by progc.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// loggerSetter is implemented by platforms that accept a logger.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

// propagateLogger passes the current logger to a platform if it implements
// loggerSetter, and remembers it for later SetLogger calls.
func propagateLogger(platform any) {
	ls, ok := platform.(loggerSetter)
	if !ok {
		return
	}
	platformsMu.Lock()
	platforms[ls] = struct{}{}
	platformsMu.Unlock()
	ls.SetLogger(Logger())
}

// forgetLogger stops propagating logger changes to a platform.
func forgetLogger(platform any) {
	ls, ok := platform.(loggerSetter)
	if !ok {
		return
	}
	platformsMu.Lock()
	delete(platforms, ls)
	platformsMu.Unlock()
}
