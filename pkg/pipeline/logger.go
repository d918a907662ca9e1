package pipeline

import (
	"context"
	"log/slog"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// SetLogger configures the logger used by the tiler.
// By default the tiler produces no log output. Pass nil to silence it again.
//
// Log levels used:
//   - [slog.LevelDebug]: per-stage timings and per-tile writes
//   - [slog.LevelInfo]: pair start and the chosen alignment
//   - [slog.LevelWarn]: skipped pairs and failed debug/report writes
func (t *Tiler) SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	t.logger = l
}
