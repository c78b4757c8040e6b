package logging

import (
	"context"
	"errors"
	"log/slog"
)

// teeHandler forwards each record to every sink that accepts its level.
type teeHandler struct {
	sinks []slog.Handler
}

func newTeeHandler(sinks ...slog.Handler) slog.Handler {
	kept := make([]slog.Handler, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			kept = append(kept, sink)
		}
	}
	switch len(kept) {
	case 0:
		return NoopHandler{}
	case 1:
		return kept[0]
	}
	return &teeHandler{sinks: kept}
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, sink := range h.sinks {
		if sink.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, sink := range h.sinks {
		if !sink.Enabled(ctx, record.Level) {
			continue
		}
		if err := sink.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	sinks := make([]slog.Handler, len(h.sinks))
	for i, sink := range h.sinks {
		sinks[i] = sink.WithAttrs(attrs)
	}
	return &teeHandler{sinks: sinks}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	sinks := make([]slog.Handler, len(h.sinks))
	for i, sink := range h.sinks {
		sinks[i] = sink.WithGroup(name)
	}
	return &teeHandler{sinks: sinks}
}

// TeeLogger returns a logger that writes through base plus every extra sink.
// The daemon pairs its console logger with a JSON file handler this way.
func TeeLogger(base *slog.Logger, sinks ...slog.Handler) *slog.Logger {
	if base == nil {
		return slog.New(newTeeHandler(sinks...))
	}
	return slog.New(newTeeHandler(append([]slog.Handler{base.Handler()}, sinks...)...))
}
