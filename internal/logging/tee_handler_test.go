package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
)

func TestNewTeeHandlerCollapsesDegenerateCases(t *testing.T) {
	if _, ok := newTeeHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler when every sink is nil")
	}

	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if got := newTeeHandler(nil, inner, nil); got != inner {
		t.Fatal("expected lone non-nil sink to be returned unwrapped")
	}
}

func TestTeeHandlerEnabledWhenAnySinkAccepts(t *testing.T) {
	var infoBuf, debugBuf bytes.Buffer
	info := slog.NewJSONHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo})
	debug := slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug})

	h := newTeeHandler(info, debug)
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected debug to be enabled via the debug sink")
	}

	logger := slog.New(h)
	logger.Debug("debug only")

	if infoBuf.Len() != 0 {
		t.Error("info sink should not receive debug records")
	}
	if debugBuf.Len() == 0 {
		t.Error("debug sink should receive debug records")
	}
}

func TestTeeHandlerWithAttrsReachesEverySink(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	h := newTeeHandler(slog.NewJSONHandler(&buf1, nil), slog.NewJSONHandler(&buf2, nil))

	logger := slog.New(h.WithAttrs([]slog.Attr{slog.String("topic", "recursion")}))
	logger.Info("fanned out")

	for i, buf := range []*bytes.Buffer{&buf1, &buf2} {
		if !bytes.Contains(buf.Bytes(), []byte(`"topic"`)) {
			t.Errorf("sink %d missing shared attribute", i+1)
		}
	}
}

func TestTeeLoggerDuplicatesOutput(t *testing.T) {
	var baseBuf, teeBuf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&baseBuf, nil))

	logger := TeeLogger(base, slog.NewJSONHandler(&teeBuf, nil))
	logger.Info("teed message")

	if baseBuf.Len() == 0 {
		t.Error("expected output in base buffer")
	}
	if teeBuf.Len() == 0 {
		t.Error("expected output in tee buffer")
	}
}

func TestTeeLoggerNilBase(t *testing.T) {
	var teeBuf bytes.Buffer
	logger := TeeLogger(nil, slog.NewJSONHandler(&teeBuf, nil))
	logger.Info("no base")

	if teeBuf.Len() == 0 {
		t.Error("expected output in tee buffer")
	}
}
