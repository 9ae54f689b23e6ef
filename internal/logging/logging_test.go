package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
)

func TestDefaultReturnsProvidedLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	got := Default(logger)
	got.Info("hello")

	if buf.Len() == 0 {
		t.Fatalf("expected provided logger to receive the record")
	}
}

func TestDefaultFallsBackToDiscard(t *testing.T) {
	got := Default(nil)
	if got.Enabled(context.Background(), slog.LevelError) {
		t.Fatalf("expected discard logger to report disabled")
	}
}

func TestDiscardHandlerNoop(t *testing.T) {
	h := discardHandler{}
	ctx := context.Background()
	if h.Enabled(ctx, slog.LevelInfo) {
		t.Fatalf("discardHandler must report disabled")
	}
	if err := h.Handle(ctx, slog.Record{}); err != nil {
		t.Fatalf("discardHandler.Handle returned error: %v", err)
	}
	if h.WithAttrs(nil) != h {
		t.Fatalf("WithAttrs must return the same handler")
	}
	if h.WithGroup("g") != h {
		t.Fatalf("WithGroup must return the same handler")
	}
}
