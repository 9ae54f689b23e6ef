package chunkfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenHeadFreshIsNullRef(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "q")

	h, err := OpenHead(path, nil)
	if err != nil {
		t.Fatalf("OpenHead: %v", err)
	}
	defer h.Close()

	if h.First() != NullRef {
		t.Fatalf("fresh head must read first=NullRef, got %d", h.First())
	}
}

func TestHeadWriteFirstPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "q")

	h, err := OpenHead(path, nil)
	if err != nil {
		t.Fatalf("OpenHead: %v", err)
	}
	if err := h.WriteFirst(42); err != nil {
		t.Fatalf("WriteFirst: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenHead(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if reopened.First() != 42 {
		t.Fatalf("got first=%d, want 42", reopened.First())
	}
}

func TestOpenHeadLockedTwiceFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "q")

	h1, err := OpenHead(path, nil)
	if err != nil {
		t.Fatalf("OpenHead: %v", err)
	}
	defer h1.Close()

	_, err = OpenHead(path, nil)
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("want ErrLocked, got %v", err)
	}
}

func TestChunkPathFormat(t *testing.T) {
	got := ChunkPath("/tmp/q", 3)
	want := "/tmp/q.3"
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestHeadDropFileRemovesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "q")

	h, err := OpenHead(path, nil)
	if err != nil {
		t.Fatalf("OpenHead: %v", err)
	}
	if err := h.DropFile(); err != nil {
		t.Fatalf("DropFile: %v", err)
	}

	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatalf("expected head file to be removed, stat err=%v", statErr)
	}

	reopened, err := OpenHead(path, nil)
	if err != nil {
		t.Fatalf("reopen after drop: %v", err)
	}
	defer reopened.Close()
	if reopened.First() != NullRef {
		t.Fatalf("reopened head after drop must be fresh, got first=%d", reopened.First())
	}
}
