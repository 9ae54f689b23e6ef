package chunkfile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"bytequeue/internal/binfmt"
	"bytequeue/internal/logging"
)

// HeadSize is the fixed size of the head file: a single chunk reference.
const HeadSize = RefSize

// Head owns the small header file that records the id of the first chunk in
// the chain ("first"). Its lifecycle mirrors Chunk's: exclusive lock, mmap,
// cached field, explicit force.
type Head struct {
	path   string
	file   *os.File
	data   []byte
	first  Ref
	logger *slog.Logger
}

// OpenHead resolves path to an absolute path, opens (creating if missing)
// and exclusively locks the head file, truncates it to HeadSize, maps it,
// and reads "first" from offset 0. It fails with ErrLocked if another opener
// already holds the lock.
func OpenHead(path string, logger *slog.Logger) (h *Head, err error) {
	logger = logging.Default(logger).With("component", "headfile")

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve head path %s: %w", path, err)
	}

	f, err := os.OpenFile(abs, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open head %s: %w", abs, err)
	}
	defer func() {
		if err != nil {
			_ = f.Close()
		}
	}()

	if lockErr := lockExclusive(int(f.Fd())); lockErr != nil {
		return nil, lockErr
	}
	defer func() {
		if err != nil {
			_ = unlock(int(f.Fd()))
		}
	}()

	if truncErr := f.Truncate(HeadSize); truncErr != nil {
		return nil, fmt.Errorf("truncate head %s: %w", abs, truncErr)
	}

	data, err := mmapRegion(int(f.Fd()), HeadSize)
	if err != nil {
		return nil, fmt.Errorf("mmap head %s: %w", abs, err)
	}

	h = &Head{
		path:   abs,
		file:   f,
		data:   data,
		logger: logger,
	}
	h.first = Ref(binfmt.GetU16(h.data, 0))
	logger.Debug("head opened", "first", uint16(h.first))
	return h, nil
}

// Path returns the absolute path this head was opened at.
func (h *Head) Path() string { return h.path }

// First returns the cached "first" chunk reference.
func (h *Head) First() Ref { return h.first }

// WriteFirst writes the new "first" at offset 0 and flushes.
func (h *Head) WriteFirst(value Ref) error {
	h.first = value
	binfmt.PutU16(h.data, 0, uint16(value))
	return forceRegion(h.data)
}

// Close releases the lock and closes the file.
func (h *Head) Close() error {
	var errs error
	if err := munmapRegion(h.data); err != nil {
		errs = appendErr(errs, err)
	}
	h.data = nil
	if err := unlock(int(h.file.Fd())); err != nil {
		errs = appendErr(errs, err)
	}
	if err := h.file.Close(); err != nil {
		errs = appendErr(errs, err)
	}
	return errs
}

// DropFile closes and unlinks the head file. Used by Queue.Close when the
// queue is empty.
func (h *Head) DropFile() error {
	var errs error
	if err := h.Close(); err != nil {
		errs = appendErr(errs, err)
	}
	if err := os.Remove(h.path); err != nil && !os.IsNotExist(err) {
		DeferUnlink(h.path)
		errs = appendErr(errs, fmt.Errorf("remove head %s: %w", h.path, err))
	}
	return errs
}

// ChunkPath resolves the filesystem path for chunk id given the head path:
// dir/name "." (id mod MaxID).
func ChunkPath(headPath string, id Ref) string {
	return fmt.Sprintf("%s.%d", headPath, uint32(id)%MaxID)
}
