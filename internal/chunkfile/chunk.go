// Package chunkfile implements the two on-disk file kinds the queue engine
// composes: a fixed-size Chunk (header + framed entries) and a two-byte Head
// (the chain's front pointer). Both are exclusively locked, memory-mapped
// files with explicit durability barriers.
package chunkfile

import (
	"fmt"
	"log/slog"
	"os"

	"bytequeue/internal/binfmt"
	"bytequeue/internal/logging"
)

// On-disk layout constants for the chunk header and chunk reference format.
const (
	RefSize         = 2
	PtrSize         = 4
	EntryHeaderSize = 2
	ChunkHeaderSize = PtrSize + PtrSize + RefSize // head-ptr, tail-ptr, next

	NullRef Ref = 0
	MaxID       = 65535
)

// Ref is a chunk reference: a 16-bit id, with NullRef meaning "none".
type Ref uint16

// Next returns the next id in the rotation sequence used when allocating a
// new tail chunk: (id+1) mod MaxID, with 0 mapped to 1 so NullRef is never
// produced.
func (r Ref) Next() Ref {
	next := Ref((uint32(r) + 1) % MaxID)
	if next == NullRef {
		return 1
	}
	return next
}

// Chunk owns one fixed-size chunk file: its exclusive lock, its mapped
// region, and the cached head/tail/next header fields.
type Chunk struct {
	path   string
	id     Ref
	size   uint32
	file   *os.File
	data   []byte
	logger *slog.Logger

	headPtr uint32
	tailPtr uint32
	next    Ref
}

// OpenChunk opens (creating if missing) the chunk file at path, acquires an
// exclusive whole-file lock, and maps its first size bytes.
//
// If forceNew, the file is truncated to size and initialized with an empty
// header (head-ptr = tail-ptr = ChunkHeaderSize, next = NullRef). Otherwise
// the header fields are read from the file; a file shorter than
// ChunkHeaderSize is treated as fresh.
func OpenChunk(path string, id Ref, size uint32, forceNew bool, logger *slog.Logger) (c *Chunk, err error) {
	logger = logging.Default(logger).With("component", "chunkfile", "id", uint16(id))

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open chunk %s: %w", path, err)
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

	fresh := forceNew
	if !fresh {
		info, statErr := f.Stat()
		if statErr != nil {
			return nil, fmt.Errorf("stat chunk %s: %w", path, statErr)
		}
		if info.Size() < ChunkHeaderSize {
			fresh = true
		}
	}

	if fresh {
		if truncErr := f.Truncate(int64(size)); truncErr != nil {
			return nil, fmt.Errorf("truncate chunk %s: %w", path, truncErr)
		}
	} else if info, statErr := f.Stat(); statErr == nil && info.Size() != int64(size) {
		// A chunk referenced by a live chain is always sized to the queue's
		// chunk-size; repair a short/long file rather than mmap a mismatch.
		if truncErr := f.Truncate(int64(size)); truncErr != nil {
			return nil, fmt.Errorf("resize chunk %s: %w", path, truncErr)
		}
	}

	data, err := mmapRegion(int(f.Fd()), int(size))
	if err != nil {
		return nil, fmt.Errorf("mmap chunk %s: %w", path, err)
	}

	c = &Chunk{
		path:   path,
		id:     id,
		size:   size,
		file:   f,
		data:   data,
		logger: logger,
	}

	if fresh {
		c.headPtr = ChunkHeaderSize
		c.tailPtr = ChunkHeaderSize
		c.next = NullRef
		if err = c.WriteHeader(); err != nil {
			return nil, err
		}
		if err = c.Force(); err != nil {
			return nil, err
		}
		logger.Debug("chunk created")
	} else {
		c.readHeader()
		logger.Debug("chunk opened", "head_ptr", c.headPtr, "tail_ptr", c.tailPtr, "next", uint16(c.next))
	}

	return c, nil
}

func (c *Chunk) readHeader() {
	c.headPtr = binfmt.GetU32(c.data, 0)
	c.tailPtr = binfmt.GetU32(c.data, PtrSize)
	c.next = Ref(binfmt.GetU16(c.data, PtrSize*2))
}

// ID returns the chunk's id.
func (c *Chunk) ID() Ref { return c.id }

// Size returns the chunk-size this chunk was opened with.
func (c *Chunk) Size() uint32 { return c.size }

// HeadPtr returns the cached head-ptr.
func (c *Chunk) HeadPtr() uint32 { return c.headPtr }

// TailPtr returns the cached tail-ptr.
func (c *Chunk) TailPtr() uint32 { return c.tailPtr }

// Next returns the cached next reference.
func (c *Chunk) Next() Ref { return c.next }

// SetHeadPtr updates the cached head-ptr; callers must still call
// WriteHeadPtr (and Force) to persist it.
func (c *Chunk) SetHeadPtr(v uint32) { c.headPtr = v }

// SetTailPtr updates the cached tail-ptr; callers must still call
// WriteTailPtr (and Force) to persist it.
func (c *Chunk) SetTailPtr(v uint32) { c.tailPtr = v }

// SetNext updates the cached next reference; callers must still call
// WriteNextRef (and Force) to persist it.
func (c *Chunk) SetNext(v Ref) { c.next = v }

// IsEmpty reports whether this single chunk currently holds no entries.
func (c *Chunk) IsEmpty() bool { return c.headPtr >= c.tailPtr }

// PeekLength returns the length prefix at head-ptr.
func (c *Chunk) PeekLength() uint16 {
	return binfmt.GetU16(c.data, int(c.headPtr))
}

// PeekInto copies len(buf) bytes starting at head-ptr+EntryHeaderSize into buf.
// Callers size buf using PeekLength.
func (c *Chunk) PeekInto(buf []byte) {
	start := int(c.headPtr) + EntryHeaderSize
	copy(buf, c.data[start:start+len(buf)])
}

// Append writes a length prefix followed by payload[offset:offset+length] at
// tail-ptr. The caller has already checked
// tail-ptr+EntryHeaderSize+length <= chunk-size, and is responsible for
// advancing and persisting tail-ptr afterward.
func (c *Chunk) Append(payload []byte, offset, length int) {
	pos := int(c.tailPtr)
	binfmt.PutU16(c.data, pos, uint16(length)) //nolint:gosec // length bounds are checked by the caller
	copy(c.data[pos+EntryHeaderSize:pos+EntryHeaderSize+length], payload[offset:offset+length])
}

// WriteHeadPtr persists the cached head-ptr.
func (c *Chunk) WriteHeadPtr() error {
	binfmt.PutU32(c.data, 0, c.headPtr)
	return nil
}

// WriteTailPtr persists the cached tail-ptr.
func (c *Chunk) WriteTailPtr() error {
	binfmt.PutU32(c.data, PtrSize, c.tailPtr)
	return nil
}

// WriteNextRef persists the cached next reference.
func (c *Chunk) WriteNextRef() error {
	binfmt.PutU16(c.data, PtrSize*2, uint16(c.next))
	return nil
}

// WriteHeader persists all three header fields.
func (c *Chunk) WriteHeader() error {
	if err := c.WriteHeadPtr(); err != nil {
		return err
	}
	if err := c.WriteTailPtr(); err != nil {
		return err
	}
	return c.WriteNextRef()
}

// Force is the durability barrier: preceding writes to the mapped region are
// flushed to storage before Force returns.
func (c *Chunk) Force() error {
	return forceRegion(c.data)
}

// Reset reinitializes the chunk in place, as if freshly created, without
// reallocating the file or remapping it. Used when the sole remaining chunk
// drains or the queue is cleared.
func (c *Chunk) Reset() error {
	c.headPtr = ChunkHeaderSize
	c.tailPtr = ChunkHeaderSize
	c.next = NullRef
	if err := c.WriteHeader(); err != nil {
		return err
	}
	return c.Force()
}

// Close forces pending writes, releases the lock, and closes the file
// without unlinking it.
func (c *Chunk) Close() error {
	var errs error
	if err := c.Force(); err != nil {
		errs = appendErr(errs, err)
	}
	if err := munmapRegion(c.data); err != nil {
		errs = appendErr(errs, err)
	}
	c.data = nil
	if err := unlock(int(c.file.Fd())); err != nil {
		errs = appendErr(errs, err)
	}
	if err := c.file.Close(); err != nil {
		errs = appendErr(errs, err)
	}
	return errs
}

// DropFile forces, releases the lock, closes the file, and unlinks path.
// Platforms that refuse to unlink a still-open file should close first
// (done here, before unlink) — see the deferred-deletion fallback in
// DeferUnlink for the remaining, rarer failure mode.
func (c *Chunk) DropFile() error {
	var errs error
	if err := c.Close(); err != nil {
		errs = appendErr(errs, err)
	}
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		DeferUnlink(c.path)
		errs = appendErr(errs, fmt.Errorf("remove chunk %s: %w", c.path, err))
	}
	if c.logger != nil {
		c.logger.Debug("chunk dropped", "path", c.path)
	}
	return errs
}
