package queue

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/hashicorp/go-multierror"

	"bytequeue/internal/chunkfile"
	"bytequeue/internal/logging"
)

// headEntryLenUnknown is the cached-head-entry-length sentinel: the length
// of the current head entry hasn't been read yet.
const headEntryLenUnknown = -1

// chunkSlot tracks one chunk in the chain. c is nil when the chunk isn't
// currently mapped: enqueue's rotation closes a chunk once it stops being
// the tail, and dequeue's drain only requires the new front to be open, not
// every chunk in between — so a slot is reopened lazily, on demand, the
// next time it is addressed as front or tail. Reopening never races: this
// engine is the sole owner of every chunk file for the life of the queue,
// so no other holder can be contending for the lock a closed slot just
// released.
type chunkSlot struct {
	id chunkfile.Ref
	c  *chunkfile.Chunk
}

// Queue is an open handle on a durable FIFO byte queue. It is not safe for
// concurrent use; see BlockingQueue for a synchronized wrapper.
type Queue struct {
	headPath  string
	chunkSize uint32
	head      *chunkfile.Head
	chunks    []chunkSlot
	cachedLen int
	logger    *slog.Logger
	closed    bool
}

// Open opens or creates the queue at path with the given chunk-size, in
// bytes. It fails with ErrAlreadyOpen if another opener already holds the
// head file's lock, or ErrInvalidChunkSize if chunkSize is out of range.
func Open(path string, chunkSize int) (*Queue, error) {
	return OpenWithLogger(path, chunkSize, nil)
}

// OpenWithLogger is Open with an explicit *slog.Logger for diagnostics at
// open, rotation, and drop points. A nil logger falls back to a
// discard handler.
func OpenWithLogger(path string, chunkSize int, logger *slog.Logger) (q *Queue, err error) {
	minSize := chunkfile.ChunkHeaderSize + chunkfile.EntryHeaderSize
	if chunkSize <= minSize || chunkSize > math.MaxUint32 {
		return nil, ErrInvalidChunkSize
	}

	logger = logging.Default(logger).With("component", "queue", "path", path)

	head, err := chunkfile.OpenHead(path, logger)
	if err != nil {
		if errors.Is(err, chunkfile.ErrLocked) {
			return nil, ErrAlreadyOpen
		}
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = head.Close()
		}
	}()

	q = &Queue{
		headPath:  head.Path(),
		chunkSize: uint32(chunkSize),
		head:      head,
		cachedLen: headEntryLenUnknown,
		logger:    logger,
	}

	if err = q.loadChain(); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *Queue) loadChain() error {
	visited := make(map[chunkfile.Ref]bool)
	next := q.head.First()
	for next != chunkfile.NullRef {
		if visited[next] {
			q.closeSlotsBestEffort()
			return fmt.Errorf("%w: chunk %d revisited", ErrCorruptChain, next)
		}
		visited[next] = true

		path := chunkfile.ChunkPath(q.headPath, next)
		c, err := chunkfile.OpenChunk(path, next, q.chunkSize, false, q.logger)
		if err != nil {
			q.closeSlotsBestEffort()
			return fmt.Errorf("%w: opening chunk %d: %v", ErrCorruptChain, next, err)
		}
		q.chunks = append(q.chunks, chunkSlot{id: next, c: c})
		next = c.Next()
	}
	return nil
}

func (q *Queue) closeSlotsBestEffort() {
	for _, s := range q.chunks {
		if s.c != nil {
			_ = s.c.Close()
		}
	}
	q.chunks = nil
}

// MaxElementSize returns the largest payload length that fits in an empty
// chunk: chunk-size − CHUNK_HEADER_SIZE − ENTRY_HEADER_SIZE.
func (q *Queue) MaxElementSize() int {
	return int(q.chunkSize) - chunkfile.ChunkHeaderSize - chunkfile.EntryHeaderSize
}

// IsEmpty reports whether the chunk list is empty, or holds exactly one
// chunk with head-ptr ≥ tail-ptr. It performs no I/O.
func (q *Queue) IsEmpty() bool {
	if len(q.chunks) == 0 {
		return true
	}
	if len(q.chunks) == 1 {
		s := q.chunks[0]
		if s.c == nil {
			return false // a closed sole chunk was left non-empty by a prior rotation
		}
		return s.c.IsEmpty()
	}
	return false
}

// Len reports the number of chunk files currently in the chain. It is a
// diagnostic, not part of the element count (entries aren't indexed).
func (q *Queue) Len() int {
	return len(q.chunks)
}

func (q *Queue) ensureOpen(i int) error {
	s := &q.chunks[i]
	if s.c != nil {
		return nil
	}
	path := chunkfile.ChunkPath(q.headPath, s.id)
	c, err := chunkfile.OpenChunk(path, s.id, q.chunkSize, false, q.logger)
	if err != nil {
		return err
	}
	s.c = c
	return nil
}

func (q *Queue) front() (*chunkfile.Chunk, error) {
	if err := q.ensureOpen(0); err != nil {
		return nil, err
	}
	return q.chunks[0].c, nil
}

func (q *Queue) tail() (*chunkfile.Chunk, error) {
	last := len(q.chunks) - 1
	if err := q.ensureOpen(last); err != nil {
		return nil, err
	}
	return q.chunks[last].c, nil
}

func (q *Queue) headEntryLength(front *chunkfile.Chunk) uint16 {
	if q.cachedLen != headEntryLenUnknown {
		return uint16(q.cachedLen)
	}
	l := front.PeekLength()
	q.cachedLen = int(l)
	return l
}

// Peek returns a copy of the element at the head of the queue, if any. The
// returned bool is false when the queue is empty.
func (q *Queue) Peek() ([]byte, bool, error) {
	if q.closed {
		return nil, false, ErrClosed
	}
	if q.IsEmpty() {
		return nil, false, nil
	}
	front, err := q.front()
	if err != nil {
		return nil, false, err
	}
	l := q.headEntryLength(front)
	buf := make([]byte, l)
	front.PeekInto(buf)
	return buf, true, nil
}

// Dequeue removes the element at the head of the queue. It returns false,
// with no error and no state change, if the queue was already empty.
func (q *Queue) Dequeue() (bool, error) {
	if q.closed {
		return false, ErrClosed
	}
	if q.IsEmpty() {
		return false, nil
	}

	front, err := q.front()
	if err != nil {
		return false, err
	}
	l := q.headEntryLength(front)
	q.cachedLen = headEntryLenUnknown

	front.SetHeadPtr(front.HeadPtr() + chunkfile.EntryHeaderSize + uint32(l))

	if front.HeadPtr() < front.TailPtr() {
		if err := front.WriteHeadPtr(); err != nil {
			return false, err
		}
		if err := front.Force(); err != nil {
			return false, err
		}
		return true, nil
	}

	// Front chunk is drained.
	if len(q.chunks) == 1 {
		if err := front.Reset(); err != nil {
			return false, err
		}
		return true, nil
	}

	removedID := front.ID()
	removedNext := front.Next()
	// Head.first must be persisted before the old front file is unlinked:
	// if a crash lands between the two, recovery must see either the old
	// first still in place (file still there, safe to drain again) or the
	// new first already durable (old file safe to unlink on next open).
	if err := q.head.WriteFirst(removedNext); err != nil {
		return false, err
	}
	if err := front.DropFile(); err != nil {
		return false, err
	}
	q.chunks = q.chunks[1:]
	if _, err := q.front(); err != nil { // ensure the new front chunk is open
		return false, err
	}
	q.logger.Debug("chunk rotated out", "id", uint16(removedID), "new_front", uint16(removedNext))
	return true, nil
}

// EnqueueAt appends payload[offset:offset+length] as a new element at the
// tail of the queue.
func (q *Queue) EnqueueAt(payload []byte, offset, length int) error {
	if q.closed {
		return ErrClosed
	}
	if length < 0 || length > q.MaxElementSize() {
		return ErrPayloadTooLarge
	}

	if len(q.chunks) == 0 {
		path := chunkfile.ChunkPath(q.headPath, 1)
		c, err := chunkfile.OpenChunk(path, 1, q.chunkSize, true, q.logger)
		if err != nil {
			return err
		}
		if err := q.head.WriteFirst(1); err != nil {
			_ = c.Close()
			return err
		}
		q.chunks = append(q.chunks, chunkSlot{id: 1, c: c})
		if err := q.appendToTail(c, payload, offset, length, true); err != nil {
			return err
		}
		q.cachedLen = length // the only entry in the chain is now the head entry
		return nil
	}

	last, err := q.tail()
	if err != nil {
		return err
	}

	if uint64(last.TailPtr())+uint64(chunkfile.EntryHeaderSize)+uint64(length) > uint64(q.chunkSize) {
		newID := last.ID().Next()
		newPath := chunkfile.ChunkPath(q.headPath, newID)
		newChunk, err := chunkfile.OpenChunk(newPath, newID, q.chunkSize, true, q.logger)
		if err != nil {
			return err
		}

		last.SetNext(newID)
		if err := last.WriteNextRef(); err != nil {
			_ = newChunk.Close()
			return err
		}
		if err := last.Force(); err != nil {
			_ = newChunk.Close()
			return err
		}
		if err := last.Close(); err != nil {
			_ = newChunk.Close()
			return err
		}
		q.chunks[len(q.chunks)-1].c = nil
		q.chunks = append(q.chunks, chunkSlot{id: newID, c: newChunk})
		q.logger.Debug("chunk rotated in", "id", uint16(newID))
		last = newChunk
	}

	return q.appendToTail(last, payload, offset, length, false)
}

func (q *Queue) appendToTail(c *chunkfile.Chunk, payload []byte, offset, length int, newlyAllocated bool) error {
	c.Append(payload, offset, length)
	c.SetTailPtr(c.TailPtr() + chunkfile.EntryHeaderSize + uint32(length))

	if newlyAllocated {
		if err := c.WriteHeader(); err != nil {
			return err
		}
	} else if err := c.WriteTailPtr(); err != nil {
		return err
	}
	return c.Force()
}

// Enqueue appends payload in full as a new element at the tail of the
// queue. It fails with ErrPayloadTooLarge, leaving the queue unchanged, if
// len(payload) exceeds MaxElementSize.
func (q *Queue) Enqueue(payload []byte) error {
	return q.EnqueueAt(payload, 0, len(payload))
}

// Clear empties the queue in place: the front chunk is reset and every
// other chunk is dropped. It returns false if the queue was already empty.
func (q *Queue) Clear() (bool, error) {
	if q.closed {
		return false, ErrClosed
	}
	if q.IsEmpty() {
		return false, nil
	}

	// first = NullRef goes durable before any chunk is touched: a crash
	// mid-clear then recovers as an empty queue with orphaned chunk files
	// that force-new reclaims, never as a chain into dropped chunks.
	if err := q.head.WriteFirst(chunkfile.NullRef); err != nil {
		return false, err
	}

	front, err := q.front()
	if err != nil {
		return false, err
	}
	if err := front.Reset(); err != nil {
		return false, err
	}
	q.cachedLen = headEntryLenUnknown

	for _, s := range q.chunks[1:] {
		if s.c == nil {
			path := chunkfile.ChunkPath(q.headPath, s.id)
			c, err := chunkfile.OpenChunk(path, s.id, q.chunkSize, false, q.logger)
			if err != nil {
				return false, err
			}
			s.c = c
		}
		if err := s.c.DropFile(); err != nil {
			return false, err
		}
	}
	q.chunks = q.chunks[:1]

	// The reset front chunk stays in the list, so first must name it again
	// or the next enqueue (which only persists the tail pointer) would be
	// unreachable after a reopen.
	if err := q.head.WriteFirst(front.ID()); err != nil {
		return false, err
	}
	return true, nil
}

// Stats is a read-only snapshot of the chunk chain: the chain length, the
// front chunk's read/write window, the back chunk's write position, and the
// framed bytes buffered across every chunk (entry headers included).
type Stats struct {
	Chunks        int
	FrontHeadPtr  uint32
	FrontTailPtr  uint32
	BackTailPtr   uint32
	BufferedBytes uint64
}

// Stats reopens any chunk the chain holds closed and returns a snapshot of
// its pointers. It never mutates queue contents.
func (q *Queue) Stats() (Stats, error) {
	if q.closed {
		return Stats{}, ErrClosed
	}
	st := Stats{Chunks: len(q.chunks)}
	if len(q.chunks) == 0 {
		return st, nil
	}
	for i := range q.chunks {
		if err := q.ensureOpen(i); err != nil {
			return Stats{}, err
		}
		c := q.chunks[i].c
		st.BufferedBytes += uint64(c.TailPtr() - c.HeadPtr())
	}
	front := q.chunks[0].c
	back := q.chunks[len(q.chunks)-1].c
	st.FrontHeadPtr = front.HeadPtr()
	st.FrontTailPtr = front.TailPtr()
	st.BackTailPtr = back.TailPtr()
	return st, nil
}

// Close releases every lock held by the queue. If the queue is empty, the
// head file and every remaining chunk file are deleted from disk.
func (q *Queue) Close() error {
	if q.closed {
		return nil
	}
	q.closed = true

	empty := q.IsEmpty()
	var errs *multierror.Error

	if empty {
		for _, s := range q.chunks {
			if s.c == nil {
				path := chunkfile.ChunkPath(q.headPath, s.id)
				c, err := chunkfile.OpenChunk(path, s.id, q.chunkSize, false, q.logger)
				if err != nil {
					errs = multierror.Append(errs, err)
					continue
				}
				s.c = c
			}
			if err := s.c.DropFile(); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
		if err := q.head.DropFile(); err != nil {
			errs = multierror.Append(errs, err)
		}
	} else {
		for _, s := range q.chunks {
			if s.c == nil {
				continue
			}
			if err := s.c.Close(); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
		if err := q.head.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}
