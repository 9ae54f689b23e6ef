package queue

import "errors"

// Sentinel errors returned by the engine. Filesystem and mapping failures
// are not given their own sentinel: they propagate wrapped (fmt.Errorf
// "...: %w") so callers can still errors.Is/As into the underlying os/unix
// error.
var (
	// ErrAlreadyOpen is returned by Open when another opener already holds
	// the exclusive lock on the head file at that path.
	ErrAlreadyOpen = errors.New("queue: already open")

	// ErrInvalidChunkSize is returned by Open when chunk-size is not in
	// (CHUNK_HEADER_SIZE+ENTRY_HEADER_SIZE, 2^32-1].
	ErrInvalidChunkSize = errors.New("queue: invalid chunk size")

	// ErrPayloadTooLarge is returned by Enqueue when a payload would not fit
	// in a single chunk even empty. The queue is left unchanged.
	ErrPayloadTooLarge = errors.New("queue: payload too large")

	// ErrCorruptChain is returned by Open when following next references
	// revisits a chunk id already seen in the current chain, or when a chunk
	// the chain references cannot be opened.
	ErrCorruptChain = errors.New("queue: corrupt chunk chain")

	// ErrCancelled is returned by the blocking wrapper's waits when their
	// context is done before the condition they're waiting for holds.
	ErrCancelled = errors.New("queue: wait cancelled")

	// ErrPredicateFailure wraps a panic raised by a BlockingQueue.DequeueIf
	// predicate. The head element stays in the queue.
	ErrPredicateFailure = errors.New("queue: dequeue predicate failed")

	// ErrClosed is returned by any error-returning call on a Queue or
	// BlockingQueue made after Close. A repeated Close returns nil.
	ErrClosed = errors.New("queue: closed")
)
