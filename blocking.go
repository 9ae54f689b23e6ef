package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// BlockingQueue wraps a Queue behind a guard and an edge-triggered
// "non-empty" signal, so cooperating goroutines can wait for data with a
// timeout instead of polling IsEmpty in a loop.
//
// The signal is edge-triggered: it fires once per Enqueue call, so a
// waiter that loses the race to another waiter must re-check IsEmpty
// after waking rather than assume it owns the new element.
type BlockingQueue struct {
	q      *Queue
	logger *slog.Logger

	guard  chan struct{} // buffered(1); held == empty
	signal chan struct{} // replaced and closed by every Enqueue
}

// NewBlocking wraps q. q must not be used directly afterward; all access
// should go through the returned BlockingQueue.
func NewBlocking(q *Queue) *BlockingQueue {
	b := &BlockingQueue{
		q:      q,
		logger: q.logger,
		guard:  make(chan struct{}, 1),
		signal: make(chan struct{}),
	}
	b.guard <- struct{}{}
	b.logger.Debug("blocking queue wrapper attached")
	return b
}

func (b *BlockingQueue) lock()   { <-b.guard }
func (b *BlockingQueue) unlock() { b.guard <- struct{}{} }

// Enqueue delegates to the engine under the guard, then signals non-empty
// once. It is not cancellable: once started it completes or reports the
// engine's error.
func (b *BlockingQueue) Enqueue(payload []byte) error {
	b.lock()
	err := b.q.Enqueue(payload)
	wake := b.signal
	if err == nil {
		b.signal = make(chan struct{})
	}
	b.unlock()
	if err == nil {
		close(wake)
	}
	return err
}

// Poll waits until the engine is non-empty, timeout elapses, or ctx is
// done. It returns true iff the engine is non-empty on return; a done ctx
// surfaces as ErrCancelled, a closed queue as ErrClosed, a plain timeout as
// (false, nil).
func (b *BlockingQueue) Poll(ctx context.Context, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		b.lock()
		if b.q.closed {
			b.unlock()
			return false, ErrClosed
		}
		nonEmpty := !b.q.IsEmpty()
		wake := b.signal
		b.unlock()
		if nonEmpty {
			return true, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, nil
		}
		select {
		case <-wake:
			// Edge-triggered: loop back and re-check, don't assume we're
			// the one who gets the element.
		case <-time.After(remaining):
			b.lock()
			nonEmpty = !b.q.IsEmpty()
			b.unlock()
			return nonEmpty, nil
		case <-ctx.Done():
			return false, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		}
	}
}

// Peek calls Poll; on success it returns the engine's head element. A
// timeout with the engine still empty returns no element and no error.
func (b *BlockingQueue) Peek(ctx context.Context, timeout time.Duration) ([]byte, bool, error) {
	ok, err := b.Poll(ctx, timeout)
	if err != nil || !ok {
		return nil, false, err
	}
	b.lock()
	defer b.unlock()
	// Another consumer may have drained the queue between Poll and the
	// guard; that reads as an ordinary empty result.
	return b.q.Peek()
}

// Dequeue calls Poll; on success it removes and returns the engine's head
// element.
func (b *BlockingQueue) Dequeue(ctx context.Context, timeout time.Duration) ([]byte, bool, error) {
	ok, err := b.Poll(ctx, timeout)
	if err != nil || !ok {
		return nil, false, err
	}
	b.lock()
	defer b.unlock()
	data, ok, err := b.q.Peek()
	if err != nil || !ok {
		return nil, false, err
	}
	if _, err := b.q.Dequeue(); err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// DequeueIf is Dequeue, except the head element is removed only if
// predicate returns true for it. If predicate returns false the element is
// left in place and DequeueIf returns no element and no error. A predicate
// that panics also leaves the element in place; the panic value is
// surfaced wrapped in ErrPredicateFailure.
func (b *BlockingQueue) DequeueIf(ctx context.Context, timeout time.Duration, predicate func([]byte) bool) ([]byte, bool, error) {
	ok, err := b.Poll(ctx, timeout)
	if err != nil || !ok {
		return nil, false, err
	}
	b.lock()
	defer b.unlock()
	data, ok, err := b.q.Peek()
	if err != nil || !ok {
		return nil, false, err
	}
	accepted, err := runPredicate(predicate, data)
	if err != nil {
		return nil, false, err
	}
	if !accepted {
		return nil, false, nil
	}
	if _, err := b.q.Dequeue(); err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func runPredicate(predicate func([]byte) bool, data []byte) (accepted bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPredicateFailure, r)
		}
	}()
	return predicate(data), nil
}

// Close releases the underlying engine.
func (b *BlockingQueue) Close() error {
	b.lock()
	defer b.unlock()
	err := b.q.Close()
	b.logger.Debug("blocking queue wrapper closed", "error", err)
	return err
}
