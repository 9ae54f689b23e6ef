package queue

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func mustOpenBlocking(t *testing.T, chunkSize int) *BlockingQueue {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "q")
	q := mustOpen(t, path, chunkSize)
	return NewBlocking(q)
}

func TestBlockingPollTimesOutOnEmpty(t *testing.T) {
	b := mustOpenBlocking(t, 1024)
	defer b.Close()

	start := time.Now()
	ok, err := b.Poll(context.Background(), 30*time.Millisecond)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if ok {
		t.Fatalf("Poll must return false on an empty queue")
	}
	if time.Since(start) < 30*time.Millisecond {
		t.Fatalf("Poll returned before its timeout elapsed")
	}
}

func TestBlockingPollCancelled(t *testing.T) {
	b := mustOpenBlocking(t, 1024)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	ok, err := b.Poll(ctx, 5*time.Second)
	if ok || !errors.Is(err, ErrCancelled) {
		t.Fatalf("want ErrCancelled from a cancelled wait, got (%v, %v)", ok, err)
	}
	if !b.q.IsEmpty() {
		t.Fatalf("cancelled wait must not mutate the engine")
	}
}

func TestBlockingDequeueWakesOnEnqueue(t *testing.T) {
	b := mustOpenBlocking(t, 1024)
	defer b.Close()

	result := make(chan []byte, 1)
	errs := make(chan error, 1)
	go func() {
		data, ok, err := b.Dequeue(context.Background(), 2*time.Second)
		if err != nil {
			errs <- err
			return
		}
		if !ok {
			errs <- errors.New("dequeue returned no element")
			return
		}
		result <- data
	}()

	time.Sleep(20 * time.Millisecond)
	if err := b.Enqueue([]byte("payload")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	select {
	case got := <-result:
		if !bytes.Equal(got, []byte("payload")) {
			t.Fatalf("got %q, want %q", got, "payload")
		}
	case err := <-errs:
		t.Fatalf("Dequeue: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatalf("Dequeue never woke up")
	}
}

func TestBlockingDequeueIfRejectsPredicate(t *testing.T) {
	b := mustOpenBlocking(t, 1024)
	defer b.Close()

	if err := b.Enqueue([]byte("x")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	ctx := context.Background()
	_, ok, err := b.DequeueIf(ctx, time.Second, func([]byte) bool { return false })
	if ok || err != nil {
		t.Fatalf("rejecting predicate must retain the element without error, got (%v, %v)", ok, err)
	}

	data, ok, err := b.DequeueIf(ctx, time.Second, func([]byte) bool { return true })
	if err != nil || !ok {
		t.Fatalf("DequeueIf with accepting predicate: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(data, []byte("x")) {
		t.Fatalf("got %q, want %q", data, "x")
	}
}

func TestBlockingDequeueIfPredicatePanics(t *testing.T) {
	b := mustOpenBlocking(t, 1024)
	defer b.Close()

	if err := b.Enqueue([]byte("keep")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	ctx := context.Background()
	_, ok, err := b.DequeueIf(ctx, time.Second, func([]byte) bool { panic("boom") })
	if ok || !errors.Is(err, ErrPredicateFailure) {
		t.Fatalf("want ErrPredicateFailure from a panicking predicate, got (%v, %v)", ok, err)
	}

	// The element survives the panic and the wrapper is still usable.
	data, ok, err := b.Peek(ctx, time.Second)
	if err != nil || !ok {
		t.Fatalf("Peek after panic: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(data, []byte("keep")) {
		t.Fatalf("got %q, want %q", data, "keep")
	}
}

func TestBlockingMultipleWaitersOnlyOneWins(t *testing.T) {
	b := mustOpenBlocking(t, 1024)
	defer b.Close()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, _ := b.Dequeue(context.Background(), 500*time.Millisecond)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	if err := b.Enqueue([]byte("only-one")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one winning dequeue, got %d", wins)
	}
}
