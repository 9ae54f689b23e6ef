// Package queue implements a durable, single-process FIFO byte queue backed
// by a chain of fixed-size files on a local filesystem.
//
// A queue is a head file recording the id of the first chunk, followed by a
// chain of chunk files linked by 16-bit "next" references. Enqueue appends
// to the tail chunk, allocating a new one on overflow; dequeue advances the
// head chunk's read pointer, dropping chunks once fully drained. Every
// mutating call that must survive a crash (enqueue, dequeue, clear, close)
// flushes the mapped region it touched before returning.
//
// The engine is not safe for concurrent use: callers must serialize all
// calls on a single *Queue. BlockingQueue (blocking.go) adds a mutex and a
// non-empty signal on top for cooperating goroutines that want to wait for
// data with a timeout.
//
// On-disk format (big-endian throughout):
//
//	Head file (2 bytes):
//	  offset 0: first : u16   // NULL_REF (0) for an empty chain
//
//	Chunk file (exactly chunk-size bytes):
//	  offset 0:  head-ptr : u32
//	  offset 4:  tail-ptr : u32
//	  offset 8:  next     : u16
//	  offset 10..tail-ptr: entries, each (length : u16, bytes[length])
package queue
