package chunkfile

import "sync"

var (
	deferredMu      sync.Mutex
	deferredUnlinks []string
)

// DeferUnlink records path for later deletion when an immediate os.Remove
// fails because some platform still holds a handle open on it. POSIX unlink
// on an open file always succeeds, so this path is not expected to be hit on
// this platform, but it exists as real, callable code rather than a promise
// in a comment.
func DeferUnlink(path string) {
	deferredMu.Lock()
	defer deferredMu.Unlock()
	deferredUnlinks = append(deferredUnlinks, path)
}

// FlushDeferredUnlinks retries deletion of every path recorded by
// DeferUnlink, returning the paths that still could not be removed. Callers
// decide when to invoke this (e.g. at process exit); the package performs no
// implicit scheduling since Go offers no portable process-exit hook.
func FlushDeferredUnlinks() []string {
	deferredMu.Lock()
	pending := deferredUnlinks
	deferredUnlinks = nil
	deferredMu.Unlock()

	var remaining []string
	for _, path := range pending {
		if err := removeIfExists(path); err != nil {
			remaining = append(remaining, path)
		}
	}
	return remaining
}
