// Package dedupe provides atomic in-flight tracking so that work keyed
// by an identifier is scheduled at most once concurrently. The cache
// rebuilder uses it to collapse duplicate rebuild requests for the same
// leaderboard key.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Tracker records in-flight identifiers.
type Tracker interface {
	// SeenAndRecord atomically checks whether id is in flight and
	// records it if not. Returns true if id was already recorded,
	// false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord removes id, allowing it to be recorded again. Call it
	// when the work for id has finished or failed.
	Unrecord(ctx context.Context, id string)

	// Size returns the current number of recorded identifiers.
	Size() int64
}

type inMemoryTracker struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	maxSize int
	size    atomic.Int64
}

// NewInMemoryTracker creates a map-backed tracker.
func NewInMemoryTracker(opts ...Option) Tracker {
	t := &inMemoryTracker{
		maxSize: defaultMaxSize,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.seen = make(map[string]struct{})
	return t
}

// SeenAndRecord implements Tracker. When the tracker is at capacity the
// id is reported as seen without being recorded; callers treat "seen"
// as "skip this work", which is the safe degradation for optional work
// like cache rebuilds.
func (t *inMemoryTracker) SeenAndRecord(_ context.Context, id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.seen[id]; ok {
		return true
	}
	if t.maxSize > 0 && len(t.seen) >= t.maxSize {
		return true
	}
	t.seen[id] = struct{}{}
	t.size.Add(1)
	return false
}

// Unrecord implements Tracker.
func (t *inMemoryTracker) Unrecord(_ context.Context, id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.seen[id]; ok {
		delete(t.seen, id)
		t.size.Add(-1)
	}
}

// Size implements Tracker.
func (t *inMemoryTracker) Size() int64 {
	return t.size.Load()
}
