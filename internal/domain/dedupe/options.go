package dedupe

const defaultMaxSize = 10_000

// Option applies a configuration option to the in-memory tracker.
type Option func(*inMemoryTracker)

// WithMaxSize bounds the number of tracked identifiers. Zero or
// negative means unbounded.
func WithMaxSize(size int) Option {
	return func(t *inMemoryTracker) {
		t.maxSize = size
	}
}
