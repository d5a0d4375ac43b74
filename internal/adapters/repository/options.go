package repository

import "time"

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithMaxRuns bounds the number of runs kept. When full, the oldest
// finished run is evicted. Values <= 0 keep every run.
func WithMaxRuns(n int) Option {
	return func(s *MemoryStore) {
		s.maxRuns = n
	}
}

// WithEvictHook registers a callback invoked, outside the lock, for every
// evicted run.
func WithEvictHook(fn func(Record)) Option {
	return func(s *MemoryStore) {
		s.onEvict = fn
	}
}

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(s *MemoryStore) {
		if interval > 0 {
			s.metricsUpdateInterval = interval
		}
	}
}
