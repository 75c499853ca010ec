package syncengine

import "time"

// Config holds the engine's tunables; every field has the spec-mandated
// default via DefaultConfig.
type Config struct {
	BaseRetryDelay      time.Duration
	MaxRetryDelay       time.Duration
	MaxRetries          int
	TickInterval        time.Duration
	BatchSize           int
	SafeShutdownTimeout time.Duration
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		BaseRetryDelay:      1000 * time.Millisecond,
		MaxRetryDelay:       300_000 * time.Millisecond,
		MaxRetries:          3,
		TickInterval:        5000 * time.Millisecond,
		BatchSize:           10,
		SafeShutdownTimeout: 10_000 * time.Millisecond,
	}
}
