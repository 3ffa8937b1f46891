// Package timeouts provides the timeout values handlers put on their
// contexts.
//
// Upstream POSTs carry their own per-endpoint deadline inside the
// upstream client; the values here bound the whole handler around them.
//
//   - Ping: health checks
//   - Audit: audit log reads
//   - Fetch: a list refresh (one list POST)
//   - Action: one row action plus the refetch that follows it
//   - Batch: a whole batch run, every group and the final refetch
package timeouts

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Defaults used until Configure is called.
const (
	DefaultPing   = 2 * time.Second
	DefaultAudit  = 10 * time.Second
	DefaultFetch  = 95 * time.Second
	DefaultAction = 3 * time.Minute
	DefaultBatch  = 15 * time.Minute
)

// Config holds timeout values. Zero fields keep the current value.
type Config struct {
	Ping   time.Duration
	Audit  time.Duration
	Fetch  time.Duration
	Action time.Duration
	Batch  time.Duration
}

var (
	mu  sync.RWMutex
	cur = defaults()
)

func defaults() Config {
	return Config{
		Ping:   DefaultPing,
		Audit:  DefaultAudit,
		Fetch:  DefaultFetch,
		Action: DefaultAction,
		Batch:  DefaultBatch,
	}
}

func get(f func(Config) time.Duration) time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return f(cur)
}

// Ping returns the health check timeout.
func Ping() time.Duration { return get(func(c Config) time.Duration { return c.Ping }) }

// Audit returns the timeout for audit log queries.
func Audit() time.Duration { return get(func(c Config) time.Duration { return c.Audit }) }

// Fetch returns the timeout for a list refresh.
func Fetch() time.Duration { return get(func(c Config) time.Duration { return c.Fetch }) }

// Action returns the timeout for one action and its refetch.
func Action() time.Duration { return get(func(c Config) time.Duration { return c.Action }) }

// Batch returns the timeout for a batch run.
func Batch() time.Duration { return get(func(c Config) time.Duration { return c.Batch }) }

// Configure overrides the non-zero values of cfg. Call it during startup,
// before handlers are registered.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	if cfg.Ping > 0 {
		cur.Ping = cfg.Ping
	}
	if cfg.Audit > 0 {
		cur.Audit = cfg.Audit
	}
	if cfg.Fetch > 0 {
		cur.Fetch = cfg.Fetch
	}
	if cfg.Action > 0 {
		cur.Action = cfg.Action
	}
	if cfg.Batch > 0 {
		cur.Batch = cfg.Batch
	}
}

// Reset restores the defaults. Used by tests.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	cur = defaults()
}

// Current returns the active configuration.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return cur
}

// WithTimeout is context.WithTimeout whose cancel func logs a warning
// when the deadline was the reason the context ended.
//
//	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Batch(), h.Log, "batch approve")
//	defer cancel()
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout),
			)
		}
		cancel()
	}
}
