// internal/app/system/workers/consolecleanup.go
package workers

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// IdleEvictor is what the cleanup worker needs from the console registry.
type IdleEvictor interface {
	EvictIdle(now time.Time, ttl time.Duration) int
	Len() int
}

// ConsoleCleanup is a background worker that releases the record sets of
// consoles nobody has looked at for a while.
type ConsoleCleanup struct {
	consoles      IdleEvictor
	log           *zap.Logger
	interval      time.Duration
	idleThreshold time.Duration
	now           func() time.Time
	stopCh        chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
}

// NewConsoleCleanup creates a new console cleanup worker.
//
// Parameters:
//   - consoles: the console registry
//   - logger: zap logger for logging
//   - interval: how often to run cleanup (e.g., 1 minute)
//   - idleThreshold: how long a console must be unused before it is dropped (e.g., 30 minutes)
func NewConsoleCleanup(consoles IdleEvictor, logger *zap.Logger, interval, idleThreshold time.Duration) *ConsoleCleanup {
	return &ConsoleCleanup{
		consoles:      consoles,
		log:           logger,
		interval:      interval,
		idleThreshold: idleThreshold,
		now:           time.Now,
		stopCh:        make(chan struct{}),
	}
}

// Start begins the background cleanup loop.
func (w *ConsoleCleanup) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("console cleanup worker started",
		zap.Duration("interval", w.interval),
		zap.Duration("idle_threshold", w.idleThreshold))
}

// Stop signals the worker to stop and waits for it to finish. It is safe
// to call more than once.
func (w *ConsoleCleanup) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
	w.log.Info("console cleanup worker stopped")
}

func (w *ConsoleCleanup) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.cleanup()
		}
	}
}

func (w *ConsoleCleanup) cleanup() {
	count := w.consoles.EvictIdle(w.now(), w.idleThreshold)
	if count > 0 {
		w.log.Info("evicted idle consoles",
			zap.Int("count", count),
			zap.Int("remaining", w.consoles.Len()))
	}
}
