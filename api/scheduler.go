/*
scheduler.go - Automated booking completion sweep

PURPOSE:
  Periodically moves confirmed bookings whose slot has ended to completed,
  so finished visits stop listing as upcoming.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Delegates the sweep to booking.Engine.CompleteElapsed, which is
    idempotent: a booking cancelled or completed meanwhile is skipped
  - Runs once immediately on start

USAGE:
  scheduler := NewCompletionScheduler(engine, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - booking/engine.go: CompleteElapsed
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/warp/cafe-booking/booking"
)

// Completer is the part of the engine the scheduler drives.
type Completer interface {
	CompleteElapsed(ctx context.Context) (int, error)
}

// CompletionScheduler handles the periodic completion sweep.
type CompletionScheduler struct {
	Engine        Completer
	CheckInterval time.Duration
	Enabled       bool

	log    zerolog.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

var _ Completer = (*booking.Engine)(nil)

func NewCompletionScheduler(engine Completer, log zerolog.Logger) *CompletionScheduler {
	return &CompletionScheduler{
		Engine:        engine,
		CheckInterval: 5 * time.Minute,
		Enabled:       true,
		log:           log.With().Str("component", "scheduler").Logger(),
	}
}

// Start begins the scheduler.
func (cs *CompletionScheduler) Start() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if !cs.Enabled {
		cs.log.Info().Msg("disabled, not starting")
		return
	}
	if cs.ticker != nil {
		return
	}

	cs.ticker = time.NewTicker(cs.CheckInterval)
	cs.stop = make(chan struct{})
	cs.wg.Add(1)

	go cs.run(cs.ticker.C, cs.stop)

	cs.log.Info().Dur("interval", cs.CheckInterval).Msg("started")
}

// Stop stops the scheduler and waits for an in-flight sweep.
func (cs *CompletionScheduler) Stop() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.ticker != nil {
		cs.ticker.Stop()
		close(cs.stop)
		cs.wg.Wait()
		cs.ticker = nil
		cs.log.Info().Msg("stopped")
	}
}

func (cs *CompletionScheduler) run(tick <-chan time.Time, stop <-chan struct{}) {
	defer cs.wg.Done()

	// Run immediately on start
	cs.RunNow()

	for {
		select {
		case <-tick:
			cs.RunNow()
		case <-stop:
			return
		}
	}
}

// RunNow performs one sweep and returns how many bookings it completed.
func (cs *CompletionScheduler) RunNow() int {
	n, err := cs.Engine.CompleteElapsed(context.Background())
	if err != nil {
		cs.log.Error().Err(err).Int("completed", n).Msg("completion sweep failed")
		return n
	}
	if n > 0 {
		cs.log.Info().Int("completed", n).Msg("completion sweep")
	}
	return n
}
