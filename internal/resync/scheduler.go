// Package resync keeps supplier offers fresh: it finds stale catalog tuples,
// re-queries suppliers behind their circuit breakers and lands the results.
package resync

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Clock is the time source of the scheduler and orchestrator.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
	After(d time.Duration) <-chan time.Time
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realClock struct{}

// RealClock is the wall clock.
func RealClock() Clock { return realClock{} }

func (realClock) Now() time.Time                         { return time.Now().UTC() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (realClock) NewTicker(d time.Duration) Ticker       { return realTicker{time.NewTicker(d)} }

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// Task is one periodic job. Runs of the same task never overlap; a tick that
// arrives while the previous run is still going is dropped.
type Task struct {
	Name  string
	Every time.Duration
	// Immediate runs the task once at Start before the first tick.
	Immediate bool
	Run       func(ctx context.Context)
}

// Scheduler runs one goroutine per task. The context handed to Run is
// cancelled by Stop so long loops can bail out between units of work.
type Scheduler struct {
	clock Clock
	log   zerolog.Logger

	mu      sync.Mutex
	tasks   []Task
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

func NewScheduler(clock Clock) *Scheduler {
	if clock == nil {
		clock = RealClock()
	}
	return &Scheduler{clock: clock, log: log.With().Str("component", "scheduler").Logger()}
}

// Add registers a task; tasks added after Start are ignored.
func (s *Scheduler) Add(t Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		s.log.Warn().Str("task", t.Name).Msg("task added after start ignored")
		return
	}
	s.tasks = append(s.tasks, t)
}

func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	for _, t := range s.tasks {
		if t.Every <= 0 || t.Run == nil {
			s.log.Warn().Str("task", t.Name).Msg("task without interval or body skipped")
			continue
		}
		s.wg.Add(1)
		go s.loop(runCtx, t)
	}
	s.log.Info().Int("tasks", len(s.tasks)).Msg("scheduler started")
}

func (s *Scheduler) loop(ctx context.Context, t Task) {
	defer s.wg.Done()
	tk := s.clock.NewTicker(t.Every)
	defer tk.Stop()

	if t.Immediate {
		s.run(ctx, t)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C():
			if ctx.Err() != nil {
				return
			}
			s.run(ctx, t)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, t Task) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Str("task", t.Name).Msg("task panicked")
		}
	}()
	t.Run(ctx)
}

// Stop cancels the task context, which stops every ticker, then waits for
// in-flight runs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info().Msg("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sleep waits d on clock; false means ctx ended first.
func sleep(ctx context.Context, clock Clock, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-clock.After(d):
		return true
	}
}
