// Package breaker guards supplier calls with a per-supplier circuit breaker.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"hotel_fusion/internal/adapters/observability"
)

// ErrOpen is returned without calling the operation while the circuit is open
// or while a half-open trial is already in flight.
var ErrOpen = errors.New("circuit open")

type State int

const (
	Closed State = iota
	HalfOpen
	Open
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case HalfOpen:
		return "half_open"
	case Open:
		return "open"
	}
	return "unknown"
}

type Config struct {
	FailureThreshold int
	ResetTimeout     time.Duration
}

func DefaultConfig() Config {
	return Config{FailureThreshold: 5, ResetTimeout: 30 * time.Second}
}

// Breaker is safe for concurrent use.
type Breaker struct {
	name string
	cfg  Config
	now  func() time.Time
	log  zerolog.Logger

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	trial       bool
}

func New(name string, cfg Config, now func() time.Time) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultConfig().FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = DefaultConfig().ResetTimeout
	}
	if now == nil {
		now = time.Now
	}
	b := &Breaker{
		name: name,
		cfg:  cfg,
		now:  now,
		log:  log.With().Str("component", "breaker").Str("supplier", name).Logger(),
	}
	observability.SetBreakerState(name, int(Closed))
	return b
}

// Execute runs op unless the circuit is open. Failures of op count towards the
// threshold; a cancelled or expired caller context does not.
func (b *Breaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := b.acquire(); err != nil {
		return err
	}
	err := op(ctx)
	b.release(ctx, err)
	return err
}

func (b *Breaker) acquire() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if b.now().Sub(b.lastFailure) < b.cfg.ResetTimeout {
			return ErrOpen
		}
		b.setState(HalfOpen)
		b.trial = true
		return nil
	case HalfOpen:
		if b.trial {
			return ErrOpen
		}
		b.trial = true
		return nil
	}
	return nil
}

func (b *Breaker) release(ctx context.Context, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wasTrial := b.state == HalfOpen
	if wasTrial {
		b.trial = false
	}

	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		// the caller gave up; that says nothing about the supplier
		return
	}

	if err == nil {
		b.failures = 0
		if b.state != Closed {
			b.setState(Closed)
		}
		return
	}

	b.failures++
	b.lastFailure = b.now()
	if wasTrial || b.failures >= b.cfg.FailureThreshold {
		if b.state != Open {
			b.setState(Open)
		}
	}
}

// setState must be called with mu held.
func (b *Breaker) setState(s State) {
	prev := b.state
	b.state = s
	observability.SetBreakerState(b.name, int(s))
	b.log.Warn().Str("from", prev.String()).Str("to", s.String()).Int("failures", b.failures).Msg("circuit state changed")
}

// State reports the current state, moving Open to HalfOpen when the reset timeout has passed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && b.now().Sub(b.lastFailure) >= b.cfg.ResetTimeout {
		b.setState(HalfOpen)
	}
	return b.state
}

// Snapshot is a read-only view for status reporting.
type Snapshot struct {
	Supplier    string     `json:"supplier"`
	State       string     `json:"state"`
	Failures    int        `json:"failures"`
	LastFailure *time.Time `json:"last_failure,omitempty"`
}

func (b *Breaker) Snapshot() Snapshot {
	st := b.State()
	b.mu.Lock()
	defer b.mu.Unlock()
	s := Snapshot{Supplier: b.name, State: st.String(), Failures: b.failures}
	if !b.lastFailure.IsZero() {
		t := b.lastFailure
		s.LastFailure = &t
	}
	return s
}

// Reset forces the circuit closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.trial = false
	if b.state != Closed {
		b.setState(Closed)
	}
}
