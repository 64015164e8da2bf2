package circuit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the breaker state.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned when the breaker sheds a call without attempting it.
var ErrOpen = errors.New("circuit breaker is open")

// Breaker sheds calls to a dependency that keeps failing. After MaxFailures
// consecutive failures it opens for Cooldown, then lets a single probe call
// through; the probe's outcome decides between closing again and re-opening.
type Breaker struct {
	maxFailures int
	cooldown    time.Duration

	mu            sync.Mutex
	state         State
	failures      int
	openedAt      time.Time
	probing       bool
	onStateChange func(from, to State)
}

// New creates a closed breaker.
func New(maxFailures int, cooldown time.Duration) *Breaker {
	return &Breaker{maxFailures: maxFailures, cooldown: cooldown, state: Closed}
}

// OnStateChange registers a callback fired on every transition. It runs with
// the breaker lock held, so it must not call back into the breaker.
func (b *Breaker) OnStateChange(fn func(from, to State)) {
	b.mu.Lock()
	b.onStateChange = fn
	b.mu.Unlock()
}

// Do runs fn under breaker protection. Caller cancellation does not count as
// a dependency failure.
func (b *Breaker) Do(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}

	err := fn()
	b.record(err)
	return err
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return nil
	case Open:
		if time.Since(b.openedAt) < b.cooldown {
			return ErrOpen
		}
		b.transition(HalfOpen)
		b.probing = true
		return nil
	case HalfOpen:
		if b.probing {
			return ErrOpen
		}
		b.probing = true
		return nil
	default:
		return ErrOpen
	}
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if errors.Is(err, context.Canceled) {
		b.probing = false
		return
	}

	if err == nil {
		b.failures = 0
		b.probing = false
		if b.state != Closed {
			b.transition(Closed)
		}
		return
	}

	if b.state == HalfOpen {
		b.probing = false
		b.openedAt = time.Now()
		b.transition(Open)
		return
	}

	b.failures++
	if b.failures >= b.maxFailures {
		b.openedAt = time.Now()
		b.transition(Open)
	}
}

// transition requires b.mu held.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.failures = 0
	if b.onStateChange != nil {
		b.onStateChange(from, to)
	}
}
