package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen indicates the circuit breaker rejected the call without
// invoking the remote service.
var ErrCircuitOpen = errors.New("circuit breaker open")

// State is the circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a circuit breaker for one remote service.
type BreakerConfig struct {
	Name         string
	FailMax      int
	ResetTimeout time.Duration
	Now          func() time.Time
	Logf         func(format string, args ...any)
	OnTransition func(name string, state State)
}

// CircuitBreaker guards one remote service. It is shared by every concurrent
// caller targeting that service; all state moves under the mutex so at most
// one trial call is admitted while HALF_OPEN resolves.
type CircuitBreaker struct {
	name         string
	failMax      int
	resetTimeout time.Duration
	now          func() time.Time
	logf         func(format string, args ...any)
	onTransition func(name string, state State)

	mu            sync.Mutex
	state         State
	failures      int
	openedAt      time.Time
	trialInFlight bool
}

// NewCircuitBreaker constructs a breaker with sane defaults.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	failMax := cfg.FailMax
	if failMax < 1 {
		failMax = 1
	}
	resetTimeout := cfg.ResetTimeout
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logf := cfg.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &CircuitBreaker{
		name:         cfg.Name,
		failMax:      failMax,
		resetTimeout: resetTimeout,
		now:          now,
		logf:         logf,
		onTransition: cfg.OnTransition,
		state:        StateClosed,
	}
}

// Allow reports whether a physical call may be made right now. While OPEN it
// returns ErrCircuitOpen until the reset timeout elapses, then admits exactly
// one trial call; concurrent callers losing that race also get ErrCircuitOpen.
// Every nil return must be balanced by exactly one Record* or Release call.
func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.resetTimeout {
			return ErrCircuitOpen
		}
		b.transition(StateHalfOpen)
		b.trialInFlight = true
	case StateHalfOpen:
		if b.trialInFlight {
			return ErrCircuitOpen
		}
		b.trialInFlight = true
	}
	return nil
}

// RecordSuccess reports a successful remote response.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.trialInFlight = false
	if b.state != StateClosed {
		b.transition(StateClosed)
	}
	b.failures = 0
}

// RecordFailure reports a transient failure of a physical attempt.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.trialInFlight = false
		b.failures = 0
		b.openedAt = b.now()
		b.transition(StateOpen)
		return
	}

	b.failures++
	if b.state == StateClosed && b.failures >= b.failMax {
		b.openedAt = b.now()
		b.transition(StateOpen)
	}
}

// RecordRejection reports a terminal business rejection. The remote answered,
// so it is healthy: a pending trial resolves to CLOSED, but the failure
// counter is otherwise left alone.
func (b *CircuitBreaker) RecordRejection() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.trialInFlight = false
		b.failures = 0
		b.transition(StateClosed)
	}
}

// Release abandons an admitted attempt without a verdict (caller canceled).
// A reserved trial slot reverts to OPEN with the original openedAt so the
// next caller becomes the trial instead.
func (b *CircuitBreaker) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen && b.trialInFlight {
		b.trialInFlight = false
		b.transition(StateOpen)
	}
}

// State returns the current state.
func (b *CircuitBreaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the consecutive transient failure count.
func (b *CircuitBreaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

func (b *CircuitBreaker) transition(next State) {
	b.state = next
	b.logf("circuit %s: %s", b.name, next)
	if b.onTransition != nil {
		b.onTransition(b.name, next)
	}
}
