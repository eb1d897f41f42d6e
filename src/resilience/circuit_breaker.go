package resilience

import (
	"fmt"
	"sync"
	"time"

	"stock-search-service/src/helpers"
	"stock-search-service/src/logger"
	"stock-search-service/src/models"
)

// -----------------------------------------------------------------------------

type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half_open"
)

// -----------------------------------------------------------------------------

// CircuitBreaker gates calls to a failing dependency. One instance is shared
// by all in-flight requests touching that dependency.
type CircuitBreaker struct {
	name             string
	failureThreshold int
	recoveryTimeout  time.Duration

	state          BreakerState
	failureCount   int
	lastTransition time.Time
	trialInFlight  bool

	mu     sync.Mutex
	now    func() time.Time
	logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewCircuitBreaker(name string, failureThreshold int, recoveryTimeout time.Duration, log *logger.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		name:             name,
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		state:            StateClosed,
		now:              time.Now,
		logger:           log,
	}
}

// -----------------------------------------------------------------------------

// Call invokes fn under the breaker's state machine. While OPEN it fails fast
// with a CircuitOpenError and fn is never invoked. After the recovery timeout
// exactly one trial call is let through; its outcome decides the next state.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}

	// settle from a defer so a panicking fn still releases the trial slot
	// and counts as a failure
	var err error
	defer func() {
		if r := recover(); r != nil {
			cb.settle(fmt.Errorf("%s call panicked: %v", cb.name, r))
			panic(r)
		}
		cb.settle(err)
	}()

	err = fn()
	return err
}

// -----------------------------------------------------------------------------

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastTransition) < cb.recoveryTimeout {
			return helpers.NewCircuitOpenError(cb.name)
		}
		cb.transition(StateHalfOpen)
		cb.trialInFlight = true

	case StateHalfOpen:
		// a trial call already holds the slot
		if cb.trialInFlight {
			return helpers.NewCircuitOpenError(cb.name)
		}
		cb.trialInFlight = true
	}

	return nil
}

// -----------------------------------------------------------------------------

func (cb *CircuitBreaker) settle(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		cb.trialInFlight = false
		if err != nil {
			cb.transition(StateOpen)
			return
		}
		cb.failureCount = 0
		cb.transition(StateClosed)
		return
	}

	if err != nil {
		cb.failureCount++
		if cb.state == StateClosed && cb.failureCount >= cb.failureThreshold {
			cb.transition(StateOpen)
		}
		return
	}

	cb.failureCount = 0
}

// -----------------------------------------------------------------------------

// transition changes state and resets the recovery timer. Caller must hold
// the lock.
func (cb *CircuitBreaker) transition(next BreakerState) {
	if cb.state != next && cb.logger != nil {
		cb.logger.Warning("Circuit breaker %s: %s -> %s (failures: %d)", cb.name, cb.state, next, cb.failureCount)
	}
	cb.state = next
	cb.lastTransition = cb.now()
}

// -----------------------------------------------------------------------------

// Status exposes the breaker for observability.
func (cb *CircuitBreaker) Status() models.MBreakerStatus {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return models.MBreakerStatus{
		Name:         cb.name,
		State:        string(cb.state),
		FailureCount: cb.failureCount,
	}
}

// -----------------------------------------------------------------------------

// Reset forces the breaker back to CLOSED. Administrative use only.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount = 0
	cb.trialInFlight = false
	cb.transition(StateClosed)
}
