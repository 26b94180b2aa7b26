package payment

import (
	"context"
	"errors"
	"sync"
	"time"
)

type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	}
	return "unknown"
}

// ErrCircuitOpen is returned without calling the processor while the
// breaker is open.
var ErrCircuitOpen = errors.New("payment processor circuit breaker is open")

// ErrTooManyProbes is returned when the half-open probe budget is spent.
var ErrTooManyProbes = errors.New("too many requests when circuit breaker is half open")

type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// BreakerSettings tunes the breaker.  The breaker trips once MinRequests
// calls were seen in the current window and the failure share reaches
// FailureRatio.
type BreakerSettings struct {
	MinRequests  uint32
	MaxProbes    uint32
	Interval     time.Duration
	Timeout      time.Duration
	FailureRatio float64
}

// DefaultBreakerSettings suits a remote card processor.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MinRequests:  10,
		MaxProbes:    1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.6,
	}
}

type CircuitBreaker struct {
	name     string
	settings BreakerSettings
	now      func() time.Time

	mutex      sync.Mutex
	state      State
	generation uint64
	counts     Counts
	expiry     time.Time

	onStateChange func(name string, from, to State)
}

func NewCircuitBreaker(name string, st BreakerSettings) *CircuitBreaker {
	if st.MaxProbes == 0 {
		st.MaxProbes = 1
	}
	cb := &CircuitBreaker{name: name, settings: st, now: time.Now, state: StateClosed}
	cb.toNewGeneration(cb.now())
	return cb
}

// OnStateChange registers a hook called (under the breaker lock) on every
// state change.
func (cb *CircuitBreaker) OnStateChange(fn func(name string, from, to State)) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	cb.onStateChange = fn
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	state, _ := cb.currentState(cb.now())
	return state
}

// Execute runs req if the breaker allows it and records the outcome.
// Context cancellation by the caller is not counted as a processor
// failure.
func (cb *CircuitBreaker) Execute(ctx context.Context, req func() error) error {
	generation, err := cb.beforeRequest()
	if err != nil {
		return err
	}

	defer func() {
		if e := recover(); e != nil {
			cb.afterRequest(generation, false)
			panic(e)
		}
	}()

	err = req()
	if err != nil && ctx.Err() != nil {
		cb.afterRequest(generation, true)
		return err
	}
	cb.afterRequest(generation, err == nil || errors.Is(err, ErrIntentNotFound))
	return err
}

func (cb *CircuitBreaker) beforeRequest() (uint64, error) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	state, generation := cb.currentState(cb.now())
	if state == StateOpen {
		return generation, ErrCircuitOpen
	} else if state == StateHalfOpen && cb.counts.Requests >= cb.settings.MaxProbes {
		return generation, ErrTooManyProbes
	}
	cb.counts.Requests++
	return generation, nil
}

func (cb *CircuitBreaker) afterRequest(before uint64, success bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	now := cb.now()
	state, generation := cb.currentState(now)
	if generation != before {
		return
	}
	if success {
		cb.onSuccess(state, now)
	} else {
		cb.onFailure(state, now)
	}
}

func (cb *CircuitBreaker) onSuccess(state State, now time.Time) {
	cb.counts.TotalSuccesses++
	cb.counts.ConsecutiveSuccesses++
	cb.counts.ConsecutiveFailures = 0
	if state == StateHalfOpen {
		cb.setState(StateClosed, now)
	}
}

func (cb *CircuitBreaker) onFailure(state State, now time.Time) {
	cb.counts.TotalFailures++
	cb.counts.ConsecutiveFailures++
	cb.counts.ConsecutiveSuccesses = 0
	switch state {
	case StateClosed:
		if cb.readyToTrip() {
			cb.setState(StateOpen, now)
		}
	case StateHalfOpen:
		cb.setState(StateOpen, now)
	}
}

func (cb *CircuitBreaker) readyToTrip() bool {
	return cb.counts.Requests >= cb.settings.MinRequests &&
		float64(cb.counts.TotalFailures)/float64(cb.counts.Requests) >= cb.settings.FailureRatio
}

func (cb *CircuitBreaker) currentState(now time.Time) (State, uint64) {
	switch cb.state {
	case StateClosed:
		if !cb.expiry.IsZero() && cb.expiry.Before(now) {
			cb.toNewGeneration(now)
		}
	case StateOpen:
		if cb.expiry.Before(now) {
			cb.setState(StateHalfOpen, now)
		}
	}
	return cb.state, cb.generation
}

func (cb *CircuitBreaker) setState(state State, now time.Time) {
	if cb.state == state {
		return
	}
	prev := cb.state
	cb.state = state
	cb.toNewGeneration(now)
	if cb.onStateChange != nil {
		cb.onStateChange(cb.name, prev, state)
	}
}

func (cb *CircuitBreaker) toNewGeneration(now time.Time) {
	cb.generation++
	cb.counts = Counts{}

	var zero time.Time
	switch cb.state {
	case StateClosed:
		if cb.settings.Interval > 0 {
			cb.expiry = now.Add(cb.settings.Interval)
		} else {
			cb.expiry = zero
		}
	case StateOpen:
		cb.expiry = now.Add(cb.settings.Timeout)
	default:
		cb.expiry = zero
	}
}

// BreakerGateway guards a Gateway with a CircuitBreaker.
type BreakerGateway struct {
	next Gateway
	cb   *CircuitBreaker
}

func NewBreakerGateway(next Gateway, cb *CircuitBreaker) *BreakerGateway {
	return &BreakerGateway{next: next, cb: cb}
}

func (g *BreakerGateway) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	var out *Intent
	err := g.cb.Execute(ctx, func() error {
		var err error
		out, err = g.next.CreateIntent(ctx, req)
		return err
	})
	return out, err
}

func (g *BreakerGateway) GetIntent(ctx context.Context, id string) (*Intent, error) {
	var out *Intent
	err := g.cb.Execute(ctx, func() error {
		var err error
		out, err = g.next.GetIntent(ctx, id)
		return err
	})
	return out, err
}

// Refund is not guarded: captured money is returned even while the
// breaker is open.
func (g *BreakerGateway) Refund(ctx context.Context, intentID string) error {
	return g.next.Refund(ctx, intentID)
}
