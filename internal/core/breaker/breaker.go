// Package breaker provides per-configuration circuit breakers: a
// CLOSED/OPEN/HALF_OPEN state machine driven by a sliding window of call
// outcomes, one breaker per configuration id.
//
// Breaker state is updated concurrently from multiple dispatch goroutines;
// every exported method takes the breaker's own mutex.
package breaker

import (
	"math/rand"
	"sync"
	"time"
)

// State is one of the three circuit breaker states.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

// Params holds the tuning knobs for a single breaker. Every breaker
// in the registry shares the same Params unless a future per-configuration
// override is wired in (none is, today).
type Params struct {
	WindowSize             int
	MinimumCalls           int
	FailureRateThreshold   float64
	SlowCallDuration       time.Duration
	SlowCallRateThreshold  float64
	OpenWaitMin            time.Duration
	OpenWaitMax            time.Duration
	HalfOpenPermittedCalls int
}

// Outcome is what the Dispatcher reports back to the breaker after a call.
type Outcome struct {
	Success  bool
	Duration time.Duration
}

func (o Outcome) slow(params Params) bool {
	return params.SlowCallDuration > 0 && o.Duration >= params.SlowCallDuration
}

type call struct {
	failed bool
	slow   bool
}

// Breaker is a single configuration's circuit breaker instance.
type Breaker struct {
	mu     sync.Mutex
	params Params

	state    State
	openedAt time.Time
	openWait time.Duration

	window []call

	halfOpenInFlight int
}

// New constructs a Breaker in the CLOSED state.
func New(params Params) *Breaker {
	return &Breaker{params: params, state: StateClosed}
}

// Allow reports whether a call may proceed right now. When it returns false
// the caller must treat the attempt as rejected by the breaker and issue no
// network call. A true return in the HALF_OPEN state reserves one of the
// breaker's limited concurrent permits; the caller must call Report exactly
// once for every true Allow.
func (b *Breaker) Allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true

	case StateOpen:
		if now.Sub(b.openedAt) >= b.openWait {
			b.state = StateHalfOpen
			b.halfOpenInFlight = 1
			return true
		}
		return false

	case StateHalfOpen:
		if b.halfOpenInFlight < b.params.HalfOpenPermittedCalls {
			b.halfOpenInFlight++
			return true
		}
		return false

	default:
		return false
	}
}

// Report records the outcome of a call that Allow previously admitted.
func (b *Breaker) Report(now time.Time, outcome Outcome) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		if b.halfOpenInFlight > 0 {
			b.halfOpenInFlight--
		}
		if outcome.Success && !outcome.slow(b.params) {
			b.resetToClosedLocked()
		} else {
			b.tripOpenLocked(now)
		}

	case StateClosed:
		b.pushLocked(outcome)
		if b.shouldTripLocked() {
			b.tripOpenLocked(now)
		}

	case StateOpen:
		// A report arriving while OPEN means Allow already rejected the call
		// and the caller is reporting a synthetic outcome; nothing to update.
	}
}

// State returns the breaker's current state for observability.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) pushLocked(outcome Outcome) {
	c := call{failed: !outcome.Success, slow: outcome.slow(b.params)}
	b.window = append(b.window, c)
	if len(b.window) > b.params.WindowSize {
		b.window = b.window[len(b.window)-b.params.WindowSize:]
	}
}

func (b *Breaker) shouldTripLocked() bool {
	total := len(b.window)
	if total < b.params.MinimumCalls {
		return false
	}
	var failures, slows int
	for _, c := range b.window {
		if c.failed {
			failures++
		}
		if c.slow {
			slows++
		}
	}
	failureRate := float64(failures) / float64(total)
	slowRate := float64(slows) / float64(total)
	return failureRate >= b.params.FailureRateThreshold || slowRate >= b.params.SlowCallRateThreshold
}

func (b *Breaker) tripOpenLocked(now time.Time) {
	b.state = StateOpen
	b.openedAt = now
	b.openWait = jitteredWait(b.params.OpenWaitMin, b.params.OpenWaitMax)
	b.window = nil
	b.halfOpenInFlight = 0
}

func (b *Breaker) resetToClosedLocked() {
	b.state = StateClosed
	b.window = nil
	b.halfOpenInFlight = 0
}

func jitteredWait(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	span := int64(max - min)
	return min + time.Duration(rand.Int63n(span+1))
}
