package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State of a Breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

const defaultHalfOpenProbes = 3

// Breaker stops calling a failing dependency for a cooldown period. After
// maxFailures consecutive failures it opens; once the cooldown has passed it
// lets up to halfOpenProbes calls through and closes again if they all
// succeed.
type Breaker struct {
	name           string
	maxFailures    int
	cooldown       time.Duration
	halfOpenProbes int
	logger         *logrus.Logger
	now            func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	openedAt  time.Time
	inFlight  int
	successes int
	requests  uint64
	rejected  uint64
}

func New(name string, maxFailures int, cooldown time.Duration, logger *logrus.Logger) *Breaker {
	if maxFailures <= 0 {
		maxFailures = 1
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Breaker{
		name:           name,
		maxFailures:    maxFailures,
		cooldown:       cooldown,
		halfOpenProbes: defaultHalfOpenProbes,
		logger:         logger,
		now:            time.Now,
	}
}

// Execute runs fn unless the breaker is open. A rejected call returns an
// *OpenError without invoking fn.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.acquire(); err != nil {
		return err
	}
	err := fn(ctx)
	b.record(err)
	return err
}

func (b *Breaker) acquire() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advanceLocked()
	switch b.state {
	case StateOpen:
		b.rejected++
		return &OpenError{Name: b.name, State: b.state}
	case StateHalfOpen:
		if b.inFlight+b.successes >= b.halfOpenProbes {
			b.rejected++
			return &OpenError{Name: b.name, State: b.state}
		}
		b.inFlight++
	}
	b.requests++
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen && b.inFlight > 0 {
		b.inFlight--
	}

	if err != nil {
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.maxFailures {
			b.tripLocked()
		}
		return
	}

	switch b.state {
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.halfOpenProbes {
			b.state = StateClosed
			b.failures = 0
			b.successes = 0
			b.logger.WithField("circuit_breaker", b.name).Info("Circuit breaker closed after successful recovery")
		}
	case StateClosed:
		b.failures = 0
	}
}

// advanceLocked moves an open breaker to half-open once the cooldown is over.
func (b *Breaker) advanceLocked() {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		b.state = StateHalfOpen
		b.inFlight = 0
		b.successes = 0
		b.logger.WithField("circuit_breaker", b.name).Info("Circuit breaker half-open")
	}
}

func (b *Breaker) tripLocked() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.inFlight = 0
	b.successes = 0
	b.logger.WithFields(logrus.Fields{
		"circuit_breaker": b.name,
		"failures":        b.failures,
	}).Warn("Circuit breaker opened")
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advanceLocked()
	return b.state
}

// Stats is a snapshot of a breaker's counters.
type Stats struct {
	Name     string `json:"name"`
	State    string `json:"state"`
	Failures int    `json:"failures"`
	Requests uint64 `json:"requests"`
	Rejected uint64 `json:"rejected"`
}

func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Name:     b.name,
		State:    b.state.String(),
		Failures: b.failures,
		Requests: b.requests,
		Rejected: b.rejected,
	}
}

// OpenError is returned when a call is rejected.
type OpenError struct {
	Name  string
	State State
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit breaker '%s' is %s", e.Name, e.State)
}

func IsOpen(err error) bool {
	var oe *OpenError
	return errors.As(err, &oe)
}
