package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

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
	default:
		return "unknown"
	}
}

type Config struct {
	FailureThreshold uint32
	SuccessThreshold uint32
	OpenTimeout      time.Duration
	OnStateChange    func(name string, from, to State)
	Logger           *zap.Logger
	// IsFailure decides whether an error counts against the breaker. Context
	// cancellation by the caller never does.
	IsFailure func(err error) bool
}

// CircuitBreaker trips after FailureThreshold consecutive failures, rejects
// calls for OpenTimeout, then lets probes through until SuccessThreshold
// consecutive successes close it again.
type CircuitBreaker struct {
	name string
	cfg  Config
	now  func() time.Time

	mu        sync.Mutex
	state     State
	failures  uint32
	successes uint32
	openedAt  time.Time
}

func New(name string, cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = 1
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		}
	}
	return &CircuitBreaker{name: name, cfg: cfg, now: time.Now}
}

func (cb *CircuitBreaker) Name() string {
	return cb.name
}

func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !cb.allow() {
		return ErrCircuitOpen
	}

	err := fn()
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.refresh()
	return cb.state
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.refresh()
	return cb.state != StateOpen
}

func (cb *CircuitBreaker) refresh() {
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.cfg.OpenTimeout {
		cb.transition(StateHalfOpen)
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.cfg.IsFailure(err) {
		cb.failures = 0
		cb.successes++
		if cb.state == StateHalfOpen && cb.successes >= cb.cfg.SuccessThreshold {
			cb.transition(StateClosed)
		}
		return
	}

	cb.successes = 0
	cb.failures++
	switch {
	case cb.state == StateHalfOpen:
		cb.transition(StateOpen)
	case cb.state == StateClosed && cb.failures >= cb.cfg.FailureThreshold:
		cb.transition(StateOpen)
	}
}

func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.successes = 0
	if to == StateOpen {
		cb.openedAt = cb.now()
	} else {
		cb.failures = 0
	}

	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.name, from, to)
	}
	if cb.cfg.Logger != nil {
		cb.cfg.Logger.Info("Circuit breaker state changed",
			zap.String("name", cb.name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
}
