package server

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/haukened/localdns/internal/dns/common/log"
)

const (
	DefaultBreakerThreshold = 3
	DefaultBreakerCooldown  = 10 * time.Second
)

// Breaker isolates request handling failures. Execute runs fn unless the
// breaker is open, in which case it returns ErrBreakerOpen without calling fn.
type Breaker interface {
	Execute(fn func() error) error
	State() string
}

type circuitBreaker struct {
	cb *gobreaker.CircuitBreaker
}

var _ Breaker = (*circuitBreaker)(nil)

// NewBreaker returns a Breaker that opens after threshold consecutive
// failures and stays open for cooldown before letting a trial request through.
func NewBreaker(threshold uint32, cooldown time.Duration, logger log.Logger) Breaker {
	if threshold == 0 {
		threshold = DefaultBreakerThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultBreakerCooldown
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	settings := gobreaker.Settings{
		Name:        "request-handler",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}, "Circuit breaker state changed")
		},
	}
	return &circuitBreaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

func (b *circuitBreaker) Execute(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrBreakerOpen
	}
	return err
}

func (b *circuitBreaker) State() string {
	return b.cb.State().String()
}
