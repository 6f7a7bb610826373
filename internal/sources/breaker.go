package sources

import (
	"errors"
	"fmt"
	"time"

	"leadflow_backend/platform/logger"

	"github.com/sony/gobreaker/v2"
)

const (
	breakerMaxFailures uint32 = 5
	breakerTimeout            = 60 * time.Second
	breakerInterval           = 2 * time.Minute
)

// ErrCircuitOpen is returned while a source is failing fast.
var ErrCircuitOpen = errors.New("source circuit open")

// Breaker trips after repeated remote failures so a down API does not stall
// every sync and webhook lookup.
type Breaker struct {
	cb *gobreaker.CircuitBreaker[[]byte]
}

// NewBreaker builds a breaker for a named source. Client errors (4xx other
// than 429) do not count as failures.
func NewBreaker(name string, log *logger.Logger) *Breaker {
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "source:" + name,
		MaxRequests: 1,
		Interval:    breakerInterval,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var statusErr *StatusError
			if errors.As(err, &statusErr) {
				return !statusErr.Retryable()
			}
			return false
		},
	})
	return &Breaker{cb: cb}
}

// Do runs call through the breaker.
func (b *Breaker) Do(call func() ([]byte, error)) ([]byte, error) {
	body, err := b.cb.Execute(call)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %s", ErrCircuitOpen, b.cb.Name())
	}
	return body, err
}

// State exposes the breaker state for status reporting.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
