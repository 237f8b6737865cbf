package projectconfig

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerSettings tune BreakerProvider. Zero values fall back to 5 consecutive
// failures and a 30 second open period.
type BreakerSettings struct {
	Name                string
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
	OnStateChange       func(name string, from, to gobreaker.State)
}

// BreakerProvider stops calling a failing provider for a while so a slow or
// broken configuration store cannot stall every fan-out.
type BreakerProvider struct {
	next    Provider
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerProvider wraps next with a circuit breaker.
func NewBreakerProvider(next Provider, s BreakerSettings) *BreakerProvider {
	if s.Name == "" {
		s.Name = "project-config"
	}
	if s.ConsecutiveFailures == 0 {
		s.ConsecutiveFailures = 5
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 30 * time.Second
	}
	threshold := s.ConsecutiveFailures

	return &BreakerProvider{
		next: next,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    s.Name,
			Timeout: s.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: s.OnStateChange,
		}),
	}
}

func (b *BreakerProvider) Provide(ctx context.Context, projectID int64) (map[string]string, error) {
	out, err := b.breaker.Execute(func() (interface{}, error) {
		return b.next.Provide(ctx, projectID)
	})
	if err != nil {
		return nil, err
	}
	return out.(map[string]string), nil
}

// State reports the breaker state.
func (b *BreakerProvider) State() gobreaker.State {
	return b.breaker.State()
}
