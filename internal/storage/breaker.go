package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerStore guards a remote Store with a circuit breaker so a failing
// bucket fails uploads fast instead of tying up request goroutines.
type BreakerStore struct {
	next Store
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerStore(name string, next Store, log *slog.Logger) *BreakerStore {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 2,
		Interval:    30 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("storage circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			// a canceled caller says nothing about the bucket's health
			return err == nil || err == context.Canceled
		},
	})
	return &BreakerStore{next: next, cb: cb}
}

func (b *BreakerStore) Put(ctx context.Context, key, contentType string, data []byte) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.next.Put(ctx, key, contentType, data)
	})
	return err
}

func (b *BreakerStore) Delete(ctx context.Context, keys ...string) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.next.Delete(ctx, keys...)
	})
	return err
}

// State reports the breaker state (closed, half-open, open).
func (b *BreakerStore) State() gobreaker.State { return b.cb.State() }
