package media

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"notesy/internal/logging"
)

// Breaker fails fast once the media store keeps erroring, instead of tying up every request
// on a dead upstream.
type Breaker struct {
	next Service
	cb   *gobreaker.CircuitBreaker[string]
}

type BreakerSettings struct {
	Name             string
	FailureThreshold uint32        // consecutive failures before opening
	Timeout          time.Duration // open -> half-open
}

func NewBreaker(next Service, s BreakerSettings) *Breaker {
	if s.FailureThreshold == 0 {
		s.FailureThreshold = 5
	}
	if s.Timeout == 0 {
		s.Timeout = 30 * time.Second
	}
	log := logging.WithComponent("media")
	return &Breaker{
		next: next,
		cb: gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
			Name:        s.Name,
			MaxRequests: 1,
			Timeout:     s.Timeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= s.FailureThreshold
			},
			IsSuccessful: upstreamHealthy,
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("media breaker state change")
			},
		}),
	}
}

// upstreamHealthy reports whether err says nothing about the media store itself: bad client
// input or a caller that gave up.
func upstreamHealthy(err error) bool {
	return err == nil ||
		errors.Is(err, ErrInvalidImage) ||
		errors.Is(err, ErrInvalidReference) ||
		errors.Is(err, context.Canceled)
}

func (b *Breaker) Upload(ctx context.Context, localPath string, opts Options) (string, error) {
	return b.cb.Execute(func() (string, error) {
		return b.next.Upload(ctx, localPath, opts)
	})
}

func (b *Breaker) Delete(ctx context.Context, ref string) error {
	_, err := b.cb.Execute(func() (string, error) {
		return "", b.next.Delete(ctx, ref)
	})
	return err
}

func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
