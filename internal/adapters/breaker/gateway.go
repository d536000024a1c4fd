package breaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"therapyhub/internal/domain"
)

// Settings tunes the breaker. Zero values fall back to the defaults below.
type Settings struct {
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// IsSuccessful classifies errors that must not count as gateway failures, such as a
	// 4xx answer for an unknown intent.
	IsSuccessful func(err error) bool
}

type gateway struct {
	next domain.PaymentGateway
	cb   *gobreaker.CircuitBreaker
}

// NewGateway wraps next with a circuit breaker. While the breaker is open every call fails
// fast with domain.ErrGatewayUnavailable.
func NewGateway(next domain.PaymentGateway, s Settings, logger *slog.Logger) domain.PaymentGateway {
	if s.MaxRequests == 0 {
		s.MaxRequests = 100
	}
	if s.Interval == 0 {
		s.Interval = 5 * time.Second
	}
	if s.Timeout == 0 {
		s.Timeout = 3 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			return s.IsSuccessful != nil && s.IsSuccessful(err)
		},
	})
	return &gateway{next: next, cb: cb}
}

func (g *gateway) CreatePaymentIntent(ctx context.Context, params domain.CreateIntentParams) (*domain.PaymentIntent, error) {
	return execute(g.cb, func() (*domain.PaymentIntent, error) {
		return g.next.CreatePaymentIntent(ctx, params)
	})
}

func (g *gateway) RetrievePaymentIntent(ctx context.Context, intentID string) (*domain.PaymentIntent, error) {
	return execute(g.cb, func() (*domain.PaymentIntent, error) {
		return g.next.RetrievePaymentIntent(ctx, intentID)
	})
}

func execute(cb *gobreaker.CircuitBreaker, fn func() (*domain.PaymentIntent, error)) (*domain.PaymentIntent, error) {
	res, err := cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
		}
		return nil, err
	}
	return res.(*domain.PaymentIntent), nil
}
