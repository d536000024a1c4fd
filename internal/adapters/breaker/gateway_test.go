package breaker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"therapyhub/internal/domain"
)

var errTransport = errors.New("connection reset")
var errRejected = errors.New("no such payment_intent")

type flakyGateway struct {
	calls int
	err   error
}

func (f *flakyGateway) CreatePaymentIntent(ctx context.Context, params domain.CreateIntentParams) (*domain.PaymentIntent, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &domain.PaymentIntent{ID: "pi_new", Amount: params.AmountMinorUnits}, nil
}

func (f *flakyGateway) RetrievePaymentIntent(ctx context.Context, intentID string) (*domain.PaymentIntent, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &domain.PaymentIntent{ID: intentID, Status: domain.IntentStatusSucceeded}, nil
}

func newTestBreaker(next domain.PaymentGateway) domain.PaymentGateway {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewGateway(next, Settings{
		Interval: time.Minute,
		Timeout:  time.Minute,
		IsSuccessful: func(err error) bool {
			return errors.Is(err, errRejected)
		},
	}, logger)
}

func TestGateway_PassesThrough(t *testing.T) {
	g := newTestBreaker(&flakyGateway{})
	pi, err := g.RetrievePaymentIntent(context.Background(), "pi_1")
	require.NoError(t, err)
	assert.Equal(t, "pi_1", pi.ID)

	pi, err = g.CreatePaymentIntent(context.Background(), domain.CreateIntentParams{AmountMinorUnits: 500})
	require.NoError(t, err)
	assert.Equal(t, int64(500), pi.Amount)
}

func TestGateway_OpensAfterTransportFailures(t *testing.T) {
	next := &flakyGateway{err: errTransport}
	g := newTestBreaker(next)

	for i := 0; i < 3; i++ {
		_, err := g.RetrievePaymentIntent(context.Background(), "pi_1")
		require.ErrorIs(t, err, errTransport)
		assert.NotErrorIs(t, err, domain.ErrGatewayUnavailable)
	}

	_, err := g.RetrievePaymentIntent(context.Background(), "pi_1")
	require.ErrorIs(t, err, domain.ErrGatewayUnavailable)
	assert.Equal(t, 3, next.calls, "open breaker does not reach the gateway")
}

func TestGateway_ClientErrorsDoNotTrip(t *testing.T) {
	next := &flakyGateway{err: errRejected}
	g := newTestBreaker(next)

	for i := 0; i < 5; i++ {
		_, err := g.RetrievePaymentIntent(context.Background(), "pi_missing")
		require.ErrorIs(t, err, errRejected)
	}
	assert.Equal(t, 5, next.calls)
}
