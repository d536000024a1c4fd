package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"therapyhub/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPaymentFixture(gateway domain.PaymentGateway, verifier domain.WebhookVerifier, ws ...*domain.Workshop) (*fakeRegistrationRepo, domain.PaymentService) {
	regs := newFakeRegistrationRepo()
	svc := NewPaymentService(newFakeWorkshopRepo(ws...), regs, gateway, verifier, "USD",
		fixedClock(regNow), time.UTC, discardLogger(), 5*time.Second)
	return regs, svc
}

func TestPaymentService_CreatePaymentIntent(t *testing.T) {
	ctx := context.Background()

	t.Run("paid workshop", func(t *testing.T) {
		g := newFakeGateway()
		w := paidWorkshop("ws-1", 5)
		w.Price = 19.99
		_, svc := newPaymentFixture(g, nil, w)

		checkout, err := svc.CreatePaymentIntent(ctx, "ws-1", " ana@example.com ")
		require.NoError(t, err)
		assert.Equal(t, "pi_1", checkout.PaymentIntentID)
		assert.Equal(t, "pi_1_secret", checkout.ClientSecret)
		assert.Equal(t, int64(1999), checkout.Amount)
		assert.Equal(t, "usd", checkout.Currency)
		require.Len(t, g.created, 1)
		assert.Equal(t, map[string]string{"workshop_id": "ws-1", "email": "ana@example.com"}, g.created[0].Metadata)
	})

	tests := []struct {
		name     string
		workshop *domain.Workshop
		gateway  domain.PaymentGateway
		wantErr  error
	}{
		{"free workshop", openWorkshop("ws-1", 5), newFakeGateway(), domain.ErrInvalidInput},
		{"closed workshop", func() *domain.Workshop {
			w := paidWorkshop("ws-1", 5)
			w.Status = domain.WorkshopStatusCancelled
			return w
		}(), newFakeGateway(), domain.ErrRegistrationClosed},
		{"no gateway", paidWorkshop("ws-1", 5), nil, domain.ErrGatewayUnavailable},
		{"unknown workshop", nil, newFakeGateway(), domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ws []*domain.Workshop
			if tt.workshop != nil {
				ws = append(ws, tt.workshop)
			}
			_, svc := newPaymentFixture(tt.gateway, nil, ws...)
			_, err := svc.CreatePaymentIntent(ctx, "ws-1", "")
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPaymentService_HandleWebhook(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		event      *domain.WebhookEvent
		verifyErr  error
		wantErr    error
		wantStatus string
	}{
		{
			name: "succeeded overwrites snapshot",
			event: &domain.WebhookEvent{ID: "evt_1", Type: WebhookIntentSucceeded, Intent: &domain.PaymentIntent{
				ID: "pi_1", Status: "succeeded", AmountReceived: 2500, Currency: "usd", PaymentMethodTypes: []string{"card"}}},
			wantStatus: "succeeded",
		},
		{
			name: "payment failed",
			event: &domain.WebhookEvent{ID: "evt_2", Type: WebhookIntentPaymentFailed, Intent: &domain.PaymentIntent{
				ID: "pi_1", Status: "requires_payment_method", Currency: "usd"}},
			wantStatus: domain.PaymentStatusFailed,
		},
		{
			name: "processing",
			event: &domain.WebhookEvent{ID: "evt_3", Type: WebhookIntentProcessing, Intent: &domain.PaymentIntent{
				ID: "pi_1", Status: "processing"}},
			wantStatus: "processing",
		},
		{
			name: "unknown intent is ignored",
			event: &domain.WebhookEvent{ID: "evt_4", Type: WebhookIntentSucceeded, Intent: &domain.PaymentIntent{
				ID: "pi_other", Status: "succeeded"}},
			wantStatus: "pending",
		},
		{
			name:       "other event types are ignored",
			event:      &domain.WebhookEvent{ID: "evt_5", Type: "charge.refunded"},
			wantStatus: "pending",
		},
		{
			name:      "bad signature",
			verifyErr: errors.New("signature mismatch"),
			wantErr:   domain.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			regs, svc := newPaymentFixture(nil, &fakeVerifier{event: tt.event, err: tt.verifyErr})
			reg := &domain.Registration{WorkshopID: "ws-1", Payment: domain.PaymentSnapshot{IntentID: "pi_1", Status: "pending"}}
			require.NoError(t, regs.Create(ctx, reg))

			err := svc.HandleWebhook(ctx, []byte(`{}`), "t=1,v1=abc")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			got, err := regs.GetByID(ctx, reg.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.Payment.Status)
		})
	}
}

func TestPaymentService_HandleWebhookWithoutVerifier(t *testing.T) {
	_, svc := newPaymentFixture(nil, nil)
	err := svc.HandleWebhook(context.Background(), []byte(`{}`), "")
	require.ErrorIs(t, err, domain.ErrGatewayUnavailable)
}
