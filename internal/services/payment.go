package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"therapyhub/internal/domain"
)

// Webhook event types that carry a payment intent.
const (
	WebhookIntentSucceeded     = "payment_intent.succeeded"
	WebhookIntentPaymentFailed = "payment_intent.payment_failed"
	WebhookIntentProcessing    = "payment_intent.processing"
)

type paymentService struct {
	workshopRepo     domain.WorkshopRepository
	registrationRepo domain.RegistrationRepository
	gateway          domain.PaymentGateway
	verifier         domain.WebhookVerifier
	currency         string
	clock            domain.Clock
	location         *time.Location
	logger           *slog.Logger
	contextTimeout   time.Duration
}

// NewPaymentService returns a PaymentService. A nil gateway or verifier makes the matching
// operation fail with ErrGatewayUnavailable.
func NewPaymentService(workshopRepo domain.WorkshopRepository,
	registrationRepo domain.RegistrationRepository,
	gateway domain.PaymentGateway,
	verifier domain.WebhookVerifier,
	currency string,
	clock domain.Clock,
	loc *time.Location,
	logger *slog.Logger,
	timeout time.Duration,
) domain.PaymentService {
	if loc == nil {
		loc = time.UTC
	}
	if currency == "" {
		currency = "usd"
	}
	return &paymentService{
		workshopRepo:     workshopRepo,
		registrationRepo: registrationRepo,
		gateway:          gateway,
		verifier:         verifier,
		currency:         strings.ToLower(currency),
		clock:            clock,
		location:         loc,
		logger:           logger,
		contextTimeout:   timeout,
	}
}

func (s *paymentService) CreatePaymentIntent(ctx context.Context, workshopID, email string) (*domain.PaymentIntentCheckout, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	w, err := s.workshopRepo.GetByID(ctx, workshopID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get workshop: %w", err)
	}
	if !domain.IsOpenForRegistration(w.EffectiveStatus(s.clock.Now().In(s.location))) {
		return nil, domain.ErrRegistrationClosed
	}
	if !w.IsPaid() || w.PriceMinorUnits() <= 0 {
		return nil, fmt.Errorf("%w: workshop is free", domain.ErrInvalidInput)
	}
	if s.gateway == nil {
		return nil, domain.ErrGatewayUnavailable
	}

	metadata := map[string]string{domain.MetadataWorkshopID: w.ID}
	if email = strings.TrimSpace(email); email != "" {
		metadata["email"] = email
	}
	intent, err := s.gateway.CreatePaymentIntent(ctx, domain.CreateIntentParams{
		AmountMinorUnits: w.PriceMinorUnits(),
		Currency:         s.currency,
		Metadata:         metadata,
	})
	if err != nil {
		if errors.Is(err, domain.ErrGatewayUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	return &domain.PaymentIntentCheckout{
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		Amount:          intent.Amount,
		Currency:        intent.Currency,
	}, nil
}

func (s *paymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if s.verifier == nil {
		return domain.ErrGatewayUnavailable
	}
	event, err := s.verifier.Verify(payload, signature)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	switch event.Type {
	case WebhookIntentSucceeded, WebhookIntentPaymentFailed, WebhookIntentProcessing:
	default:
		s.logger.DebugContext(ctx, "webhook event ignored", "event_id", event.ID, "type", event.Type)
		return nil
	}
	if event.Intent == nil || event.Intent.ID == "" {
		return nil
	}

	snap := event.Intent.Snapshot()
	if event.Type == WebhookIntentPaymentFailed {
		snap.Status = domain.PaymentStatusFailed
	}
	if err := s.registrationRepo.UpdatePaymentByIntentID(ctx, snap); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// The intent has not been used for a registration yet.
			s.logger.InfoContext(ctx, "webhook for unknown payment intent", "event_id", event.ID, "payment_intent_id", snap.IntentID)
			return nil
		}
		return fmt.Errorf("update registration payment: %w", err)
	}
	s.logger.InfoContext(ctx, "registration payment updated", "event_id", event.ID, "payment_intent_id", snap.IntentID, "status", snap.Status)
	return nil
}
