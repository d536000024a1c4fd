package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	stripeapi "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"therapyhub/internal/domain"
)

// Config holds the Stripe credentials. BaseURL and HTTPClient are for tests.
type Config struct {
	SecretKey     string
	WebhookSecret string
	BaseURL       string
	HTTPClient    *http.Client
}

type gateway struct {
	api *client.API
}

// NewGateway returns a PaymentGateway backed by the Stripe PaymentIntents API.
func NewGateway(cfg Config, logger *slog.Logger) (domain.PaymentGateway, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("stripe secret key is required")
	}
	backendCfg := &stripeapi.BackendConfig{
		LeveledLogger: &slogLeveledLogger{logger: logger},
	}
	if cfg.HTTPClient != nil {
		backendCfg.HTTPClient = cfg.HTTPClient
	}
	if cfg.BaseURL != "" {
		backendCfg.URL = stripeapi.String(cfg.BaseURL)
		backendCfg.MaxNetworkRetries = stripeapi.Int64(0)
	}
	api := &client.API{}
	api.Init(cfg.SecretKey, &stripeapi.Backends{
		API:     stripeapi.GetBackendWithConfig(stripeapi.APIBackend, backendCfg),
		Connect: stripeapi.GetBackendWithConfig(stripeapi.ConnectBackend, backendCfg),
		Uploads: stripeapi.GetBackendWithConfig(stripeapi.UploadsBackend, backendCfg),
	})
	return &gateway{api: api}, nil
}

func (g *gateway) CreatePaymentIntent(ctx context.Context, params domain.CreateIntentParams) (*domain.PaymentIntent, error) {
	p := &stripeapi.PaymentIntentParams{
		Amount:   stripeapi.Int64(params.AmountMinorUnits),
		Currency: stripeapi.String(params.Currency),
		AutomaticPaymentMethods: &stripeapi.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripeapi.Bool(true),
		},
	}
	p.Context = ctx
	for k, v := range params.Metadata {
		p.AddMetadata(k, v)
	}
	pi, err := g.api.PaymentIntents.New(p)
	if err != nil {
		return nil, fmt.Errorf("create stripe payment intent: %w", err)
	}
	return toDomainIntent(pi), nil
}

func (g *gateway) RetrievePaymentIntent(ctx context.Context, intentID string) (*domain.PaymentIntent, error) {
	p := &stripeapi.PaymentIntentParams{}
	p.Context = ctx
	pi, err := g.api.PaymentIntents.Get(intentID, p)
	if err != nil {
		return nil, fmt.Errorf("retrieve stripe payment intent: %w", err)
	}
	return toDomainIntent(pi), nil
}

func toDomainIntent(pi *stripeapi.PaymentIntent) *domain.PaymentIntent {
	return &domain.PaymentIntent{
		ID:                 pi.ID,
		ClientSecret:       pi.ClientSecret,
		Status:             string(pi.Status),
		Amount:             pi.Amount,
		AmountReceived:     pi.AmountReceived,
		Currency:           string(pi.Currency),
		PaymentMethodTypes: pi.PaymentMethodTypes,
		Metadata:           pi.Metadata,
	}
}

// IsClientError reports whether err is a Stripe 4xx response, i.e. the gateway answered and
// rejected the request. Such errors say nothing about gateway health.
func IsClientError(err error) bool {
	var stripeErr *stripeapi.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.HTTPStatusCode >= 400 && stripeErr.HTTPStatusCode < 500
	}
	return false
}

type webhookVerifier struct {
	secret string
}

// NewWebhookVerifier returns a WebhookVerifier checking the Stripe-Signature header against
// the endpoint secret.
func NewWebhookVerifier(secret string) (domain.WebhookVerifier, error) {
	if secret == "" {
		return nil, errors.New("stripe webhook secret is required")
	}
	return &webhookVerifier{secret: secret}, nil
}

func (v *webhookVerifier) Verify(payload []byte, signature string) (*domain.WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("verify stripe webhook: %w", err)
	}
	out := &domain.WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data != nil && len(event.Data.Raw) > 0 && isPaymentIntentEvent(string(event.Type)) {
		var pi stripeapi.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decode payment intent: %w", err)
		}
		out.Intent = toDomainIntent(&pi)
	}
	return out, nil
}

func isPaymentIntentEvent(eventType string) bool {
	return strings.HasPrefix(eventType, "payment_intent.")
}

// slogLeveledLogger routes stripe-go logging through slog.
type slogLeveledLogger struct {
	logger *slog.Logger
}

func (l *slogLeveledLogger) Debugf(format string, v ...any) {
	l.logger.Debug(fmt.Sprintf(format, v...), "component", "stripe")
}

func (l *slogLeveledLogger) Infof(format string, v ...any) {
	l.logger.Debug(fmt.Sprintf(format, v...), "component", "stripe")
}

func (l *slogLeveledLogger) Warnf(format string, v ...any) {
	l.logger.Warn(fmt.Sprintf(format, v...), "component", "stripe")
}

func (l *slogLeveledLogger) Errorf(format string, v ...any) {
	l.logger.Error(fmt.Sprintf(format, v...), "component", "stripe")
}
