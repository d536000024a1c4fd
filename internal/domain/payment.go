package domain

import "context"

// Payment intent statuses reported by the gateway.
const (
	IntentStatusSucceeded = "succeeded"
)

// MetadataWorkshopID is the intent metadata key carrying the workshop id.
const MetadataWorkshopID = "workshop_id"

// PaymentIntent is the gateway's view of a payment attempt. The gateway owns it; the
// service only keeps snapshots on registrations.
type PaymentIntent struct {
	ID                 string            `json:"id"`
	ClientSecret       string            `json:"-"`
	Status             string            `json:"status"`
	Amount             int64             `json:"amount"`
	AmountReceived     int64             `json:"amount_received"`
	Currency           string            `json:"currency"`
	PaymentMethodTypes []string          `json:"payment_method_types"`
	Metadata           map[string]string `json:"metadata"`
}

// Snapshot converts the intent into the registration payment snapshot.
func (pi *PaymentIntent) Snapshot() PaymentSnapshot {
	method := ""
	if len(pi.PaymentMethodTypes) > 0 {
		method = pi.PaymentMethodTypes[0]
	}
	return PaymentSnapshot{
		IntentID: pi.ID,
		Status:   pi.Status,
		Amount:   pi.AmountReceived,
		Currency: pi.Currency,
		Method:   method,
	}
}

// CreateIntentParams describes a payment intent to create.
type CreateIntentParams struct {
	AmountMinorUnits int64
	Currency         string
	Metadata         map[string]string
}

// PaymentGateway is the external payment provider.
type PaymentGateway interface {
	CreatePaymentIntent(ctx context.Context, params CreateIntentParams) (*PaymentIntent, error)
	RetrievePaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error)
}

// WebhookEvent is a verified asynchronous notification from the gateway.
type WebhookEvent struct {
	ID     string
	Type   string
	Intent *PaymentIntent
}

// WebhookVerifier authenticates and decodes raw webhook deliveries.
type WebhookVerifier interface {
	Verify(payload []byte, signature string) (*WebhookEvent, error)
}

// PaymentIntentCheckout is returned to the client to complete a payment.
// swagger:model PaymentIntentCheckout
type PaymentIntentCheckout struct {
	PaymentIntentID string `json:"payment_intent_id"`
	ClientSecret    string `json:"client_secret"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
}

// PaymentService covers intent creation and webhook reconciliation.
type PaymentService interface {
	CreatePaymentIntent(ctx context.Context, workshopID, email string) (*PaymentIntentCheckout, error)
	// HandleWebhook applies a verified event. Events for unknown intents are ignored.
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}
