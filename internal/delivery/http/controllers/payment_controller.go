package controllers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"therapyhub/internal/delivery/http/helpers"
	"therapyhub/internal/domain"
)

// maxWebhookBytes caps webhook payloads; Stripe events are well below this.
const maxWebhookBytes = 64 << 10

// CreatePaymentIntentRequest is the request body for POST /workshops/{workshopID}/payment-intents.
type CreatePaymentIntentRequest struct {
	Email string `json:"email" validate:"omitempty,email"`
}

// PaymentIntentSuccessResponse is the success envelope for POST /workshops/{workshopID}/payment-intents.
type PaymentIntentSuccessResponse struct {
	Data  *domain.PaymentIntentCheckout `json:"data"`
	Error *helpers.APIError             `json:"error"`
}

// WebhookAck acknowledges a processed webhook delivery.
type WebhookAck struct {
	Received bool `json:"received"`
}

// PaymentController handles payment intent creation and gateway webhooks.
type PaymentController struct {
	Logger  *slog.Logger
	Service domain.PaymentService
}

// NewPaymentController creates a PaymentController with the given logger and service.
func NewPaymentController(logger *slog.Logger, svc domain.PaymentService) *PaymentController {
	return &PaymentController{
		Logger:  logger,
		Service: svc,
	}
}

// CreateIntent godoc
// @Summary Start a workshop payment
// @Description Creates a payment intent for the workshop price. The client confirms it with client_secret and then registers with payment_intent_id.
// @Tags payments
// @Accept json
// @Produce json
// @Param workshopID path string true "Workshop ID (UUID)"
// @Param body body CreatePaymentIntentRequest false "Optional receipt email"
// @Success 201 {object} controllers.PaymentIntentSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: registration_closed"
// @Failure 503 {object} helpers.APIResponse "error.code: gateway_unavailable"
// @Router /workshops/{workshopID}/payment-intents [post]
func (c *PaymentController) CreateIntent(w http.ResponseWriter, r *http.Request) {
	workshopID, ok := helpers.PathUUID(w, r, "workshopID")
	if !ok {
		return
	}
	var req CreatePaymentIntentRequest
	if r.ContentLength != 0 && !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	checkout, err := c.Service.CreatePaymentIntent(r.Context(), workshopID, req.Email)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, checkout)
}

// Webhook godoc
// @Summary Payment gateway webhook
// @Description Receives signed Stripe events and updates the payment snapshot of the matching registration. Requires the Stripe-Signature header.
// @Tags payments
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Stripe signature"
// @Success 200 {object} helpers.APIResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 503 {object} helpers.APIResponse "error.code: gateway_unavailable"
// @Router /payments/webhook [post]
func (c *PaymentController) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			helpers.WriteJSONError(w, http.StatusRequestEntityTooLarge, helpers.ErrCodeBadRequest, "payload too large")
			return
		}
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "could not read body")
		return
	}
	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "missing Stripe-Signature header")
		return
	}
	if err := c.Service.HandleWebhook(r.Context(), payload, signature); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			c.Logger.WarnContext(r.Context(), "rejected webhook", "err", err)
			helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "invalid webhook signature or payload")
			return
		}
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, WebhookAck{Received: true})
}
