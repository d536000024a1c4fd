package domain

import "errors"

// Sentinel errors shared by repositories, services and controllers.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")

	// ErrRegistrationClosed is returned when the workshop is not open for registration.
	ErrRegistrationClosed = errors.New("registration is closed for this workshop")
	// ErrWorkshopFull is returned when no seat is left and the caller did not ask for the waitlist.
	ErrWorkshopFull = errors.New("workshop is full")
	// ErrPaymentRequired is returned for a paid workshop registration without a payment intent.
	ErrPaymentRequired = errors.New("payment is required for this workshop")
	// ErrPaymentNotCompleted is returned when the gateway does not confirm a sufficient, matching payment.
	ErrPaymentNotCompleted = errors.New("payment has not been completed")
	// ErrGatewayUnavailable is an operational error: the payment gateway is not configured or not reachable.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrDuplicatePayment is returned by the registration store when the payment intent id is already taken.
	ErrDuplicatePayment = errors.New("payment intent already used by another registration")
)
