package helpers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"therapyhub/internal/domain"
)

// Error codes for API error responses. Use these with WriteJSONError.
const (
	ErrCodeBadRequest          = "bad_request"
	ErrCodeUnauthorized        = "unauthorized"
	ErrCodeForbidden           = "forbidden"
	ErrCodeNotFound            = "not_found"
	ErrCodeRegistrationClosed  = "registration_closed"
	ErrCodeWorkshopFull        = "workshop_full"
	ErrCodePaymentRequired     = "payment_required"
	ErrCodePaymentNotCompleted = "payment_not_completed"
	ErrCodeGatewayUnavailable  = "gateway_unavailable"
	ErrCodeInternalError       = "internal_error"
)

// APIError is the error object in the standardized API response envelope.
// swagger:model APIError
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIResponse is the standardized envelope for all API responses.
// On success: Data is set, Error is nil. On error: Data is nil, Error is set.
// swagger:model APIResponse
type APIResponse struct {
	Data  any       `json:"data"`
	Error *APIError `json:"error"`
}

// WriteJSONSuccess sets Content-Type to application/json, writes statusCode, and
// encodes an APIResponse with the given data and error set to nil.
func WriteJSONSuccess(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(APIResponse{Data: data, Error: nil})
}

// WriteJSONError sets Content-Type to application/json, writes statusCode, and
// encodes an APIResponse with data nil and the given error code and message.
func WriteJSONError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(APIResponse{
		Data:  nil,
		Error: &APIError{Code: code, Message: message},
	})
}

var errorStatuses = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrInvalidInput, http.StatusBadRequest, ErrCodeBadRequest},
	{domain.ErrNotFound, http.StatusNotFound, ErrCodeNotFound},
	{domain.ErrForbidden, http.StatusForbidden, ErrCodeForbidden},
	{domain.ErrRegistrationClosed, http.StatusConflict, ErrCodeRegistrationClosed},
	{domain.ErrWorkshopFull, http.StatusConflict, ErrCodeWorkshopFull},
	{domain.ErrPaymentRequired, http.StatusPaymentRequired, ErrCodePaymentRequired},
	{domain.ErrPaymentNotCompleted, http.StatusPaymentRequired, ErrCodePaymentNotCompleted},
	{domain.ErrGatewayUnavailable, http.StatusServiceUnavailable, ErrCodeGatewayUnavailable},
}

// StatusForError returns the HTTP status and error code for a service error.
// Unrecognized errors map to 500 internal_error.
func StatusForError(err error) (int, string) {
	for _, m := range errorStatuses {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, ErrCodeInternalError
}

// WriteServiceError writes the envelope for err. Client errors carry the error text;
// server errors are logged and answered with a generic message.
func WriteServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, code := StatusForError(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		message := "internal server error"
		if code == ErrCodeGatewayUnavailable {
			message = domain.ErrGatewayUnavailable.Error()
		}
		WriteJSONError(w, status, code, message)
		return
	}
	WriteJSONError(w, status, code, err.Error())
}
