package controllers

import (
	"log/slog"
	"net/http"

	"therapyhub/internal/delivery/http/helpers"
	"therapyhub/internal/delivery/http/middleware"
	"therapyhub/internal/domain"
)

// RegisterRequest is the request body for POST /workshops/{workshopID}/registrations.
// Participant fields are checked by the registration service after the workshop is
// known to be open, so only size limits are enforced here.
type RegisterRequest struct {
	Name            string `json:"name" validate:"max=200"`
	Email           string `json:"email" validate:"max=254"`
	Phone           string `json:"phone" validate:"max=40"`
	Notes           string `json:"notes" validate:"max=2000"`
	PaymentIntentID string `json:"payment_intent_id" validate:"max=255"`
	JoinWaitlist    bool   `json:"join_waitlist"`
}

// DecisionRequest is the request body for PATCH /admin/registrations/{registrationID}/decision.
type DecisionRequest struct {
	DecisionStatus string `json:"decision_status" validate:"required,oneof=pending approved declined"`
	DecisionNote   string `json:"decision_note" validate:"max=2000"`
}

// BatchDecisionRequest is the request body for POST /admin/registrations/decisions.
type BatchDecisionRequest struct {
	IDs            []string `json:"ids" validate:"required,min=1,max=500,dive,uuid"`
	DecisionStatus string   `json:"decision_status" validate:"required,oneof=pending approved declined"`
	DecisionNote   string   `json:"decision_note" validate:"max=2000"`
}

// BatchDecisionResponse reports how many registrations were updated.
type BatchDecisionResponse struct {
	Updated int `json:"updated"`
}

// RegistrationListResponse is the paginated admin registration listing.
type RegistrationListResponse struct {
	Registrations []*domain.RegistrationView `json:"registrations"`
	Pagination    helpers.PaginationMeta     `json:"pagination"`
}

// RegisterSuccessResponse is the success envelope for POST /workshops/{workshopID}/registrations.
type RegisterSuccessResponse struct {
	Data  *domain.RegistrationResult `json:"data"`
	Error *helpers.APIError          `json:"error"`
}

// RegistrationSuccessResponse is the success envelope for single-registration responses.
type RegistrationSuccessResponse struct {
	Data  *domain.Registration `json:"data"`
	Error *helpers.APIError    `json:"error"`
}

// MyRegistrationsSuccessResponse is the success envelope for GET /me/registrations.
type MyRegistrationsSuccessResponse struct {
	Data  []*domain.RegistrationView `json:"data"`
	Error *helpers.APIError          `json:"error"`
}

// RegistrationListSuccessResponse is the success envelope for GET /admin/registrations.
type RegistrationListSuccessResponse struct {
	Data  RegistrationListResponse `json:"data"`
	Error *helpers.APIError        `json:"error"`
}

// BatchDecisionSuccessResponse is the success envelope for POST /admin/registrations/decisions.
type BatchDecisionSuccessResponse struct {
	Data  BatchDecisionResponse `json:"data"`
	Error *helpers.APIError     `json:"error"`
}

// RegistrationController handles participant registration and registration administration.
type RegistrationController struct {
	Logger  *slog.Logger
	Service domain.RegistrationService
}

// NewRegistrationController creates a RegistrationController with the given logger and service.
func NewRegistrationController(logger *slog.Logger, svc domain.RegistrationService) *RegistrationController {
	return &RegistrationController{
		Logger:  logger,
		Service: svc,
	}
}

// Register godoc
// @Summary Register for a workshop
// @Description Registers a participant. Paid workshops require a succeeded payment_intent_id; repeating a request with the same intent returns the existing registration with duplicate=true and status 200. When the workshop is full, join_waitlist=true places the participant on the waitlist instead of failing. A Bearer token is optional and links the registration to the caller.
// @Tags registrations
// @Accept json
// @Produce json
// @Param workshopID path string true "Workshop ID (UUID)"
// @Param body body RegisterRequest true "Participant and payment"
// @Success 201 {object} controllers.RegisterSuccessResponse "new registration"
// @Success 200 {object} controllers.RegisterSuccessResponse "duplicate request"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 402 {object} helpers.APIResponse "error.code: payment_required | payment_not_completed"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: registration_closed | workshop_full"
// @Failure 503 {object} helpers.APIResponse "error.code: gateway_unavailable"
// @Router /workshops/{workshopID}/registrations [post]
func (c *RegistrationController) Register(w http.ResponseWriter, r *http.Request) {
	workshopID, ok := helpers.PathUUID(w, r, "workshopID")
	if !ok {
		return
	}
	var req RegisterRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	opts := domain.RegisterOptions{
		PaymentIntentID: req.PaymentIntentID,
		JoinWaitlist:    req.JoinWaitlist,
	}
	if userID, ok := middleware.UserIDFromContext(r.Context()); ok {
		opts.UserID = userID
	}
	participant := domain.Participant{Name: req.Name, Email: req.Email, Phone: req.Phone, Notes: req.Notes}
	result, err := c.Service.RegisterForWorkshop(r.Context(), workshopID, participant, opts)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	helpers.WriteJSONSuccess(w, status, result)
}

// ListMine godoc
// @Summary List my registrations
// @Description Returns the caller's registrations, newest first, with their effective status.
// @Tags registrations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} controllers.MyRegistrationsSuccessResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Router /me/registrations [get]
func (c *RegistrationController) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	views, err := c.Service.ListMyRegistrations(r.Context(), userID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, views)
}

// List godoc
// @Summary List registrations (admin)
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param workshop_id query string false "Filter by workshop ID"
// @Param status query string false "Filter by status" Enums(upcoming, completed, cancelled, waitlist)
// @Param decision_status query string false "Filter by decision" Enums(pending, approved, declined)
// @Param q query string false "Search participant name or email"
// @Param page query int false "Page number (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} controllers.RegistrationListSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Router /admin/registrations [get]
func (c *RegistrationController) List(w http.ResponseWriter, r *http.Request) {
	workshopID, ok := helpers.QueryUUID(w, r, "workshop_id")
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := domain.RegistrationFilter{
		WorkshopID:     workshopID,
		Status:         domain.RegistrationStatus(q.Get("status")),
		DecisionStatus: domain.DecisionStatus(q.Get("decision_status")),
		Query:          q.Get("q"),
	}
	page := helpers.ParsePagination(r)
	views, total, err := c.Service.ListRegistrations(r.Context(), filter, page)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, RegistrationListResponse{
		Registrations: views,
		Pagination:    helpers.NewPaginationMeta(page, total),
	})
}

// Decide godoc
// @Summary Set a registration decision
// @Description Approves, declines or resets a registration. Seats are not released on decline.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param registrationID path string true "Registration ID (UUID)"
// @Param body body DecisionRequest true "Decision"
// @Success 200 {object} controllers.RegistrationSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /admin/registrations/{registrationID}/decision [patch]
func (c *RegistrationController) Decide(w http.ResponseWriter, r *http.Request) {
	id, ok := helpers.PathUUID(w, r, "registrationID")
	if !ok {
		return
	}
	var req DecisionRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	reg, err := c.Service.SetDecision(r.Context(), id, domain.DecisionStatus(req.DecisionStatus), req.DecisionNote)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, reg)
}

// DecideBatch godoc
// @Summary Set decisions in bulk
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body BatchDecisionRequest true "Registration IDs and decision"
// @Success 200 {object} controllers.BatchDecisionSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Router /admin/registrations/decisions [post]
func (c *RegistrationController) DecideBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchDecisionRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	n, err := c.Service.SetDecisions(r.Context(), req.IDs, domain.DecisionStatus(req.DecisionStatus), req.DecisionNote)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, BatchDecisionResponse{Updated: n})
}

// Cancel godoc
// @Summary Cancel a registration
// @Description Marks the registration cancelled. The seat stays counted.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param registrationID path string true "Registration ID (UUID)"
// @Success 200 {object} controllers.RegistrationSuccessResponse
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /admin/registrations/{registrationID}/cancel [post]
func (c *RegistrationController) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := helpers.PathUUID(w, r, "registrationID")
	if !ok {
		return
	}
	reg, err := c.Service.CancelRegistration(r.Context(), id)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, reg)
}
