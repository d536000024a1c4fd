package controllers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"therapyhub/internal/delivery/http/helpers"
	"therapyhub/internal/domain"
)

// dateLayout is the wire format of workshop dates.
const dateLayout = "2006-01-02"

// CreateWorkshopRequest is the request body for POST /admin/workshops.
type CreateWorkshopRequest struct {
	Title           string  `json:"title" validate:"required,max=200"`
	Description     string  `json:"description" validate:"max=5000"`
	Facilitator     string  `json:"facilitator" validate:"max=200"`
	Location        string  `json:"location" validate:"max=300"`
	CoverImage      string  `json:"cover_image" validate:"omitempty,url"`
	Date            string  `json:"date" validate:"omitempty,datetime=2006-01-02"`
	StartTime       string  `json:"start_time" validate:"max=16"`
	DurationMinutes int     `json:"duration_minutes" validate:"gte=0"`
	Capacity        int     `json:"capacity" validate:"gte=0"`
	PriceType       string  `json:"price_type" validate:"omitempty,oneof=free paid"`
	Price           float64 `json:"price" validate:"gte=0"`
	Status          string  `json:"status" validate:"omitempty,oneof=draft ready upcoming"`
}

func (req CreateWorkshopRequest) toWorkshop() *domain.Workshop {
	return &domain.Workshop{
		Title:           req.Title,
		Description:     req.Description,
		Facilitator:     req.Facilitator,
		Location:        req.Location,
		CoverImage:      req.CoverImage,
		Date:            parseDate(req.Date),
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
		Capacity:        req.Capacity,
		PriceType:       domain.PriceType(req.PriceType),
		Price:           req.Price,
		Status:          domain.WorkshopStatus(req.Status),
	}
}

// UpdateWorkshopRequest is the request body for PATCH /admin/workshops/{workshopID}.
// Every field is optional; omitted fields are left unchanged.
type UpdateWorkshopRequest struct {
	Title           *string  `json:"title" validate:"omitempty,min=1,max=200"`
	Description     *string  `json:"description" validate:"omitempty,max=5000"`
	Facilitator     *string  `json:"facilitator" validate:"omitempty,max=200"`
	Location        *string  `json:"location" validate:"omitempty,max=300"`
	CoverImage      *string  `json:"cover_image" validate:"omitempty,url"`
	Date            *string  `json:"date" validate:"omitempty,datetime=2006-01-02"`
	StartTime       *string  `json:"start_time" validate:"omitempty,max=16"`
	DurationMinutes *int     `json:"duration_minutes" validate:"omitempty,gte=0"`
	Capacity        *int     `json:"capacity" validate:"omitempty,gte=0"`
	PriceType       *string  `json:"price_type" validate:"omitempty,oneof=free paid"`
	Price           *float64 `json:"price" validate:"omitempty,gte=0"`
	Status          *string  `json:"status" validate:"omitempty,oneof=draft ready upcoming completed cancelled"`
}

func (req UpdateWorkshopRequest) toPatch() domain.WorkshopPatch {
	patch := domain.WorkshopPatch{
		Title:           req.Title,
		Description:     req.Description,
		Facilitator:     req.Facilitator,
		Location:        req.Location,
		CoverImage:      req.CoverImage,
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
		Capacity:        req.Capacity,
		Price:           req.Price,
	}
	if req.Date != nil {
		patch.Date = parseDate(*req.Date)
	}
	if req.PriceType != nil {
		pt := domain.PriceType(*req.PriceType)
		patch.PriceType = &pt
	}
	if req.Status != nil {
		st := domain.WorkshopStatus(*req.Status)
		patch.Status = &st
	}
	return patch
}

// parseDate parses a validated YYYY-MM-DD date. An empty string yields nil.
func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil
	}
	return &d
}

// WorkshopSuccessResponse is the success envelope for single-workshop responses.
type WorkshopSuccessResponse struct {
	Data  *domain.WorkshopView `json:"data"`
	Error *helpers.APIError    `json:"error"`
}

// WorkshopListSuccessResponse is the success envelope for workshop listings.
type WorkshopListSuccessResponse struct {
	Data  []*domain.WorkshopView `json:"data"`
	Error *helpers.APIError      `json:"error"`
}

// WorkshopController handles public and administrative workshop endpoints.
type WorkshopController struct {
	Logger  *slog.Logger
	Service domain.WorkshopService
}

// NewWorkshopController creates a WorkshopController with the given logger and service.
func NewWorkshopController(logger *slog.Logger, svc domain.WorkshopService) *WorkshopController {
	return &WorkshopController{
		Logger:  logger,
		Service: svc,
	}
}

// ListPublic godoc
// @Summary List workshops
// @Description Lists workshops visible on the public site (ready and upcoming), ordered by date. Workshops that have already ended are omitted unless include_past is true.
// @Tags workshops
// @Produce json
// @Param include_past query bool false "Include workshops that have ended"
// @Success 200 {object} controllers.WorkshopListSuccessResponse
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /workshops [get]
func (c *WorkshopController) ListPublic(w http.ResponseWriter, r *http.Request) {
	includePast, _ := strconv.ParseBool(r.URL.Query().Get("include_past"))
	views, err := c.Service.ListWorkshops(r.Context(), domain.WorkshopListFilter{Public: true, IncludePast: includePast})
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, views)
}

// GetPublic godoc
// @Summary Get a workshop
// @Description Returns a published workshop with its effective status and remaining seats. Drafts are not found.
// @Tags workshops
// @Produce json
// @Param workshopID path string true "Workshop ID (UUID)"
// @Success 200 {object} controllers.WorkshopSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /workshops/{workshopID} [get]
func (c *WorkshopController) GetPublic(w http.ResponseWriter, r *http.Request) {
	c.get(w, r, true)
}

// GetAdmin godoc
// @Summary Get a workshop (admin)
// @Description Returns any workshop, drafts included.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param workshopID path string true "Workshop ID (UUID)"
// @Success 200 {object} controllers.WorkshopSuccessResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /admin/workshops/{workshopID} [get]
func (c *WorkshopController) GetAdmin(w http.ResponseWriter, r *http.Request) {
	c.get(w, r, false)
}

func (c *WorkshopController) get(w http.ResponseWriter, r *http.Request, public bool) {
	id, ok := helpers.PathUUID(w, r, "workshopID")
	if !ok {
		return
	}
	view, err := c.Service.GetWorkshop(r.Context(), id, public)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, view)
}

// ListAdmin godoc
// @Summary List all workshops (admin)
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by stored status" Enums(draft, ready, upcoming, completed, cancelled)
// @Success 200 {object} controllers.WorkshopListSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Router /admin/workshops [get]
func (c *WorkshopController) ListAdmin(w http.ResponseWriter, r *http.Request) {
	filter := domain.WorkshopListFilter{Status: domain.WorkshopStatus(r.URL.Query().Get("status"))}
	views, err := c.Service.ListWorkshops(r.Context(), filter)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, views)
}

// Create godoc
// @Summary Create a workshop
// @Description Creates a workshop. Status defaults to draft; ready and upcoming require the full publishing field set.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CreateWorkshopRequest true "Workshop"
// @Success 201 {object} controllers.WorkshopSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Router /admin/workshops [post]
func (c *WorkshopController) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkshopRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	ws := req.toWorkshop()
	if err := c.Service.CreateWorkshop(r.Context(), ws); err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	view, err := c.Service.GetWorkshop(r.Context(), ws.ID, false)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, view)
}

// Update godoc
// @Summary Update a workshop
// @Description Applies a partial update. Capacity cannot drop below the enrolled count.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param workshopID path string true "Workshop ID (UUID)"
// @Param body body UpdateWorkshopRequest true "Fields to change"
// @Success 200 {object} controllers.WorkshopSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /admin/workshops/{workshopID} [patch]
func (c *WorkshopController) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := helpers.PathUUID(w, r, "workshopID")
	if !ok {
		return
	}
	var req UpdateWorkshopRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	ws, err := c.Service.UpdateWorkshop(r.Context(), id, req.toPatch())
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	c.writeView(w, r, ws)
}

// Publish godoc
// @Summary Publish a workshop
// @Description Moves a workshop to upcoming after checking the publishing field set.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param workshopID path string true "Workshop ID (UUID)"
// @Success 200 {object} controllers.WorkshopSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /admin/workshops/{workshopID}/publish [post]
func (c *WorkshopController) Publish(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, c.Service.PublishWorkshop)
}

// Cancel godoc
// @Summary Cancel a workshop
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param workshopID path string true "Workshop ID (UUID)"
// @Success 200 {object} controllers.WorkshopSuccessResponse
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /admin/workshops/{workshopID}/cancel [post]
func (c *WorkshopController) Cancel(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, c.Service.CancelWorkshop)
}

func (c *WorkshopController) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id string) (*domain.Workshop, error)) {
	id, ok := helpers.PathUUID(w, r, "workshopID")
	if !ok {
		return
	}
	ws, err := fn(r.Context(), id)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	c.writeView(w, r, ws)
}

func (c *WorkshopController) writeView(w http.ResponseWriter, r *http.Request, ws *domain.Workshop) {
	view, err := c.Service.GetWorkshop(r.Context(), ws.ID, false)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, view)
}

// Delete godoc
// @Summary Delete a workshop
// @Description Deletes the workshop. Existing registrations keep their workshop snapshot.
// @Tags admin
// @Security BearerAuth
// @Param workshopID path string true "Workshop ID (UUID)"
// @Success 204 "No Content"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /admin/workshops/{workshopID} [delete]
func (c *WorkshopController) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := helpers.PathUUID(w, r, "workshopID")
	if !ok {
		return
	}
	if err := c.Service.DeleteWorkshop(r.Context(), id); err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
