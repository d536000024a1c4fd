package domain

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
)

// WorkshopStatus is the stored lifecycle status of a workshop.
type WorkshopStatus string

const (
	WorkshopStatusDraft     WorkshopStatus = "draft"
	WorkshopStatusReady     WorkshopStatus = "ready"
	WorkshopStatusUpcoming  WorkshopStatus = "upcoming"
	WorkshopStatusCompleted WorkshopStatus = "completed"
	WorkshopStatusCancelled WorkshopStatus = "cancelled"
)

// Valid reports whether s is one of the known workshop statuses.
func (s WorkshopStatus) Valid() bool {
	switch s {
	case WorkshopStatusDraft, WorkshopStatusReady, WorkshopStatusUpcoming,
		WorkshopStatusCompleted, WorkshopStatusCancelled:
		return true
	}
	return false
}

// PriceType tells whether a workshop is free or paid.
type PriceType string

const (
	PriceTypeFree PriceType = "free"
	PriceTypePaid PriceType = "paid"
)

const (
	DefaultDurationMinutes = 60
	MinDurationMinutes     = 15
)

// Workshop is a scheduled group session patients can register for.
// swagger:model Workshop
type Workshop struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	Facilitator     string         `json:"facilitator"`
	Location        string         `json:"location"`
	CoverImage      string         `json:"cover_image"`
	Date            *time.Time     `json:"date"`
	StartTime       string         `json:"start_time"`
	DurationMinutes int            `json:"duration_minutes"`
	Capacity        int            `json:"capacity"`
	Enrolled        int            `json:"enrolled"`
	PriceType       PriceType      `json:"price_type"`
	Price           float64        `json:"price"`
	Status          WorkshopStatus `json:"status"`
	PublishedAt     *time.Time     `json:"published_at"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// IsPaid reports whether registration requires a payment.
func (w *Workshop) IsPaid() bool {
	return w.PriceType == PriceTypePaid
}

// IsUncapped reports whether the workshop has no seat limit.
func (w *Workshop) IsUncapped() bool {
	return w.Capacity == 0
}

// PriceMinorUnits returns the price in the smallest currency unit (cents).
func (w *Workshop) PriceMinorUnits() int64 {
	if !w.IsPaid() {
		return 0
	}
	return int64(math.Round(w.Price * 100))
}

// SeatsRemaining returns the number of free seats, or nil when the workshop is uncapped.
func (w *Workshop) SeatsRemaining() *int {
	if w.IsUncapped() {
		return nil
	}
	n := w.Capacity - w.Enrolled
	if n < 0 {
		n = 0
	}
	return &n
}

// Normalize fills defaults and enforces price = 0 for free workshops.
func (w *Workshop) Normalize() {
	w.Title = strings.TrimSpace(w.Title)
	w.StartTime = strings.TrimSpace(w.StartTime)
	w.CoverImage = strings.TrimSpace(w.CoverImage)
	if w.Status == "" {
		w.Status = WorkshopStatusDraft
	}
	if w.PriceType == "" {
		w.PriceType = PriceTypeFree
	}
	if w.DurationMinutes == 0 {
		w.DurationMinutes = DefaultDurationMinutes
	}
	if w.PriceType == PriceTypeFree {
		w.Price = 0
	}
}

// requiresPublishedFields reports whether status demands the strict field set.
func requiresPublishedFields(s WorkshopStatus) bool {
	return s != WorkshopStatusDraft && s != WorkshopStatusCancelled
}

// Validate checks w against the rules for its status and returns an error wrapping
// ErrInvalidInput that names the first unmet requirement.
func (w *Workshop) Validate() error {
	return w.validateFor(w.Status)
}

// ValidatePublishable checks w against the strict rules used for published workshops.
func (w *Workshop) ValidatePublishable() error {
	return w.validateFor(WorkshopStatusUpcoming)
}

func (w *Workshop) validateFor(status WorkshopStatus) error {
	if w.Title == "" {
		return invalid("title is required")
	}
	if !status.Valid() {
		return invalid("status must be one of draft, ready, upcoming, completed, cancelled")
	}
	if w.PriceType != PriceTypeFree && w.PriceType != PriceTypePaid {
		return invalid("price_type must be free or paid")
	}
	if w.DurationMinutes < MinDurationMinutes {
		return invalid(fmt.Sprintf("duration_minutes must be at least %d", MinDurationMinutes))
	}
	if w.Capacity < 0 {
		return invalid("capacity must not be negative")
	}
	if w.Price < 0 {
		return invalid("price must not be negative")
	}
	if w.Capacity > 0 && w.Enrolled > w.Capacity {
		return invalid("capacity cannot be lower than the number of enrolled participants")
	}
	if !requiresPublishedFields(status) {
		return nil
	}
	if w.Date == nil {
		return invalid("date is required")
	}
	if w.StartTime == "" {
		return invalid("start_time is required")
	}
	if _, _, ok := ParseStartTime(w.StartTime); !ok {
		return invalid("start_time must be HH:MM or HH:MM am/pm")
	}
	if w.Capacity <= 0 {
		return invalid("capacity must be greater than 0")
	}
	if w.CoverImage == "" {
		return invalid("cover_image is required")
	}
	if w.IsPaid() && w.Price <= 0 {
		return invalid("price must be greater than 0 for paid workshops")
	}
	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}

// WorkshopPatch is a partial update; nil fields are left unchanged.
type WorkshopPatch struct {
	Title           *string
	Description     *string
	Facilitator     *string
	Location        *string
	CoverImage      *string
	Date            *time.Time
	StartTime       *string
	DurationMinutes *int
	Capacity        *int
	PriceType       *PriceType
	Price           *float64
	Status          *WorkshopStatus
}

// Apply merges the patch onto w. Enrolled is never touched.
func (p WorkshopPatch) Apply(w *Workshop) {
	if p.Title != nil {
		w.Title = *p.Title
	}
	if p.Description != nil {
		w.Description = *p.Description
	}
	if p.Facilitator != nil {
		w.Facilitator = *p.Facilitator
	}
	if p.Location != nil {
		w.Location = *p.Location
	}
	if p.CoverImage != nil {
		w.CoverImage = *p.CoverImage
	}
	if p.Date != nil {
		d := *p.Date
		w.Date = &d
	}
	if p.StartTime != nil {
		w.StartTime = *p.StartTime
	}
	if p.DurationMinutes != nil {
		w.DurationMinutes = *p.DurationMinutes
	}
	if p.Capacity != nil {
		w.Capacity = *p.Capacity
	}
	if p.PriceType != nil {
		w.PriceType = *p.PriceType
	}
	if p.Price != nil {
		w.Price = *p.Price
	}
	if p.Status != nil {
		w.Status = *p.Status
	}
}

// WorkshopView is a workshop together with values derived at read time.
// swagger:model WorkshopView
type WorkshopView struct {
	*Workshop
	EffectiveStatus WorkshopStatus `json:"effective_status"`
	SeatsRemaining  *int           `json:"seats_remaining"`
}

// WorkshopListFilter selects workshops for listing.
type WorkshopListFilter struct {
	// Public restricts the listing to publicly visible workshops.
	Public bool
	// Status filters admin listings by stored status; empty means all.
	Status WorkshopStatus
	// IncludePast keeps effectively completed workshops in public listings.
	IncludePast bool
}

// PublicWorkshopStatuses are the stored statuses visible on the public site.
var PublicWorkshopStatuses = []WorkshopStatus{WorkshopStatusReady, WorkshopStatusUpcoming}

// WorkshopRepository defines storage operations for workshops.
type WorkshopRepository interface {
	Create(ctx context.Context, w *Workshop) error
	GetByID(ctx context.Context, id string) (*Workshop, error)
	List(ctx context.Context, statuses []WorkshopStatus) ([]*Workshop, error)
	// Update writes every mutable column except enrolled. It fails with ErrInvalidInput when
	// the new capacity is below the stored enrolled count.
	Update(ctx context.Context, w *Workshop) error
	Delete(ctx context.Context, id string) error
	// ReserveSeat increments enrolled by one in a single conditional statement, only when a
	// seat is free or the workshop is uncapped. The same statement promotes a ready workshop
	// to upcoming and sets published_at when unset.
	ReserveSeat(ctx context.Context, id string, now time.Time) (bool, error)
	// ReleaseSeat decrements enrolled by one when it is above zero. When promotedAt is set and
	// the release leaves the workshop without seats or registrations, an upcoming workshop goes
	// back to ready and a published_at equal to promotedAt is cleared.
	ReleaseSeat(ctx context.Context, id string, promotedAt *time.Time) error
	// PromoteReady moves a ready workshop to upcoming without touching enrolled.
	PromoteReady(ctx context.Context, id string, now time.Time) error
}

// WorkshopCache caches the public workshop listing.
type WorkshopCache interface {
	GetPublic(ctx context.Context) ([]*Workshop, bool, error)
	SetPublic(ctx context.Context, workshops []*Workshop) error
	Invalidate(ctx context.Context) error
}

// WorkshopService defines workshop administration and listing.
type WorkshopService interface {
	CreateWorkshop(ctx context.Context, w *Workshop) error
	UpdateWorkshop(ctx context.Context, id string, patch WorkshopPatch) (*Workshop, error)
	PublishWorkshop(ctx context.Context, id string) (*Workshop, error)
	CancelWorkshop(ctx context.Context, id string) (*Workshop, error)
	DeleteWorkshop(ctx context.Context, id string) error
	// GetWorkshop returns a workshop view. Public callers never see drafts.
	GetWorkshop(ctx context.Context, id string, public bool) (*WorkshopView, error)
	ListWorkshops(ctx context.Context, filter WorkshopListFilter) ([]*WorkshopView, error)
}
