package domain

import (
	"context"
	"net/mail"
	"strings"
	"time"
)

// RegistrationStatus is the timeline status of a registration.
type RegistrationStatus string

const (
	RegistrationStatusUpcoming  RegistrationStatus = "upcoming"
	RegistrationStatusCompleted RegistrationStatus = "completed"
	RegistrationStatusCancelled RegistrationStatus = "cancelled"
	RegistrationStatusWaitlist  RegistrationStatus = "waitlist"
)

// Valid reports whether s is a known timeline status.
func (s RegistrationStatus) Valid() bool {
	switch s {
	case RegistrationStatusUpcoming, RegistrationStatusCompleted,
		RegistrationStatusCancelled, RegistrationStatusWaitlist:
		return true
	}
	return false
}

// DecisionStatus is the administrator's decision on a registration.
type DecisionStatus string

const (
	DecisionPending  DecisionStatus = "pending"
	DecisionApproved DecisionStatus = "approved"
	DecisionDeclined DecisionStatus = "declined"
)

// Valid reports whether d is a known decision.
func (d DecisionStatus) Valid() bool {
	return d == DecisionPending || d == DecisionApproved || d == DecisionDeclined
}

// Payment statuses recorded on a registration.
const (
	PaymentStatusSucceeded  = "succeeded"
	PaymentStatusProcessing = "processing"
	PaymentStatusFailed     = "failed"
)

// Participant is the person attending the workshop.
type Participant struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Notes string `json:"notes"`
}

// Normalize trims every field.
func (p *Participant) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Email = strings.TrimSpace(p.Email)
	p.Phone = strings.TrimSpace(p.Phone)
	p.Notes = strings.TrimSpace(p.Notes)
}

// Validate returns an error wrapping ErrInvalidInput naming the first missing field.
func (p *Participant) Validate() error {
	if p.Name == "" {
		return invalid("name is required")
	}
	if p.Email == "" {
		return invalid("email is required")
	}
	if p.Phone == "" {
		return invalid("phone is required")
	}
	if _, err := mail.ParseAddress(p.Email); err != nil {
		return invalid("email is not a valid address")
	}
	return nil
}

// WorkshopSnapshot is a copy of workshop display fields taken when the registration was
// created, so history survives later edits or deletion of the workshop.
type WorkshopSnapshot struct {
	Title           string     `json:"title"`
	Date            *time.Time `json:"date"`
	StartTime       string     `json:"start_time"`
	DurationMinutes int        `json:"duration_minutes"`
	CoverImage      string     `json:"cover_image"`
}

// SnapshotOf copies the display fields of w.
func SnapshotOf(w *Workshop) WorkshopSnapshot {
	return WorkshopSnapshot{
		Title:           w.Title,
		Date:            w.Date,
		StartTime:       w.StartTime,
		DurationMinutes: w.DurationMinutes,
		CoverImage:      w.CoverImage,
	}
}

// PaymentSnapshot is the registration's copy of the gateway's payment state.
type PaymentSnapshot struct {
	IntentID string `json:"payment_intent_id,omitempty"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Method   string `json:"method"`
}

// Registration is a participant's seat (or waitlist place) in a workshop.
// swagger:model Registration
type Registration struct {
	ID             string             `json:"id"`
	WorkshopID     string             `json:"workshop_id"`
	UserID         *string            `json:"user_id"`
	Participant    Participant        `json:"participant"`
	Workshop       WorkshopSnapshot   `json:"workshop"`
	Status         RegistrationStatus `json:"status"`
	Waitlisted     bool               `json:"waitlisted"`
	DecisionStatus DecisionStatus     `json:"decision_status"`
	DecisionNote   string             `json:"decision_note"`
	DecidedAt      *time.Time         `json:"decided_at"`
	Payment        PaymentSnapshot    `json:"payment"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// NewRegistration builds a pending registration for w. ID is set by the repository on create.
func NewRegistration(w *Workshop, p Participant, userID *string, waitlisted bool, payment PaymentSnapshot, now time.Time) *Registration {
	status := RegistrationStatusUpcoming
	if waitlisted {
		status = RegistrationStatusWaitlist
	}
	return &Registration{
		WorkshopID:     w.ID,
		UserID:         userID,
		Participant:    p,
		Workshop:       SnapshotOf(w),
		Status:         status,
		Waitlisted:     waitlisted,
		DecisionStatus: DecisionPending,
		Payment:        payment,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// RegistrationView is a registration with its timeline status derived at read time.
// swagger:model RegistrationView
type RegistrationView struct {
	*Registration
	EffectiveStatus RegistrationStatus `json:"effective_status"`
}

// RegisterOptions carries the optional inputs of a registration request.
type RegisterOptions struct {
	PaymentIntentID string
	JoinWaitlist    bool
	// UserID is the signed-in caller, if any.
	UserID string
}

// RegistrationResult is the outcome of a registration request.
type RegistrationResult struct {
	Registration *Registration `json:"registration"`
	Duplicate    bool          `json:"duplicate"`
	Waitlisted   bool          `json:"waitlisted"`
}

// RegistrationFilter narrows the admin registration listing.
type RegistrationFilter struct {
	WorkshopID string
	// Status is the effective timeline status. Repositories ignore it; the service derives it.
	Status RegistrationStatus
	// StoredStatuses restricts the stored status column.
	StoredStatuses []RegistrationStatus
	DecisionStatus DecisionStatus
	// Query matches participant name or email, case-insensitively.
	Query string
}

// StoredStatusesFor returns the stored statuses a registration can hold while its effective
// status is s. Upcoming and completed both live in the upcoming column value; a cancelled
// workshop turns an upcoming registration cancelled.
func StoredStatusesFor(s RegistrationStatus) []RegistrationStatus {
	switch s {
	case RegistrationStatusUpcoming, RegistrationStatusCompleted:
		return []RegistrationStatus{RegistrationStatusUpcoming}
	case RegistrationStatusCancelled:
		return []RegistrationStatus{RegistrationStatusUpcoming, RegistrationStatusCancelled}
	case RegistrationStatusWaitlist:
		return []RegistrationStatus{RegistrationStatusWaitlist}
	}
	return nil
}

// RegistrationRepository defines storage operations for registrations.
type RegistrationRepository interface {
	// Create inserts reg. It returns ErrDuplicatePayment when the payment intent id is taken.
	Create(ctx context.Context, reg *Registration) error
	GetByID(ctx context.Context, id string) (*Registration, error)
	GetByPaymentIntentID(ctx context.Context, intentID string) (*Registration, error)
	ListByUserID(ctx context.Context, userID string) ([]*Registration, error)
	List(ctx context.Context, filter RegistrationFilter, page PaginationParams) ([]*Registration, int, error)
	// ListAll returns every registration matching filter, newest first.
	ListAll(ctx context.Context, filter RegistrationFilter) ([]*Registration, error)
	// SetDecision updates decision fields on the given ids and returns the number updated.
	SetDecision(ctx context.Context, ids []string, decision DecisionStatus, note string, decidedAt time.Time) (int, error)
	SetStatus(ctx context.Context, id string, status RegistrationStatus) error
	// UpdatePaymentByIntentID overwrites the payment snapshot of the registration holding the
	// intent. It returns ErrNotFound when no registration holds it.
	UpdatePaymentByIntentID(ctx context.Context, payment PaymentSnapshot) error
}

// RegistrationService defines the registration coordinator and registration administration.
type RegistrationService interface {
	RegisterForWorkshop(ctx context.Context, workshopID string, p Participant, opts RegisterOptions) (*RegistrationResult, error)
	ListMyRegistrations(ctx context.Context, userID string) ([]*RegistrationView, error)
	ListRegistrations(ctx context.Context, filter RegistrationFilter, page PaginationParams) ([]*RegistrationView, int, error)
	SetDecision(ctx context.Context, id string, decision DecisionStatus, note string) (*Registration, error)
	SetDecisions(ctx context.Context, ids []string, decision DecisionStatus, note string) (int, error)
	CancelRegistration(ctx context.Context, id string) (*Registration, error)
}
