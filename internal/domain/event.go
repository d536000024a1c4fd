package domain

import (
	"context"
	"time"
)

// Registration event types published to the message queue.
const (
	EventRegistrationCreated = "registration.created"
	EventRegistrationDecided = "registration.decided"
)

// RegistrationEvent is the message published when a registration is created or decided.
type RegistrationEvent struct {
	Type           string             `json:"type"`
	RegistrationID string             `json:"registration_id"`
	WorkshopID     string             `json:"workshop_id"`
	WorkshopTitle  string             `json:"workshop_title"`
	WorkshopDate   *time.Time         `json:"workshop_date,omitempty"`
	StartTime      string             `json:"start_time"`
	Name           string             `json:"name"`
	Email          string             `json:"email"`
	Status         RegistrationStatus `json:"status"`
	DecisionStatus DecisionStatus     `json:"decision_status"`
	DecisionNote   string             `json:"decision_note,omitempty"`
	OccurredAt     time.Time          `json:"occurred_at"`
}

// NewRegistrationEvent builds an event of the given type from reg.
func NewRegistrationEvent(eventType string, reg *Registration, at time.Time) *RegistrationEvent {
	return &RegistrationEvent{
		Type:           eventType,
		RegistrationID: reg.ID,
		WorkshopID:     reg.WorkshopID,
		WorkshopTitle:  reg.Workshop.Title,
		WorkshopDate:   reg.Workshop.Date,
		StartTime:      reg.Workshop.StartTime,
		Name:           reg.Participant.Name,
		Email:          reg.Participant.Email,
		Status:         reg.Status,
		DecisionStatus: reg.DecisionStatus,
		DecisionNote:   reg.DecisionNote,
		OccurredAt:     at,
	}
}

// EventPublisher publishes registration events for asynchronous consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event *RegistrationEvent) error
}
