package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"therapyhub/internal/domain"
)

const emailDateLayout = "Monday, January 2, 2006"

// Consumer delivers registration events to a handler until ctx is cancelled.
type Consumer interface {
	Consume(ctx context.Context, handler func(context.Context, *domain.RegistrationEvent) error) error
}

// Notifier turns registration events into participant emails.
type Notifier struct {
	consumer Consumer
	emails   domain.EmailService
	logger   *slog.Logger
	done     chan struct{}
	cancel   context.CancelFunc
	err      error
}

func NewNotifier(consumer Consumer, emails domain.EmailService, logger *slog.Logger) *Notifier {
	return &Notifier{
		consumer: consumer,
		emails:   emails,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start consumes events in the background until Stop is called or ctx ends.
func (n *Notifier) Start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	n.cancel = cancel
	n.logger.Info("notification worker started")

	go func() {
		defer close(n.done)
		if err := n.consumer.Consume(cctx, n.Handle); err != nil {
			n.logger.Error("notification consumer stopped", "error", err)
			n.err = err
			return
		}
		n.logger.Info("notification worker stopped")
	}()
}

// Done is closed once the consumer has returned.
func (n *Notifier) Done() <-chan struct{} {
	return n.done
}

// Stop cancels consumption and waits for it to finish. It returns the consumer's error, if any.
func (n *Notifier) Stop() error {
	if n.cancel != nil {
		n.cancel()
		<-n.done
	}
	return n.err
}

// Handle sends the email matching event. Events that need no email return nil.
func (n *Notifier) Handle(ctx context.Context, event *domain.RegistrationEvent) error {
	if event == nil {
		return errors.New("registration event is nil")
	}
	if event.Email == "" {
		n.logger.WarnContext(ctx, "registration event without email, skipping", "registration_id", event.RegistrationID)
		return nil
	}
	data := emailData(event)

	switch event.Type {
	case domain.EventRegistrationCreated:
		if err := n.emails.SendRegistrationReceived(ctx, data); err != nil {
			return fmt.Errorf("notify registration received: %w", err)
		}
	case domain.EventRegistrationDecided:
		if event.DecisionStatus == domain.DecisionPending {
			return nil
		}
		if err := n.emails.SendRegistrationDecision(ctx, data); err != nil {
			return fmt.Errorf("notify registration decision: %w", err)
		}
	default:
		n.logger.WarnContext(ctx, "ignoring unknown registration event", "type", event.Type)
		return nil
	}
	n.logger.InfoContext(ctx, "notification sent", "type", event.Type, "registration_id", event.RegistrationID)
	return nil
}

func emailData(event *domain.RegistrationEvent) *domain.RegistrationEmailData {
	data := &domain.RegistrationEmailData{
		Email:          event.Email,
		Name:           event.Name,
		WorkshopTitle:  event.WorkshopTitle,
		StartTime:      event.StartTime,
		Waitlisted:     event.Status == domain.RegistrationStatusWaitlist,
		DecisionStatus: event.DecisionStatus,
		DecisionNote:   event.DecisionNote,
	}
	if event.WorkshopDate != nil {
		data.WorkshopDate = event.WorkshopDate.Format(emailDateLayout)
	}
	return data
}
