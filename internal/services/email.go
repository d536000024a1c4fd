package services

import (
	"context"
	"fmt"
	"log/slog"

	"therapyhub/internal/domain"
)

type emailService struct {
	mailer   domain.Mailer
	renderer domain.EmailTemplateRenderer
	logger   *slog.Logger
}

// NewEmailService returns an EmailService that uses the given Mailer and template renderer.
func NewEmailService(mailer domain.Mailer, renderer domain.EmailTemplateRenderer, logger *slog.Logger) domain.EmailService {
	return &emailService{mailer: mailer, renderer: renderer, logger: logger}
}

// SendRegistrationReceived confirms a new registration (or waitlist place) using the
// "registration_received" template.
func (s *emailService) SendRegistrationReceived(ctx context.Context, data *domain.RegistrationEmailData) error {
	return s.send(ctx, "registration_received", data)
}

// SendRegistrationDecision tells the participant about an admin decision using the
// "registration_decision" template.
func (s *emailService) SendRegistrationDecision(ctx context.Context, data *domain.RegistrationEmailData) error {
	return s.send(ctx, "registration_decision", data)
}

func (s *emailService) send(ctx context.Context, template string, data *domain.RegistrationEmailData) error {
	if data == nil {
		return fmt.Errorf("%s email data is nil", template)
	}
	if data.Email == "" {
		return fmt.Errorf("%s email has no recipient", template)
	}
	subject, htmlBody, textBody, err := s.renderer.Render(template, data)
	if err != nil {
		return fmt.Errorf("failed to render %s template: %w", template, err)
	}
	if err := s.mailer.Send(ctx, data.Email, subject, htmlBody, textBody); err != nil {
		return fmt.Errorf("failed to send %s email: %w", template, err)
	}
	s.logger.InfoContext(ctx, "email sent", "template", template, "to", data.Email)
	return nil
}
