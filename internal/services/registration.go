package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"therapyhub/internal/domain"
)

type registrationService struct {
	workshopRepo     domain.WorkshopRepository
	registrationRepo domain.RegistrationRepository
	gateway          domain.PaymentGateway
	publisher        domain.EventPublisher
	cache            domain.WorkshopCache
	clock            domain.Clock
	location         *time.Location
	logger           *slog.Logger
	contextTimeout   time.Duration
}

// NewRegistrationService returns the registration coordinator. gateway may be nil, in which
// case paid registrations fail with ErrGatewayUnavailable. publisher and cache may be nil.
func NewRegistrationService(workshopRepo domain.WorkshopRepository,
	registrationRepo domain.RegistrationRepository,
	gateway domain.PaymentGateway,
	publisher domain.EventPublisher,
	cache domain.WorkshopCache,
	clock domain.Clock,
	loc *time.Location,
	logger *slog.Logger,
	timeout time.Duration,
) domain.RegistrationService {
	if loc == nil {
		loc = time.UTC
	}
	return &registrationService{
		workshopRepo:     workshopRepo,
		registrationRepo: registrationRepo,
		gateway:          gateway,
		publisher:        publisher,
		cache:            cache,
		clock:            clock,
		location:         loc,
		logger:           logger,
		contextTimeout:   timeout,
	}
}

func (s *registrationService) now() time.Time {
	return s.clock.Now().In(s.location)
}

func (s *registrationService) RegisterForWorkshop(ctx context.Context, workshopID string, p domain.Participant, opts domain.RegisterOptions) (*domain.RegistrationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	w, err := s.workshopRepo.GetByID(ctx, workshopID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get workshop: %w", err)
	}

	now := s.now()
	if !domain.IsOpenForRegistration(w.EffectiveStatus(now)) {
		return nil, domain.ErrRegistrationClosed
	}

	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}

	intentID := strings.TrimSpace(opts.PaymentIntentID)
	if w.IsPaid() {
		if intentID == "" {
			return nil, domain.ErrPaymentRequired
		}
		// A retried request with the same intent gets the original registration back before
		// any seat is touched.
		existing, err := s.registrationRepo.GetByPaymentIntentID(ctx, intentID)
		if err == nil {
			return &domain.RegistrationResult{Registration: existing, Duplicate: true, Waitlisted: existing.Waitlisted}, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("lookup registration by payment intent: %w", err)
		}
	}

	reserved, err := s.workshopRepo.ReserveSeat(ctx, w.ID, now)
	if err != nil {
		return nil, fmt.Errorf("reserve seat: %w", err)
	}
	// A reservation on a ready workshop also published it; a failed request takes that back.
	var promotedAt *time.Time
	if reserved && w.Status == domain.WorkshopStatusReady {
		promotedAt = &now
	}
	waitlisted := false
	if !reserved {
		if !opts.JoinWaitlist {
			return nil, domain.ErrWorkshopFull
		}
		waitlisted = true
		if w.Status == domain.WorkshopStatusReady {
			if err := s.workshopRepo.PromoteReady(ctx, w.ID, now); err != nil {
				return nil, fmt.Errorf("promote workshop: %w", err)
			}
		}
	}

	payment := domain.PaymentSnapshot{Status: domain.PaymentStatusSucceeded}
	if w.IsPaid() {
		payment, err = s.verifyPayment(ctx, w, intentID)
		if err != nil {
			if reserved {
				s.releaseSeat(ctx, w.ID, promotedAt)
			}
			return nil, err
		}
	}

	var userID *string
	if opts.UserID != "" {
		uid := opts.UserID
		userID = &uid
	}
	reg := domain.NewRegistration(w, p, userID, waitlisted, payment, now)
	if err := s.registrationRepo.Create(ctx, reg); err != nil {
		if reserved {
			s.releaseSeat(ctx, w.ID, promotedAt)
		}
		if errors.Is(err, domain.ErrDuplicatePayment) {
			// A concurrent request with the same intent won the insert.
			existing, getErr := s.registrationRepo.GetByPaymentIntentID(ctx, intentID)
			if getErr != nil {
				return nil, fmt.Errorf("lookup registration by payment intent: %w", getErr)
			}
			return &domain.RegistrationResult{Registration: existing, Duplicate: true, Waitlisted: existing.Waitlisted}, nil
		}
		return nil, fmt.Errorf("create registration: %w", err)
	}

	s.invalidateCache(ctx)
	s.publish(ctx, domain.EventRegistrationCreated, reg, now)
	return &domain.RegistrationResult{Registration: reg, Waitlisted: waitlisted}, nil
}

// verifyPayment confirms with the gateway that the intent succeeded for at least the
// workshop price and, when tagged, for this workshop.
func (s *registrationService) verifyPayment(ctx context.Context, w *domain.Workshop, intentID string) (domain.PaymentSnapshot, error) {
	if s.gateway == nil {
		return domain.PaymentSnapshot{}, domain.ErrGatewayUnavailable
	}
	intent, err := s.gateway.RetrievePaymentIntent(ctx, intentID)
	if err != nil {
		if errors.Is(err, domain.ErrGatewayUnavailable) {
			return domain.PaymentSnapshot{}, err
		}
		s.logger.WarnContext(ctx, "payment intent lookup failed", "payment_intent_id", intentID, "err", err)
		return domain.PaymentSnapshot{}, fmt.Errorf("%w: %v", domain.ErrPaymentNotCompleted, err)
	}
	if intent.Status != domain.IntentStatusSucceeded {
		return domain.PaymentSnapshot{}, domain.ErrPaymentNotCompleted
	}
	paid := intent.AmountReceived
	if paid == 0 {
		paid = intent.Amount
	}
	if paid < w.PriceMinorUnits() {
		return domain.PaymentSnapshot{}, domain.ErrPaymentNotCompleted
	}
	if tagged, ok := intent.Metadata[domain.MetadataWorkshopID]; ok && tagged != w.ID {
		return domain.PaymentSnapshot{}, domain.ErrPaymentNotCompleted
	}
	snap := intent.Snapshot()
	snap.Amount = paid
	return snap, nil
}

func (s *registrationService) releaseSeat(ctx context.Context, workshopID string, promotedAt *time.Time) {
	if err := s.workshopRepo.ReleaseSeat(ctx, workshopID, promotedAt); err != nil {
		s.logger.WarnContext(ctx, "seat release failed", "workshop_id", workshopID, "err", err)
	}
}

func (s *registrationService) ListMyRegistrations(ctx context.Context, userID string) ([]*domain.RegistrationView, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if userID == "" {
		return nil, domain.ErrForbidden
	}
	regs, err := s.registrationRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return s.views(ctx, regs)
}

func (s *registrationService) ListRegistrations(ctx context.Context, filter domain.RegistrationFilter, page domain.PaginationParams) ([]*domain.RegistrationView, int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, filter.Status)
	}
	if filter.DecisionStatus != "" && !filter.DecisionStatus.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown decision_status %q", domain.ErrInvalidInput, filter.DecisionStatus)
	}
	filter.StoredStatuses = domain.StoredStatusesFor(filter.Status)

	// Waitlist is stored as is, so only upcoming, completed and cancelled need deriving.
	if filter.Status == "" || filter.Status == domain.RegistrationStatusWaitlist {
		regs, total, err := s.registrationRepo.List(ctx, filter, page)
		if err != nil {
			return nil, 0, fmt.Errorf("list registrations: %w", err)
		}
		views, err := s.views(ctx, regs)
		if err != nil {
			return nil, 0, err
		}
		return views, total, nil
	}

	regs, err := s.registrationRepo.ListAll(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list registrations: %w", err)
	}
	all, err := s.views(ctx, regs)
	if err != nil {
		return nil, 0, err
	}
	matched := make([]*domain.RegistrationView, 0, len(all))
	for _, v := range all {
		if v.EffectiveStatus == filter.Status {
			matched = append(matched, v)
		}
	}
	start, end := page.Window(len(matched))
	return matched[start:end], len(matched), nil
}

// views derives the effective status of each registration, loading each parent workshop
// once. Registrations of deleted workshops fall back to their snapshot.
func (s *registrationService) views(ctx context.Context, regs []*domain.Registration) ([]*domain.RegistrationView, error) {
	now := s.now()
	workshops := make(map[string]*domain.Workshop)
	views := make([]*domain.RegistrationView, 0, len(regs))
	for _, reg := range regs {
		w, seen := workshops[reg.WorkshopID]
		if !seen {
			var err error
			w, err = s.workshopRepo.GetByID(ctx, reg.WorkshopID)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("get workshop: %w", err)
			}
			workshops[reg.WorkshopID] = w
		}
		views = append(views, &domain.RegistrationView{
			Registration:    reg,
			EffectiveStatus: domain.EffectiveRegistrationStatus(reg, w, now),
		})
	}
	return views, nil
}

func (s *registrationService) SetDecision(ctx context.Context, id string, decision domain.DecisionStatus, note string) (*domain.Registration, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if !decision.Valid() {
		return nil, fmt.Errorf("%w: decision must be pending, approved or declined", domain.ErrInvalidInput)
	}
	now := s.now()
	n, err := s.registrationRepo.SetDecision(ctx, []string{id}, decision, strings.TrimSpace(note), now)
	if err != nil {
		return nil, fmt.Errorf("set decision: %w", err)
	}
	if n == 0 {
		return nil, domain.ErrNotFound
	}
	reg, err := s.registrationRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get registration: %w", err)
	}
	s.publish(ctx, domain.EventRegistrationDecided, reg, now)
	return reg, nil
}

func (s *registrationService) SetDecisions(ctx context.Context, ids []string, decision domain.DecisionStatus, note string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if !decision.Valid() {
		return 0, fmt.Errorf("%w: decision must be pending, approved or declined", domain.ErrInvalidInput)
	}
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: ids must not be empty", domain.ErrInvalidInput)
	}
	now := s.now()
	n, err := s.registrationRepo.SetDecision(ctx, ids, decision, strings.TrimSpace(note), now)
	if err != nil {
		return 0, fmt.Errorf("set decisions: %w", err)
	}
	if s.publisher != nil {
		for _, id := range ids {
			reg, err := s.registrationRepo.GetByID(ctx, id)
			if err != nil {
				continue
			}
			s.publish(ctx, domain.EventRegistrationDecided, reg, now)
		}
	}
	return n, nil
}

func (s *registrationService) CancelRegistration(ctx context.Context, id string) (*domain.Registration, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if err := s.registrationRepo.SetStatus(ctx, id, domain.RegistrationStatusCancelled); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("cancel registration: %w", err)
	}
	reg, err := s.registrationRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

func (s *registrationService) publish(ctx context.Context, eventType string, reg *domain.Registration, now time.Time) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, domain.NewRegistrationEvent(eventType, reg, now)); err != nil {
		s.logger.WarnContext(ctx, "publish registration event failed", "type", eventType, "registration_id", reg.ID, "err", err)
	}
}

func (s *registrationService) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.WarnContext(ctx, "workshop cache invalidation failed", "err", err)
	}
}
