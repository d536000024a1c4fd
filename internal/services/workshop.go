package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"therapyhub/internal/domain"
)

type workshopService struct {
	workshopRepo   domain.WorkshopRepository
	cache          domain.WorkshopCache
	clock          domain.Clock
	location       *time.Location
	logger         *slog.Logger
	contextTimeout time.Duration
}

// NewWorkshopService returns a WorkshopService. loc is the zone workshop dates and start
// times are interpreted in.
func NewWorkshopService(workshopRepo domain.WorkshopRepository,
	cache domain.WorkshopCache,
	clock domain.Clock,
	loc *time.Location,
	logger *slog.Logger,
	timeout time.Duration,
) domain.WorkshopService {
	if loc == nil {
		loc = time.UTC
	}
	return &workshopService{
		workshopRepo:   workshopRepo,
		cache:          cache,
		clock:          clock,
		location:       loc,
		logger:         logger,
		contextTimeout: timeout,
	}
}

func (s *workshopService) now() time.Time {
	return s.clock.Now().In(s.location)
}

func (s *workshopService) CreateWorkshop(ctx context.Context, w *domain.Workshop) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	w.Normalize()
	w.Enrolled = 0
	switch w.Status {
	case domain.WorkshopStatusDraft, domain.WorkshopStatusReady, domain.WorkshopStatusUpcoming:
	default:
		return fmt.Errorf("%w: status must be draft, ready or upcoming when creating a workshop", domain.ErrInvalidInput)
	}
	if err := w.Validate(); err != nil {
		return err
	}

	now := s.now()
	w.CreatedAt = now
	w.UpdatedAt = now
	w.PublishedAt = nil
	if w.Status == domain.WorkshopStatusUpcoming {
		w.PublishedAt = &now
	}
	if err := s.workshopRepo.Create(ctx, w); err != nil {
		return fmt.Errorf("create workshop: %w", err)
	}
	s.invalidateCache(ctx)
	return nil
}

func (s *workshopService) UpdateWorkshop(ctx context.Context, id string, patch domain.WorkshopPatch) (*domain.Workshop, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	w, err := s.workshopRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(w)
	w.Normalize()
	if err := w.Validate(); err != nil {
		return nil, err
	}
	now := s.now()
	if w.Status == domain.WorkshopStatusUpcoming && w.PublishedAt == nil {
		w.PublishedAt = &now
	}
	w.UpdatedAt = now
	if err := s.workshopRepo.Update(ctx, w); err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidInput) {
			return nil, err
		}
		return nil, fmt.Errorf("update workshop: %w", err)
	}
	s.invalidateCache(ctx)
	return w, nil
}

func (s *workshopService) PublishWorkshop(ctx context.Context, id string) (*domain.Workshop, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	w, err := s.workshopRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := w.ValidatePublishable(); err != nil {
		return nil, err
	}
	now := s.now()
	w.Status = domain.WorkshopStatusUpcoming
	if w.PublishedAt == nil {
		w.PublishedAt = &now
	}
	w.UpdatedAt = now
	if err := s.workshopRepo.Update(ctx, w); err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidInput) {
			return nil, err
		}
		return nil, fmt.Errorf("publish workshop: %w", err)
	}
	s.invalidateCache(ctx)
	return w, nil
}

func (s *workshopService) CancelWorkshop(ctx context.Context, id string) (*domain.Workshop, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	w, err := s.workshopRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	w.Status = domain.WorkshopStatusCancelled
	w.UpdatedAt = s.now()
	if err := s.workshopRepo.Update(ctx, w); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("cancel workshop: %w", err)
	}
	s.invalidateCache(ctx)
	return w, nil
}

func (s *workshopService) DeleteWorkshop(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if err := s.workshopRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete workshop: %w", err)
	}
	s.invalidateCache(ctx)
	return nil
}

func (s *workshopService) GetWorkshop(ctx context.Context, id string, public bool) (*domain.WorkshopView, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	w, err := s.workshopRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if public && w.Status == domain.WorkshopStatusDraft {
		return nil, domain.ErrNotFound
	}
	return s.view(w, s.now()), nil
}

func (s *workshopService) ListWorkshops(ctx context.Context, filter domain.WorkshopListFilter) ([]*domain.WorkshopView, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	var workshops []*domain.Workshop
	var err error
	if filter.Public {
		workshops, err = s.publicWorkshops(ctx)
	} else {
		var statuses []domain.WorkshopStatus
		if filter.Status != "" {
			if !filter.Status.Valid() {
				return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, filter.Status)
			}
			statuses = []domain.WorkshopStatus{filter.Status}
		}
		workshops, err = s.workshopRepo.List(ctx, statuses)
	}
	if err != nil {
		return nil, fmt.Errorf("list workshops: %w", err)
	}

	now := s.now()
	views := make([]*domain.WorkshopView, 0, len(workshops))
	for _, w := range workshops {
		v := s.view(w, now)
		if filter.Public && !filter.IncludePast && v.EffectiveStatus == domain.WorkshopStatusCompleted {
			continue
		}
		views = append(views, v)
	}
	return views, nil
}

// publicWorkshops returns the stored public rows, from the cache when possible. Effective
// status is derived after the cache so cached rows never go stale by the clock alone.
func (s *workshopService) publicWorkshops(ctx context.Context) ([]*domain.Workshop, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.GetPublic(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "workshop cache read failed", "err", err)
		} else if ok {
			return cached, nil
		}
	}
	workshops, err := s.workshopRepo.List(ctx, domain.PublicWorkshopStatuses)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetPublic(ctx, workshops); err != nil {
			s.logger.WarnContext(ctx, "workshop cache write failed", "err", err)
		}
	}
	return workshops, nil
}

func (s *workshopService) view(w *domain.Workshop, now time.Time) *domain.WorkshopView {
	return &domain.WorkshopView{
		Workshop:        w,
		EffectiveStatus: w.EffectiveStatus(now),
		SeatsRemaining:  w.SeatsRemaining(),
	}
}

func (s *workshopService) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.WarnContext(ctx, "workshop cache invalidation failed", "err", err)
	}
}
