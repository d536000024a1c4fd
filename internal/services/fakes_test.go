package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"therapyhub/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedClock(t time.Time) domain.Clock {
	return domain.ClockFunc(func() time.Time { return t })
}

// fakeWorkshopRepo is an in-memory WorkshopRepository. ReserveSeat holds the mutex for the
// whole check-and-increment, like the single conditional UPDATE it stands in for.
type fakeWorkshopRepo struct {
	mu        sync.Mutex
	byID      map[string]*domain.Workshop
	nextID    int
	reserveFn func() (bool, error) // overrides ReserveSeat when set
	released  int
	getErr    error
	// hasRegistrations reports whether any registration holds the workshop.
	hasRegistrations func(workshopID string) bool
}

func newFakeWorkshopRepo(ws ...*domain.Workshop) *fakeWorkshopRepo {
	f := &fakeWorkshopRepo{byID: make(map[string]*domain.Workshop), nextID: 1}
	for _, w := range ws {
		f.byID[w.ID] = w
	}
	return f
}

func (f *fakeWorkshopRepo) Create(ctx context.Context, w *domain.Workshop) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.ID = fmt.Sprintf("ws-%d", f.nextID)
	f.nextID++
	cp := *w
	f.byID[w.ID] = &cp
	return nil
}

func (f *fakeWorkshopRepo) GetByID(ctx context.Context, id string) (*domain.Workshop, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if w, ok := f.byID[id]; ok {
		cp := *w
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeWorkshopRepo) List(ctx context.Context, statuses []domain.WorkshopStatus) ([]*domain.Workshop, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.Workshop, 0)
	for _, w := range f.byID {
		if len(statuses) > 0 {
			match := false
			for _, s := range statuses {
				if w.Status == s {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		cp := *w
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeWorkshopRepo) Update(ctx context.Context, w *domain.Workshop) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.byID[w.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if w.Capacity > 0 && stored.Enrolled > w.Capacity {
		return fmt.Errorf("%w: capacity cannot be lower than the number of enrolled participants", domain.ErrInvalidInput)
	}
	cp := *w
	cp.Enrolled = stored.Enrolled
	w.Enrolled = stored.Enrolled
	f.byID[w.ID] = &cp
	return nil
}

func (f *fakeWorkshopRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeWorkshopRepo) ReserveSeat(ctx context.Context, id string, now time.Time) (bool, error) {
	if f.reserveFn != nil {
		return f.reserveFn()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.byID[id]
	if !ok {
		return false, nil
	}
	if w.Capacity != 0 && w.Enrolled >= w.Capacity {
		return false, nil
	}
	w.Enrolled++
	if w.Status == domain.WorkshopStatusReady {
		w.Status = domain.WorkshopStatusUpcoming
		if w.PublishedAt == nil {
			w.PublishedAt = &now
		}
	}
	return true, nil
}

func (f *fakeWorkshopRepo) ReleaseSeat(ctx context.Context, id string, promotedAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
	w, ok := f.byID[id]
	if !ok || w.Enrolled == 0 {
		return nil
	}
	unpublish := promotedAt != nil && w.Enrolled == 1 && w.Status == domain.WorkshopStatusUpcoming &&
		(f.hasRegistrations == nil || !f.hasRegistrations(id))
	w.Enrolled--
	if unpublish {
		w.Status = domain.WorkshopStatusReady
		if w.PublishedAt != nil && w.PublishedAt.Equal(*promotedAt) {
			w.PublishedAt = nil
		}
	}
	return nil
}

func (f *fakeWorkshopRepo) PromoteReady(ctx context.Context, id string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if w, ok := f.byID[id]; ok && w.Status == domain.WorkshopStatusReady {
		w.Status = domain.WorkshopStatusUpcoming
		if w.PublishedAt == nil {
			w.PublishedAt = &now
		}
	}
	return nil
}

func (f *fakeWorkshopRepo) get(id string) *domain.Workshop {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *f.byID[id]
	return &cp
}

// fakeRegistrationRepo is an in-memory RegistrationRepository enforcing payment intent
// uniqueness.
type fakeRegistrationRepo struct {
	mu        sync.Mutex
	byID      map[string]*domain.Registration
	order     []string
	nextID    int
	createErr error
}

func newFakeRegistrationRepo() *fakeRegistrationRepo {
	return &fakeRegistrationRepo{byID: make(map[string]*domain.Registration), nextID: 1}
}

func (f *fakeRegistrationRepo) Create(ctx context.Context, reg *domain.Registration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if reg.Payment.IntentID != "" {
		for _, r := range f.byID {
			if r.Payment.IntentID == reg.Payment.IntentID {
				return domain.ErrDuplicatePayment
			}
		}
	}
	reg.ID = fmt.Sprintf("reg-%d", f.nextID)
	f.nextID++
	cp := *reg
	f.byID[reg.ID] = &cp
	f.order = append(f.order, reg.ID)
	return nil
}

func (f *fakeRegistrationRepo) GetByID(ctx context.Context, id string) (*domain.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.byID[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeRegistrationRepo) GetByPaymentIntentID(ctx context.Context, intentID string) (*domain.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.byID {
		if r.Payment.IntentID == intentID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeRegistrationRepo) ListByUserID(ctx context.Context, userID string) ([]*domain.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.Registration, 0)
	for _, id := range f.order {
		r := f.byID[id]
		if r.UserID != nil && *r.UserID == userID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRegistrationRepo) List(ctx context.Context, filter domain.RegistrationFilter, page domain.PaginationParams) ([]*domain.Registration, int, error) {
	matched, _ := f.ListAll(ctx, filter)
	start, end := page.Window(len(matched))
	return matched[start:end], len(matched), nil
}

func (f *fakeRegistrationRepo) ListAll(ctx context.Context, filter domain.RegistrationFilter) ([]*domain.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	matched := make([]*domain.Registration, 0)
	q := strings.ToLower(strings.TrimSpace(filter.Query))
	for _, id := range f.order {
		r := f.byID[id]
		if filter.WorkshopID != "" && r.WorkshopID != filter.WorkshopID {
			continue
		}
		if len(filter.StoredStatuses) > 0 && !slices.Contains(filter.StoredStatuses, r.Status) {
			continue
		}
		if filter.DecisionStatus != "" && r.DecisionStatus != filter.DecisionStatus {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(r.Participant.Name), q) &&
			!strings.Contains(strings.ToLower(r.Participant.Email), q) {
			continue
		}
		cp := *r
		matched = append(matched, &cp)
	}
	return matched, nil
}

func (f *fakeRegistrationRepo) SetDecision(ctx context.Context, ids []string, decision domain.DecisionStatus, note string, decidedAt time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, id := range ids {
		if r, ok := f.byID[id]; ok {
			r.DecisionStatus = decision
			r.DecisionNote = note
			at := decidedAt
			r.DecidedAt = &at
			n++
		}
	}
	return n, nil
}

func (f *fakeRegistrationRepo) SetStatus(ctx context.Context, id string, status domain.RegistrationStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.Status = status
	return nil
}

func (f *fakeRegistrationRepo) UpdatePaymentByIntentID(ctx context.Context, payment domain.PaymentSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.byID {
		if r.Payment.IntentID == payment.IntentID {
			r.Payment = payment
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeRegistrationRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID)
}

// fakeGateway serves payment intents from a map.
type fakeGateway struct {
	mu       sync.Mutex
	intents  map[string]*domain.PaymentIntent
	err      error
	created  []domain.CreateIntentParams
	retrieve int
}

func newFakeGateway(intents ...*domain.PaymentIntent) *fakeGateway {
	g := &fakeGateway{intents: make(map[string]*domain.PaymentIntent)}
	for _, pi := range intents {
		g.intents[pi.ID] = pi
	}
	return g
}

func (g *fakeGateway) CreatePaymentIntent(ctx context.Context, params domain.CreateIntentParams) (*domain.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.created = append(g.created, params)
	pi := &domain.PaymentIntent{
		ID:           fmt.Sprintf("pi_%d", len(g.created)),
		ClientSecret: fmt.Sprintf("pi_%d_secret", len(g.created)),
		Status:       "requires_payment_method",
		Amount:       params.AmountMinorUnits,
		Currency:     params.Currency,
		Metadata:     params.Metadata,
	}
	g.intents[pi.ID] = pi
	return pi, nil
}

func (g *fakeGateway) RetrievePaymentIntent(ctx context.Context, intentID string) (*domain.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.retrieve++
	if g.err != nil {
		return nil, g.err
	}
	pi, ok := g.intents[intentID]
	if !ok {
		return nil, fmt.Errorf("no such payment_intent: %s", intentID)
	}
	cp := *pi
	return &cp, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*domain.RegistrationEvent
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, event *domain.RegistrationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

type fakeCache struct {
	mu          sync.Mutex
	workshops   []*domain.Workshop
	hit         bool
	invalidated int
}

func (c *fakeCache) GetPublic(ctx context.Context) ([]*domain.Workshop, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.workshops, c.hit, nil
}

func (c *fakeCache) SetPublic(ctx context.Context, workshops []*domain.Workshop) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.workshops = workshops
	c.hit = true
	return nil
}

func (c *fakeCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.workshops = nil
	c.hit = false
	c.invalidated++
	return nil
}

type fakeVerifier struct {
	event *domain.WebhookEvent
	err   error
}

func (v *fakeVerifier) Verify(payload []byte, signature string) (*domain.WebhookEvent, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.event, nil
}

func (f *fakeRegistrationRepo) holdsWorkshop(workshopID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.byID {
		if r.WorkshopID == workshopID {
			return true
		}
	}
	return false
}
