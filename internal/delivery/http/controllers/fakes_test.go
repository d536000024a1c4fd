package controllers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"therapyhub/internal/delivery/http/helpers"
	"therapyhub/internal/delivery/http/middleware"
	"therapyhub/internal/domain"

	"github.com/stretchr/testify/require"
)

const (
	testWorkshopID     = "6f1c2f3e-8d4b-4b8e-9a51-0c7d2b1e4a10"
	testRegistrationID = "0b9a4c1e-2f7d-4e3a-8c5b-9d6e1f2a3b4c"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

// serve routes req through a ServeMux so path values are populated.
func serve(t *testing.T, pattern string, handler http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(pattern, handler)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func newRequest(method, target, body string) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, "http://test"+target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func withUser(req *http.Request, userID string, roles ...string) *http.Request {
	return req.WithContext(middleware.SetIdentity(req.Context(), &domain.Identity{UserID: userID, Roles: roles}))
}

// decode unmarshals the envelope and, when data is non-nil, its data field into data.
func decode(t *testing.T, rr *httptest.ResponseRecorder, data any) *helpers.APIError {
	t.Helper()
	var raw struct {
		Data  json.RawMessage   `json:"data"`
		Error *helpers.APIError `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&raw))
	if data != nil && raw.Error == nil {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return raw.Error
}

// fakeWorkshopService implements domain.WorkshopService for handler tests.
type fakeWorkshopService struct {
	view       *domain.WorkshopView
	views      []*domain.WorkshopView
	err        error
	lastFilter domain.WorkshopListFilter
	lastPublic bool
	lastPatch  domain.WorkshopPatch
	created    *domain.Workshop
	deletedID  string
}

func (f *fakeWorkshopService) CreateWorkshop(ctx context.Context, w *domain.Workshop) error {
	if f.err != nil {
		return f.err
	}
	w.ID = testWorkshopID
	f.created = w
	return nil
}

func (f *fakeWorkshopService) UpdateWorkshop(ctx context.Context, id string, patch domain.WorkshopPatch) (*domain.Workshop, error) {
	f.lastPatch = patch
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Workshop{ID: id}, nil
}

func (f *fakeWorkshopService) PublishWorkshop(ctx context.Context, id string) (*domain.Workshop, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Workshop{ID: id, Status: domain.WorkshopStatusUpcoming}, nil
}

func (f *fakeWorkshopService) CancelWorkshop(ctx context.Context, id string) (*domain.Workshop, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Workshop{ID: id, Status: domain.WorkshopStatusCancelled}, nil
}

func (f *fakeWorkshopService) DeleteWorkshop(ctx context.Context, id string) error {
	f.deletedID = id
	return f.err
}

func (f *fakeWorkshopService) GetWorkshop(ctx context.Context, id string, public bool) (*domain.WorkshopView, error) {
	f.lastPublic = public
	if f.err != nil {
		return nil, f.err
	}
	if f.view != nil {
		return f.view, nil
	}
	return &domain.WorkshopView{Workshop: &domain.Workshop{ID: id}}, nil
}

func (f *fakeWorkshopService) ListWorkshops(ctx context.Context, filter domain.WorkshopListFilter) ([]*domain.WorkshopView, error) {
	f.lastFilter = filter
	return f.views, f.err
}

// fakeRegistrationService implements domain.RegistrationService for handler tests.
type fakeRegistrationService struct {
	result        *domain.RegistrationResult
	registration  *domain.Registration
	views         []*domain.RegistrationView
	total         int
	updated       int
	err           error
	lastWorkshop  string
	lastPart      domain.Participant
	lastOpts      domain.RegisterOptions
	lastUserID    string
	lastFilter    domain.RegistrationFilter
	lastPage      domain.PaginationParams
	lastIDs       []string
	lastDecision  domain.DecisionStatus
	lastNote      string
	lastCancelled string
}

func (f *fakeRegistrationService) RegisterForWorkshop(ctx context.Context, workshopID string, p domain.Participant, opts domain.RegisterOptions) (*domain.RegistrationResult, error) {
	f.lastWorkshop, f.lastPart, f.lastOpts = workshopID, p, opts
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeRegistrationService) ListMyRegistrations(ctx context.Context, userID string) ([]*domain.RegistrationView, error) {
	f.lastUserID = userID
	return f.views, f.err
}

func (f *fakeRegistrationService) ListRegistrations(ctx context.Context, filter domain.RegistrationFilter, page domain.PaginationParams) ([]*domain.RegistrationView, int, error) {
	f.lastFilter, f.lastPage = filter, page
	return f.views, f.total, f.err
}

func (f *fakeRegistrationService) SetDecision(ctx context.Context, id string, decision domain.DecisionStatus, note string) (*domain.Registration, error) {
	f.lastIDs, f.lastDecision, f.lastNote = []string{id}, decision, note
	if f.err != nil {
		return nil, f.err
	}
	return f.registration, nil
}

func (f *fakeRegistrationService) SetDecisions(ctx context.Context, ids []string, decision domain.DecisionStatus, note string) (int, error) {
	f.lastIDs, f.lastDecision, f.lastNote = ids, decision, note
	return f.updated, f.err
}

func (f *fakeRegistrationService) CancelRegistration(ctx context.Context, id string) (*domain.Registration, error) {
	f.lastCancelled = id
	if f.err != nil {
		return nil, f.err
	}
	return f.registration, nil
}

// fakePaymentService implements domain.PaymentService for handler tests.
type fakePaymentService struct {
	checkout      *domain.PaymentIntentCheckout
	err           error
	lastWorkshop  string
	lastEmail     string
	lastPayload   []byte
	lastSignature string
}

func (f *fakePaymentService) CreatePaymentIntent(ctx context.Context, workshopID, email string) (*domain.PaymentIntentCheckout, error) {
	f.lastWorkshop, f.lastEmail = workshopID, email
	if f.err != nil {
		return nil, f.err
	}
	return f.checkout, nil
}

func (f *fakePaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	f.lastPayload, f.lastSignature = payload, signature
	return f.err
}
