package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"therapyhub/internal/delivery/http/helpers"
	"therapyhub/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTokenVerifier implements domain.TokenVerifier for tests.
type fakeTokenVerifier struct {
	identity *domain.Identity
	err      error
}

func (f *fakeTokenVerifier) Verify(_ string) (*domain.Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.identity, nil
}

func TestAuthMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	member := &fakeTokenVerifier{identity: &domain.Identity{UserID: "user-123", Email: "ana@example.com"}}
	admin := &fakeTokenVerifier{identity: &domain.Identity{UserID: "admin-1", Roles: []string{domain.RoleAdmin}}}

	tests := []struct {
		name          string
		wrap          func(domain.TokenVerifier, *slog.Logger) func(http.HandlerFunc) http.HandlerFunc
		authHeader    string
		verifier      domain.TokenVerifier
		wantStatus    int
		wantBodyCode  string
		nextCalled    bool
		wantContextID string
	}{
		{
			name:          "valid token sets context and calls next",
			wrap:          RequireAuth,
			authHeader:    "Bearer valid-token",
			verifier:      member,
			wantStatus:    http.StatusOK,
			nextCalled:    true,
			wantContextID: "user-123",
		},
		{
			name:         "missing authorization header",
			wrap:         RequireAuth,
			verifier:     member,
			wantStatus:   http.StatusUnauthorized,
			wantBodyCode: helpers.ErrCodeUnauthorized,
		},
		{
			name:         "invalid authorization format no Bearer prefix",
			wrap:         RequireAuth,
			authHeader:   "Basic abc",
			verifier:     member,
			wantStatus:   http.StatusUnauthorized,
			wantBodyCode: helpers.ErrCodeUnauthorized,
		},
		{
			name:         "empty token after Bearer",
			wrap:         RequireAuth,
			authHeader:   "Bearer ",
			verifier:     member,
			wantStatus:   http.StatusUnauthorized,
			wantBodyCode: helpers.ErrCodeUnauthorized,
		},
		{
			name:         "verifier returns error",
			wrap:         RequireAuth,
			authHeader:   "Bearer bad-token",
			verifier:     &fakeTokenVerifier{err: errors.New("token is expired")},
			wantStatus:   http.StatusUnauthorized,
			wantBodyCode: helpers.ErrCodeUnauthorized,
		},
		{
			name:       "optional auth without header is anonymous",
			wrap:       OptionalAuth,
			verifier:   member,
			wantStatus: http.StatusOK,
			nextCalled: true,
		},
		{
			name:          "optional auth with valid token",
			wrap:          OptionalAuth,
			authHeader:    "Bearer valid-token",
			verifier:      member,
			wantStatus:    http.StatusOK,
			nextCalled:    true,
			wantContextID: "user-123",
		},
		{
			name:         "optional auth rejects invalid token",
			wrap:         OptionalAuth,
			authHeader:   "Bearer bad-token",
			verifier:     &fakeTokenVerifier{err: errors.New("signature is invalid")},
			wantStatus:   http.StatusUnauthorized,
			wantBodyCode: helpers.ErrCodeUnauthorized,
		},
		{
			name:          "admin passes",
			wrap:          RequireAdmin,
			authHeader:    "Bearer admin-token",
			verifier:      admin,
			wantStatus:    http.StatusOK,
			nextCalled:    true,
			wantContextID: "admin-1",
		},
		{
			name:         "non-admin is forbidden",
			wrap:         RequireAdmin,
			authHeader:   "Bearer valid-token",
			verifier:     member,
			wantStatus:   http.StatusForbidden,
			wantBodyCode: helpers.ErrCodeForbidden,
		},
		{
			name:         "admin route without token",
			wrap:         RequireAdmin,
			verifier:     admin,
			wantStatus:   http.StatusUnauthorized,
			wantBodyCode: helpers.ErrCodeUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nextCalled := false
			var capturedUserID string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				nextCalled = true
				if id, ok := UserIDFromContext(r.Context()); ok {
					capturedUserID = id
				}
				w.WriteHeader(http.StatusOK)
			})
			handler := tt.wrap(tt.verifier, logger)(next)

			req := httptest.NewRequest(http.MethodGet, "http://test/me/registrations", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rr := httptest.NewRecorder()

			handler(rr, req)

			require.Equal(t, tt.wantStatus, rr.Code, "status code")
			assert.Equal(t, tt.nextCalled, nextCalled, "next handler called")
			assert.Equal(t, tt.wantContextID, capturedUserID, "user ID in context")
			if tt.wantBodyCode != "" {
				var envelope helpers.APIResponse
				require.NoError(t, json.NewDecoder(rr.Body).Decode(&envelope))
				require.NotNil(t, envelope.Error)
				assert.Equal(t, tt.wantBodyCode, envelope.Error.Code)
			}
		})
	}
}
