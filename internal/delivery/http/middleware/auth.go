package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	h "therapyhub/internal/delivery/http/helpers"
	"therapyhub/internal/domain"
)

type contextKey string

const identityKey contextKey = "identity"

// SetIdentity returns a context carrying the authenticated identity. Used by auth middleware.
func SetIdentity(ctx context.Context, identity *domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the authenticated identity from the context, if present.
func IdentityFromContext(ctx context.Context) (*domain.Identity, bool) {
	id, ok := ctx.Value(identityKey).(*domain.Identity)
	return id, ok && id != nil
}

// UserIDFromContext returns the authenticated user ID from the context, if present.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return "", false
	}
	return id.UserID, true
}

var (
	errMissingHeader = errors.New("missing authorization header")
	errBadFormat     = errors.New("invalid authorization format")
	errMissingToken  = errors.New("missing token")
	errInvalidToken  = errors.New("invalid or expired token")
)

func authenticate(r *http.Request, verifier domain.TokenVerifier) (*domain.Identity, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return nil, errMissingHeader
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return nil, errBadFormat
	}
	token := strings.TrimSpace(auth[len(prefix):])
	if token == "" {
		return nil, errMissingToken
	}
	identity, err := verifier.Verify(token)
	if err != nil {
		return nil, errInvalidToken
	}
	return identity, nil
}

// RequireAuth returns a wrapper that validates the Bearer token and sets the identity in the request context.
// If the token is missing or invalid, it responds with 401 and does not call next.
func RequireAuth(verifier domain.TokenVerifier, logger *slog.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			identity, err := authenticate(r, verifier)
			if err != nil {
				logger.DebugContext(r.Context(), "authentication failed", "path", r.URL.Path, "err", err)
				h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, err.Error())
				return
			}
			next(w, r.WithContext(SetIdentity(r.Context(), identity)))
		}
	}
}

// OptionalAuth attaches the identity when a valid Bearer token is present and otherwise
// calls next anonymously. A present but invalid token is rejected with 401.
func OptionalAuth(verifier domain.TokenVerifier, logger *slog.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			identity, err := authenticate(r, verifier)
			switch {
			case errors.Is(err, errMissingHeader):
				next(w, r)
			case err != nil:
				logger.DebugContext(r.Context(), "authentication failed", "path", r.URL.Path, "err", err)
				h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, err.Error())
			default:
				next(w, r.WithContext(SetIdentity(r.Context(), identity)))
			}
		}
	}
}

// RequireAdmin authenticates like RequireAuth and additionally requires the admin role (403 otherwise).
func RequireAdmin(verifier domain.TokenVerifier, logger *slog.Logger) func(http.HandlerFunc) http.HandlerFunc {
	requireAuth := RequireAuth(verifier, logger)
	return func(next http.HandlerFunc) http.HandlerFunc {
		return requireAuth(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok || !identity.HasRole(domain.RoleAdmin) {
				userID, _ := UserIDFromContext(r.Context())
				logger.WarnContext(r.Context(), "admin access denied", "path", r.URL.Path, "user_id", userID)
				h.WriteJSONError(w, http.StatusForbidden, h.ErrCodeForbidden, "admin role required")
				return
			}
			next(w, r)
		})
	}
}
