package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/freelyhq/freely-api/internal/api/response"
	"github.com/freelyhq/freely-api/internal/store"
)

// Access tokens look like fly_<40 hex chars>. The prefix column stores the
// fixed marker plus the first 8 characters of the random part.
const (
	TokenMarker    = "fly_"
	TokenPrefixLen = len(TokenMarker) + 8
)

// TokenVerifier validates a Firebase ID token.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// Auth authenticates requests with either a Firebase ID token or a personal
// access token, and puts the owner's user ID in the request context.
type Auth struct {
	store    store.Store
	verifier TokenVerifier
}

// NewAuth creates a new Auth middleware.
func NewAuth(s store.Store, v TokenVerifier) *Auth {
	return &Auth{store: s, verifier: v}
}

func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := extractBearerToken(r)
		if raw == "" {
			response.Error(w, http.StatusUnauthorized,
				"UNAUTHENTICATED", "Missing or invalid Authorization header", nil)
			return
		}

		if strings.HasPrefix(raw, TokenMarker) {
			a.authenticateAccessToken(w, r, next, raw)
			return
		}
		a.authenticateFirebase(w, r, next, raw)
	})
}

func (a *Auth) authenticateFirebase(w http.ResponseWriter, r *http.Request, next http.Handler, raw string) {
	identity, err := a.verifier.Verify(r.Context(), raw)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			response.Error(w, http.StatusUnauthorized,
				"UNAUTHENTICATED", "Token has expired", nil)
			return
		}
		if errors.Is(err, ErrTokenMalformed) || errors.Is(err, ErrTokenInvalid) {
			response.Error(w, http.StatusUnauthorized,
				"UNAUTHENTICATED", "Invalid authentication token", nil)
			return
		}
		response.Error(w, http.StatusInternalServerError,
			"INTERNAL_ERROR", "Failed to validate token", nil)
		return
	}

	ctx := SetOwnerID(r.Context(), identity.UID)
	ctx = setAuthMethod(ctx, AuthMethodFirebase)
	next.ServeHTTP(w, r.WithContext(ctx))
}

func (a *Auth) authenticateAccessToken(w http.ResponseWriter, r *http.Request, next http.Handler, raw string) {
	if len(raw) < TokenPrefixLen {
		response.Error(w, http.StatusUnauthorized,
			"UNAUTHENTICATED", "Invalid access token format", nil)
		return
	}
	prefix := raw[:TokenPrefixLen]

	tokens, err := a.store.GetAccessTokensByPrefix(r.Context(), prefix)
	if err != nil {
		response.Error(w, http.StatusInternalServerError,
			"INTERNAL_ERROR", "Failed to validate access token", nil)
		return
	}

	for _, token := range tokens {
		if bcrypt.CompareHashAndPassword([]byte(token.TokenHash), []byte(raw)) == nil {
			ctx := SetOwnerID(r.Context(), token.OwnerID)
			ctx = setAuthMethod(ctx, AuthMethodAccessToken)

			// Update last_used_at async
			go a.store.UpdateAccessTokenLastUsed(context.Background(), token.ID)

			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}
	}

	response.Error(w, http.StatusUnauthorized,
		"UNAUTHENTICATED", "Invalid access token", nil)
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
