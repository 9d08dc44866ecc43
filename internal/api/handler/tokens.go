package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	mw "github.com/freelyhq/freely-api/internal/api/middleware"
	"github.com/freelyhq/freely-api/internal/api/response"
	"github.com/freelyhq/freely-api/internal/store"
	"github.com/freelyhq/freely-api/pkg/models"
)

// TokenStore defines the interface the token handlers depend on.
type TokenStore interface {
	CreateAccessToken(ctx context.Context, token *models.AccessToken) error
	ListAccessTokens(ctx context.Context, ownerID string) ([]*models.AccessToken, error)
	RevokeAccessToken(ctx context.Context, id uuid.UUID, ownerID string) error
}

// NewCreateTokenHandler returns an http.HandlerFunc for POST /api/tokens.
// The plaintext token appears once in this response and is never shown again.
func NewCreateTokenHandler(st TokenStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := mw.GetOwnerID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Missing identity", nil)
			return
		}

		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION", "Invalid JSON body", nil)
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			response.Error(w, http.StatusBadRequest, "VALIDATION", "name is required", nil)
			return
		}
		if len(name) > 100 {
			response.Error(w, http.StatusBadRequest, "VALIDATION", "name must be 100 characters or fewer", nil)
			return
		}

		raw, err := generateToken()
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate token", nil)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate token", nil)
			return
		}

		token := &models.AccessToken{
			ID:          uuid.New(),
			OwnerID:     ownerID,
			Name:        name,
			TokenHash:   string(hash),
			TokenPrefix: raw[:mw.TokenPrefixLen],
			CreatedAt:   time.Now().UTC(),
			UpdatedAt:   time.Now().UTC(),
		}
		if err := st.CreateAccessToken(r.Context(), token); err != nil {
			if errors.Is(err, store.ErrDuplicateKey) {
				response.Error(w, http.StatusConflict, "DUPLICATE_NAME",
					"A token with this name already exists", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create token", nil)
			return
		}

		response.Created(w, createTokenResponse{
			AccessToken: token,
			Token:       raw,
		})
	}
}

type createTokenResponse struct {
	*models.AccessToken
	Token string `json:"token"`
}

// NewListTokensHandler returns an http.HandlerFunc for GET /api/tokens.
func NewListTokensHandler(st TokenStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := mw.GetOwnerID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Missing identity", nil)
			return
		}

		tokens, err := st.ListAccessTokens(r.Context(), ownerID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list tokens", nil)
			return
		}
		if tokens == nil {
			tokens = []*models.AccessToken{}
		}
		response.JSON(w, tokens)
	}
}

// NewRevokeTokenHandler returns an http.HandlerFunc for DELETE /api/tokens/{id}.
func NewRevokeTokenHandler(st TokenStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := mw.GetOwnerID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Missing identity", nil)
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION", "id must be a valid UUID", nil)
			return
		}

		if err := st.RevokeAccessToken(r.Context(), id, ownerID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Token not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to revoke token", nil)
			return
		}
		response.NoContent(w)
	}
}

// generateToken returns a new plaintext access token: the fly_ marker plus
// 40 hex characters of randomness.
func generateToken() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return mw.TokenMarker + hex.EncodeToString(buf), nil
}
