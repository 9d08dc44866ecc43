package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/freelyhq/freely-api/internal/api"
	mw "github.com/freelyhq/freely-api/internal/api/middleware"
	"github.com/freelyhq/freely-api/internal/cache"
	"github.com/freelyhq/freely-api/internal/store"
	"github.com/freelyhq/freely-api/pkg/models"
)

// stubStore satisfies store.Store for routing tests. Only the access token
// prefix lookup is ever reached, and it finds nothing.
type stubStore struct {
	store.Store
}

func (stubStore) GetAccessTokensByPrefix(_ context.Context, _ string) ([]*models.AccessToken, error) {
	return nil, nil
}

type stubVerifier struct {
	identity *mw.Identity
	err      error
}

func (v stubVerifier) Verify(_ context.Context, _ string) (*mw.Identity, error) {
	return v.identity, v.err
}

func newRouter(deps api.Dependencies) http.Handler {
	if deps.Auth == nil {
		deps.Auth = mw.NewAuth(stubStore{}, stubVerifier{err: mw.ErrTokenInvalid})
	}
	if deps.RateLimit == nil {
		deps.RateLimit = mw.NewRateLimit(noopCache{}, 1000)
	}
	return api.NewRouter(deps)
}

type noopCache struct{}

func (noopCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (noopCache) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (noopCache) Delete(context.Context, string) error                     { return nil }
func (noopCache) Ping(context.Context) error                               { return nil }
func (noopCache) IncrWithExpiry(context.Context, string, time.Duration) (int64, error) {
	return 1, nil
}
func (noopCache) SetJobStatus(context.Context, string, uuid.UUID, string, time.Duration) error {
	return nil
}
func (noopCache) GetJobStatus(context.Context, string, uuid.UUID) (string, bool, error) {
	return "", false, nil
}

func TestRouter_HealthIsPublic(t *testing.T) {
	h := newRouter(api.Dependencies{
		HealthHandler: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_ProtectedRoutesRequireAuth(t *testing.T) {
	h := newRouter(api.Dependencies{})

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/me"},
		{http.MethodPost, "/api/risk-analysis"},
		{http.MethodGet, "/api/risk-analysis"},
		{http.MethodPost, "/api/proposals"},
		{http.MethodGet, "/api/proposals"},
		{http.MethodPost, "/api/tokens"},
	}
	for _, p := range paths {
		req := httptest.NewRequest(p.method, p.path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", p.method, p.path)
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	h := newRouter(api.Dependencies{})

	req := httptest.NewRequest(http.MethodGet, "/api/nonsense", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_UnwiredHandlerReturns501(t *testing.T) {
	h := newRouter(api.Dependencies{
		Auth: mw.NewAuth(stubStore{}, stubVerifier{identity: &mw.Identity{UID: "u-1"}}),
	})

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer some-firebase-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

var _ cache.Cache = noopCache{}
