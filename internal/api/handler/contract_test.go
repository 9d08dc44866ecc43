package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/freelyhq/freely-api/internal/ai/mock"
	"github.com/freelyhq/freely-api/internal/api"
	"github.com/freelyhq/freely-api/internal/api/handler"
	mw "github.com/freelyhq/freely-api/internal/api/middleware"
	"github.com/freelyhq/freely-api/internal/docs"
	"github.com/freelyhq/freely-api/internal/store"
	"github.com/freelyhq/freely-api/pkg/models"
)

// --- fixtures ---

const (
	testOwner  = "firebase-uid-contract"
	testRawPAT = "fly_0123456789abcdef0123456789abcdef01234567"
)

func testPATHash() string {
	h, _ := bcrypt.GenerateFromPassword([]byte(testRawPAT), bcrypt.MinCost)
	return string(h)
}

// --- in-memory store ---

type memStore struct {
	mu       sync.Mutex
	docs     map[uuid.UUID]*models.Document
	versions map[uuid.UUID][]*models.VersionEntry
	tokens   map[uuid.UUID]*models.AccessToken
}

var memTransitions = map[string][]string{
	models.StatusPending:    {models.StatusProcessing, models.StatusFailed},
	models.StatusProcessing: {models.StatusCompleted, models.StatusFailed},
	models.StatusCompleted:  {models.StatusProcessing},
	models.StatusFailed:     {},
}

func newMemStore() *memStore {
	s := &memStore{
		docs:     make(map[uuid.UUID]*models.Document),
		versions: make(map[uuid.UUID][]*models.VersionEntry),
		tokens:   make(map[uuid.UUID]*models.AccessToken),
	}
	seeded := &models.AccessToken{
		ID:          uuid.New(),
		OwnerID:     testOwner,
		Name:        "contract-test",
		TokenHash:   testPATHash(),
		TokenPrefix: testRawPAT[:mw.TokenPrefixLen],
		CreatedAt:   time.Now().UTC(),
	}
	s.tokens[seeded.ID] = seeded
	return s
}

func (s *memStore) Ping(_ context.Context) error { return nil }

func (s *memStore) CreateDocument(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *doc
	s.docs[doc.ID] = &cp
	return nil
}

func (s *memStore) GetDocument(_ context.Context, id uuid.UUID, ownerID string) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok || doc.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (s *memStore) ListDocuments(_ context.Context, filter store.DocumentFilter) ([]*models.Document, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Document
	for _, doc := range s.docs {
		if doc.OwnerID != filter.OwnerID || (filter.Kind != "" && doc.Kind != filter.Kind) {
			continue
		}
		if filter.Status != "" && doc.Status != filter.Status {
			continue
		}
		cp := *doc
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (s *memStore) DeleteDocument(_ context.Context, id uuid.UUID, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok || doc.OwnerID != ownerID {
		return store.ErrNotFound
	}
	delete(s.docs, id)
	delete(s.versions, id)
	return nil
}

func (s *memStore) UpdateDocumentStatus(_ context.Context, id uuid.UUID, status string, opts ...store.DocumentUpdateOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return store.ErrNotFound
	}
	allowed := false
	for _, next := range memTransitions[doc.Status] {
		if next == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, doc.Status, status)
	}
	params := store.NewUpdateParams(opts...)
	doc.Status = status
	if params.Results != nil {
		doc.Results = params.Results
		doc.Revision++
	}
	if params.ErrorMessage != nil {
		doc.Results = map[string]any{"error": *params.ErrorMessage}
	}
	doc.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memStore) SetProposalContent(_ context.Context, id uuid.UUID, content string, versionPtr int, expectedRevision int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return store.ErrNotFound
	}
	if expectedRevision >= 0 && doc.Revision != expectedRevision {
		return store.ErrRevisionConflict
	}
	if doc.Results == nil {
		doc.Results = map[string]any{}
	}
	doc.Results["formatted_proposal"] = content
	doc.VersionPtr = versionPtr
	doc.Revision++
	return nil
}

func (s *memStore) AppendVersion(_ context.Context, id uuid.UUID, content string, expectedRevision int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return 0, store.ErrNotFound
	}
	if expectedRevision >= 0 && doc.Revision != expectedRevision {
		return 0, store.ErrRevisionConflict
	}
	kept := s.versions[id]
	if doc.VersionPtr+1 < len(kept) {
		kept = kept[:doc.VersionPtr+1]
	}
	newIdx := len(kept)
	kept = append(kept, &models.VersionEntry{DocumentID: id, Index: newIdx, Content: content, CreatedAt: time.Now().UTC()})
	s.versions[id] = kept
	if doc.Results == nil {
		doc.Results = map[string]any{}
	}
	doc.Results["formatted_proposal"] = content
	doc.VersionPtr = newIdx
	doc.Revision++
	return newIdx, nil
}

func (s *memStore) ListVersions(_ context.Context, id uuid.UUID) ([]*models.VersionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.VersionEntry, len(s.versions[id]))
	copy(out, s.versions[id])
	return out, nil
}

func (s *memStore) CreateAccessToken(_ context.Context, token *models.AccessToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.tokens {
		if existing.OwnerID == token.OwnerID && existing.Name == token.Name && existing.RevokedAt == nil {
			return store.ErrDuplicateKey
		}
	}
	cp := *token
	s.tokens[token.ID] = &cp
	return nil
}

func (s *memStore) GetAccessTokensByPrefix(_ context.Context, prefix string) ([]*models.AccessToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.AccessToken
	for _, token := range s.tokens {
		if token.TokenPrefix == prefix && token.RevokedAt == nil {
			cp := *token
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) ListAccessTokens(_ context.Context, ownerID string) ([]*models.AccessToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.AccessToken
	for _, token := range s.tokens {
		if token.OwnerID == ownerID && token.RevokedAt == nil {
			cp := *token
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) RevokeAccessToken(_ context.Context, id uuid.UUID, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[id]
	if !ok || token.OwnerID != ownerID || token.RevokedAt != nil {
		return store.ErrNotFound
	}
	now := time.Now().UTC()
	token.RevokedAt = &now
	return nil
}

func (s *memStore) UpdateAccessTokenLastUsed(_ context.Context, _ uuid.UUID) error { return nil }

// --- in-memory cache ---

type memCache struct {
	mu       sync.Mutex
	statuses map[string]string
}

func newMemCache() *memCache {
	return &memCache{statuses: make(map[string]string)}
}

func (c *memCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *memCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (c *memCache) Delete(_ context.Context, _ string) error                         { return nil }
func (c *memCache) Ping(_ context.Context) error                                     { return nil }
func (c *memCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}
func (c *memCache) SetJobStatus(_ context.Context, ownerID string, docID uuid.UUID, status string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[ownerID+":"+docID.String()] = status
	return nil
}
func (c *memCache) GetJobStatus(_ context.Context, ownerID string, docID uuid.UUID) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.statuses[ownerID+":"+docID.String()]
	return s, ok, nil
}

type rejectAllVerifier struct{}

func (rejectAllVerifier) Verify(_ context.Context, _ string) (*mw.Identity, error) {
	return nil, mw.ErrTokenInvalid
}

// --- server under test ---

func newTestServer(t *testing.T) (http.Handler, *memStore) {
	t.Helper()
	return newTestServerWithProvider(t, mock.NewMockProvider())
}

func newTestServerWithProvider(t *testing.T, provider models.AIProvider) (http.Handler, *memStore) {
	t.Helper()

	st := newMemStore()
	ca := newMemCache()
	svc := docs.NewService(st, ca, provider, 5*time.Second)

	auth := mw.NewAuth(st, rejectAllVerifier{})
	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: mw.NewRateLimit(ca, 1000),

		MeHandler: handler.NewMeHandler(),

		CreateRiskAnalysis: handler.NewCreateRiskAnalysisHandler(svc, 5<<20),
		ListRiskAnalyses:   handler.NewListRiskAnalysesHandler(svc),
		GetRiskAnalysis:    handler.NewGetRiskAnalysisHandler(svc),
		RiskAnalysisStatus: handler.NewRiskAnalysisStatusHandler(svc),
		DeleteRiskAnalysis: handler.NewDeleteRiskAnalysisHandler(svc),
		GenerateProposal:   handler.NewGenerateProposalHandler(svc),

		CreateProposal:     handler.NewCreateProposalHandler(svc, 5<<20),
		ListProposals:      handler.NewListProposalsHandler(svc),
		GetProposal:        handler.NewGetProposalHandler(svc),
		ProposalStatus:     handler.NewProposalStatusHandler(svc),
		DeleteProposal:     handler.NewDeleteProposalHandler(svc),
		SaveProposal:       handler.NewSaveProposalHandler(svc),
		UpdateProposal:     handler.NewUpdateProposalHandler(svc, 5<<20),
		ProposalHistory:    handler.NewProposalHistoryHandler(svc),
		RestoreProposal:    handler.NewRestoreProposalHandler(svc),
		GenerateRiskReport: handler.NewGenerateRiskReportHandler(svc),

		CreateToken: handler.NewCreateTokenHandler(st),
		ListTokens:  handler.NewListTokensHandler(st),
		RevokeToken: handler.NewRevokeTokenHandler(st),
	}
	return api.NewRouter(deps), st
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Authorization", "Bearer "+testRawPAT)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type formFile struct {
	field, name, content string
}

// doForm sends a multipart form request with the given fields and an
// optional file part.
func doForm(t *testing.T, h http.Handler, method, path string, fields map[string]string, file *formFile) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mp := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mp.WriteField(k, v))
	}
	if file != nil {
		part, err := mp.CreateFormFile(file.field, file.name)
		require.NoError(t, err)
		_, err = part.Write([]byte(file.content))
		require.NoError(t, err)
	}
	require.NoError(t, mp.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+testRawPAT)
	req.Header.Set("Content-Type", mp.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// createProposal starts a from_text proposal generation.
func createProposal(t *testing.T, h http.Handler, text string) *httptest.ResponseRecorder {
	t.Helper()
	return doForm(t, h, http.MethodPost, "/api/proposals", map[string]string{
		"proposal_type": models.SubtypeFromText,
		"text":          text,
	}, nil)
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), "body: %s", rec.Body.String())
	return body.Data
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

// pollUntilTerminal polls GET until the document leaves pending/processing.
func pollUntilTerminal(t *testing.T, h http.Handler, path string) map[string]any {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		rec := doJSON(t, h, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		data := decodeData(t, rec)
		status := data["status"].(string)
		if status == models.StatusCompleted || status == models.StatusFailed {
			return data
		}
		select {
		case <-deadline:
			t.Fatalf("document at %s never reached a terminal status, still %s", path, status)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// --- auth ---

func TestContract_Unauthenticated(t *testing.T) {
	h, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/proposals", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHENTICATED", errorCode(t, rec))
}

func TestContract_Me(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/api/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeData(t, rec)
	assert.Equal(t, testOwner, data["user_id"])
	assert.Equal(t, mw.AuthMethodAccessToken, data["auth_method"])
}

// --- proposals ---

func TestContract_GenerateProposalLifecycle(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doForm(t, h, http.MethodPost, "/api/proposals", map[string]string{
		"proposal_type": models.SubtypeFromChat,
		"client_name":   "Acme Co",
	}, &formFile{field: "chat_file", name: "chat.txt", content: "client: I need a landing page by Friday."})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	data := decodeData(t, rec)
	assert.Equal(t, models.StatusPending, data["status"])
	assert.Equal(t, models.KindProposal, data["kind"])
	id := data["id"].(string)

	final := pollUntilTerminal(t, h, "/api/proposals/"+id)
	require.Equal(t, models.StatusCompleted, final["status"])

	results := final["results"].(map[string]any)
	assert.NotEmpty(t, results["formatted_proposal"])
	assert.EqualValues(t, 0, final["version_ptr"])
}

func TestContract_StatusEndpoint(t *testing.T) {
	h, _ := newTestServer(t)

	rec := createProposal(t, h, "client: I need a landing page.")
	require.Equal(t, http.StatusAccepted, rec.Code)
	id := decodeData(t, rec)["id"].(string)
	pollUntilTerminal(t, h, "/api/proposals/"+id)

	rec = doJSON(t, h, http.MethodGet, "/api/proposals/"+id+"/status", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decodeData(t, rec)
	assert.Equal(t, id, data["id"])
	assert.Equal(t, models.StatusCompleted, data["status"])

	// Unknown documents are a plain 404.
	rec = doJSON(t, h, http.MethodGet, "/api/proposals/"+uuid.NewString()+"/status", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestContract_CreateProposal_Validation(t *testing.T) {
	h, _ := newTestServer(t)

	// from_text without text.
	rec := doForm(t, h, http.MethodPost, "/api/proposals", map[string]string{
		"proposal_type": models.SubtypeFromText,
		"client_name":   "Acme Co",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION", errorCode(t, rec))

	// Unknown proposal_type.
	rec = doForm(t, h, http.MethodPost, "/api/proposals", map[string]string{
		"proposal_type": "from_dream",
		"text":          "a job",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// from_chat without client_name.
	rec = doForm(t, h, http.MethodPost, "/api/proposals", map[string]string{
		"proposal_type": models.SubtypeFromChat,
	}, &formFile{field: "chat_file", name: "chat.txt", content: "client: hi"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// from_chat without a file.
	rec = doForm(t, h, http.MethodPost, "/api/proposals", map[string]string{
		"proposal_type": models.SubtypeFromChat,
		"client_name":   "Acme Co",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestContract_ListProposals(t *testing.T) {
	h, _ := newTestServer(t)

	rec := createProposal(t, h, "client: small job")
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/proposals?page=1&limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []map[string]any `json:"data"`
		Meta struct {
			Page    int  `json:"page"`
			Limit   int  `json:"limit"`
			Total   int  `json:"total"`
			HasNext bool `json:"has_next"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Data, 1)
	assert.Equal(t, 1, body.Meta.Total)
	assert.False(t, body.Meta.HasNext)
}

func TestContract_SaveHistoryRestore(t *testing.T) {
	h, _ := newTestServer(t)

	rec := createProposal(t, h, "client: I need a landing page.")
	require.Equal(t, http.StatusAccepted, rec.Code)
	id := decodeData(t, rec)["id"].(string)
	pollUntilTerminal(t, h, "/api/proposals/"+id)

	// Manual save
	rec = doJSON(t, h, http.MethodPut, "/api/proposals/"+id+"/save", map[string]any{
		"formatted_proposal": "# Edited by hand",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	saved := decodeData(t, rec)
	assert.EqualValues(t, 1, saved["version_ptr"])

	// History shows both versions
	rec = doJSON(t, h, http.MethodGet, "/api/proposals/"+id+"/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	hist := decodeData(t, rec)
	versions := hist["versions"].([]any)
	require.Len(t, versions, 2)
	assert.EqualValues(t, 1, hist["current_version_index"])

	// Restore the original
	rec = doJSON(t, h, http.MethodPost, "/api/proposals/"+id+"/restore", map[string]any{
		"version_index": 0,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	restored := decodeData(t, rec)
	assert.EqualValues(t, 0, restored["version_ptr"])

	// Restore out of range
	rec = doJSON(t, h, http.MethodPost, "/api/proposals/"+id+"/restore", map[string]any{
		"version_index": 9,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION", errorCode(t, rec))
}

func TestContract_SaveRevisionConflict(t *testing.T) {
	h, _ := newTestServer(t)

	rec := createProposal(t, h, "client: I need a landing page.")
	require.Equal(t, http.StatusAccepted, rec.Code)
	id := decodeData(t, rec)["id"].(string)
	final := pollUntilTerminal(t, h, "/api/proposals/"+id)
	revision := int(final["revision"].(float64))

	rec = doJSON(t, h, http.MethodPut, "/api/proposals/"+id+"/save", map[string]any{
		"formatted_proposal": "# First writer",
		"expected_revision":  revision,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPut, "/api/proposals/"+id+"/save", map[string]any{
		"formatted_proposal": "# Second writer",
		"expected_revision":  revision,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "REVISION_CONFLICT", errorCode(t, rec))
}

func TestContract_PatchProposal(t *testing.T) {
	h, _ := newTestServer(t)

	rec := createProposal(t, h, "client: I need a landing page.")
	require.Equal(t, http.StatusAccepted, rec.Code)
	id := decodeData(t, rec)["id"].(string)
	pollUntilTerminal(t, h, "/api/proposals/"+id)

	rec = doForm(t, h, http.MethodPatch, "/api/proposals/"+id, map[string]string{
		"user_changes": "Make the timeline two weeks",
	}, nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, models.StatusProcessing, decodeData(t, rec)["status"])

	final := pollUntilTerminal(t, h, "/api/proposals/"+id)
	require.Equal(t, models.StatusCompleted, final["status"])
	assert.EqualValues(t, 1, final["version_ptr"])
}

func TestContract_PatchProposalWithChatFile(t *testing.T) {
	provider := mock.NewMockProvider()
	provider.UpdateProposalFunc = func(_ context.Context, current, _, newChat string) (string, error) {
		return current + "\n\nRevised against: " + newChat, nil
	}
	h, _ := newTestServerWithProvider(t, provider)

	rec := createProposal(t, h, "client: I need a landing page.")
	require.Equal(t, http.StatusAccepted, rec.Code)
	id := decodeData(t, rec)["id"].(string)
	pollUntilTerminal(t, h, "/api/proposals/"+id)

	rec = doForm(t, h, http.MethodPatch, "/api/proposals/"+id, map[string]string{
		"user_changes": "Fold in the new requirements",
	}, &formFile{field: "chat_file", name: "followup.txt", content: "client: actually I also need a contact form"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	final := pollUntilTerminal(t, h, "/api/proposals/"+id)
	require.Equal(t, models.StatusCompleted, final["status"])
	assert.EqualValues(t, 1, final["version_ptr"])

	// The uploaded file's text made it into the rewrite.
	results := final["results"].(map[string]any)
	assert.Contains(t, results["formatted_proposal"], "contact form")
}

func TestContract_PatchProposal_MissingChanges(t *testing.T) {
	h, _ := newTestServer(t)

	rec := createProposal(t, h, "client: I need a landing page.")
	require.Equal(t, http.StatusAccepted, rec.Code)
	id := decodeData(t, rec)["id"].(string)
	pollUntilTerminal(t, h, "/api/proposals/"+id)

	rec = doForm(t, h, http.MethodPatch, "/api/proposals/"+id, nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION", errorCode(t, rec))
}

func TestContract_SaveOnPendingProposal(t *testing.T) {
	h, st := newTestServer(t)

	// Seed a proposal that never left pending.
	id := uuid.MustParse("aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee")
	st.mu.Lock()
	st.docs[id] = &models.Document{
		ID:         id,
		OwnerID:    testOwner,
		Kind:       models.KindProposal,
		Subtype:    models.SubtypeFromChat,
		Status:     models.StatusPending,
		VersionPtr: -1,
	}
	st.mu.Unlock()

	rec := doJSON(t, h, http.MethodPut, "/api/proposals/"+id.String()+"/save", map[string]any{
		"formatted_proposal": "# Too early",
	})
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.Equal(t, "PRECONDITION_FAILED", errorCode(t, rec))
}

// --- risk analyses ---

func uploadChat(t *testing.T, h http.Handler, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	return doForm(t, h, http.MethodPost, "/api/risk-analysis", map[string]string{
		"analysis_type": models.SubtypeClientChatImport,
		"client_name":   "Acme Co",
	}, &formFile{field: "chat_file", name: filename, content: content})
}

func TestContract_RiskAnalysisLifecycle(t *testing.T) {
	h, _ := newTestServer(t)

	rec := uploadChat(t, h, "chat.txt", "client: can you do it cheaper?\nme: my rate is fixed")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	data := decodeData(t, rec)
	assert.Equal(t, models.KindRiskAnalysis, data["kind"])
	assert.Equal(t, "Acme Co", data["client_name"])
	id := data["id"].(string)

	final := pollUntilTerminal(t, h, "/api/risk-analysis/"+id)
	require.Equal(t, models.StatusCompleted, final["status"])
	results := final["results"].(map[string]any)
	assert.EqualValues(t, 4, results["risk_score"])
	assert.Equal(t, "YELLOW", results["risk_level"])
}

func TestContract_RiskAnalysisRejectsPDF(t *testing.T) {
	h, _ := newTestServer(t)

	rec := uploadChat(t, h, "chat.pdf", "%PDF-1.4 fake")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "UNPROCESSABLE_FILE", errorCode(t, rec))
}

func TestContract_CreateRiskAnalysis_Validation(t *testing.T) {
	h, _ := newTestServer(t)

	// analysis_type is required.
	rec := doForm(t, h, http.MethodPost, "/api/risk-analysis", map[string]string{
		"client_name": "Acme Co",
	}, &formFile{field: "chat_file", name: "chat.txt", content: "client: hi"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION", errorCode(t, rec))

	// Unknown analysis_type.
	rec = doForm(t, h, http.MethodPost, "/api/risk-analysis", map[string]string{
		"analysis_type": "tarot_reading",
		"client_name":   "Acme Co",
	}, &formFile{field: "chat_file", name: "chat.txt", content: "client: hi"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// client_chat_import needs a client_name.
	rec = doForm(t, h, http.MethodPost, "/api/risk-analysis", map[string]string{
		"analysis_type": models.SubtypeClientChatImport,
	}, &formFile{field: "chat_file", name: "chat.txt", content: "client: hi"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// The chat file itself is required.
	rec = doForm(t, h, http.MethodPost, "/api/risk-analysis", map[string]string{
		"analysis_type": models.SubtypeClientChatImport,
		"client_name":   "Acme Co",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestContract_GetRiskAnalysisWrongKind(t *testing.T) {
	h, _ := newTestServer(t)

	rec := createProposal(t, h, "client: hi")
	require.Equal(t, http.StatusAccepted, rec.Code)
	id := decodeData(t, rec)["id"].(string)

	// A proposal is not visible through the risk analysis routes.
	rec = doJSON(t, h, http.MethodGet, "/api/risk-analysis/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// --- cross-generation ---

func TestContract_GenerateProposalFromAnalysis(t *testing.T) {
	h, _ := newTestServer(t)

	rec := uploadChat(t, h, "chat.txt", "client: I need a landing page.")
	require.Equal(t, http.StatusAccepted, rec.Code)
	analysisID := decodeData(t, rec)["id"].(string)
	pollUntilTerminal(t, h, "/api/risk-analysis/"+analysisID)

	rec = doJSON(t, h, http.MethodPost, "/api/risk-analysis/"+analysisID+"/generate-proposal", nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	data := decodeData(t, rec)
	assert.Equal(t, models.KindProposal, data["kind"])
	proposalID := data["id"].(string)

	final := pollUntilTerminal(t, h, "/api/proposals/"+proposalID)
	assert.Equal(t, models.StatusCompleted, final["status"])
}

func TestContract_GenerateRiskReportFromProposal(t *testing.T) {
	h, _ := newTestServer(t)

	rec := createProposal(t, h, "client: I need a landing page.")
	require.Equal(t, http.StatusAccepted, rec.Code)
	proposalID := decodeData(t, rec)["id"].(string)
	pollUntilTerminal(t, h, "/api/proposals/"+proposalID)

	rec = doJSON(t, h, http.MethodPost, "/api/proposals/"+proposalID+"/generate-risk-report", nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	data := decodeData(t, rec)
	assert.Equal(t, models.KindRiskAnalysis, data["kind"])
	reportID := data["id"].(string)

	final := pollUntilTerminal(t, h, "/api/risk-analysis/"+reportID)
	assert.Equal(t, models.StatusCompleted, final["status"])
}

// --- tokens ---

func TestContract_TokenLifecycle(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/tokens", map[string]any{"name": "ci"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	data := decodeData(t, rec)
	plaintext := data["token"].(string)
	assert.True(t, len(plaintext) > mw.TokenPrefixLen)
	tokenID := data["id"].(string)

	// The new token authenticates requests.
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+plaintext)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Duplicate name is rejected.
	rec = doJSON(t, h, http.MethodPost, "/api/tokens", map[string]any{"name": "ci"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Revoke, then the token stops working.
	rec = doJSON(t, h, http.MethodDelete, "/api/tokens/"+tokenID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+plaintext)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// --- delete ---

func TestContract_DeleteProposal(t *testing.T) {
	h, _ := newTestServer(t)

	rec := createProposal(t, h, "client: hi")
	require.Equal(t, http.StatusAccepted, rec.Code)
	id := decodeData(t, rec)["id"].(string)
	pollUntilTerminal(t, h, "/api/proposals/"+id)

	rec = doJSON(t, h, http.MethodDelete, "/api/proposals/"+id, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/proposals/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
