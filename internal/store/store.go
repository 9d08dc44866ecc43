package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/freelyhq/freely-api/pkg/models"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrDuplicateKey      = errors.New("duplicate key violation")
	ErrInvalidTransition = errors.New("invalid document status transition")
	ErrRevisionConflict  = errors.New("document revision conflict")
)

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id uuid.UUID, ownerID string) (*models.Document, error)
	ListDocuments(ctx context.Context, filter DocumentFilter) ([]*models.Document, int, error)
	DeleteDocument(ctx context.Context, id uuid.UUID, ownerID string) error
	UpdateDocumentStatus(ctx context.Context, id uuid.UUID, status string, opts ...DocumentUpdateOption) error

	// SetProposalContent replaces the live formatted proposal and moves the
	// version pointer without touching the stored version log. Used by restore.
	// expectedRevision guards against concurrent edits; pass a negative value
	// to skip the check.
	SetProposalContent(ctx context.Context, id uuid.UUID, content string, versionPtr int, expectedRevision int) error

	// AppendVersion truncates every version entry past the document's current
	// pointer, appends content at the new tail, and advances the pointer to it,
	// all in one transaction. Also updates the live formatted proposal.
	// Returns the index of the appended entry.
	AppendVersion(ctx context.Context, id uuid.UUID, content string, expectedRevision int) (int, error)

	ListVersions(ctx context.Context, id uuid.UUID) ([]*models.VersionEntry, error)

	CreateAccessToken(ctx context.Context, token *models.AccessToken) error
	GetAccessTokensByPrefix(ctx context.Context, prefix string) ([]*models.AccessToken, error)
	ListAccessTokens(ctx context.Context, ownerID string) ([]*models.AccessToken, error)
	RevokeAccessToken(ctx context.Context, id uuid.UUID, ownerID string) error
	UpdateAccessTokenLastUsed(ctx context.Context, id uuid.UUID) error
}

// DocumentFilter scopes and paginates document listings.
type DocumentFilter struct {
	OwnerID string
	Kind    string
	Status  string
	Page    int
	Limit   int
}

// NewUpdateParams applies opts and returns the resulting parameters.
func NewUpdateParams(opts ...DocumentUpdateOption) DocumentUpdateParams {
	p := DocumentUpdateParams{}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// DocumentUpdateParams is the resolved set of optional fields for a status
// update.
type DocumentUpdateParams struct {
	Results      map[string]any
	ErrorMessage *string
}

type DocumentUpdateOption func(*DocumentUpdateParams)

// WithResults stores the structured generation output alongside the status change.
func WithResults(results map[string]any) DocumentUpdateOption {
	return func(p *DocumentUpdateParams) {
		p.Results = results
	}
}

// WithErrorMessage records a diagnostic as results.error alongside the status change.
func WithErrorMessage(msg string) DocumentUpdateOption {
	return func(p *DocumentUpdateParams) {
		p.ErrorMessage = &msg
	}
}
