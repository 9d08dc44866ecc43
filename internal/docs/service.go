// Package docs orchestrates document generation: risk analyses and job
// proposals produced asynchronously by an AI provider. Creation returns a
// pending document immediately; a background goroutine drives it to
// completed or failed, and clients poll until it gets there.
package docs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/freelyhq/freely-api/internal/cache"
	"github.com/freelyhq/freely-api/internal/store"
	"github.com/freelyhq/freely-api/pkg/models"
)

const statusTTL = 30 * time.Minute

// Service orchestrates document generation and lifecycle.
type Service struct {
	store    store.Store
	cache    cache.Cache
	provider models.AIProvider
	timeout  time.Duration
}

// NewService creates a new Service. timeout bounds a single provider call.
func NewService(st store.Store, ca cache.Cache, provider models.AIProvider, timeout time.Duration) *Service {
	return &Service{
		store:    st,
		cache:    ca,
		provider: provider,
		timeout:  timeout,
	}
}

// RiskAnalysisParams holds validated parameters for a risk analysis request.
type RiskAnalysisParams struct {
	Subtype    string
	ClientName *string
	Input      models.InputData
}

// ProposalParams holds validated parameters for a proposal request.
type ProposalParams struct {
	Subtype    string
	ClientName *string
	Input      models.InputData
}

// CreateRiskAnalysis creates a pending risk analysis document and dispatches
// generation in a background goroutine. Returns the document immediately
// without waiting for generation to complete.
func (s *Service) CreateRiskAnalysis(ctx context.Context, ownerID string, params RiskAnalysisParams) (*models.Document, error) {
	if strings.TrimSpace(params.Input.ChatContent) == "" {
		return nil, ErrEmptyContent
	}

	doc := &models.Document{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		Kind:       models.KindRiskAnalysis,
		Subtype:    params.Subtype,
		ClientName: params.ClientName,
		Status:     models.StatusPending,
		InputData:  params.Input,
		VersionPtr: -1,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}

	if err := s.store.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("creating document: %w", err)
	}

	_ = s.cache.SetJobStatus(ctx, ownerID, doc.ID, models.StatusPending, statusTTL)

	go s.runGeneration(doc.ID, ownerID, doc.Kind, params.Input.ChatContent)

	return doc, nil
}

// CreateProposal creates a pending proposal document and dispatches
// generation in a background goroutine.
func (s *Service) CreateProposal(ctx context.Context, ownerID string, params ProposalParams) (*models.Document, error) {
	if strings.TrimSpace(params.Input.ChatContent) == "" {
		return nil, ErrEmptyContent
	}

	doc := &models.Document{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		Kind:       models.KindProposal,
		Subtype:    params.Subtype,
		ClientName: params.ClientName,
		Status:     models.StatusPending,
		InputData:  params.Input,
		VersionPtr: -1,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}

	if err := s.store.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("creating document: %w", err)
	}

	_ = s.cache.SetJobStatus(ctx, ownerID, doc.ID, models.StatusPending, statusTTL)

	go s.runGeneration(doc.ID, ownerID, doc.Kind, params.Input.ChatContent)

	return doc, nil
}

// runGeneration performs the actual AI call in a goroutine. It recovers from
// panics and always leaves the document completed or failed.
func (s *Service) runGeneration(docID uuid.UUID, ownerID, kind, chatContent string) {
	ctx := context.Background()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in runGeneration", "error", r, "document_id", docID)
			s.markFailed(ctx, docID, ownerID, fmt.Sprintf("panic: %v", r))
		}
	}()

	_ = s.store.UpdateDocumentStatus(ctx, docID, models.StatusProcessing)
	_ = s.cache.SetJobStatus(ctx, ownerID, docID, models.StatusProcessing, statusTTL)

	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	switch kind {
	case models.KindRiskAnalysis:
		assessment, err := s.provider.AnalyzeRisk(genCtx, chatContent)
		if err != nil {
			s.markFailed(ctx, docID, ownerID, err.Error())
			return
		}
		if err := s.store.UpdateDocumentStatus(ctx, docID, models.StatusCompleted,
			store.WithResults(assessment.ToResults())); err != nil {
			slog.Error("storing risk assessment", "error", err, "document_id", docID)
			s.markFailed(ctx, docID, ownerID, fmt.Sprintf("storing results: %v", err))
			return
		}

	case models.KindProposal:
		draft, err := s.provider.GenerateProposal(genCtx, chatContent)
		if err != nil {
			s.markFailed(ctx, docID, ownerID, err.Error())
			return
		}
		// Seed the version log before the document turns completed, so a
		// client that sees completed can always save and restore against
		// version 0.
		if _, err := s.store.AppendVersion(ctx, docID, draft.FormattedProposal, -1); err != nil {
			slog.Error("seeding version history", "error", err, "document_id", docID)
			s.markFailed(ctx, docID, ownerID, fmt.Sprintf("storing proposal: %v", err))
			return
		}
		if err := s.store.UpdateDocumentStatus(ctx, docID, models.StatusCompleted,
			store.WithResults(draft.ToResults())); err != nil {
			slog.Error("storing proposal", "error", err, "document_id", docID)
			s.markFailed(ctx, docID, ownerID, fmt.Sprintf("storing results: %v", err))
			return
		}

	default:
		s.markFailed(ctx, docID, ownerID, fmt.Sprintf("unknown document kind %q", kind))
		return
	}

	_ = s.cache.SetJobStatus(ctx, ownerID, docID, models.StatusCompleted, statusTTL)
}

func (s *Service) markFailed(ctx context.Context, docID uuid.UUID, ownerID, msg string) {
	if err := s.store.UpdateDocumentStatus(ctx, docID, models.StatusFailed,
		store.WithErrorMessage(msg)); err != nil {
		slog.Error("marking document failed", "error", err, "document_id", docID)
	}
	_ = s.cache.SetJobStatus(ctx, ownerID, docID, models.StatusFailed, statusTTL)
}

// Get returns a single document scoped to its owner.
func (s *Service) Get(ctx context.Context, id uuid.UUID, ownerID string) (*models.Document, error) {
	return s.store.GetDocument(ctx, id, ownerID)
}

// List returns the owner's documents matching the filter plus a total count.
func (s *Service) List(ctx context.Context, filter store.DocumentFilter) ([]*models.Document, int, error) {
	return s.store.ListDocuments(ctx, filter)
}

// Status returns the document's generation status, preferring the cache over
// a database read. Used by polling clients.
func (s *Service) Status(ctx context.Context, id uuid.UUID, ownerID string) (string, error) {
	if status, ok, err := s.cache.GetJobStatus(ctx, ownerID, id); err == nil && ok {
		return status, nil
	}

	doc, err := s.store.GetDocument(ctx, id, ownerID)
	if err != nil {
		return "", err
	}
	return doc.Status, nil
}

// Delete removes a document and its version history.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, ownerID string) error {
	if err := s.store.DeleteDocument(ctx, id, ownerID); err != nil {
		return err
	}
	_ = s.cache.Delete(ctx, cache.JobStatusKey(ownerID, id))
	return nil
}
