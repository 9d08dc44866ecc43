package docs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/freelyhq/freely-api/pkg/models"
)

// History returns the proposal's full version log oldest first, along with
// the document itself so callers can read the current pointer.
func (s *Service) History(ctx context.Context, id uuid.UUID, ownerID string) (*models.Document, []*models.VersionEntry, error) {
	doc, err := s.editableProposal(ctx, id, ownerID)
	if err != nil {
		return nil, nil, err
	}

	entries, err := s.store.ListVersions(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("listing versions: %w", err)
	}
	return doc, entries, nil
}

// SaveEdit records a manual edit to the proposal text. Entries past the
// current pointer are discarded, the new content becomes the tail, and the
// pointer moves to it. Saving content identical to the live proposal is a
// no-op. expectedRevision guards against concurrent writers; pass a negative
// value to skip the check.
func (s *Service) SaveEdit(ctx context.Context, id uuid.UUID, ownerID, content string, expectedRevision int) (*models.Document, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	doc, err := s.editableProposal(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	if doc.FormattedProposal() == content {
		return doc, nil
	}

	if _, err := s.store.AppendVersion(ctx, id, content, expectedRevision); err != nil {
		return nil, err
	}

	return s.store.GetDocument(ctx, id, ownerID)
}

// Restore moves the version pointer to an existing history entry and makes
// that entry's content the live proposal. The log itself is untouched, so a
// later restore can move forward again; only the next SaveEdit truncates.
func (s *Service) Restore(ctx context.Context, id uuid.UUID, ownerID string, index, expectedRevision int) (*models.Document, error) {
	doc, err := s.editableProposal(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	entries, err := s.store.ListVersions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("listing versions: %w", err)
	}
	if index < 0 || index >= len(entries) {
		return nil, fmt.Errorf("%w: index %d, history length %d", ErrVersionRange, index, len(entries))
	}

	if index == doc.VersionPtr {
		return doc, nil
	}

	if err := s.store.SetProposalContent(ctx, id, entries[index].Content, index, expectedRevision); err != nil {
		return nil, err
	}

	return s.store.GetDocument(ctx, id, ownerID)
}

// UpdateWithAI applies the user's change instructions to the live proposal
// through the AI provider. The document re-enters processing and the client
// polls for completion, same as initial generation. The revised text is
// appended to the version log like a manual save.
func (s *Service) UpdateWithAI(ctx context.Context, id uuid.UUID, ownerID, userChanges, newChatContent string) (*models.Document, error) {
	if strings.TrimSpace(userChanges) == "" {
		return nil, ErrEmptyContent
	}

	doc, err := s.editableProposal(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	current := doc.FormattedProposal()
	if strings.TrimSpace(current) == "" {
		return nil, ErrNotReady
	}

	if err := s.store.UpdateDocumentStatus(ctx, id, models.StatusProcessing); err != nil {
		return nil, fmt.Errorf("updating status: %w", err)
	}
	_ = s.cache.SetJobStatus(ctx, ownerID, id, models.StatusProcessing, statusTTL)

	go s.runProposalUpdate(id, ownerID, current, userChanges, newChatContent)

	doc.Status = models.StatusProcessing
	return doc, nil
}

func (s *Service) runProposalUpdate(docID uuid.UUID, ownerID, current, userChanges, newChatContent string) {
	ctx := context.Background()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in runProposalUpdate", "error", r, "document_id", docID)
			s.markFailed(ctx, docID, ownerID, fmt.Sprintf("panic: %v", r))
		}
	}()

	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	updated, err := s.provider.UpdateProposal(genCtx, current, userChanges, newChatContent)
	if err != nil {
		s.markFailed(ctx, docID, ownerID, err.Error())
		return
	}

	if _, err := s.store.AppendVersion(ctx, docID, updated, -1); err != nil {
		slog.Error("appending updated proposal", "error", err, "document_id", docID)
		s.markFailed(ctx, docID, ownerID, fmt.Sprintf("storing update: %v", err))
		return
	}

	if err := s.store.UpdateDocumentStatus(ctx, docID, models.StatusCompleted); err != nil {
		slog.Error("completing proposal update", "error", err, "document_id", docID)
		s.markFailed(ctx, docID, ownerID, fmt.Sprintf("completing update: %v", err))
		return
	}
	_ = s.cache.SetJobStatus(ctx, ownerID, docID, models.StatusCompleted, statusTTL)
}

// editableProposal loads the document and verifies it is a proposal whose
// generation has completed.
func (s *Service) editableProposal(ctx context.Context, id uuid.UUID, ownerID string) (*models.Document, error) {
	doc, err := s.store.GetDocument(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	if doc.Kind != models.KindProposal {
		return nil, ErrWrongKind
	}
	if doc.Status != models.StatusCompleted {
		return nil, ErrNotReady
	}
	return doc, nil
}
