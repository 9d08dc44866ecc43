package docs

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/freelyhq/freely-api/pkg/models"
)

// ProposalFromAnalysis generates a job proposal from the chat transcript
// captured on an existing risk analysis. The source analysis must have
// completed and must carry the full transcript; the new proposal goes
// through the normal pending/processing lifecycle.
func (s *Service) ProposalFromAnalysis(ctx context.Context, analysisID uuid.UUID, ownerID string) (*models.Document, error) {
	source, err := s.store.GetDocument(ctx, analysisID, ownerID)
	if err != nil {
		return nil, err
	}
	if source.Kind != models.KindRiskAnalysis {
		return nil, ErrWrongKind
	}
	if source.Status != models.StatusCompleted {
		return nil, ErrNotReady
	}
	if strings.TrimSpace(source.InputData.ChatContent) == "" {
		return nil, ErrNoSourceChat
	}

	clientName := source.ClientName
	if clientName == nil {
		name := "Untitled Proposal"
		clientName = &name
	}

	return s.CreateProposal(ctx, ownerID, ProposalParams{
		Subtype:    models.SubtypeFromChat,
		ClientName: clientName,
		Input:      forkInput(source.InputData),
	})
}

// RiskReportFromProposal generates a risk analysis from the chat transcript
// captured on an existing proposal.
func (s *Service) RiskReportFromProposal(ctx context.Context, proposalID uuid.UUID, ownerID string) (*models.Document, error) {
	source, err := s.store.GetDocument(ctx, proposalID, ownerID)
	if err != nil {
		return nil, err
	}
	if source.Kind != models.KindProposal {
		return nil, ErrWrongKind
	}
	if source.Status != models.StatusCompleted {
		return nil, ErrNotReady
	}
	if strings.TrimSpace(source.InputData.ChatContent) == "" {
		return nil, ErrNoSourceChat
	}

	clientName := source.ClientName
	if clientName == nil {
		name := "Untitled Analysis"
		clientName = &name
	}

	return s.CreateRiskAnalysis(ctx, ownerID, RiskAnalysisParams{
		Subtype:    models.SubtypeClientChatImport,
		ClientName: clientName,
		Input:      forkInput(source.InputData),
	})
}

// forkInput copies the source snapshot onto the derived document so each
// document stands alone after creation. Deleting the source never affects
// documents generated from it.
func forkInput(src models.InputData) models.InputData {
	return models.InputData{
		FileName:       src.FileName,
		FileSize:       src.FileSize,
		FileType:       src.FileType,
		ChatContent:    src.ChatContent,
		HasFullContent: src.HasFullContent,
	}
}
