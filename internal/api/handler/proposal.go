package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	mw "github.com/freelyhq/freely-api/internal/api/middleware"
	"github.com/freelyhq/freely-api/internal/api/response"
	"github.com/freelyhq/freely-api/internal/docs"
	"github.com/freelyhq/freely-api/pkg/models"
)

// NewCreateProposalHandler returns an http.HandlerFunc for
// POST /api/proposals. The request is multipart form data with a
// "proposal_type" field; from_chat requires "client_name" and a "chat_file"
// part, from_text carries free-form notes in a "text" field.
func NewCreateProposalHandler(svc DocumentService, maxFileBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := mw.GetOwnerID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Missing identity", nil)
			return
		}

		if !parseUploadForm(w, r, maxFileBytes) {
			return
		}

		subtype := strings.TrimSpace(r.FormValue("proposal_type"))
		switch subtype {
		case models.SubtypeFromChat, models.SubtypeFromText:
		case "":
			response.Error(w, http.StatusBadRequest, "VALIDATION", "proposal_type is required", nil)
			return
		default:
			response.Error(w, http.StatusBadRequest, "VALIDATION",
				"Invalid proposal_type. Must be one of: from_chat, from_text", nil)
			return
		}

		clientName := optionalFormValue(r, "client_name")

		var input models.InputData
		switch subtype {
		case models.SubtypeFromChat:
			if clientName == nil {
				response.Error(w, http.StatusBadRequest, "VALIDATION",
					"client_name is required for from_chat", nil)
				return
			}
			var ok bool
			input, ok = readChatFile(w, r, maxFileBytes, true)
			if !ok {
				return
			}
		case models.SubtypeFromText:
			text := strings.TrimSpace(r.FormValue("text"))
			if text == "" {
				response.Error(w, http.StatusBadRequest, "VALIDATION",
					"text is required for from_text", nil)
				return
			}
			input = models.InputData{
				ChatContent:    text,
				HasFullContent: true,
			}
		}

		doc, err := svc.CreateProposal(r.Context(), ownerID, docs.ProposalParams{
			Subtype:    subtype,
			ClientName: clientName,
			Input:      input,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		response.Accepted(w, doc)
	}
}

// NewListProposalsHandler returns an http.HandlerFunc for GET /api/proposals.
func NewListProposalsHandler(svc DocumentService) http.HandlerFunc {
	return newListHandler(svc, models.KindProposal)
}

// NewGetProposalHandler returns an http.HandlerFunc for GET /api/proposals/{id}.
func NewGetProposalHandler(svc DocumentService) http.HandlerFunc {
	return newGetHandler(svc, models.KindProposal)
}

// NewProposalStatusHandler returns an http.HandlerFunc for GET /api/proposals/{id}/status.
func NewProposalStatusHandler(svc DocumentService) http.HandlerFunc {
	return newStatusHandler(svc)
}

// NewDeleteProposalHandler returns an http.HandlerFunc for DELETE /api/proposals/{id}.
func NewDeleteProposalHandler(svc DocumentService) http.HandlerFunc {
	return newDeleteHandler(svc, models.KindProposal)
}

// NewSaveProposalHandler returns an http.HandlerFunc for
// PUT /api/proposals/{id}/save. Saves a manual edit as a new version.
func NewSaveProposalHandler(svc DocumentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := mw.GetOwnerID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Missing identity", nil)
			return
		}
		id, ok := parseDocumentID(w, r)
		if !ok {
			return
		}

		var req struct {
			FormattedProposal string `json:"formatted_proposal"`
			ExpectedRevision  *int   `json:"expected_revision"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION", "Invalid JSON body", nil)
			return
		}

		doc, err := svc.SaveEdit(r.Context(), id, ownerID, req.FormattedProposal, revisionOrSkip(req.ExpectedRevision))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		response.JSON(w, doc)
	}
}

// NewProposalHistoryHandler returns an http.HandlerFunc for
// GET /api/proposals/{id}/history.
func NewProposalHistoryHandler(svc DocumentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := mw.GetOwnerID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Missing identity", nil)
			return
		}
		id, ok := parseDocumentID(w, r)
		if !ok {
			return
		}

		doc, entries, err := svc.History(r.Context(), id, ownerID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if entries == nil {
			entries = []*models.VersionEntry{}
		}

		response.JSON(w, historyResponse{
			Versions:            entries,
			CurrentVersionIndex: doc.VersionPtr,
			Revision:            doc.Revision,
		})
	}
}

type historyResponse struct {
	Versions            []*models.VersionEntry `json:"versions"`
	CurrentVersionIndex int                    `json:"current_version_index"`
	Revision            int                    `json:"revision"`
}

// NewRestoreProposalHandler returns an http.HandlerFunc for
// POST /api/proposals/{id}/restore.
func NewRestoreProposalHandler(svc DocumentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := mw.GetOwnerID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Missing identity", nil)
			return
		}
		id, ok := parseDocumentID(w, r)
		if !ok {
			return
		}

		var req struct {
			VersionIndex     *int `json:"version_index"`
			ExpectedRevision *int `json:"expected_revision"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION", "Invalid JSON body", nil)
			return
		}
		if req.VersionIndex == nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION", "version_index is required", nil)
			return
		}

		doc, err := svc.Restore(r.Context(), id, ownerID, *req.VersionIndex, revisionOrSkip(req.ExpectedRevision))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		response.JSON(w, doc)
	}
}

// NewUpdateProposalHandler returns an http.HandlerFunc for
// PATCH /api/proposals/{id}. The request is multipart form data with a
// "user_changes" field and an optional "chat_file" part carrying fresh
// client chat to ground the rewrite. The proposal re-enters processing
// while the AI applies the requested changes; poll GET until it completes.
func NewUpdateProposalHandler(svc DocumentService, maxFileBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := mw.GetOwnerID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Missing identity", nil)
			return
		}
		id, ok := parseDocumentID(w, r)
		if !ok {
			return
		}

		if !parseUploadForm(w, r, maxFileBytes) {
			return
		}

		userChanges := strings.TrimSpace(r.FormValue("user_changes"))
		if userChanges == "" {
			response.Error(w, http.StatusBadRequest, "VALIDATION", "user_changes is required", nil)
			return
		}

		input, ok := readChatFile(w, r, maxFileBytes, false)
		if !ok {
			return
		}

		doc, err := svc.UpdateWithAI(r.Context(), id, ownerID, userChanges, input.ChatContent)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		response.Accepted(w, doc)
	}
}

// NewGenerateRiskReportHandler returns an http.HandlerFunc for
// POST /api/proposals/{id}/generate-risk-report.
func NewGenerateRiskReportHandler(svc DocumentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := mw.GetOwnerID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Missing identity", nil)
			return
		}
		id, ok := parseDocumentID(w, r)
		if !ok {
			return
		}

		doc, err := svc.RiskReportFromProposal(r.Context(), id, ownerID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		response.Accepted(w, doc)
	}
}

// revisionOrSkip turns an optional expected_revision into the store
// convention where negative means unchecked.
func revisionOrSkip(rev *int) int {
	if rev == nil {
		return -1
	}
	return *rev
}
