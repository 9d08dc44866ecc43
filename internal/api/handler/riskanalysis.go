package handler

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/freelyhq/freely-api/internal/api/middleware"
	"github.com/freelyhq/freely-api/internal/api/response"
	"github.com/freelyhq/freely-api/internal/docs"
	"github.com/freelyhq/freely-api/internal/extract"
	"github.com/freelyhq/freely-api/internal/store"
	"github.com/freelyhq/freely-api/pkg/models"
)

// DocumentService defines the interface the document handlers depend on.
type DocumentService interface {
	CreateRiskAnalysis(ctx context.Context, ownerID string, params docs.RiskAnalysisParams) (*models.Document, error)
	CreateProposal(ctx context.Context, ownerID string, params docs.ProposalParams) (*models.Document, error)
	Get(ctx context.Context, id uuid.UUID, ownerID string) (*models.Document, error)
	List(ctx context.Context, filter store.DocumentFilter) ([]*models.Document, int, error)
	Status(ctx context.Context, id uuid.UUID, ownerID string) (string, error)
	Delete(ctx context.Context, id uuid.UUID, ownerID string) error

	History(ctx context.Context, id uuid.UUID, ownerID string) (*models.Document, []*models.VersionEntry, error)
	SaveEdit(ctx context.Context, id uuid.UUID, ownerID, content string, expectedRevision int) (*models.Document, error)
	Restore(ctx context.Context, id uuid.UUID, ownerID string, index, expectedRevision int) (*models.Document, error)
	UpdateWithAI(ctx context.Context, id uuid.UUID, ownerID, userChanges, newChatContent string) (*models.Document, error)

	ProposalFromAnalysis(ctx context.Context, analysisID uuid.UUID, ownerID string) (*models.Document, error)
	RiskReportFromProposal(ctx context.Context, proposalID uuid.UUID, ownerID string) (*models.Document, error)
}

// NewCreateRiskAnalysisHandler returns an http.HandlerFunc for
// POST /api/risk-analysis. The request is multipart form data with an
// "analysis_type" field, a "chat_file" part holding the exported client
// chat, and a "client_name" field (required for client_chat_import).
func NewCreateRiskAnalysisHandler(svc DocumentService, maxFileBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := mw.GetOwnerID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Missing identity", nil)
			return
		}

		if !parseUploadForm(w, r, maxFileBytes) {
			return
		}

		subtype := strings.TrimSpace(r.FormValue("analysis_type"))
		switch subtype {
		case models.SubtypeClientChatImport, models.SubtypeJobProposal:
		case "":
			response.Error(w, http.StatusBadRequest, "VALIDATION", "analysis_type is required", nil)
			return
		default:
			response.Error(w, http.StatusBadRequest, "VALIDATION",
				"Invalid analysis_type. Must be one of: client_chat_import, job_proposal", nil)
			return
		}

		clientName := optionalFormValue(r, "client_name")
		if subtype == models.SubtypeClientChatImport && clientName == nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION",
				"client_name is required for client_chat_import", nil)
			return
		}

		input, ok := readChatFile(w, r, maxFileBytes, true)
		if !ok {
			return
		}

		doc, err := svc.CreateRiskAnalysis(r.Context(), ownerID, docs.RiskAnalysisParams{
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

// parseUploadForm caps the request body and parses it as multipart form
// data, reporting any problem straight onto the response writer.
func parseUploadForm(w http.ResponseWriter, r *http.Request, maxFileBytes int64) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxFileBytes+64<<10)
	if err := r.ParseMultipartForm(maxFileBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(w, http.StatusBadRequest, "VALIDATION", "Uploaded file is too large", nil)
		} else {
			response.Error(w, http.StatusBadRequest, "VALIDATION", "Expected multipart form data", nil)
		}
		return false
	}
	return true
}

// readChatFile pulls the "chat_file" part out of an already-parsed multipart
// form and extracts its text. When required is false a missing part is not
// an error and the zero InputData is returned.
func readChatFile(w http.ResponseWriter, r *http.Request, maxFileBytes int64, required bool) (models.InputData, bool) {
	file, header, err := r.FormFile("chat_file")
	if err != nil {
		if !required {
			return models.InputData{}, true
		}
		response.Error(w, http.StatusBadRequest, "VALIDATION", "chat_file is required", nil)
		return models.InputData{}, false
	}
	defer file.Close()

	data, err := readAll(file, maxFileBytes)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION", "Uploaded file is too large", nil)
		return models.InputData{}, false
	}

	text, err := extract.Text(header.Filename, data)
	if err != nil {
		writeServiceError(w, err)
		return models.InputData{}, false
	}
	if strings.TrimSpace(text) == "" {
		response.Error(w, http.StatusUnprocessableEntity, "UNPROCESSABLE_FILE",
			"Uploaded file contains no text", nil)
		return models.InputData{}, false
	}

	input := models.InputData{
		FileName:       header.Filename,
		FileSize:       int64(len(data)),
		FileType:       strings.TrimPrefix(filepath.Ext(header.Filename), "."),
		ChatContent:    text,
		HasFullContent: true,
	}
	return input, true
}

// optionalFormValue returns a trimmed form value, or nil when absent.
func optionalFormValue(r *http.Request, key string) *string {
	if v := strings.TrimSpace(r.FormValue(key)); v != "" {
		return &v
	}
	return nil
}

func readAll(file multipart.File, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, errors.New("file exceeds size limit")
	}
	return data, nil
}

// NewListRiskAnalysesHandler returns an http.HandlerFunc for GET /api/risk-analysis.
func NewListRiskAnalysesHandler(svc DocumentService) http.HandlerFunc {
	return newListHandler(svc, models.KindRiskAnalysis)
}

// NewGetRiskAnalysisHandler returns an http.HandlerFunc for GET /api/risk-analysis/{id}.
func NewGetRiskAnalysisHandler(svc DocumentService) http.HandlerFunc {
	return newGetHandler(svc, models.KindRiskAnalysis)
}

// NewRiskAnalysisStatusHandler returns an http.HandlerFunc for GET /api/risk-analysis/{id}/status.
func NewRiskAnalysisStatusHandler(svc DocumentService) http.HandlerFunc {
	return newStatusHandler(svc)
}

// NewDeleteRiskAnalysisHandler returns an http.HandlerFunc for DELETE /api/risk-analysis/{id}.
func NewDeleteRiskAnalysisHandler(svc DocumentService) http.HandlerFunc {
	return newDeleteHandler(svc, models.KindRiskAnalysis)
}

// NewGenerateProposalHandler returns an http.HandlerFunc for
// POST /api/risk-analysis/{id}/generate-proposal.
func NewGenerateProposalHandler(svc DocumentService) http.HandlerFunc {
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

		doc, err := svc.ProposalFromAnalysis(r.Context(), id, ownerID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		response.Accepted(w, doc)
	}
}

// parseDocumentID reads the {id} route parameter as a UUID.
func parseDocumentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION", "id must be a valid UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}
