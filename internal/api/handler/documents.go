package handler

import (
	"net/http"
	"strconv"

	mw "github.com/freelyhq/freely-api/internal/api/middleware"
	"github.com/freelyhq/freely-api/internal/api/response"
	"github.com/freelyhq/freely-api/internal/store"
	"github.com/freelyhq/freely-api/pkg/models"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// newListHandler lists the owner's documents of one kind, newest first, with
// optional ?status= filtering and page/limit pagination.
func newListHandler(svc DocumentService, kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := mw.GetOwnerID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Missing identity", nil)
			return
		}

		page := queryInt(r, "page", 1)
		if page < 1 {
			page = 1
		}
		limit := queryInt(r, "limit", defaultPageLimit)
		if limit < 1 {
			limit = defaultPageLimit
		}
		if limit > maxPageLimit {
			limit = maxPageLimit
		}

		status := r.URL.Query().Get("status")
		switch status {
		case "", models.StatusPending, models.StatusProcessing, models.StatusCompleted, models.StatusFailed:
		default:
			response.Error(w, http.StatusBadRequest, "VALIDATION", "invalid status filter", nil)
			return
		}

		items, total, err := svc.List(r.Context(), store.DocumentFilter{
			OwnerID: ownerID,
			Kind:    kind,
			Status:  status,
			Page:    page,
			Limit:   limit,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if items == nil {
			items = []*models.Document{}
		}

		response.Collection(w, items, response.PaginationMeta{
			Page:    page,
			Limit:   limit,
			Total:   total,
			HasNext: page*limit < total,
		})
	}
}

func newGetHandler(svc DocumentService, kind string) http.HandlerFunc {
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

		doc, err := svc.Get(r.Context(), id, ownerID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if doc.Kind != kind {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Document not found", nil)
			return
		}
		response.JSON(w, doc)
	}
}

// newStatusHandler serves the lightweight polling endpoint. It reads the
// cached job status when one exists, so pollers skip the database while a
// generation run is in flight.
func newStatusHandler(svc DocumentService) http.HandlerFunc {
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

		status, err := svc.Status(r.Context(), id, ownerID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		response.JSON(w, statusResponse{ID: id.String(), Status: status})
	}
}

type statusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func newDeleteHandler(svc DocumentService, kind string) http.HandlerFunc {
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

		doc, err := svc.Get(r.Context(), id, ownerID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if doc.Kind != kind {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Document not found", nil)
			return
		}

		if err := svc.Delete(r.Context(), id, ownerID); err != nil {
			writeServiceError(w, err)
			return
		}
		response.NoContent(w)
	}
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
