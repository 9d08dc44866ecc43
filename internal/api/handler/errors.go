package handler

import (
	"errors"
	"net/http"

	"github.com/freelyhq/freely-api/internal/api/response"
	"github.com/freelyhq/freely-api/internal/docs"
	"github.com/freelyhq/freely-api/internal/extract"
	"github.com/freelyhq/freely-api/internal/store"
)

// writeServiceError maps service-layer errors onto the API error envelope.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, docs.ErrWrongKind):
		response.Error(w, http.StatusNotFound, "NOT_FOUND",
			"Document not found", nil)
	case errors.Is(err, docs.ErrNotReady):
		response.Error(w, http.StatusPreconditionFailed, "PRECONDITION_FAILED",
			"Document generation has not completed", nil)
	case errors.Is(err, docs.ErrNoSourceChat):
		response.Error(w, http.StatusPreconditionFailed, "PRECONDITION_FAILED",
			"Source document has no stored chat content", nil)
	case errors.Is(err, docs.ErrVersionRange):
		response.Error(w, http.StatusBadRequest, "VALIDATION",
			"Version index is out of range", nil)
	case errors.Is(err, docs.ErrEmptyContent):
		response.Error(w, http.StatusBadRequest, "VALIDATION",
			"Content must not be empty", nil)
	case errors.Is(err, store.ErrRevisionConflict):
		response.Error(w, http.StatusConflict, "REVISION_CONFLICT",
			"Document was modified by another request; refetch and retry", nil)
	case errors.Is(err, extract.ErrUnsupportedType), errors.Is(err, extract.ErrUndecodable):
		response.Error(w, http.StatusUnprocessableEntity, "UNPROCESSABLE_FILE",
			err.Error(), nil)
	default:
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}
