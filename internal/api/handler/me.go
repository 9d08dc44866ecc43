package handler

import (
	"net/http"

	mw "github.com/freelyhq/freely-api/internal/api/middleware"
	"github.com/freelyhq/freely-api/internal/api/response"
)

// NewMeHandler returns an http.HandlerFunc for GET /api/me. It echoes the
// authenticated identity so clients can confirm their credentials.
func NewMeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := mw.GetOwnerID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Missing identity", nil)
			return
		}
		method, _ := mw.GetAuthMethod(r)

		response.JSON(w, meResponse{
			UserID:     ownerID,
			AuthMethod: method,
		})
	}
}

type meResponse struct {
	UserID     string `json:"user_id"`
	AuthMethod string `json:"auth_method"`
}
