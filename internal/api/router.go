package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/freelyhq/freely-api/internal/api/middleware"
	"github.com/freelyhq/freely-api/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc
	MeHandler     http.HandlerFunc

	CreateRiskAnalysis http.HandlerFunc
	ListRiskAnalyses   http.HandlerFunc
	GetRiskAnalysis    http.HandlerFunc
	RiskAnalysisStatus http.HandlerFunc
	DeleteRiskAnalysis http.HandlerFunc
	GenerateProposal   http.HandlerFunc

	CreateProposal     http.HandlerFunc
	ListProposals      http.HandlerFunc
	GetProposal        http.HandlerFunc
	ProposalStatus     http.HandlerFunc
	DeleteProposal     http.HandlerFunc
	SaveProposal       http.HandlerFunc
	UpdateProposal     http.HandlerFunc
	ProposalHistory    http.HandlerFunc
	RestoreProposal    http.HandlerFunc
	GenerateRiskReport http.HandlerFunc

	CreateToken http.HandlerFunc
	ListTokens  http.HandlerFunc
	RevokeToken http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/health", orNotImplemented(deps.HealthHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Get("/api/me", orNotImplemented(deps.MeHandler))

		r.Post("/api/risk-analysis", orNotImplemented(deps.CreateRiskAnalysis))
		r.Get("/api/risk-analysis", orNotImplemented(deps.ListRiskAnalyses))
		r.Get("/api/risk-analysis/{id}", orNotImplemented(deps.GetRiskAnalysis))
		r.Get("/api/risk-analysis/{id}/status", orNotImplemented(deps.RiskAnalysisStatus))
		r.Delete("/api/risk-analysis/{id}", orNotImplemented(deps.DeleteRiskAnalysis))
		r.Post("/api/risk-analysis/{id}/generate-proposal", orNotImplemented(deps.GenerateProposal))

		r.Post("/api/proposals", orNotImplemented(deps.CreateProposal))
		r.Get("/api/proposals", orNotImplemented(deps.ListProposals))
		r.Get("/api/proposals/{id}", orNotImplemented(deps.GetProposal))
		r.Get("/api/proposals/{id}/status", orNotImplemented(deps.ProposalStatus))
		r.Patch("/api/proposals/{id}", orNotImplemented(deps.UpdateProposal))
		r.Delete("/api/proposals/{id}", orNotImplemented(deps.DeleteProposal))
		r.Put("/api/proposals/{id}/save", orNotImplemented(deps.SaveProposal))
		r.Get("/api/proposals/{id}/history", orNotImplemented(deps.ProposalHistory))
		r.Post("/api/proposals/{id}/restore", orNotImplemented(deps.RestoreProposal))
		r.Post("/api/proposals/{id}/generate-risk-report", orNotImplemented(deps.GenerateRiskReport))

		r.Post("/api/tokens", orNotImplemented(deps.CreateToken))
		r.Get("/api/tokens", orNotImplemented(deps.ListTokens))
		r.Delete("/api/tokens/{id}", orNotImplemented(deps.RevokeToken))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
