// Package models contains shared data models used across the Freely codebase.
package models

import "context"

// AIProvider is the core interface that all AI integrations must implement.
// Never call specific AI providers directly — always inject this interface.
type AIProvider interface {
	// AnalyzeRisk assesses a client chat transcript and returns a structured
	// risk assessment for the freelancer.
	AnalyzeRisk(ctx context.Context, clientChat string) (RiskAssessment, error)
	// GenerateProposal turns a client chat transcript into a structured job
	// proposal with a client-ready formatted document.
	GenerateProposal(ctx context.Context, clientChat string) (ProposalDraft, error)
	// UpdateProposal applies the user's change instructions to an existing
	// proposal draft, optionally incorporating new chat context, and returns
	// the updated formatted proposal text.
	UpdateProposal(ctx context.Context, currentProposal, userChanges, newChatContent string) (string, error)
	// Name returns the provider identifier (e.g., "openai", "anthropic").
	Name() string
}

// RiskAssessment is the structured output of a risk analysis.
type RiskAssessment struct {
	RiskScore               int          `json:"risk_score"`
	RiskLevel               string       `json:"risk_level"`
	RiskMeter               string       `json:"risk_meter"`
	ExecutiveSummary        string       `json:"executive_summary"`
	Pros                    []RiskSignal `json:"pros"`
	Cons                    []RiskSignal `json:"cons"`
	Recommendation          string       `json:"recommendation"`
	RecommendationReasoning string       `json:"recommendation_reasoning"`
	ProtectiveMeasures      []string     `json:"protective_measures"`
}

// RiskSignal is a single pro or con extracted from the client chat. Severity
// and Dimension are only set on cons.
type RiskSignal struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Quotes      []string `json:"quotes,omitempty"`
	Severity    string   `json:"severity,omitempty"`
	Dimension   string   `json:"dimension,omitempty"`
}

// ProposalDraft is the structured output of proposal generation. The
// FormattedProposal field is the client-facing markdown document; the rest is
// internal analysis for the freelancer.
type ProposalDraft struct {
	ProjectAnalysis   map[string]any `json:"project_analysis"`
	ProposalData      map[string]any `json:"proposal_data"`
	FormattedProposal string         `json:"formatted_proposal"`
}

// ToResults flattens a RiskAssessment into the generic results payload stored
// on a document.
func (r RiskAssessment) ToResults() map[string]any {
	pros := make([]any, len(r.Pros))
	for i, p := range r.Pros {
		pros[i] = signalMap(p)
	}
	cons := make([]any, len(r.Cons))
	for i, c := range r.Cons {
		cons[i] = signalMap(c)
	}
	measures := make([]any, len(r.ProtectiveMeasures))
	for i, m := range r.ProtectiveMeasures {
		measures[i] = m
	}
	return map[string]any{
		"risk_score":               r.RiskScore,
		"risk_level":               r.RiskLevel,
		"risk_meter":               r.RiskMeter,
		"executive_summary":        r.ExecutiveSummary,
		"pros":                     pros,
		"cons":                     cons,
		"recommendation":           r.Recommendation,
		"recommendation_reasoning": r.RecommendationReasoning,
		"protective_measures":      measures,
	}
}

func signalMap(s RiskSignal) map[string]any {
	m := map[string]any{
		"title":       s.Title,
		"description": s.Description,
	}
	if len(s.Quotes) > 0 {
		quotes := make([]any, len(s.Quotes))
		for i, q := range s.Quotes {
			quotes[i] = q
		}
		m["quotes"] = quotes
	}
	if s.Severity != "" {
		m["severity"] = s.Severity
	}
	if s.Dimension != "" {
		m["dimension"] = s.Dimension
	}
	return m
}

// ToResults flattens a ProposalDraft into the generic results payload stored
// on a document.
func (p ProposalDraft) ToResults() map[string]any {
	return map[string]any{
		"project_analysis":   p.ProjectAnalysis,
		"proposal_data":      p.ProposalData,
		"formatted_proposal": p.FormattedProposal,
	}
}
