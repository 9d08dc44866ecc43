package mock

import (
	"context"

	"github.com/freelyhq/freely-api/internal/ai"
	"github.com/freelyhq/freely-api/pkg/models"
)

// MockProvider satisfies models.AIProvider for testing.
type MockProvider struct {
	Name_                string
	AnalyzeRiskFunc      func(ctx context.Context, clientChat string) (models.RiskAssessment, error)
	GenerateProposalFunc func(ctx context.Context, clientChat string) (models.ProposalDraft, error)
	UpdateProposalFunc   func(ctx context.Context, currentProposal, userChanges, newChatContent string) (string, error)
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) AnalyzeRisk(ctx context.Context, clientChat string) (models.RiskAssessment, error) {
	if m.AnalyzeRiskFunc != nil {
		return m.AnalyzeRiskFunc(ctx, clientChat)
	}
	return models.RiskAssessment{}, nil
}

func (m *MockProvider) GenerateProposal(ctx context.Context, clientChat string) (models.ProposalDraft, error) {
	if m.GenerateProposalFunc != nil {
		return m.GenerateProposalFunc(ctx, clientChat)
	}
	return models.ProposalDraft{}, nil
}

func (m *MockProvider) UpdateProposal(ctx context.Context, currentProposal, userChanges, newChatContent string) (string, error) {
	if m.UpdateProposalFunc != nil {
		return m.UpdateProposalFunc(ctx, currentProposal, userChanges, newChatContent)
	}
	return "", nil
}

// NewMockProvider returns a MockProvider with sensible default responses.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock",
		AnalyzeRiskFunc: func(_ context.Context, _ string) (models.RiskAssessment, error) {
			return models.RiskAssessment{
				RiskScore:        4,
				RiskLevel:        "YELLOW",
				RiskMeter:        "🟡",
				ExecutiveSummary: "Mock risk assessment for testing. Some caution advised.",
				Pros: []models.RiskSignal{
					{
						Title:       "Clear scope",
						Description: "The client describes deliverables concretely.",
						Quotes:      []string{"we need a landing page and a contact form"},
						Severity:    "low",
						Dimension:   "scope",
					},
				},
				Cons: []models.RiskSignal{
					{
						Title:       "Budget pressure",
						Description: "The client has pushed back on pricing twice.",
						Quotes:      []string{"can you do it cheaper?"},
						Severity:    "medium",
						Dimension:   "payment",
					},
				},
				Recommendation:          "PROCEED WITH CAUTION",
				RecommendationReasoning: "Workable engagement if payment terms are locked in upfront.",
				ProtectiveMeasures:      []string{"Request a 50% deposit", "Define scope in writing"},
			}, nil
		},
		GenerateProposalFunc: func(_ context.Context, _ string) (models.ProposalDraft, error) {
			return models.ProposalDraft{
				ProjectAnalysis: map[string]any{
					"project_type": "Website development",
					"key_requirements": []any{
						"Landing page",
						"Contact form",
					},
				},
				ProposalData: map[string]any{
					"title": "Website Development Proposal",
				},
				FormattedProposal: "# Website Development Proposal\n\nMock proposal body for testing.",
			}, nil
		},
		UpdateProposalFunc: func(_ context.Context, currentProposal, _, _ string) (string, error) {
			return currentProposal + "\n\nMock revision applied.", nil
		},
	}
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock-failing",
		AnalyzeRiskFunc: func(_ context.Context, _ string) (models.RiskAssessment, error) {
			return models.RiskAssessment{}, err
		},
		GenerateProposalFunc: func(_ context.Context, _ string) (models.ProposalDraft, error) {
			return models.ProposalDraft{}, err
		},
		UpdateProposalFunc: func(_ context.Context, _, _, _ string) (string, error) {
			return "", err
		},
	}
}

// NewTimeoutProvider returns a MockProvider that blocks until the context is
// cancelled, then reports an inference timeout.
func NewTimeoutProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock-timeout",
		AnalyzeRiskFunc: func(ctx context.Context, _ string) (models.RiskAssessment, error) {
			<-ctx.Done()
			return models.RiskAssessment{}, ai.ErrInferenceTimeout
		},
		GenerateProposalFunc: func(ctx context.Context, _ string) (models.ProposalDraft, error) {
			<-ctx.Done()
			return models.ProposalDraft{}, ai.ErrInferenceTimeout
		},
		UpdateProposalFunc: func(ctx context.Context, _, _, _ string) (string, error) {
			<-ctx.Done()
			return "", ai.ErrInferenceTimeout
		},
	}
}

// Compile-time check that MockProvider implements AIProvider.
var _ models.AIProvider = (*MockProvider)(nil)
