package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- ExtractJSON ---

func TestExtractJSON_BareObject(t *testing.T) {
	out, err := ExtractJSON(`{"risk_score": 5}`)
	require.NoError(t, err)
	assert.Equal(t, `{"risk_score": 5}`, out)
}

func TestExtractJSON_JSONFence(t *testing.T) {
	out, err := ExtractJSON("Here you go:\n```json\n{\"a\": 1}\n```\nDone.")
	require.NoError(t, err)
	assert.Equal(t, `{"a": 1}`, out)
}

func TestExtractJSON_GenericFence(t *testing.T) {
	out, err := ExtractJSON("```\n{\"a\": 1}\n```")
	require.NoError(t, err)
	assert.Equal(t, `{"a": 1}`, out)
}

func TestExtractJSON_SurroundingProse(t *testing.T) {
	out, err := ExtractJSON(`Sure! {"a": 1} Hope that helps.`)
	require.NoError(t, err)
	assert.Equal(t, `{"a": 1}`, out)
}

func TestExtractJSON_NoObject(t *testing.T) {
	_, err := ExtractJSON("I cannot help with that.")
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

// --- ParseRiskAssessment ---

func validRiskJSON() string {
	return `{
		"risk_score": 8,
		"risk_level": "RED",
		"risk_meter": "🔴",
		"executive_summary": "High risk engagement.",
		"pros": [],
		"cons": [{"title": "Scope creep", "description": "Requirements shift daily.", "quotes": ["one more thing"], "severity": "high", "dimension": "scope"}],
		"recommendation": "DECLINE",
		"recommendation_reasoning": "Too many red flags.",
		"protective_measures": ["Walk away"]
	}`
}

func TestParseRiskAssessment_Valid(t *testing.T) {
	a, err := ParseRiskAssessment(validRiskJSON())
	require.NoError(t, err)

	assert.Equal(t, 8, a.RiskScore)
	assert.Equal(t, "RED", a.RiskLevel)
	assert.Equal(t, "DECLINE", a.Recommendation)
	require.Len(t, a.Cons, 1)
	assert.Equal(t, "Scope creep", a.Cons[0].Title)
}

func TestParseRiskAssessment_Fenced(t *testing.T) {
	a, err := ParseRiskAssessment("```json\n" + validRiskJSON() + "\n```")
	require.NoError(t, err)
	assert.Equal(t, 8, a.RiskScore)
}

func TestParseRiskAssessment_ScoreOutOfRange(t *testing.T) {
	_, err := ParseRiskAssessment(`{"risk_score": 11, "risk_level": "RED", "executive_summary": "x", "recommendation": "DECLINE"}`)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestParseRiskAssessment_LevelScoreMismatch(t *testing.T) {
	_, err := ParseRiskAssessment(`{"risk_score": 2, "risk_level": "RED", "executive_summary": "x", "recommendation": "ACCEPT"}`)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestParseRiskAssessment_BadRecommendation(t *testing.T) {
	_, err := ParseRiskAssessment(`{"risk_score": 2, "risk_level": "GREEN", "executive_summary": "x", "recommendation": "MAYBE"}`)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestParseRiskAssessment_MissingSummary(t *testing.T) {
	_, err := ParseRiskAssessment(`{"risk_score": 2, "risk_level": "GREEN", "recommendation": "ACCEPT"}`)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestParseRiskAssessment_NotJSON(t *testing.T) {
	_, err := ParseRiskAssessment(`{"risk_score": "eight"}`)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

// --- RiskMeter ---

func TestRiskMeter_Bands(t *testing.T) {
	assert.Equal(t, "🟢", RiskMeter(1))
	assert.Equal(t, "🟢", RiskMeter(3))
	assert.Equal(t, "🟡", RiskMeter(4))
	assert.Equal(t, "🟡", RiskMeter(6))
	assert.Equal(t, "🔴", RiskMeter(7))
	assert.Equal(t, "🔴", RiskMeter(10))
}

// --- ParseProposalDraft ---

func TestParseProposalDraft_Valid(t *testing.T) {
	draft, err := ParseProposalDraft(`{
		"project_analysis": {"project_type": "Web app"},
		"proposal_data": {"title": "Web App Proposal"},
		"formatted_proposal": "# Web App Proposal\n\nBody."
	}`)
	require.NoError(t, err)

	assert.Equal(t, "Web app", draft.ProjectAnalysis["project_type"])
	assert.Contains(t, draft.FormattedProposal, "# Web App Proposal")
}

func TestParseProposalDraft_MissingFormattedProposal(t *testing.T) {
	_, err := ParseProposalDraft(`{"project_analysis": {}, "proposal_data": {}}`)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestParseProposalDraft_MissingAnalysis(t *testing.T) {
	_, err := ParseProposalDraft(`{"proposal_data": {}, "formatted_proposal": "x"}`)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

// --- ParseProposalUpdate ---

func TestParseProposalUpdate_PlainMarkdown(t *testing.T) {
	out, err := ParseProposalUpdate("# Proposal\n\nUpdated body.")
	require.NoError(t, err)
	assert.Equal(t, "# Proposal\n\nUpdated body.", out)
}

func TestParseProposalUpdate_StripsFence(t *testing.T) {
	out, err := ParseProposalUpdate("```markdown\n# Proposal\n\nUpdated body.\n```")
	require.NoError(t, err)
	assert.Equal(t, "# Proposal\n\nUpdated body.", out)
}

func TestParseProposalUpdate_Empty(t *testing.T) {
	_, err := ParseProposalUpdate("   \n")
	assert.ErrorIs(t, err, ErrInvalidResponse)
}
