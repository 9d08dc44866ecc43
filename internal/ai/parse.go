package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/freelyhq/freely-api/pkg/models"
)

var validRecommendations = map[string]bool{
	"ACCEPT":               true,
	"PROCEED WITH CAUTION": true,
	"DECLINE":              true,
	"RENEGOTIATE":          true,
}

// ExtractJSON pulls a JSON object out of a raw model response. Models tend to
// wrap their output in markdown code fences despite instructions.
func ExtractJSON(text string) (string, error) {
	if i := strings.Index(text, "```json"); i >= 0 {
		rest := text[i+len("```json"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			return strings.TrimSpace(rest[:j]), nil
		}
	}
	if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+3:]
		if j := strings.Index(rest, "```"); j >= 0 {
			return strings.TrimSpace(rest[:j]), nil
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("%w: no JSON object found", ErrInvalidResponse)
	}
	return text[start : end+1], nil
}

// ParseRiskAssessment decodes and validates a risk analysis response.
func ParseRiskAssessment(text string) (models.RiskAssessment, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return models.RiskAssessment{}, err
	}

	var assessment models.RiskAssessment
	if err := json.Unmarshal([]byte(raw), &assessment); err != nil {
		return models.RiskAssessment{}, fmt.Errorf("%w: decode risk assessment: %v", ErrInvalidResponse, err)
	}

	if err := validateRiskAssessment(assessment); err != nil {
		return models.RiskAssessment{}, err
	}
	return assessment, nil
}

func validateRiskAssessment(a models.RiskAssessment) error {
	if a.RiskScore < 1 || a.RiskScore > 10 {
		return fmt.Errorf("%w: risk_score %d out of range 1-10", ErrInvalidResponse, a.RiskScore)
	}

	// Level must agree with the score band.
	switch {
	case a.RiskScore <= 3 && a.RiskLevel != "GREEN":
		return fmt.Errorf("%w: risk_level should be GREEN for score %d, got %q", ErrInvalidResponse, a.RiskScore, a.RiskLevel)
	case a.RiskScore >= 4 && a.RiskScore <= 6 && a.RiskLevel != "YELLOW":
		return fmt.Errorf("%w: risk_level should be YELLOW for score %d, got %q", ErrInvalidResponse, a.RiskScore, a.RiskLevel)
	case a.RiskScore >= 7 && a.RiskLevel != "RED":
		return fmt.Errorf("%w: risk_level should be RED for score %d, got %q", ErrInvalidResponse, a.RiskScore, a.RiskLevel)
	}

	if !validRecommendations[a.Recommendation] {
		return fmt.Errorf("%w: invalid recommendation %q", ErrInvalidResponse, a.Recommendation)
	}

	if a.ExecutiveSummary == "" {
		return fmt.Errorf("%w: missing executive_summary", ErrInvalidResponse)
	}
	return nil
}

// RiskMeter returns the meter emoji for a risk score.
func RiskMeter(score int) string {
	switch {
	case score <= 3:
		return "🟢"
	case score <= 6:
		return "🟡"
	default:
		return "🔴"
	}
}

// ParseProposalDraft decodes and validates a proposal generation response.
func ParseProposalDraft(text string) (models.ProposalDraft, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return models.ProposalDraft{}, err
	}

	var draft models.ProposalDraft
	if err := json.Unmarshal([]byte(raw), &draft); err != nil {
		return models.ProposalDraft{}, fmt.Errorf("%w: decode proposal: %v", ErrInvalidResponse, err)
	}

	if strings.TrimSpace(draft.FormattedProposal) == "" {
		return models.ProposalDraft{}, fmt.Errorf("%w: missing formatted_proposal", ErrInvalidResponse)
	}
	if draft.ProjectAnalysis == nil {
		return models.ProposalDraft{}, fmt.Errorf("%w: missing project_analysis", ErrInvalidResponse)
	}
	if draft.ProposalData == nil {
		return models.ProposalDraft{}, fmt.Errorf("%w: missing proposal_data", ErrInvalidResponse)
	}
	return draft, nil
}

// ParseProposalUpdate extracts the updated proposal text from an update
// response. The update prompt asks for plain markdown; code fences are
// stripped when the model adds them anyway.
func ParseProposalUpdate(text string) (string, error) {
	out := strings.TrimSpace(text)
	if strings.HasPrefix(out, "```") {
		out = strings.TrimPrefix(out, "```markdown")
		out = strings.TrimPrefix(out, "```md")
		out = strings.TrimPrefix(out, "```")
		if j := strings.LastIndex(out, "```"); j >= 0 {
			out = out[:j]
		}
		out = strings.TrimSpace(out)
	}
	if out == "" {
		return "", fmt.Errorf("%w: empty proposal update", ErrInvalidResponse)
	}
	return out, nil
}
