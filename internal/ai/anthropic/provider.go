// Package anthropic implements models.AIProvider against the Anthropic
// messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/freelyhq/freely-api/internal/ai"
	"github.com/freelyhq/freely-api/internal/ai/prompts"
	"github.com/freelyhq/freely-api/internal/config"
	"github.com/freelyhq/freely-api/pkg/models"
)

const (
	apiVersion = "2023-06-01"
	maxTokens  = 8192

	analyzeSystemPrompt  = "You are a helpful assistant that provides risk analysis in JSON format. Respond with a single JSON object and nothing else."
	proposalSystemPrompt = "You are an Expert Freelance Proposal Strategist. Generate professional job proposals in JSON format based on client chats. Respond with a single JSON object and nothing else."
	updateSystemPrompt   = "You are an Expert Freelance Proposal Editor. Update proposals based on user instructions, making only the requested changes and preserving all other content."
)

// Provider implements models.AIProvider using Anthropic.
type Provider struct {
	cfg    config.AnthropicConfig
	client *http.Client
}

func NewProvider(cfg config.AnthropicConfig) *Provider {
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: 5 * time.Minute},
	}
}

func (p *Provider) Name() string { return "anthropic" }

func (p *Provider) AnalyzeRisk(ctx context.Context, clientChat string) (models.RiskAssessment, error) {
	if strings.TrimSpace(clientChat) == "" {
		return models.RiskAssessment{}, ai.ErrEmptyInput
	}
	text, err := p.complete(ctx, analyzeSystemPrompt, prompts.RiskAnalysis(clientChat), 0.7)
	if err != nil {
		return models.RiskAssessment{}, err
	}
	return ai.ParseRiskAssessment(text)
}

func (p *Provider) GenerateProposal(ctx context.Context, clientChat string) (models.ProposalDraft, error) {
	if strings.TrimSpace(clientChat) == "" {
		return models.ProposalDraft{}, ai.ErrEmptyInput
	}
	text, err := p.complete(ctx, proposalSystemPrompt, prompts.Proposal(clientChat), 0.7)
	if err != nil {
		return models.ProposalDraft{}, err
	}
	return ai.ParseProposalDraft(text)
}

func (p *Provider) UpdateProposal(ctx context.Context, currentProposal, userChanges, newChatContent string) (string, error) {
	text, err := p.complete(ctx, updateSystemPrompt, prompts.ProposalUpdate(currentProposal, userChanges, newChatContent), 0.3)
	if err != nil {
		return "", err
	}
	return ai.ParseProposalUpdate(text)
}

func (p *Provider) complete(ctx context.Context, system, user string, temperature float64) (string, error) {
	body, err := json.Marshal(messagesRequest{
		Model:       p.cfg.Model,
		MaxTokens:   maxTokens,
		System:      system,
		Temperature: temperature,
		Messages: []message{
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal messages request: %w", err)
	}

	u := p.cfg.BaseURL + "/v1/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error.Message != "" {
			return "", fmt.Errorf("%w: status %d: %s", ai.ErrProviderUnavailable, resp.StatusCode, apiErr.Error.Message)
		}
		return "", fmt.Errorf("%w: status %d", ai.ErrProviderUnavailable, resp.StatusCode)
	}

	var msgResp messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&msgResp); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ai.ErrInvalidResponse, err)
	}
	for _, block := range msgResp.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("%w: no text content in response", ai.ErrInvalidResponse)
}

func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ai.ErrInferenceTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ai.ErrInferenceTimeout, err)
		}
	}

	return fmt.Errorf("%w: %v", ai.ErrProviderUnavailable, err)
}

// --- Anthropic wire types ---

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Temperature float64   `json:"temperature"`
	Messages    []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

var _ models.AIProvider = (*Provider)(nil)
