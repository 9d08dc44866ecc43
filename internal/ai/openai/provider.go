// Package openai implements models.AIProvider against the OpenAI chat
// completions API.
package openai

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
	analyzeSystemPrompt  = "You are a helpful assistant that provides risk analysis in JSON format."
	proposalSystemPrompt = "You are an Expert Freelance Proposal Strategist. Generate professional job proposals in JSON format based on client chats."
	updateSystemPrompt   = "You are an Expert Freelance Proposal Editor. Update proposals based on user instructions, making only the requested changes and preserving all other content."
)

// Provider implements models.AIProvider using OpenAI.
type Provider struct {
	cfg    config.OpenAIConfig
	client *http.Client
}

func NewProvider(cfg config.OpenAIConfig) *Provider {
	return &Provider{
		cfg: cfg,
		// Per-call deadlines come from the caller's context.
		client: &http.Client{Timeout: 5 * time.Minute},
	}
}

func (p *Provider) Name() string { return "openai" }

func (p *Provider) AnalyzeRisk(ctx context.Context, clientChat string) (models.RiskAssessment, error) {
	if strings.TrimSpace(clientChat) == "" {
		return models.RiskAssessment{}, ai.ErrEmptyInput
	}
	text, err := p.complete(ctx, chatRequest{
		Model: p.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: analyzeSystemPrompt},
			{Role: "user", Content: prompts.RiskAnalysis(clientChat)},
		},
		Temperature:    0.7,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return models.RiskAssessment{}, err
	}
	return ai.ParseRiskAssessment(text)
}

func (p *Provider) GenerateProposal(ctx context.Context, clientChat string) (models.ProposalDraft, error) {
	if strings.TrimSpace(clientChat) == "" {
		return models.ProposalDraft{}, ai.ErrEmptyInput
	}
	text, err := p.complete(ctx, chatRequest{
		Model: p.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: proposalSystemPrompt},
			{Role: "user", Content: prompts.Proposal(clientChat)},
		},
		Temperature:    0.7,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return models.ProposalDraft{}, err
	}
	return ai.ParseProposalDraft(text)
}

func (p *Provider) UpdateProposal(ctx context.Context, currentProposal, userChanges, newChatContent string) (string, error) {
	// No JSON response format here: the update comes back as markdown text.
	text, err := p.complete(ctx, chatRequest{
		Model: p.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: updateSystemPrompt},
			{Role: "user", Content: prompts.ProposalUpdate(currentProposal, userChanges, newChatContent)},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return "", err
	}
	return ai.ParseProposalUpdate(text)
}

func (p *Provider) complete(ctx context.Context, req chatRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	u := p.cfg.BaseURL + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

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

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ai.ErrInvalidResponse, err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", ai.ErrInvalidResponse)
	}
	return chatResp.Choices[0].Message.Content, nil
}

// classifyError maps transport-level errors to sentinel errors.
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

// --- OpenAI wire types ---

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Compile-time check that Provider implements AIProvider.
var _ models.AIProvider = (*Provider)(nil)
