package openai_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/freelyhq/freely-api/internal/ai"
	"github.com/freelyhq/freely-api/internal/ai/openai"
	"github.com/freelyhq/freely-api/internal/config"
)

func testProvider() *openai.Provider {
	return openai.NewProvider(config.OpenAIConfig{
		BaseURL: "http://localhost:0",
		APIKey:  "test-key",
		Model:   "gpt-4o",
	})
}

// Blank input is rejected before any API call is made.
func TestAnalyzeRisk_EmptyInput(t *testing.T) {
	p := testProvider()
	_, err := p.AnalyzeRisk(context.Background(), "   \n\t")
	assert.ErrorIs(t, err, ai.ErrEmptyInput)
}

func TestGenerateProposal_EmptyInput(t *testing.T) {
	p := testProvider()
	_, err := p.GenerateProposal(context.Background(), "")
	assert.ErrorIs(t, err, ai.ErrEmptyInput)
}
