package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRiskAnalysis_InterpolatesChat(t *testing.T) {
	out := RiskAnalysis("client: can you do it for $50?")

	assert.Contains(t, out, "client: can you do it for $50?")
	assert.NotContains(t, out, "{client_chat}")
}

func TestProposal_InterpolatesChat(t *testing.T) {
	out := Proposal("client: I need a landing page.")

	assert.Contains(t, out, "client: I need a landing page.")
	assert.NotContains(t, out, "{client_chat}")
}

func TestProposalUpdate_AllFields(t *testing.T) {
	out := ProposalUpdate("# Old Proposal", "Make the timeline two weeks", "client: we talked again")

	assert.Contains(t, out, "# Old Proposal")
	assert.Contains(t, out, "Make the timeline two weeks")
	assert.Contains(t, out, "client: we talked again")
	assert.False(t, strings.Contains(out, "{current_proposal}"))
	assert.False(t, strings.Contains(out, "{user_changes}"))
	assert.False(t, strings.Contains(out, "{new_chat_content}"))
}

func TestProposalUpdate_EmptyChatContent(t *testing.T) {
	out := ProposalUpdate("# Old Proposal", "Shorten the summary", "")

	assert.Contains(t, out, "No new chat content provided.")
}
