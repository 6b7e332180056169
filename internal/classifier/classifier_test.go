package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ashureev/growthdesk/internal/domain"
	"github.com/ashureev/growthdesk/internal/ledger"
)

func awaitingApproval() ledger.Frozen {
	return ledger.Frozen{
		{ID: 1, Role: domain.RoleUser, Text: "write me a post"},
		{ID: 2, Role: domain.RoleAssistant, Text: "POST IDEA: ...\nDo you approve this post? (Yes / Edit / Reject)"},
	}
}

func notAwaiting() ledger.Frozen {
	return ledger.Frozen{
		{ID: 1, Role: domain.RoleAssistant, Text: "Hi! What would you like help with today?"},
	}
}

func TestMarketingWinsRegardlessOfHistory(t *testing.T) {
	t.Parallel()

	c := New(nil)
	histories := map[string]ledger.Reader{
		"empty":     ledger.Frozen(nil),
		"awaiting":  awaitingApproval(),
		"unrelated": notAwaiting(),
	}
	messages := []string{
		"I need marketing help",
		"MARKETING for my customers",
		"yes, promote the post",
		"How do I promote content?",
	}
	for name, h := range histories {
		for _, msg := range messages {
			got := c.Classify(msg, h)
			assert.Equal(t, domain.ModeMarketing, got.Mode, "history=%s message=%q", name, msg)
		}
	}
}

func TestApprovalWordsGatedOnPendingApproval(t *testing.T) {
	t.Parallel()

	c := New(nil)
	replies := []string{"Yes", "no thanks", "I approve", "reject it", "edit please", "proceed", "Go ahead"}
	for _, reply := range replies {
		assert.Equal(t, domain.ModeContent, c.Classify(reply, awaitingApproval()).Mode, "reply=%q awaiting", reply)
		assert.Equal(t, domain.ModeGeneral, c.Classify(reply, notAwaiting()).Mode, "reply=%q not awaiting", reply)
		assert.Equal(t, domain.ModeGeneral, c.Classify(reply, nil).Mode, "reply=%q nil history", reply)
	}
}

func TestApprovalReplyFallsThroughToEngagement(t *testing.T) {
	t.Parallel()

	c := New(nil)
	got := c.Classify("yes, my customers love it", notAwaiting())
	assert.Equal(t, domain.ModeEngagement, got.Mode)
}

func TestClassifyRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		message string
		want    domain.Mode
	}{
		{"promote", "I want to promote my bakery", domain.ModeMarketing},
		{"content", "give me CONTENT ideas", domain.ModeContent},
		{"post", "draft an instagram post", domain.ModeContent},
		{"customer", "how do I keep customers coming back", domain.ModeEngagement},
		{"engagement", "improve engagement", domain.ModeEngagement},
		{"general", "how should I price bread", domain.ModeGeneral},
	}
	c := New(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.message, notAwaiting()).Mode)
		})
	}
}

func TestGeneralModeCarriesObjective(t *testing.T) {
	t.Parallel()

	got := New(nil).Classify("hello", nil)
	assert.Equal(t, "Provide helpful business advice", got.Objective)
	assert.Equal(t, "Be supportive and realistic", got.Guidelines)
}

func TestCustomPendingApproval(t *testing.T) {
	t.Parallel()

	c := New(func(ledger.Reader) bool { return true })
	assert.Equal(t, domain.ModeContent, c.Classify("yes", nil).Mode)
}

func TestClassifyIgnoresEarlierApprovalPrompt(t *testing.T) {
	t.Parallel()

	history := append(awaitingApproval(),
		domain.Turn{ID: 3, Role: domain.RoleUser, Text: "yes"},
		domain.Turn{ID: 4, Role: domain.RoleAssistant, Text: "IMAGE PROMPT: bread\nNEGATIVE PROMPT: blur"},
	)
	assert.Equal(t, domain.ModeGeneral, New(nil).Classify("yes", history).Mode)
}
