// Package classifier maps an outgoing chat message to a task mode.
package classifier

import (
	"strings"

	"github.com/ashureev/growthdesk/internal/domain"
	"github.com/ashureev/growthdesk/internal/ledger"
)

// ApprovalPrompt is the phrase the generator uses when it waits for the user
// to approve a drafted post.
const ApprovalPrompt = "Do you approve this post?"

var approvalWords = []string{"yes", "no", "approve", "reject", "edit", "proceed", "go ahead"}

// Input is what a rule sees: the lowercased outgoing message and the ledger
// as it was before the message was sent.
type Input struct {
	Message string
	History ledger.Reader
}

// Rule pairs a predicate with the mode it selects.
type Rule struct {
	Name  string
	Match func(Input) bool
	Mode  domain.Mode
}

// PendingApprovalFunc reports whether the conversation is waiting on a post
// approval.
type PendingApprovalFunc func(ledger.Reader) bool

// Classifier evaluates its rules in order; the first match wins.
type Classifier struct {
	rules []Rule
}

// New returns the default classifier. pending may be nil, in which case the
// generator's approval phrase is looked for in the last assistant turn.
func New(pending PendingApprovalFunc) *Classifier {
	if pending == nil {
		pending = LastAssistantAsksApproval
	}
	return &Classifier{rules: DefaultRules(pending)}
}

// NewWithRules builds a classifier with a custom ordered rule list.
func NewWithRules(rules []Rule) *Classifier {
	return &Classifier{rules: rules}
}

// DefaultRules returns the ordered rule list used by New.
func DefaultRules(pending PendingApprovalFunc) []Rule {
	return []Rule{
		{
			Name:  "marketing",
			Match: containsAny("marketing", "promote"),
			Mode:  domain.ModeMarketing,
		},
		{
			Name: "content",
			Match: func(in Input) bool {
				if containsAny("content", "post")(in) {
					return true
				}
				return containsAny(approvalWords...)(in) && pending(in.History)
			},
			Mode: domain.ModeContent,
		},
		{
			Name:  "engagement",
			Match: containsAny("customer", "engagement"),
			Mode:  domain.ModeEngagement,
		},
	}
}

// Classify returns the task mode for message given the history before it.
func (c *Classifier) Classify(message string, history ledger.Reader) domain.TaskMode {
	if history == nil {
		history = ledger.Frozen(nil)
	}
	in := Input{Message: strings.ToLower(message), History: history}
	for _, r := range c.rules {
		if r.Match(in) {
			return domain.TaskModeFor(r.Mode)
		}
	}
	return domain.TaskModeFor(domain.ModeGeneral)
}

// LastAssistantAsksApproval reports whether the most recent assistant turn
// contains ApprovalPrompt.
func LastAssistantAsksApproval(history ledger.Reader) bool {
	turn, ok := history.LastAssistant()
	return ok && strings.Contains(turn.Text, ApprovalPrompt)
}

func containsAny(words ...string) func(Input) bool {
	return func(in Input) bool {
		for _, w := range words {
			if strings.Contains(in.Message, w) {
				return true
			}
		}
		return false
	}
}
