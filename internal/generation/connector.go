// Package generation is the boundary to the remote AI backend. The workflow
// core treats every call as a single opaque operation that may block and may
// fail.
package generation

import (
	"context"

	"github.com/ashureev/growthdesk/internal/domain"
)

// Stage names the generation call that produced a result or failure.
type Stage string

const (
	StageChat    Stage = "chat"
	StageContent Stage = "content"
	StagePrompt  Stage = "prompt"
	StageImage   Stage = "image"
)

// ChatRequest carries everything the generator needs for a chat reply.
type ChatRequest struct {
	Message  string
	Business domain.BusinessContext
	Mode     domain.TaskMode
	History  []domain.Turn
}

// Connector defines one operation per workflow stage.
type Connector interface {
	// ChatReply produces the assistant reply to a chat message.
	ChatReply(ctx context.Context, req ChatRequest) (string, error)

	// TextContent drafts post content from free-form business details.
	TextContent(ctx context.Context, businessDetails string) (string, error)

	// PromptPair turns approved post content into image prompts.
	PromptPair(ctx context.Context, approvedContent string) (domain.PromptPair, error)

	// Image renders an image for the prompt and returns the raw bytes.
	Image(ctx context.Context, imagePrompt string) ([]byte, error)
}

// Ensure implementations satisfy Connector.
var (
	_ Connector = (*HTTPClient)(nil)
	_ Connector = (*GeminiClient)(nil)
)
