package generation

import (
	"github.com/ashureev/growthdesk/internal/domain"
)

// Backend endpoint paths.
const (
	PathChat    = "/api/generate-content"
	PathText    = "/api/image-assistant/generate-text"
	PathPrompts = "/api/image-assistant/generate-prompts"
	PathImage   = "/api/image-assistant/generate-image"
	PathHealth  = "/api/health"
)

// WireTurn is a ledger turn as the backend expects it in chat history.
type WireTurn struct {
	ID   uint64 `json:"id"`
	Type string `json:"type"`
	Text string `json:"text"`
}

// Wire values for WireTurn.Type.
const (
	WireTypeUser = "user"
	WireTypeAI   = "ai"
)

// ToWireTurns converts ledger turns to the backend history format.
func ToWireTurns(turns []domain.Turn) []WireTurn {
	out := make([]WireTurn, 0, len(turns))
	for _, t := range turns {
		typ := WireTypeUser
		if t.IsAssistant() {
			typ = WireTypeAI
		}
		out = append(out, WireTurn{ID: t.ID, Type: typ, Text: t.Text})
	}
	return out
}

// FromWireTurns converts backend history back into ledger turns.
func FromWireTurns(turns []WireTurn) []domain.Turn {
	out := make([]domain.Turn, 0, len(turns))
	for _, t := range turns {
		role := domain.RoleUser
		if t.Type == WireTypeAI {
			role = domain.RoleAssistant
		}
		out = append(out, domain.Turn{ID: t.ID, Role: role, Text: t.Text})
	}
	return out
}

// ChatPayload is the body of a chat request.
type ChatPayload struct {
	Message         string                 `json:"message"`
	BusinessContext domain.BusinessContext `json:"businessContext"`
	TaskMode        domain.TaskMode        `json:"taskMode"`
	History         []WireTurn             `json:"history"`
}

// ChatResult is the body of a chat response. Non-2xx responses carry Error
// and usually Message.
type ChatResult struct {
	Success bool   `json:"success,omitempty"`
	Content string `json:"content,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TextPayload is the body of a text-content request.
type TextPayload struct {
	BusinessDetails string `json:"businessDetails"`
}

// PromptsPayload is the body of a prompt-pair request.
type PromptsPayload struct {
	PostContent string `json:"postContent"`
	Approved    bool   `json:"approved"`
}

// ImagePayload is the body of an image request.
type ImagePayload struct {
	ImagePrompt string `json:"imagePrompt"`
	Approved    bool   `json:"approved"`
}

// StageResult is the common response shape of the image-assistant endpoints.
type StageResult struct {
	Success bool   `json:"success"`
	Content string `json:"content,omitempty"`
	Prompts string `json:"prompts,omitempty"`
	Image   string `json:"image,omitempty"`
	Error   string `json:"error,omitempty"`
}
