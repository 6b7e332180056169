package api

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/growthdesk/internal/generation"
)

// Backend serves the generation backend endpoints over a Connector, so the
// service can stand in for a separate generation server.
type Backend struct {
	conn       generation.Connector
	configured bool
	logger     *slog.Logger
}

// NewBackend creates a Backend. configured is reported by the health
// endpoint as gemini_configured.
func NewBackend(conn generation.Connector, configured bool, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{conn: conn, configured: configured, logger: logger}
}

// RegisterRoutes registers the backend routes.
func (b *Backend) RegisterRoutes(r chi.Router) {
	r.Get(generation.PathHealth, b.Health)
	r.Post(generation.PathChat, b.GenerateContent)
	r.Post(generation.PathText, b.GenerateText)
	r.Post(generation.PathPrompts, b.GeneratePrompts)
	r.Post(generation.PathImage, b.GenerateImage)
}

// Health reports whether the backend can serve requests.
func (b *Backend) Health(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"gemini_configured": b.configured,
	})
}

// GenerateContent answers a chat message.
func (b *Backend) GenerateContent(w http.ResponseWriter, r *http.Request) {
	var req generation.ChatPayload
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		Error(w, http.StatusBadRequest, "Message is required")
		return
	}
	if !b.configured {
		JSON(w, http.StatusInternalServerError, generation.ChatResult{
			Error:   "Gemini API key not configured",
			Message: "Please configure GEMINI_API_KEY",
		})
		return
	}

	text, err := b.conn.ChatReply(r.Context(), generation.ChatRequest{
		Message:  req.Message,
		Business: req.BusinessContext,
		Mode:     req.TaskMode,
		History:  generation.FromWireTurns(req.History),
	})
	if err != nil {
		b.logger.Error("Failed to generate content", "mode", req.TaskMode.Mode, "error", err)
		JSON(w, http.StatusInternalServerError, generation.ChatResult{
			Error:   "Failed to generate content",
			Message: generation.UserMessage(err),
		})
		return
	}

	JSON(w, http.StatusOK, generation.ChatResult{Success: true, Content: text, Message: text})
}

// GenerateText drafts post content from business details.
func (b *Backend) GenerateText(w http.ResponseWriter, r *http.Request) {
	var req generation.TextPayload
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.BusinessDetails) == "" {
		Error(w, http.StatusBadRequest, "Business details are required")
		return
	}

	content, err := b.conn.TextContent(r.Context(), req.BusinessDetails)
	if err != nil {
		b.stageError(w, generation.StageContent, err)
		return
	}
	JSON(w, http.StatusOK, generation.StageResult{Success: true, Content: content})
}

// GeneratePrompts turns approved post content into image prompts.
func (b *Backend) GeneratePrompts(w http.ResponseWriter, r *http.Request) {
	var req generation.PromptsPayload
	if !decodeBody(w, r, &req) {
		return
	}
	if !req.Approved {
		Error(w, http.StatusForbidden, "Action locked. User approval required.")
		return
	}
	if strings.TrimSpace(req.PostContent) == "" {
		Error(w, http.StatusBadRequest, "Post content is required")
		return
	}

	pair, err := b.conn.PromptPair(r.Context(), req.PostContent)
	if err != nil {
		b.stageError(w, generation.StagePrompt, err)
		return
	}
	prompts := pair.Raw
	if prompts == "" {
		prompts = generation.FormatPromptPair(pair)
	}
	JSON(w, http.StatusOK, generation.StageResult{Success: true, Prompts: prompts})
}

// GenerateImage renders an image for an approved prompt.
func (b *Backend) GenerateImage(w http.ResponseWriter, r *http.Request) {
	var req generation.ImagePayload
	if !decodeBody(w, r, &req) {
		return
	}
	if !req.Approved {
		Error(w, http.StatusForbidden, "Action locked. Technical approval is REQUIRED before generating images.")
		return
	}
	if strings.TrimSpace(req.ImagePrompt) == "" {
		Error(w, http.StatusBadRequest, "Image prompt is required")
		return
	}

	img, err := b.conn.Image(r.Context(), req.ImagePrompt)
	if err != nil {
		b.stageError(w, generation.StageImage, err)
		return
	}
	JSON(w, http.StatusOK, generation.StageResult{Success: true, Image: base64.StdEncoding.EncodeToString(img)})
}

func (b *Backend) stageError(w http.ResponseWriter, stage generation.Stage, err error) {
	b.logger.Error("Generation failed", "stage", stage, "error", err)
	JSON(w, http.StatusInternalServerError, generation.StageResult{Error: generation.UserMessage(err)})
}
