package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/ashureev/growthdesk/internal/domain"
)

var errMissingAPIKey = errors.New("gemini API key is required")

// genaiModels is the subset of the genai Models service used here.
type genaiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateImages(ctx context.Context, model, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
}

// GeminiConfig holds configuration for the Gemini connector.
type GeminiConfig struct {
	APIKey     string
	TextModel  string
	ImageModel string
}

// DefaultGeminiConfig returns default model names.
func DefaultGeminiConfig() GeminiConfig {
	return GeminiConfig{
		TextModel:  "gemini-2.5-flash",
		ImageModel: "imagen-3.0-generate-002",
	}
}

// GeminiClient generates every stage directly against the Gemini API.
type GeminiClient struct {
	models     genaiModels
	textModel  string
	imageModel string
	logger     *slog.Logger
}

// NewGeminiClient creates a Gemini-backed connector.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig, logger *slog.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errMissingAPIKey
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return newGeminiClient(client.Models, cfg, logger), nil
}

func newGeminiClient(models genaiModels, cfg GeminiConfig, logger *slog.Logger) *GeminiClient {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultGeminiConfig()
	if cfg.TextModel == "" {
		cfg.TextModel = defaults.TextModel
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = defaults.ImageModel
	}
	return &GeminiClient{
		models:     models,
		textModel:  cfg.TextModel,
		imageModel: cfg.ImageModel,
		logger:     logger,
	}
}

// ChatReply answers a chat message using the mode-specific system prompt and
// the conversation so far.
func (c *GeminiClient) ChatReply(ctx context.Context, req ChatRequest) (string, error) {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, t := range req.History {
		var role genai.Role = genai.RoleUser
		if t.IsAssistant() {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Text, role))
	}
	contents = append(contents, genai.NewContentFromText(req.Message, genai.RoleUser))

	return c.generateText(ctx, StageChat, chatSystemPrompt(req.Business, req.Mode), contents)
}

// TextContent drafts post content for the business details.
func (c *GeminiClient) TextContent(ctx context.Context, businessDetails string) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(businessDetails, genai.RoleUser)}
	return c.generateText(ctx, StageContent, postContentPrompt, contents)
}

// PromptPair writes image prompts for approved content.
func (c *GeminiClient) PromptPair(ctx context.Context, approvedContent string) (domain.PromptPair, error) {
	contents := []*genai.Content{genai.NewContentFromText(approvedContent, genai.RoleUser)}
	raw, err := c.generateText(ctx, StagePrompt, imagePromptPrompt, contents)
	if err != nil {
		return domain.PromptPair{}, err
	}
	pair := ParsePromptPair(raw)
	if pair.IsEmpty() {
		return domain.PromptPair{}, &MalformedResponse{Stage: StagePrompt, Field: "image prompt"}
	}
	return pair, nil
}

// Image renders a single image for the prompt.
func (c *GeminiClient) Image(ctx context.Context, imagePrompt string) ([]byte, error) {
	resp, err := c.models.GenerateImages(ctx, c.imageModel, imagePrompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    "3:4",
	})
	if err != nil {
		c.logger.Warn("Gemini image generation failed", "model", c.imageModel, "error", err)
		return nil, &Failure{Stage: StageImage, Reason: err.Error(), Err: err}
	}
	if resp == nil || len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return nil, &MalformedResponse{Stage: StageImage, Field: "image"}
	}
	img := resp.GeneratedImages[0].Image.ImageBytes
	if len(img) == 0 {
		return nil, &MalformedResponse{Stage: StageImage, Field: "image"}
	}
	return img, nil
}

func (c *GeminiClient) generateText(ctx context.Context, stage Stage, system string, contents []*genai.Content) (string, error) {
	resp, err := c.models.GenerateContent(ctx, c.textModel, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
	})
	if err != nil {
		c.logger.Warn("Gemini generation failed", "stage", stage, "model", c.textModel, "error", err)
		return "", &Failure{Stage: stage, Reason: err.Error(), Err: err}
	}
	text := responseText(resp)
	if text == "" {
		return "", &MalformedResponse{Stage: stage, Field: "content"}
	}
	return text, nil
}

// responseText joins the non-thought text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		b.WriteString(part.Text)
	}
	return strings.TrimSpace(b.String())
}

func chatSystemPrompt(bc domain.BusinessContext, mode domain.TaskMode) string {
	if mode.Mode == domain.ModeContent {
		return fmt.Sprintf(`You are an AI Business Growth Content Assistant.
Help create social media post content and AI image prompts ONLY via strict human-approval.

BUSINESS: %s, Goal: %s, Budget: %s

RULES:
1. NO automatic images.
2. Generate post text FIRST.
3. WAIT for approval before image prompts.
4. Suggestions must be simple/realistic for small business.

STEP 1: POST CONTENT
Format:
POST IDEA: [Details]
CAPTION: [Hook/Body/CTA]
HASHTAGS: [5-8]
IMAGE DESCRIPTION (TEXT): [Human description]

Ask: "Do you approve this post? (Yes / Edit / Reject)"

STEP 2: IMAGE PROMPT (ONLY AFTER "YES/APPROVE")
Output ONLY:
IMAGE PROMPT: [Photorealistic, 4:5, minimalist]
NEGATIVE PROMPT: [Blurry, text, logos]
`, bc.BusinessType, bc.Goal, bc.Budget)
	}
	return fmt.Sprintf(`You are an AI Business Growth Assistant.
Goal: %s, Budget: %s, Business: %s
Available time per day: %s, Team: %s
Objective: %s
Guidelines: %s
Suggest 3-5 simple, free/low-cost actions in bullet points.
Friendly, non-technical language.
`, bc.Goal, bc.Budget, bc.BusinessType, bc.AvailableTimePerDay, bc.TeamSize, mode.Objective, mode.Guidelines)
}

const postContentPrompt = `You are an AI Business Growth Content Assistant for small businesses.
Write ONE social media post for the business described by the user.

Format:
POST IDEA: [Details]
CAPTION: [Hook/Body/CTA]
HASHTAGS: [5-8]
IMAGE DESCRIPTION (TEXT): [Human description]

Do NOT write image prompts. Keep it simple and realistic for a small business.`

const imagePromptPrompt = `You write prompts for a photorealistic image generator.
The user has APPROVED the social media post below. Describe one image for it.

Output ONLY:
IMAGE PROMPT: [Photorealistic, 4:5, minimalist]
NEGATIVE PROMPT: [Blurry, text, logos]`
