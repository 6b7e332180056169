package generation

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ashureev/growthdesk/internal/domain"
)

// maxResponseSize bounds response bodies; image payloads are base64 PNGs.
const maxResponseSize = 32 << 20

var errEmptyBaseURL = errors.New("generation base URL is empty")

// HTTPClient talks JSON over HTTP to the generation backend, one endpoint
// per stage.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// HTTPClientConfig holds configuration for the HTTP connector.
type HTTPClientConfig struct {
	BaseURL string
	// Timeout bounds each call. The workflow never cancels an issued call,
	// so this is the only timeout policy.
	Timeout time.Duration
}

// DefaultHTTPClientConfig returns default configuration.
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		BaseURL: "http://localhost:5000",
		Timeout: 120 * time.Second,
	}
}

// NewHTTPClient creates a connector for the backend at cfg.BaseURL.
func NewHTTPClient(cfg HTTPClientConfig, logger *slog.Logger) (*HTTPClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		return nil, errEmptyBaseURL
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse generation base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("generation base URL must be http or https, got %q", u.Scheme)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultHTTPClientConfig().Timeout
	}

	return &HTTPClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}, nil
}

// ChatReply sends the message with business context, task mode and history.
func (c *HTTPClient) ChatReply(ctx context.Context, req ChatRequest) (string, error) {
	payload := ChatPayload{
		Message:         req.Message,
		BusinessContext: req.Business,
		TaskMode:        req.Mode,
		History:         ToWireTurns(req.History),
	}

	var out ChatResult
	status, err := c.post(ctx, StageChat, PathChat, payload, &out)
	if err != nil {
		return "", err
	}
	if status < 200 || status > 299 {
		reason := firstNonEmpty(out.Message, out.Error, "Failed to generate content")
		return "", newFailure(StageChat, status, reason)
	}

	text := firstNonEmpty(out.Content, out.Message)
	if text == "" {
		return "", &MalformedResponse{Stage: StageChat, Field: "content"}
	}
	return text, nil
}

// TextContent drafts post content.
func (c *HTTPClient) TextContent(ctx context.Context, businessDetails string) (string, error) {
	out, err := c.stage(ctx, StageContent, PathText, TextPayload{BusinessDetails: businessDetails}, "Failed to generate content")
	if err != nil {
		return "", err
	}
	if out.Content == "" {
		return "", &MalformedResponse{Stage: StageContent, Field: "content"}
	}
	return out.Content, nil
}

// PromptPair requests image prompts for approved content.
func (c *HTTPClient) PromptPair(ctx context.Context, approvedContent string) (domain.PromptPair, error) {
	payload := PromptsPayload{PostContent: approvedContent, Approved: true}
	out, err := c.stage(ctx, StagePrompt, PathPrompts, payload, "Failed to generate prompts")
	if err != nil {
		return domain.PromptPair{}, err
	}
	if out.Prompts == "" {
		return domain.PromptPair{}, &MalformedResponse{Stage: StagePrompt, Field: "prompts"}
	}
	pair := ParsePromptPair(out.Prompts)
	if pair.IsEmpty() {
		return domain.PromptPair{}, &MalformedResponse{Stage: StagePrompt, Field: "image prompt"}
	}
	return pair, nil
}

// Image renders an image and returns the decoded bytes.
func (c *HTTPClient) Image(ctx context.Context, imagePrompt string) ([]byte, error) {
	payload := ImagePayload{ImagePrompt: imagePrompt, Approved: true}
	out, err := c.stage(ctx, StageImage, PathImage, payload, "Failed to generate image")
	if err != nil {
		return nil, err
	}
	if out.Image == "" {
		return nil, &MalformedResponse{Stage: StageImage, Field: "image"}
	}
	img, err := base64.StdEncoding.DecodeString(out.Image)
	if err != nil {
		return nil, &MalformedResponse{Stage: StageImage, Field: "image", Err: err}
	}
	return img, nil
}

// Health reports whether the backend answers its health endpoint.
func (c *HTTPClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+PathHealth, nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close health response body", "error", closeErr)
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) stage(ctx context.Context, stage Stage, path string, payload any, fallback string) (*StageResult, error) {
	var out StageResult
	status, err := c.post(ctx, stage, path, payload, &out)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 || !out.Success {
		return nil, newFailure(stage, status, firstNonEmpty(out.Error, fallback))
	}
	return &out, nil
}

// post sends payload and decodes the JSON body into out. A body that cannot
// be decoded is a Failure on non-2xx status and a MalformedResponse
// otherwise.
func (c *HTTPClient) post(ctx context.Context, stage Stage, path string, payload, out any) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal %s request: %w", stage, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build %s request: %w", stage, err)
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Generation request failed", "stage", stage, "error", err)
		return 0, &Failure{
			Stage:  stage,
			Reason: "Connection error: make sure the generation backend is running.",
			Err:    err,
		}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close generation response body", "stage", stage, "error", closeErr)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return resp.StatusCode, &Failure{Stage: stage, Status: resp.StatusCode, Reason: "failed to read response", Err: err}
	}

	c.logger.Debug("Generation response",
		"stage", stage,
		"status", resp.StatusCode,
		"bytes", len(data),
		"duration", time.Since(started),
	)

	if err := json.Unmarshal(data, out); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return resp.StatusCode, &Failure{Stage: stage, Status: resp.StatusCode, Reason: http.StatusText(resp.StatusCode), Err: err}
		}
		return resp.StatusCode, &MalformedResponse{Stage: stage, Field: "body", Err: err}
	}
	return resp.StatusCode, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
