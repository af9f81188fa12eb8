package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"adscribe/internal/services"
)

const (
	component          = "llm"
	jsonResponseType   = "json_object"
	defaultHTTPTimeout = 60 * time.Second
	defaultBaseURL     = "https://openrouter.ai/api/v1/chat/completions"
)

// Config captures the runtime settings required to talk to the endpoint.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// Client wraps the chat completion API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			Referer:        strings.TrimSpace(cfg.Referer),
			Title:          strings.TrimSpace(cfg.Title),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	return client
}

// statusError is a non-2xx reply.
type statusError struct {
	StatusCode int
	Body       string
	Wait       time.Duration
}

func (e *statusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, summarizePayloadSnippet(e.Body))
}

// RetryAfter exposes the server's Retry-After hint.
func (e *statusError) RetryAfter() time.Duration {
	return e.Wait
}

// CompleteJSON issues a JSON-only chat completion and returns the raw JSON
// content. image, when non-empty, is attached to the user message as a JPEG.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string, image []byte) (string, error) {
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	if systemPrompt == "" || userPrompt == "" {
		return "", services.New(services.KindValidation, component, "", "system and user prompts are required")
	}
	if c.cfg.APIKey == "" {
		return "", services.New(services.KindValidation, component, services.CodeMissingCredentials, "openrouter api key not configured")
	}
	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userContent(userPrompt, image)},
		},
		Temperature:    0.2,
		ResponseFormat: map[string]string{"type": jsonResponseType},
	}
	return c.complete(ctx, payload)
}

// HealthCheck issues a fast ping to verify the API key and model are usable.
func (c *Client) HealthCheck(ctx context.Context) error {
	content, err := c.CompleteJSON(ctx, "You must respond with JSON only.", `Respond with {"ok":true}`, nil)
	if err != nil {
		return err
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeLLMJSON(content, &parsed); err != nil || !parsed.OK {
		return services.Wrap(services.KindAIService, component, "unexpected_reply", "health check reply not understood", err)
	}
	return nil
}

func userContent(prompt string, image []byte) any {
	if len(image) == 0 {
		return prompt
	}
	return []contentPart{
		{Type: "text", Text: prompt},
		{Type: "image_url", ImageURL: &imageURL{URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)}},
	}
}

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatCompletionMessage `json:"message"`
		// Some providers return the streaming schema even when stream=false.
		Delta        chatCompletionMessage `json:"delta"`
		Text         string                `json:"text"`
		FinishReason string                `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type chatCompletionMessage struct {
	Content string `json:"content"`
	Refusal string `json:"refusal"`
}

func (c *Client) complete(ctx context.Context, payload chatCompletionRequest) (string, error) {
	completion, body, err := c.send(ctx, payload)
	if err != nil {
		return "", err
	}
	var finishReason, refusal string
	for _, choice := range completion.Choices {
		if content := firstNonEmpty(choice.Message.Content, choice.Delta.Content, choice.Text); content != "" {
			return content, nil
		}
		finishReason = firstNonEmpty(finishReason, choice.FinishReason)
		refusal = firstNonEmpty(refusal, choice.Message.Refusal, choice.Delta.Refusal)
	}
	msg := fmt.Sprintf("empty content (finish_reason=%q, refusal=%q, response_snippet=%s)",
		finishReason, refusal, summarizePayloadSnippet(string(body)))
	return "", services.New(services.KindAIService, component, "empty_content", msg)
}

func (c *Client) send(ctx context.Context, payload chatCompletionRequest) (chatCompletionResponse, []byte, error) {
	var completion chatCompletionResponse
	encoded, err := json.Marshal(payload)
	if err != nil {
		return completion, nil, services.Wrap(services.KindSystem, component, "", "encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return completion, nil, services.Wrap(services.KindValidation, component, "", "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return completion, nil, ctxErr
		}
		return completion, nil, services.Wrap(services.KindAIService, component, "transport",
			fmt.Sprintf("request failed (timeout=%s)", c.httpClient.Timeout), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return completion, nil, services.Wrap(services.KindAIService, component, "transport", "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		wait, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return completion, body, classifyStatus(&statusError{StatusCode: resp.StatusCode, Body: string(body), Wait: wait})
	}
	if err := json.Unmarshal(body, &completion); err != nil {
		return completion, body, services.Wrap(services.KindAIService, component, "bad_reply", "decode response", err)
	}
	if completion.Error != nil {
		return completion, body, services.New(services.KindAIService, component, "api_error", strings.TrimSpace(completion.Error.Message))
	}
	return completion, body, nil
}

func classifyStatus(err *statusError) error {
	switch {
	case err.StatusCode == http.StatusUnauthorized, err.StatusCode == http.StatusForbidden:
		return services.Wrap(services.KindValidation, component, services.CodeMissingCredentials, "credentials rejected", err)
	case err.StatusCode == http.StatusRequestTimeout,
		err.StatusCode == http.StatusTooManyRequests,
		err.StatusCode >= http.StatusInternalServerError:
		return services.Wrap(services.KindAIService, component, "http_status", "transient upstream failure", err)
	default:
		return services.Wrap(services.KindValidation, component, "request_rejected", "request rejected", err)
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		if delay := time.Until(when); delay > 0 {
			return delay, true
		}
	}
	return 0, false
}

// DecodeLLMJSON decodes JSON from a model reply, tolerating code fences and
// prose around the object.
func DecodeLLMJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}
	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}
	sanitized := extractJSONObject(trimmed)
	if sanitized == "" || sanitized == trimmed {
		return fmt.Errorf("%w (payload snippet: %s)", directErr, summarizePayloadSnippet(trimmed))
	}
	if err := json.Unmarshal([]byte(sanitized), target); err != nil {
		return fmt.Errorf("%w (sanitized payload snippet: %s)", err, summarizePayloadSnippet(sanitized))
	}
	return nil
}

func extractJSONObject(content string) string {
	body := strings.TrimSpace(content)
	if rest, ok := strings.CutPrefix(body, "```"); ok {
		rest = strings.TrimLeft(rest, " \t\r\n")
		if len(rest) >= 4 && strings.EqualFold(rest[:4], "json") {
			rest = rest[4:]
		}
		if idx := strings.LastIndex(rest, "```"); idx >= 0 {
			rest = rest[:idx]
		}
		body = strings.TrimSpace(rest)
	}
	if body == "" || body[0] == '{' {
		return body
	}
	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start >= 0 && end > start {
		return strings.TrimSpace(body[start : end+1])
	}
	return body
}

func summarizePayloadSnippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	const limit = 160
	if runes := []rune(clean); len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
