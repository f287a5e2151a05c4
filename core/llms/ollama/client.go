package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/koscakluka/ema-drive/core/llms"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.1"
)

var ErrModelNotFound = errors.New("model not found")

// Client is a non-streaming client for the Ollama chat API.
type Client struct {
	baseURL    string
	model      string
	keepAlive  string
	httpClient *http.Client
}

type ClientOption func(*Client)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

// WithKeepAlive controls how long Ollama keeps the model loaded after a
// request, e.g. "10m".
func WithKeepAlive(keepAlive string) ClientOption {
	return func(c *Client) { c.keepAlive = keepAlive }
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

func NewClient(opts ...ClientOption) *Client {
	client := &Client{
		baseURL: DefaultBaseURL,
		model:   DefaultModel,
		httpClient: &http.Client{
			Timeout:   120 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

func (c *Client) Model() string { return c.model }

type chatRequest struct {
	Model     string         `json:"model"`
	Messages  []chatMessage  `json:"messages"`
	Stream    bool           `json:"stream"`
	Options   map[string]any `json:"options,omitempty"`
	KeepAlive string         `json:"keep_alive,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string      `json:"model"`
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error,omitempty"`
}

type listModelsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

func (c *Client) Chat(ctx context.Context, messages []llms.Message, opts ...llms.ChatOption) (*llms.Response, error) {
	ctx, span := tracer.Start(ctx, "ollama chat")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", c.model))

	options := llms.NewChatOptions(opts...)
	reqBody := chatRequest{
		Model:     c.model,
		Messages:  make([]chatMessage, 0, len(messages)),
		Stream:    false,
		KeepAlive: c.keepAlive,
	}
	for _, msg := range messages {
		reqBody.Messages = append(reqBody.Messages, chatMessage{Role: string(msg.Role), Content: msg.Content})
	}
	if options.Temperature != nil || options.MaxTokens > 0 {
		reqBody.Options = map[string]any{}
		if options.Temperature != nil {
			reqBody.Options["temperature"] = *options.Temperature
		}
		if options.MaxTokens > 0 {
			reqBody.Options["num_predict"] = options.MaxTokens
		}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("request failed: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		err = fmt.Errorf("failed to decode response: %w", err)
		span.RecordError(err)
		return nil, err
	}
	if result.Error != "" {
		err := fmt.Errorf("ollama error: %s", result.Error)
		span.RecordError(err)
		return nil, err
	}

	return &llms.Response{Content: result.Message.Content, Model: result.Model}, nil
}

// HealthCheck verifies that the server answers and that the configured model
// has been pulled.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "ollama health check")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("ollama not reachable at %s: %w", c.baseURL, err)
		span.RecordError(err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("ollama health check failed with status %d", resp.StatusCode)
		span.RecordError(err)
		return err
	}

	var result listModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode model list: %w", err)
	}

	available := make([]string, 0, len(result.Models))
	for _, model := range result.Models {
		if sameModel(model.Name, c.model) || sameModel(model.Model, c.model) {
			return nil
		}
		available = append(available, model.Name)
	}

	logger.Warn("Configured model is not available", "model", c.model, "available", available)
	err = fmt.Errorf("%w: %s (run `ollama pull %s`)", ErrModelNotFound, c.model, c.model)
	span.RecordError(err)
	return err
}

// sameModel treats a name without a tag as the ":latest" tag.
func sameModel(have, want string) bool {
	if have == "" {
		return false
	}
	if !strings.Contains(have, ":") {
		have += ":latest"
	}
	if !strings.Contains(want, ":") {
		want += ":latest"
	}
	return have == want
}
