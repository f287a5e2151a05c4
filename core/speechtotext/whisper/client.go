package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/koscakluka/ema-drive/core/audio"
	"github.com/koscakluka/ema-drive/core/speechtotext"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultBaseURL = "http://localhost:8000"
	DefaultModel   = "whisper-small"

	transcriptionsPath = "/v1/audio/transcriptions"
)

// Client talks to any server exposing the OpenAI audio transcription API
// (faster-whisper-server, LocalAI, whisper.cpp server, OpenAI itself).
type Client struct {
	baseURL  string
	apiKey   string
	model    string
	language string

	httpClient *http.Client
}

type ClientOption func(*Client)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) { c.apiKey = apiKey }
}

func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

func WithLanguage(language string) ClientOption {
	return func(c *Client) { c.language = language }
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

func NewClient(opts ...ClientOption) *Client {
	client := &Client{
		baseURL: DefaultBaseURL,
		model:   DefaultModel,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
					return operationName + " " + request.URL.Path
				}),
			),
		},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

func (c *Client) Transcribe(ctx context.Context, segment *audio.Segment, opts ...speechtotext.TranscriptionOption) (string, error) {
	ctx, span := tracer.Start(ctx, "whisper transcribe")
	defer span.End()

	options := speechtotext.NewOptions(opts...)
	model := c.model
	if options.Model != "" {
		model = options.Model
	}
	language := c.language
	if options.Language != "" {
		language = options.Language
	}
	span.SetAttributes(
		attribute.String("whisper.model", model),
		attribute.Int64("audio.duration_ms", segment.Duration().Milliseconds()),
	)

	body, contentType, err := c.multipartBody(segment, model, language, options.Prompt)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+transcriptionsPath, body)
	if err != nil {
		err = fmt.Errorf("error creating HTTP request: %w", err)
		span.RecordError(err)
		return "", err
	}
	req.Header.Set("Content-Type", contentType)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("error sending request: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("non-OK HTTP status: %s: %s", resp.Status, strings.TrimSpace(string(errorBody)))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	var response struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		err = fmt.Errorf("error decoding response: %w", err)
		span.RecordError(err)
		return "", err
	}

	return strings.TrimSpace(response.Text), nil
}

func (c *Client) multipartBody(segment *audio.Segment, model, language, prompt string) (io.Reader, string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	file, err := writer.CreateFormFile("file", "segment.wav")
	if err != nil {
		return nil, "", fmt.Errorf("error creating form file: %w", err)
	}
	if err := segment.WriteWAV(file); err != nil {
		return nil, "", err
	}

	fields := map[string]string{
		"model":           model,
		"language":        language,
		"prompt":          prompt,
		"response_format": "json",
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := writer.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("error writing form field %s: %w", name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("error closing multipart body: %w", err)
	}
	return &body, writer.FormDataContentType(), nil
}
