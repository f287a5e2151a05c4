package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-drive/core/audio"
	"github.com/koscakluka/ema-drive/core/speechtotext"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultListenURL = "wss://api.deepgram.com/v1/listen"
	DefaultModel     = "nova-3"
	DefaultLanguage  = "en-US"

	apiKeyEnv = "DEEPGRAM_API_KEY"
	// audio is written to the socket in frames of this many bytes
	frameBytes = 8192
)

// TranscriptionClient transcribes finished segments by streaming each one over
// its own listen websocket and collecting the final results.
type TranscriptionClient struct {
	listenURL string
	apiKey    string
	model     string
	language  string

	dialer *websocket.Dialer
}

type TranscriptionClientOption func(*TranscriptionClient)

func WithListenURL(listenURL string) TranscriptionClientOption {
	return func(c *TranscriptionClient) { c.listenURL = listenURL }
}

func WithAPIKey(apiKey string) TranscriptionClientOption {
	return func(c *TranscriptionClient) { c.apiKey = apiKey }
}

func WithModel(model string) TranscriptionClientOption {
	return func(c *TranscriptionClient) { c.model = model }
}

func WithLanguage(language string) TranscriptionClientOption {
	return func(c *TranscriptionClient) { c.language = language }
}

func NewTranscriptionClient(opts ...TranscriptionClientOption) (*TranscriptionClient, error) {
	client := &TranscriptionClient{
		listenURL: DefaultListenURL,
		apiKey:    os.Getenv(apiKeyEnv),
		model:     DefaultModel,
		language:  DefaultLanguage,
		dialer:    websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.apiKey == "" {
		return nil, fmt.Errorf("deepgram api key not found")
	}
	return client, nil
}

func (c *TranscriptionClient) Transcribe(ctx context.Context, segment *audio.Segment, opts ...speechtotext.TranscriptionOption) (string, error) {
	ctx, span := tracer.Start(ctx, "deepgram transcribe")
	defer span.End()

	options := speechtotext.NewOptions(opts...)
	encoding, err := convertEncoding(segment.EncodingInfo())
	if err != nil {
		err = fmt.Errorf("invalid encoding: %w", err)
		span.RecordError(err)
		return "", err
	}

	conn, err := c.connectWebsocket(ctx, *encoding, options)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("failed to open websocket: %w", err)
	}
	defer conn.Close()

	// Unblocks ReadMessage when the caller gives up.
	stopWatch := make(chan struct{})
	var watchDone sync.WaitGroup
	watchDone.Add(1)
	go func() {
		defer watchDone.Done()
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stopWatch:
		}
	}()
	defer func() {
		close(stopWatch)
		watchDone.Wait()
	}()

	pcm := segment.Linear16()
	span.SetAttributes(attribute.Int("audio.bytes", len(pcm)))
	for start := 0; start < len(pcm); start += frameBytes {
		end := min(start+frameBytes, len(pcm))
		if err := conn.WriteMessage(websocket.BinaryMessage, pcm[start:end]); err != nil {
			return "", recordFailure(ctx, span, fmt.Errorf("failed to write to deepgram client: %w", err))
		}
	}
	if err := conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: string(api.TypeCloseStreamResponse)}); err != nil {
		return "", recordFailure(ctx, span, fmt.Errorf("failed to close deepgram stream: %w", err))
	}

	var transcript strings.Builder
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				break
			}
			return "", recordFailure(ctx, span, fmt.Errorf("failed to read deepgram websocket message: %w", err))
		}
		if msgType == websocket.BinaryMessage {
			continue
		}

		final, err := finalTranscript(msg)
		if err != nil {
			logger.Warn("Failed to unmarshal deepgram message", "error", err)
			continue
		}
		if final == "" {
			continue
		}
		if transcript.Len() > 0 {
			transcript.WriteByte(' ')
		}
		transcript.WriteString(final)
	}

	return transcript.String(), nil
}

func recordFailure(ctx context.Context, span trace.Span, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = errors.Join(ctxErr, err)
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func (c *TranscriptionClient) connectWebsocket(ctx context.Context, encoding encodingInfo, options speechtotext.TranscriptionOptions) (*websocket.Conn, error) {
	listenURL, err := url.Parse(c.listenURL)
	if err != nil {
		return nil, fmt.Errorf("invalid listen url: %w", err)
	}

	model := c.model
	if options.Model != "" {
		model = options.Model
	}
	language := c.language
	if options.Language != "" {
		language = options.Language
	}

	queryParams := listenURL.Query()
	queryParams.Set("encoding", encoding.Format.Name())
	queryParams.Set("sample_rate", strconv.Itoa(encoding.SampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", model)
	queryParams.Set("language", language)
	queryParams.Set("smart_format", "true")
	if options.Prompt != "" {
		for _, keyterm := range strings.Fields(options.Prompt) {
			queryParams.Add("keyterm", keyterm)
		}
	}
	listenURL.RawQuery = queryParams.Encode()

	conn, _, err := c.dialer.DialContext(ctx, listenURL.String(),
		http.Header{"Authorization": {"Token " + c.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}
	return conn, nil
}

// finalTranscript returns the best alternative of a final result message and
// an empty string for anything else.
func finalTranscript(msg []byte) (string, error) {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		return "", err
	}
	if api.TypeResponse(parsedMsg.Type) != api.TypeMessageResponse {
		return "", nil
	}

	var msgResp api.MessageResponse
	if err := json.Unmarshal(msg, &msgResp); err != nil {
		return "", err
	}
	if !msgResp.IsFinal || len(msgResp.Channel.Alternatives) == 0 {
		return "", nil
	}
	return strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript), nil
}
