package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/koscakluka/ema-drive/core/audio"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultSpeakURL   = "https://api.deepgram.com/v1/speak"
	DefaultSampleRate = 24000
)

// TextToSpeechClient synthesizes speech with the Deepgram speak REST API and
// plays the returned raw PCM through an audio player.
type TextToSpeechClient struct {
	speakURL   string
	apiKey     string
	voice      deepgramVoice
	sampleRate int

	player     audio.Player
	httpClient *http.Client
}

type TextToSpeechClientOption func(*TextToSpeechClient)

func WithSpeakURL(speakURL string) TextToSpeechClientOption {
	return func(c *TextToSpeechClient) { c.speakURL = speakURL }
}

func WithAPIKey(apiKey string) TextToSpeechClientOption {
	return func(c *TextToSpeechClient) { c.apiKey = apiKey }
}

func WithSampleRate(sampleRate int) TextToSpeechClientOption {
	return func(c *TextToSpeechClient) { c.sampleRate = sampleRate }
}

func NewTextToSpeechClient(voice deepgramVoice, player audio.Player, opts ...TextToSpeechClientOption) (*TextToSpeechClient, error) {
	client := &TextToSpeechClient{
		speakURL:   DefaultSpeakURL,
		apiKey:     os.Getenv("DEEPGRAM_API_KEY"),
		voice:      defaultVoice,
		sampleRate: DefaultSampleRate,
		player:     player,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(client)
	}

	if voice != "" {
		if !slices.Contains(GetAvailableVoices(), voice) {
			return nil, fmt.Errorf("invalid voice %q", voice)
		}
		client.voice = voice
	}
	if client.apiKey == "" {
		return nil, fmt.Errorf("deepgram api key not found")
	}
	if player == nil {
		return nil, fmt.Errorf("audio player is required")
	}

	return client, nil
}

func (c *TextToSpeechClient) SetVoice(voice deepgramVoice) {
	c.voice = voice
}

func (c *TextToSpeechClient) Speak(ctx context.Context, text string) error {
	ctx, span := tracer.Start(ctx, "deepgram speak")
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	pcm, err := c.synthesize(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetAttributes(attribute.Int("audio.bytes", len(pcm)))

	encoding := audio.EncodingInfo{SampleRate: c.sampleRate, Format: audio.EncodingLinear16}
	if err := c.player.Play(ctx, pcm, encoding); err != nil {
		err = fmt.Errorf("failed to play synthesized speech: %w", err)
		span.RecordError(err)
		return err
	}
	return nil
}

func (c *TextToSpeechClient) synthesize(ctx context.Context, text string) ([]byte, error) {
	speakURL, err := url.Parse(c.speakURL)
	if err != nil {
		return nil, fmt.Errorf("invalid speak url: %w", err)
	}
	urlValues := speakURL.Query()
	urlValues.Set("model", string(c.voice))
	urlValues.Set("encoding", audio.EncodingLinear16.Name())
	urlValues.Set("sample_rate", strconv.Itoa(c.sampleRate))
	urlValues.Set("container", "none")
	speakURL.RawQuery = urlValues.Encode()

	body, err := json.Marshal(struct {
		Text string `json:"text"`
	}{Text: text})
	if err != nil {
		return nil, fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, speakURL.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("non-OK HTTP status: %s: %s", resp.Status, strings.TrimSpace(string(errorBody)))
	}

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}
	return pcm, nil
}
