package speechtotext

import (
	"context"
	"errors"

	"github.com/koscakluka/ema-drive/core/audio"
)

// ErrNoSpeech is returned when a segment was transcribed but no words were
// recognized.
var ErrNoSpeech = errors.New("no speech detected")

// Transcriber turns one recorded segment into text.
type Transcriber interface {
	Transcribe(ctx context.Context, segment *audio.Segment, opts ...TranscriptionOption) (string, error)
}

type TranscriptionOptions struct {
	// Model overrides the client's default model identifier.
	Model string
	// Language is a BCP-47 language hint, empty lets the engine detect it.
	Language string
	// Prompt biases recognition towards the given vocabulary, not every
	// engine supports it.
	Prompt string
}

type TranscriptionOption func(*TranscriptionOptions)

func WithModel(model string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.Model = model
	}
}

func WithLanguage(language string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.Language = language
	}
}

func WithPrompt(prompt string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.Prompt = prompt
	}
}

func NewOptions(opts ...TranscriptionOption) TranscriptionOptions {
	options := TranscriptionOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
