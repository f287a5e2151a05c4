package llms

import (
	"context"

	"github.com/koscakluka/ema-drive/internal/utils"
)

// Planner is the planning collaborator: it receives the system directive and
// the user's utterance and answers with free text.
type Planner interface {
	Chat(ctx context.Context, messages []Message, opts ...ChatOption) (*Response, error)
}

// HealthChecker is implemented by planners that can verify they are reachable
// and that the configured model is available before the pipeline starts.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type ChatOptions struct {
	// Temperature is left to the provider default when nil.
	Temperature *float64
	// MaxTokens limits the length of the reply, zero means provider default.
	MaxTokens int
}

type ChatOption func(*ChatOptions)

func WithTemperature(temperature float64) ChatOption {
	return func(o *ChatOptions) {
		o.Temperature = utils.Ptr(temperature)
	}
}

func WithMaxTokens(maxTokens int) ChatOption {
	return func(o *ChatOptions) {
		o.MaxTokens = maxTokens
	}
}

func NewChatOptions(opts ...ChatOption) ChatOptions {
	options := ChatOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
