package orchestration

import (
	"log/slog"
	"time"

	"github.com/koscakluka/ema-drive/core/audio"
	"github.com/koscakluka/ema-drive/core/commands"
	"github.com/koscakluka/ema-drive/core/events"
	"github.com/koscakluka/ema-drive/core/llms"
	"github.com/koscakluka/ema-drive/core/speechtotext"
	"github.com/koscakluka/ema-drive/core/texttospeech"
)

const (
	DefaultQueueCapacity       = 16
	DefaultPlanningConcurrency = 4
	DefaultShutdownGracePeriod = 5 * time.Second
)

type PipelineOption func(*Pipeline)

// WithActuator sets the hardware link, usually a *serial.Link. The pipeline
// takes ownership and closes it on shutdown.
func WithActuator(link Actuator) PipelineOption {
	return func(p *Pipeline) { p.link = link }
}

func WithAlphabet(alphabet commands.Alphabet) PipelineOption {
	return func(p *Pipeline) {
		if !alphabet.IsZero() {
			p.alphabet = alphabet
		}
	}
}

// WithStrictParsing drops the whole script when any command token is invalid
// instead of keeping the valid ones.
func WithStrictParsing(strict bool) PipelineOption {
	return func(p *Pipeline) { p.strict = strict }
}

func WithAudioSource(source audio.ChunkSource) PipelineOption {
	return func(p *Pipeline) { p.source = source }
}

func WithTranscriber(transcriber speechtotext.Transcriber, opts ...speechtotext.TranscriptionOption) PipelineOption {
	return func(p *Pipeline) {
		p.transcriber = transcriber
		p.transcriptionOptions = opts
	}
}

func WithPlanner(planner llms.Planner, opts ...llms.ChatOption) PipelineOption {
	return func(p *Pipeline) {
		p.planner = planner
		p.chatOptions = opts
	}
}

// WithSpeaker sets how replies are voiced. Without one, replies are only
// logged and emitted as events.
func WithSpeaker(speaker texttospeech.Speaker) PipelineOption {
	return func(p *Pipeline) { p.speaker = speaker }
}

func WithResponseTimeout(timeout time.Duration) PipelineOption {
	return func(p *Pipeline) {
		if timeout > 0 {
			p.responseTimeout = timeout
		}
	}
}

func WithCommandMarker(marker string) PipelineOption {
	return func(p *Pipeline) {
		if marker != "" {
			p.marker = marker
		}
	}
}

// WithSystemDirective replaces the directive generated from the alphabet.
func WithSystemDirective(directive string) PipelineOption {
	return func(p *Pipeline) { p.directive = directive }
}

func WithFallbackReply(reply string) PipelineOption {
	return func(p *Pipeline) {
		if reply != "" {
			p.fallbackReply = reply
		}
	}
}

func WithQueueCapacity(capacity int) PipelineOption {
	return func(p *Pipeline) {
		if capacity > 0 {
			p.queueCapacity = capacity
		}
	}
}

// WithPlanningConcurrency bounds how many utterances are planned at once.
func WithPlanningConcurrency(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.planningConcurrency = n
		}
	}
}

func WithShutdownGracePeriod(d time.Duration) PipelineOption {
	return func(p *Pipeline) {
		if d > 0 {
			p.shutdownGracePeriod = d
		}
	}
}

// WithEventHandler registers a handler for pipeline events. It is called
// from worker goroutines and must not block.
func WithEventHandler(handler func(events.Event)) PipelineOption {
	return func(p *Pipeline) {
		if handler != nil {
			p.emit = handler
		}
	}
}

func WithLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}
