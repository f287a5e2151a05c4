package orchestration

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-drive/core/events"
	"github.com/koscakluka/ema-drive/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type speechRequest struct {
	id   uuid.UUID
	text string
}

// FeedbackStage speaks queued replies one at a time in the order they were
// queued.
type FeedbackStage struct {
	speaker texttospeech.Speaker

	queue    chan speechRequest
	stopping <-chan struct{}

	emit   eventEmitter
	logger *slog.Logger
}

func newFeedbackStage(speaker texttospeech.Speaker, capacity int, stopping <-chan struct{}, emit eventEmitter, logger *slog.Logger) *FeedbackStage {
	return &FeedbackStage{
		speaker:  speaker,
		queue:    make(chan speechRequest, capacity),
		stopping: stopping,
		emit:     emit,
		logger:   logger,
	}
}

func (s *FeedbackStage) Enqueue(ctx context.Context, id uuid.UUID, text string) error {
	select {
	case <-s.stopping:
		return ErrShuttingDown
	default:
	}

	select {
	case s.queue <- speechRequest{id: id, text: text}:
		return nil
	case <-s.stopping:
		return ErrShuttingDown
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *FeedbackStage) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case request := <-s.queue:
			s.speak(ctx, request)
		}
	}
}

func (s *FeedbackStage) speak(ctx context.Context, request speechRequest) {
	ctx, span := tracer.Start(ctx, "speak reply")
	defer span.End()
	span.SetAttributes(attribute.String("utterance.id", request.id.String()))

	s.logger.Info("Assistant", "id", request.id, "text", request.text)
	s.emit(events.NewSpeechStarted(request.id, request.text))
	if s.speaker == nil {
		s.emit(events.NewSpeechEnded(request.id, nil))
		return
	}

	err := s.speaker.Speak(ctx, request.text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ctx.Err() == nil {
			s.logger.Error("Failed to speak", "id", request.id, "error", err)
		}
	}
	s.emit(events.NewSpeechEnded(request.id, err))
}
