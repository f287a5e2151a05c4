package orchestration

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-drive/core/audio"
	"github.com/koscakluka/ema-drive/core/events"
	"github.com/koscakluka/ema-drive/core/speechtotext"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type transcriptionItem struct {
	id      uuid.UUID
	segment *audio.Segment
}

type TranscriptionStage struct {
	transcriber speechtotext.Transcriber
	options     []speechtotext.TranscriptionOption

	emit   eventEmitter
	logger *slog.Logger
}

// Transcribe returns the trimmed utterance and whether it should be planned.
// Failures and empty transcripts are logged and reported as not ok.
func (s *TranscriptionStage) Transcribe(ctx context.Context, id uuid.UUID, segment *audio.Segment) (string, bool) {
	ctx, span := tracer.Start(ctx, "transcribe segment")
	defer span.End()
	span.SetAttributes(
		attribute.String("utterance.id", id.String()),
		attribute.Int64("audio.duration_ms", segment.Duration().Milliseconds()),
	)

	if s.transcriber == nil {
		s.logger.Warn("No transcriber configured, dropping recording", "id", id)
		s.emit(events.NewTranscriptDropped(id, speechtotext.ErrNoSpeech))
		return "", false
	}

	text, err := s.transcriber.Transcribe(ctx, segment, s.options...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ctx.Err() == nil {
			s.logger.Error("Transcription failed", "id", id, "error", err)
		}
		s.emit(events.NewTranscriptDropped(id, err))
		return "", false
	}

	text = strings.TrimSpace(text)
	if text == "" {
		s.logger.Info("No speech detected", "id", id)
		s.emit(events.NewTranscriptDropped(id, nil))
		return "", false
	}

	s.logger.Info("You said", "id", id, "text", text)
	s.emit(events.NewTranscriptFinal(id, text))
	return text, true
}
