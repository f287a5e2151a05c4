package events

import "github.com/google/uuid"

const (
	// KindTranscriptFinal identifies an utterance queued for planning.
	KindTranscriptFinal Kind = "transcript.final"
	// KindTranscriptDropped identifies a segment that produced no utterance.
	KindTranscriptDropped Kind = "transcript.dropped"
)

type TranscriptFinal struct {
	Base
	Text string
}

func NewTranscriptFinal(id uuid.UUID, text string) TranscriptFinal {
	return TranscriptFinal{Base: NewBase(KindTranscriptFinal, id), Text: text}
}

// TranscriptDropped carries the transcription error, or nil when the
// transcript was empty.
type TranscriptDropped struct {
	Base
	Err error
}

func NewTranscriptDropped(id uuid.UUID, err error) TranscriptDropped {
	return TranscriptDropped{Base: NewBase(KindTranscriptDropped, id), Err: err}
}
