package events

import "github.com/google/uuid"

const (
	KindSpeechStarted Kind = "speech.started"
	KindSpeechEnded   Kind = "speech.ended"
)

type SpeechStarted struct {
	Base
	Text string
}

func NewSpeechStarted(id uuid.UUID, text string) SpeechStarted {
	return SpeechStarted{Base: NewBase(KindSpeechStarted, id), Text: text}
}

// SpeechEnded carries the speaker error, if any.
type SpeechEnded struct {
	Base
	Err error
}

func NewSpeechEnded(id uuid.UUID, err error) SpeechEnded {
	return SpeechEnded{Base: NewBase(KindSpeechEnded, id), Err: err}
}
