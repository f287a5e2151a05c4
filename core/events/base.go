package events

import (
	"time"

	"github.com/google/uuid"
)

type Kind string

type Event interface {
	Kind() Kind
	Timestamp() time.Time
	// CorrelationID ties together the events caused by the same utterance,
	// it is uuid.Nil for events not caused by one.
	CorrelationID() uuid.UUID
}

type Base struct {
	kind          Kind
	timestamp     time.Time
	correlationID uuid.UUID
}

func NewBase(kind Kind, correlationID uuid.UUID) Base {
	return Base{kind: kind, timestamp: time.Now(), correlationID: correlationID}
}

func (b Base) Kind() Kind {
	return b.kind
}

func (b Base) Timestamp() time.Time {
	return b.timestamp
}

func (b Base) CorrelationID() uuid.UUID {
	return b.correlationID
}
