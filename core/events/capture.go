package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	// KindCaptureStarted identifies the trigger being pressed.
	KindCaptureStarted Kind = "capture.started"
	// KindCaptureStopped identifies the trigger being released.
	KindCaptureStopped Kind = "capture.stopped"
)

type CaptureStarted struct{ Base }

func NewCaptureStarted(id uuid.UUID) CaptureStarted {
	return CaptureStarted{Base: NewBase(KindCaptureStarted, id)}
}

// CaptureStopped reports how much audio was recorded. An empty capture is not
// transcribed.
type CaptureStopped struct {
	Base
	Duration time.Duration
	Empty    bool
}

func NewCaptureStopped(id uuid.UUID, duration time.Duration) CaptureStopped {
	return CaptureStopped{
		Base:     NewBase(KindCaptureStopped, id),
		Duration: duration,
		Empty:    duration == 0,
	}
}
