package events

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-drive/core/commands"
)

func TestConstructorsEmitExpectedKinds(t *testing.T) {
	id := uuid.New()
	testCases := []struct {
		name     string
		event    Event
		expected Kind
	}{
		{name: "pipeline started", event: NewPipelineStarted(), expected: KindPipelineStarted},
		{name: "pipeline shutting down", event: NewPipelineShuttingDown(), expected: KindPipelineShuttingDown},
		{name: "pipeline stopped", event: NewPipelineStopped(nil), expected: KindPipelineStopped},
		{name: "capture started", event: NewCaptureStarted(id), expected: KindCaptureStarted},
		{name: "capture stopped", event: NewCaptureStopped(id, time.Second), expected: KindCaptureStopped},
		{name: "transcript final", event: NewTranscriptFinal(id, "up"), expected: KindTranscriptFinal},
		{name: "transcript dropped", event: NewTranscriptDropped(id, nil), expected: KindTranscriptDropped},
		{name: "plan started", event: NewPlanStarted(id, "up"), expected: KindPlanStarted},
		{name: "plan completed", event: NewPlanCompleted(id, "ok", nil, false, false, nil), expected: KindPlanCompleted},
		{name: "script started", event: NewScriptStarted(id, commands.Script{}), expected: KindScriptStarted},
		{name: "step sent", event: NewStepSent(id, 0, commands.Step{}), expected: KindStepSent},
		{name: "script completed", event: NewScriptCompleted(id), expected: KindScriptCompleted},
		{name: "script aborted", event: NewScriptAborted(id, errors.New("write")), expected: KindScriptAborted},
		{name: "script discarded", event: NewScriptDiscarded(id, nil), expected: KindScriptDiscarded},
		{name: "speech started", event: NewSpeechStarted(id, "ok"), expected: KindSpeechStarted},
		{name: "speech ended", event: NewSpeechEnded(id, nil), expected: KindSpeechEnded},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := testCase.event.Kind(); got != testCase.expected {
				t.Fatalf("expected kind %q, got %q", testCase.expected, got)
			}
			if testCase.event.Timestamp().IsZero() {
				t.Fatalf("expected timestamp to be set")
			}
		})
	}
}

func TestCaptureStoppedMarksEmptyCaptures(t *testing.T) {
	id := uuid.New()
	if !NewCaptureStopped(id, 0).Empty {
		t.Fatalf("expected zero duration capture to be empty")
	}
	stopped := NewCaptureStopped(id, time.Second)
	if stopped.Empty {
		t.Fatalf("expected non-zero capture to not be empty")
	}
	if stopped.CorrelationID() != id {
		t.Fatalf("expected correlation id to be kept")
	}
}
