package orchestration

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-drive/core/audio"
	"github.com/koscakluka/ema-drive/core/events"
	"github.com/koscakluka/ema-drive/core/speechtotext"
)

func TestTranscriptionStage(t *testing.T) {
	testCases := []struct {
		name        string
		transcriber speechtotext.Transcriber
		text        string
		ok          bool
	}{
		{name: "trimmed transcript", transcriber: transcriberStub{text: "  move up  "}, text: "move up", ok: true},
		{name: "blank transcript", transcriber: transcriberStub{text: " \n "}},
		{name: "transcriber error", transcriber: transcriberStub{err: errors.New("service unavailable")}},
		{name: "no transcriber"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			recorder := newEventRecorder()
			stage := &TranscriptionStage{
				transcriber: testCase.transcriber,
				emit:        recorder.handle,
				logger:      discardLogger(),
			}
			segment := audio.NewSegment(16000)
			segment.Append(make([]int16, 160))

			text, ok := stage.Transcribe(context.Background(), uuid.New(), segment)
			if ok != testCase.ok || text != testCase.text {
				t.Fatalf("expected (%q, %v), got (%q, %v)", testCase.text, testCase.ok, text, ok)
			}

			final, dropped := recorder.count(events.KindTranscriptFinal), recorder.count(events.KindTranscriptDropped)
			if testCase.ok && (final != 1 || dropped != 0) {
				t.Fatalf("expected a final transcript event, got %d final and %d dropped", final, dropped)
			}
			if !testCase.ok && (final != 0 || dropped != 1) {
				t.Fatalf("expected a dropped transcript event, got %d final and %d dropped", final, dropped)
			}
		})
	}
}
