package orchestration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-drive/core/audio"
	"github.com/koscakluka/ema-drive/core/events"
)

type segmentCollector struct {
	mu       sync.Mutex
	segments []*audio.Segment
}

func (c *segmentCollector) sink(_ uuid.UUID, segment *audio.Segment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.segments = append(c.segments, segment)
}

func (c *segmentCollector) collected() []*audio.Segment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*audio.Segment(nil), c.segments...)
}

func TestCapturePressTwiceIsIgnored(t *testing.T) {
	source := newChunkSourceStub()
	collector := &segmentCollector{}
	capture := newCaptureController(source, collector.sink, noopEventEmitter, discardLogger())

	if !capture.Press(context.Background()) {
		t.Fatalf("expected first press to start recording")
	}
	if capture.Press(context.Background()) {
		t.Fatalf("expected second press to be ignored")
	}
	if capture.State() != CaptureRecording {
		t.Fatalf("expected recording state, got %s", capture.State())
	}
	if !capture.Release() {
		t.Fatalf("expected release to stop recording")
	}
	if started, stopped := source.counts(); started != 1 || stopped != 1 {
		t.Fatalf("expected one start and one stop, got %d and %d", started, stopped)
	}
}

func TestCaptureReleaseWhileIdle(t *testing.T) {
	capture := newCaptureController(newChunkSourceStub(), (&segmentCollector{}).sink, noopEventEmitter, discardLogger())
	if capture.Release() {
		t.Fatalf("expected release while idle to be ignored")
	}
	if capture.State() != CaptureIdle {
		t.Fatalf("expected idle state")
	}
}

func TestCaptureWithoutSource(t *testing.T) {
	capture := newCaptureController(nil, (&segmentCollector{}).sink, noopEventEmitter, discardLogger())
	if capture.Press(context.Background()) {
		t.Fatalf("expected press without a source to be ignored")
	}
}

func TestCaptureStartFailure(t *testing.T) {
	source := newChunkSourceStub()
	source.startErr = errors.New("device busy")
	capture := newCaptureController(source, (&segmentCollector{}).sink, noopEventEmitter, discardLogger())

	if capture.Press(context.Background()) {
		t.Fatalf("expected press to fail when the source cannot start")
	}
	if capture.State() != CaptureIdle {
		t.Fatalf("expected idle state after a failed start")
	}
}

func TestCaptureEmptyRecordingIsNotForwarded(t *testing.T) {
	recorder := newEventRecorder()
	collector := &segmentCollector{}
	capture := newCaptureController(newChunkSourceStub(), collector.sink, recorder.handle, discardLogger())

	capture.Press(context.Background())
	capture.Release()

	if len(collector.collected()) != 0 {
		t.Fatalf("expected empty recording to be dropped")
	}
	stopped := recorder.ofKind(events.KindCaptureStopped)
	if len(stopped) != 1 || !stopped[0].(events.CaptureStopped).Empty {
		t.Fatalf("expected one empty capture stopped event, got %v", stopped)
	}
}

func TestCaptureForwardsRecordedAudio(t *testing.T) {
	source := newChunkSourceStub()
	recorder := newEventRecorder()
	collector := &segmentCollector{}
	capture := newCaptureController(source, collector.sink, recorder.handle, discardLogger())

	if !capture.Press(context.Background()) {
		t.Fatalf("expected press to start recording")
	}
	source.chunks <- make([]int16, 800)
	source.chunks <- make([]int16, 800)
	if !source.drained(time.Second) {
		t.Fatalf("chunks were not read")
	}
	capture.Release()

	segments := collector.collected()
	if len(segments) != 1 {
		t.Fatalf("expected one segment, got %d", len(segments))
	}
	if segments[0].Len() != 1600 {
		t.Fatalf("expected 1600 samples, got %d", segments[0].Len())
	}
	if got := segments[0].Duration(); got != 100*time.Millisecond {
		t.Fatalf("expected 100ms of audio, got %s", got)
	}

	started := recorder.ofKind(events.KindCaptureStarted)
	stopped := recorder.ofKind(events.KindCaptureStopped)
	if len(started) != 1 || len(stopped) != 1 || started[0].CorrelationID() != stopped[0].CorrelationID() {
		t.Fatalf("expected matching capture events, got %v and %v", started, stopped)
	}
}
