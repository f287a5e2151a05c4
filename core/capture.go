package orchestration

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-drive/core/audio"
	"github.com/koscakluka/ema-drive/core/events"
)

type segmentSink func(id uuid.UUID, segment *audio.Segment)

// CaptureController records audio between Press and Release and hands the
// finished segment on. It is safe to call Press and Release from any
// goroutine, typically the trigger's.
type CaptureController struct {
	source audio.ChunkSource
	sink   segmentSink

	mu        sync.Mutex
	recording bool
	id        uuid.UUID
	segment   *audio.Segment
	cancel    context.CancelFunc
	done      chan struct{}

	emit   eventEmitter
	logger *slog.Logger
}

func newCaptureController(source audio.ChunkSource, sink segmentSink, emit eventEmitter, logger *slog.Logger) *CaptureController {
	return &CaptureController{
		source: source,
		sink:   sink,
		emit:   emit,
		logger: logger,
	}
}

func (c *CaptureController) State() CaptureState {
	if c == nil {
		return CaptureIdle
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.recording {
		return CaptureRecording
	}
	return CaptureIdle
}

// Press starts recording. It returns false when already recording or when
// no audio source is configured.
func (c *CaptureController) Press(ctx context.Context) bool {
	if c == nil || c.source == nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.recording || ctx.Err() != nil {
		return false
	}

	if err := c.source.Start(); err != nil {
		c.logger.Error("Failed to start recording", "error", err)
		return false
	}

	captureCtx, cancel := context.WithCancel(ctx)
	c.recording = true
	c.id = uuid.New()
	c.segment = audio.NewSegment(c.source.EncodingInfo().SampleRate)
	c.cancel = cancel
	c.done = make(chan struct{})

	c.logger.Info("Recording started", "id", c.id)
	c.emit(events.NewCaptureStarted(c.id))
	go c.capture(captureCtx, c.segment, c.done)
	return true
}

// Release stops recording and hands a non-empty segment to the sink. It
// returns false when not recording.
func (c *CaptureController) Release() bool {
	if c == nil {
		return false
	}

	c.mu.Lock()
	if !c.recording {
		c.mu.Unlock()
		return false
	}
	c.recording = false
	id, segment, cancel, done := c.id, c.segment, c.cancel, c.done
	c.segment, c.cancel, c.done = nil, nil, nil
	c.mu.Unlock()

	cancel()
	<-done
	if err := c.source.Stop(); err != nil {
		c.logger.Warn("Failed to stop recording", "error", err)
	}

	duration := segment.Duration()
	c.logger.Info("Recording stopped", "id", id, "duration", duration)
	c.emit(events.NewCaptureStopped(id, duration))

	if segment.IsEmpty() {
		c.logger.Info("No audio recorded", "id", id)
		return true
	}
	c.sink(id, segment)
	return true
}

func (c *CaptureController) capture(ctx context.Context, segment *audio.Segment, done chan<- struct{}) {
	defer close(done)
	for {
		chunk, err := c.source.ReadChunk(ctx)
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Error("Failed to read audio", "error", err)
			}
			return
		}
		segment.Append(chunk)
		if ctx.Err() != nil {
			return
		}
	}
}
