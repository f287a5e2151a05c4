package orchestration

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/koscakluka/ema-drive/core/audio"
	"github.com/koscakluka/ema-drive/core/events"
	"github.com/koscakluka/ema-drive/core/llms"
	"github.com/koscakluka/ema-drive/core/speechtotext"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeActuator struct {
	mu     sync.Mutex
	writes []byte
	// failOn makes the send attempt with the given index fail.
	failOn   map[int]error
	attempts int
	closed   int
}

func (a *fakeActuator) Send(code byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	attempt := a.attempts
	a.attempts++
	if err, ok := a.failOn[attempt]; ok {
		return err
	}
	a.writes = append(a.writes, code)
	return nil
}

func (a *fakeActuator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed++
	return nil
}

func (a *fakeActuator) Written() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return string(a.writes)
}

func (a *fakeActuator) Closed() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

type plannerStub struct {
	chat func(ctx context.Context, messages []llms.Message) (*llms.Response, error)
}

func (p plannerStub) Chat(ctx context.Context, messages []llms.Message, _ ...llms.ChatOption) (*llms.Response, error) {
	return p.chat(ctx, messages)
}

func replyingPlanner(reply string) plannerStub {
	return plannerStub{chat: func(context.Context, []llms.Message) (*llms.Response, error) {
		return &llms.Response{Content: reply}, nil
	}}
}

type transcriberStub struct {
	text string
	err  error
}

func (t transcriberStub) Transcribe(context.Context, *audio.Segment, ...speechtotext.TranscriptionOption) (string, error) {
	return t.text, t.err
}

type recordingSpeaker struct {
	mu      sync.Mutex
	spoken  []string
	active  int
	overlap bool
	delay   time.Duration
}

func (s *recordingSpeaker) Speak(ctx context.Context, text string) error {
	s.mu.Lock()
	s.active++
	if s.active > 1 {
		s.overlap = true
	}
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.active--
	s.spoken = append(s.spoken, text)
	return nil
}

func (s *recordingSpeaker) Spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoken...)
}

func (s *recordingSpeaker) Overlapped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlap
}

type chunkSourceStub struct {
	chunks   chan []int16
	startErr error
	started  int
	stopped  int
	mu       sync.Mutex
}

func newChunkSourceStub() *chunkSourceStub {
	return &chunkSourceStub{chunks: make(chan []int16, 8)}
}

func (s *chunkSourceStub) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started++
	return s.startErr
}

func (s *chunkSourceStub) ReadChunk(ctx context.Context) ([]int16, error) {
	select {
	case chunk := <-s.chunks:
		return chunk, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *chunkSourceStub) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped++
	return nil
}

func (s *chunkSourceStub) counts() (started, stopped int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started, s.stopped
}

// drained waits until every queued chunk has been read.
func (s *chunkSourceStub) drained(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for len(s.chunks) > 0 {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
	return true
}

func (s *chunkSourceStub) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{SampleRate: 16000, Format: audio.EncodingLinear16}
}

// eventRecorder collects events and lets tests wait for a kind.
type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
	notify chan struct{}
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{notify: make(chan struct{}, 1)}
}

func (r *eventRecorder) handle(event events.Event) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

func (r *eventRecorder) count(kind events.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, event := range r.events {
		if event.Kind() == kind {
			n++
		}
	}
	return n
}

func (r *eventRecorder) ofKind(kind events.Kind) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matching []events.Event
	for _, event := range r.events {
		if event.Kind() == kind {
			matching = append(matching, event)
		}
	}
	return matching
}

var errTimedOut = errors.New("timed out waiting for events")

func (r *eventRecorder) waitFor(kind events.Kind, n int, timeout time.Duration) error {
	deadline := time.After(timeout)
	for {
		if r.count(kind) >= n {
			return nil
		}
		select {
		case <-r.notify:
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			return errTimedOut
		}
	}
}
