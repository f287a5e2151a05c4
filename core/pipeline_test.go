package orchestration

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/ema-drive/core/events"
	"github.com/koscakluka/ema-drive/core/llms"
)

type runningPipeline struct {
	*Pipeline
	recorder *eventRecorder
	runErr   chan error
}

func startPipeline(t *testing.T, opts ...PipelineOption) *runningPipeline {
	t.Helper()
	recorder := newEventRecorder()
	opts = append([]PipelineOption{WithLogger(discardLogger())}, opts...)
	opts = append(opts, WithEventHandler(recorder.handle))
	p := NewPipeline(opts...)

	runErr := make(chan error, 1)
	go func() { runErr <- p.Run(context.Background()) }()
	if err := recorder.waitFor(events.KindPipelineStarted, 1, 2*time.Second); err != nil {
		t.Fatalf("pipeline did not start: %v", err)
	}
	t.Cleanup(p.Shutdown)
	return &runningPipeline{Pipeline: p, recorder: recorder, runErr: runErr}
}

func TestPipelineSubmitPlansExecutesAndSpeaks(t *testing.T) {
	link := &fakeActuator{}
	speaker := &recordingSpeaker{}
	p := startPipeline(t,
		WithActuator(link),
		WithPlanner(replyingPlanner("Sure, moving up.\nCOMMANDS: U:0.01;")),
		WithSpeaker(speaker),
	)

	id, err := p.Submit(context.Background(), "  go up  ")
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if err := p.recorder.waitFor(events.KindScriptCompleted, 1, 2*time.Second); err != nil {
		t.Fatalf("script did not complete: %v", err)
	}
	if err := p.recorder.waitFor(events.KindSpeechEnded, 1, 2*time.Second); err != nil {
		t.Fatalf("reply was not spoken: %v", err)
	}

	if written := link.Written(); written != "US" {
		t.Fatalf("expected US, got %q", written)
	}
	if got := speaker.Spoken(); !slices.Equal(got, []string{"Sure, moving up."}) {
		t.Fatalf("unexpected speech %v", got)
	}

	for _, kind := range []events.Kind{events.KindTranscriptFinal, events.KindPlanStarted, events.KindPlanCompleted, events.KindScriptStarted, events.KindSpeechStarted} {
		matching := p.recorder.ofKind(kind)
		if len(matching) != 1 || matching[0].CorrelationID() != id {
			t.Fatalf("expected one %s event for %s, got %v", kind, id, matching)
		}
	}
	planned := p.recorder.ofKind(events.KindPlanStarted)[0].(events.PlanStarted)
	if planned.Utterance != "go up" {
		t.Fatalf("expected trimmed utterance, got %q", planned.Utterance)
	}
}

func TestPipelineSubmitRejectsBlankText(t *testing.T) {
	p := startPipeline(t, WithActuator(&fakeActuator{}))
	if _, err := p.Submit(context.Background(), "   "); err == nil {
		t.Fatalf("expected error for blank text")
	}
}

func TestPipelineRejectedCommandsStillStop(t *testing.T) {
	testCases := []struct {
		name   string
		reply  string
		strict bool
	}{
		{name: "every token invalid", reply: "Okay.\nCOMMANDS: X:1;"},
		{name: "strict parsing", reply: "Okay.\nCOMMANDS: U:0.01;X:1;", strict: true},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			link := &fakeActuator{}
			p := startPipeline(t,
				WithActuator(link),
				WithPlanner(replyingPlanner(testCase.reply)),
				WithStrictParsing(testCase.strict),
			)

			if _, err := p.Submit(context.Background(), "go"); err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if err := p.recorder.waitFor(events.KindScriptCompleted, 1, 2*time.Second); err != nil {
				t.Fatalf("script did not complete: %v", err)
			}
			if written := link.Written(); written != "S" {
				t.Fatalf("expected a single stop, got %q", written)
			}
			completed := p.recorder.ofKind(events.KindPlanCompleted)[0].(events.PlanCompleted)
			if !completed.HasCommands || completed.ParseErr == nil {
				t.Fatalf("expected rejected commands on the plan, got %+v", completed)
			}
		})
	}
}

func TestPipelineReplyWithoutCommandsSendsNothing(t *testing.T) {
	link := &fakeActuator{}
	speaker := &recordingSpeaker{}
	p := startPipeline(t,
		WithActuator(link),
		WithPlanner(replyingPlanner("I can only move the device. COMMANDS:")),
		WithSpeaker(speaker),
	)

	if _, err := p.Submit(context.Background(), "what time is it"); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if err := p.recorder.waitFor(events.KindSpeechEnded, 1, 2*time.Second); err != nil {
		t.Fatalf("reply was not spoken: %v", err)
	}
	if p.recorder.count(events.KindScriptStarted) != 0 || link.Written() != "" {
		t.Fatalf("expected no commands, got %q", link.Written())
	}
}

func TestPipelinePlannerTimeoutSpeaksFallbackOnly(t *testing.T) {
	link := &fakeActuator{}
	speaker := &recordingSpeaker{}
	p := startPipeline(t,
		WithActuator(link),
		WithPlanner(plannerStub{chat: func(ctx context.Context, _ []llms.Message) (*llms.Response, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}}),
		WithSpeaker(speaker),
		WithResponseTimeout(50*time.Millisecond),
	)

	if _, err := p.Submit(context.Background(), "spin around"); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if err := p.recorder.waitFor(events.KindSpeechEnded, 1, 2*time.Second); err != nil {
		t.Fatalf("fallback was not spoken: %v", err)
	}

	if got := speaker.Spoken(); !slices.Equal(got, []string{DefaultFallbackReply}) {
		t.Fatalf("expected only the fallback reply, got %v", got)
	}
	if p.recorder.count(events.KindScriptStarted) != 0 || link.Written() != "" {
		t.Fatalf("no commands should run after a planner timeout, got %q", link.Written())
	}
	completed := p.recorder.ofKind(events.KindPlanCompleted)
	if len(completed) != 1 || !completed[0].(events.PlanCompleted).Fallback {
		t.Fatalf("expected a fallback plan, got %v", completed)
	}
}

func TestPipelineCaptureToCommands(t *testing.T) {
	link := &fakeActuator{}
	source := newChunkSourceStub()
	p := startPipeline(t,
		WithActuator(link),
		WithAudioSource(source),
		WithTranscriber(transcriberStub{text: "turn left"}),
		WithPlanner(replyingPlanner("Turning left. COMMANDS: L:0.01;")),
	)

	if !p.Press() {
		t.Fatalf("expected press to start recording")
	}
	if p.CaptureState() != CaptureRecording {
		t.Fatalf("expected recording state")
	}
	source.chunks <- make([]int16, 1600)
	if !source.drained(time.Second) {
		t.Fatalf("chunks were not read")
	}
	if !p.Release() {
		t.Fatalf("expected release to stop recording")
	}

	if err := p.recorder.waitFor(events.KindScriptCompleted, 1, 2*time.Second); err != nil {
		t.Fatalf("script did not complete: %v", err)
	}
	if written := link.Written(); written != "LS" {
		t.Fatalf("expected LS, got %q", written)
	}
	captured := p.recorder.ofKind(events.KindCaptureStopped)
	planned := p.recorder.ofKind(events.KindPlanCompleted)
	if len(captured) != 1 || len(planned) != 1 || captured[0].CorrelationID() != planned[0].CorrelationID() {
		t.Fatalf("expected capture and plan to share an id")
	}
}

func TestPipelineTranscriptionFailureIsNotFatal(t *testing.T) {
	source := newChunkSourceStub()
	p := startPipeline(t,
		WithActuator(&fakeActuator{}),
		WithAudioSource(source),
		WithTranscriber(transcriberStub{err: errors.New("service unavailable")}),
		WithPlanner(replyingPlanner("unused")),
	)

	p.Press()
	source.chunks <- make([]int16, 160)
	source.drained(time.Second)
	p.Release()

	if err := p.recorder.waitFor(events.KindTranscriptDropped, 1, 2*time.Second); err != nil {
		t.Fatalf("expected the transcript to be dropped: %v", err)
	}
	if p.State() != PipelineRunning {
		t.Fatalf("expected pipeline to keep running")
	}
	if p.recorder.count(events.KindPlanStarted) != 0 {
		t.Fatalf("dropped transcripts must not be planned")
	}

	if !p.Press() {
		t.Fatalf("expected to accept a new recording")
	}
	p.Release()
}

func TestPipelineBoundsPlanningConcurrency(t *testing.T) {
	var (
		mu        sync.Mutex
		active    int
		maxActive int
	)
	planner := plannerStub{chat: func(context.Context, []llms.Message) (*llms.Response, error) {
		mu.Lock()
		active++
		maxActive = max(maxActive, active)
		mu.Unlock()
		time.Sleep(30 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return &llms.Response{Content: "Okay."}, nil
	}}
	p := startPipeline(t, WithActuator(&fakeActuator{}), WithPlanner(planner), WithPlanningConcurrency(2))

	for range 5 {
		if _, err := p.Submit(context.Background(), "hello"); err != nil {
			t.Fatalf("unexpected error %v", err)
		}
	}
	if err := p.recorder.waitFor(events.KindPlanCompleted, 5, 3*time.Second); err != nil {
		t.Fatalf("plans did not complete: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if maxActive > 2 {
		t.Fatalf("expected at most 2 concurrent plans, got %d", maxActive)
	}
}

func TestPipelineDispatchKeepsDrainingWhilePlannersAreBusy(t *testing.T) {
	release := make(chan struct{})
	planner := plannerStub{chat: func(ctx context.Context, _ []llms.Message) (*llms.Response, error) {
		select {
		case <-release:
			return &llms.Response{Content: "Okay."}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}}
	p := startPipeline(t,
		WithActuator(&fakeActuator{}),
		WithPlanner(planner),
		WithPlanningConcurrency(1),
		WithQueueCapacity(1),
	)
	t.Cleanup(func() { close(release) })

	for i := range 4 {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_, err := p.Submit(ctx, "hello")
		cancel()
		if err != nil {
			t.Fatalf("submit %d blocked behind the planner: %v", i, err)
		}
	}
	if err := p.recorder.waitFor(events.KindPlanStarted, 1, 2*time.Second); err != nil {
		t.Fatalf("planning did not start: %v", err)
	}
}

func TestPipelineShutdownClosesLinkOnce(t *testing.T) {
	link := &fakeActuator{}
	p := startPipeline(t, WithActuator(link))

	p.Shutdown()
	p.Shutdown()

	select {
	case err := <-p.runErr:
		if err != nil {
			t.Fatalf("unexpected run error %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not return after shutdown")
	}
	if link.Closed() != 1 {
		t.Fatalf("expected link to be closed once, got %d", link.Closed())
	}
	if p.State() != PipelineShuttingDown {
		t.Fatalf("expected shutting down state, got %s", p.State())
	}
	if _, err := p.Submit(context.Background(), "go up"); !errors.Is(err, ErrShuttingDown) {
		t.Fatalf("expected ErrShuttingDown, got %v", err)
	}
	if p.Press() {
		t.Fatalf("press must be ignored after shutdown")
	}
	if p.recorder.count(events.KindPipelineShuttingDown) != 1 || p.recorder.count(events.KindPipelineStopped) != 1 {
		t.Fatalf("expected one shutting down and one stopped event")
	}
}

func TestPipelineRunErrors(t *testing.T) {
	if err := NewPipeline(WithLogger(discardLogger())).Run(context.Background()); !errors.Is(err, ErrNoActuator) {
		t.Fatalf("expected ErrNoActuator, got %v", err)
	}

	p := startPipeline(t, WithActuator(&fakeActuator{}))
	if err := p.Run(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestPipelineShutdownBeforeRun(t *testing.T) {
	link := &fakeActuator{}
	p := NewPipeline(WithActuator(link), WithLogger(discardLogger()))
	p.Shutdown()
	if link.Closed() != 1 {
		t.Fatalf("expected link to be closed")
	}
}
