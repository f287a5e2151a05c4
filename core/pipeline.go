package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-drive/core/audio"
	"github.com/koscakluka/ema-drive/core/commands"
	"github.com/koscakluka/ema-drive/core/events"
	"github.com/koscakluka/ema-drive/core/llms"
	"github.com/koscakluka/ema-drive/core/speechtotext"
	"github.com/koscakluka/ema-drive/core/texttospeech"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

var (
	ErrAlreadyStarted = errors.New("pipeline already started")
	ErrNoActuator     = errors.New("no actuator configured")
)

type utterance struct {
	id   uuid.UUID
	text string
}

// Pipeline wires capture, transcription, planning, execution and spoken
// feedback together.
//
// Four persistent workers drain the queues between stages. Planning runs one
// unit per utterance, bounded by the planning concurrency. Run blocks until
// the context is cancelled or Shutdown is called.
type Pipeline struct {
	link                 Actuator
	alphabet             commands.Alphabet
	strict               bool
	source               audio.ChunkSource
	transcriber          speechtotext.Transcriber
	transcriptionOptions []speechtotext.TranscriptionOption
	planner              llms.Planner
	chatOptions          []llms.ChatOption
	speaker              texttospeech.Speaker
	responseTimeout      time.Duration
	marker               string
	directive            string
	fallbackReply        string
	queueCapacity        int
	planningConcurrency  int
	shutdownGracePeriod  time.Duration
	emit                 eventEmitter
	logger               *slog.Logger

	state    pipelineState
	started  atomic.Bool
	stopping chan struct{}
	done     chan struct{}

	transcriptions chan transcriptionItem
	dispatch       chan utterance

	capture       *CaptureController
	transcription *TranscriptionStage
	planning      *PlannerStage
	executor      *CommandExecutor
	feedback      *FeedbackStage

	planSlots *semaphore.Weighted
	planUnits sync.WaitGroup
	metrics   *pipelineMetrics
	workerCtx context.Context
	workerMu  sync.RWMutex
	cancel    context.CancelFunc
	stopOnce  sync.Once
	closeOnce sync.Once
	closeErr  error
}

func NewPipeline(opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		alphabet:            commands.DefaultAlphabet(),
		responseTimeout:     DefaultResponseTimeout,
		marker:              DefaultCommandMarker,
		fallbackReply:       DefaultFallbackReply,
		queueCapacity:       DefaultQueueCapacity,
		planningConcurrency: DefaultPlanningConcurrency,
		shutdownGracePeriod: DefaultShutdownGracePeriod,
		emit:                noopEventEmitter,
		logger:              logger,
		stopping:            make(chan struct{}),
		done:                make(chan struct{}),
		metrics:             newPipelineMetrics(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.directive == "" {
		p.directive = SystemDirective(p.alphabet, p.marker)
	}

	parser := commands.NewParser(p.alphabet)
	parser.Strict = p.strict

	p.transcriptions = make(chan transcriptionItem, p.queueCapacity)
	p.dispatch = make(chan utterance, p.queueCapacity)
	p.planSlots = semaphore.NewWeighted(int64(p.planningConcurrency))

	p.capture = newCaptureController(p.source, p.enqueueSegment, p.emit, p.logger)
	p.transcription = &TranscriptionStage{
		transcriber: p.transcriber,
		options:     p.transcriptionOptions,
		emit:        p.emit,
		logger:      p.logger,
	}
	p.planning = &PlannerStage{
		planner:     p.planner,
		chatOptions: p.chatOptions,
		parser:      parser,
		directive:   p.directive,
		marker:      p.marker,
		timeout:     p.responseTimeout,
		fallback:    p.fallbackReply,
		logger:      p.logger,
		metrics:     p.metrics,
	}
	p.executor = newCommandExecutor(p.link, p.alphabet, p.queueCapacity, p.stopping, p.emit, p.logger, p.metrics)
	p.feedback = newFeedbackStage(p.speaker, p.queueCapacity, p.stopping, p.emit, p.logger)

	return p
}

func (p *Pipeline) State() PipelineState         { return p.state.Load() }
func (p *Pipeline) CaptureState() CaptureState   { return p.capture.State() }
func (p *Pipeline) ExecutorState() ExecutorState { return p.executor.State() }
func (p *Pipeline) Alphabet() commands.Alphabet  { return p.alphabet }
func (p *Pipeline) Done() <-chan struct{}        { return p.done }

// Run starts the workers and blocks until ctx is cancelled, Shutdown is
// called or a worker fails. The actuator is closed before Run returns.
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	defer close(p.done)

	if p.link == nil {
		p.beginShutdown()
		return ErrNoActuator
	}

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(workerCtx)
	p.workerMu.Lock()
	p.workerCtx = groupCtx
	p.cancel = cancel
	p.workerMu.Unlock()

	select {
	case <-p.stopping:
		// Shutdown was requested before Run got here.
		cancel()
	default:
	}

	group.Go(func() error { return p.drainTranscriptions(groupCtx) })
	group.Go(func() error { return p.drainDispatch(groupCtx) })
	group.Go(func() error { return p.executor.run(groupCtx) })
	group.Go(func() error { return p.feedback.run(groupCtx) })

	p.logger.Info("Pipeline ready", "alphabet", p.alphabet.String(), "planning_concurrency", p.planningConcurrency)
	p.emit(events.NewPipelineStarted())

	<-groupCtx.Done()
	if p.beginShutdown() {
		p.logger.Info("Shutting down")
	}
	p.capture.Release()

	workersDone := make(chan error, 1)
	go func() {
		err := group.Wait()
		p.planUnits.Wait()
		workersDone <- err
	}()

	var runErr error
	select {
	case runErr = <-workersDone:
	case <-time.After(p.shutdownGracePeriod):
		p.logger.Warn("Workers did not stop within the grace period", "grace_period", p.shutdownGracePeriod)
	}

	closeErr := p.closeLink()
	p.emit(events.NewPipelineStopped(closeErr))
	return runErr
}

// Shutdown moves the pipeline to ShuttingDown, stops the workers and closes
// the actuator. It waits for Run to return when the pipeline was started and
// is safe to call more than once.
func (p *Pipeline) Shutdown() {
	p.beginShutdown()

	p.workerMu.RLock()
	cancel := p.cancel
	p.workerMu.RUnlock()
	if cancel != nil {
		cancel()
	}

	if p.started.Load() {
		<-p.done
		return
	}
	p.closeLink()
}

func (p *Pipeline) beginShutdown() bool {
	if !p.state.beginShutdown() {
		return false
	}
	p.stopOnce.Do(func() { close(p.stopping) })
	p.emit(events.NewPipelineShuttingDown())
	return true
}

// closeLink closes the actuator exactly once; failures are logged only.
func (p *Pipeline) closeLink() error {
	p.closeOnce.Do(func() {
		if p.link == nil {
			return
		}
		if err := p.link.Close(); err != nil {
			p.closeErr = fmt.Errorf("failed to close actuator: %w", err)
			p.logger.Error("Failed to close actuator", "error", err)
		}
	})
	return p.closeErr
}

func (p *Pipeline) runContext() (context.Context, bool) {
	p.workerMu.RLock()
	defer p.workerMu.RUnlock()
	if p.workerCtx == nil || p.workerCtx.Err() != nil {
		return nil, false
	}
	return p.workerCtx, true
}

// Press starts a recording. It reports false when the pipeline is not
// running, no audio source is configured or a recording is in progress.
func (p *Pipeline) Press() bool {
	ctx, ok := p.runContext()
	if !ok || p.State() != PipelineRunning {
		return false
	}
	return p.capture.Press(ctx)
}

// Release ends the current recording and queues it for transcription.
func (p *Pipeline) Release() bool { return p.capture.Release() }

// Submit queues text as if it had been transcribed from speech.
func (p *Pipeline) Submit(ctx context.Context, text string) (uuid.UUID, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return uuid.Nil, fmt.Errorf("empty utterance")
	}
	id := uuid.New()
	p.emit(events.NewTranscriptFinal(id, text))
	return id, p.enqueueUtterance(ctx, utterance{id: id, text: text})
}

// Say queues text for spoken feedback.
func (p *Pipeline) Say(ctx context.Context, text string) error {
	return p.feedback.Enqueue(ctx, uuid.New(), text)
}

// Execute queues a script for the hardware, bypassing planning.
func (p *Pipeline) Execute(ctx context.Context, script commands.Script) (uuid.UUID, error) {
	id := uuid.New()
	return id, p.executor.Submit(ctx, id, script)
}

func (p *Pipeline) enqueueSegment(id uuid.UUID, segment *audio.Segment) {
	select {
	case p.transcriptions <- transcriptionItem{id: id, segment: segment}:
	case <-p.stopping:
		p.logger.Info("Dropping recording during shutdown", "id", id)
	}
}

func (p *Pipeline) enqueueUtterance(ctx context.Context, u utterance) error {
	select {
	case <-p.stopping:
		return ErrShuttingDown
	default:
	}

	select {
	case p.dispatch <- u:
		return nil
	case <-p.stopping:
		return ErrShuttingDown
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipeline) drainTranscriptions(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case item := <-p.transcriptions:
			text, ok := p.transcription.Transcribe(ctx, item.id, item.segment)
			if !ok {
				continue
			}
			if err := p.enqueueUtterance(ctx, utterance{id: item.id, text: text}); err != nil {
				p.logger.Info("Dropping utterance", "id", item.id, "error", err)
			}
		}
	}
}

func (p *Pipeline) drainDispatch(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case u := <-p.dispatch:
			p.planUnits.Add(1)
			go func() {
				defer p.planUnits.Done()
				// Units wait for a slot here so the queue keeps draining.
				if err := p.planSlots.Acquire(ctx, 1); err != nil {
					p.logger.Info("Dropping utterance", "id", u.id, "error", err)
					return
				}
				defer p.planSlots.Release(1)
				p.handleUtterance(ctx, u)
			}()
		}
	}
}

func (p *Pipeline) handleUtterance(ctx context.Context, u utterance) {
	p.emit(events.NewPlanStarted(u.id, u.text))
	plan, err := p.planning.Plan(ctx, u.id, u.text)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.logger.Error("Planner failed, using fallback reply", "id", u.id, "error", err)
	}
	p.emit(events.NewPlanCompleted(u.id, plan.Reply, plan.Script, plan.HasCommands, plan.Fallback, plan.ParseErr))

	if plan.HasCommands {
		p.logger.Info("Commands planned", "id", u.id, "commands", plan.Script.Format(p.alphabet))
		if err := p.executor.Submit(ctx, u.id, plan.Script); err != nil {
			p.logger.Info("Dropping commands", "id", u.id, "error", err)
		}
	}
	if plan.Reply != "" {
		if err := p.feedback.Enqueue(ctx, u.id, plan.Reply); err != nil {
			p.logger.Info("Dropping reply", "id", u.id, "error", err)
		}
	}
}
