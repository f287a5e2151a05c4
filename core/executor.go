package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-drive/core/commands"
	"github.com/koscakluka/ema-drive/core/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var ErrShuttingDown = errors.New("pipeline is shutting down")

// Actuator is the hardware end of the pipeline. *serial.Link implements it.
type Actuator interface {
	Send(code byte) error
	Close() error
}

type scriptJob struct {
	id     uuid.UUID
	script commands.Script
}

// CommandExecutor runs scripts one at a time against the actuator. Scripts
// are queued, never preempted, so bytes of two scripts never interleave.
type CommandExecutor struct {
	link     Actuator
	alphabet commands.Alphabet

	queue    chan scriptJob
	stopping <-chan struct{}
	state    atomic.Int32

	emit    eventEmitter
	logger  *slog.Logger
	metrics *pipelineMetrics
}

func newCommandExecutor(link Actuator, alphabet commands.Alphabet, capacity int, stopping <-chan struct{}, emit eventEmitter, logger *slog.Logger, metrics *pipelineMetrics) *CommandExecutor {
	return &CommandExecutor{
		link:     link,
		alphabet: alphabet,
		queue:    make(chan scriptJob, capacity),
		stopping: stopping,
		emit:     emit,
		logger:   logger,
		metrics:  metrics,
	}
}

func (e *CommandExecutor) State() ExecutorState { return ExecutorState(e.state.Load()) }

// Submit queues a script. It blocks while the queue is full until space frees
// up, ctx is done or the pipeline starts shutting down.
func (e *CommandExecutor) Submit(ctx context.Context, id uuid.UUID, script commands.Script) error {
	select {
	case <-e.stopping:
		return ErrShuttingDown
	default:
	}

	select {
	case e.queue <- scriptJob{id: id, script: script}:
		return nil
	case <-e.stopping:
		return ErrShuttingDown
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *CommandExecutor) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			e.discardQueued()
			return nil
		case job := <-e.queue:
			if ctx.Err() != nil {
				e.discard(job)
				e.discardQueued()
				return nil
			}
			e.execute(ctx, job)
		}
	}
}

func (e *CommandExecutor) discardQueued() {
	for {
		select {
		case job := <-e.queue:
			e.discard(job)
		default:
			return
		}
	}
}

func (e *CommandExecutor) discard(job scriptJob) {
	e.logger.Info("Discarding queued commands", "id", job.id, "commands", job.script.Format(e.alphabet))
	e.emit(events.NewScriptDiscarded(job.id, job.script))
}

// execute sends every step and always finishes with exactly one Stop, even
// when a send fails or ctx is cancelled mid-step.
func (e *CommandExecutor) execute(ctx context.Context, job scriptJob) {
	ctx, span := tracer.Start(ctx, "execute script")
	defer span.End()
	span.SetAttributes(
		attribute.String("script.id", job.id.String()),
		attribute.String("script.commands", job.script.Format(e.alphabet)),
		attribute.Int("script.steps", len(job.script)),
	)

	e.state.Store(int32(ExecutorExecuting))
	defer e.state.Store(int32(ExecutorIdle))

	e.emit(events.NewScriptStarted(job.id, job.script))
	runErr := e.runSteps(ctx, job)

	if err := e.link.Send(e.alphabet.Stop()); err != nil {
		e.metrics.serialWriteFailures.Add(ctx, 1)
		runErr = errors.Join(runErr, fmt.Errorf("failed to send stop: %w", err))
	}
	e.metrics.scriptsExecuted.Add(ctx, 1)

	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		e.logger.Warn("Commands aborted", "id", job.id, "error", runErr)
		e.emit(events.NewScriptAborted(job.id, runErr))
		return
	}
	e.logger.Info("Commands completed", "id", job.id)
	e.emit(events.NewScriptCompleted(job.id))
}

func (e *CommandExecutor) runSteps(ctx context.Context, job scriptJob) error {
	for i, step := range job.script {
		if err := ctx.Err(); err != nil {
			return err
		}

		code := e.alphabet.Code(step.Action)
		if err := e.link.Send(code); err != nil {
			e.metrics.serialWriteFailures.Add(ctx, 1)
			return fmt.Errorf("failed to send step %d (%c): %w", i, code, err)
		}
		e.metrics.stepsSent.Add(ctx, 1)
		e.logger.Info("Executing step", "id", job.id, "action", step.Action.String(), "seconds", step.Seconds)
		e.emit(events.NewStepSent(job.id, i, step))

		timer := time.NewTimer(step.Duration())
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return nil
}
