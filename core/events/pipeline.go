package events

import "github.com/google/uuid"

const (
	KindPipelineStarted      Kind = "pipeline.started"
	KindPipelineShuttingDown Kind = "pipeline.shutting_down"
	KindPipelineStopped      Kind = "pipeline.stopped"
)

type PipelineStarted struct{ Base }

func NewPipelineStarted() PipelineStarted {
	return PipelineStarted{Base: NewBase(KindPipelineStarted, uuid.Nil)}
}

type PipelineShuttingDown struct{ Base }

func NewPipelineShuttingDown() PipelineShuttingDown {
	return PipelineShuttingDown{Base: NewBase(KindPipelineShuttingDown, uuid.Nil)}
}

// PipelineStopped is the last event emitted by a pipeline. Err holds cleanup
// failures, if any.
type PipelineStopped struct {
	Base
	Err error
}

func NewPipelineStopped(err error) PipelineStopped {
	return PipelineStopped{Base: NewBase(KindPipelineStopped, uuid.Nil), Err: err}
}
