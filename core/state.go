package orchestration

import "sync/atomic"

// PipelineState moves from Running to ShuttingDown exactly once.
type PipelineState int32

const (
	PipelineRunning PipelineState = iota
	PipelineShuttingDown
)

func (s PipelineState) String() string {
	switch s {
	case PipelineRunning:
		return "running"
	case PipelineShuttingDown:
		return "shutting down"
	default:
		return "unknown"
	}
}

type pipelineState struct {
	value atomic.Int32
}

func (s *pipelineState) Load() PipelineState { return PipelineState(s.value.Load()) }

// beginShutdown reports whether this call made the transition.
func (s *pipelineState) beginShutdown() bool {
	return s.value.CompareAndSwap(int32(PipelineRunning), int32(PipelineShuttingDown))
}

type ExecutorState int32

const (
	ExecutorIdle ExecutorState = iota
	ExecutorExecuting
)

func (s ExecutorState) String() string {
	if s == ExecutorExecuting {
		return "executing"
	}
	return "idle"
}

type CaptureState int32

const (
	CaptureIdle CaptureState = iota
	CaptureRecording
)

func (s CaptureState) String() string {
	if s == CaptureRecording {
		return "recording"
	}
	return "idle"
}
