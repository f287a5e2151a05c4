package events

import (
	"github.com/google/uuid"
	"github.com/koscakluka/ema-drive/core/commands"
)

const (
	KindScriptStarted   Kind = "script.started"
	KindStepSent        Kind = "script.step_sent"
	KindScriptCompleted Kind = "script.completed"
	KindScriptAborted   Kind = "script.aborted"
	KindScriptDiscarded Kind = "script.discarded"
)

type ScriptStarted struct {
	Base
	Script commands.Script
}

func NewScriptStarted(id uuid.UUID, script commands.Script) ScriptStarted {
	return ScriptStarted{Base: NewBase(KindScriptStarted, id), Script: script}
}

// StepSent is emitted after the action code of a step has been flushed, before
// its duration elapses.
type StepSent struct {
	Base
	Index int
	Step  commands.Step
}

func NewStepSent(id uuid.UUID, index int, step commands.Step) StepSent {
	return StepSent{Base: NewBase(KindStepSent, id), Index: index, Step: step}
}

type ScriptCompleted struct{ Base }

func NewScriptCompleted(id uuid.UUID) ScriptCompleted {
	return ScriptCompleted{Base: NewBase(KindScriptCompleted, id)}
}

// ScriptAborted is emitted when a send failed or shutdown interrupted the
// script. Remaining steps were not sent.
type ScriptAborted struct {
	Base
	Err error
}

func NewScriptAborted(id uuid.UUID, err error) ScriptAborted {
	return ScriptAborted{Base: NewBase(KindScriptAborted, id), Err: err}
}

// ScriptDiscarded is emitted for queued scripts that never started because the
// pipeline shut down.
type ScriptDiscarded struct {
	Base
	Script commands.Script
}

func NewScriptDiscarded(id uuid.UUID, script commands.Script) ScriptDiscarded {
	return ScriptDiscarded{Base: NewBase(KindScriptDiscarded, id), Script: script}
}
