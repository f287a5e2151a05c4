package events

import (
	"github.com/google/uuid"
	"github.com/koscakluka/ema-drive/core/commands"
)

const (
	KindPlanStarted   Kind = "plan.started"
	KindPlanCompleted Kind = "plan.completed"
)

type PlanStarted struct {
	Base
	Utterance string
}

func NewPlanStarted(id uuid.UUID, utterance string) PlanStarted {
	return PlanStarted{Base: NewBase(KindPlanStarted, id), Utterance: utterance}
}

// PlanCompleted carries the spoken reply and the parsed script. Fallback is
// set when the planner failed and the reply is the apology. HasCommands is set
// when the script goes to the executor, even if it has no steps left.
type PlanCompleted struct {
	Base
	Reply       string
	Script      commands.Script
	HasCommands bool
	Fallback    bool
	// ParseErr lists the tokens of the command payload that were rejected.
	ParseErr error
}

func NewPlanCompleted(id uuid.UUID, reply string, script commands.Script, hasCommands, fallback bool, parseErr error) PlanCompleted {
	return PlanCompleted{
		Base:        NewBase(KindPlanCompleted, id),
		Reply:       reply,
		Script:      script,
		HasCommands: hasCommands,
		Fallback:    fallback,
		ParseErr:    parseErr,
	}
}
