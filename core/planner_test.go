package orchestration

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-drive/core/commands"
	"github.com/koscakluka/ema-drive/core/llms"
)

func newTestPlannerStage(planner llms.Planner, timeout time.Duration) *PlannerStage {
	return &PlannerStage{
		planner:   planner,
		parser:    commands.NewParser(commands.DefaultAlphabet()),
		directive: SystemDirective(commands.DefaultAlphabet(), DefaultCommandMarker),
		marker:    DefaultCommandMarker,
		timeout:   timeout,
		fallback:  DefaultFallbackReply,
		logger:    discardLogger(),
		metrics:   newPipelineMetrics(),
	}
}

func TestPlanSplitsReplyAndCommands(t *testing.T) {
	testCases := []struct {
		name      string
		response  string
		reply     string
		script    string
		commands  bool
		parseErrs int
	}{
		{
			name:     "reply and commands",
			response: "Going up and stopping.\nCOMMANDS: U:3;S:1;",
			reply:    "Going up and stopping.",
			script:   "U:3;S:1;",
			commands: true,
		},
		{
			name:     "no marker",
			response: "  I can only move the device.  ",
			reply:    "I can only move the device.",
			script:   "",
		},
		{
			name:     "empty payload",
			response: "Nothing to do. COMMANDS:",
			reply:    "Nothing to do.",
			script:   "",
		},
		{
			name:     "only commands",
			response: "COMMANDS: L:1;",
			reply:    "",
			script:   "L:1;",
			commands: true,
		},
		{
			name:      "first marker wins",
			response:  "Sure. COMMANDS: R:1; COMMANDS: U:1;",
			reply:     "Sure.",
			script:    "R:1;",
			parseErrs: 1,
			commands:  true,
		},
		{
			name:      "invalid tokens are skipped",
			response:  "Okay.\nCOMMANDS: X:1;U:2;D:abc;",
			reply:     "Okay.",
			script:    "U:2;",
			parseErrs: 2,
			commands:  true,
		},
		{
			name:      "every token invalid",
			response:  "Okay.\nCOMMANDS: X:1;",
			reply:     "Okay.",
			script:    "",
			parseErrs: 1,
			commands:  true,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			stage := newTestPlannerStage(replyingPlanner(testCase.response), time.Second)
			plan, err := stage.Plan(context.Background(), uuid.New(), "utterance")
			if err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if plan.Fallback {
				t.Fatalf("unexpected fallback")
			}
			if plan.HasCommands != testCase.commands {
				t.Fatalf("expected HasCommands %v, got %v", testCase.commands, plan.HasCommands)
			}
			if plan.Reply != testCase.reply {
				t.Fatalf("expected reply %q, got %q", testCase.reply, plan.Reply)
			}
			if got := plan.Script.String(); got != testCase.script {
				t.Fatalf("expected script %q, got %q", testCase.script, got)
			}

			var parseErr *commands.ParseError
			if testCase.parseErrs == 0 {
				if plan.ParseErr != nil {
					t.Fatalf("unexpected parse error %v", plan.ParseErr)
				}
			} else if !errors.As(plan.ParseErr, &parseErr) || len(parseErr.Tokens) != testCase.parseErrs {
				t.Fatalf("expected %d token errors, got %v", testCase.parseErrs, plan.ParseErr)
			}
		})
	}
}

func TestPlanSendsDirectiveAndUtterance(t *testing.T) {
	var received []llms.Message
	stage := newTestPlannerStage(plannerStub{chat: func(_ context.Context, messages []llms.Message) (*llms.Response, error) {
		received = messages
		return &llms.Response{Content: "ok"}, nil
	}}, time.Second)

	if _, err := stage.Plan(context.Background(), uuid.New(), "turn right"); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if len(received) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(received))
	}
	if received[0].Role != llms.MessageRoleSystem || received[0].Content != stage.directive {
		t.Fatalf("expected system directive first, got %+v", received[0])
	}
	if received[1].Role != llms.MessageRoleUser || received[1].Content != "turn right" {
		t.Fatalf("expected utterance second, got %+v", received[1])
	}
}

func TestPlanTimeoutFallsBack(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	// Ignores ctx on purpose to check the stage enforces the timeout.
	stage := newTestPlannerStage(plannerStub{chat: func(context.Context, []llms.Message) (*llms.Response, error) {
		<-release
		return &llms.Response{Content: "too late COMMANDS: U:1;"}, nil
	}}, 50*time.Millisecond)

	start := time.Now()
	plan, err := stage.Plan(context.Background(), uuid.New(), "go")
	if err == nil || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("timeout was not enforced, took %s", elapsed)
	}
	if !plan.Fallback || plan.Reply != DefaultFallbackReply {
		t.Fatalf("expected fallback reply, got %+v", plan)
	}
	if !plan.Script.IsEmpty() {
		t.Fatalf("expected no script on timeout, got %q", plan.Script)
	}
}

func TestPlanErrorFallsBack(t *testing.T) {
	stage := newTestPlannerStage(plannerStub{chat: func(context.Context, []llms.Message) (*llms.Response, error) {
		return nil, errors.New("connection refused")
	}}, time.Second)

	plan, err := stage.Plan(context.Background(), uuid.New(), "go")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !plan.Fallback || plan.Reply != DefaultFallbackReply || !plan.Script.IsEmpty() {
		t.Fatalf("expected fallback plan, got %+v", plan)
	}
}

func TestSystemDirectiveUsesAlphabet(t *testing.T) {
	alphabet, err := commands.NewAlphabet("FBLRX")
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	directive := SystemDirective(alphabet, "DO:")

	for _, want := range []string{"'F'", "'B'", "'X'", `"DO:"`, "DO: F:3;X:1;"} {
		if !strings.Contains(directive, want) {
			t.Fatalf("expected directive to contain %s:\n%s", want, directive)
		}
	}
	if strings.Contains(directive, "'U'") {
		t.Fatalf("directive should not mention default letters:\n%s", directive)
	}
}
