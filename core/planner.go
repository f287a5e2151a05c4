package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-drive/core/commands"
	"github.com/koscakluka/ema-drive/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultCommandMarker   = "COMMANDS:"
	DefaultResponseTimeout = 15 * time.Second
	DefaultFallbackReply   = "Sorry, I couldn't process your request. Please try again."
)

var ErrNoPlanner = errors.New("no planner configured")

// Plan is the outcome of one planner request.
type Plan struct {
	// Reply is spoken back to the user, it can be empty.
	Reply  string
	Script commands.Script
	// HasCommands is set when the reply carried a non-empty command payload.
	// The script is executed even if every token was rejected, which still
	// stops the device.
	HasCommands bool
	// Fallback is set when the planner failed and Reply is the fallback
	// reply.
	Fallback bool
	// ParseErr holds the rejected tokens of the command payload, if any.
	ParseErr error
}

type PlannerStage struct {
	planner     llms.Planner
	chatOptions []llms.ChatOption

	parser    *commands.Parser
	directive string
	marker    string
	timeout   time.Duration
	fallback  string

	logger  *slog.Logger
	metrics *pipelineMetrics
}

// Plan asks the planner what to do about the utterance. The returned Plan is
// always usable: on error it carries the fallback reply and no script.
func (s *PlannerStage) Plan(ctx context.Context, id uuid.UUID, utterance string) (Plan, error) {
	ctx, span := tracer.Start(ctx, "plan utterance")
	defer span.End()
	span.SetAttributes(attribute.String("utterance.id", id.String()))

	reply, err := s.ask(ctx, utterance)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.plannerFallbacks.Add(ctx, 1)
		return Plan{Reply: s.fallback, Script: commands.Script{}, Fallback: true}, err
	}

	spoken, payload, found := splitReply(reply, s.marker)
	plan := Plan{Reply: spoken, Script: commands.Script{}}
	if found && payload != "" {
		plan.HasCommands = true
		plan.Script, plan.ParseErr = s.parser.Parse(payload)
		var parseErr *commands.ParseError
		if errors.As(plan.ParseErr, &parseErr) {
			s.metrics.tokenParseErrors.Add(ctx, int64(len(parseErr.Tokens)))
			for _, tokenErr := range parseErr.Tokens {
				s.logger.Warn("Skipping invalid command", "id", id, "index", tokenErr.Index, "token", tokenErr.Token, "error", tokenErr.Err)
			}
		}
	}
	span.SetAttributes(
		attribute.Int("script.steps", len(plan.Script)),
		attribute.Bool("script.present", plan.HasCommands),
		attribute.Bool("reply.empty", plan.Reply == ""),
	)

	return plan, nil
}

func (s *PlannerStage) ask(ctx context.Context, utterance string) (string, error) {
	if s.planner == nil {
		return "", ErrNoPlanner
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type result struct {
		response *llms.Response
		err      error
	}
	// Planners are not trusted to honour ctx, the timeout is enforced here.
	resultCh := make(chan result, 1)
	go func() {
		response, err := s.planner.Chat(ctx, []llms.Message{
			llms.SystemMessage(s.directive),
			llms.UserMessage(utterance),
		}, s.chatOptions...)
		resultCh <- result{response: response, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			return "", fmt.Errorf("failed to get planner response: %w", res.err)
		}
		if res.response == nil {
			return "", fmt.Errorf("planner returned no response")
		}
		return res.response.Content, nil
	case <-ctx.Done():
		return "", fmt.Errorf("planner did not respond within %s: %w", s.timeout, ctx.Err())
	}
}

// splitReply splits on the first marker occurrence. Without a marker the whole
// text is the reply.
func splitReply(text, marker string) (reply, payload string, found bool) {
	before, after, found := strings.Cut(text, marker)
	return strings.TrimSpace(before), strings.TrimSpace(after), found
}

// SystemDirective renders the instructions sent with every utterance for the
// given alphabet and marker.
func SystemDirective(alphabet commands.Alphabet, marker string) string {
	if alphabet.IsZero() {
		alphabet = commands.DefaultAlphabet()
	}
	if marker == "" {
		marker = DefaultCommandMarker
	}
	up := alphabet.Code(commands.ActionUp)
	down := alphabet.Code(commands.ActionDown)
	left := alphabet.Code(commands.ActionLeft)
	right := alphabet.Code(commands.ActionRight)
	stop := alphabet.Stop()

	var b strings.Builder
	b.WriteString("You are an assistant controlling a small motorized device over a serial link. ")
	b.WriteString("The device understands these single-letter commands:\n")
	b.WriteString(alphabet.Describe())
	b.WriteString("\nRespond with a sequence of timed commands. Format your response as follows:\n")
	b.WriteString("1. First, acknowledge the request in one brief, conversational sentence.\n")
	fmt.Fprintf(&b, "2. Then, on a new line, write %q followed by the commands with their durations.\n\n", marker)
	fmt.Fprintf(&b, "Command format: [LETTER]:[SECONDS]; for example %c:3; runs %s for 3 seconds ", up, commands.ActionUp)
	fmt.Fprintf(&b, "and %c:1.5;%c:0.5; runs %s for 1.5 seconds, then %s for 0.5 seconds.\n", right, stop, commands.ActionRight, commands.ActionStop)
	b.WriteString("Only use the letters listed above. Durations are seconds and must be greater than zero.\n")
	b.WriteString("If the request is vague, such as \"move around randomly\", create a sequence of 3 to 6 commands.\n")
	b.WriteString("If the request does not ask for any movement, answer without the command line.\n\n")
	b.WriteString("Examples:\n")
	b.WriteString("User: \"Go forward for a bit and then stop\"\n")
	fmt.Fprintf(&b, "Response: Moving forward, then stopping.\n%s %c:3;%c:1;\n\n", marker, up, stop)
	b.WriteString("User: \"Dance around\"\n")
	fmt.Fprintf(&b, "Response: Here is a little dance.\n%s %c:1;%c:1;%c:0.5;%c:1;%c:1;%c:0.5;\n", marker, left, right, down, left, right, stop)
	return b.String()
}
