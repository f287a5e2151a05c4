package cmd

import (
	"log/slog"

	orchestration "github.com/koscakluka/ema-drive/core"
	"github.com/koscakluka/ema-drive/core/commands"
)

// pipelineOptions maps the configuration onto pipeline options shared by
// every command that runs a pipeline.
func pipelineOptions(alphabet commands.Alphabet, logger *slog.Logger) []orchestration.PipelineOption {
	return []orchestration.PipelineOption{
		orchestration.WithAlphabet(alphabet),
		orchestration.WithStrictParsing(cfg.Planner.StrictParsing),
		orchestration.WithCommandMarker(cfg.Planner.CommandMarker),
		orchestration.WithResponseTimeout(cfg.Planner.ResponseTimeout.Std()),
		orchestration.WithQueueCapacity(cfg.Pipeline.QueueCapacity),
		orchestration.WithPlanningConcurrency(cfg.Pipeline.PlanningConcurrency),
		orchestration.WithShutdownGracePeriod(cfg.Pipeline.ShutdownGracePeriod.Std()),
		orchestration.WithLogger(logger),
	}
}
