package orchestration

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const scopeName = "github.com/koscakluka/ema-drive/core"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

type pipelineMetrics struct {
	scriptsExecuted     metric.Int64Counter
	stepsSent           metric.Int64Counter
	serialWriteFailures metric.Int64Counter
	tokenParseErrors    metric.Int64Counter
	plannerFallbacks    metric.Int64Counter
}

func newPipelineMetrics() *pipelineMetrics {
	return &pipelineMetrics{
		scriptsExecuted:     newCounter("ema_drive.scripts.executed", "Scripts run to completion or abort"),
		stepsSent:           newCounter("ema_drive.steps.sent", "Action codes written to the serial link"),
		serialWriteFailures: newCounter("ema_drive.serial.write_failures", "Failed serial writes"),
		tokenParseErrors:    newCounter("ema_drive.commands.parse_errors", "Rejected command tokens"),
		plannerFallbacks:    newCounter("ema_drive.planner.fallbacks", "Planner requests answered with the fallback reply"),
	}
}

func newCounter(name, description string) metric.Int64Counter {
	counter, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		logger.Warn("Failed to create counter, using noop", "counter", name, "error", err)
		counter, _ = noop.NewMeterProvider().Meter(scopeName).Int64Counter(name)
	}
	return counter
}
