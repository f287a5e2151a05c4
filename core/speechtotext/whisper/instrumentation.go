package whisper

import "go.opentelemetry.io/otel"

const scopeName = "github.com/koscakluka/ema-drive/core/speechtotext/whisper"

var tracer = otel.Tracer(scopeName)
