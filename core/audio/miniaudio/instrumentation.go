package miniaudio

import "go.opentelemetry.io/contrib/bridges/otelslog"

var logger = otelslog.NewLogger("github.com/koscakluka/ema-drive/core/audio/miniaudio")
