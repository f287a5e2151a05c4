package orchestration

import "github.com/koscakluka/ema-drive/core/events"

// eventEmitter is called synchronously from the worker that produced the
// event, handlers must not block.
type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}
