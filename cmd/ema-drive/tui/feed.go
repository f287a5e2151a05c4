package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/koscakluka/ema-drive/core/events"
)

type eventMsg struct{ event events.Event }

// Feed relays pipeline events to a running program. Handle never blocks,
// events are dropped when the buffer is full.
type Feed struct {
	events chan events.Event
}

func NewFeed(size int) *Feed {
	return &Feed{events: make(chan events.Event, size)}
}

func (f *Feed) Handle(event events.Event) {
	select {
	case f.events <- event:
	default:
	}
}

// Forward sends buffered events to program until ctx is done.
func (f *Feed) Forward(ctx context.Context, program *tea.Program) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-f.events:
			program.Send(eventMsg{event: event})
		}
	}
}
