package tui

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-drive/core/commands"
	"github.com/koscakluka/ema-drive/core/events"
)

func feed(m Model, evs ...events.Event) Model {
	for _, event := range evs {
		next, _ := m.Update(eventMsg{event: event})
		m = next.(Model)
	}
	return m
}

func TestModelTracksPipelineEvents(t *testing.T) {
	id := uuid.New()
	script, err := commands.Parse("U:1;L:2;")
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	m := feed(New(Config{Port: "/dev/ttyUSB0", TalkKey: "ctrl+space", QuitKey: "escape"}),
		events.NewCaptureStarted(id),
	)
	if !m.recording || !strings.Contains(m.View(), "recording") {
		t.Fatalf("expected recording to be shown")
	}

	m = feed(m,
		events.NewCaptureStopped(id, 0),
		events.NewTranscriptFinal(id, "go up then left"),
		events.NewPlanStarted(id, "go up then left"),
	)
	if m.recording || m.planning != 1 {
		t.Fatalf("unexpected state recording=%v planning=%d", m.recording, m.planning)
	}

	m = feed(m,
		events.NewPlanCompleted(id, "Going up.", script, true, false, nil),
		events.NewScriptStarted(id, script),
		events.NewStepSent(id, 1, script[1]),
		events.NewSpeechStarted(id, "Going up."),
	)
	view := m.View()
	for _, want := range []string{"You: ", "go up then left", "Assistant: ", "Going up.", "L:2;"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected view to contain %q:\n%s", want, view)
		}
	}
	if m.planning != 0 || m.step != 1 {
		t.Fatalf("unexpected state planning=%d step=%d", m.planning, m.step)
	}

	m = feed(m, events.NewScriptAborted(id, errors.New("write failed")))
	if !m.script.IsEmpty() || !strings.Contains(m.View(), "write failed") {
		t.Fatalf("expected aborted script to be cleared and reported")
	}
}

func TestModelQuitsWhenPipelineStops(t *testing.T) {
	m := New(Config{})
	next, cmd := m.Update(eventMsg{event: events.NewPipelineStopped(nil)})
	if cmd == nil || !next.(Model).stopped {
		t.Fatalf("expected quit command after pipeline stopped")
	}
}

func TestModelKeepsRecentActivity(t *testing.T) {
	m := New(Config{})
	for i := 0; i < maxActivity+5; i++ {
		m = feed(m, events.NewTranscriptFinal(uuid.New(), "hello"))
	}
	if len(m.activity) != maxActivity {
		t.Fatalf("expected %d activity lines, got %d", maxActivity, len(m.activity))
	}
}

func TestFeedDropsWhenFull(t *testing.T) {
	f := NewFeed(1)
	f.Handle(events.NewPipelineStarted())
	f.Handle(events.NewPipelineStarted())
	if len(f.events) != 1 {
		t.Fatalf("expected a full feed to drop events")
	}
}
