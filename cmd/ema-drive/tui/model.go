// Package tui renders a live status view of a running pipeline.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/koscakluka/ema-drive/core/commands"
	"github.com/koscakluka/ema-drive/core/events"
	"github.com/muesli/reflow/wordwrap"
)

const maxActivity = 12

type Config struct {
	Port       string
	TalkKey    string
	QuitKey    string
	Alphabet   commands.Alphabet
	PlannerLLM string
}

type Model struct {
	config  Config
	spinner spinner.Model
	width   int

	recording bool
	planning  int
	script    commands.Script
	step      int
	stopping  bool
	stopped   bool

	activity []string
}

func New(config Config) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = assistantStyle
	if config.Alphabet.IsZero() {
		config.Alphabet = commands.DefaultAlphabet()
	}
	return Model{config: config, spinner: sp, width: 80, step: -1}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.stopping = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case eventMsg:
		m = m.apply(msg.event)
		if m.stopped {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m Model) apply(event events.Event) Model {
	switch e := event.(type) {
	case events.CaptureStarted:
		m.recording = true
	case events.CaptureStopped:
		m.recording = false
		if e.Empty {
			m = m.log(mutedStyle.Render("No audio recorded"))
		}
	case events.TranscriptFinal:
		m = m.log(userStyle.Render("You: ") + e.Text)
	case events.TranscriptDropped:
		if e.Err != nil {
			m = m.log(errorStyle.Render("Transcription failed: " + e.Err.Error()))
		} else {
			m = m.log(mutedStyle.Render("No speech detected"))
		}
	case events.PlanStarted:
		m.planning++
	case events.PlanCompleted:
		m.planning = max(0, m.planning-1)
		if e.Fallback {
			m = m.log(errorStyle.Render("Planner did not answer"))
		}
		if e.ParseErr != nil {
			m = m.log(errorStyle.Render(e.ParseErr.Error()))
		}
		if !e.Script.IsEmpty() {
			m = m.log(mutedStyle.Render("Commands: " + e.Script.Format(m.config.Alphabet)))
		}
	case events.ScriptStarted:
		m.script, m.step = e.Script, -1
	case events.StepSent:
		m.step = e.Index
	case events.ScriptCompleted:
		m.script, m.step = nil, -1
		m = m.log(okStyle.Render("Commands completed"))
	case events.ScriptAborted:
		m.script, m.step = nil, -1
		m = m.log(errorStyle.Render("Commands aborted: " + errorText(e.Err)))
	case events.SpeechStarted:
		m = m.log(assistantStyle.Render("Assistant: ") + e.Text)
	case events.SpeechEnded:
		if e.Err != nil {
			m = m.log(errorStyle.Render("Speech failed: " + e.Err.Error()))
		}
	case events.PipelineShuttingDown:
		m.stopping = true
	case events.PipelineStopped:
		m.stopped = true
	}
	return m
}

func (m Model) log(line string) Model {
	m.activity = append(m.activity, line)
	if len(m.activity) > maxActivity {
		m.activity = m.activity[len(m.activity)-maxActivity:]
	}
	return m
}

func errorText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("ema-drive"))
	b.WriteString("\n\n")

	b.WriteString(labelStyle.Render("Serial"))
	b.WriteString(fmt.Sprintf("%s  alphabet %s\n", m.config.Port, m.config.Alphabet))
	if m.config.PlannerLLM != "" {
		b.WriteString(labelStyle.Render("Model"))
		b.WriteString(m.config.PlannerLLM + "\n")
	}

	b.WriteString(labelStyle.Render("Mic"))
	if m.recording {
		b.WriteString(recordingStyle.Render("● recording"))
	} else {
		b.WriteString(mutedStyle.Render("idle"))
	}
	b.WriteString("\n")

	b.WriteString(labelStyle.Render("Thinking"))
	if m.planning > 0 {
		b.WriteString(fmt.Sprintf("%s %d request(s)", m.spinner.View(), m.planning))
	} else {
		b.WriteString(mutedStyle.Render("-"))
	}
	b.WriteString("\n")

	b.WriteString(labelStyle.Render("Device"))
	b.WriteString(m.scriptView())
	b.WriteString("\n\n")

	width := max(20, m.width-2)
	for _, line := range m.activity {
		b.WriteString(wordwrap.String(line, width))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch {
	case m.stopping:
		b.WriteString(mutedStyle.Render("Shutting down..."))
	default:
		b.WriteString(mutedStyle.Render(fmt.Sprintf("Hold %s to talk, %s or q to quit", m.config.TalkKey, m.config.QuitKey)))
	}
	b.WriteString("\n")
	return b.String()
}

func (m Model) scriptView() string {
	if m.script.IsEmpty() {
		return mutedStyle.Render("stopped")
	}

	parts := make([]string, len(m.script))
	for i, step := range m.script {
		text := step.Format(m.config.Alphabet)
		switch {
		case i == m.step:
			parts[i] = okStyle.Render("▶" + text)
		case i < m.step:
			parts[i] = mutedStyle.Render(text)
		default:
			parts[i] = text
		}
	}
	return strings.Join(parts, " ")
}
