package system

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
)

const DefaultRate = 175

// sapiBaseRate is the words per minute SAPI speaks at rate 0.
const sapiBaseRate = 180

var ErrNoEngine = errors.New("no speech synthesis command found")

// Engine names an OS speech command.
type Engine string

const (
	EngineSay        Engine = "say"
	EngineESpeakNG   Engine = "espeak-ng"
	EngineESpeak     Engine = "espeak"
	EnginePowerShell Engine = "powershell"
)

// Speaker voices text through the operating system's speech command. The
// command blocks until speech has finished, so Speak does too.
type Speaker struct {
	engine Engine
	voice  string
	rate   int

	lookPath func(string) (string, error)
	run      func(ctx context.Context, name string, args ...string) error
}

type SpeakerOption func(*Speaker)

// WithEngine forces a specific command instead of detecting one.
func WithEngine(engine Engine) SpeakerOption {
	return func(s *Speaker) { s.engine = engine }
}

func WithVoice(voice string) SpeakerOption {
	return func(s *Speaker) { s.voice = voice }
}

// WithRate sets the speaking rate in words per minute.
func WithRate(rate int) SpeakerOption {
	return func(s *Speaker) {
		if rate > 0 {
			s.rate = rate
		}
	}
}

func NewSpeaker(opts ...SpeakerOption) (*Speaker, error) {
	speaker := &Speaker{
		rate:     DefaultRate,
		lookPath: exec.LookPath,
		run: func(ctx context.Context, name string, args ...string) error {
			output, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
			if err != nil && len(output) > 0 {
				return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
			}
			return err
		},
	}
	for _, opt := range opts {
		opt(speaker)
	}

	if speaker.engine == "" {
		engine, err := speaker.detect(runtime.GOOS)
		if err != nil {
			return nil, err
		}
		speaker.engine = engine
	} else if _, err := speaker.lookPath(string(speaker.engine)); err != nil {
		return nil, fmt.Errorf("speech command %q not available: %w", speaker.engine, err)
	}

	return speaker, nil
}

func (s *Speaker) Engine() Engine { return s.engine }

func (s *Speaker) detect(goos string) (Engine, error) {
	var candidates []Engine
	switch goos {
	case "darwin":
		candidates = []Engine{EngineSay}
	case "windows":
		candidates = []Engine{EnginePowerShell}
	default:
		candidates = []Engine{EngineESpeakNG, EngineESpeak}
	}
	for _, candidate := range candidates {
		if _, err := s.lookPath(string(candidate)); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w for %s", ErrNoEngine, goos)
}

func (s *Speaker) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if err := s.run(ctx, string(s.engine), s.args(text)...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("failed to speak with %s: %w", s.engine, err)
	}
	return nil
}

func (s *Speaker) args(text string) []string {
	args := []string{}
	switch s.engine {
	case EngineSay:
		if s.voice != "" {
			args = append(args, "-v", s.voice)
		}
		args = append(args, "-r", strconv.Itoa(s.rate), "--", text)

	case EngineESpeakNG, EngineESpeak:
		if s.voice != "" {
			args = append(args, "-v", s.voice)
		}
		args = append(args, "-s", strconv.Itoa(s.rate), "--", text)

	case EnginePowerShell:
		// SAPI rate is -10..10.
		sapiRate := max(-10, min(10, (s.rate-sapiBaseRate)/20))
		script := "Add-Type -AssemblyName System.Speech; " +
			"$s = New-Object System.Speech.Synthesis.SpeechSynthesizer; "
		if s.voice != "" {
			script += "$s.SelectVoice('" + powershellQuote(s.voice) + "'); "
		}
		script += "$s.Rate = " + strconv.Itoa(sapiRate) + "; " +
			"$s.Speak('" + powershellQuote(text) + "')"
		args = append(args, "-NoProfile", "-NonInteractive", "-Command", script)
	}
	return args
}

func powershellQuote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
