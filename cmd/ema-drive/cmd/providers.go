package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/koscakluka/ema-drive/core/audio"
	"github.com/koscakluka/ema-drive/core/audio/miniaudio"
	"github.com/koscakluka/ema-drive/core/audio/portaudio"
	"github.com/koscakluka/ema-drive/core/llms"
	"github.com/koscakluka/ema-drive/core/llms/ollama"
	"github.com/koscakluka/ema-drive/core/llms/openai"
	"github.com/koscakluka/ema-drive/core/speechtotext"
	deepgramstt "github.com/koscakluka/ema-drive/core/speechtotext/deepgram"
	"github.com/koscakluka/ema-drive/core/speechtotext/whisper"
	"github.com/koscakluka/ema-drive/core/texttospeech"
	deepgramtts "github.com/koscakluka/ema-drive/core/texttospeech/deepgram"
	"github.com/koscakluka/ema-drive/core/texttospeech/system"
	"github.com/koscakluka/ema-drive/internal/config"
)

const healthCheckTimeout = 10 * time.Second

func newPlanner(plannerCfg config.PlannerConfig) (llms.Planner, string, error) {
	switch plannerCfg.Provider {
	case "ollama":
		opts := []ollama.ClientOption{}
		if plannerCfg.URL != "" {
			opts = append(opts, ollama.WithBaseURL(plannerCfg.URL))
		}
		if plannerCfg.Model != "" {
			opts = append(opts, ollama.WithModel(plannerCfg.Model))
		}
		client := ollama.NewClient(opts...)
		return client, client.Model(), nil

	case "openai", "groq":
		baseURL, apiKey, model := openai.DefaultBaseURL, os.Getenv(openai.DefaultAPIKeyEnv), openai.DefaultModel
		if plannerCfg.Provider == "groq" {
			baseURL, apiKey, model = openai.GroqBaseURL, os.Getenv("GROQ_API_KEY"), "llama-3.1-8b-instant"
		}
		if plannerCfg.URL != "" {
			baseURL = plannerCfg.URL
		}
		if plannerCfg.APIKey != "" {
			apiKey = plannerCfg.APIKey
		}
		if plannerCfg.Model != "" {
			model = plannerCfg.Model
		}
		if apiKey == "" {
			return nil, "", fmt.Errorf("%s api key not found", plannerCfg.Provider)
		}
		return openai.NewClient(openai.WithBaseURL(baseURL), openai.WithAPIKey(apiKey), openai.WithModel(model)), model, nil

	default:
		return nil, "", fmt.Errorf("unknown planner provider %q", plannerCfg.Provider)
	}
}

func chatOptions(plannerCfg config.PlannerConfig) []llms.ChatOption {
	var opts []llms.ChatOption
	if plannerCfg.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(plannerCfg.Temperature))
	}
	if plannerCfg.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(plannerCfg.MaxTokens))
	}
	return opts
}

// checkPlanner pings planners that support it so a missing server or model is
// reported at startup instead of on the first utterance.
func checkPlanner(ctx context.Context, planner llms.Planner) error {
	checker, ok := planner.(llms.HealthChecker)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	if err := checker.HealthCheck(ctx); err != nil {
		return fmt.Errorf("planner is not reachable: %w", err)
	}
	return nil
}

func newTranscriber(transcriptionCfg config.TranscriptionConfig) (speechtotext.Transcriber, error) {
	switch transcriptionCfg.Provider {
	case "whisper":
		opts := []whisper.ClientOption{whisper.WithLanguage(transcriptionCfg.Language)}
		if transcriptionCfg.URL != "" {
			opts = append(opts, whisper.WithBaseURL(transcriptionCfg.URL))
		}
		if transcriptionCfg.Model != "" {
			opts = append(opts, whisper.WithModel(transcriptionCfg.Model))
		}
		if transcriptionCfg.APIKey != "" {
			opts = append(opts, whisper.WithAPIKey(transcriptionCfg.APIKey))
		}
		return whisper.NewClient(opts...), nil

	case "deepgram":
		var opts []deepgramstt.TranscriptionClientOption
		if transcriptionCfg.URL != "" {
			opts = append(opts, deepgramstt.WithListenURL(transcriptionCfg.URL))
		}
		if transcriptionCfg.Model != "" {
			opts = append(opts, deepgramstt.WithModel(transcriptionCfg.Model))
		}
		if transcriptionCfg.Language != "" {
			opts = append(opts, deepgramstt.WithLanguage(transcriptionCfg.Language))
		}
		if transcriptionCfg.APIKey != "" {
			opts = append(opts, deepgramstt.WithAPIKey(transcriptionCfg.APIKey))
		}
		client, err := deepgramstt.NewTranscriptionClient(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create deepgram transcriber: %w", err)
		}
		return client, nil

	default:
		return nil, fmt.Errorf("unknown transcription provider %q", transcriptionCfg.Provider)
	}
}

// audioDevices holds the microphone and speaker output of one backend.
type audioDevices struct {
	source audio.ChunkSource
	player audio.Player
	close  func() error
}

func (d audioDevices) Close() error {
	if d.close == nil {
		return nil
	}
	return d.close()
}

func openAudio(audioCfg config.AudioConfig) (audioDevices, error) {
	switch audioCfg.Backend {
	case "portaudio":
		capture, err := portaudio.NewCapture(audioCfg.SampleRate, audioCfg.ChunkDuration.Std())
		if err != nil {
			return audioDevices{}, err
		}
		player, err := portaudio.NewPlayer(0)
		if err != nil {
			return audioDevices{}, errors.Join(err, capture.Close())
		}
		return audioDevices{
			source: capture,
			player: player,
			close:  func() error { return errors.Join(capture.Close(), player.Close()) },
		}, nil

	case "miniaudio":
		client, err := miniaudio.NewClient(audioCfg.SampleRate, audioCfg.ChunkDuration.Std())
		if err != nil {
			return audioDevices{}, err
		}
		return audioDevices{
			source: client,
			player: client,
			close: func() error {
				client.Close()
				return nil
			},
		}, nil

	default:
		return audioDevices{}, fmt.Errorf("unknown audio backend %q", audioCfg.Backend)
	}
}

// newSpeaker returns nil when speech is disabled.
func newSpeaker(speechCfg config.SpeechConfig, player audio.Player) (texttospeech.Speaker, error) {
	switch speechCfg.Provider {
	case "none":
		return nil, nil

	case "system":
		opts := []system.SpeakerOption{system.WithVoice(speechCfg.Voice), system.WithRate(speechCfg.Rate)}
		if speechCfg.Engine != "" {
			opts = append(opts, system.WithEngine(system.Engine(speechCfg.Engine)))
		}
		speaker, err := system.NewSpeaker(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create system speaker: %w", err)
		}
		return speaker, nil

	case "deepgram":
		voice, ok := deepgramtts.ParseVoice(speechCfg.Voice)
		if speechCfg.Voice != "" && !ok {
			return nil, fmt.Errorf("unknown deepgram voice %q", speechCfg.Voice)
		}
		speaker, err := deepgramtts.NewTextToSpeechClient(voice, player)
		if err != nil {
			return nil, fmt.Errorf("failed to create deepgram speaker: %w", err)
		}
		return speaker, nil

	default:
		return nil, fmt.Errorf("unknown speech provider %q", speechCfg.Provider)
	}
}
