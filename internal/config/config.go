// Package config loads ema-drive settings from TOML or YAML files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/jinzhu/copier"
	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration
type Config struct {
	Serial        SerialConfig        `toml:"serial" yaml:"serial"`
	Audio         AudioConfig         `toml:"audio" yaml:"audio"`
	Transcription TranscriptionConfig `toml:"transcription" yaml:"transcription"`
	Planner       PlannerConfig       `toml:"planner" yaml:"planner"`
	Speech        SpeechConfig        `toml:"speech" yaml:"speech"`
	Trigger       TriggerConfig       `toml:"trigger" yaml:"trigger"`
	Pipeline      PipelineConfig      `toml:"pipeline" yaml:"pipeline"`
	Log           LogConfig           `toml:"log" yaml:"log"`
}

type SerialConfig struct {
	Port        string   `toml:"port" yaml:"port"`
	BaudRate    int      `toml:"baud_rate" yaml:"baud_rate"`
	SettleDelay Duration `toml:"settle_delay" yaml:"settle_delay"`
	// Alphabet lists the letters for Up, Down, Left, Right and Stop.
	Alphabet string `toml:"alphabet" yaml:"alphabet"`
}

type AudioConfig struct {
	// Backend is "portaudio" or "miniaudio".
	Backend       string   `toml:"backend" yaml:"backend"`
	SampleRate    int      `toml:"sample_rate" yaml:"sample_rate"`
	ChunkDuration Duration `toml:"chunk_duration" yaml:"chunk_duration"`
}

// Empty model and url values select the provider's default.
type TranscriptionConfig struct {
	// Provider is "whisper" or "deepgram".
	Provider string `toml:"provider" yaml:"provider"`
	Model    string `toml:"model" yaml:"model"`
	Language string `toml:"language" yaml:"language"`
	URL      string `toml:"url" yaml:"url"`
	APIKey   string `toml:"api_key" yaml:"api_key"`
}

type PlannerConfig struct {
	// Provider is "ollama", "openai" or "groq".
	Provider        string   `toml:"provider" yaml:"provider"`
	Model           string   `toml:"model" yaml:"model"`
	URL             string   `toml:"url" yaml:"url"`
	APIKey          string   `toml:"api_key" yaml:"api_key"`
	Temperature     float64  `toml:"temperature" yaml:"temperature"`
	MaxTokens       int      `toml:"max_tokens" yaml:"max_tokens"`
	ResponseTimeout Duration `toml:"response_timeout" yaml:"response_timeout"`
	CommandMarker   string   `toml:"command_marker" yaml:"command_marker"`
	StrictParsing   bool     `toml:"strict_parsing" yaml:"strict_parsing"`
	SkipHealthCheck bool     `toml:"skip_health_check" yaml:"skip_health_check"`
}

type SpeechConfig struct {
	// Provider is "system", "deepgram" or "none".
	Provider string `toml:"provider" yaml:"provider"`
	// Engine forces a system speech command, it is detected when empty.
	Engine string `toml:"engine" yaml:"engine"`
	Voice  string `toml:"voice" yaml:"voice"`
	Rate   int    `toml:"rate" yaml:"rate"`
}

type TriggerConfig struct {
	// Key is held to record, for example "ctrl+space".
	Key string `toml:"key" yaml:"key"`
	// ShutdownKey stops the pipeline.
	ShutdownKey string `toml:"shutdown_key" yaml:"shutdown_key"`
}

type PipelineConfig struct {
	QueueCapacity       int      `toml:"queue_capacity" yaml:"queue_capacity"`
	PlanningConcurrency int      `toml:"planning_concurrency" yaml:"planning_concurrency"`
	ShutdownGracePeriod Duration `toml:"shutdown_grace_period" yaml:"shutdown_grace_period"`
}

type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

// Duration wraps time.Duration for text config values like "15s"
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		Serial: SerialConfig{
			BaudRate:    9600,
			SettleDelay: Duration(2 * time.Second),
			Alphabet:    "UDLRS",
		},
		Audio: AudioConfig{
			Backend:       "portaudio",
			SampleRate:    16000,
			ChunkDuration: Duration(500 * time.Millisecond),
		},
		Transcription: TranscriptionConfig{
			Provider: "whisper",
			Language: "en",
		},
		Planner: PlannerConfig{
			Provider:        "ollama",
			ResponseTimeout: Duration(15 * time.Second),
			CommandMarker:   "COMMANDS:",
		},
		Speech: SpeechConfig{
			Provider: "system",
			Rate:     175,
		},
		Trigger: TriggerConfig{
			Key:         "ctrl+space",
			ShutdownKey: "escape",
		},
		Pipeline: PipelineConfig{
			QueueCapacity:       16,
			PlanningConcurrency: 4,
			ShutdownGracePeriod: Duration(5 * time.Second),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// EnvConfigPath names the environment variable checked by Locate.
const EnvConfigPath = "EMA_DRIVE_CONFIG"

// Locate returns the first config file found in $EMA_DRIVE_CONFIG,
// ./ema-drive.toml, ./ema-drive.yaml and ~/.config/ema-drive/config.toml, or
// "" when there is none.
func Locate() string {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path
	}

	candidates := []string{"ema-drive.toml", "ema-drive.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "ema-drive", "config.toml"))
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// Load reads a TOML or YAML file, chosen by extension, over the defaults.
// Values left empty in the file keep their default, except serial.settle_delay
// which may be set to zero explicitly.
func Load(path string) (*Config, error) {
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var fromFile Config
	var defined func(section, key string) bool
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		meta, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&fromFile)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		defined = func(section, key string) bool { return meta.IsDefined(section, key) }
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fromFile); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		defined = func(section, key string) bool {
			values, ok := raw[section].(map[string]any)
			if !ok {
				return false
			}
			_, ok = values[key]
			return ok
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}

	cfg := Default()
	if err := cfg.merge(fromFile); err != nil {
		return nil, err
	}
	// copier skips zero values, a zero settle delay disables the wait.
	if defined("serial", "settle_delay") {
		cfg.Serial.SettleDelay = fromFile.Serial.SettleDelay
	}
	cfg.expandEnvVars()
	return &cfg, nil
}

// merge copies every non-empty value of other over c, section by section.
func (c *Config) merge(other Config) error {
	option := copier.Option{IgnoreEmpty: true}
	sections := []struct {
		to, from any
	}{
		{&c.Serial, &other.Serial},
		{&c.Audio, &other.Audio},
		{&c.Transcription, &other.Transcription},
		{&c.Planner, &other.Planner},
		{&c.Speech, &other.Speech},
		{&c.Trigger, &other.Trigger},
		{&c.Pipeline, &other.Pipeline},
		{&c.Log, &other.Log},
	}
	for _, section := range sections {
		if err := copier.CopyWithOption(section.to, section.from, option); err != nil {
			return fmt.Errorf("failed to merge config: %w", err)
		}
	}
	return nil
}

func (c *Config) expandEnvVars() {
	c.Transcription.APIKey = os.ExpandEnv(c.Transcription.APIKey)
	c.Planner.APIKey = os.ExpandEnv(c.Planner.APIKey)
	c.Serial.Port = os.ExpandEnv(c.Serial.Port)
}

// Validate checks ranges and enumerations. The trigger keys are checked where
// they are bound to the keyboard.
func (c *Config) Validate() error {
	var errs []error
	if c.Serial.BaudRate <= 0 {
		errs = append(errs, fmt.Errorf("serial.baud_rate must be positive, got %d", c.Serial.BaudRate))
	}
	if c.Serial.SettleDelay < 0 {
		errs = append(errs, fmt.Errorf("serial.settle_delay must not be negative"))
	}
	if len(c.Serial.Alphabet) != 5 {
		errs = append(errs, fmt.Errorf("serial.alphabet must have 5 letters, got %q", c.Serial.Alphabet))
	}
	if c.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be positive, got %d", c.Audio.SampleRate))
	}
	if c.Planner.ResponseTimeout <= 0 {
		errs = append(errs, fmt.Errorf("planner.response_timeout must be positive"))
	}
	if c.Pipeline.QueueCapacity <= 0 || c.Pipeline.PlanningConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.queue_capacity and pipeline.planning_concurrency must be positive"))
	}
	errs = append(errs,
		oneOf("audio.backend", c.Audio.Backend, "portaudio", "miniaudio"),
		oneOf("transcription.provider", c.Transcription.Provider, "whisper", "deepgram"),
		oneOf("planner.provider", c.Planner.Provider, "ollama", "openai", "groq"),
		oneOf("speech.provider", c.Speech.Provider, "system", "deepgram", "none"),
		oneOf("log.level", strings.ToLower(c.Log.Level), "debug", "info", "warn", "error"),
		oneOf("log.format", c.Log.Format, "text", "json"),
	)
	return errors.Join(errs...)
}

func oneOf(name, value string, allowed ...string) error {
	for _, candidate := range allowed {
		if value == candidate {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", name, strings.Join(allowed, ", "), value)
}
