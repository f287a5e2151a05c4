package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config to be valid, got %v", err)
	}
	if cfg.Planner.ResponseTimeout.Std() != 15*time.Second {
		t.Fatalf("expected 15s response timeout, got %s", cfg.Planner.ResponseTimeout.Std())
	}
	if cfg.Speech.Rate != 175 {
		t.Fatalf("expected speech rate 175, got %d", cfg.Speech.Rate)
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	testCases := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "toml",
			file: "ema-drive.toml",
			content: `
[serial]
port = "/dev/ttyACM0"
baud_rate = 115200

[planner]
model = "llama3.2"
response_timeout = "8s"
`,
		},
		{
			name: "yaml",
			file: "ema-drive.yaml",
			content: `
serial:
  port: /dev/ttyACM0
  baud_rate: 115200
planner:
  model: llama3.2
  response_timeout: 8s
`,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, testCase.file, testCase.content))
			if err != nil {
				t.Fatalf("unexpected error %v", err)
			}

			if cfg.Serial.Port != "/dev/ttyACM0" || cfg.Serial.BaudRate != 115200 {
				t.Fatalf("serial settings not loaded: %+v", cfg.Serial)
			}
			if cfg.Planner.Model != "llama3.2" || cfg.Planner.ResponseTimeout.Std() != 8*time.Second {
				t.Fatalf("planner settings not loaded: %+v", cfg.Planner)
			}
			// untouched values keep their defaults
			if cfg.Planner.Provider != "ollama" || cfg.Serial.Alphabet != "UDLRS" || cfg.Serial.SettleDelay.Std() != 2*time.Second {
				t.Fatalf("defaults were not kept: %+v", cfg)
			}
			if cfg.Audio.SampleRate != 16000 || cfg.Trigger.ShutdownKey != "escape" {
				t.Fatalf("defaults were not kept: %+v", cfg)
			}
		})
	}
}

func TestLoadAcceptsZeroSettleDelay(t *testing.T) {
	testCases := []struct {
		name    string
		file    string
		content string
	}{
		{name: "toml", file: "ema-drive.toml", content: "[serial]\nsettle_delay = \"0s\"\n"},
		{name: "yaml", file: "ema-drive.yaml", content: "serial:\n  settle_delay: 0s\n"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, testCase.file, testCase.content))
			if err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if cfg.Serial.SettleDelay.Std() != 0 {
				t.Fatalf("expected settle delay to be disabled, got %s", cfg.Serial.SettleDelay.Std())
			}
			if cfg.Serial.BaudRate != 9600 {
				t.Fatalf("defaults were not kept: %+v", cfg.Serial)
			}
		})
	}
}

func TestLoadExpandsAPIKeys(t *testing.T) {
	t.Setenv("EMA_DRIVE_TEST_KEY", "secret")
	cfg, err := Load(writeConfig(t, "config.toml", "[planner]\nprovider = \"groq\"\napi_key = \"${EMA_DRIVE_TEST_KEY}\"\n"))
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if cfg.Planner.APIKey != "secret" {
		t.Fatalf("expected expanded key, got %q", cfg.Planner.APIKey)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if _, err := Load(writeConfig(t, "config.ini", "port=1")); err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Fatalf("expected unsupported format error, got %v", err)
	}
	if _, err := Load(writeConfig(t, "config.toml", "[planner]\nresponse_timeout = \"soon\"\n")); err == nil {
		t.Fatalf("expected error for invalid duration")
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{name: "baud rate", modify: func(c *Config) { c.Serial.BaudRate = 0 }, field: "serial.baud_rate"},
		{name: "alphabet", modify: func(c *Config) { c.Serial.Alphabet = "UDS" }, field: "serial.alphabet"},
		{name: "sample rate", modify: func(c *Config) { c.Audio.SampleRate = -1 }, field: "audio.sample_rate"},
		{name: "timeout", modify: func(c *Config) { c.Planner.ResponseTimeout = 0 }, field: "planner.response_timeout"},
		{name: "planner provider", modify: func(c *Config) { c.Planner.Provider = "anthropic" }, field: "planner.provider"},
		{name: "log format", modify: func(c *Config) { c.Log.Format = "xml" }, field: "log.format"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			cfg := Default()
			testCase.modify(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), testCase.field) {
				t.Fatalf("expected error about %s, got %v", testCase.field, err)
			}
		})
	}
}

func TestLocate(t *testing.T) {
	t.Setenv(EnvConfigPath, "/etc/ema-drive/custom.yaml")
	if got := Locate(); got != "/etc/ema-drive/custom.yaml" {
		t.Fatalf("expected the environment path, got %q", got)
	}

	t.Setenv(EnvConfigPath, "")
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	if got := Locate(); got != "" {
		t.Fatalf("expected no config file, got %q", got)
	}

	if err := os.WriteFile("ema-drive.yaml", []byte("log:\n  level: debug\n"), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if got := Locate(); got != "ema-drive.yaml" {
		t.Fatalf("expected ema-drive.yaml, got %q", got)
	}
}
