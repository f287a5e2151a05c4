package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/koscakluka/ema-drive/internal/config"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
	logFile   string

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "ema-drive",
	Short: "Drive a serial actuator with spoken commands",
	Long: `ema-drive records speech while a key is held, transcribes it, asks a
language model for a short reply and a timed command script, speaks the reply
and plays the script on a serial-attached controller.

Configuration is read from --config, $EMA_DRIVE_CONFIG, ./ema-drive.toml,
./ema-drive.yaml or ~/.config/ema-drive/config.toml, in that order.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (TOML or YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file instead of stderr")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	path := cfgFile
	if path == "" {
		path = config.Locate()
	}

	cfg = config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = *loaded
	}

	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	applyCommandFlags(cmd)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// newLogger writes to --log-file, or to fallback when none is given.
func newLogger(fallback io.Writer) (*slog.Logger, func() error, error) {
	w, closeFn := fallback, func() error { return nil }
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w, closeFn = f, f.Close
	}
	return buildLogger(w, cfg.Log), closeFn, nil
}

func buildLogger(w io.Writer, logCfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logCfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if logCfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
