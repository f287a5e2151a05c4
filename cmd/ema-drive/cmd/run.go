package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/koscakluka/ema-drive/cmd/ema-drive/tui"
	orchestration "github.com/koscakluka/ema-drive/core"
	"github.com/koscakluka/ema-drive/core/commands"
	"github.com/koscakluka/ema-drive/core/serial"
	"github.com/koscakluka/ema-drive/internal/trigger"
	"github.com/spf13/cobra"
)

var runTUI bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the voice pipeline",
	Long: `Run connects to the controller, then records while the talk key is held.
Each recording is transcribed, planned, spoken back and executed. The shutdown
key, Ctrl+C or SIGTERM stop the pipeline and leave the device stopped.

Examples:
  ema-drive run --port /dev/ttyUSB0
  ema-drive run --port COM12 --model llama3.1 --tui`,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)
	addDeviceFlags(runCmd)
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "show a live status view")
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	if !trigger.Available {
		return fmt.Errorf("run needs push-to-talk: %w, use send instead", trigger.ErrUnavailable)
	}
	if cfg.Serial.Port == "" {
		return errors.New("no serial port configured, use --port or serial.port")
	}
	alphabet, err := commands.NewAlphabet(cfg.Serial.Alphabet)
	if err != nil {
		return err
	}
	talk, err := trigger.Parse(cfg.Trigger.Key)
	if err != nil {
		return fmt.Errorf("invalid trigger.key: %w", err)
	}
	quit, err := trigger.Parse(cfg.Trigger.ShutdownKey)
	if err != nil {
		return fmt.Errorf("invalid trigger.shutdown_key: %w", err)
	}

	var logOutput io.Writer = os.Stderr
	if runTUI {
		logOutput = io.Discard
	}
	logger, closeLog, err := newLogger(logOutput)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	planner, model, err := newPlanner(cfg.Planner)
	if err != nil {
		return err
	}
	if !cfg.Planner.SkipHealthCheck {
		if err := checkPlanner(ctx, planner); err != nil {
			return err
		}
		logger.Info("Planner reachable", "provider", cfg.Planner.Provider, "model", model)
	}

	transcriber, err := newTranscriber(cfg.Transcription)
	if err != nil {
		return err
	}
	devices, err := openAudio(cfg.Audio)
	if err != nil {
		return fmt.Errorf("failed to open audio devices: %w", err)
	}
	defer func() {
		if err := devices.Close(); err != nil {
			logger.Warn("Failed to close audio devices", "error", err)
		}
	}()
	speaker, err := newSpeaker(cfg.Speech, devices.player)
	if err != nil {
		return err
	}

	link, err := serial.Open(ctx, serial.Config{
		Port:        cfg.Serial.Port,
		BaudRate:    cfg.Serial.BaudRate,
		SettleDelay: cfg.Serial.SettleDelay.Std(),
		Alphabet:    alphabet,
	})
	if err != nil {
		return err
	}
	logger.Info("Connected", "port", cfg.Serial.Port, "baud_rate", cfg.Serial.BaudRate)

	opts := append(pipelineOptions(alphabet, logger),
		orchestration.WithActuator(link),
		orchestration.WithAudioSource(devices.source),
		orchestration.WithTranscriber(transcriber),
		orchestration.WithPlanner(planner, chatOptions(cfg.Planner)...),
		orchestration.WithSpeaker(speaker),
	)

	var feed *tui.Feed
	if runTUI {
		feed = tui.NewFeed(256)
		opts = append(opts, orchestration.WithEventHandler(feed.Handle))
	}
	pipeline := orchestration.NewPipeline(opts...)

	listenErr := make(chan error, 1)
	go func() {
		err := trigger.Listen(ctx, talk, quit, trigger.Handlers{
			Press:    func() { pipeline.Press() },
			Release:  func() { pipeline.Release() },
			Shutdown: stop,
		}, logger)
		if err != nil {
			stop()
		}
		listenErr <- err
	}()

	if !runTUI {
		logger.Info("Ready", "talk", talk.String(), "shutdown", quit.String())
		runErr := pipeline.Run(ctx)
		stop()
		return errors.Join(runErr, <-listenErr)
	}

	runErr := make(chan error, 1)
	go func() { runErr <- pipeline.Run(ctx) }()

	program := tea.NewProgram(tui.New(tui.Config{
		Port:       cfg.Serial.Port,
		TalkKey:    talk.String(),
		QuitKey:    quit.String(),
		Alphabet:   alphabet,
		PlannerLLM: cfg.Planner.Provider + " " + model,
	}), tea.WithAltScreen(), tea.WithContext(ctx))
	go feed.Forward(ctx, program)

	_, programErr := program.Run()
	if errors.Is(programErr, tea.ErrProgramKilled) || errors.Is(programErr, context.Canceled) {
		programErr = nil
	}
	stop()
	return errors.Join(<-runErr, <-listenErr, programErr)
}
