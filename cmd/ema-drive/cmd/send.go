package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	orchestration "github.com/koscakluka/ema-drive/core"
	"github.com/koscakluka/ema-drive/core/audio"
	"github.com/koscakluka/ema-drive/core/commands"
	"github.com/koscakluka/ema-drive/core/events"
	"github.com/koscakluka/ema-drive/core/serial"
	"github.com/spf13/cobra"
)

var (
	sendDryRun bool
	sendQuiet  bool
)

var sendCmd = &cobra.Command{
	Use:   "send <utterance>",
	Short: "Plan and execute a typed utterance",
	Long: `Send runs a single utterance through the planner as if it had been spoken,
speaks the reply and executes the commands, then exits.

Examples:
  ema-drive send --port /dev/ttyUSB0 "go up for two seconds"
  ema-drive send --dry-run "dance around"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	addDeviceFlags(sendCmd)
	sendCmd.Flags().BoolVar(&sendDryRun, "dry-run", false, "print commands instead of writing to the serial port")
	sendCmd.Flags().BoolVar(&sendQuiet, "quiet", false, "do not speak the reply")
}

func runSend(cmd *cobra.Command, args []string) error {
	alphabet, err := commands.NewAlphabet(cfg.Serial.Alphabet)
	if err != nil {
		return err
	}
	logger, closeLog, err := newLogger(io.Discard)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	planner, _, err := newPlanner(cfg.Planner)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var link orchestration.Actuator = &printActuator{out: out, alphabet: alphabet}
	if !sendDryRun {
		if cfg.Serial.Port == "" {
			return errors.New("no serial port configured, use --port, serial.port or --dry-run")
		}
		link, err = serial.Open(ctx, serial.Config{
			Port:        cfg.Serial.Port,
			BaudRate:    cfg.Serial.BaudRate,
			SettleDelay: cfg.Serial.SettleDelay.Std(),
			Alphabet:    alphabet,
		})
		if err != nil {
			return err
		}
	}

	opts := append(pipelineOptions(alphabet, logger),
		orchestration.WithActuator(link),
		orchestration.WithPlanner(planner, chatOptions(cfg.Planner)...),
	)
	if !sendQuiet {
		var player audio.Player
		if cfg.Speech.Provider == "deepgram" {
			devices, err := openAudio(cfg.Audio)
			if err != nil {
				return fmt.Errorf("failed to open audio devices: %w", err)
			}
			defer devices.Close()
			player = devices.player
		}
		speaker, err := newSpeaker(cfg.Speech, player)
		if err != nil {
			return err
		}
		opts = append(opts, orchestration.WithSpeaker(speaker))
	}

	received := make(chan events.Event, 256)
	opts = append(opts, orchestration.WithEventHandler(func(event events.Event) {
		select {
		case received <- event:
		default:
		}
	}))
	pipeline := orchestration.NewPipeline(opts...)

	runErr := make(chan error, 1)
	go func() { runErr <- pipeline.Run(ctx) }()

	id, err := pipeline.Submit(ctx, strings.Join(args, " "))
	if err == nil {
		err = waitForUtterance(ctx, received, id, out, alphabet)
	}
	pipeline.Shutdown()
	return errors.Join(err, <-runErr)
}

// waitForUtterance prints the outcome of one utterance and returns once its
// reply was spoken and its script finished.
func waitForUtterance(ctx context.Context, received <-chan events.Event, id uuid.UUID, out io.Writer, alphabet commands.Alphabet) error {
	var (
		planned       bool
		scriptPending bool
		speechPending bool
		failure       error
	)
	for !planned || scriptPending || speechPending {
		var event events.Event
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event = <-received:
		}
		if event.CorrelationID() != id {
			continue
		}

		switch e := event.(type) {
		case events.PlanCompleted:
			planned = true
			scriptPending = e.HasCommands
			speechPending = e.Reply != ""
			if e.Reply != "" {
				fmt.Fprintf(out, "Assistant: %s\n", e.Reply)
			}
			if e.ParseErr != nil {
				fmt.Fprintf(out, "Skipped: %v\n", e.ParseErr)
			}
			if !e.Script.IsEmpty() {
				fmt.Fprintf(out, "Commands: %s (%s)\n", e.Script.Format(alphabet), e.Script.TotalDuration())
			}
			if e.Fallback {
				failure = errors.New("planner did not answer")
			}
		case events.ScriptCompleted:
			scriptPending = false
		case events.ScriptAborted:
			scriptPending = false
			failure = errors.Join(failure, fmt.Errorf("commands aborted: %w", e.Err))
		case events.ScriptDiscarded:
			scriptPending = false
		case events.SpeechEnded:
			speechPending = false
		}
	}
	return failure
}
