package cmd

import (
	"errors"
	"fmt"

	"github.com/koscakluka/ema-drive/core/serial"
	"github.com/koscakluka/ema-drive/internal/trigger"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check serial ports, planner and speech output",
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	addPlannerFlags(checkCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	var failed []error
	report := func(name string, err error, detail string) {
		if err != nil {
			failed = append(failed, fmt.Errorf("%s: %w", name, err))
			fmt.Fprintf(out, "FAIL  %-12s %v\n", name, err)
			return
		}
		fmt.Fprintf(out, "ok    %-12s %s\n", name, detail)
	}

	ports, err := serial.ListPorts()
	switch {
	case err != nil:
		report("serial", err, "")
	case len(ports) == 0:
		report("serial", errors.New("no serial ports found"), "")
	default:
		report("serial", nil, fmt.Sprint(ports))
	}

	planner, model, err := newPlanner(cfg.Planner)
	if err == nil {
		err = checkPlanner(cmd.Context(), planner)
	}
	report("planner", err, cfg.Planner.Provider+" "+model)

	_, err = trigger.Parse(cfg.Trigger.Key)
	if err == nil {
		_, err = trigger.Parse(cfg.Trigger.ShutdownKey)
	}
	if err == nil && !trigger.Available {
		err = trigger.ErrUnavailable
	}
	report("trigger", err, cfg.Trigger.Key+", shutdown "+cfg.Trigger.ShutdownKey)

	if cfg.Speech.Provider == "system" {
		_, err := newSpeaker(cfg.Speech, nil)
		report("speech", err, "system")
	} else {
		report("speech", nil, cfg.Speech.Provider)
	}

	return errors.Join(failed...)
}
