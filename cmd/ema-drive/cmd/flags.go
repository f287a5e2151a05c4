package cmd

import (
	"github.com/spf13/cobra"
)

var (
	flagPort     string
	flagBaudRate int
	flagModel    string
	flagProvider string
)

// addDeviceFlags registers the flags that override serial and planner
// settings on commands that talk to the device.
func addDeviceFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&flagPort, "port", "p", "", "serial port, e.g. /dev/ttyUSB0 or COM12")
	cmd.Flags().IntVar(&flagBaudRate, "baud", 0, "serial baud rate")
	addPlannerFlags(cmd)
}

func addPlannerFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&flagModel, "model", "m", "", "planner model")
	cmd.Flags().StringVar(&flagProvider, "planner", "", "planner provider: ollama, openai, groq")
}

func applyCommandFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Lookup("port") != nil && flagPort != "" {
		cfg.Serial.Port = flagPort
	}
	if flags.Lookup("baud") != nil && flagBaudRate > 0 {
		cfg.Serial.BaudRate = flagBaudRate
	}
	if flags.Lookup("model") != nil && flagModel != "" {
		cfg.Planner.Model = flagModel
	}
	if flags.Lookup("planner") != nil && flagProvider != "" {
		cfg.Planner.Provider = flagProvider
	}
}
