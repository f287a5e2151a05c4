package main

import (
	"os"

	"github.com/koscakluka/ema-drive/cmd/ema-drive/cmd"
	"github.com/koscakluka/ema-drive/internal/trigger"
)

func main() {
	// Global hotkeys need the main thread on macOS.
	trigger.RunOnMainThread(func() {
		if err := cmd.Execute(); err != nil {
			os.Exit(1)
		}
	})
}
