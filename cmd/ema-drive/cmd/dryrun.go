package cmd

import (
	"fmt"
	"io"
	"sync"

	"github.com/koscakluka/ema-drive/core/commands"
)

// printActuator writes each code it receives instead of driving hardware.
type printActuator struct {
	mu       sync.Mutex
	out      io.Writer
	alphabet commands.Alphabet
}

func (a *printActuator) Send(code byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	action := "unknown"
	if known, ok := a.alphabet.Lookup(code); ok {
		action = known.String()
	}
	_, err := fmt.Fprintf(a.out, "-> %c  %s\n", code, action)
	return err
}

func (a *printActuator) Close() error { return nil }
