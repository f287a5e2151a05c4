package trigger

import "errors"

// ErrUnavailable is returned by Listen in builds without hotkey support.
var ErrUnavailable = errors.New("global hotkeys are not available in this build")

// Handlers are called from the listener goroutines.
type Handlers struct {
	Press    func()
	Release  func()
	Shutdown func()
}

func call(handler func()) {
	if handler != nil {
		handler()
	}
}
