//go:build !nohotkey

package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.design/x/hotkey"
	"golang.design/x/hotkey/mainthread"
)

// Available reports whether this build can register global hotkeys.
const Available = true

var hotkeyMods = map[Modifier]hotkey.Modifier{
	ModCtrl:  hotkey.ModCtrl,
	ModShift: hotkey.ModShift,
}

var hotkeyKeys = map[string]hotkey.Key{
	"space":  hotkey.KeySpace,
	"return": hotkey.KeyReturn,
	"escape": hotkey.KeyEscape,
	"delete": hotkey.KeyDelete,
	"tab":    hotkey.KeyTab,
	"left":   hotkey.KeyLeft,
	"right":  hotkey.KeyRight,
	"up":     hotkey.KeyUp,
	"down":   hotkey.KeyDown,

	"a": hotkey.KeyA, "b": hotkey.KeyB, "c": hotkey.KeyC, "d": hotkey.KeyD,
	"e": hotkey.KeyE, "f": hotkey.KeyF, "g": hotkey.KeyG, "h": hotkey.KeyH,
	"i": hotkey.KeyI, "j": hotkey.KeyJ, "k": hotkey.KeyK, "l": hotkey.KeyL,
	"m": hotkey.KeyM, "n": hotkey.KeyN, "o": hotkey.KeyO, "p": hotkey.KeyP,
	"q": hotkey.KeyQ, "r": hotkey.KeyR, "s": hotkey.KeyS, "t": hotkey.KeyT,
	"u": hotkey.KeyU, "v": hotkey.KeyV, "w": hotkey.KeyW, "x": hotkey.KeyX,
	"y": hotkey.KeyY, "z": hotkey.KeyZ,

	"0": hotkey.Key0, "1": hotkey.Key1, "2": hotkey.Key2, "3": hotkey.Key3,
	"4": hotkey.Key4, "5": hotkey.Key5, "6": hotkey.Key6, "7": hotkey.Key7,
	"8": hotkey.Key8, "9": hotkey.Key9,

	"f1": hotkey.KeyF1, "f2": hotkey.KeyF2, "f3": hotkey.KeyF3, "f4": hotkey.KeyF4,
	"f5": hotkey.KeyF5, "f6": hotkey.KeyF6, "f7": hotkey.KeyF7, "f8": hotkey.KeyF8,
	"f9": hotkey.KeyF9, "f10": hotkey.KeyF10, "f11": hotkey.KeyF11, "f12": hotkey.KeyF12,
}

// RunOnMainThread runs fn with the main thread reserved for hotkey events,
// which macOS requires.
func RunOnMainThread(fn func()) { mainthread.Init(fn) }

func newHotkey(b Binding) (*hotkey.Hotkey, error) {
	key, ok := hotkeyKeys[b.Key]
	if !ok {
		return nil, fmt.Errorf("unsupported key %q", b.Key)
	}
	mods := make([]hotkey.Modifier, 0, len(b.Mods))
	for _, mod := range b.Mods {
		mods = append(mods, hotkeyMods[mod])
	}
	return hotkey.New(mods, key), nil
}

// Listen registers the push-to-talk and shutdown hotkeys and dispatches their
// events until ctx is done. Keydown of talk presses, keyup releases.
func Listen(ctx context.Context, talk, quit Binding, handlers Handlers, logger *slog.Logger) error {
	talkKey, err := newHotkey(talk)
	if err != nil {
		return err
	}
	quitKey, err := newHotkey(quit)
	if err != nil {
		return err
	}

	if err := talkKey.Register(); err != nil {
		return fmt.Errorf("failed to register hotkey %s: %w", talk, err)
	}
	if err := quitKey.Register(); err != nil {
		return errors.Join(
			fmt.Errorf("failed to register hotkey %s: %w", quit, err),
			talkKey.Unregister(),
		)
	}
	logger.Info("Hotkeys registered", "talk", talk.String(), "shutdown", quit.String())

	for {
		select {
		case <-ctx.Done():
			return errors.Join(talkKey.Unregister(), quitKey.Unregister())
		case <-talkKey.Keydown():
			call(handlers.Press)
		case <-talkKey.Keyup():
			call(handlers.Release)
		case <-quitKey.Keydown():
			logger.Info("Shutdown key pressed")
			call(handlers.Shutdown)
		}
	}
}
