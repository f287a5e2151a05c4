// Package trigger binds global hotkeys to push-to-talk and shutdown.
//
// Builds with the nohotkey tag leave out the hotkey backend, which needs an
// X11 display on Linux, so headless hosts can still run the other commands.
package trigger

import (
	"fmt"
	"strings"
)

type Modifier int

const (
	ModCtrl Modifier = iota + 1
	ModShift
)

// Binding is a parsed key combination such as "ctrl+shift+space". Key is the
// canonical key name.
type Binding struct {
	Name string
	Mods []Modifier
	Key  string
}

func (b Binding) String() string { return b.Name }

var modifiers = map[string]Modifier{
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"shift":   ModShift,
}

var keyAliases = map[string]string{
	"enter": "return",
	"esc":   "escape",
}

// keyNames lists every key a binding may end with.
var keyNames = func() map[string]bool {
	names := map[string]bool{}
	for _, name := range []string{"space", "return", "escape", "delete", "tab", "left", "right", "up", "down"} {
		names[name] = true
	}
	for c := 'a'; c <= 'z'; c++ {
		names[string(c)] = true
	}
	for c := '0'; c <= '9'; c++ {
		names[string(c)] = true
	}
	for i := 1; i <= 12; i++ {
		names[fmt.Sprintf("f%d", i)] = true
	}
	return names
}()

// Parse reads a "+" separated combination of modifiers followed by exactly
// one key. Only ctrl and shift are accepted as modifiers since they exist on
// every platform.
func Parse(combination string) (Binding, error) {
	name := strings.ToLower(strings.ReplaceAll(combination, " ", ""))
	if name == "" {
		return Binding{}, fmt.Errorf("empty key binding")
	}

	parts := strings.Split(name, "+")
	binding := Binding{Name: name}
	for i, part := range parts {
		if i < len(parts)-1 {
			mod, ok := modifiers[part]
			if !ok {
				return Binding{}, fmt.Errorf("unknown modifier %q in %q", part, combination)
			}
			binding.Mods = append(binding.Mods, mod)
			continue
		}

		if alias, ok := keyAliases[part]; ok {
			part = alias
		}
		if !keyNames[part] {
			return Binding{}, fmt.Errorf("unknown key %q in %q", part, combination)
		}
		binding.Key = part
	}
	return binding, nil
}
