//go:build !nohotkey

package trigger

import "testing"

func TestEveryKeyNameHasAHotkey(t *testing.T) {
	for name := range keyNames {
		if _, ok := hotkeyKeys[name]; !ok {
			t.Errorf("key %q has no hotkey mapping", name)
		}
	}
	for _, mod := range modifiers {
		if _, ok := hotkeyMods[mod]; !ok {
			t.Errorf("modifier %d has no hotkey mapping", mod)
		}
	}
}
