package commands

import (
	"errors"
	"fmt"
	"strings"
)

// Action is a single actuator instruction understood by the controller.
type Action int

const (
	ActionUp Action = iota
	ActionDown
	ActionLeft
	ActionRight
	ActionStop
)

var actions = [...]Action{ActionUp, ActionDown, ActionLeft, ActionRight, ActionStop}

func (a Action) String() string {
	switch a {
	case ActionUp:
		return "up"
	case ActionDown:
		return "down"
	case ActionLeft:
		return "left"
	case ActionRight:
		return "right"
	case ActionStop:
		return "stop"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

func (a Action) valid() bool { return a >= ActionUp && a <= ActionStop }

// DefaultCodes is the default actuator alphabet in Up, Down, Left, Right,
// Stop order.
const DefaultCodes = "UDLRS"

var ErrInvalidAlphabet = errors.New("invalid actuator alphabet")

// Alphabet maps every Action to the single byte sent over the wire.
//
// The zero value is not usable, use [DefaultAlphabet] or [NewAlphabet].
type Alphabet struct {
	codes [len(actions)]byte
}

func DefaultAlphabet() Alphabet {
	alphabet, _ := NewAlphabet(DefaultCodes)
	return alphabet
}

// NewAlphabet builds an alphabet from five distinct ASCII letters given in
// Up, Down, Left, Right, Stop order. Letters are stored upper-cased.
func NewAlphabet(codes string) (Alphabet, error) {
	var alphabet Alphabet
	if len(codes) != len(actions) {
		return alphabet, fmt.Errorf("%w: need %d letters, got %q", ErrInvalidAlphabet, len(actions), codes)
	}

	seen := map[byte]bool{}
	for i := 0; i < len(codes); i++ {
		c := upper(codes[i])
		if c < 'A' || c > 'Z' {
			return Alphabet{}, fmt.Errorf("%w: %q is not an ASCII letter", ErrInvalidAlphabet, codes[i])
		}
		if seen[c] {
			return Alphabet{}, fmt.Errorf("%w: duplicate letter %q", ErrInvalidAlphabet, c)
		}
		seen[c] = true
		alphabet.codes[i] = c
	}

	return alphabet, nil
}

// Code returns the wire byte for the action.
func (a Alphabet) Code(action Action) byte {
	if !action.valid() {
		return 0
	}
	return a.codes[action]
}

// Stop returns the wire byte of the stop/all-clear action.
func (a Alphabet) Stop() byte { return a.codes[ActionStop] }

// Lookup resolves a case-insensitive letter to its action.
func (a Alphabet) Lookup(letter byte) (Action, bool) {
	letter = upper(letter)
	for _, action := range actions {
		if a.codes[action] == letter {
			return action, true
		}
	}
	return 0, false
}

func (a Alphabet) IsZero() bool { return a.codes == [len(actions)]byte{} }

// String returns the letters in Up, Down, Left, Right, Stop order.
func (a Alphabet) String() string { return string(a.codes[:]) }

// Describe lists every letter with the action it triggers, one per line.
func (a Alphabet) Describe() string {
	var b strings.Builder
	for _, action := range actions {
		fmt.Fprintf(&b, "- '%c': %s\n", a.codes[action], action)
	}
	return b.String()
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}
