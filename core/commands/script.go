package commands

import (
	"strconv"
	"strings"
	"time"
)

const (
	StepSeparator  = ';'
	FieldSeparator = ':'
)

// Step is one timed actuator instruction. Seconds is always finite and
// positive for steps produced by a [Parser].
type Step struct {
	Action  Action
	Seconds float64
}

func (s Step) Duration() time.Duration {
	return time.Duration(s.Seconds * float64(time.Second))
}

// Format renders the step as ACTION:DURATION; using the given alphabet.
func (s Step) Format(alphabet Alphabet) string {
	var b strings.Builder
	s.appendTo(&b, alphabet)
	return b.String()
}

func (s Step) String() string { return s.Format(DefaultAlphabet()) }

func (s Step) appendTo(b *strings.Builder, alphabet Alphabet) {
	b.WriteByte(alphabet.Code(s.Action))
	b.WriteByte(FieldSeparator)
	b.WriteString(strconv.FormatFloat(s.Seconds, 'f', -1, 64))
	b.WriteByte(StepSeparator)
}

// Script is an ordered list of steps; slice order is execution order. An
// empty script is valid and only results in a stop.
type Script []Step

func (s Script) IsEmpty() bool { return len(s) == 0 }

// TotalDuration is the sum of all step durations.
func (s Script) TotalDuration() time.Duration {
	var total time.Duration
	for _, step := range s {
		total += step.Duration()
	}
	return total
}

// Format renders the script in the command mini-language.
func (s Script) Format(alphabet Alphabet) string {
	var b strings.Builder
	for _, step := range s {
		step.appendTo(&b, alphabet)
	}
	return b.String()
}

// String renders the script with the default alphabet.
func (s Script) String() string { return s.Format(DefaultAlphabet()) }
