package commands

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// maxSeconds is the first step length that no longer fits a time.Duration.
const maxSeconds = float64(math.MaxInt64) / float64(time.Second)

var (
	ErrMissingSeparator = errors.New("missing field separator")
	ErrUnknownAction    = errors.New("unknown action")
	ErrInvalidDuration  = errors.New("invalid duration")
)

// TokenError describes a single rejected token.
type TokenError struct {
	// Index is the zero based position of the token in the input, counting
	// skipped empty tokens.
	Index int
	Token string
	Err   error
}

func (e TokenError) Error() string {
	return fmt.Sprintf("token %d %q: %v", e.Index, e.Token, e.Err)
}

func (e TokenError) Unwrap() error { return e.Err }

// ParseError collects every rejected token of a single parse.
type ParseError struct {
	Tokens []TokenError
}

func (e *ParseError) Error() string {
	if len(e.Tokens) == 1 {
		return "invalid command: " + e.Tokens[0].Error()
	}

	parts := make([]string, 0, len(e.Tokens))
	for _, token := range e.Tokens {
		parts = append(parts, token.Error())
	}
	return fmt.Sprintf("%d invalid commands: %s", len(e.Tokens), strings.Join(parts, "; "))
}

// Unwrap exposes the token errors so errors.Is matches the sentinel causes.
func (e *ParseError) Unwrap() []error {
	errs := make([]error, 0, len(e.Tokens))
	for _, token := range e.Tokens {
		errs = append(errs, token)
	}
	return errs
}

// Parser turns command mini-language text into a [Script].
//
// By default a rejected token does not stop parsing: the returned script holds
// every valid step and the error is a *ParseError listing the rejected tokens.
// With Strict set, any rejected token results in an empty script.
type Parser struct {
	Alphabet Alphabet
	Strict   bool
}

func NewParser(alphabet Alphabet) *Parser {
	return &Parser{Alphabet: alphabet}
}

// Parse parses text with the default alphabet and partial-success policy.
func Parse(text string) (Script, error) {
	return NewParser(DefaultAlphabet()).Parse(text)
}

func (p *Parser) Parse(text string) (Script, error) {
	alphabet := p.Alphabet
	if alphabet.IsZero() {
		alphabet = DefaultAlphabet()
	}

	script := Script{}
	var rejected []TokenError
	for i, token := range strings.Split(text, string(StepSeparator)) {
		if strings.TrimSpace(token) == "" {
			continue
		}

		step, err := parseStep(token, alphabet)
		if err != nil {
			rejected = append(rejected, TokenError{Index: i, Token: token, Err: err})
			continue
		}
		script = append(script, step)
	}

	if len(rejected) == 0 {
		return script, nil
	}
	if p.Strict {
		return Script{}, &ParseError{Tokens: rejected}
	}
	return script, &ParseError{Tokens: rejected}
}

func parseStep(token string, alphabet Alphabet) (Step, error) {
	letter, duration, found := strings.Cut(token, string(FieldSeparator))
	if !found {
		return Step{}, ErrMissingSeparator
	}

	letter = strings.TrimSpace(letter)
	if len(letter) != 1 {
		return Step{}, fmt.Errorf("%w %q", ErrUnknownAction, letter)
	}
	action, ok := alphabet.Lookup(letter[0])
	if !ok {
		return Step{}, fmt.Errorf("%w %q", ErrUnknownAction, letter)
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(duration), 64)
	if err != nil {
		return Step{}, fmt.Errorf("%w: %w", ErrInvalidDuration, err)
	}
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds <= 0 {
		return Step{}, fmt.Errorf("%w: %v is not a positive number of seconds", ErrInvalidDuration, seconds)
	}
	if seconds >= maxSeconds {
		return Step{}, fmt.Errorf("%w: %v seconds is too long", ErrInvalidDuration, seconds)
	}

	return Step{Action: action, Seconds: seconds}, nil
}
