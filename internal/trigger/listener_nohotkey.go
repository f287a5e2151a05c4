//go:build nohotkey

package trigger

import (
	"context"
	"log/slog"
)

const Available = false

func RunOnMainThread(fn func()) { fn() }

func Listen(context.Context, Binding, Binding, Handlers, *slog.Logger) error {
	return ErrUnavailable
}
