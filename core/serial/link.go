package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/koscakluka/ema-drive/core/commands"
	bugst "go.bug.st/serial"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultBaudRate    = 9600
	DefaultSettleDelay = 2 * time.Second
)

var ErrClosed = errors.New("serial link closed")

// Port is the subset of a serial port the link needs.
type Port interface {
	io.Writer
	// Drain blocks until everything written has been transmitted.
	Drain() error
	Close() error
}

// PortOpener opens the named port at the given baud rate.
type PortOpener func(name string, baudRate int) (Port, error)

func openPort(name string, baudRate int) (Port, error) {
	return bugst.Open(name, &bugst.Mode{BaudRate: baudRate})
}

type Config struct {
	Port     string
	BaudRate int
	// SettleDelay is waited after opening before the initial stop, most
	// boards reset when the port opens.
	SettleDelay time.Duration
	Alphabet    commands.Alphabet
}

type LinkOption func(*Link)

// WithPortOpener replaces the go.bug.st/serial opener, mostly for tests.
func WithPortOpener(opener PortOpener) LinkOption {
	return func(l *Link) {
		if opener != nil {
			l.open = opener
		}
	}
}

// Link owns the connection to the actuator controller.
//
// Link does not queue writes: callers must make sure there is a single writer
// at a time. Send and Close are still safe to call concurrently.
type Link struct {
	name     string
	stopCode byte
	open     PortOpener

	mu     sync.Mutex
	port   Port
	closed bool
}

// Open connects to the controller and forces it into the stopped state.
func Open(ctx context.Context, cfg Config, opts ...LinkOption) (*Link, error) {
	ctx, span := tracer.Start(ctx, "open serial link", trace.WithAttributes(
		attribute.String("serial.port", cfg.Port),
		attribute.Int("serial.baud_rate", cfg.BaudRate),
	))
	defer span.End()

	if cfg.BaudRate <= 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.Alphabet.IsZero() {
		cfg.Alphabet = commands.DefaultAlphabet()
	}

	link := &Link{
		name:     cfg.Port,
		stopCode: cfg.Alphabet.Stop(),
		open:     openPort,
	}
	for _, opt := range opts {
		opt(link)
	}

	port, err := link.open(cfg.Port, cfg.BaudRate)
	if err != nil {
		err = fmt.Errorf("failed to open serial port %s: %w", cfg.Port, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	link.port = port
	logger.InfoContext(ctx, "connected to serial port", "port", cfg.Port, "baud_rate", cfg.BaudRate)

	if cfg.SettleDelay > 0 {
		select {
		case <-time.After(cfg.SettleDelay):
		case <-ctx.Done():
			_ = port.Close()
			return nil, fmt.Errorf("waiting for serial port to settle: %w", ctx.Err())
		}
	}

	if err := link.Send(link.stopCode); err != nil {
		_ = port.Close()
		err = fmt.Errorf("failed to send initial stop: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return link, nil
}

// Send writes a single actuator code and returns once it has been flushed to
// the wire.
func (l *Link) Send(code byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	return l.write(code)
}

func (l *Link) write(code byte) error {
	if _, err := l.port.Write([]byte{code}); err != nil {
		return fmt.Errorf("failed to write %q to %s: %w", code, l.name, err)
	}
	if err := l.port.Drain(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", l.name, err)
	}
	return nil
}

// Stop sends the stop code.
func (l *Link) Stop() error { return l.Send(l.stopCode) }

func (l *Link) StopCode() byte { return l.stopCode }

func (l *Link) Name() string { return l.name }

// Close sends a final stop and closes the port. Only the first call does
// anything, later calls return nil.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	var errs error
	if err := l.write(l.stopCode); err != nil {
		errs = errors.Join(errs, fmt.Errorf("failed to send final stop: %w", err))
	}
	if err := l.port.Close(); err != nil {
		errs = errors.Join(errs, fmt.Errorf("failed to close %s: %w", l.name, err))
	}
	return errs
}

// ListPorts returns the serial ports found on the system.
func ListPorts() ([]string, error) {
	return bugst.GetPortsList()
}
