// Package transport implements request/response exchanges with serial
// motion controllers.
//
// A Connection writes one command at a time and reads until the ack
// marker. Responses are classified by keyword: anything containing the
// error keyword or the alarm keyword (compared case-insensitively) fails
// with a typed error. A missing ack triggers a reconnect and a retry.
package transport

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
)

const (
	DefaultTimeout      = 10 * time.Second
	DefaultRetryWait    = 100 * time.Millisecond
	DefaultErrorKeyword = "error"
	DefaultAlarmKeyword = "alarm"
)

// Options configures a Connection. Zero values take the defaults above.
type Options struct {
	// Name identifies the device in errors and logs.
	Name string
	// Ack terminates every response. Required.
	Ack string
	// Timeout bounds a single read.
	Timeout time.Duration
	// RetryWait is slept before reconnecting between attempts.
	RetryWait time.Duration
	ErrorKeyword string
	AlarmKeyword string
	// ProcessResponse post-processes a response with the ack removed.
	// Default: strings.TrimSpace.
	ProcessResponse func(command, response string) string
	Logger          *slog.Logger
}

// Connection serializes command exchanges over a Port.
//
// Thread Safety:
//   - Send and SendCommand hold an exclusive lock for the whole exchange,
//     retries included.
type Connection struct {
	mu   sync.Mutex
	port Port

	name         string
	ack          string
	timeout      time.Duration
	retryWait    time.Duration
	errorKeyword string
	alarmKeyword string
	process      func(command, response string) string
	logger       *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewConnection wraps port. The port is not opened.
func NewConnection(port Port, opts Options) (*Connection, error) {
	if opts.Ack == "" {
		return nil, ErrEmptyAck
	}
	c := &Connection{
		port:         port,
		name:         opts.Name,
		ack:          opts.Ack,
		timeout:      opts.Timeout,
		retryWait:    opts.RetryWait,
		errorKeyword: opts.ErrorKeyword,
		alarmKeyword: opts.AlarmKeyword,
		process:      opts.ProcessResponse,
		logger:       opts.Logger,
		sleep:        sleepContext,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.retryWait <= 0 {
		c.retryWait = DefaultRetryWait
	}
	if c.errorKeyword == "" {
		c.errorKeyword = DefaultErrorKeyword
	}
	if c.alarmKeyword == "" {
		c.alarmKeyword = DefaultAlarmKeyword
	}
	c.errorKeyword = cases.Fold().String(c.errorKeyword)
	c.alarmKeyword = cases.Fold().String(c.alarmKeyword)
	if c.process == nil {
		c.process = func(_, response string) string { return strings.TrimSpace(response) }
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// Name returns the device name.
func (c *Connection) Name() string {
	return c.name
}

// Open opens the underlying port.
func (c *Connection) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.port.Open(ctx)
}

// Close closes the underlying port.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.port.Close()
}

// SendCommand builds cmd and sends it.
func (c *Connection) SendCommand(ctx context.Context, cmd *CommandBuilder, retries int) (string, error) {
	return c.Send(ctx, cmd.Build(), retries)
}

// Send writes data and returns the processed response. It makes
// retries+1 attempts; each attempt that ends without the ack marker is
// followed by a wait and a reconnect.
func (c *Connection) Send(ctx context.Context, data string, retries int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for attempt := 0; attempt <= retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		c.logger.Debug("transport write", "port", c.name, "data", data)
		if err := c.port.Write([]byte(data)); err != nil {
			return "", fmt.Errorf("transport: write to %s: %w", c.name, err)
		}

		raw, err := c.port.ReadUntil([]byte(c.ack), c.timeout)
		if err != nil {
			return "", fmt.Errorf("transport: read from %s: %w", c.name, err)
		}
		c.logger.Debug("transport read", "port", c.name, "data", string(raw))

		response := string(raw)
		if strings.Contains(response, c.ack) {
			response = c.process(data, strings.ReplaceAll(response, c.ack, ""))
			if err := c.classify(response); err != nil {
				return "", err
			}
			return response, nil
		}

		c.logger.Info("transport no ack, retrying", "port", c.name, "attempt", attempt+1, "retries", retries)
		if err := c.reconnect(ctx); err != nil {
			return "", err
		}
	}

	return "", &NoResponseError{Port: c.name, Command: data}
}

// classify checks the error keyword before the alarm keyword.
func (c *Connection) classify(response string) error {
	folded := cases.Fold().String(response)
	if strings.Contains(folded, c.errorKeyword) {
		return &ErrorResponseError{Port: c.name, Response: response}
	}
	if strings.Contains(folded, c.alarmKeyword) {
		return &AlarmResponseError{Port: c.name, Response: response}
	}
	return nil
}

func (c *Connection) reconnect(ctx context.Context) error {
	if err := c.sleep(ctx, c.retryWait); err != nil {
		return err
	}
	if err := c.port.Close(); err != nil {
		c.logger.Warn("transport close failed", "port", c.name, "error", err)
	}
	if err := c.port.Open(ctx); err != nil {
		return fmt.Errorf("transport: reopen %s: %w", c.name, err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
