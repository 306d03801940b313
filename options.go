package rosbridge

import (
	"context"
	"log/slog"
)

// --- Conn Options ---

// ConnOption configures a Conn.
type ConnOption func(*connConfig)

type connConfig struct {
	logger      *slog.Logger
	onSend      func(*Envelope)
	onReceive   func([]byte)
	dial        DialFunc
	dialOptions *DialOptions
}

// WithLogger sets a structured logger for the connection.
func WithLogger(logger *slog.Logger) ConnOption {
	return func(c *connConfig) {
		c.logger = logger
	}
}

// WithOnSend sets a callback invoked when an envelope is handed to Send,
// before it is written or queued.
func WithOnSend(fn func(*Envelope)) ConnOption {
	return func(c *connConfig) {
		c.onSend = fn
	}
}

// WithOnReceive sets a callback invoked with every raw inbound frame.
func WithOnReceive(fn func([]byte)) ConnOption {
	return func(c *connConfig) {
		c.onReceive = fn
	}
}

// WithDialer replaces the WebSocket dialer used by Open.
func WithDialer(dial DialFunc) ConnOption {
	return func(c *connConfig) {
		c.dial = dial
	}
}

// WithDialOptions configures the default WebSocket dialer.
func WithDialOptions(opts *DialOptions) ConnOption {
	return func(c *connConfig) {
		c.dialOptions = opts
	}
}

func (c *connConfig) dialer() DialFunc {
	if c.dial != nil {
		return c.dial
	}
	opts := c.dialOptions
	return func(ctx context.Context, url string) (Transport, error) {
		return Dial(ctx, url, opts)
	}
}

// --- Stream Options ---

// StreamOption configures a MessageStream.
type StreamOption func(*streamConfig)

type streamConfig struct {
	buffer int
}

const defaultStreamBuffer = 100

// WithStreamBuffer sets how many undelivered messages a stream holds before
// it starts dropping new ones.
func WithStreamBuffer(n int) StreamOption {
	return func(c *streamConfig) {
		if n > 0 {
			c.buffer = n
		}
	}
}
