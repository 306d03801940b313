package rosbridge

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/multierr"

	"github.com/chrisboulton/rosbridge-go/notify"
)

// Connection events emitted on the Conn's hub.
const (
	// EventConnection fires once the transport is open and queued
	// envelopes have been flushed. The payload is nil.
	EventConnection = "connection"
	// EventClose fires when the connection closes. The payload is the
	// cause, or nil after Close.
	EventClose = "close"
	// EventError fires for transport errors, send failures and
	// unsupported operations. The payload is an error.
	EventError = "error"
)

// ConnState is the lifecycle state of a Conn.
type ConnState int

const (
	StateIdle ConnState = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// pendingRequest tracks a request whose reply has not arrived yet.
type pendingRequest struct {
	kind      Op
	key       string
	createdAt time.Time
	resolve   func(json.RawMessage, error)
	stop      func() bool
}

type queuedFrame struct {
	op   Op
	data []byte
}

// Conn is a single connection to a rosbridge server shared by any number of
// topics, services and params. It is safe for concurrent use by multiple
// goroutines.
//
// Envelopes sent before the transport is open are queued and flushed in call
// order once it opens. Inbound frames are dispatched one at a time, in the
// order the transport delivers them.
type Conn struct {
	*notify.Hub

	id     string
	cfg    connConfig
	ctx    context.Context
	cancel context.CancelFunc
	lastID atomic.Int64

	// sendMu orders direct writes against the outbox flush.
	sendMu sync.Mutex
	outbox []queuedFrame

	mu        sync.RWMutex
	state     ConnState
	url       string
	transport Transport
	pending   map[string]*pendingRequest
	closeErr  error
	readDone  chan struct{}
}

// New creates an unopened connection. Topics, services and params may be
// created and used right away; their envelopes are queued until Open succeeds.
func New(opts ...ConnOption) *Conn {
	cfg := connConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Conn{
		Hub:     notify.New(),
		id:      uuid.New().String(),
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
		state:   StateIdle,
		pending: make(map[string]*pendingRequest),
	}
}

// Connect creates a connection and opens it to url.
func Connect(ctx context.Context, url string, opts ...ConnOption) (*Conn, error) {
	c := New(opts...)
	if err := c.Open(ctx, url); err != nil {
		return nil, err
	}
	return c, nil
}

// NewWithTransport creates a Conn that is already open over transport.
// This is useful for testing or custom transport implementations.
func NewWithTransport(ctx context.Context, transport Transport, opts ...ConnOption) *Conn {
	c := New(opts...)
	c.cfg.dial = func(context.Context, string) (Transport, error) {
		return transport, nil
	}
	_ = c.Open(ctx, "")
	return c
}

// ID returns the session id used in log lines.
func (c *Conn) ID() string {
	return c.id
}

// URL returns the url passed to Open.
func (c *Conn) URL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.url
}

// State returns the current connection state.
func (c *Conn) State() ConnState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Err returns the error that closed the connection, if any.
func (c *Conn) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closeErr
}

// Pending returns the number of requests awaiting a reply.
func (c *Conn) Pending() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pending)
}

// Queued returns the number of envelopes waiting for the transport to open.
func (c *Conn) Queued() int {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return len(c.outbox)
}

// NextID returns a fresh id. Ids increase strictly and are never reused.
func (c *Conn) NextID() int64 {
	return c.lastID.Add(1)
}

func (c *Conn) nextKey(op Op, name string) string {
	return correlationKey(op, name, c.NextID())
}

// Open dials url and, on success, flushes queued envelopes, starts the read
// loop and emits EventConnection. A failed dial emits EventError and leaves
// the connection idle. Open never reconnects on its own.
func (c *Conn) Open(ctx context.Context, url string) error {
	c.mu.Lock()
	if c.state != StateIdle {
		state := c.state
		c.mu.Unlock()
		if state == StateClosed {
			return ErrClosed
		}
		return ErrInvalidState
	}
	c.state = StateConnecting
	c.url = url
	c.mu.Unlock()

	if c.cfg.logger != nil {
		c.cfg.logger.Debug("connecting",
			slog.String("conn_id", c.id),
			slog.String("url", url),
		)
	}

	transport, err := c.cfg.dialer()(ctx, url)
	if err != nil {
		var connErr *ConnectionError
		if !errors.As(err, &connErr) {
			err = &ConnectionError{Op: "dial", URL: url, Err: err}
		}
		c.mu.Lock()
		if c.state == StateConnecting {
			c.state = StateIdle
		}
		c.mu.Unlock()
		c.emitError(err)
		return err
	}

	c.sendMu.Lock()
	c.mu.Lock()
	if c.state != StateConnecting {
		// Closed while dialing.
		c.mu.Unlock()
		c.sendMu.Unlock()
		_ = transport.Close()
		return ErrClosed
	}
	c.transport = transport
	c.state = StateOpen
	done := make(chan struct{})
	c.readDone = done
	c.mu.Unlock()

	queued := c.outbox
	c.outbox = nil
	var flushErrs []error
	for _, frame := range queued {
		if err := transport.Write(c.ctx, frame.data); err != nil {
			flushErrs = append(flushErrs, &SendError{Op: frame.op, Err: err})
		}
	}
	c.sendMu.Unlock()

	go c.readLoop(transport, done)

	if c.cfg.logger != nil {
		c.cfg.logger.Debug("connected",
			slog.String("conn_id", c.id),
			slog.Int("flushed", len(queued)),
		)
	}

	for _, err := range flushErrs {
		c.emitError(err)
	}
	c.Emit(EventConnection, nil)

	return nil
}

// Close closes the connection. Queued envelopes are dropped, pending service
// calls fail with ErrClosed and EventClose is emitted. Close waits for the
// read loop to exit, so it must not be called from a topic or service callback
// without a bounded ctx.
func (c *Conn) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosed
	transport := c.transport
	readDone := c.readDone
	c.mu.Unlock()

	c.sendMu.Lock()
	dropped := len(c.outbox)
	c.outbox = nil
	c.sendMu.Unlock()

	var err error
	if transport != nil {
		err = multierr.Append(err, transport.Close())
	}
	c.cancel()

	if readDone != nil {
		select {
		case <-readDone:
		case <-ctx.Done():
			err = multierr.Append(err, ctx.Err())
		}
	}

	c.failPending(ErrClosed)

	if c.cfg.logger != nil {
		c.cfg.logger.Debug("closed",
			slog.String("conn_id", c.id),
			slog.Int("dropped", dropped),
		)
	}

	c.Emit(EventClose, nil)

	return err
}

// Send serializes env and writes it, or queues it if the transport is not
// open yet. The envelope is encoded at call time.
func (c *Conn) Send(env *Envelope) error {
	if c.cfg.onSend != nil {
		c.cfg.onSend(env)
	}

	data, err := json.Marshal(env)
	if err != nil {
		err = &SendError{Op: env.Op, Err: err}
		c.emitError(err)
		return err
	}

	c.sendMu.Lock()
	c.mu.RLock()
	state := c.state
	transport := c.transport
	c.mu.RUnlock()

	switch state {
	case StateIdle, StateConnecting:
		c.outbox = append(c.outbox, queuedFrame{op: env.Op, data: data})
		c.sendMu.Unlock()
		if c.cfg.logger != nil {
			c.cfg.logger.Debug("queued envelope",
				slog.String("conn_id", c.id),
				slog.String("op", string(env.Op)),
				slog.String("id", env.ID),
			)
		}
		return nil
	case StateClosed:
		c.sendMu.Unlock()
		err = &SendError{Op: env.Op, Err: ErrClosed}
		c.emitError(err)
		return err
	}

	err = transport.Write(c.ctx, data)
	c.sendMu.Unlock()

	if err != nil {
		err = &SendError{Op: env.Op, Err: err}
		c.emitError(err)
		return err
	}

	if c.cfg.logger != nil {
		c.cfg.logger.Debug("sent envelope",
			slog.String("conn_id", c.id),
			slog.String("op", string(env.Op)),
			slog.String("id", env.ID),
		)
	}
	return nil
}

// readLoop reads frames from the transport and dispatches them.
func (c *Conn) readLoop(transport Transport, done chan struct{}) {
	defer close(done)

	for {
		data, err := transport.Read(c.ctx)
		if err != nil {
			c.handleReadError(transport, err)
			return
		}

		// Observability hook
		if c.cfg.onReceive != nil {
			c.cfg.onReceive(data)
		}

		c.dispatch(data)
	}
}

// handleReadError closes the connection after the transport failed or the
// remote end went away.
func (c *Conn) handleReadError(transport Transport, err error) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	c.closeErr = err
	c.mu.Unlock()

	c.cancel()
	_ = transport.Close()

	if c.cfg.logger != nil {
		c.cfg.logger.Debug("read loop stopped",
			slog.String("conn_id", c.id),
			slog.String("error", err.Error()),
		)
	}

	c.failPending(err)

	if !errors.Is(err, ErrClosed) {
		c.emitError(err)
	}
	c.Emit(EventClose, err)
}

// dispatch routes one inbound frame. Publishes go to "publish:<topic>",
// service responses to their correlation key. Unknown ops are ignored.
// Response ids outside the call_service key space are never emitted, so a
// broker cannot fire lifecycle or topic events.
func (c *Conn) dispatch(data []byte) {
	if !gjson.ValidBytes(data) {
		c.dropFrame(&FrameError{Reason: "invalid JSON", Frame: data})
		return
	}

	frame := gjson.ParseBytes(data)
	op := frame.Get("op")
	if op.Type != gjson.String {
		c.dropFrame(&FrameError{Reason: "missing op", Frame: data})
		return
	}

	switch Op(op.Str) {
	case OpPublish:
		topic := frame.Get("topic").String()
		c.Emit(topicEvent(topic), rawResult(frame.Get("msg")))

	case OpServiceResponse:
		id := frame.Get("id").String()
		values := rawResult(frame.Get("values"))

		var err error
		if result := frame.Get("result"); result.Exists() && !result.Bool() {
			err = &ServiceError{Key: id, Values: values}
		}

		c.resolvePending(id, values, err)
		if isCallKey(id) {
			c.Emit(id, values)
		}

	default:
		if c.cfg.logger != nil {
			c.cfg.logger.Debug("ignoring frame",
				slog.String("conn_id", c.id),
				slog.String("op", op.Str),
			)
		}
	}
}

func (c *Conn) dropFrame(err *FrameError) {
	if c.cfg.logger != nil {
		c.cfg.logger.Warn("dropping inbound frame",
			slog.String("conn_id", c.id),
			slog.String("error", err.Error()),
			slog.Int("size", len(err.Frame)),
		)
	}
}

func (c *Conn) emitError(err error) {
	if c.cfg.logger != nil {
		c.cfg.logger.Warn("connection error",
			slog.String("conn_id", c.id),
			slog.String("error", err.Error()),
		)
	}
	c.Emit(EventError, err)
}

// await registers a pending request under key. resolve is called exactly
// once: with the reply, with ctx's error if ctx ends first, or with the
// close cause if the connection closes first.
func (c *Conn) await(ctx context.Context, kind Op, key string, resolve func(json.RawMessage, error)) {
	p := &pendingRequest{
		kind:      kind,
		key:       key,
		createdAt: time.Now(),
		resolve:   resolve,
	}

	c.mu.Lock()
	c.pending[key] = p
	c.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		c.resolvePending(key, nil, ctx.Err())
	})

	c.mu.Lock()
	if _, ok := c.pending[key]; ok {
		p.stop = stop
	} else {
		stop()
	}
	c.mu.Unlock()
}

// takePending removes and returns the pending request for key.
func (c *Conn) takePending(key string) *pendingRequest {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pending[key]
	if !ok {
		return nil
	}
	delete(c.pending, key)
	return p
}

func (c *Conn) resolvePending(key string, values json.RawMessage, err error) bool {
	p := c.takePending(key)
	if p == nil {
		return false
	}
	if p.stop != nil {
		p.stop()
	}
	p.resolve(values, err)
	return true
}

// failPending resolves every pending request with err, oldest first.
func (c *Conn) failPending(err error) {
	c.mu.Lock()
	pending := make([]*pendingRequest, 0, len(c.pending))
	for _, p := range c.pending {
		pending = append(pending, p)
	}
	clear(c.pending)
	c.mu.Unlock()

	slices.SortFunc(pending, func(a, b *pendingRequest) int {
		return a.createdAt.Compare(b.createdAt)
	})

	for _, p := range pending {
		if p.stop != nil {
			p.stop()
		}
		p.resolve(nil, err)
	}
}

func isCallKey(id string) bool {
	return strings.HasPrefix(id, string(OpCallService)+":")
}

func topicEvent(topic string) string {
	return "publish:" + topic
}

func rawResult(r gjson.Result) json.RawMessage {
	if !r.Exists() {
		return nil
	}
	return json.RawMessage(r.Raw)
}
