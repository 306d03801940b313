// Package fakebridge is an in-process rosbridge v2 server. It keeps topic
// subscriptions and service handlers in memory and is meant for tests and
// local development, not for talking to real robots.
package fakebridge

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/coder/websocket"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	reuseport "github.com/kavu/go_reuseport"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	shutdownTimeout = 5 * time.Second
	writeTimeout    = 5 * time.Second
)

// ServiceHandler answers a call_service request. args holds the positional
// arguments in the order the client sent them. A returned error is sent
// back as a failed service_response carrying the error text.
type ServiceHandler func(ctx context.Context, args []json.RawMessage) (any, error)

type Options struct {
	// Log receives access and session logs. Defaults to a no-op logger.
	Log *zap.Logger

	// DebugHTTP puts gin in debug mode
	DebugHTTP bool
}

// Bridge routes envelopes between connected sessions.
type Bridge struct {
	log    *zap.Logger
	router *gin.Engine

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	sessions map[*session]struct{}
	services map[string]ServiceHandler
	params   map[string]any

	sessionWaiter sync.WaitGroup
}

func New(options Options) *Bridge {
	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	b := &Bridge{
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[*session]struct{}),
		services: make(map[string]ServiceHandler),
		params:   make(map[string]any),
	}

	b.router = setupRouter(options.DebugHTTP, log)
	b.router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	b.router.GET("/", b.serveWebsocket)

	b.registerRosapi()

	return b
}

func setupRouter(debugHTTP bool, log *zap.Logger) *gin.Engine {
	gin.DisableConsoleColor()
	if !debugHTTP {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(ginzap.GinzapWithConfig(log, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{"/health"},
	}))

	// Logs all panic to error log
	r.Use(ginzap.RecoveryWithZap(log, true))

	return r
}

// Handler returns the HTTP handler serving the websocket endpoint at "/".
func (b *Bridge) Handler() http.Handler {
	return b.router
}

// HandleService registers h for name, replacing any earlier handler.
func (b *Bridge) HandleService(name string, h ServiceHandler) {
	b.mu.Lock()
	b.services[name] = h
	b.mu.Unlock()
}

// SetParam stores a parameter so it shows up in /rosapi/get_param_names.
func (b *Bridge) SetParam(name string, value any) {
	b.mu.Lock()
	b.params[name] = value
	b.mu.Unlock()
}

// Subscribers returns how many sessions are subscribed to topic.
func (b *Bridge) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for s := range b.sessions {
		if _, ok := s.subscriptions[topic]; ok {
			n++
		}
	}
	return n
}

// Publishers returns how many sessions have advertised topic.
func (b *Bridge) Publishers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for s := range b.sessions {
		if _, ok := s.advertised[topic]; ok {
			n++
		}
	}
	return n
}

// Sessions returns the number of connected clients.
func (b *Bridge) Sessions() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sessions)
}

// Publish sends msg to every session subscribed to topic and returns how
// many sessions it was delivered to.
func (b *Bridge) Publish(ctx context.Context, topic string, msg any) int {
	raw, err := json.Marshal(msg)
	if err != nil {
		b.log.Warn("Failed to encode message", zap.String("topic", topic), zap.Error(err))
		return 0
	}
	return b.fanOut(ctx, topic, raw)
}

func (b *Bridge) fanOut(ctx context.Context, topic string, msg json.RawMessage) int {
	if len(msg) == 0 || string(msg) == "null" {
		msg = json.RawMessage("{}")
	}

	b.mu.RLock()
	targets := make([]*session, 0, len(b.sessions))
	for s := range b.sessions {
		if _, ok := s.subscriptions[topic]; ok {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	delivered := 0
	for _, s := range targets {
		if err := s.send(ctx, frame{Op: "publish", Topic: topic, Msg: msg}); err != nil {
			s.log.Debug("Failed to deliver message", zap.String("topic", topic), zap.Error(err))
			continue
		}
		delivered++
	}
	return delivered
}

// Listen opens a SO_REUSEPORT listener on addr.
func Listen(addr string) (net.Listener, error) {
	return reuseport.Listen("tcp", addr)
}

// ListenAndServe serves on addr until ctx is done.
func (b *Bridge) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := Listen(addr)
	if err != nil {
		return err
	}
	return b.Serve(ctx, listener)
}

// Serve accepts connections on listener until ctx is done, then shuts the
// HTTP server down and closes every session.
func (b *Bridge) Serve(ctx context.Context, listener net.Listener) error {
	s := &http.Server{Handler: b.router}

	errs := make(chan error, 1)
	go func() {
		errs <- s.Serve(listener)
	}()

	b.log.Info("Listening", zap.String("addr", listener.Addr().String()))

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		return multierr.Append(err, b.Close())

	case <-ctx.Done():
	}

	b.log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.SetKeepAlivesEnabled(false)

	err := s.Shutdown(shutdownCtx)
	if serveErr := <-errs; !errors.Is(serveErr, http.ErrServerClosed) {
		err = multierr.Append(err, serveErr)
	}

	return multierr.Append(err, b.Close())
}

// Close disconnects every session and waits for their loops to exit.
func (b *Bridge) Close() error {
	b.cancel()

	b.mu.RLock()
	sessions := make([]*session, 0, len(b.sessions))
	for s := range b.sessions {
		sessions = append(sessions, s)
	}
	b.mu.RUnlock()

	var err error
	for _, s := range sessions {
		closeErr := s.conn.Close(websocket.StatusGoingAway, "server shutting down")
		if closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
			err = multierr.Append(err, closeErr)
		}
	}

	b.sessionWaiter.Wait()
	return err
}

func (b *Bridge) serveWebsocket(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		b.log.Warn("Websocket accept failed", zap.Error(err))
		return
	}

	s := newSession(conn, b.log)
	if !b.addSession(s) {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer b.removeSession(s)

	s.log.Debug("Session opened", zap.String("remote", c.Request.RemoteAddr))
	b.runSession(b.ctx, s)
}

func (b *Bridge) addSession(s *session) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ctx.Err() != nil {
		return false
	}
	b.sessions[s] = struct{}{}
	b.sessionWaiter.Add(1)
	return true
}

func (b *Bridge) removeSession(s *session) {
	b.mu.Lock()
	delete(b.sessions, s)
	b.mu.Unlock()

	b.sessionWaiter.Done()
	s.log.Debug("Session closed")
}

func (b *Bridge) serviceNames() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.services))
	for name := range b.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (b *Bridge) paramNames() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.params))
	for name := range b.params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// topics returns every subscribed or advertised topic with its type.
func (b *Bridge) topics() ([]string, []string) {
	b.mu.RLock()
	types := make(map[string]string)
	for s := range b.sessions {
		for topic, typ := range s.subscriptions {
			if types[topic] == "" {
				types[topic] = typ
			}
		}
		for topic, typ := range s.advertised {
			if typ != "" {
				types[topic] = typ
			}
		}
	}
	b.mu.RUnlock()

	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Strings(names)

	typeList := make([]string, 0, len(names))
	for _, name := range names {
		typeList = append(typeList, types[name])
	}
	return names, typeList
}
