package fakebridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// frame is the broker's view of a rosbridge envelope.
type frame struct {
	Op      string          `json:"op"`
	ID      string          `json:"id,omitempty"`
	Topic   string          `json:"topic,omitempty"`
	Type    string          `json:"type,omitempty"`
	Msg     json.RawMessage `json:"msg,omitempty"`
	Service string          `json:"service,omitempty"`
	Args    json.RawMessage `json:"args,omitempty"`
	Values  any             `json:"values,omitempty"`
	Result  *bool           `json:"result,omitempty"`
}

// session is one connected client. Its subscription and advertisement
// maps are guarded by the bridge's mutex.
type session struct {
	id   string
	conn *websocket.Conn
	log  *zap.Logger

	// topic -> message type
	subscriptions map[string]string
	advertised    map[string]string
}

func newSession(conn *websocket.Conn, log *zap.Logger) *session {
	id := uuid.New().String()
	return &session{
		id:            id,
		conn:          conn,
		log:           log.Named("session").With(zap.String("session", id)),
		subscriptions: make(map[string]string),
		advertised:    make(map[string]string),
	}
}

func (s *session) send(ctx context.Context, f frame) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, s.conn, f)
}

func (b *Bridge) runSession(ctx context.Context, s *session) {
	defer s.conn.CloseNow()

	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				if !errors.Is(err, context.Canceled) {
					s.log.Debug("Session read failed", zap.Error(err))
				}
			}
			return
		}

		b.handleFrame(ctx, s, data)
	}
}

func (b *Bridge) handleFrame(ctx context.Context, s *session, data []byte) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil || f.Op == "" {
		s.log.Warn("Dropping malformed frame", zap.Int("size", len(data)), zap.Error(err))
		return
	}

	s.log.Debug("Received frame", zap.String("op", f.Op), zap.String("id", f.ID))

	switch f.Op {
	case "subscribe":
		b.mu.Lock()
		s.subscriptions[f.Topic] = f.Type
		b.mu.Unlock()

	case "unsubscribe":
		b.mu.Lock()
		delete(s.subscriptions, f.Topic)
		b.mu.Unlock()

	case "advertise":
		b.mu.Lock()
		s.advertised[f.Topic] = f.Type
		b.mu.Unlock()

	case "unadvertise":
		b.mu.Lock()
		delete(s.advertised, f.Topic)
		b.mu.Unlock()

	case "publish":
		b.fanOut(ctx, f.Topic, f.Msg)

	case "call_service":
		b.callService(ctx, s, f)

	default:
		s.log.Debug("Ignoring unknown op", zap.String("op", f.Op))
	}
}

func (b *Bridge) callService(ctx context.Context, s *session, f frame) {
	b.mu.RLock()
	handler, ok := b.services[f.Service]
	b.mu.RUnlock()

	var (
		values any
		err    error
	)
	if ok {
		values, err = handler(ctx, positionalArgs(f.Args))
	} else {
		err = fmt.Errorf("service %s does not exist", f.Service)
	}

	result := err == nil
	if err != nil {
		values = err.Error()
		s.log.Info("Service call failed", zap.String("service", f.Service), zap.Error(err))
	}

	reply := frame{Op: "service_response", ID: f.ID, Values: values, Result: &result}
	if err := s.send(ctx, reply); err != nil {
		s.log.Debug("Failed to send service response", zap.String("id", f.ID), zap.Error(err))
	}
}

func positionalArgs(raw json.RawMessage) []json.RawMessage {
	items := gjson.ParseBytes(raw).Array()
	args := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		args = append(args, json.RawMessage(item.Raw))
	}
	return args
}
