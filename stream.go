package rosbridge

import (
	"context"
	"iter"
	"sync"

	"github.com/chrisboulton/rosbridge-go/notify"
)

// MessageStream provides pull-style access to a topic's messages.
type MessageStream struct {
	topic *Topic

	listener      notify.ListenerID
	closeListener notify.ListenerID

	mu       sync.Mutex
	messages chan Message
	done     chan struct{}
	err      error
	dropped  int

	closeOnce sync.Once
}

// Stream subscribes to the topic and returns a stream of its messages.
// The read loop never waits on a stream: once the buffer is full, new
// messages are dropped and counted.
func (t *Topic) Stream(opts ...StreamOption) (*MessageStream, error) {
	cfg := streamConfig{buffer: defaultStreamBuffer}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := newMessageStream(t, cfg.buffer)

	// finish reads both ids under s.mu, so a close racing this
	// registration waits until they are set.
	s.mu.Lock()
	s.listener = t.On(EventMessage, func(payload any) {
		s.handleMessage(payload.(Message))
	})
	s.closeListener = t.conn.Once(EventClose, func(any) {
		s.finish(ErrClosed)
	})
	s.mu.Unlock()
	t.addStream(s)

	if err := t.subscribe(); err != nil {
		s.Close()
		t.releaseRelay()
		return nil, err
	}
	return s, nil
}

// newMessageStream creates a new stream.
func newMessageStream(topic *Topic, buffer int) *MessageStream {
	return &MessageStream{
		topic:    topic,
		messages: make(chan Message, buffer),
		done:     make(chan struct{}),
	}
}

// Next returns the next message, or nil once the stream has ended.
// It returns ErrClosed if the stream ended because the connection closed.
// The context can be used to cancel waiting for the next message.
func (s *MessageStream) Next(ctx context.Context) (Message, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg := <-s.messages:
		return msg, nil
	case <-s.done:
		// Drain any remaining messages
		select {
		case msg := <-s.messages:
			return msg, nil
		default:
		}
		s.mu.Lock()
		err := s.err
		s.mu.Unlock()
		return nil, err
	}
}

// Messages returns an iterator over the stream.
func (s *MessageStream) Messages(ctx context.Context) iter.Seq2[Message, error] {
	return func(yield func(Message, error) bool) {
		for {
			msg, err := s.Next(ctx)
			if err != nil {
				yield(nil, err)
				return
			}
			if msg == nil {
				return
			}
			if !yield(msg, nil) {
				return
			}
		}
	}
}

// Dropped returns how many messages were discarded because the buffer was full.
func (s *MessageStream) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close ends the stream. It does not unsubscribe the topic, since other
// callbacks may still depend on the subscription.
func (s *MessageStream) Close() {
	s.finish(nil)
}

// handleMessage buffers an inbound message.
func (s *MessageStream) handleMessage(msg Message) {
	select {
	case <-s.done:
		return
	default:
	}

	select {
	case s.messages <- msg:
	default:
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
	}
}

func (s *MessageStream) finish(err error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		listener, closeListener := s.listener, s.closeListener
		s.mu.Unlock()
		close(s.done)

		if s.topic != nil {
			s.topic.Off(EventMessage, listener)
			s.topic.conn.Off(EventClose, closeListener)
			s.topic.removeStream(s)
		}
	})
}
