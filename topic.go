package rosbridge

import (
	"encoding/json"
	"sync"

	"github.com/chrisboulton/rosbridge-go/notify"
)

// EventMessage is emitted on a Topic for every inbound message. The payload
// is a Message.
const EventMessage = "message"

// Topic is a named, typed publish/subscribe endpoint on a Conn.
// It is safe for concurrent use by multiple goroutines.
type Topic struct {
	*notify.Hub

	conn        *Conn
	name        string
	messageType string

	mu         sync.Mutex
	advertised bool
	relayID    notify.ListenerID
	streams    map[*MessageStream]struct{}

	// pubMu keeps concurrent publishes from advertising twice.
	pubMu sync.Mutex
}

// Topic returns a new Topic bound to c.
func (c *Conn) Topic(name, messageType string) *Topic {
	return NewTopic(c, name, messageType)
}

// NewTopic creates a topic, e.g. NewTopic(conn, "/cmd_vel", "geometry_msgs/Twist").
func NewTopic(conn *Conn, name, messageType string) *Topic {
	return &Topic{
		Hub:         notify.New(),
		conn:        conn,
		name:        name,
		messageType: messageType,
		streams:     make(map[*MessageStream]struct{}),
	}
}

// Name returns the topic name.
func (t *Topic) Name() string {
	return t.name
}

// MessageType returns the topic's message type.
func (t *Topic) MessageType() string {
	return t.messageType
}

// IsAdvertised reports whether this topic is currently advertised.
func (t *Topic) IsAdvertised() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.advertised
}

// Subscribe registers cb for every message published on the topic and sends
// a subscribe envelope. Each call adds another callback; all of them stay
// active until Unsubscribe.
func (t *Topic) Subscribe(cb func(Message)) error {
	id := t.On(EventMessage, func(payload any) {
		cb(payload.(Message))
	})
	if err := t.subscribe(); err != nil {
		t.Off(EventMessage, id)
		t.releaseRelay()
		return err
	}
	return nil
}

func (t *Topic) subscribe() error {
	t.ensureRelay()
	id := t.conn.nextKey(OpSubscribe, t.name)
	return t.conn.Send(NewSubscribeEnvelope(id, t.name, t.messageType))
}

// Unsubscribe stops delivery and sends an unsubscribe envelope.
//
// Every listener for this topic name is removed from the connection,
// including those of other Topic values with the same name, along with this
// topic's own callbacks and streams.
func (t *Topic) Unsubscribe() error {
	t.conn.RemoveAllListeners(topicEvent(t.name))
	t.RemoveAllListeners(EventMessage)

	t.mu.Lock()
	t.relayID = 0
	streams := t.streams
	t.streams = make(map[*MessageStream]struct{})
	t.mu.Unlock()

	for s := range streams {
		s.finish(nil)
	}

	id := t.conn.nextKey(OpUnsubscribe, t.name)
	return t.conn.Send(NewUnsubscribeEnvelope(id, t.name))
}

// Advertise registers as a publisher. Calling it twice sends two envelopes.
func (t *Topic) Advertise() error {
	id := t.conn.nextKey(OpAdvertise, t.name)
	if err := t.conn.Send(NewAdvertiseEnvelope(id, t.name, t.messageType)); err != nil {
		return err
	}
	t.mu.Lock()
	t.advertised = true
	t.mu.Unlock()
	return nil
}

// Unadvertise unregisters as a publisher.
func (t *Topic) Unadvertise() error {
	id := t.conn.nextKey(OpUnadvertise, t.name)
	err := t.conn.Send(NewUnadvertiseEnvelope(id, t.name))
	t.mu.Lock()
	t.advertised = false
	t.mu.Unlock()
	return err
}

// Publish sends msg on the topic, advertising first if needed.
// No acknowledgement is awaited.
func (t *Topic) Publish(msg Message) error {
	t.pubMu.Lock()
	if !t.IsAdvertised() {
		if err := t.Advertise(); err != nil {
			t.pubMu.Unlock()
			return err
		}
	}
	t.pubMu.Unlock()

	id := t.conn.nextKey(OpPublish, t.name)
	return t.conn.Send(NewPublishEnvelope(id, t.name, msg))
}

// ensureRelay makes sure exactly one connection listener forwards this
// topic's publishes to the local message event. A sibling's Unsubscribe may
// have removed it, in which case it is registered again.
func (t *Topic) ensureRelay() {
	t.mu.Lock()
	defer t.mu.Unlock()

	event := topicEvent(t.name)
	if t.relayID != 0 && t.conn.Has(event, t.relayID) {
		return
	}
	t.relayID = t.conn.On(event, t.relay)
}

// releaseRelay detaches the relay once nothing on this topic listens for
// messages.
func (t *Topic) releaseRelay() {
	if t.ListenerCount(EventMessage) > 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.relayID != 0 {
		t.conn.Off(topicEvent(t.name), t.relayID)
		t.relayID = 0
	}
}

func (t *Topic) relay(payload any) {
	raw, _ := payload.(json.RawMessage)
	msg, err := decodeMessage(raw)
	if err != nil {
		t.conn.dropFrame(&FrameError{Reason: "publish msg on " + t.name, Frame: raw, Err: err})
		return
	}
	t.Emit(EventMessage, msg)
}

func (t *Topic) addStream(s *MessageStream) {
	t.mu.Lock()
	t.streams[s] = struct{}{}
	t.mu.Unlock()
}

func (t *Topic) removeStream(s *MessageStream) {
	t.mu.Lock()
	delete(t.streams, s)
	t.mu.Unlock()
}
