package rosbridge

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Op is the operation name carried in every envelope.
type Op string

const (
	OpSubscribe       Op = "subscribe"
	OpUnsubscribe     Op = "unsubscribe"
	OpAdvertise       Op = "advertise"
	OpUnadvertise     Op = "unadvertise"
	OpPublish         Op = "publish"
	OpCallService     Op = "call_service"
	OpServiceResponse Op = "service_response"
)

// --- Envelopes (Client -> Broker) ---

// Envelope is a single protocol frame.
type Envelope struct {
	Op      Op              `json:"op"`
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type,omitempty"`
	Topic   string          `json:"topic,omitempty"`
	Msg     any             `json:"msg,omitempty"`
	Service string          `json:"service,omitempty"`
	Args    json.RawMessage `json:"args,omitempty"`
	Values  json.RawMessage `json:"values,omitempty"`
}

// NewSubscribeEnvelope creates a subscribe envelope.
func NewSubscribeEnvelope(id, topic, messageType string) *Envelope {
	return &Envelope{Op: OpSubscribe, ID: id, Type: messageType, Topic: topic}
}

// NewUnsubscribeEnvelope creates an unsubscribe envelope.
func NewUnsubscribeEnvelope(id, topic string) *Envelope {
	return &Envelope{Op: OpUnsubscribe, ID: id, Topic: topic}
}

// NewAdvertiseEnvelope creates an advertise envelope.
func NewAdvertiseEnvelope(id, topic, messageType string) *Envelope {
	return &Envelope{Op: OpAdvertise, ID: id, Type: messageType, Topic: topic}
}

// NewUnadvertiseEnvelope creates an unadvertise envelope.
func NewUnadvertiseEnvelope(id, topic string) *Envelope {
	return &Envelope{Op: OpUnadvertise, ID: id, Topic: topic}
}

// NewPublishEnvelope creates a publish envelope. A nil msg is sent as {}.
func NewPublishEnvelope(id, topic string, msg Message) *Envelope {
	if msg == nil {
		msg = Message{}
	}
	return &Envelope{Op: OpPublish, ID: id, Topic: topic, Msg: msg}
}

// NewCallServiceEnvelope creates a call_service envelope with positional args.
func NewCallServiceEnvelope(id, service string, req *ServiceRequest) *Envelope {
	return &Envelope{Op: OpCallService, ID: id, Service: service, Args: req.Args()}
}

// correlationKey builds the human readable id "<op>:<name>:<n>".
func correlationKey(op Op, name string, n int64) string {
	return fmt.Sprintf("%s:%s:%d", op, name, n)
}

// --- Payloads ---

// Message is a topic message. Its shape is defined by the topic's message type
// and is not validated by the client.
type Message map[string]any

func decodeMessage(raw json.RawMessage) (Message, error) {
	msg := Message{}
	if len(raw) == 0 || string(raw) == "null" {
		return msg, nil
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// ServiceRequest holds the request fields of a service call. Fields keep the
// order in which they were set; the broker receives their values as a
// positional argument list in that order.
type ServiceRequest struct {
	raw []byte
}

// NewServiceRequest creates an empty request.
func NewServiceRequest() *ServiceRequest {
	return &ServiceRequest{raw: []byte("{}")}
}

// ServiceRequestFromJSON creates a request from a JSON object, keeping the
// object's field order.
func ServiceRequestFromJSON(data []byte) (*ServiceRequest, error) {
	res := gjson.ParseBytes(data)
	if !gjson.ValidBytes(data) || !res.IsObject() {
		return nil, fmt.Errorf("rosbridge: service request must be a JSON object")
	}
	raw := make([]byte, len(data))
	copy(raw, data)
	return &ServiceRequest{raw: raw}, nil
}

// Set sets a field. Setting an existing field keeps its position.
func (r *ServiceRequest) Set(field string, value any) error {
	raw, err := sjson.SetBytes(r.bytes(), escapePath(field), value)
	if err != nil {
		return fmt.Errorf("rosbridge: set request field %q: %w", field, err)
	}
	r.raw = raw
	return nil
}

// With is Set for chaining; it panics if value cannot be encoded.
func (r *ServiceRequest) With(field string, value any) *ServiceRequest {
	if err := r.Set(field, value); err != nil {
		panic(err)
	}
	return r
}

// Fields returns the field names in order.
func (r *ServiceRequest) Fields() []string {
	var names []string
	gjson.ParseBytes(r.bytes()).ForEach(func(key, _ gjson.Result) bool {
		names = append(names, key.String())
		return true
	})
	return names
}

// Args returns the field values as a JSON array in field order.
func (r *ServiceRequest) Args() json.RawMessage {
	var sb strings.Builder
	sb.WriteByte('[')
	first := true
	if r != nil {
		gjson.ParseBytes(r.bytes()).ForEach(func(_, value gjson.Result) bool {
			if !first {
				sb.WriteByte(',')
			}
			first = false
			sb.WriteString(value.Raw)
			return true
		})
	}
	sb.WriteByte(']')
	return json.RawMessage(sb.String())
}

// MarshalJSON returns the request as a JSON object.
func (r *ServiceRequest) MarshalJSON() ([]byte, error) {
	return r.bytes(), nil
}

func (r *ServiceRequest) bytes() []byte {
	if r == nil || len(r.raw) == 0 {
		return []byte("{}")
	}
	return r.raw
}

// ServiceResponse holds the values returned by a service call.
type ServiceResponse struct {
	raw json.RawMessage
}

func newServiceResponse(raw json.RawMessage) *ServiceResponse {
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	return &ServiceResponse{raw: raw}
}

// Get returns the value at a gjson path, e.g. "topics" or "sum".
func (r *ServiceResponse) Get(path string) gjson.Result {
	return gjson.GetBytes(r.raw, path)
}

// Raw returns the undecoded response values.
func (r *ServiceResponse) Raw() json.RawMessage {
	return r.raw
}

// Decode unmarshals the response values into v.
func (r *ServiceResponse) Decode(v any) error {
	return json.Unmarshal(r.raw, v)
}

// Map returns the response values as a map. Non-object values yield an empty map.
func (r *ServiceResponse) Map() map[string]any {
	out := map[string]any{}
	if gjson.ParseBytes(r.raw).IsObject() {
		_ = json.Unmarshal(r.raw, &out)
	}
	return out
}

// escapePath escapes sjson path syntax so field is used as a plain key.
func escapePath(field string) string {
	var sb strings.Builder
	for _, c := range field {
		switch c {
		case '.', '*', '?', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteRune(c)
	}
	return sb.String()
}
