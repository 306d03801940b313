package rosbridge

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	ErrClosed           = errors.New("rosbridge: connection closed")
	ErrInvalidState     = errors.New("rosbridge: invalid connection state")
	ErrParamUnsupported = errors.New("rosbridge: param access not supported by this protocol version")
)

// ConnectionError represents a transport-level error: a failed dial, an
// abrupt close or a socket error while reading or writing.
type ConnectionError struct {
	Op  string
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("rosbridge: %s %s: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("rosbridge: %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// SendError represents an error while encoding or writing an envelope.
type SendError struct {
	Op  Op
	Err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("rosbridge: send %s: %v", e.Op, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// FrameError represents an inbound frame that could not be dispatched.
type FrameError struct {
	Reason string
	Frame  []byte
	Err    error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rosbridge: malformed frame: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("rosbridge: malformed frame: %s", e.Reason)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// UnsupportedError reports an operation this protocol version cannot perform.
type UnsupportedError struct {
	Op   string
	Name string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("rosbridge: %s %s: not integrated with rosbridge v2", e.Op, e.Name)
}

func (e *UnsupportedError) Unwrap() error {
	return ErrParamUnsupported
}

// ServiceError reports a service_response whose result flag was false.
// Values holds whatever the broker sent back, usually an error string.
type ServiceError struct {
	Key    string
	Values []byte
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("rosbridge: service call %s failed: %s", e.Key, e.Values)
}
