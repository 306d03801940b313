package rosbridge

import (
	"errors"
	"testing"
)

func TestConnectionError(t *testing.T) {
	underlying := errors.New("connection refused")
	err := &ConnectionError{Op: "dial", Err: underlying}

	if err.Error() != "rosbridge: dial: connection refused" {
		t.Errorf("Error() = %s", err.Error())
	}

	if !errors.Is(err, underlying) {
		t.Error("errors.Is should return true for underlying error")
	}
}

func TestConnectionError_WithURL(t *testing.T) {
	underlying := errors.New("connection refused")
	err := &ConnectionError{Op: "dial", URL: "ws://localhost:9090", Err: underlying}

	expected := "rosbridge: dial ws://localhost:9090: connection refused"
	if err.Error() != expected {
		t.Errorf("Error() = %s, want %s", err.Error(), expected)
	}
}

func TestSendError(t *testing.T) {
	underlying := errors.New("write failed")
	err := &SendError{Op: OpPublish, Err: underlying}

	expected := "rosbridge: send publish: write failed"
	if err.Error() != expected {
		t.Errorf("Error() = %s, want %s", err.Error(), expected)
	}

	if !errors.Is(err, underlying) {
		t.Error("errors.Is should return true for underlying error")
	}
}

func TestFrameError(t *testing.T) {
	err := &FrameError{Reason: "missing op"}
	if err.Error() != "rosbridge: malformed frame: missing op" {
		t.Errorf("Error() = %s", err.Error())
	}

	underlying := errors.New("unexpected end of JSON input")
	err = &FrameError{Reason: "publish msg on /chatter", Err: underlying}

	expected := "rosbridge: malformed frame: publish msg on /chatter: unexpected end of JSON input"
	if err.Error() != expected {
		t.Errorf("Error() = %s, want %s", err.Error(), expected)
	}
	if !errors.Is(err, underlying) {
		t.Error("errors.Is should return true for underlying error")
	}
}

func TestUnsupportedError(t *testing.T) {
	err := &UnsupportedError{Op: "param get", Name: "max_vel_x"}

	expected := "rosbridge: param get max_vel_x: not integrated with rosbridge v2"
	if err.Error() != expected {
		t.Errorf("Error() = %s, want %s", err.Error(), expected)
	}
	if !errors.Is(err, ErrParamUnsupported) {
		t.Error("errors.Is should find ErrParamUnsupported")
	}
}

func TestServiceError(t *testing.T) {
	err := &ServiceError{Key: "call_service:/add_two_ints:3", Values: []byte(`"boom"`)}

	expected := `rosbridge: service call call_service:/add_two_ints:3 failed: "boom"`
	if err.Error() != expected {
		t.Errorf("Error() = %s, want %s", err.Error(), expected)
	}
}

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"ErrClosed", ErrClosed, "rosbridge: connection closed"},
		{"ErrInvalidState", ErrInvalidState, "rosbridge: invalid connection state"},
		{"ErrParamUnsupported", ErrParamUnsupported, "rosbridge: param access not supported by this protocol version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.want {
				t.Errorf("Error() = %s, want %s", tt.err.Error(), tt.want)
			}
		})
	}
}

func TestErrorsIs(t *testing.T) {
	// Verify sentinel errors work with errors.Is
	wrapped := &SendError{Op: OpAdvertise, Err: ErrClosed}
	if !errors.Is(wrapped, ErrClosed) {
		t.Error("errors.Is should find ErrClosed in wrapped error")
	}

	// Verify errors.As works for typed errors
	var sendErr *SendError
	if !errors.As(wrapped, &sendErr) {
		t.Error("errors.As should extract SendError")
	}
}
