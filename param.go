package rosbridge

import (
	"sync"

	"github.com/chrisboulton/rosbridge-go/notify"
)

// EventUpdate is emitted on a Param when a new value is pushed for it.
// Nothing in this protocol version sends updates yet.
const EventUpdate = "update"

// Param is a named parameter on the remote parameter server.
//
// Get and Set are not available over rosbridge v2. They send nothing and
// report an *UnsupportedError instead.
type Param struct {
	*notify.Hub

	conn *Conn
	name string

	mu    sync.RWMutex
	value any
}

// Param returns a new Param bound to c.
func (c *Conn) Param(name string) *Param {
	return NewParam(c, name)
}

// NewParam creates a param accessor, e.g. NewParam(conn, "max_vel_x").
func NewParam(conn *Conn, name string) *Param {
	p := &Param{
		Hub:  notify.New(),
		conn: conn,
		name: name,
	}
	p.On(EventUpdate, func(value any) {
		p.mu.Lock()
		p.value = value
		p.mu.Unlock()
	})
	return p
}

// Name returns the param name.
func (p *Param) Name() string {
	return p.name
}

// Value returns the last value received through EventUpdate.
func (p *Param) Value() any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

// Get would fetch the value into cb. It emits an *UnsupportedError on the
// connection's error event, returns it, and never calls cb.
func (p *Param) Get(cb func(any)) error {
	return p.unsupported("get")
}

// Set would store value on the server. It emits an *UnsupportedError on the
// connection's error event and returns it.
func (p *Param) Set(value any) error {
	return p.unsupported("set")
}

func (p *Param) unsupported(op string) error {
	err := &UnsupportedError{Op: "param " + op, Name: p.name}
	p.conn.emitError(err)
	return err
}
