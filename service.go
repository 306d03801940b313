package rosbridge

import (
	"context"
	"encoding/json"
)

// Service is a named remote procedure reachable through a Conn.
// It keeps no per-call state and is safe for concurrent use.
type Service struct {
	conn        *Conn
	name        string
	serviceType string
}

// Service returns a new Service bound to c.
func (c *Conn) Service(name, serviceType string) *Service {
	return NewService(c, name, serviceType)
}

// NewService creates a service client, e.g.
// NewService(conn, "/add_two_ints", "rospy_tutorials/AddTwoInts").
func NewService(conn *Conn, name, serviceType string) *Service {
	return &Service{conn: conn, name: name, serviceType: serviceType}
}

// Name returns the service name.
func (s *Service) Name() string {
	return s.name
}

// ServiceType returns the service type.
func (s *Service) ServiceType() string {
	return s.serviceType
}

// CallService sends req and arranges for cb to run exactly once: with the
// response, with ctx's error if ctx ends before the reply, or with ErrClosed
// if the connection closes first. A *ServiceError is passed alongside the
// response when the broker reports failure.
//
// If CallService returns an error, cb is never called.
func (s *Service) CallService(ctx context.Context, req *ServiceRequest, cb func(*ServiceResponse, error)) error {
	if req == nil {
		req = NewServiceRequest()
	}

	key := s.conn.nextKey(OpCallService, s.name)

	// Register before sending so a reply cannot arrive unclaimed.
	s.conn.await(ctx, OpCallService, key, func(values json.RawMessage, err error) {
		var resp *ServiceResponse
		if err == nil || values != nil {
			resp = newServiceResponse(values)
		}
		cb(resp, err)
	})

	if err := s.conn.Send(NewCallServiceEnvelope(key, s.name, req)); err != nil {
		if p := s.conn.takePending(key); p != nil {
			if p.stop != nil {
				p.stop()
			}
			return err
		}
		// Already resolved by a concurrent Close.
		return nil
	}
	return nil
}

type callResult struct {
	resp *ServiceResponse
	err  error
}

// Call sends req and waits for the response.
func (s *Service) Call(ctx context.Context, req *ServiceRequest) (*ServiceResponse, error) {
	ch := make(chan callResult, 1)
	err := s.CallService(ctx, req, func(resp *ServiceResponse, err error) {
		ch <- callResult{resp: resp, err: err}
	})
	if err != nil {
		return nil, err
	}

	res := <-ch
	return res.resp, res.err
}

// introspection names a rosapi service that returns a list of strings.
type introspection struct {
	service     string
	serviceType string
	field       string
}

var (
	topicsQuery     = introspection{"/rosapi/topics", "rosapi/Topics", "topics"}
	servicesQuery   = introspection{"/rosapi/services", "rosapi/Services", "services"}
	paramNamesQuery = introspection{"/rosapi/get_param_names", "rosapi/GetParamNames", "names"}
)

// GetTopics retrieves the broker's active topic names.
func (c *Conn) GetTopics(ctx context.Context, cb func([]string, error)) error {
	return c.list(ctx, topicsQuery, cb)
}

// GetServices retrieves the broker's active service names.
func (c *Conn) GetServices(ctx context.Context, cb func([]string, error)) error {
	return c.list(ctx, servicesQuery, cb)
}

// GetParams retrieves the parameter names known to the parameter server.
func (c *Conn) GetParams(ctx context.Context, cb func([]string, error)) error {
	return c.list(ctx, paramNamesQuery, cb)
}

// Topics is the blocking form of GetTopics.
func (c *Conn) Topics(ctx context.Context) ([]string, error) {
	return c.listSync(ctx, topicsQuery)
}

// Services is the blocking form of GetServices.
func (c *Conn) Services(ctx context.Context) ([]string, error) {
	return c.listSync(ctx, servicesQuery)
}

// ParamNames is the blocking form of GetParams.
func (c *Conn) ParamNames(ctx context.Context) ([]string, error) {
	return c.listSync(ctx, paramNamesQuery)
}

func (c *Conn) list(ctx context.Context, q introspection, cb func([]string, error)) error {
	svc := c.Service(q.service, q.serviceType)
	return svc.CallService(ctx, NewServiceRequest(), func(resp *ServiceResponse, err error) {
		if err != nil {
			cb(nil, err)
			return
		}
		cb(stringList(resp, q.field), nil)
	})
}

func (c *Conn) listSync(ctx context.Context, q introspection) ([]string, error) {
	resp, err := c.Service(q.service, q.serviceType).Call(ctx, NewServiceRequest())
	if err != nil {
		return nil, err
	}
	return stringList(resp, q.field), nil
}

func stringList(resp *ServiceResponse, field string) []string {
	items := resp.Get(field).Array()
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.String())
	}
	return out
}
