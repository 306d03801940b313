// Package rosbridge provides a Go client for the rosbridge v2 JSON protocol.
//
// A single [Conn] carries every topic subscription, publication and service
// call to the broker over one WebSocket. Envelopes sent before the
// connection opens are queued and flushed in call order. Replies are matched
// to their requests by correlation keys of the form "<op>:<name>:<n>".
//
// # Thread Safety
//
// [Conn], [Topic], [Service] and [Param] are safe for concurrent use by
// multiple goroutines. Callbacks run on the connection's read loop, one
// inbound frame at a time; a slow callback delays every later frame.
// A [MessageStream] should only be consumed by a single goroutine.
//
// # Basic Usage
//
//	ctx := context.Background()
//
//	conn := rosbridge.New(rosbridge.WithLogger(slog.Default()))
//	conn.On(rosbridge.EventError, func(payload any) {
//	    log.Println("rosbridge:", payload)
//	})
//
//	// Envelopes are queued until Open succeeds.
//	cmdVel := conn.Topic("/cmd_vel", "geometry_msgs/Twist")
//	_ = cmdVel.Publish(rosbridge.Message{
//	    "linear":  map[string]any{"x": 0.5},
//	    "angular": map[string]any{"z": 0.1},
//	})
//
//	if err := conn.Open(ctx, "ws://localhost:9090"); err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Close(ctx)
//
//	listener := conn.Topic("/chatter", "std_msgs/String")
//	_ = listener.Subscribe(func(msg rosbridge.Message) {
//	    fmt.Println(msg["data"])
//	})
//
//	addTwoInts := conn.Service("/add_two_ints", "rospy_tutorials/AddTwoInts")
//	resp, err := addTwoInts.Call(ctx, rosbridge.NewServiceRequest().With("a", 1).With("b", 2))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(resp.Get("sum").Int())
//
// # Events
//
// The connection emits [EventConnection], [EventClose] and [EventError].
// Transport failures and unsupported operations are reported on
// [EventError] rather than panicking, so applications opt in by listening.
//
// # Observability
//
// Use [WithLogger], [WithOnSend], and [WithOnReceive] to add logging and
// monitoring to the connection.
package rosbridge
