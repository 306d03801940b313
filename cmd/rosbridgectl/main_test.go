package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	rosbridge "github.com/chrisboulton/rosbridge-go"
	"github.com/chrisboulton/rosbridge-go/internal/fakebridge"
)

func startBridge(t *testing.T) (*fakebridge.Bridge, string) {
	t.Helper()

	bridge := fakebridge.New(fakebridge.Options{Log: zap.NewNop()})
	srv := httptest.NewServer(bridge.Handler())
	t.Cleanup(func() {
		_ = bridge.Close()
		srv.Close()
	})

	return bridge, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	defer RootCmd.SetOut(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := RootCmd.ExecuteContext(ctx)
	return out.String(), err
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServicesCmd(t *testing.T) {
	_, url := startBridge(t)

	out, err := run(t, "--url", url, "services")
	if err != nil {
		t.Fatalf("services error: %v", err)
	}

	want := "/rosapi/get_param_names\n/rosapi/services\n/rosapi/topics\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestParamsCmd(t *testing.T) {
	bridge, url := startBridge(t)
	bridge.SetParam("/use_sim_time", true)

	out, err := run(t, "--url", url, "params")
	if err != nil {
		t.Fatalf("params error: %v", err)
	}
	if out != "/use_sim_time\n" {
		t.Errorf("output = %q", out)
	}
}

func TestCallCmd(t *testing.T) {
	_, url := startBridge(t)

	out, err := run(t, "--url", url, "call", "/rosapi/topics", "{}")
	if err != nil {
		t.Fatalf("call error: %v", err)
	}
	if !strings.Contains(out, `"topics"`) {
		t.Errorf("output = %q, want a topics field", out)
	}
}

func TestCallCmd_InvalidRequest(t *testing.T) {
	_, url := startBridge(t)

	if _, err := run(t, "--url", url, "call", "/rosapi/topics", "[1,2]"); err == nil {
		t.Error("expected an error for a non-object request")
	}
}

func TestPubCmd(t *testing.T) {
	bridge, url := startBridge(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := rosbridge.Connect(ctx, url)
	if err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	defer conn.Close(context.Background())

	received := make(chan rosbridge.Message, 2)
	_ = conn.Topic("/chatter", "std_msgs/String").Subscribe(func(msg rosbridge.Message) {
		received <- msg
	})
	waitFor(t, "subscription", func() bool { return bridge.Subscribers("/chatter") == 1 })

	out, err := run(t, "--url", url, "pub", "/chatter", "std_msgs/String", `{"data":"hi"}`, "--count", "2", "--rate", "1ms")
	if err != nil {
		t.Fatalf("pub error: %v", err)
	}
	if !strings.Contains(out, "published 2 message(s) on /chatter") {
		t.Errorf("output = %q", out)
	}

	for i := 0; i < 2; i++ {
		select {
		case msg := <-received:
			if msg["data"] != "hi" {
				t.Errorf("data = %v, want hi", msg["data"])
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for message")
		}
	}
}

func TestEchoCmd(t *testing.T) {
	bridge, url := startBridge(t)

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		var out bytes.Buffer
		RootCmd.SetOut(&out)
		RootCmd.SetArgs([]string{"--log-level", "error", "--url", url, "echo", "/clock", "rosgraph_msgs/Clock", "--count", "1"})
		err := RootCmd.ExecuteContext(context.Background())
		RootCmd.SetOut(nil)
		done <- result{out.String(), err}
	}()

	waitFor(t, "subscription", func() bool { return bridge.Subscribers("/clock") == 1 })
	bridge.Publish(context.Background(), "/clock", map[string]any{"secs": 7})

	select {
	case res := <-done:
		if res.err != nil {
			t.Fatalf("echo error: %v", res.err)
		}
		if strings.TrimSpace(res.out) != `{"secs":7}` {
			t.Errorf("output = %q", res.out)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for echo")
	}
}
