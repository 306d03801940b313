package fakebridge

import (
	"context"
	"encoding/json"
)

func (b *Bridge) registerRosapi() {
	b.HandleService("/rosapi/topics", func(context.Context, []json.RawMessage) (any, error) {
		topics, types := b.topics()
		return map[string]any{"topics": topics, "types": types}, nil
	})

	b.HandleService("/rosapi/services", func(context.Context, []json.RawMessage) (any, error) {
		return map[string]any{"services": b.serviceNames()}, nil
	})

	b.HandleService("/rosapi/get_param_names", func(context.Context, []json.RawMessage) (any, error) {
		return map[string]any{"names": b.paramNames()}, nil
	})
}
