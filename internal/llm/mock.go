package llm

import (
	"context"
	"sync"
)

// ScriptedClient implements Client for testing. It replies with canned
// responses in order, or with a fixed error, and records every request.
type ScriptedClient struct {
	mu        sync.Mutex
	responses []string
	err       error
	requests  []CompletionRequest

	// RespondFunc, when set, overrides the canned responses.
	RespondFunc func(ctx context.Context, req CompletionRequest) (string, error)
}

// NewScriptedClient returns a client that replies with the given responses in
// order, repeating the last one when exhausted.
func NewScriptedClient(responses ...string) *ScriptedClient {
	return &ScriptedClient{responses: responses}
}

// NewFailingClient returns a client whose every call fails with err.
func NewFailingClient(err error) *ScriptedClient {
	return &ScriptedClient{err: err}
}

func (m *ScriptedClient) Model() string {
	return "scripted"
}

func (m *ScriptedClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	n := len(m.requests)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.RespondFunc != nil {
		content, err := m.RespondFunc(ctx, req)
		if err != nil {
			return nil, err
		}
		return &CompletionResponse{Content: content, StopReason: "stop"}, nil
	}
	if m.err != nil {
		return nil, m.err
	}
	if len(m.responses) == 0 {
		return &CompletionResponse{Content: "", StopReason: "stop"}, nil
	}
	idx := n - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return &CompletionResponse{Content: m.responses[idx], StopReason: "stop"}, nil
}

// Requests returns a copy of all requests seen so far.
func (m *ScriptedClient) Requests() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CompletionRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// CallCount returns how many completions have been requested.
func (m *ScriptedClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
