package agent

import (
	"context"
	"fmt"
	"sync"
)

// MockClient replays scripted outputs and records every request. When the
// script runs out it answers with a bare final response.
type MockClient struct {
	mu      sync.Mutex
	outputs []string
	calls   []CompletionRequest
}

// NewMockClient creates a mock client with the given scripted outputs.
func NewMockClient(outputs ...string) *MockClient {
	return &MockClient{outputs: append([]string(nil), outputs...)}
}

func (m *MockClient) Provider() string {
	return "mock"
}

func (m *MockClient) Complete(_ context.Context, req CompletionRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, req)
	if len(m.outputs) == 0 {
		return "Final response only.", nil
	}
	out := m.outputs[0]
	m.outputs = m.outputs[1:]
	return out, nil
}

// Calls returns a copy of every request seen so far.
func (m *MockClient) Calls() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CompletionRequest(nil), m.calls...)
}

// EchoClient answers every prompt with one tagged thought echoing the
// user prompt. It backs offline CLI runs where no provider is reachable.
type EchoClient struct{}

func (EchoClient) Provider() string {
	return "mock"
}

func (EchoClient) Complete(_ context.Context, req CompletionRequest) (string, error) {
	prompt := req.UserPrompt
	if runes := []rune(prompt); len(runes) > 120 {
		prompt = string(runes[:120])
	}
	return fmt.Sprintf("/thought[Analyzing: %s]\nFinal response: processed.", prompt), nil
}

var (
	_ Client = (*MockClient)(nil)
	_ Client = EchoClient{}
)
