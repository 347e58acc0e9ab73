package ai

import (
	"context"
	"sync"
)

// MockGenerator is a Generator for tests. Respond, when set, computes the
// reply; otherwise Reply and Err are returned as is.
type MockGenerator struct {
	Reply   string
	Err     error
	Respond func(req Request) (string, error)

	mu    sync.Mutex
	calls []Request
}

func (m *MockGenerator) Generate(ctx context.Context, req Request) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Respond != nil {
		return m.Respond(req)
	}
	return m.Reply, m.Err
}

// Calls returns the requests seen so far.
func (m *MockGenerator) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.calls))
	copy(out, m.calls)
	return out
}
