package llm

import (
	"context"
	"sync"
)

// MockLLM is a deterministic Completer for tests.
// Queued responses are consumed first, then Response is returned.
type MockLLM struct {
	mu sync.Mutex

	// Response is the fixed text returned once the queue is empty.
	Response string

	// Responses are returned one per call, in order.
	Responses []string

	// Error, if set, is returned instead of a response.
	Error error

	// Errors are returned one per call, in order, before Error is consulted.
	// A nil entry means that call succeeds.
	Errors []error

	// Calls records every request in order.
	Calls []MockCall
}

// MockCall is one recorded Complete invocation.
type MockCall struct {
	Messages []Message
	Params   Params
}

// NewMockLLM creates a mock that always returns response.
func NewMockLLM(response string) *MockLLM {
	return &MockLLM{Response: response}
}

// NewMockLLMWithError creates a mock that always fails.
func NewMockLLMWithError(err error) *MockLLM {
	return &MockLLM{Error: err}
}

func (m *MockLLM) Complete(ctx context.Context, messages []Message, params Params) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{
		Messages: append([]Message(nil), messages...),
		Params:   params,
	})

	if len(m.Errors) > 0 {
		err := m.Errors[0]
		m.Errors = m.Errors[1:]
		if err != nil {
			return "", err
		}
	}
	if m.Error != nil {
		return "", m.Error
	}

	if len(m.Responses) > 0 {
		resp := m.Responses[0]
		m.Responses = m.Responses[1:]
		return resp, nil
	}
	return m.Response, nil
}

// CallCount returns how many times Complete was invoked.
func (m *MockLLM) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// LastCall returns the most recent request, or false when there was none.
func (m *MockLLM) LastCall() (MockCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return MockCall{}, false
	}
	return m.Calls[len(m.Calls)-1], true
}
