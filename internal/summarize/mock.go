package summarize

import (
	"context"
	"fmt"
	"sync"
)

// MockClient is a deterministic in-memory Client for tests and dry runs.
type MockClient struct {
	mu           sync.Mutex
	response     string
	err          error
	inputTokens  int
	outputTokens int
	calls        int
}

// NewMockClient creates a mock client returning a fixed plausible summary.
func NewMockClient() *MockClient {
	return &MockClient{
		response:     "The company expanded its risk disclosures around supply chain concentration and added a new segment reporting definition covering services revenue.",
		inputTokens:  1200,
		outputTokens: 150,
	}
}

// SetResponse overrides the canned completion text.
func (m *MockClient) SetResponse(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = text
}

// SetUsage overrides the canned token usage.
func (m *MockClient) SetUsage(input, output int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputTokens = input
	m.outputTokens = output
}

// SetError makes every completion fail with err.
func (m *MockClient) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many completions were requested.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Complete returns the canned completion.
func (m *MockClient) Complete(ctx context.Context, prompt string) (Completion, error) {
	if err := ctx.Err(); err != nil {
		return Completion{}, fmt.Errorf("mock client: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if m.err != nil {
		return Completion{}, m.err
	}
	return Completion{
		Text:         m.response,
		InputTokens:  m.inputTokens,
		OutputTokens: m.outputTokens,
	}, nil
}
