package llm

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// ErrMockExhausted is returned when a MockProvider has no scripted reply left.
var ErrMockExhausted = errors.New("mock provider has no queued replies")

// MockCall records one request made to a MockProvider.
type MockCall struct {
	Messages []Message
	Options  Options
}

type mockReply struct {
	completion *Completion
	err        error
}

// MockProvider is a test double for Provider that replays queued replies in order.
type MockProvider struct {
	mu sync.Mutex

	queue []mockReply
	calls []MockCall

	// OnComplete, if set, is called with each request before the reply is returned.
	OnComplete func(messages []Message, opts Options)
}

// NewMockProvider creates a mock that will answer with contents, in order.
func NewMockProvider(contents ...string) *MockProvider {
	m := &MockProvider{}
	m.QueueContent(contents...)
	return m
}

// QueueContent queues plain-text replies with unit token accounting.
func (m *MockProvider) QueueContent(contents ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range contents {
		m.queue = append(m.queue, mockReply{completion: &Completion{
			Content:      c,
			InputTokens:  10,
			OutputTokens: 5,
			TimeUsed:     0.5,
		}})
	}
}

// QueueCompletion queues a fully specified reply.
func (m *MockProvider) QueueCompletion(c Completion) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, mockReply{completion: &c})
}

// QueueError queues a provider failure.
func (m *MockProvider) QueueError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, mockReply{err: err})
}

// Pending returns how many queued replies have not been consumed.
func (m *MockProvider) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Calls returns a copy of every recorded request.
func (m *MockProvider) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// Complete implements Provider.
func (m *MockProvider) Complete(ctx context.Context, messages []Message, opts Options) (*Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Messages: slices.Clone(messages), Options: opts})
	cb := m.OnComplete
	if len(m.queue) == 0 {
		m.mu.Unlock()
		return nil, ErrMockExhausted
	}
	next := m.queue[0]
	m.queue = m.queue[1:]
	m.mu.Unlock()

	if cb != nil {
		cb(messages, opts)
	}
	if next.err != nil {
		return nil, next.err
	}
	c := *next.completion
	return &c, nil
}
