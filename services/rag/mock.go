package rag

import (
	"context"
	"fmt"
	"time"
)

// MockClient returns a canned answer after a short delay. It keeps the
// service usable without upstream credentials and doubles as the provider
// test double for the session and batch packages.
type MockClient struct {
	// Delay before answering; simulates upstream latency and gives
	// cancellation tests a window to interrupt.
	Delay time.Duration

	// Err, when set, is returned from every call.
	Err error

	// Answer overrides the canned response text when non-empty.
	Answer string
}

func NewMockClient() *MockClient {
	return &MockClient{Delay: 100 * time.Millisecond}
}

// Query implements the Client interface.
func (m *MockClient) Query(ctx context.Context, text, user, conversationID string) (*QueryResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(m.Delay):
	}
	if m.Err != nil {
		return nil, m.Err
	}

	content := m.Answer
	if content == "" {
		content = fmt.Sprintf("这是一个模拟回答，用于展示系统流程。根据你的问题“%s”，建议稍后接入真正的 RAG 服务。", text)
	}
	return &QueryResult{
		Content:  content,
		Metadata: map[string]any{"provider": "mock"},
	}, nil
}

// Search delegates to Query.
func (m *MockClient) Search(ctx context.Context, query string) (*QueryResult, error) {
	return m.Query(ctx, query, "search-user", "")
}

// HealthCheck always succeeds unless a failure is injected.
func (m *MockClient) HealthCheck(ctx context.Context) bool {
	return m.Err == nil
}

var _ Client = (*MockClient)(nil)
