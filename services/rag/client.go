// Package rag contains the answer/search provider clients consumed by the
// realtime session engine and the batch processor. A provider is selected
// once at startup by name; the rest of the system only sees the Client
// interface.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// QueryResult is the normalized result shape shared by every provider.
type QueryResult struct {
	Content  string           `json:"content"`
	Metadata map[string]any   `json:"metadata,omitempty"`
	Sources  []map[string]any `json:"sources,omitempty"`
	Usage    map[string]any   `json:"usage,omitempty"`
}

// Client defines the standard interface for any answer/search backend.
//
// Query answers a question with retrieval-augmented generation, Search runs
// a plain web/document search. Backends that only support one capability
// satisfy the other by delegation. Both calls must honor ctx cancellation.
type Client interface {
	Query(ctx context.Context, text, user, conversationID string) (*QueryResult, error)
	Search(ctx context.Context, query string) (*QueryResult, error)
	HealthCheck(ctx context.Context) bool
}

// NewClient builds the provider named by the RAG_PROVIDER environment
// variable. Unset selects the mock provider so the service stays usable
// without upstream credentials; unknown names are rejected.
func NewClient() (Client, error) {
	provider := os.Getenv("RAG_PROVIDER")

	switch provider {
	case "dify":
		slog.Info("Using Dify RAG backend")
		return NewDifyClient()
	case "serper":
		slog.Info("Using Serper search backend")
		return NewSerperClient()
	case "openai":
		slog.Info("Using OpenAI RAG backend")
		return NewOpenAIRAGClient()
	case "custom":
		slog.Info("Using custom HTTP RAG backend")
		return NewCustomClient()
	case "", "mock":
		slog.Warn("RAG_PROVIDER not set or mock, using the mock provider")
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unknown RAG provider: %q", provider)
	}
}

// probeHealth is the default health check for providers without a
// dedicated health endpoint: issue one tiny request and report whether it
// succeeded. Mirrors how the upstream services themselves are probed.
func probeHealth(ctx context.Context, c Client) bool {
	_, err := c.Query(ctx, "test", "health-check", "")
	return err == nil
}
