package rag

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIRAGClient answers questions with a plain chat completion. It has no
// retrieval of its own; it exists so deployments without a RAG platform can
// still serve answers.
type OpenAIRAGClient struct {
	client *openai.Client
	model  string
}

func NewOpenAIRAGClient() (*OpenAIRAGClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	model := os.Getenv("OPENAI_MODEL")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	if model == "" {
		model = "gpt-4o-mini"
		slog.Warn("OPENAI_MODEL not set, defaulting to gpt-4o-mini")
	}
	slog.Info("Initializing OpenAI RAG client", "model", model)
	return &OpenAIRAGClient{
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

// Query implements the Client interface.
func (o *OpenAIRAGClient) Query(ctx context.Context, text, user, conversationID string) (*QueryResult, error) {
	slog.Debug("Querying via OpenAI", "model", o.model)

	systemPrompt := os.Getenv("OPENAI_SYSTEM_PROMPT")
	if systemPrompt == "" {
		systemPrompt = "You are a helpful assistant answering questions from a live meeting transcript."
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		User: user,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("OpenAI returned no choices")
	}

	return &QueryResult{
		Content: resp.Choices[0].Message.Content,
		Metadata: map[string]any{
			"provider": "openai",
			"model":    resp.Model,
		},
		Usage: map[string]any{
			"prompt_tokens":     resp.Usage.PromptTokens,
			"completion_tokens": resp.Usage.CompletionTokens,
			"total_tokens":      resp.Usage.TotalTokens,
		},
	}, nil
}

// Search delegates to Query.
func (o *OpenAIRAGClient) Search(ctx context.Context, query string) (*QueryResult, error) {
	return o.Query(ctx, query, "search-user", "")
}

// HealthCheck probes the completion endpoint with a minimal query.
func (o *OpenAIRAGClient) HealthCheck(ctx context.Context) bool {
	return probeHealth(ctx, o)
}

var _ Client = (*OpenAIRAGClient)(nil)
