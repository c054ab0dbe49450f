package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// CustomClient talks to a self-hosted RAG endpoint with a simple JSON
// contract: POST {base}/query with {question, user_id, session_id} and a
// response of {answer, metadata, sources}.
type CustomClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

type customQueryRequest struct {
	Question  string `json:"question"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id,omitempty"`
}

type customQueryResponse struct {
	Answer   string           `json:"answer"`
	Metadata map[string]any   `json:"metadata"`
	Sources  []map[string]any `json:"sources"`
}

func NewCustomClient() (*CustomClient, error) {
	apiKey := os.Getenv("CUSTOM_RAG_API_KEY")
	baseURL := os.Getenv("CUSTOM_RAG_BASE_URL")
	if apiKey == "" {
		return nil, fmt.Errorf("CUSTOM_RAG_API_KEY environment variable not set")
	}
	if baseURL == "" {
		return nil, fmt.Errorf("CUSTOM_RAG_BASE_URL environment variable not set")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	slog.Info("Initializing custom RAG client", "base_url", baseURL)
	return &CustomClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}, nil
}

// Query implements the Client interface.
func (c *CustomClient) Query(ctx context.Context, text, user, conversationID string) (*QueryResult, error) {
	reqBody, err := json.Marshal(customQueryRequest{
		Question:  text,
		UserID:    user,
		SessionID: conversationID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request to custom RAG: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/query", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request to custom RAG: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("custom RAG API call failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body from custom RAG: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		detail := string(respBody)
		if len(detail) > 200 {
			detail = detail[:200]
		}
		slog.Error("Custom RAG returned an error", "status_code", resp.StatusCode, "response", detail)
		return nil, fmt.Errorf("custom RAG failed with status %d: %s", resp.StatusCode, detail)
	}

	var queryResp customQueryResponse
	if err := json.Unmarshal(respBody, &queryResp); err != nil {
		return nil, fmt.Errorf("failed to parse custom RAG response: %w", err)
	}

	content := queryResp.Answer
	if content == "" {
		content = "未获取到回答。"
	}
	return &QueryResult{
		Content:  content,
		Metadata: queryResp.Metadata,
		Sources:  queryResp.Sources,
	}, nil
}

// Search delegates to Query.
func (c *CustomClient) Search(ctx context.Context, query string) (*QueryResult, error) {
	return c.Query(ctx, query, "search-user", "")
}

// HealthCheck probes the query endpoint with a minimal question.
func (c *CustomClient) HealthCheck(ctx context.Context) bool {
	return probeHealth(ctx, c)
}

var _ Client = (*CustomClient)(nil)
