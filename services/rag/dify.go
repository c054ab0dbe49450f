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
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var difyTracer = otel.Tracer("aleutian.voice.rag.dify")

// DifyClient talks to a Dify chat application in blocking response mode.
type DifyClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

type difyChatRequest struct {
	Query          string         `json:"query"`
	User           string         `json:"user"`
	ResponseMode   string         `json:"response_mode"`
	Inputs         map[string]any `json:"inputs"`
	ConversationID string         `json:"conversation_id,omitempty"`
}

type difyChatResponse struct {
	Event    string         `json:"event"`
	Answer   string         `json:"answer"`
	Metadata map[string]any `json:"metadata"`
}

func NewDifyClient() (*DifyClient, error) {
	apiKey := os.Getenv("DIFY_API_KEY")
	baseURL := os.Getenv("DIFY_BASE_URL")
	if apiKey == "" {
		return nil, fmt.Errorf("DIFY_API_KEY environment variable not set")
	}
	if baseURL == "" {
		baseURL = "https://api.dify.ai/v1"
		slog.Warn("DIFY_BASE_URL not set, defaulting to the public API", "base_url", baseURL)
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	timeout := 60 * time.Second
	if raw := os.Getenv("DIFY_TIMEOUT_SECONDS"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			timeout = time.Duration(secs) * time.Second
		} else {
			slog.Warn("DIFY_TIMEOUT_SECONDS is invalid, keeping default", "value", raw)
		}
	}

	slog.Info("Initializing Dify client", "base_url", baseURL, "timeout", timeout.String())
	return &DifyClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}, nil
}

// Query implements the Client interface.
func (d *DifyClient) Query(ctx context.Context, text, user, conversationID string) (*QueryResult, error) {
	ctx, span := difyTracer.Start(ctx, "DifyClient.Query")
	defer span.End()
	span.SetAttributes(attribute.Int("rag.query_chars", len(text)))

	payload := difyChatRequest{
		Query:          text,
		User:           user,
		ResponseMode:   "blocking",
		Inputs:         map[string]any{},
		ConversationID: conversationID,
	}
	reqBody, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to marshal request to Dify: %w", err)
	}

	// Use NewRequestWithContext so instant_query/stop cancellation propagates
	req, err := http.NewRequestWithContext(ctx, "POST", d.baseURL+"/chat-messages", bytes.NewBuffer(reqBody))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to create request to Dify: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+d.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("Dify API call failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to read response body from Dify: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		detail := string(respBody)
		if len(detail) > 200 {
			detail = detail[:200]
		}
		slog.Error("Dify returned an error", "status_code", resp.StatusCode, "response", detail)
		return nil, fmt.Errorf("Dify failed with status %d: %s", resp.StatusCode, detail)
	}

	var difyResp difyChatResponse
	if err := json.Unmarshal(respBody, &difyResp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to parse Dify response: %w", err)
	}

	if difyResp.Event != "message" {
		return &QueryResult{
			Content:  fmt.Sprintf("Dify returned an unexpected event type: %s", difyResp.Event),
			Metadata: map[string]any{"event": difyResp.Event},
		}, nil
	}

	content := difyResp.Answer
	if content == "" {
		content = "未获取到回答。"
	}
	var usage map[string]any
	if u, ok := difyResp.Metadata["usage"].(map[string]any); ok {
		usage = u
	}
	return &QueryResult{
		Content:  content,
		Metadata: difyResp.Metadata,
		Usage:    usage,
	}, nil
}

// Search delegates to Query; Dify applications answer searches the same
// way they answer questions.
func (d *DifyClient) Search(ctx context.Context, query string) (*QueryResult, error) {
	return d.Query(ctx, query, "search-user", "")
}

// HealthCheck probes the chat endpoint with a minimal query.
func (d *DifyClient) HealthCheck(ctx context.Context) bool {
	return probeHealth(ctx, d)
}

var _ Client = (*DifyClient)(nil)
