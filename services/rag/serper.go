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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var serperTracer = otel.Tracer("aleutian.voice.rag.serper")

const defaultSerperURL = "https://google.serper.dev/search"

// SerperClient runs web searches against the Serper API and assembles a
// readable answer from the structured result.
type SerperClient struct {
	httpClient *http.Client
	searchURL  string
	apiKey     string
	numResults int
}

type serperSearchRequest struct {
	Query string `json:"q"`
	Num   int    `json:"num"`
}

type serperSearchResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		Link    string `json:"link"`
	} `json:"organic"`
	KnowledgeGraph *struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"knowledgeGraph"`
	AnswerBox *struct {
		Answer  string `json:"answer"`
		Snippet string `json:"snippet"`
	} `json:"answerBox"`
}

func NewSerperClient() (*SerperClient, error) {
	apiKey := os.Getenv("SERPER_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("SERPER_API_KEY environment variable not set")
	}
	slog.Info("Initializing Serper client")
	return &SerperClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		searchURL:  defaultSerperURL,
		apiKey:     apiKey,
		numResults: 10,
	}, nil
}

// Search implements the Client interface.
func (s *SerperClient) Search(ctx context.Context, query string) (*QueryResult, error) {
	ctx, span := serperTracer.Start(ctx, "SerperClient.Search")
	defer span.End()
	span.SetAttributes(attribute.Int("rag.query_chars", len(query)))

	reqBody, err := json.Marshal(serperSearchRequest{Query: query, Num: s.numResults})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to marshal request to Serper: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.searchURL, bytes.NewBuffer(reqBody))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to create request to Serper: %w", err)
	}
	req.Header.Set("X-API-KEY", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("Serper API call failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to read response body from Serper: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		detail := string(respBody)
		if len(detail) > 200 {
			detail = detail[:200]
		}
		slog.Error("Serper returned an error", "status_code", resp.StatusCode, "response", detail)
		return nil, fmt.Errorf("Serper failed with status %d: %s", resp.StatusCode, detail)
	}

	var searchResp serperSearchResponse
	if err := json.Unmarshal(respBody, &searchResp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to parse Serper response: %w", err)
	}

	return s.assembleResult(searchResp), nil
}

// assembleResult builds the answer text from answer box, knowledge graph
// and the top organic results, in that display order.
func (s *SerperClient) assembleResult(resp serperSearchResponse) *QueryResult {
	var parts []string

	if resp.KnowledgeGraph != nil && resp.KnowledgeGraph.Title != "" && resp.KnowledgeGraph.Description != "" {
		parts = append(parts, fmt.Sprintf("**%s**\n%s", resp.KnowledgeGraph.Title, resp.KnowledgeGraph.Description))
	}

	if len(resp.Organic) > 0 {
		parts = append(parts, "\n**相关搜索结果:**")
		for i, item := range resp.Organic {
			if i >= 5 {
				break
			}
			if item.Title == "" || item.Snippet == "" {
				continue
			}
			parts = append(parts, fmt.Sprintf("%d. **%s**\n   %s\n   %s", i+1, item.Title, item.Snippet, item.Link))
		}
	}

	if resp.AnswerBox != nil {
		if resp.AnswerBox.Answer != "" {
			parts = append([]string{fmt.Sprintf("**答案:** %s", resp.AnswerBox.Answer)}, parts...)
		} else if resp.AnswerBox.Snippet != "" {
			parts = append([]string{fmt.Sprintf("**信息:** %s", resp.AnswerBox.Snippet)}, parts...)
		}
	}

	content := "未找到相关信息。"
	if len(parts) > 0 {
		content = strings.Join(parts, "\n\n")
	}

	sources := make([]map[string]any, 0, len(resp.Organic))
	for _, item := range resp.Organic {
		sources = append(sources, map[string]any{
			"title":   item.Title,
			"url":     item.Link,
			"snippet": item.Snippet,
		})
	}

	return &QueryResult{
		Content: content,
		Metadata: map[string]any{
			"search_results_count": len(resp.Organic),
			"has_knowledge_graph":  resp.KnowledgeGraph != nil,
			"has_answer_box":       resp.AnswerBox != nil,
		},
		Sources: sources,
	}
}

// Query delegates to Search; a search backend answers questions with its
// assembled result text.
func (s *SerperClient) Query(ctx context.Context, text, user, conversationID string) (*QueryResult, error) {
	return s.Search(ctx, text)
}

// HealthCheck probes with a single-result search.
func (s *SerperClient) HealthCheck(ctx context.Context) bool {
	probe := &SerperClient{
		httpClient: s.httpClient,
		searchURL:  s.searchURL,
		apiKey:     s.apiKey,
		numResults: 1,
	}
	_, err := probe.Search(ctx, "test")
	return err == nil
}

var _ Client = (*SerperClient)(nil)
