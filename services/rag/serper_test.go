package rag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSerperClient(serverURL string) *SerperClient {
	return &SerperClient{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		searchURL:  serverURL,
		apiKey:     "test-key",
		numResults: 10,
	}
}

func TestSerperClientSearch(t *testing.T) {
	t.Run("assembles answer box, knowledge graph and organic results", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "test-key", r.Header.Get("X-API-KEY"))
			json.NewEncoder(w).Encode(map[string]any{
				"answerBox": map[string]any{"answer": "42"},
				"knowledgeGraph": map[string]any{
					"title":       "The Answer",
					"description": "To everything.",
				},
				"organic": []map[string]any{
					{"title": "First", "snippet": "first snippet", "link": "https://a"},
					{"title": "Second", "snippet": "second snippet", "link": "https://b"},
				},
			})
		}))
		defer server.Close()

		result, err := newTestSerperClient(server.URL).Search(context.Background(), "the answer")
		require.NoError(t, err)

		assert.Contains(t, result.Content, "**答案:** 42")
		assert.Contains(t, result.Content, "The Answer")
		assert.Contains(t, result.Content, "first snippet")
		assert.Len(t, result.Sources, 2)
		assert.Equal(t, "https://a", result.Sources[0]["url"])
		assert.Equal(t, 2, result.Metadata["search_results_count"])
	})

	t.Run("empty response yields fallback content", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{})
		}))
		defer server.Close()

		result, err := newTestSerperClient(server.URL).Search(context.Background(), "nothing")
		require.NoError(t, err)
		assert.Equal(t, "未找到相关信息。", result.Content)
	})

	t.Run("query delegates to search", func(t *testing.T) {
		var gotQuery string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req serperSearchRequest
			json.NewDecoder(r.Body).Decode(&req)
			gotQuery = req.Query
			json.NewEncoder(w).Encode(map[string]any{})
		}))
		defer server.Close()

		_, err := newTestSerperClient(server.URL).Query(context.Background(), "what time is it", "u", "")
		require.NoError(t, err)
		assert.Equal(t, "what time is it", gotQuery)
	})
}

func TestNewSerperClientValidation(t *testing.T) {
	t.Setenv("SERPER_API_KEY", "")
	_, err := NewSerperClient()
	require.Error(t, err)
}
