package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	errs "github.com/usetaskchat/taskchat/internal/errors"
)

func completionBody(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message": map[string]any{
				"role":    "assistant",
				"content": content,
			},
		}},
	}
}

func newTestGateway(serverURL string) *Gateway {
	return NewGateway(&Config{
		APIKey:         "test-key",
		BaseURL:        serverURL,
		Model:          "gpt-4o-mini",
		MaxRetries:     3,
		RetryBaseDelay: time.Millisecond,
	})
}

func TestRespondRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Fail twice with a retryable status, then succeed.
		if calls.Add(1) <= 2 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": "rate limited", "type": "rate_limit_error"},
			})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completionBody("hello there"))
	}))
	defer server.Close()

	gateway := newTestGateway(server.URL)
	reply, err := gateway.Respond(context.Background(), []Message{UserMessage("hi")})
	require.NoError(t, err)
	require.Equal(t, "hello there", reply)
	require.EqualValues(t, 3, calls.Load())
}

func TestRespondExhaustedRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "boom", "type": "server_error"},
		})
	}))
	defer server.Close()

	gateway := newTestGateway(server.URL)
	_, err := gateway.Respond(context.Background(), []Message{UserMessage("hi")})
	require.True(t, errs.IsCode(err, errs.ErrCodeUpstreamUnavailable))
	require.EqualValues(t, 3, calls.Load())
}

func TestRespondNonRetryableFailsFast(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "bad key", "type": "invalid_request_error"},
		})
	}))
	defer server.Close()

	gateway := newTestGateway(server.URL)
	_, err := gateway.Respond(context.Background(), []Message{UserMessage("hi")})
	require.True(t, errs.IsCode(err, errs.ErrCodeUpstreamRejected))
	require.EqualValues(t, 1, calls.Load())
}

func TestDecideParsesToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req["tools"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": time.Now().Unix(),
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "tool_calls",
				"message": map[string]any{
					"role": "assistant",
					"tool_calls": []map[string]any{{
						"id":   "call-1",
						"type": "function",
						"function": map[string]any{
							"name":      "add_task",
							"arguments": `{"title": "buy milk"}`,
						},
					}},
				},
			}},
		})
	}))
	defer server.Close()

	gateway := newTestGateway(server.URL)
	decision, err := gateway.Decide(context.Background(), "system", nil, "add buy milk", []ToolDefinition{{
		Name:        "add_task",
		Description: "Create a task",
		Parameters:  map[string]any{"type": "object"},
	}})
	require.NoError(t, err)
	require.Len(t, decision.ToolCalls, 1)
	require.Equal(t, "call-1", decision.ToolCalls[0].ID)
	require.Equal(t, "add_task", decision.ToolCalls[0].Name)
	require.JSONEq(t, `{"title": "buy milk"}`, decision.ToolCalls[0].Arguments)
}

func TestRespondStreamAccumulates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{"Hello", " there", "!"}
		for _, chunk := range chunks {
			payload, _ := json.Marshal(map[string]any{
				"id":      "chatcmpl-test",
				"object":  "chat.completion.chunk",
				"created": time.Now().Unix(),
				"model":   "gpt-4o-mini",
				"choices": []map[string]any{{
					"index": 0,
					"delta": map[string]any{"content": chunk},
				}},
			})
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(payload)
			_, _ = w.Write([]byte("\n\n"))
		}
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer server.Close()

	gateway := newTestGateway(server.URL)
	var deltas []string
	reply, err := gateway.RespondStream(context.Background(), []Message{UserMessage("hi")}, func(delta string) error {
		deltas = append(deltas, delta)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "Hello there!", reply)
	require.Equal(t, []string{"Hello", " there", "!"}, deltas)
}
