package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/unclepete-20/chatbot-test/config"
	"github.com/unclepete-20/chatbot-test/domain"
)

type anthropicRequest struct {
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	System      []struct {
		Text string `json:"text"`
	} `json:"system"`
	Messages []struct {
		Role string `json:"role"`
	} `json:"messages"`
}

func TestAnthropicCompleter_OverHTTP(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-haiku-latest",
			"content":[{"type":"text","text":"Va en el "},{"type":"text","text":"verde."}],
			"stop_reason":"end_turn","usage":{"input_tokens":10,"output_tokens":4}}`))
	}))
	defer srv.Close()

	c := NewAnthropic(config.LLMConfig{APIKey: "key", BaseURL: srv.URL, Model: "claude-3-5-haiku-latest"})
	out, err := c.Complete(context.Background(), domain.CompletionRequest{Messages: history, Profile: domain.TurnProfile})
	require.NoError(t, err)
	require.Equal(t, domain.ChatMessage{Role: domain.AssistantRole, Content: "Va en el verde."}, out)

	require.Equal(t, "claude-3-5-haiku-latest", got.Model)
	require.Equal(t, 200, got.MaxTokens)
	require.InDelta(t, 0.7, got.Temperature, 1e-9)
	require.Len(t, got.System, 1)
	require.Equal(t, "rules", got.System[0].Text)
	require.Len(t, got.Messages, 3)
	require.Equal(t, "assistant", got.Messages[1].Role)
}

func TestAnthropicCompleter_NoRetryOnServerError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"overloaded"}}`))
	}))
	defer srv.Close()

	c := NewAnthropic(config.LLMConfig{APIKey: "key", BaseURL: srv.URL, Model: "claude-3-5-haiku-latest"})
	_, err := c.Complete(context.Background(), domain.CompletionRequest{Messages: history, Profile: domain.TurnProfile})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}
