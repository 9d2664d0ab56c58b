package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"site-assistant-go/internal/config"
)

func TestCreateMessage_SendsAnthropicRequest(t *testing.T) {
	var seen map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&seen))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","content":[{"type":"text","text":"hi"}]}`))
	}))
	defer srv.Close()

	client := NewClient(config.LLMConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL + "/",
		Model:   "claude-test",
	})

	body, err := client.CreateMessage(context.Background(), MessageRequest{
		System:   "be helpful",
		Messages: []Message{{Role: "user", Content: json.RawMessage(`"hello"`)}},
		Extra: map[string]json.RawMessage{
			"temperature": json.RawMessage(`0.2`),
			"max_tokens":  json.RawMessage(`256`),
		},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"msg_1","content":[{"type":"text","text":"hi"}]}`, string(body))

	assert.Equal(t, "claude-test", seen["model"])
	assert.Equal(t, float64(256), seen["max_tokens"], "caller supplied max_tokens wins")
	assert.Equal(t, 0.2, seen["temperature"])
	assert.Equal(t, "be helpful", seen["system"])
	messages := seen["messages"].([]any)
	require.Len(t, messages, 1)
	assert.Equal(t, map[string]any{"role": "user", "content": "hello"}, messages[0])
}

func TestCreateMessage_DefaultsMaxTokens(t *testing.T) {
	var seen map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&seen))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient(config.LLMConfig{BaseURL: srv.URL, Model: "m"})
	_, err := client.CreateMessage(context.Background(), MessageRequest{})
	require.NoError(t, err)
	assert.Equal(t, float64(defaultMaxTokens), seen["max_tokens"])
	assert.Equal(t, "m", seen["model"])
}

func TestCreateMessage_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error"}}`))
	}))
	defer srv.Close()

	client := NewClient(config.LLMConfig{BaseURL: srv.URL})
	_, err := client.CreateMessage(context.Background(), MessageRequest{})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "authentication_error")
}

func TestCreateMessage_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	client := NewClient(config.LLMConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := client.CreateMessage(context.Background(), MessageRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to call messages api")
}
