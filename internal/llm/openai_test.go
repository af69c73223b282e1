package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assistant/internal/apperr"
)

func chatServer(t *testing.T, content string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req["model"])

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"upstream down","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestOpenAI(url string) *OpenAI {
	return NewOpenAI(OpenAIConfig{APIKey: "test-key", BaseURL: url, Model: "test-model"})
}

func TestInterpretPlainJSON(t *testing.T) {
	srv := chatServer(t, `{"intent":"schedule","details":{"person":"John","date":"next Tuesday","time":"10 AM"}}`, http.StatusOK)

	res, err := newTestOpenAI(srv.URL).Interpret(context.Background(), "set up time with john next tuesday 10am")
	require.NoError(t, err)
	assert.Equal(t, "schedule", res.Intent)
	assert.Equal(t, "John", res.Details["person"])
	assert.Equal(t, "10 AM", res.Details["time"])
}

func TestInterpretFencedJSON(t *testing.T) {
	srv := chatServer(t, "```json\n{\"intent\":\"remind\",\"details\":{\"content\":\"call mom\"}}\n```", http.StatusOK)

	res, err := newTestOpenAI(srv.URL).Interpret(context.Background(), "remind me to call mom")
	require.NoError(t, err)
	assert.Equal(t, "remind", res.Intent)
}

func TestInterpretNotJSONIsParseFailure(t *testing.T) {
	srv := chatServer(t, "Sorry, I can't help with that.", http.StatusOK)

	_, err := newTestOpenAI(srv.URL).Interpret(context.Background(), "???")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrParseFailure)
}

func TestInterpretTransportErrorIsCollaboratorFailure(t *testing.T) {
	srv := chatServer(t, "", http.StatusInternalServerError)

	_, err := newTestOpenAI(srv.URL).Interpret(context.Background(), "schedule something")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrCollaboratorFailure)
}

func TestParseResult(t *testing.T) {
	t.Run("repairs trailing comma", func(t *testing.T) {
		res, err := parseResult(`{"intent": "schedule", "details": {"person": "beza",},}`)
		require.NoError(t, err)
		assert.Equal(t, "schedule", res.Intent)
		assert.Equal(t, "beza", res.Details["person"])
	})

	t.Run("fence without language", func(t *testing.T) {
		res, err := parseResult("```\n{\"intent\":\"email\",\"details\":{}}\n```")
		require.NoError(t, err)
		assert.Equal(t, "email", res.Intent)
	})

	t.Run("object without intent", func(t *testing.T) {
		_, err := parseResult(`{"details":{}}`)
		assert.Error(t, err)
	})
}
