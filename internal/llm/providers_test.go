package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func serve(t *testing.T, status int, body any, seen *map[string]any) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			raw, _ := io.ReadAll(r.Body)
			json.Unmarshal(raw, seen)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func anthropicAt(t *testing.T, url string) *AnthropicProvider {
	t.Helper()
	p, err := NewAnthropicProvider(KeyModel{APIKey: "test-key", Model: "claude-haiku", BaseURL: url}, option.WithMaxRetries(0))
	require.NoError(t, err)
	return p
}

func TestAnthropicProvider_Generate(t *testing.T) {
	var seen map[string]any
	url := serve(t, http.StatusOK, map[string]any{
		"id":   "msg_test",
		"type": "message",
		"role": "assistant",
		"content": []map[string]any{
			{"type": "text", "text": `{"message":"Fractions are tricky. Try one slice at a time!"}`},
		},
		"model":       "claude-haiku-4-5-20251001",
		"stop_reason": "end_turn",
		"usage":       map[string]any{"input_tokens": 50, "output_tokens": 12},
	}, &seen)

	p := anthropicAt(t, url)
	assert.Equal(t, "claude-haiku-4-5-20251001", p.ModelID())

	resp, err := p.Generate(context.Background(), Request{
		System: "You cheer on kids.", Prompt: "Pizza Party", Schema: messageSchema(), MaxTokens: 128,
	})
	require.NoError(t, err)
	assert.Equal(t, 50, resp.Usage.InputTokens)
	assert.Equal(t, 12, resp.Usage.OutputTokens)
	assert.Equal(t, "end", resp.StopReason)
	assert.Contains(t, string(resp.Content), "one slice")
	assert.Equal(t, "claude-haiku-4-5-20251001", seen["model"])
}

func TestAnthropicProvider_InvalidContent(t *testing.T) {
	url := serve(t, http.StatusOK, map[string]any{
		"id": "msg", "type": "message", "role": "assistant",
		"content":     []map[string]any{{"type": "text", "text": `{"msg":"wrong key"}`}},
		"model":       "claude-haiku-4-5-20251001",
		"stop_reason": "end_turn",
		"usage":       map[string]any{"input_tokens": 1, "output_tokens": 1},
	}, nil)

	_, err := anthropicAt(t, url).Generate(context.Background(), Request{Prompt: "x", Schema: messageSchema(), MaxTokens: 16})
	var inv *ErrInvalidResponse
	assert.ErrorAs(t, err, &inv)
}

func TestAnthropicProvider_ErrorMapping(t *testing.T) {
	tests := []struct {
		status    int
		rateLimit bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, false},
	}
	for _, tt := range tests {
		url := serve(t, tt.status, map[string]any{
			"type":  "error",
			"error": map[string]any{"type": "api_error", "message": "nope"},
		}, nil)
		_, err := anthropicAt(t, url).Generate(context.Background(), Request{Prompt: "x", MaxTokens: 16})
		var rl *ErrRateLimit
		var un *ErrUnavailable
		assert.Equal(t, tt.rateLimit, errors.As(err, &rl), "status %d: %v", tt.status, err)
		assert.Equal(t, !tt.rateLimit, errors.As(err, &un), "status %d: %v", tt.status, err)
	}
}

func TestOpenAIProvider_Generate(t *testing.T) {
	var seen map[string]any
	url := serve(t, http.StatusOK, map[string]any{
		"id": "chatcmpl-test", "object": "chat.completion", "created": 1, "model": "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": `{"message":"Nearly there!"}`},
			"finish_reason": "length",
		}},
		"usage": map[string]any{"prompt_tokens": 40, "completion_tokens": 25, "total_tokens": 65},
	}, &seen)

	p, err := NewOpenAIProvider(KeyModel{APIKey: "k", Model: "gpt-4o-mini", BaseURL: url + "/v1"})
	require.NoError(t, err)
	resp, err := p.Generate(context.Background(), Request{System: "sys", Prompt: "go", Schema: messageSchema(), MaxTokens: 64})
	require.NoError(t, err)
	assert.Equal(t, 65, resp.Usage.Total())
	assert.Equal(t, "max_tokens", resp.StopReason)

	msgs, ok := seen["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 2)
	format, ok := seen["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_schema", format["type"])
}

func TestOpenAIProvider_NoChoices(t *testing.T) {
	url := serve(t, http.StatusOK, map[string]any{"id": "x", "model": "gpt-4o-mini", "choices": []any{}}, nil)
	p, err := NewOpenAIProvider(KeyModel{APIKey: "k", BaseURL: url + "/v1"})
	require.NoError(t, err)
	_, err = p.Generate(context.Background(), Request{Prompt: "go"})
	var inv *ErrInvalidResponse
	assert.ErrorAs(t, err, &inv)
}

func TestOpenAIProvider_RateLimit(t *testing.T) {
	url := serve(t, http.StatusTooManyRequests, map[string]any{
		"error": map[string]any{"message": "slow down", "type": "rate_limit"},
	}, nil)
	p, err := NewOpenAIProvider(KeyModel{APIKey: "k", BaseURL: url + "/v1"})
	require.NoError(t, err)
	_, err = p.Generate(context.Background(), Request{Prompt: "go"})
	var rl *ErrRateLimit
	assert.ErrorAs(t, err, &rl)
}

func TestNewOpenRouterProvider(t *testing.T) {
	p, err := NewOpenRouterProvider(KeyModel{APIKey: "sk-or", Model: "anthropic/claude-3-haiku"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic/claude-3-haiku", p.ModelID())

	_, err = NewOpenRouterProvider(KeyModel{Model: "x"})
	assert.Error(t, err)
}

func TestModelMapping(t *testing.T) {
	tests := []struct {
		in     string
		models map[string]string
		want   string
	}{
		{"claude-haiku", anthropicModels, "claude-haiku-4-5-20251001"},
		{"gpt-4o-mini", openaiModels, "gpt-4o-mini"},
		{"gemini-flash", geminiModels, "gemini-2.0-flash"},
		{"gemini-2.5-flash", geminiModels, "gemini-2.5-flash"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, resolveModel(tt.in, tt.models))
	}
}

func TestGeminiSchema(t *testing.T) {
	s := geminiSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{"type": "string", "description": "one sentence"},
			"tone":    map[string]any{"type": "string", "enum": []any{"warm", "playful"}},
			"tips":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"odd":     map[string]any{"type": "date"},
		},
		"required": []string{"message"},
	})
	assert.Equal(t, genai.TypeObject, s.Type)
	require.Len(t, s.Properties, 4)
	assert.Equal(t, "one sentence", s.Properties["message"].Description)
	assert.Equal(t, []string{"warm", "playful"}, s.Properties["tone"].Enum)
	assert.Equal(t, genai.TypeArray, s.Properties["tips"].Type)
	assert.Equal(t, genai.TypeString, s.Properties["tips"].Items.Type)
	assert.Equal(t, genai.TypeString, s.Properties["odd"].Type)
	assert.Equal(t, []string{"message"}, s.Required)
}

func TestGeminiProvider_RequiresKey(t *testing.T) {
	_, err := NewGeminiProvider(context.Background(), KeyModel{})
	assert.Error(t, err)
}
