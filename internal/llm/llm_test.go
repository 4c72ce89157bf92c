package llm

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/skilltune/internal/store"
)

func messageSchema() *Schema {
	return &Schema{
		Name: "test-message",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"message": map[string]any{"type": "string", "minLength": 1},
				"tone":    map[string]any{"type": "string", "enum": []any{"warm", "playful"}},
			},
			"required":             []any{"message"},
			"additionalProperties": false,
		},
	}
}

func retryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: 5 * time.Millisecond, Multiplier: 2}
}

func TestValidateResponse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		ok   bool
	}{
		{"valid", `{"message":"Nice try!","tone":"warm"}`, true},
		{"optional omitted", `{"message":"Nice try!"}`, true},
		{"missing required", `{"tone":"warm"}`, false},
		{"empty message", `{"message":""}`, false},
		{"bad enum", `{"message":"x","tone":"grumpy"}`, false},
		{"extra field", `{"message":"x","score":1}`, false},
		{"not json", `Nice try!`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateResponse(messageSchema(), json.RawMessage(tt.raw))
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var inv *ErrInvalidResponse
			require.ErrorAs(t, err, &inv)
			assert.Equal(t, tt.raw, string(inv.Content))
		})
	}
	assert.NoError(t, validateResponse(nil, json.RawMessage(`anything`)))
}

func TestMockProvider(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Content: json.RawMessage(`{"message":"one"}`), Usage: Usage{InputTokens: 10, OutputTokens: 5}},
		MockResponse{Err: &ErrRateLimit{}},
	)
	resp, err := mock.Generate(context.Background(), Request{System: "sys", Prompt: "hi", Schema: messageSchema()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"one"}`, string(resp.Content))
	assert.Equal(t, 15, resp.Usage.Total())
	assert.Equal(t, "end", resp.StopReason)

	_, err = mock.Generate(context.Background(), Request{})
	var rl *ErrRateLimit
	assert.ErrorAs(t, err, &rl)

	_, err = mock.Generate(context.Background(), Request{})
	var un *ErrUnavailable
	assert.ErrorAs(t, err, &un)

	calls := mock.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "sys", calls[0].System)
	assert.Equal(t, "mock", mock.ModelID())
}

func TestPurpose(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "unknown", PurposeFrom(ctx))
	assert.Equal(t, "encouragement", PurposeFrom(WithPurpose(ctx, "encouragement")))
}

func TestRetry(t *testing.T) {
	t.Run("transient then success", func(t *testing.T) {
		mock := NewMockProvider(
			MockResponse{Err: &ErrUnavailable{Err: errors.New("down")}},
			MockResponse{Content: json.RawMessage(`{"message":"ok"}`)},
		)
		resp, err := WithRetry(mock, retryConfig()).Generate(context.Background(), Request{})
		require.NoError(t, err)
		assert.JSONEq(t, `{"message":"ok"}`, string(resp.Content))
		assert.Len(t, mock.Calls(), 2)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		mock := NewMockProvider()
		_, err := WithRetry(mock, retryConfig()).Generate(context.Background(), Request{})
		assert.Error(t, err)
		assert.Len(t, mock.Calls(), 3)
	})

	t.Run("invalid response retried once", func(t *testing.T) {
		mock := NewMockProvider(
			MockResponse{Content: json.RawMessage(`{}`)},
			MockResponse{Content: json.RawMessage(`{}`)},
			MockResponse{Content: json.RawMessage(`{"message":"late"}`)},
		)
		_, err := WithRetry(mock, retryConfig()).Generate(context.Background(), Request{Schema: messageSchema()})
		var inv *ErrInvalidResponse
		assert.ErrorAs(t, err, &inv)
		assert.Len(t, mock.Calls(), 2)
	})

	t.Run("cancelled context not retried", func(t *testing.T) {
		mock := NewMockProvider(MockResponse{Err: context.Canceled})
		_, err := WithRetry(mock, retryConfig()).Generate(context.Background(), Request{})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Len(t, mock.Calls(), 1)
	})

	t.Run("rate limit honors retry after", func(t *testing.T) {
		r := &RetryProvider{config: retryConfig()}
		assert.Equal(t, 3*time.Second, r.backoff(0, &ErrRateLimit{RetryAfter: 3 * time.Second}))
		assert.LessOrEqual(t, r.backoff(10, errors.New("x")), 6*time.Millisecond)
	})
}

func TestLogging_RecordsRequests(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "llm.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	logger, hook := test.NewNullLogger()

	mock := NewMockProvider(
		MockResponse{Content: json.RawMessage(`{"message":"You got this"}`), Usage: Usage{InputTokens: 12, OutputTokens: 4}},
		MockResponse{Err: &ErrUnavailable{Err: errors.New("down")}},
	)
	p := WithLogging(mock, ProviderAnthropic, st.EventRepo(), logger)
	ctx := WithPurpose(context.Background(), "encouragement")

	_, err = p.Generate(ctx, Request{System: "Be kind.", Prompt: "Student missed two", Schema: messageSchema()})
	require.NoError(t, err)
	_, err = p.Generate(ctx, Request{Prompt: "again"})
	require.Error(t, err)

	events, err := st.EventRepo().RecentLLMRequests(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	failed, succeeded := events[0], events[1]
	assert.False(t, failed.Success)
	assert.Contains(t, failed.ErrorMessage, "down")

	assert.True(t, succeeded.Success)
	assert.Equal(t, ProviderAnthropic, succeeded.Provider)
	assert.Equal(t, ProviderAnthropic, failed.Provider)
	assert.Equal(t, "encouragement", succeeded.Purpose)
	assert.Equal(t, 12, succeeded.InputTokens)
	assert.Equal(t, 4, succeeded.OutputTokens)
	assert.Contains(t, succeeded.RequestBody, "[system]\nBe kind.")
	assert.Contains(t, succeeded.RequestBody, "[schema: test-message]")
	assert.JSONEq(t, `{"message":"You got this"}`, succeeded.ResponseBody)

	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, "llm request failed", hook.LastEntry().Message)
}

func TestConfig(t *testing.T) {
	t.Setenv("SKILLTUNE_LLM_PROVIDER", "openai")
	t.Setenv("SKILLTUNE_LLM_OPENAI_MODEL", "gpt-4o")
	t.Setenv("SKILLTUNE_LLM_OPENAI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-vendor")
	t.Setenv("SKILLTUNE_LLM_RETRY_MAX_ATTEMPTS", "4")

	cfg, err := ConfigFromEnv("")
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "gpt-4o", cfg.Selected().Model)
	assert.Equal(t, "sk-vendor", cfg.Selected().APIKey)
	assert.Equal(t, 4, cfg.Retry.MaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.NoError(t, cfg.Validate())

	cfg, err = ConfigFromEnv(ProviderGemini)
	require.NoError(t, err)
	assert.Equal(t, "gemini-flash", cfg.Selected().Model)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"anthropic without key", Config{Provider: ProviderAnthropic}, true},
		{"anthropic with key", Config{Provider: ProviderAnthropic, Anthropic: KeyModel{APIKey: "k"}}, false},
		{"openrouter with key", Config{Provider: ProviderOpenRouter, OpenRouter: KeyModel{APIKey: "k"}}, false},
		{"gemini key on wrong provider", Config{Provider: ProviderGemini, OpenAI: KeyModel{APIKey: "k"}}, true},
		{"mock needs no key", Config{Provider: ProviderMock}, false},
		{"unknown", Config{Provider: "static"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			assert.Equal(t, tt.wantErr, err != nil, "err = %v", err)
		})
	}
}

func TestNewProvider(t *testing.T) {
	logger, _ := test.NewNullLogger()
	p, err := NewProvider(context.Background(), Config{Provider: ProviderMock}, nil, logger)
	require.NoError(t, err)
	assert.Equal(t, "mock", p.ModelID())

	_, err = NewProvider(context.Background(), Config{Provider: ProviderAnthropic}, nil, logger)
	assert.Error(t, err)
}

func TestCost(t *testing.T) {
	c, ok := LookupCost("gpt-4o-mini")
	require.True(t, ok)
	assert.InDelta(t, 0.00075, c.Cost(1000, 1000), 1e-12)

	_, ok = LookupCost("unknown-model")
	assert.False(t, ok)
}
