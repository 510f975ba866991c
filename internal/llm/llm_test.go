package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"courtprices/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

func TestResolveProvider(t *testing.T) {
	both := Credentials{AnthropicAPIKey: "a-key", OpenAIAPIKey: "o-key", OpenAIModel: "gpt-4o"}

	testCases := []struct {
		name      string
		requested string
		creds     Credentials
		expected  ProviderConfig
		err       error
	}{
		{
			name:      "anthropic wins when both keys are set",
			requested: "",
			creds:     both,
			expected:  ProviderConfig{Provider: Anthropic, APIKey: "a-key", Model: DefaultAnthropicModel},
		},
		{
			name:      "openai is detected from its key",
			requested: "",
			creds:     Credentials{OpenAIAPIKey: "o-key"},
			expected:  ProviderConfig{Provider: OpenAI, APIKey: "o-key", Model: DefaultOpenAIModel},
		},
		{
			name:      "explicit openai overrides detection",
			requested: "OpenAI",
			creds:     both,
			expected:  ProviderConfig{Provider: OpenAI, APIKey: "o-key", Model: "gpt-4o"},
		},
		{
			name:      "no keys",
			requested: "",
			creds:     Credentials{AnthropicAPIKey: "  "},
			err:       ErrNoCredentials,
		},
		{
			name:      "explicit provider without its key",
			requested: "anthropic",
			creds:     Credentials{OpenAIAPIKey: "o-key"},
			err:       ErrNoCredentials,
		},
		{
			name:      "unknown provider",
			requested: "gemini",
			creds:     both,
			err:       ErrUnknownProvider,
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			cfg, err := ResolveProvider(test.requested, test.creds)
			if test.err != nil {
				require.True(t, errors.Is(err, test.err), "expected %v, got %v", test.err, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, test.expected, cfg)
		})
	}
}

func TestLoadCredentials(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "o-key")

	creds, err := LoadCredentials()
	require.NoError(t, err)
	require.Equal(t, "o-key", creds.OpenAIAPIKey)
	require.Equal(t, DefaultAnthropicModel, creds.AnthropicModel)
}

type capturedRequest struct {
	path    string
	headers http.Header
	body    map[string]any
}

func newServer(t *testing.T, status int, response string, captured *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			t.Error(err)
		}
		captured.path = r.URL.Path
		captured.headers = r.Header.Clone()
		err = json.Unmarshal(raw, &captured.body)
		if err != nil {
			t.Error(err)
		}

		w.Header().Set("content-type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAnthropicComplete(t *testing.T) {
	var captured capturedRequest
	srv := newServer(t, http.StatusOK, `{
		"content": [{"type": "text", "text": "  {\"season\": \"winter\"}\n"}],
		"stop_reason": "end_turn"
	}`, &captured)

	completer, err := New(
		ProviderConfig{Provider: Anthropic, APIKey: "a-key", Model: DefaultAnthropicModel},
		Options{BaseURL: srv.URL},
		&telemetry.Recorder{},
	)
	require.NoError(t, err)

	text, err := completer.Complete(context.Background(), "extract this")
	require.NoError(t, err)
	require.Equal(t, `{"season": "winter"}`, text)

	require.Equal(t, "/v1/messages", captured.path)
	require.Equal(t, "a-key", captured.headers.Get("x-api-key"))
	require.Equal(t, "2023-06-01", captured.headers.Get("anthropic-version"))
	require.Equal(t, DefaultAnthropicModel, captured.body["model"])
	require.EqualValues(t, 2000, captured.body["max_tokens"])
	require.Equal(t, []any{
		map[string]any{"role": "user", "content": "extract this"},
	}, captured.body["messages"])
}

func TestAnthropicError(t *testing.T) {
	var captured capturedRequest
	srv := newServer(t, http.StatusUnauthorized, `{
		"type": "error",
		"error": {"type": "authentication_error", "message": "invalid x-api-key"}
	}`, &captured)

	tel := &telemetry.Recorder{}
	completer, err := New(
		ProviderConfig{Provider: Anthropic, APIKey: "bad", Model: DefaultAnthropicModel},
		Options{BaseURL: srv.URL},
		tel,
	)
	require.NoError(t, err)

	_, err = completer.Complete(context.Background(), "extract this")
	require.ErrorContains(t, err, "invalid x-api-key")
	require.True(t, tel.HasBroken("client.complete"))
}

func TestAnthropicEmptyContent(t *testing.T) {
	var captured capturedRequest
	srv := newServer(t, http.StatusOK, `{"content": []}`, &captured)

	completer, err := New(
		ProviderConfig{Provider: Anthropic, APIKey: "a-key", Model: DefaultAnthropicModel},
		Options{BaseURL: srv.URL},
		&telemetry.Recorder{},
	)
	require.NoError(t, err)

	_, err = completer.Complete(context.Background(), "extract this")
	require.Error(t, err)
}

func TestOpenAIRequestShape(t *testing.T) {
	testCases := []struct {
		model               string
		maxTokens           any
		maxCompletionTokens any
		temperature         any
	}{
		{model: "gpt-5", maxCompletionTokens: float64(2000)},
		{model: "gpt-5-mini", maxCompletionTokens: float64(2000)},
		{model: "o1-preview", maxCompletionTokens: float64(2000)},
		{model: "gpt-4o", maxTokens: float64(2000), temperature: float64(0)},
	}

	for _, test := range testCases {
		t.Run(test.model, func(t *testing.T) {
			var captured capturedRequest
			srv := newServer(t, http.StatusOK, `{
				"choices": [{"message": {"role": "assistant", "content": "{}"}, "finish_reason": "stop"}]
			}`, &captured)

			completer, err := New(
				ProviderConfig{Provider: OpenAI, APIKey: "o-key", Model: test.model},
				Options{BaseURL: srv.URL},
				&telemetry.Recorder{},
			)
			require.NoError(t, err)

			text, err := completer.Complete(context.Background(), "extract this")
			require.NoError(t, err)
			require.Equal(t, "{}", text)

			require.Equal(t, "/v1/chat/completions", captured.path)
			require.Equal(t, "Bearer o-key", captured.headers.Get("Authorization"))
			require.Equal(t, test.model, captured.body["model"])
			require.Equal(t, test.maxTokens, captured.body["max_tokens"])
			require.Equal(t, test.maxCompletionTokens, captured.body["max_completion_tokens"])
			require.Equal(t, test.temperature, captured.body["temperature"])
			require.Equal(t, []any{
				map[string]any{"role": "system", "content": openaiSystemPrompt},
				map[string]any{"role": "user", "content": "extract this"},
			}, captured.body["messages"])
		})
	}
}

func TestOpenAIError(t *testing.T) {
	var captured capturedRequest
	srv := newServer(t, http.StatusTooManyRequests, `{
		"error": {"type": "rate_limit_exceeded", "message": "slow down"}
	}`, &captured)

	tel := &telemetry.Recorder{}
	completer, err := New(
		ProviderConfig{Provider: OpenAI, APIKey: "o-key", Model: "gpt-5"},
		Options{BaseURL: srv.URL},
		tel,
	)
	require.NoError(t, err)

	_, err = completer.Complete(context.Background(), "extract this")
	require.ErrorContains(t, err, "slow down")
	require.True(t, tel.HasBroken("client.complete"))
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(ProviderConfig{Provider: "gemini"}, Options{}, &telemetry.Recorder{})
	require.ErrorIs(t, err, ErrUnknownProvider)
}

func TestClientTimeout(t *testing.T) {
	tel := &telemetry.Recorder{}
	cfg := ProviderConfig{Provider: Anthropic, APIKey: "a-key", Model: DefaultAnthropicModel}

	unbounded := newAnthropicClient(cfg, Options{}, tel)
	require.Zero(t, unbounded.http.GetClient().Timeout, "completions wait indefinitely by default")

	bounded := newAnthropicClient(cfg, Options{Timeout: 90 * time.Second}, tel)
	require.Equal(t, 90*time.Second, bounded.http.GetClient().Timeout)

	negative := newOpenAIClient(ProviderConfig{Provider: OpenAI, APIKey: "o-key"}, Options{Timeout: -time.Second}, tel)
	require.Zero(t, negative.http.GetClient().Timeout)
}
