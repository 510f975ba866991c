package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"courtprices/internal/components/telemetry"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	report_openai_complete = "client.complete"
)

const (
	openaiBaseURL      = "https://api.openai.com"
	openaiSystemPrompt = "You are a helpful assistant that extracts structured data from text."
)

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiRequest struct {
	Model    string          `json:"model"`
	Messages []openaiMessage `json:"messages"`

	MaxTokens           *int     `json:"max_tokens,omitempty"`
	MaxCompletionTokens *int     `json:"max_completion_tokens,omitempty"`
	Temperature         *float64 `json:"temperature,omitempty"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type openaiError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// IsReasoningModel reports whether model only accepts max_completion_tokens and the
// default temperature.
func IsReasoningModel(model string) bool {
	return strings.HasPrefix(model, "gpt-5") || strings.HasPrefix(model, "o1")
}

type openaiClient struct {
	http      *resty.Client
	model     string
	maxTokens int
	tel       telemetry.API
}

func newOpenAIClient(cfg ProviderConfig, opts Options, tel telemetry.API) openaiClient {
	tel = telemetry.NewScopedAPI("openai", tel)
	opts = opts.withDefaults(openaiBaseURL)

	client := newHttpClient("openai", opts, tel)
	client.SetAuthToken(cfg.APIKey)

	return openaiClient{
		http:      client,
		model:     cfg.Model,
		maxTokens: opts.MaxTokens,
		tel:       tel,
	}
}

func (c openaiClient) request(prompt string) openaiRequest {
	req := openaiRequest{
		Model: c.model,
		Messages: []openaiMessage{
			{Role: "system", Content: openaiSystemPrompt},
			{Role: "user", Content: prompt},
		},
	}
	maxTokens := c.maxTokens
	if IsReasoningModel(c.model) {
		req.MaxCompletionTokens = &maxTokens
		return req
	}
	temperature := 0.0
	req.MaxTokens = &maxTokens
	req.Temperature = &temperature
	return req
}

func (c openaiClient) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := tracer.Start(ctx, "openai:Complete")
	defer span.End()
	span.SetAttributes(attribute.String("model", c.model))

	text, err := c.complete(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.tel.ReportBroken(report_openai_complete, err, c.model)
		return "", err
	}
	return text, nil
}

func (c openaiClient) complete(ctx context.Context, prompt string) (string, error) {
	var result openaiResponse
	var apiErr openaiError
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(c.request(prompt)).
		SetResult(&result).
		SetError(&apiErr).
		Post("/v1/chat/completions")
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	if res.IsError() {
		if apiErr.Error.Message != "" {
			return "", fmt.Errorf("openai: %s: %s", res.Status(), apiErr.Error.Message)
		}
		return "", fmt.Errorf("openai: %s", res.Status())
	}

	if len(result.Choices) == 0 {
		return "", errors.New("openai: response has no choices")
	}
	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}
