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
	report_anthropic_complete = "client.complete"
)

const (
	anthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
)

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

type anthropicError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type anthropicClient struct {
	http      *resty.Client
	model     string
	maxTokens int
	tel       telemetry.API
}

func newAnthropicClient(cfg ProviderConfig, opts Options, tel telemetry.API) anthropicClient {
	tel = telemetry.NewScopedAPI("anthropic", tel)
	opts = opts.withDefaults(anthropicBaseURL)

	client := newHttpClient("anthropic", opts, tel)
	client.SetHeader("x-api-key", cfg.APIKey)
	client.SetHeader("anthropic-version", anthropicVersion)

	return anthropicClient{
		http:      client,
		model:     cfg.Model,
		maxTokens: opts.MaxTokens,
		tel:       tel,
	}
}

func (c anthropicClient) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := tracer.Start(ctx, "anthropic:Complete")
	defer span.End()
	span.SetAttributes(attribute.String("model", c.model))

	text, err := c.complete(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.tel.ReportBroken(report_anthropic_complete, err, c.model)
		return "", err
	}
	return text, nil
}

func (c anthropicClient) complete(ctx context.Context, prompt string) (string, error) {
	var result anthropicResponse
	var apiErr anthropicError
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(anthropicRequest{
			Model:     c.model,
			MaxTokens: c.maxTokens,
			Messages: []anthropicMessage{
				{Role: "user", Content: prompt},
			},
		}).
		SetResult(&result).
		SetError(&apiErr).
		Post("/v1/messages")
	if err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}
	if res.IsError() {
		if apiErr.Error.Message != "" {
			return "", fmt.Errorf("anthropic: %s: %s: %s", res.Status(), apiErr.Error.Type, apiErr.Error.Message)
		}
		return "", fmt.Errorf("anthropic: %s", res.Status())
	}

	if len(result.Content) == 0 {
		return "", errors.New("anthropic: response has no content")
	}
	return strings.TrimSpace(result.Content[0].Text), nil
}
