package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/lunaos-ai/OpenHands/internal/logging"
	"go.uber.org/zap"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion        = "2023-06-01"
	anthropicMaxTokens      = 4096
)

type AnthropicConfig struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

type AnthropicProvider struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

func NewAnthropicProvider(cfg AnthropicConfig) *AnthropicProvider {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	logger := logging.OrNop(cfg.Logger)
	return &AnthropicProvider{baseURL: baseURL, client: client, logger: logger}
}

func (a *AnthropicProvider) Name() string {
	return ProviderAnthropic
}

func (a *AnthropicProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return observeProviderOperation(ctx, a.logger, a.Name(), req.Model, func() (string, error) {
		return a.call(ctx, req)
	})
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

func (a *AnthropicProvider) call(ctx context.Context, req CompletionRequest) (string, error) {
	if strings.TrimSpace(req.Credential) == "" {
		return "", errors.New("anthropic credential is required")
	}

	// System messages travel in a top-level field rather than in the list.
	var system []string
	messages := make([]Message, 0, len(req.Messages))
	for _, message := range req.Messages {
		if message.Role == "system" {
			system = append(system, message.Content)
			continue
		}
		messages = append(messages, message)
	}

	payload := map[string]any{
		"model":       req.Model,
		"max_tokens":  anthropicMaxTokens,
		"temperature": req.Temperature,
		"messages":    messages,
	}
	if len(system) > 0 {
		payload["system"] = strings.Join(system, "\n\n")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("x-api-key", req.Credential)
	request.Header.Set("anthropic-version", anthropicVersion)

	response, err := a.client.Do(request)
	if err != nil {
		return "", err
	}
	defer response.Body.Close()

	if response.StatusCode >= http.StatusBadRequest {
		return "", newProviderHTTPError(a.Name(), response)
	}

	var parsed struct {
		Content []anthropicContentBlock `json:"content"`
	}
	if err := json.NewDecoder(response.Body).Decode(&parsed); err != nil {
		return "", err
	}

	var builder strings.Builder
	found := false
	for _, block := range parsed.Content {
		if block.Type == "text" {
			builder.WriteString(block.Text)
			found = true
		}
	}
	if !found {
		return "", errors.New("anthropic returned no text content")
	}
	return builder.String(), nil
}
