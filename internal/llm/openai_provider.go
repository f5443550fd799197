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
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

type OpenAIConfig struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger

	// OAuth, when set, authenticates every call with a client-credentials
	// token instead of the per-request API key. This is how OpenAI-compatible
	// gateways behind an identity provider are reached.
	OAuth *clientcredentials.Config
}

// OpenAIProvider speaks the chat-completions protocol shared by OpenAI and
// compatible gateways.
type OpenAIProvider struct {
	baseURL string
	client  *http.Client
	oauth   bool
	logger  *zap.Logger
}

func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.OAuth != nil {
		tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, client)
		client = cfg.OAuth.Client(tokenCtx)
	}
	logger := logging.OrNop(cfg.Logger)
	return &OpenAIProvider{
		baseURL: baseURL,
		client:  client,
		oauth:   cfg.OAuth != nil,
		logger:  logger,
	}
}

func (o *OpenAIProvider) Name() string {
	return ProviderOpenAI
}

func (o *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return observeProviderOperation(ctx, o.logger, o.Name(), req.Model, func() (string, error) {
		return o.call(ctx, req)
	})
}

func (o *OpenAIProvider) call(ctx context.Context, req CompletionRequest) (string, error) {
	if !o.oauth && strings.TrimSpace(req.Credential) == "" {
		return "", errors.New("openai credential is required")
	}

	payload := map[string]any{
		"model":       req.Model,
		"messages":    req.Messages,
		"temperature": req.Temperature,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	request.Header.Set("Content-Type", "application/json")
	if !o.oauth {
		request.Header.Set("Authorization", "Bearer "+req.Credential)
	}

	response, err := o.client.Do(request)
	if err != nil {
		return "", err
	}
	defer response.Body.Close()

	if response.StatusCode >= http.StatusBadRequest {
		return "", newProviderHTTPError(o.Name(), response)
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(response.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
