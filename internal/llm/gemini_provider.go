package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/lunaos-ai/OpenHands/internal/logging"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

type GeminiConfig struct {
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// GeminiProvider calls the Gemini API through the genai SDK. A client is built
// per call because the credential travels with the request.
type GeminiProvider struct {
	httpClient *http.Client
	logger     *zap.Logger
}

func NewGeminiProvider(cfg GeminiConfig) *GeminiProvider {
	logger := logging.OrNop(cfg.Logger)
	return &GeminiProvider{httpClient: cfg.HTTPClient, logger: logger}
}

func (g *GeminiProvider) Name() string {
	return ProviderGemini
}

func (g *GeminiProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return observeProviderOperation(ctx, g.logger, g.Name(), req.Model, func() (string, error) {
		return g.call(ctx, req)
	})
}

func (g *GeminiProvider) call(ctx context.Context, req CompletionRequest) (string, error) {
	if strings.TrimSpace(req.Credential) == "" {
		return "", errors.New("gemini credential is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     req.Credential,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.httpClient,
	})
	if err != nil {
		return "", fmt.Errorf("failed to initialize gemini client: %w", err)
	}

	contents, system := geminiContents(req.Messages)
	config := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(float32(req.Temperature)),
		SystemInstruction: system,
	}

	response, err := client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return "", err
	}

	text := response.Text()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("gemini returned no text")
	}
	return text, nil
}

func geminiContents(messages []Message) ([]*genai.Content, *genai.Content) {
	contents := make([]*genai.Content, 0, len(messages))
	var system *genai.Content
	for _, message := range messages {
		switch message.Role {
		case "system":
			system = genai.NewContentFromText(message.Content, genai.RoleUser)
		case "assistant":
			contents = append(contents, genai.NewContentFromText(message.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(message.Content, genai.RoleUser))
		}
	}
	return contents, system
}
