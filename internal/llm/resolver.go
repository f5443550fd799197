package llm

import (
	"errors"
	"strings"
)

// ErrNoCredentials is the configuration error raised when no provider
// credential is available.
var ErrNoCredentials = errors.New("no LLM API key configured")

// Credentials is read from the environment once at process start and shared
// read-only by every request.
type Credentials struct {
	OpenAIKey    string
	AnthropicKey string
	GeminiKey    string

	// OpenAIOAuth marks the OpenAI provider as authenticated through an
	// OAuth2 client-credentials flow instead of a static key.
	OpenAIOAuth bool
}

func (c *Credentials) Has(providerKey string) bool {
	if c == nil {
		return false
	}
	switch providerKey {
	case ProviderOpenAI:
		return c.OpenAIKey != "" || c.OpenAIOAuth
	case ProviderAnthropic:
		return c.AnthropicKey != ""
	case ProviderGemini:
		return c.GeminiKey != ""
	default:
		return false
	}
}

func (c *Credentials) For(providerKey string) string {
	if c == nil {
		return ""
	}
	switch providerKey {
	case ProviderOpenAI:
		return c.OpenAIKey
	case ProviderAnthropic:
		return c.AnthropicKey
	case ProviderGemini:
		return c.GeminiKey
	default:
		return ""
	}
}

// Any reports whether at least one provider credential is present.
func (c *Credentials) Any() bool {
	return c.defaultProviderKey() != ""
}

// defaultProviderKey is the first provider with a credential, in the order
// openai, anthropic, gemini.
func (c *Credentials) defaultProviderKey() string {
	for _, key := range []string{ProviderOpenAI, ProviderAnthropic, ProviderGemini} {
		if c.Has(key) {
			return key
		}
	}
	return ""
}

type DefaultModels struct {
	OpenAI    string
	Anthropic string
	Gemini    string
}

func (m DefaultModels) For(providerKey string) string {
	switch providerKey {
	case ProviderAnthropic:
		return m.Anthropic
	case ProviderGemini:
		return m.Gemini
	default:
		return m.OpenAI
	}
}

type ProviderSelection struct {
	ProviderKey string
	ModelID     string
}

// Resolver picks the provider and model for a single request. It holds no
// mutable state; every call is a pure function of the credentials.
type Resolver struct {
	credentials *Credentials
	models      DefaultModels
}

func NewResolver(credentials *Credentials, models DefaultModels) *Resolver {
	if models.OpenAI == "" {
		models.OpenAI = "gpt-4"
	}
	if models.Anthropic == "" {
		models.Anthropic = "claude-3-5-sonnet-20241022"
	}
	if models.Gemini == "" {
		models.Gemini = "gemini-2.5-flash"
	}
	return &Resolver{credentials: credentials, models: models}
}

func (r *Resolver) Credentials() *Credentials {
	return r.credentials
}

func (r *Resolver) Resolve(explicitModel string) (ProviderSelection, error) {
	defaultKey := r.credentials.defaultProviderKey()
	if defaultKey == "" {
		return ProviderSelection{}, ErrNoCredentials
	}

	if model := strings.TrimSpace(explicitModel); model != "" {
		return ProviderSelection{ProviderKey: defaultKey, ModelID: explicitModel}, nil
	}

	hasOpenAI := r.credentials.Has(ProviderOpenAI)
	if r.credentials.Has(ProviderAnthropic) && !hasOpenAI {
		return ProviderSelection{ProviderKey: ProviderAnthropic, ModelID: r.models.Anthropic}, nil
	}
	if hasOpenAI {
		return ProviderSelection{ProviderKey: ProviderOpenAI, ModelID: r.models.OpenAI}, nil
	}
	return ProviderSelection{ProviderKey: ProviderGemini, ModelID: r.models.Gemini}, nil
}
