package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

var ErrProviderNotRegistered = errors.New("provider not registered")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type CompletionRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
	Credential  string
}

// Provider is a text-completion backend. Implementations must be safe for
// concurrent use and must not keep per-request state.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Registry maps provider keys to providers. It is built once at startup and
// only read afterwards.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	registry := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, provider := range providers {
		if provider != nil {
			registry.providers[provider.Name()] = provider
		}
	}
	return registry
}

func (r *Registry) Lookup(key string) (Provider, error) {
	if r != nil {
		if provider, ok := r.providers[key]; ok {
			return provider, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrProviderNotRegistered, key)
}

// Names lists registered provider keys in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Available reports whether at least one provider can be dispatched to.
func (r *Registry) Available() bool {
	return r != nil && len(r.providers) > 0
}
