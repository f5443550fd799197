package llm

import (
	"context"

	"github.com/lunaos-ai/OpenHands/internal/logging"
	"go.uber.org/zap"
)

// StubProvider answers every completion with a fixed text. It stands in for
// real providers in local runs and tests, registered under a real provider key
// so selection behaves as it would in production.
type StubProvider struct {
	name     string
	response string
	logger   *zap.Logger
}

func NewStubProvider(name string, response string, logger *zap.Logger) *StubProvider {
	return &StubProvider{name: name, response: response, logger: logging.OrNop(logger)}
}

func (s *StubProvider) Name() string {
	return s.name
}

func (s *StubProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return observeProviderOperation(ctx, s.logger, s.name, req.Model, func() (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return s.response, nil
	})
}
