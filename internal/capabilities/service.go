package capabilities

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lunaos-ai/OpenHands/internal/domain"
)

const (
	defaultTestLanguage = "typescript"
	fixExplanation      = "Code has been fixed based on error analysis"
)

// Capabilities is the fixed list advertised by Health.
var Capabilities = []string{
	"analyze_api",
	"generate_connector",
	"generate_tests",
	"fix_connector",
	"generate_documentation",
}

var ErrServiceUnavailable = errors.New("no provider runtime registered")

// Error reports a failed capability call. Its message is the client-visible
// detail, e.g. "API analysis failed: No LLM API key configured".
type Error struct {
	Capability string
	Reason     string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Capability, e.Reason)
}

type TaskExecutor interface {
	Execute(ctx context.Context, req domain.TaskRequest) domain.TaskResult
	Available() bool
}

// Service implements the capability endpoints as prompt templates over a
// TaskExecutor. It never talks to a provider directly.
type Service struct {
	executor TaskExecutor
	version  string
	now      func() time.Time
}

func NewService(executor TaskExecutor, version string) *Service {
	return &Service{executor: executor, version: version, now: time.Now}
}

func (s *Service) Health(_ context.Context) (domain.HealthResponse, error) {
	if !s.executor.Available() {
		return domain.HealthResponse{}, ErrServiceUnavailable
	}
	capabilities := make([]string, len(Capabilities))
	copy(capabilities, Capabilities)
	return domain.HealthResponse{
		Healthy:      true,
		Version:      s.version,
		Timestamp:    s.now().UTC().Format(time.RFC3339Nano),
		Capabilities: capabilities,
	}, nil
}

func (s *Service) AnalyzeSpec(ctx context.Context, req domain.AnalyzeRequest) (domain.AnalyzeResponse, error) {
	const capability = "API analysis"

	prompt, err := analyzePrompt(req)
	if err != nil {
		return domain.AnalyzeResponse{}, &Error{Capability: capability, Reason: err.Error()}
	}
	result, err := s.execute(ctx, capability, domain.TaskRequest{
		TaskType: domain.TaskAPIAnalysis,
		Context:  map[string]any{"specType": req.SpecType, "spec": req.Spec},
		Prompt:   prompt,
	})
	if err != nil {
		return domain.AnalyzeResponse{}, err
	}

	analysis, err := analysisDocument(result.ResultText())
	if err != nil {
		return domain.AnalyzeResponse{}, &Error{Capability: capability, Reason: err.Error()}
	}
	return domain.AnalyzeResponse{Success: true, Analysis: analysis, Metadata: result.Metadata}, nil
}

func (s *Service) GenerateConnector(ctx context.Context, req domain.GenerateConnectorRequest) (domain.GenerateConnectorResponse, error) {
	const capability = "Connector generation"

	prompt, err := generateConnectorPrompt(req)
	if err != nil {
		return domain.GenerateConnectorResponse{}, &Error{Capability: capability, Reason: err.Error()}
	}
	taskContext := map[string]any{
		"name":     req.Name,
		"language": req.Language,
		"runtime":  req.Runtime,
		"spec":     req.Spec,
	}
	if len(req.Customizations) > 0 {
		taskContext["customizations"] = req.Customizations
	}
	result, err := s.execute(ctx, capability, domain.TaskRequest{
		TaskType: domain.TaskConnectorGeneration,
		Context:  taskContext,
		Prompt:   prompt,
	})
	if err != nil {
		return domain.GenerateConnectorResponse{}, err
	}

	code := result.ResultText()
	return domain.GenerateConnectorResponse{
		Success: true,
		Connector: domain.ConnectorArtifact{
			Name:     req.Name,
			Language: req.Language,
			Runtime:  req.Runtime,
			Code:     code,
			Files: []domain.ConnectorFile{{
				Path:    fmt.Sprintf("%s/index.%s", req.Name, ExtensionFor(req.Language)),
				Content: code,
			}},
		},
		Metadata: result.Metadata,
	}, nil
}

func (s *Service) GenerateTests(ctx context.Context, req domain.GenerateTestsRequest) (domain.GenerateTestsResponse, error) {
	language := req.Language
	if language == "" {
		language = defaultTestLanguage
	}
	result, err := s.execute(ctx, "Test generation", domain.TaskRequest{
		TaskType: domain.TaskTestGeneration,
		Context:  map[string]any{"language": language, "code": req.ConnectorCode},
		Prompt:   generateTestsPrompt(language, req.ConnectorCode),
	})
	if err != nil {
		return domain.GenerateTestsResponse{}, err
	}
	return domain.GenerateTestsResponse{Success: true, Tests: result.ResultText(), Metadata: result.Metadata}, nil
}

func (s *Service) FixConnector(ctx context.Context, req domain.FixConnectorRequest) (domain.FixConnectorResponse, error) {
	const capability = "Connector fix"

	errorDetails := req.Error
	if errorDetails == nil {
		errorDetails = map[string]any{}
	}
	prompt, err := fixConnectorPrompt(req.ConnectorCode, errorDetails)
	if err != nil {
		return domain.FixConnectorResponse{}, &Error{Capability: capability, Reason: err.Error()}
	}

	var connectorID any
	if req.ConnectorID != "" {
		connectorID = req.ConnectorID
	}
	result, err := s.execute(ctx, capability, domain.TaskRequest{
		TaskType: domain.TaskConnectorFix,
		Context:  map[string]any{"connectorId": connectorID, "error": errorDetails},
		Prompt:   prompt,
	})
	if err != nil {
		return domain.FixConnectorResponse{}, err
	}
	return domain.FixConnectorResponse{
		Success:     true,
		FixedCode:   result.ResultText(),
		Explanation: fixExplanation,
		Metadata:    result.Metadata,
	}, nil
}

func (s *Service) execute(ctx context.Context, capability string, req domain.TaskRequest) (domain.TaskResult, error) {
	result := s.executor.Execute(ctx, req)
	if !result.Success {
		return result, &Error{Capability: capability, Reason: result.Error}
	}
	return result, nil
}
