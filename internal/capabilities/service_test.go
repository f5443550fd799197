package capabilities

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/lunaos-ai/OpenHands/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	available bool
	result    domain.TaskResult
	requests  []domain.TaskRequest
}

func (f *fakeExecutor) Execute(_ context.Context, req domain.TaskRequest) domain.TaskResult {
	f.requests = append(f.requests, req)
	return f.result
}

func (f *fakeExecutor) Available() bool { return f.available }

func succeeding(text string) *fakeExecutor {
	seconds := 0.25
	return &fakeExecutor{
		available: true,
		result: domain.TaskResult{
			Success:  true,
			Data:     &domain.TaskData{Result: text, Raw: text},
			Metadata: &domain.TaskMetadata{DurationSeconds: &seconds, Model: "gpt-4", TaskType: "x"},
		},
	}
}

func failing(message string) *fakeExecutor {
	return &fakeExecutor{available: true, result: domain.TaskResult{Success: false, Error: message}}
}

func TestHealth(t *testing.T) {
	service := NewService(succeeding(""), "1.2.3")
	service.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	health, err := service.Health(context.Background())
	require.NoError(t, err)
	assert.True(t, health.Healthy)
	assert.Equal(t, "1.2.3", health.Version)
	assert.Equal(t, "2026-01-02T03:04:05Z", health.Timestamp)
	assert.Equal(t, []string{"analyze_api", "generate_connector", "generate_tests", "fix_connector", "generate_documentation"}, health.Capabilities)
}

func TestHealthUnavailable(t *testing.T) {
	service := NewService(&fakeExecutor{}, "1.0.0")
	_, err := service.Health(context.Background())
	assert.ErrorIs(t, err, ErrServiceUnavailable)
}

func TestAnalyzeSpecStructured(t *testing.T) {
	executor := succeeding(`{"purpose":"pets","endpoints":[]}`)
	service := NewService(executor, "1.0.0")

	spec := map[string]any{"openapi": "3.0.0"}
	response, err := service.AnalyzeSpec(context.Background(), domain.AnalyzeRequest{SpecType: domain.SpecOpenAPI, Spec: spec})
	require.NoError(t, err)
	assert.True(t, response.Success)
	assert.JSONEq(t, `{"purpose":"pets","endpoints":[]}`, string(response.Analysis))
	assert.Equal(t, "gpt-4", response.Metadata.Model)

	require.Len(t, executor.requests, 1)
	req := executor.requests[0]
	assert.Equal(t, domain.TaskAPIAnalysis, req.TaskType)
	assert.Equal(t, domain.SpecOpenAPI, req.Context["specType"])
	assert.Equal(t, spec, req.Context["spec"])
	assert.Contains(t, req.Prompt, "Analyze this openapi API specification")
	assert.Contains(t, req.Prompt, "\"openapi\": \"3.0.0\"")
	assert.Contains(t, req.Prompt, "\"recommendedTools\"")
}

func TestAnalyzeSpecFallsBackToRaw(t *testing.T) {
	service := NewService(succeeding("Not JSON <at all>"), "1.0.0")

	response, err := service.AnalyzeSpec(context.Background(), domain.AnalyzeRequest{SpecType: domain.SpecGraphQL, Spec: map[string]any{}})
	require.NoError(t, err)

	var analysis map[string]string
	require.NoError(t, json.Unmarshal(response.Analysis, &analysis))
	assert.Equal(t, map[string]string{"rawAnalysis": "Not JSON <at all>"}, analysis)
}

func TestGenerateConnector(t *testing.T) {
	executor := succeeding("package weather")
	service := NewService(executor, "1.0.0")

	response, err := service.GenerateConnector(context.Background(), domain.GenerateConnectorRequest{
		Name:              "weather",
		SpecType:          domain.SpecOpenAPI,
		Spec:              map[string]any{"paths": map[string]any{}},
		Language:          "Go",
		Runtime:           "lambda",
		SelectedEndpoints: []string{"/forecast"},
		Customizations:    map[string]any{"retries": 2},
	})
	require.NoError(t, err)

	connector := response.Connector
	assert.Equal(t, "weather", connector.Name)
	assert.Equal(t, "Go", connector.Language)
	assert.Equal(t, "package weather", connector.Code)
	require.Len(t, connector.Files, 1)
	assert.Equal(t, "weather/index.go", connector.Files[0].Path)
	assert.Equal(t, "package weather", connector.Files[0].Content)

	req := executor.requests[0]
	assert.Equal(t, domain.TaskConnectorGeneration, req.TaskType)
	assert.Equal(t, "lambda", req.Context["runtime"])
	assert.Contains(t, req.Context, "customizations")
	assert.Contains(t, req.Prompt, "Name: weather\nLanguage: Go\nRuntime: lambda\nAPI Spec Type: openapi\n")
	assert.Contains(t, req.Prompt, "Authentication Config:\nNone\n")
	assert.Contains(t, req.Prompt, "Selected Endpoints:\n[\n  \"/forecast\"\n]\n")
	assert.Contains(t, req.Prompt, "7. Follow best practices for lambda\n")
}

func TestGenerateConnectorDefaultsInPrompt(t *testing.T) {
	executor := succeeding("code")
	service := NewService(executor, "1.0.0")

	response, err := service.GenerateConnector(context.Background(), domain.GenerateConnectorRequest{
		Name: "x", SpecType: domain.SpecPostman, Spec: map[string]any{}, Language: "Rust", Runtime: "vercel",
	})
	require.NoError(t, err)
	assert.Equal(t, "x/index.txt", response.Connector.Files[0].Path)
	assert.Contains(t, executor.requests[0].Prompt, "Selected Endpoints:\nAll endpoints\n")
	assert.NotContains(t, executor.requests[0].Context, "customizations")
}

func TestGenerateTestsDefaultsLanguage(t *testing.T) {
	executor := succeeding("describe('x')")
	service := NewService(executor, "1.0.0")

	response, err := service.GenerateTests(context.Background(), domain.GenerateTestsRequest{ConnectorCode: "export {}"})
	require.NoError(t, err)
	assert.Equal(t, "describe('x')", response.Tests)

	req := executor.requests[0]
	assert.Equal(t, domain.TaskTestGeneration, req.TaskType)
	assert.Equal(t, map[string]any{"language": "typescript", "code": "export {}"}, req.Context)
	assert.Contains(t, req.Prompt, "Generate comprehensive tests for this typescript MCP connector:\n\nexport {}\n")
}

func TestFixConnector(t *testing.T) {
	executor := succeeding("fixed code")
	service := NewService(executor, "1.0.0")

	response, err := service.FixConnector(context.Background(), domain.FixConnectorRequest{
		ConnectorID:   "c-1",
		Error:         map[string]any{"message": "timeout"},
		ConnectorCode: "broken",
	})
	require.NoError(t, err)
	assert.Equal(t, "fixed code", response.FixedCode)
	assert.Equal(t, "Code has been fixed based on error analysis", response.Explanation)

	req := executor.requests[0]
	assert.Equal(t, domain.TaskConnectorFix, req.TaskType)
	assert.Equal(t, "c-1", req.Context["connectorId"])
	assert.Contains(t, req.Prompt, "Connector Code:\nbroken\n\nError Details:\n{\n  \"message\": \"timeout\"\n}\n")
}

func TestFixConnectorWithoutErrorDetails(t *testing.T) {
	executor := succeeding("ok")
	service := NewService(executor, "1.0.0")

	_, err := service.FixConnector(context.Background(), domain.FixConnectorRequest{})
	require.NoError(t, err)

	req := executor.requests[0]
	assert.Nil(t, req.Context["connectorId"])
	assert.Equal(t, map[string]any{}, req.Context["error"])
	assert.Contains(t, req.Prompt, "Error Details:\n{}\n")
}

func TestCapabilityFailuresCarryPrefix(t *testing.T) {
	service := NewService(failing("No LLM API key configured"), "1.0.0")
	ctx := context.Background()

	_, analyzeErr := service.AnalyzeSpec(ctx, domain.AnalyzeRequest{SpecType: domain.SpecOpenAPI, Spec: map[string]any{}})
	_, connectorErr := service.GenerateConnector(ctx, domain.GenerateConnectorRequest{Name: "n", Spec: map[string]any{}})
	_, testsErr := service.GenerateTests(ctx, domain.GenerateTestsRequest{})
	_, fixErr := service.FixConnector(ctx, domain.FixConnectorRequest{})

	assert.EqualError(t, analyzeErr, "API analysis failed: No LLM API key configured")
	assert.EqualError(t, connectorErr, "Connector generation failed: No LLM API key configured")
	assert.EqualError(t, testsErr, "Test generation failed: No LLM API key configured")
	assert.EqualError(t, fixErr, "Connector fix failed: No LLM API key configured")

	var capabilityErr *Error
	require.True(t, errors.As(fixErr, &capabilityErr))
	assert.Equal(t, "Connector fix", capabilityErr.Capability)
}
