package capabilities

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lunaos-ai/OpenHands/internal/domain"
)

func indentJSON(value any) (string, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(value); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func analyzePrompt(req domain.AnalyzeRequest) (string, error) {
	spec, err := indentJSON(req.Spec)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`
Analyze this %s API specification and provide a structured analysis.

Specification:
%s

Provide:
1. API purpose and domain
2. Authentication methods
3. Rate limits (if any)
4. List of endpoints with methods
5. Data models/schemas
6. Best practices recommendations
7. Suggested MCP tool structure

Return as JSON with these keys:
{
  "purpose": "...",
  "domain": "...",
  "authMethods": ["..."],
  "rateLimits": {...},
  "endpoints": [{
    "path": "...",
    "method": "...",
    "description": "...",
    "parameters": [...],
    "responses": {...}
  }],
  "dataModels": [...],
  "bestPractices": [...],
  "recommendedTools": [...]
}
`, req.SpecType, spec), nil
}

func generateConnectorPrompt(req domain.GenerateConnectorRequest) (string, error) {
	spec, err := indentJSON(req.Spec)
	if err != nil {
		return "", err
	}
	authConfig := "None"
	if len(req.AuthConfig) > 0 {
		if authConfig, err = indentJSON(req.AuthConfig); err != nil {
			return "", err
		}
	}
	endpoints := "All endpoints"
	if len(req.SelectedEndpoints) > 0 {
		if endpoints, err = indentJSON(req.SelectedEndpoints); err != nil {
			return "", err
		}
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "\nGenerate a production-ready MCP connector with these specifications:\n\n")
	fmt.Fprintf(&builder, "Name: %s\nLanguage: %s\nRuntime: %s\nAPI Spec Type: %s\n\n", req.Name, req.Language, req.Runtime, req.SpecType)
	fmt.Fprintf(&builder, "API Specification:\n%s\n\n", spec)
	fmt.Fprintf(&builder, "Authentication Config:\n%s\n\n", authConfig)
	fmt.Fprintf(&builder, "Selected Endpoints:\n%s\n\n", endpoints)
	builder.WriteString("Requirements:\n")
	fmt.Fprintf(&builder, "1. Generate complete %s code for %s\n", req.Language, req.Runtime)
	builder.WriteString("2. Implement MCP tool definitions for each API endpoint\n")
	builder.WriteString("3. Include proper error handling\n")
	builder.WriteString("4. Add authentication using the provided config\n")
	builder.WriteString("5. Include TypeScript types (if applicable)\n")
	builder.WriteString("6. Add comprehensive comments\n")
	fmt.Fprintf(&builder, "7. Follow best practices for %s\n\n", req.Runtime)
	builder.WriteString("Output Structure:\n- Main connector file\n- Types/interfaces file\n- Configuration file\n- README with usage examples\n\n")
	builder.WriteString("Return the generated code organized by file.\n")
	return builder.String(), nil
}

func generateTestsPrompt(language string, code string) string {
	return fmt.Sprintf(`
Generate comprehensive tests for this %s MCP connector:

%s

Include:
1. Unit tests for each tool
2. Integration tests with mocked API responses
3. Error handling tests
4. Edge case tests
5. Test fixtures

Use appropriate testing framework:
- TypeScript: Jest/Vitest
- Python: pytest
- Go: testing package

Return complete test file(s).
`, language, code)
}

func fixConnectorPrompt(code string, errorDetails map[string]any) (string, error) {
	details, err := indentJSON(errorDetails)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`
Fix this MCP connector that is experiencing errors:

Connector Code:
%s

Error Details:
%s

Please:
1. Identify the root cause
2. Fix the issue
3. Ensure backward compatibility
4. Explain what was fixed

Return the fixed code and explanation.
`, code, details), nil
}
