package tasks

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/lunaos-ai/OpenHands/internal/domain"
)

const instructionSuffix = "Please provide a detailed, structured response."

// RenderPrompt builds the single user message sent to the provider. Context
// keys are rendered in sorted order with a two-space indent, and a nil context
// renders as {}.
func RenderPrompt(taskType domain.TaskType, context map[string]any, prompt string) (string, error) {
	rendered, err := renderContext(context)
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	builder.WriteString("\nTask Type: ")
	builder.WriteString(string(taskType))
	builder.WriteString("\n\nContext:\n")
	builder.WriteString(rendered)
	builder.WriteString("\n\nTask:\n")
	builder.WriteString(prompt)
	builder.WriteString("\n\n")
	builder.WriteString(instructionSuffix)
	builder.WriteString("\n")
	return builder.String(), nil
}

func renderContext(context map[string]any) (string, error) {
	if context == nil {
		return "{}", nil
	}
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(context); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
