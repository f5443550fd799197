package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newHealthCommand(client *apiClient, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Report gateway liveness and capabilities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd.Context(), client, stdout, http.MethodGet, "/health", nil)
		},
	}
}

type taskFlags struct {
	taskType string
	prompt   string
	context  string
	model    string
}

func (f *taskFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.taskType, "task-type", "", "task type, e.g. api_analysis")
	cmd.Flags().StringVar(&f.prompt, "prompt", "", "task instructions")
	cmd.Flags().StringVar(&f.context, "context", "{}", "task context as a JSON object")
	cmd.Flags().StringVar(&f.model, "model", "", "model override sent as config.llm")
}

func (f *taskFlags) payload() (map[string]any, error) {
	if strings.TrimSpace(f.taskType) == "" {
		return nil, errors.New("--task-type is required")
	}
	if strings.TrimSpace(f.prompt) == "" {
		return nil, errors.New("--prompt is required")
	}
	context, err := parseJSONObject("--context", f.context)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"taskType": f.taskType,
		"context":  context,
		"prompt":   f.prompt,
	}
	if model := strings.TrimSpace(f.model); model != "" {
		payload["config"] = map[string]any{"llm": model}
	}
	return payload, nil
}

func newExecuteCommand(client *apiClient, stdout io.Writer) *cobra.Command {
	var flags taskFlags
	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Run a task synchronously",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := flags.payload()
			if err != nil {
				return err
			}
			return runRequest(cmd.Context(), client, stdout, http.MethodPost, "/api/execute", payload)
		},
	}
	flags.register(cmd)
	return cmd
}

func newAnalyzeCommand(client *apiClient, stdout io.Writer) *cobra.Command {
	var specType, specFile string
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze an API specification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := readJSONObjectFile("--spec-file", specFile)
			if err != nil {
				return err
			}
			return runRequest(cmd.Context(), client, stdout, http.MethodPost, "/api/analyze", map[string]any{
				"specType": specType,
				"spec":     spec,
			})
		},
	}
	cmd.Flags().StringVar(&specType, "spec-type", "openapi", "openapi, graphql or postman")
	cmd.Flags().StringVar(&specFile, "spec-file", "", "path to the specification JSON")
	return cmd
}

func newGenerateConnectorCommand(client *apiClient, stdout io.Writer) *cobra.Command {
	var name, specType, specFile, language, runtime string
	var endpoints []string
	cmd := &cobra.Command{
		Use:   "generate-connector",
		Short: "Generate a connector from an API specification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(name) == "" {
				return errors.New("--name is required")
			}
			spec, err := readJSONObjectFile("--spec-file", specFile)
			if err != nil {
				return err
			}
			payload := map[string]any{
				"name":     name,
				"specType": specType,
				"spec":     spec,
				"language": language,
				"runtime":  runtime,
			}
			if len(endpoints) > 0 {
				payload["selectedEndpoints"] = endpoints
			}
			return runRequest(cmd.Context(), client, stdout, http.MethodPost, "/api/generate-connector", payload)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "connector name")
	cmd.Flags().StringVar(&specType, "spec-type", "openapi", "openapi, graphql or postman")
	cmd.Flags().StringVar(&specFile, "spec-file", "", "path to the specification JSON")
	cmd.Flags().StringVar(&language, "language", "typescript", "target language")
	cmd.Flags().StringVar(&runtime, "runtime", "cloudflare-workers", "target runtime")
	cmd.Flags().StringSliceVar(&endpoints, "endpoint", nil, "limit generation to these endpoints (repeatable)")
	return cmd
}

func newGenerateTestsCommand(client *apiClient, stdout io.Writer) *cobra.Command {
	var codeFile, language string
	cmd := &cobra.Command{
		Use:   "generate-tests",
		Short: "Generate a test suite for connector source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := readTextFile("--code-file", codeFile)
			if err != nil {
				return err
			}
			payload := map[string]any{"connectorCode": code}
			if language != "" {
				payload["language"] = language
			}
			return runRequest(cmd.Context(), client, stdout, http.MethodPost, "/api/generate-tests", payload)
		},
	}
	cmd.Flags().StringVar(&codeFile, "code-file", "", "path to the connector source")
	cmd.Flags().StringVar(&language, "language", "", "connector language (server default: typescript)")
	return cmd
}

func newFixCommand(client *apiClient, stdout io.Writer) *cobra.Command {
	var connectorID, codeFile, errorJSON string
	cmd := &cobra.Command{
		Use:   "fix",
		Short: "Repair connector source given an error report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := readTextFile("--code-file", codeFile)
			if err != nil {
				return err
			}
			details, err := parseJSONObject("--error", errorJSON)
			if err != nil {
				return err
			}
			return runRequest(cmd.Context(), client, stdout, http.MethodPost, "/api/fix", map[string]any{
				"connectorId":   connectorID,
				"error":         details,
				"connectorCode": code,
			})
		},
	}
	cmd.Flags().StringVar(&connectorID, "connector-id", "", "connector identifier")
	cmd.Flags().StringVar(&codeFile, "code-file", "", "path to the connector source")
	cmd.Flags().StringVar(&errorJSON, "error", "{}", "error details as a JSON object")
	return cmd
}

func newJobCommand(client *apiClient, stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Submit and poll asynchronous tasks",
	}

	var flags taskFlags
	submit := &cobra.Command{
		Use:   "submit",
		Short: "Queue a task and print its job id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := flags.payload()
			if err != nil {
				return err
			}
			return runRequest(cmd.Context(), client, stdout, http.MethodPost, "/api/jobs", payload)
		},
	}
	flags.register(submit)

	get := &cobra.Command{
		Use:   "get <job-id>",
		Short: "Show a job and its result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd.Context(), client, stdout, http.MethodGet, "/api/jobs/"+url.PathEscape(args[0]), nil)
		},
	}

	cmd.AddCommand(submit, get)
	return cmd
}

func parseJSONObject(flag string, raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	var object map[string]any
	decoder := json.NewDecoder(strings.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&object); err != nil {
		return nil, fmt.Errorf("%s must be a JSON object: %w", flag, err)
	}
	if object == nil {
		object = map[string]any{}
	}
	return object, nil
}

func readTextFile(flag string, path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%s is required", flag)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%s: %w", flag, err)
	}
	return string(content), nil
}

func readJSONObjectFile(flag string, path string) (map[string]any, error) {
	content, err := readTextFile(flag, path)
	if err != nil {
		return nil, err
	}
	return parseJSONObject(flag, content)
}
