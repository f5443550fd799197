package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type apiClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type apiError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("api error status=%d code=%s message=%s", e.Status, e.Code, e.Message)
}

// commandError marks a failure after arguments were accepted: transport or
// API errors. Anything else returned from cobra is a usage error.
type commandError struct {
	err error
}

func (e *commandError) Error() string { return e.err.Error() }
func (e *commandError) Unwrap() error { return e.err }

// Run executes the CLI and returns the process exit code: 0 on success, 1 on
// API or transport errors, 2 on usage errors.
func Run(args []string, stdout io.Writer, stderr io.Writer) int {
	client := &apiClient{}
	root := newRootCommand(client, stdout)
	root.SetArgs(args)
	root.SetOut(stderr)
	root.SetErr(stderr)

	err := root.ExecuteContext(context.Background())
	if err == nil {
		return 0
	}

	var cmdErr *commandError
	if errors.As(err, &cmdErr) {
		var apiErr *apiError
		if errors.As(err, &apiErr) {
			writeCLIError(stdout, apiErr.Code, apiErr.Message, apiErr.Status)
			return 1
		}
		writeCLIError(stdout, "request_failed", err.Error(), 0)
		return 1
	}

	writeCLIError(stdout, "invalid_arguments", err.Error(), 0)
	return 2
}

func newRootCommand(client *apiClient, stdout io.Writer) *cobra.Command {
	var (
		baseURL string
		apiKey  string
		timeout time.Duration
	)

	root := &cobra.Command{
		Use:           "bridge",
		Short:         "Client for the LLM task gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			client.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
			client.apiKey = strings.TrimSpace(apiKey)
			client.httpClient = &http.Client{Timeout: timeout}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New("missing command\n" + cmd.UsageString())
			}
			return fmt.Errorf("unknown command %q", args[0])
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&baseURL, "base-url", envOrDefault("BRIDGE_BASE_URL", "http://localhost:8000"), "gateway base URL")
	flags.StringVar(&apiKey, "api-key", strings.TrimSpace(os.Getenv("BRIDGE_API_KEY")), "API key sent as X-Api-Key")
	flags.DurationVar(&timeout, "timeout", 60*time.Second, "HTTP timeout, e.g. 60s")

	root.AddCommand(
		newHealthCommand(client, stdout),
		newExecuteCommand(client, stdout),
		newAnalyzeCommand(client, stdout),
		newGenerateConnectorCommand(client, stdout),
		newGenerateTestsCommand(client, stdout),
		newFixCommand(client, stdout),
		newJobCommand(client, stdout),
	)
	return root
}

func runRequest(ctx context.Context, client *apiClient, stdout io.Writer, method string, path string, payload any) error {
	body, err := client.do(ctx, method, path, payload)
	if err != nil {
		return &commandError{err: err}
	}
	if err := writeStructuredJSON(stdout, body); err != nil {
		return &commandError{err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *apiClient) do(ctx context.Context, method string, path string, payload any) ([]byte, error) {
	requestURL, err := c.resolveURL(path)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	responseBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	if res.StatusCode >= 400 {
		apiErr := &apiError{
			Status:  res.StatusCode,
			Code:    "http_error",
			Message: strings.TrimSpace(string(responseBody)),
		}

		var envelope struct {
			Detail    string `json:"detail"`
			Code      string `json:"code"`
			RequestID string `json:"requestId"`
		}
		if err := json.Unmarshal(responseBody, &envelope); err == nil && envelope.Detail != "" {
			if envelope.Code != "" {
				apiErr.Code = envelope.Code
			}
			apiErr.Message = envelope.Detail
			apiErr.RequestID = envelope.RequestID
		}
		return nil, apiErr
	}

	return responseBody, nil
}

func (c *apiClient) resolveURL(path string) (string, error) {
	base := strings.TrimSpace(c.baseURL)
	if base == "" {
		return "", errors.New("base URL is required")
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	pathURL, err := url.Parse(path)
	if err != nil {
		return "", err
	}

	return baseURL.ResolveReference(pathURL).String(), nil
}

func writeStructuredJSON(output io.Writer, body []byte) error {
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return err
	}

	encoder := json.NewEncoder(output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func writeCLIError(output io.Writer, code string, message string, status int) {
	payload := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
	if status > 0 {
		payload["error"].(map[string]any)["status"] = status
	}

	encoder := json.NewEncoder(output)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(payload)
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
