package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
)

const maxErrorBodyBytes = 4096

// ProviderHTTPError is returned when a provider answers with a non-2xx status.
type ProviderHTTPError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderHTTPError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Sprintf("%s request failed with status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s request failed with status %d: %s", e.Provider, e.StatusCode, e.Message)
}

func newProviderHTTPError(provider string, response *http.Response) *ProviderHTTPError {
	body, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBodyBytes))
	return &ProviderHTTPError{
		Provider:   provider,
		StatusCode: response.StatusCode,
		Message:    strings.TrimSpace(string(body)),
	}
}

// providerErrorCategory buckets a provider failure into a low-cardinality
// label for metrics and logs.
func providerErrorCategory(err error) string {
	if err == nil {
		return "none"
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}

	var httpErr *ProviderHTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusUnauthorized || httpErr.StatusCode == http.StatusForbidden:
			return "auth"
		case httpErr.StatusCode == http.StatusTooManyRequests:
			return "rate_limited"
		case httpErr.StatusCode >= http.StatusInternalServerError:
			return "upstream_5xx"
		default:
			return "upstream_4xx"
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "timeout"
		}
		return "network"
	}

	message := strings.ToLower(err.Error())
	for _, token := range []string{"connection reset", "connection refused", "broken pipe", "eof"} {
		if strings.Contains(message, token) {
			return "network"
		}
	}
	return "other"
}
