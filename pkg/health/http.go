package health

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cuemby/agentpool/pkg/types"
)

// readinessPath returns the provider-specific path that signals a backend is
// ready to accept inference requests.
func readinessPath(p types.Provider) string {
	if p == types.ProviderOllama {
		return "/api/tags"
	}
	return "/v1/models"
}

// HTTPChecker probes a backend's readiness endpoint over HTTP.
type HTTPChecker struct {
	// Provider selects the default readiness path when Path is empty.
	Provider types.Provider

	// Path overrides the provider-derived readiness path when set.
	Path string

	// Headers are custom HTTP headers sent with every probe (e.g. an API key).
	Headers map[string]string

	// Client is the HTTP client used for probes.
	Client *http.Client
}

// NewHTTPChecker creates a checker that probes provider's default readiness
// path against whatever base URL it is given.
func NewHTTPChecker(provider types.Provider) *HTTPChecker {
	return &HTTPChecker{
		Provider: provider,
		Headers:  make(map[string]string),
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// WithHeader adds a custom HTTP header to every probe request.
func (h *HTTPChecker) WithHeader(key, value string) *HTTPChecker {
	h.Headers[key] = value
	return h
}

// WithPath overrides the readiness path derived from Provider.
func (h *HTTPChecker) WithPath(path string) *HTTPChecker {
	h.Path = path
	return h
}

// WithTimeout sets the HTTP client timeout.
func (h *HTTPChecker) WithTimeout(timeout time.Duration) *HTTPChecker {
	h.Client.Timeout = timeout
	return h
}

// Check implements Checker.
func (h *HTTPChecker) Check(ctx context.Context, baseURL string) Result {
	start := time.Now()

	path := h.Path
	if path == "" {
		path = readinessPath(h.Provider)
	}
	url := strings.TrimRight(baseURL, "/") + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("failed to create request: %v", err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	for key, value := range h.Headers {
		req.Header.Set(key, value)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("request failed: %v", err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}
	defer resp.Body.Close()

	healthy := resp.StatusCode >= 200 && resp.StatusCode < 400

	message := fmt.Sprintf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	if !healthy {
		message = fmt.Sprintf("%s (expected 200-399)", message)
	}

	return Result{
		Healthy:   healthy,
		Message:   message,
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}
