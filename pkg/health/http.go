package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// HTTPChecker performs HTTP-based health checks
type HTTPChecker struct {
	// URL is the full HTTP URL to check
	URL string

	// ExpectedStatusMin is the minimum acceptable HTTP status code (default: 200)
	ExpectedStatusMin int

	// ExpectedStatusMax is the maximum acceptable HTTP status code (default: 399)
	ExpectedStatusMax int

	// Inspect, when set, validates the response body of an accepted status
	// and returns the result message
	Inspect func(resp *http.Response) (string, error)

	// Client is the HTTP client to use (allows custom configuration)
	Client *http.Client
}

// NewHTTPChecker creates a new HTTP health checker
func NewHTTPChecker(url string) *HTTPChecker {
	return &HTTPChecker{
		URL:               url,
		ExpectedStatusMin: 200,
		ExpectedStatusMax: 399,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NewCDPChecker checks a browser's DevTools endpoint. cdpURL may be the
// browser websocket URL or the plain HTTP debugging address.
func NewCDPChecker(cdpURL string, timeout time.Duration) (*HTTPChecker, error) {
	versionURL, err := VersionURL(cdpURL)
	if err != nil {
		return nil, err
	}

	c := NewHTTPChecker(versionURL).WithStatusRange(200, 299).WithTimeout(timeout)
	c.Inspect = func(resp *http.Response) (string, error) {
		var version struct {
			Browser string `json:"Browser"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&version); err != nil {
			return "", fmt.Errorf("invalid version response: %w", err)
		}
		if version.Browser == "" {
			return "", fmt.Errorf("version response names no browser")
		}
		return version.Browser, nil
	}
	return c, nil
}

// VersionURL maps a DevTools address to its /json/version endpoint
func VersionURL(cdpURL string) (string, error) {
	u, err := url.Parse(cdpURL)
	if err != nil {
		return "", fmt.Errorf("invalid CDP URL %q: %w", cdpURL, err)
	}

	switch u.Scheme {
	case "ws", "http":
		u.Scheme = "http"
	case "wss", "https":
		u.Scheme = "https"
	default:
		return "", fmt.Errorf("invalid CDP URL %q: unsupported scheme", cdpURL)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid CDP URL %q: missing host", cdpURL)
	}

	u.Path = "/json/version"
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// Check performs the HTTP health check
func (h *HTTPChecker) Check(ctx context.Context) Result {
	start := time.Now()

	// Create HTTP request with context
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("failed to create request: %v", err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	// Perform HTTP request
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

	// Check status code
	healthy := resp.StatusCode >= h.ExpectedStatusMin && resp.StatusCode <= h.ExpectedStatusMax

	message := fmt.Sprintf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	if !healthy {
		message = fmt.Sprintf("%s (expected %d-%d)", message, h.ExpectedStatusMin, h.ExpectedStatusMax)
	} else if h.Inspect != nil {
		detail, err := h.Inspect(resp)
		if err != nil {
			healthy = false
			message = err.Error()
		} else {
			message = detail
		}
	}

	return Result{
		Healthy:   healthy,
		Message:   message,
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// Type returns the health check type
func (h *HTTPChecker) Type() CheckType {
	return CheckTypeHTTP
}

// WithStatusRange sets the expected status code range
func (h *HTTPChecker) WithStatusRange(min, max int) *HTTPChecker {
	h.ExpectedStatusMin = min
	h.ExpectedStatusMax = max
	return h
}

// WithTimeout sets the HTTP client timeout
func (h *HTTPChecker) WithTimeout(timeout time.Duration) *HTTPChecker {
	h.Client.Timeout = timeout
	return h
}
