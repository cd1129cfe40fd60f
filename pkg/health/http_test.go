package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPChecker_StatusRange(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		rangeMin    int
		rangeMax    int
		wantHealthy bool
	}{
		{name: "ok", status: http.StatusOK, rangeMin: 200, rangeMax: 399, wantHealthy: true},
		{name: "server error", status: http.StatusInternalServerError, rangeMin: 200, rangeMax: 399, wantHealthy: false},
		{name: "created in custom range", status: http.StatusCreated, rangeMin: 200, rangeMax: 299, wantHealthy: true},
		{name: "redirect outside custom range", status: http.StatusFound, rangeMin: 200, rangeMax: 299, wantHealthy: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			checker := NewHTTPChecker(server.URL).WithStatusRange(tt.rangeMin, tt.rangeMax)
			checker.Client.CheckRedirect = func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			}

			result := checker.Check(context.Background())
			assert.Equal(t, tt.wantHealthy, result.Healthy, result.Message)
			assert.Positive(t, result.Duration)
		})
	}
}

func TestHTTPChecker_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	checker := NewHTTPChecker(server.URL).WithTimeout(50 * time.Millisecond)
	result := checker.Check(context.Background())
	assert.False(t, result.Healthy)
}

func TestHTTPChecker_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := NewHTTPChecker(server.URL).Check(ctx)
	assert.False(t, result.Healthy)
}

func TestCDPChecker(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantHealthy bool
		wantMessage string
	}{
		{
			name:        "browser answers",
			body:        `{"Browser":"HeadlessChrome/130.0.6723.58","Protocol-Version":"1.3"}`,
			wantHealthy: true,
			wantMessage: "HeadlessChrome/130.0.6723.58",
		},
		{
			name:        "not a devtools endpoint",
			body:        `{"hello":"world"}`,
			wantHealthy: false,
			wantMessage: "version response names no browser",
		},
		{
			name:        "garbage",
			body:        `<html>`,
			wantHealthy: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/json/version" {
					w.WriteHeader(http.StatusNotFound)
					return
				}
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			checker, err := NewCDPChecker(server.URL, time.Second)
			require.NoError(t, err)

			result := checker.Check(context.Background())
			assert.Equal(t, tt.wantHealthy, result.Healthy, result.Message)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, result.Message)
			}
		})
	}
}

func TestVersionURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "http://127.0.0.1:9222", want: "http://127.0.0.1:9222/json/version"},
		{in: "ws://127.0.0.1:9222/devtools/browser/abc-123", want: "http://127.0.0.1:9222/json/version"},
		{in: "wss://browser.internal/devtools/browser/x?token=1", want: "https://browser.internal/json/version"},
		{in: "127.0.0.1:9222", wantErr: true},
		{in: "ftp://host", wantErr: true},
		{in: "http://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := VersionURL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHTTPChecker_Type(t *testing.T) {
	assert.Equal(t, CheckTypeHTTP, NewHTTPChecker("http://example.com").Type())
}
