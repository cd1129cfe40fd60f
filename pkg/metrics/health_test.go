package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetHealth(t *testing.T) {
	t.Helper()
	healthChecker = newHealthChecker()
}

func TestGetHealth(t *testing.T) {
	tests := []struct {
		name       string
		setup      func()
		wantStatus string
		wantComps  map[string]string
	}{
		{
			name:       "no components",
			setup:      func() {},
			wantStatus: "healthy",
			wantComps:  map[string]string{},
		},
		{
			name: "all healthy",
			setup: func() {
				UpdateComponent(ComponentStore, true, "")
				UpdateComponent(ComponentBrowser, true, "")
			},
			wantStatus: "healthy",
			wantComps: map[string]string{
				ComponentStore:   "healthy",
				ComponentBrowser: "healthy",
			},
		},
		{
			name: "browser unreachable",
			setup: func() {
				UpdateComponent(ComponentStore, true, "")
				UpdateComponent(ComponentBrowser, false, "devtools endpoint refused connection")
			},
			wantStatus: "unhealthy",
			wantComps: map[string]string{
				ComponentStore:   "healthy",
				ComponentBrowser: "unhealthy: devtools endpoint refused connection",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetHealth(t)
			tt.setup()

			health := GetHealth()
			assert.Equal(t, tt.wantStatus, health.Status)
			assert.Equal(t, tt.wantComps, health.Components)
			assert.NotEmpty(t, health.Uptime)
		})
	}
}

func TestGetReadiness(t *testing.T) {
	tests := []struct {
		name       string
		setup      func()
		wantStatus string
	}{
		{
			name: "all critical components ready",
			setup: func() {
				UpdateComponent(ComponentStore, true, "")
				UpdateComponent(ComponentBrowser, true, "")
				UpdateComponent(ComponentAPI, true, "")
			},
			wantStatus: "ready",
		},
		{
			name: "store not registered",
			setup: func() {
				UpdateComponent(ComponentBrowser, true, "")
				UpdateComponent(ComponentAPI, true, "")
			},
			wantStatus: "not_ready",
		},
		{
			name: "browser unhealthy",
			setup: func() {
				UpdateComponent(ComponentStore, true, "")
				UpdateComponent(ComponentBrowser, false, "ping failed")
				UpdateComponent(ComponentAPI, true, "")
			},
			wantStatus: "not_ready",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetHealth(t)
			tt.setup()

			readiness := GetReadiness()
			assert.Equal(t, tt.wantStatus, readiness.Status)
			if tt.wantStatus == "not_ready" {
				assert.NotEmpty(t, readiness.Message)
			}
		})
	}
}

func TestHealthHandlers(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		setup      func()
		wantCode   int
		wantStatus string
	}{
		{
			name:    "health ok",
			handler: HealthHandler(),
			setup: func() {
				UpdateComponent(ComponentStore, true, "")
			},
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
		},
		{
			name:    "health unhealthy",
			handler: HealthHandler(),
			setup: func() {
				UpdateComponent(ComponentStore, false, "database locked")
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "unhealthy",
		},
		{
			name:    "ready",
			handler: ReadyHandler(),
			setup: func() {
				UpdateComponent(ComponentStore, true, "")
				UpdateComponent(ComponentBrowser, true, "")
				UpdateComponent(ComponentAPI, true, "")
			},
			wantCode:   http.StatusOK,
			wantStatus: "ready",
		},
		{
			name:       "not ready",
			handler:    ReadyHandler(),
			setup:      func() {},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "not_ready",
		},
		{
			name:       "alive",
			handler:    LivenessHandler(),
			setup:      func() {},
			wantCode:   http.StatusOK,
			wantStatus: "alive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetHealth(t)
			SetVersion("test")
			tt.setup()

			w := httptest.NewRecorder()
			tt.handler(w, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.wantStatus, body["status"])
		})
	}
}

func TestUpdateComponentOverwrites(t *testing.T) {
	resetHealth(t)

	UpdateComponent("store", true, "ok")
	UpdateComponent("store", false, "error")

	comp := healthChecker.components["store"]
	assert.False(t, comp.Healthy)
	assert.Equal(t, "error", comp.Message)
}
