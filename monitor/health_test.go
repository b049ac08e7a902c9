package monitor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/alfredmq/alfred-go/contracts"
)

func staticChecker(name string, status Status) Checker {
	return NewCheckerFunc(name, func(ctx context.Context) CheckResult {
		return CheckResult{Status: status, Timestamp: time.Now()}
	})
}

func TestRegistry_Register(t *testing.T) {
	registry := NewRegistry()
	registry.Register(staticChecker("checker1", StatusHealthy))
	registry.Register(staticChecker("checker2", StatusDegraded))
	registry.Register(staticChecker("checker1", StatusUnhealthy))

	registry.mu.RLock()
	assert.Equal(t, 2, len(registry.checkers))
	registry.mu.RUnlock()

	health := registry.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, health.Checks["checker1"].Status)
}

func TestRegistry_Check(t *testing.T) {
	t.Run("no checkers is healthy", func(t *testing.T) {
		health := NewRegistry().Check(context.Background())
		assert.Equal(t, StatusHealthy, health.Status)
		assert.Empty(t, health.Checks)
	})

	t.Run("worst status wins", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register(staticChecker("healthy", StatusHealthy))
		registry.Register(staticChecker("degraded", StatusDegraded))

		health := registry.Check(context.Background())
		assert.Equal(t, StatusDegraded, health.Status)
		assert.Equal(t, "degraded", health.Checks["degraded"].Name)

		registry.Register(staticChecker("unhealthy", StatusUnhealthy))
		health = registry.Check(context.Background())
		assert.Equal(t, StatusUnhealthy, health.Status)
		assert.Len(t, health.Checks, 3)
	})

	t.Run("timeout is unhealthy", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register(NewCheckerFunc("slow", func(ctx context.Context) CheckResult {
			<-ctx.Done()
			time.Sleep(50 * time.Millisecond)
			return CheckResult{Status: StatusHealthy}
		}))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		health := registry.Check(ctx)
		assert.Equal(t, StatusUnhealthy, health.Status)
		assert.Equal(t, StatusUnhealthy, health.Checks["slow"].Status)
	})
}

func TestPeerChecker(t *testing.T) {
	dir := NewDirectory()
	checker := PeerChecker(dir, 1)
	assert.Equal(t, "peers", checker.Name())
	assert.Equal(t, StatusDegraded, checker.Check(context.Background()).Status)

	dir.Observe(contracts.ModuleInfoResponseTopic, contracts.NewModuleInfoMessage("cron", nil))
	result := checker.Check(context.Background())
	assert.Equal(t, StatusHealthy, result.Status)
	assert.Equal(t, "1 peers known", result.Message)
}

func TestHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		code   int
	}{
		{"healthy", StatusHealthy, http.StatusOK},
		{"degraded", StatusDegraded, http.StatusOK},
		{"unhealthy", StatusUnhealthy, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewRegistry()
			registry.Register(staticChecker("test", tt.status))

			w := httptest.NewRecorder()
			NewHandler(registry, time.Second).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.Contains(t, w.Body.String(), "\"status\": \""+string(tt.status)+"\"")
		})
	}

	t.Run("method not allowed", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewHandler(NewRegistry(), time.Second).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/healthz", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func TestServeMux(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewPrometheusCollector(reg)
	assert.NoError(t, err)
	collector.RecordError("publish")

	mux := NewServeMux(MetricsHandler(reg), NewRegistry())

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alive", w.Body.String())

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `alfred_errors_total{op="publish"} 1`)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRuntimeChecker(t *testing.T) {
	result := NewRuntimeChecker(0, 0).Check(context.Background())
	assert.Equal(t, "runtime", result.Name)
	assert.Equal(t, StatusHealthy, result.Status)
	assert.Contains(t, result.Details, "goroutines")

	result = NewRuntimeChecker(1, 1_000_000).Check(context.Background())
	assert.Equal(t, StatusDegraded, result.Status)

	result = NewRuntimeChecker(1, 1).Check(context.Background())
	assert.Equal(t, StatusUnhealthy, result.Status)
}
