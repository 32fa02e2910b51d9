package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/mstgnz/storegate/infra/config"
	"github.com/mstgnz/storegate/infra/response"
)

// Pinger is a dependency that can report its reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	storage   Pinger
	search    Pinger
	payments  PaymentService
	carriers  ShippingDispatcher
	startTime time.Time
}

// HealthStatus represents overall system health
type HealthStatus struct {
	Status      string                    `json:"status"`
	Version     string                    `json:"version"`
	Timestamp   time.Time                 `json:"timestamp"`
	Uptime      string                    `json:"uptime"`
	Environment string                    `json:"environment"`
	Services    map[string]*ServiceHealth `json:"services"`
	Providers   *ProvidersHealth          `json:"providers"`
	System      *SystemHealth             `json:"system"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status       string `json:"status"`
	Healthy      bool   `json:"healthy"`
	ResponseTime string `json:"response_time,omitempty"`
	Description  string `json:"description,omitempty"`
	Error        string `json:"error,omitempty"`
}

// ProvidersHealth counts the usable providers of each kind
type ProvidersHealth struct {
	Payment  ProviderCount `json:"payment"`
	Shipping ProviderCount `json:"shipping"`
}

// ProviderCount is the number of registered and configured providers
type ProviderCount struct {
	Registered int `json:"registered"`
	Configured int `json:"configured"`
}

// SystemHealth represents system resource health
type SystemHealth struct {
	Alloc      string `json:"alloc"`
	Sys        string `json:"sys"`
	GCRuns     uint32 `json:"gc_runs"`
	GoRoutines int    `json:"goroutines"`
}

// NewHealthHandler creates a new health handler. search may be nil when OpenSearch is off.
func NewHealthHandler(storage, search Pinger, payments PaymentService, carriers ShippingDispatcher) *HealthHandler {
	return &HealthHandler{
		storage:   storage,
		search:    search,
		payments:  payments,
		carriers:  carriers,
		startTime: time.Now(),
	}
}

// CheckHealth reports storage, log sink and provider state
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := &HealthStatus{
		Version:     "1.0.0",
		Timestamp:   time.Now().UTC(),
		Uptime:      time.Since(h.startTime).Round(time.Second).String(),
		Environment: config.GetEnv("ENVIRONMENT", "development"),
		Services: map[string]*ServiceHealth{
			"sqlite":     checkPinger(ctx, h.storage, "Provider settings and idempotency store"),
			"opensearch": checkPinger(ctx, h.search, "Call and system log sink"),
		},
		Providers: h.checkProviders(),
		System:    checkSystem(),
	}
	health.Status = determineOverallStatus(health)

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	_ = response.WriteJSON(w, statusCode, response.Response{
		Code:    statusCode,
		Success: health.Status != "unhealthy",
		Message: fmt.Sprintf("Service is %s", health.Status),
		Data:    health,
	})
}

func checkPinger(ctx context.Context, p Pinger, description string) *ServiceHealth {
	if p == nil {
		return &ServiceHealth{Status: "not_configured", Description: description}
	}

	start := time.Now()
	err := p.Ping(ctx)
	svc := &ServiceHealth{
		ResponseTime: fmt.Sprintf("%dms", time.Since(start).Milliseconds()),
		Description:  description,
	}
	if err != nil {
		svc.Status = "unhealthy"
		svc.Error = err.Error()
		return svc
	}
	svc.Status = "healthy"
	svc.Healthy = true
	return svc
}

func (h *HealthHandler) checkProviders() *ProvidersHealth {
	ph := &ProvidersHealth{}
	if h.payments != nil {
		for _, info := range h.payments.Providers() {
			ph.Payment.Registered++
			if info.Configured {
				ph.Payment.Configured++
			}
		}
	}
	if h.carriers != nil {
		for _, info := range h.carriers.Providers() {
			ph.Shipping.Registered++
			if info.Configured {
				ph.Shipping.Configured++
			}
		}
	}
	return ph
}

func checkSystem() *SystemHealth {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	return &SystemHealth{
		Alloc:      formatBytes(memStats.Alloc),
		Sys:        formatBytes(memStats.Sys),
		GCRuns:     memStats.NumGC,
		GoRoutines: runtime.NumGoroutine(),
	}
}

// determineOverallStatus: storage down is fatal, a missing log sink or
// no configured provider only degrades
func determineOverallStatus(health *HealthStatus) string {
	if svc := health.Services["sqlite"]; svc != nil && svc.Status == "unhealthy" {
		return "unhealthy"
	}
	if svc := health.Services["opensearch"]; svc != nil && svc.Status == "unhealthy" {
		return "degraded"
	}
	if health.Providers != nil && health.Providers.Payment.Configured+health.Providers.Shipping.Configured == 0 {
		return "degraded"
	}
	return "healthy"
}

func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
