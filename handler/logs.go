package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mstgnz/storegate/infra/response"
	"github.com/mstgnz/storegate/provider"
)

// CallLogSearcher queries recorded provider calls
type CallLogSearcher interface {
	SearchCalls(ctx context.Context, kind, providerName string, query map[string]any) ([]provider.CallLog, error)
	GetReferenceCalls(ctx context.Context, kind, providerName, reference string) ([]provider.CallLog, error)
	GetRecentErrorCalls(ctx context.Context, kind, providerName string, hours int) ([]provider.CallLog, error)
	GetProviderStats(ctx context.Context, kind, providerName string, hours int) (map[string]any, error)
}

// LogsHandler handles call log queries
type LogsHandler struct {
	logger CallLogSearcher
}

// NewLogsHandler creates a new logs handler; logger may be nil when logging is off
func NewLogsHandler(logger CallLogSearcher) *LogsHandler {
	return &LogsHandler{logger: logger}
}

// ListLogs lists the calls of a provider filtered by operation, status and time range
func (h *LogsHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	kind, name, ok := h.prepare(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	hours := parseHours(r)
	must := []map[string]any{
		{"range": map[string]any{"timestamp": map[string]any{"gte": fmt.Sprintf("now-%dh", hours)}}},
	}
	if operation := r.URL.Query().Get("operation"); operation != "" {
		must = append(must, map[string]any{"term": map[string]any{"operation": operation}})
	}
	if status := r.URL.Query().Get("status"); status != "" {
		must = append(must, map[string]any{"term": map[string]any{"status": status}})
	}
	if r.URL.Query().Get("errorsOnly") == "true" {
		must = append(must, map[string]any{"exists": map[string]any{"field": "error"}})
	}

	logs, err := h.logger.SearchCalls(ctx, kind, name, map[string]any{
		"bool": map[string]any{"must": must},
	})
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to search logs", err)
		return
	}

	response.Success(w, http.StatusOK, "Logs retrieved successfully", map[string]any{
		"kind":     kind,
		"provider": name,
		"filters": map[string]any{
			"hours":      hours,
			"operation":  r.URL.Query().Get("operation"),
			"status":     r.URL.Query().Get("status"),
			"errorsOnly": r.URL.Query().Get("errorsOnly") == "true",
		},
		"count": len(logs),
		"logs":  logs,
	})
}

// GetReferenceLogs returns every call made for a payment id, order id or tracking number
func (h *LogsHandler) GetReferenceLogs(w http.ResponseWriter, r *http.Request) {
	kind, name, ok := h.prepare(w, r)
	if !ok {
		return
	}

	reference := chi.URLParam(r, "reference")
	if reference == "" {
		response.Error(w, http.StatusBadRequest, "reference parameter is required", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	logs, err := h.logger.GetReferenceCalls(ctx, kind, name, reference)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to retrieve logs", err)
		return
	}

	response.Success(w, http.StatusOK, "Logs retrieved successfully", map[string]any{
		"kind":      kind,
		"provider":  name,
		"reference": reference,
		"count":     len(logs),
		"logs":      logs,
	})
}

// GetErrorLogs retrieves recent failed calls of a provider
func (h *LogsHandler) GetErrorLogs(w http.ResponseWriter, r *http.Request) {
	kind, name, ok := h.prepare(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	hours := parseHours(r)
	logs, err := h.logger.GetRecentErrorCalls(ctx, kind, name, hours)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to get error logs", err)
		return
	}

	response.Success(w, http.StatusOK, "Error logs retrieved successfully", map[string]any{
		"kind":     kind,
		"provider": name,
		"hours":    hours,
		"count":    len(logs),
		"logs":     logs,
	})
}

// GetLogStats aggregates call counts and latency of a provider
func (h *LogsHandler) GetLogStats(w http.ResponseWriter, r *http.Request) {
	kind, name, ok := h.prepare(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	hours := parseHours(r)
	stats, err := h.logger.GetProviderStats(ctx, kind, name, hours)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to get log statistics", err)
		return
	}

	response.Success(w, http.StatusOK, "Log statistics retrieved successfully", map[string]any{
		"kind":     kind,
		"provider": name,
		"hours":    hours,
		"stats":    stats,
	})
}

func (h *LogsHandler) prepare(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	if h.logger == nil {
		response.Error(w, http.StatusServiceUnavailable, "Logging service not available", nil)
		return "", "", false
	}

	kind, name, err := resolveProvider(r)
	if err != nil {
		writeProviderError(w, "", "Unknown provider", err)
		return "", "", false
	}
	return kind, name, true
}

// parseHours reads the hours query parameter; default 24, max 7 days
func parseHours(r *http.Request) int {
	hours := 24
	if v := r.URL.Query().Get("hours"); v != "" {
		if h, err := strconv.Atoi(v); err == nil && h > 0 && h <= 168 {
			hours = h
		}
	}
	return hours
}
