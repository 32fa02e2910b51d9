package provider

import (
	"context"
	"time"
)

// CallLog describes one provider operation for audit logging.
type CallLog struct {
	Timestamp  time.Time      `json:"timestamp"`
	Kind       string         `json:"kind"` // payment or shipping
	Provider   string         `json:"provider"`
	Operation  string         `json:"operation"`
	Reference  string         `json:"reference,omitempty"`
	Status     string         `json:"status,omitempty"`
	Amount     float64        `json:"amount,omitempty"`
	Currency   string         `json:"currency,omitempty"`
	DurationMs int64          `json:"duration_ms"`
	Replayed   bool           `json:"replayed,omitempty"`
	Error      string         `json:"error,omitempty"`
	Fields     map[string]any `json:"fields,omitempty"`
}

// CallRecorder persists provider call logs. Implementations must not block for long.
type CallRecorder interface {
	RecordCall(ctx context.Context, call CallLog)
}

// NopRecorder discards call logs.
type NopRecorder struct{}

func (NopRecorder) RecordCall(context.Context, CallLog) {}
