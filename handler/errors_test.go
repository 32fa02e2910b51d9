package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mstgnz/storegate/infra/config"
	"github.com/mstgnz/storegate/provider"
	"github.com/stretchr/testify/assert"
)

func TestStatusForError(t *testing.T) {
	notConfigured := fmt.Errorf("%w: paytr is not configured: %w", provider.ErrInvalidConfig, config.ErrConfigNotFound)
	cancelled := provider.ClassifyCancellation(canceledContext(), fmt.Errorf("%w: deadline", provider.ErrTimeout))

	tests := []struct {
		name string
		err  error
		want int
		code string
	}{
		{"unsupported", fmt.Errorf("%w: foo", provider.ErrUnsupportedProvider), http.StatusNotFound, "unsupported_provider"},
		{"not configured", notConfigured, http.StatusServiceUnavailable, "invalid_config"},
		{"invalid config", fmt.Errorf("%w: missing merchantKey", provider.ErrInvalidConfig), http.StatusUnprocessableEntity, "invalid_config"},
		{"invalid request", provider.InvalidRequestf("order id is required"), http.StatusBadRequest, "invalid_request"},
		{"outcome unknown wins over timeout", cancelled, http.StatusAccepted, "outcome_unknown"},
		{"timeout", fmt.Errorf("%w: 30s", provider.ErrTimeout), http.StatusGatewayTimeout, "timeout"},
		{"rejected", provider.Rejectedf("card declined"), http.StatusBadGateway, "rejected"},
		{"transient", fmt.Errorf("%w: 503", provider.ErrTransient), http.StatusBadGateway, "transient"},
		{"plain", errors.New("boom"), http.StatusBadGateway, "provider_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusForError(tt.err))
			assert.Equal(t, tt.code, provider.ErrorCode(tt.err))
		})
	}
}

func TestWriteProviderError(t *testing.T) {
	w := httptest.NewRecorder()
	writeProviderError(w, "paytr", "Payment failed", provider.Rejectedf("insufficient funds"))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	resp := decodeResponse(t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, "Payment failed", resp.Message)
	assert.Equal(t, "rejected", resp.ErrorCode)
	assert.Contains(t, resp.Error, "insufficient funds")
}

func canceledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}
