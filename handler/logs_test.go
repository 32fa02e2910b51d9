package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/mstgnz/storegate/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCallLogSearcher struct {
	lastKind     string
	lastProvider string
	lastQuery    map[string]any
	lastHours    int
	err          error
}

func (m *mockCallLogSearcher) SearchCalls(ctx context.Context, kind, providerName string, query map[string]any) ([]provider.CallLog, error) {
	m.lastKind, m.lastProvider, m.lastQuery = kind, providerName, query
	if m.err != nil {
		return nil, m.err
	}
	return []provider.CallLog{{Kind: kind, Provider: providerName, Operation: "createShipment"}}, nil
}

func (m *mockCallLogSearcher) GetReferenceCalls(ctx context.Context, kind, providerName, reference string) ([]provider.CallLog, error) {
	m.lastKind, m.lastProvider = kind, providerName
	return []provider.CallLog{
		{Provider: providerName, Operation: "createShipment", Reference: reference},
		{Provider: providerName, Operation: "trackShipment", Reference: reference},
	}, nil
}

func (m *mockCallLogSearcher) GetRecentErrorCalls(ctx context.Context, kind, providerName string, hours int) ([]provider.CallLog, error) {
	m.lastKind, m.lastProvider, m.lastHours = kind, providerName, hours
	return nil, nil
}

func (m *mockCallLogSearcher) GetProviderStats(ctx context.Context, kind, providerName string, hours int) (map[string]any, error) {
	m.lastHours = hours
	return map[string]any{"hits": map[string]any{"total": 3}}, nil
}

func logsRouter(searcher CallLogSearcher) http.Handler {
	h := NewLogsHandler(searcher)
	r := chi.NewRouter()
	r.Get("/v1/logs/{kind}/{provider}", h.ListLogs)
	r.Get("/v1/logs/{kind}/{provider}/errors", h.GetErrorLogs)
	r.Get("/v1/logs/{kind}/{provider}/stats", h.GetLogStats)
	r.Get("/v1/logs/{kind}/{provider}/reference/{reference}", h.GetReferenceLogs)
	return r
}

func TestLogsHandler_ListLogs(t *testing.T) {
	searcher := &mockCallLogSearcher{}
	w := doRequest(t, logsRouter(searcher), http.MethodGet, "/v1/logs/shipping/handler%20fake?hours=48&operation=createShipment&errorsOnly=true", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, "shipping", searcher.lastKind)
	assert.Equal(t, fakeCarrierName, searcher.lastProvider)

	must := searcher.lastQuery["bool"].(map[string]any)["must"].([]map[string]any)
	assert.Len(t, must, 3)
	assert.Equal(t, "now-48h", must[0]["range"].(map[string]any)["timestamp"].(map[string]any)["gte"])

	var data struct {
		Count int `json:"count"`
	}
	decodeData(t, decodeResponse(t, w), &data)
	assert.Equal(t, 1, data.Count)
}

func TestLogsHandler_SearchFailure(t *testing.T) {
	searcher := &mockCallLogSearcher{err: errors.New("logging is disabled")}
	w := doRequest(t, logsRouter(searcher), http.MethodGet, "/v1/logs/shipping/handlerfake", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestLogsHandler_ReferenceErrorsStats(t *testing.T) {
	searcher := &mockCallLogSearcher{}
	router := logsRouter(searcher)

	w := doRequest(t, router, http.MethodGet, "/v1/logs/shipping/handlerfake/reference/ORD-500", "")
	require.Equal(t, http.StatusOK, w.Code)
	var ref struct {
		Reference string `json:"reference"`
		Count     int    `json:"count"`
	}
	decodeData(t, decodeResponse(t, w), &ref)
	assert.Equal(t, "ORD-500", ref.Reference)
	assert.Equal(t, 2, ref.Count)

	w = doRequest(t, router, http.MethodGet, "/v1/logs/shipping/handlerfake/errors?hours=1000", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 24, searcher.lastHours)

	w = doRequest(t, router, http.MethodGet, "/v1/logs/shipping/handlerfake/stats?hours=6", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 6, searcher.lastHours)
}

func TestLogsHandler_Unavailable(t *testing.T) {
	w := doRequest(t, logsRouter(nil), http.MethodGet, "/v1/logs/shipping/handlerfake", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doRequest(t, logsRouter(&mockCallLogSearcher{}), http.MethodGet, "/v1/logs/billing/handlerfake", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, logsRouter(&mockCallLogSearcher{}), http.MethodGet, "/v1/logs/payment/unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
