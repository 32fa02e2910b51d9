package opensearch

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/mstgnz/storegate/infra/config"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

// fakeCluster answers the handful of OpenSearch endpoints the client uses
type fakeCluster struct {
	mu         sync.Mutex
	requests   []recordedRequest
	searchBody string
	failIndex  bool
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: string(body)})
	searchBody, failIndex := f.searchBody, f.failIndex
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodHead && r.URL.Path == "/":
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodHead:
		w.WriteHeader(http.StatusNotFound)
	case r.Method == http.MethodGet && r.URL.Path == "/":
		_, _ = io.WriteString(w, `{"version":{"number":"2.11.0","distribution":"opensearch"}}`)
	case strings.HasSuffix(r.URL.Path, "/_search"):
		if searchBody == "" {
			searchBody = `{"hits":{"hits":[]}}`
		}
		_, _ = io.WriteString(w, searchBody)
	case strings.HasSuffix(r.URL.Path, "/_doc"):
		if failIndex {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"mapper_parsing_exception"}`)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"result":"created"}`)
	default:
		_, _ = io.WriteString(w, `{"acknowledged":true}`)
	}
}

func (f *fakeCluster) set(searchBody string, failIndex bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchBody, f.failIndex = searchBody, failIndex
}

func (f *fakeCluster) find(method, path string) []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []recordedRequest
	for _, req := range f.requests {
		if req.Method == method && req.Path == path {
			out = append(out, req)
		}
	}
	return out
}

func newFakeClient(t *testing.T, enabled bool) (*Client, *fakeCluster) {
	t.Helper()

	cluster := &fakeCluster{}
	server := httptest.NewServer(cluster)
	t.Cleanup(server.Close)

	client, err := NewClient(&config.AppConfig{
		OpenSearchURL: server.URL,
		EnableLogging: enabled,
	})
	require.NoError(t, err)
	return client, cluster
}

func decodeBody(t *testing.T, body string) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	return out
}
