package opensearch

import (
	"context"
	"net/http"
	"testing"

	"github.com/mstgnz/storegate/infra/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.AppConfig
	}{
		{
			name: "no_auth",
			cfg:  &config.AppConfig{OpenSearchURL: "http://localhost:9200"},
		},
		{
			name: "with_auth",
			cfg: &config.AppConfig{
				OpenSearchURL:  "http://localhost:9200",
				OpenSearchUser: "admin",
				OpenSearchPass: "admin",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.cfg)
			require.NoError(t, err)
			assert.NotNil(t, client.GetClient())
			assert.False(t, client.IsEnabled())
		})
	}
}

func TestClient_SetupIndices(t *testing.T) {
	_, cluster := newFakeClient(t, true)

	for _, index := range []string{
		"/storegate-system-logs",
		"/storegate-payment-calls",
		"/storegate-shipping-calls",
		"/storegate-notification-calls",
	} {
		created := cluster.find(http.MethodPut, index)
		require.Len(t, created, 1, index)
		assert.Contains(t, created[0].Body, `"mappings"`)
	}
}

func TestClient_SetupSkippedWhenDisabled(t *testing.T) {
	_, cluster := newFakeClient(t, false)
	assert.Empty(t, cluster.find(http.MethodPut, "/storegate-system-logs"))
}

func TestClient_IndexNames(t *testing.T) {
	client, _ := newFakeClient(t, false)

	assert.Equal(t, "storegate-payment-calls", client.GetCallIndexName("payment"))
	assert.Equal(t, "storegate-shipping-calls", client.GetCallIndexName("Shipping"))
	assert.Equal(t, "storegate-unknown-calls", client.GetCallIndexName(""))
	assert.Equal(t, "storegate-system-logs", client.GetSystemIndexName())
}

func TestClient_Ping(t *testing.T) {
	client, _ := newFakeClient(t, false)
	assert.NoError(t, client.Ping(context.Background()))
}
