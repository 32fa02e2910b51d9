package payment_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"github.com/mstgnz/storegate/payment"
	_ "github.com/mstgnz/storegate/payment/kuveytturk"
	_ "github.com/mstgnz/storegate/payment/paytr"
	_ "github.com/mstgnz/storegate/payment/vakifbank"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatewayBackend answers the payment-start call of every bundled gateway
func gatewayBackend(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.ReadAll(r.Body)
		switch r.URL.Path {
		case "/odeme/api/get-token":
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"status":"success","token":"tok-shared"}`)
		case "/CommonPayment/api/RegisterTransaction":
			w.Header().Set("Content-Type", "application/xml")
			_, _ = io.WriteString(w, `<CommonPaymentResponse><PaymentToken>ptkn-shared</PaymentToken><ResultCode>0000</ResultCode></CommonPaymentResponse>`)
		case "/ThreeDModelPayGate":
			w.Header().Set("Content-Type", "text/html")
			_, _ = io.WriteString(w, `<html><body><form action="https://acs.example.com" method="post"></form></body></html>`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func bundledGatewaySettings(endpoint string) map[string]map[string]string {
	return map[string]map[string]string{
		"paytr": {
			"merchantId":   "123456",
			"merchantKey":  "paytr-key",
			"merchantSalt": "paytr-salt",
			"endpoint":     endpoint,
		},
		"vakifbank": {
			"merchantId": "000100000013506",
			"terminalId": "VP000579",
			"password":   "123456",
			"endpoint":   endpoint,
		},
		"kuveytturk": {
			"merchantId":   "496",
			"customerCode": "400235",
			"username":     "apitest",
			"password":     "api123",
			"endpoint":     endpoint,
		},
	}
}

func sharedRequest(currency string) payment.Request {
	return payment.Request{
		OrderID:  "ORD-1",
		Amount:   100.5,
		Currency: currency,
		Customer: payment.Customer{
			Name:    "Ayşe",
			Surname: "Yılmaz",
			Email:   "ayse@example.com",
			Phone:   "5551234567",
			IP:      "85.34.78.112",
		},
		Items:      []payment.Item{{ID: "SKU-1", Name: "Kahve", Price: 100.5, Quantity: 1}},
		SuccessURL: "https://shop.example.com/ok",
		CancelURL:  "https://shop.example.com/fail",
	}
}

func TestBundledGateways_SameRequestSameShape(t *testing.T) {
	server := gatewayBackend(t)
	settings := bundledGatewaySettings(server.URL)

	covered := 0
	for _, name := range payment.SupportedProviders() {
		values, ok := settings[name]
		if !ok {
			continue
		}
		covered++

		for _, currency := range []string{"TRY", "TL"} {
			t.Run(name+"/"+currency, func(t *testing.T) {
				p, err := payment.Create(name, payment.ConfigFromMap(name, values))
				require.NoError(t, err)
				assert.True(t, p.ValidateConfig())
				assert.NotEmpty(t, p.ProviderName())

				req := sharedRequest(currency)
				before := time.Now()
				resp, err := p.CreatePayment(context.Background(), req)
				require.NoError(t, err)

				assert.NotEmpty(t, resp.ID)
				assert.Equal(t, p.ProviderName(), resp.Provider)
				assert.Equal(t, payment.StatusPending, resp.Status)
				assert.Equal(t, req.OrderID, resp.OrderID)
				assert.Equal(t, req.Amount, resp.Amount)
				assert.Equal(t, req.Currency, resp.Currency)
				assert.NotEmpty(t, resp.PaymentURL)
				require.NotNil(t, resp.ExpiresAt)
				assert.True(t, resp.ExpiresAt.After(before), "expiry must lie after the call")
			})
		}
	}
	assert.Equal(t, len(settings), covered, "every bundled gateway is registered")
}

func TestBundledGateways_MissingCredentialsFailFast(t *testing.T) {
	for name := range bundledGatewaySettings("") {
		t.Run(name, func(t *testing.T) {
			assert.True(t, payment.IsProviderSupported(name))
			assert.True(t, slices.Contains(payment.SupportedProviders(), name))

			_, err := payment.Create(name, payment.ConfigFromMap(name, map[string]string{}))
			assert.Error(t, err)
		})
	}
}
