package paytr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mstgnz/storegate/payment"
	"github.com/mstgnz/storegate/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testMerchantID   = "123456"
	testMerchantKey  = "test-merchant-key"
	testMerchantSalt = "test-merchant-salt"
)

func testConfig(endpoint string) payment.Config {
	return payment.Config{
		Name:         "paytr",
		MerchantID:   testMerchantID,
		MerchantKey:  testMerchantKey,
		MerchantSalt: testMerchantSalt,
		Endpoint:     endpoint,
		Mode:         payment.ModeSandbox,
		Enabled:      true,
	}
}

func testRequest() payment.Request {
	return payment.Request{
		OrderID:  "ORD-1",
		Amount:   49.99,
		Currency: "TL",
		Customer: payment.Customer{
			Name:    "Ayşe",
			Surname: "Yılmaz",
			Email:   "ayse@example.com",
			Phone:   "5551234567",
			IP:      "85.34.78.112",
		},
		Items: []payment.Item{
			{ID: "SKU-1", Name: "Kahve Fincanı", Price: 49.99, Quantity: 1},
		},
		SuccessURL: "https://shop.example.com/ok",
		CancelURL:  "https://shop.example.com/fail",
	}
}

// formServer decodes each form post and answers with the JSON returned by reply
func formServer(t *testing.T, reply func(path string, form url.Values) (int, any)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		form, err := url.ParseQuery(string(body))
		assert.NoError(t, err)

		status, payload := reply(r.URL.Path, form)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(payload)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNew_RequiresCredentials(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*payment.Config)
	}{
		{"missing_merchant_id", func(c *payment.Config) { c.MerchantID = "" }},
		{"non_numeric_merchant_id", func(c *payment.Config) { c.MerchantID = "abc" }},
		{"missing_merchant_key", func(c *payment.Config) { c.MerchantKey = "" }},
		{"missing_merchant_salt", func(c *payment.Config) { c.MerchantSalt = "" }},
		{"invalid_mode", func(c *payment.Config) { c.Mode = "staging" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig("")
			tt.mutate(&cfg)

			p, err := New(cfg)
			assert.Nil(t, p)
			assert.ErrorIs(t, err, provider.ErrInvalidConfig)
		})
	}
}

func TestFactory_CreatePaymentScenario(t *testing.T) {
	var calls atomic.Int32
	server := formServer(t, func(path string, form url.Values) (int, any) {
		calls.Add(1)
		assert.Equal(t, endpointIFrameToken, path)
		assert.Equal(t, "ORD1", form.Get("merchant_oid"))
		assert.Equal(t, "4999", form.Get("payment_amount"))
		assert.Equal(t, "TL", form.Get("currency"))
		assert.Equal(t, "1", form.Get("test_mode"))
		assert.Equal(t, "30", form.Get("timeout_limit"))

		expected := provider.HMACSHA256Base64{Key: testMerchantKey}.Sign(
			testMerchantID, form.Get("user_ip"), form.Get("merchant_oid"), form.Get("email"),
			form.Get("payment_amount"), form.Get("user_basket"), form.Get("no_installment"),
			form.Get("max_installment"), form.Get("currency"), form.Get("test_mode"), testMerchantSalt,
		)
		assert.Equal(t, expected, form.Get("paytr_token"))

		basket, err := base64.StdEncoding.DecodeString(form.Get("user_basket"))
		assert.NoError(t, err)
		assert.JSONEq(t, `[["Kahve Fincanı","49.99","1"]]`, string(basket))

		return http.StatusOK, map[string]string{"status": "success", "token": "tok123"}
	})

	p, err := payment.Create("PAYTR", testConfig(server.URL))
	require.NoError(t, err)
	assert.Equal(t, "PayTR", p.ProviderName())

	before := time.Now()
	resp, err := p.CreatePayment(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, payment.StatusPending, resp.Status)
	assert.Equal(t, 49.99, resp.Amount)
	assert.Equal(t, "TL", resp.Currency)
	assert.Equal(t, "ORD-1", resp.OrderID)
	assert.Equal(t, "PayTR", resp.Provider)
	assert.Equal(t, server.URL+"/odeme/guvenlik/tok123", resp.PaymentURL)
	assert.Contains(t, resp.HTML, "paytriframe")
	require.NotNil(t, resp.ExpiresAt)
	assert.WithinDuration(t, before.Add(30*time.Minute), *resp.ExpiresAt, 5*time.Second)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCreatePayment_ConfiguredTTL(t *testing.T) {
	server := formServer(t, func(path string, form url.Values) (int, any) {
		assert.Equal(t, "45", form.Get("timeout_limit"))
		return http.StatusOK, map[string]string{"status": "success", "token": "t"}
	})

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cfg := testConfig(server.URL)
	cfg.PaymentTTL = 45 * time.Minute

	p, err := New(cfg, WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	resp, err := p.CreatePayment(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, now, resp.CreatedAt)
	assert.Equal(t, now.Add(45*time.Minute), *resp.ExpiresAt)
}

func TestCreatePayment_RejectsInvalidRequests(t *testing.T) {
	var calls atomic.Int32
	server := formServer(t, func(string, url.Values) (int, any) {
		calls.Add(1)
		return http.StatusOK, map[string]string{"status": "success", "token": "t"}
	})

	p, err := New(testConfig(server.URL))
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*payment.Request)
	}{
		{"unsupported_currency", func(r *payment.Request) { r.Currency = "JPY" }},
		{"zero_amount", func(r *payment.Request) { r.Amount = 0 }},
		{"negative_item_price", func(r *payment.Request) { r.Items[0].Price = -1 }},
		{"missing_ip", func(r *payment.Request) { r.Customer.IP = "" }},
		{"missing_order", func(r *payment.Request) { r.OrderID = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRequest()
			tt.mutate(&req)

			_, err := p.CreatePayment(context.Background(), req)
			assert.ErrorIs(t, err, provider.ErrInvalidRequest)
		})
	}
	assert.Zero(t, calls.Load(), "invalid requests never reach PayTR")
}

func TestCreatePayment_AcceptsTRY(t *testing.T) {
	server := formServer(t, func(path string, form url.Values) (int, any) {
		assert.Equal(t, "TL", form.Get("currency"))
		return http.StatusOK, map[string]string{"status": "success", "token": "t"}
	})

	cfg := testConfig(server.URL)
	cfg.Currencies = []string{"TRY", "USD"}
	p, err := New(cfg)
	require.NoError(t, err)

	req := testRequest()
	req.Currency = "TRY"
	resp, err := p.CreatePayment(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "TRY", resp.Currency)
}

func TestCreatePayment_ProviderRejection(t *testing.T) {
	server := formServer(t, func(string, url.Values) (int, any) {
		return http.StatusOK, map[string]string{"status": "failed", "reason": "paytr_token gecersiz"}
	})

	p, err := New(testConfig(server.URL))
	require.NoError(t, err)

	_, err = p.CreatePayment(context.Background(), testRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrRejected)

	var providerErr *provider.Error
	require.True(t, errors.As(err, &providerErr))
	assert.Equal(t, "PayTR", providerErr.Provider)
	assert.Contains(t, err.Error(), "failed to create PayTR payment")
}

func TestCreatePayment_TransientFailureIsRetried(t *testing.T) {
	var calls atomic.Int32
	server := formServer(t, func(string, url.Values) (int, any) {
		if calls.Add(1) < 3 {
			return http.StatusServiceUnavailable, map[string]string{"status": "error"}
		}
		return http.StatusOK, map[string]string{"status": "success", "token": "t"}
	})

	p, err := New(testConfig(server.URL))
	require.NoError(t, err)

	resp, err := p.CreatePayment(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPending, resp.Status)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCreatePayment_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(server.Close)

	cfg := testConfig(server.URL)
	cfg.Timeout = 50 * time.Millisecond
	p, err := New(cfg)
	require.NoError(t, err)

	_, err = p.CreatePayment(context.Background(), testRequest())
	assert.ErrorIs(t, err, provider.ErrTimeout)
	assert.NotErrorIs(t, err, provider.ErrRejected)
}

func TestCreatePayment_CancelledOutcomeUnknown(t *testing.T) {
	server := formServer(t, func(string, url.Values) (int, any) {
		return http.StatusOK, map[string]string{"status": "success", "token": "t"}
	})

	p, err := New(testConfig(server.URL))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.CreatePayment(ctx, testRequest())
	assert.ErrorIs(t, err, provider.ErrOutcomeUnknown)
}

func TestGetPaymentStatus(t *testing.T) {
	tests := []struct {
		name     string
		reply    map[string]any
		expected payment.Status
	}{
		{"completed", map[string]any{"status": "success", "payment_amount": "49.99", "currency": "TL"}, payment.StatusCompleted},
		{"waiting", map[string]any{"status": "waiting"}, payment.StatusPending},
		{"failed", map[string]any{"status": "failed", "failed_reason_msg": "Yetersiz bakiye"}, payment.StatusFailed},
		{"refunded", map[string]any{"status": "success", "payment_amount": "49.99", "returns": []any{map[string]any{"return_amount": "49.99"}}}, payment.StatusRefunded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := formServer(t, func(path string, form url.Values) (int, any) {
				assert.Equal(t, endpointPaymentStatus, path)
				expected := provider.HMACSHA256Base64{Key: testMerchantKey}.Sign(testMerchantID, "ORD1", testMerchantSalt)
				assert.Equal(t, expected, form.Get("paytr_token"))
				return http.StatusOK, tt.reply
			})

			p, err := New(testConfig(server.URL))
			require.NoError(t, err)

			status, err := p.GetPaymentStatus(context.Background(), "ORD1")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, status.Status)
			assert.Equal(t, "ORD1", status.PaymentID)
		})
	}
}

func TestGetPaymentStatus_Error(t *testing.T) {
	server := formServer(t, func(string, url.Values) (int, any) {
		return http.StatusOK, map[string]string{"status": "error", "err_msg": "merchant_oid not found"}
	})

	p, err := New(testConfig(server.URL))
	require.NoError(t, err)

	_, err = p.GetPaymentStatus(context.Background(), "ORD404")
	assert.ErrorIs(t, err, provider.ErrRejected)
}

func TestRefundPayment(t *testing.T) {
	var references []string
	server := formServer(t, func(path string, form url.Values) (int, any) {
		switch path {
		case endpointPaymentStatus:
			return http.StatusOK, map[string]string{"status": "success", "payment_amount": "49.99", "currency": "TL"}
		case endpointRefund:
			references = append(references, form.Get("reference_no"))
			expected := provider.HMACSHA256Base64{Key: testMerchantKey}.Sign(
				testMerchantID, form.Get("merchant_oid"), form.Get("return_amount"), testMerchantSalt)
			assert.Equal(t, expected, form.Get("paytr_token"))
			return http.StatusOK, map[string]string{"status": "success", "merchant_oid": form.Get("merchant_oid"), "return_amount": form.Get("return_amount")}
		}
		t.Errorf("unexpected path %s", path)
		return http.StatusNotFound, nil
	})

	p, err := New(testConfig(server.URL))
	require.NoError(t, err)

	partial := 10.0
	resp, err := p.RefundPayment(context.Background(), "ORD1", &partial)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusRefunded, resp.Status)
	assert.Equal(t, 10.0, resp.Amount)
	assert.Equal(t, "TL", resp.Currency)
	assert.Equal(t, payment.RefundReference("paytr", "ORD1", 10), resp.ID)

	again, err := p.RefundPayment(context.Background(), "ORD1", &partial)
	require.NoError(t, err)
	assert.Equal(t, resp.ID, again.ID, "refund reference is stable for the same payment and amount")

	full, err := p.RefundPayment(context.Background(), "ORD1", nil)
	require.NoError(t, err)
	assert.Equal(t, 49.99, full.Amount)
	assert.Equal(t, "TL", full.Currency)

	require.Len(t, references, 3)
	assert.Equal(t, references[0], references[1])
	assert.NotEqual(t, references[0], references[2])
}

func TestHandleCallback(t *testing.T) {
	p, err := New(testConfig(""))
	require.NoError(t, err)

	signer := provider.HMACSHA256Base64{Key: testMerchantKey}
	values := map[string]string{
		"merchant_oid": "ORD1",
		"status":       "success",
		"total_amount": "4999",
		"currency":     "TL",
	}
	values["hash"] = signer.Sign("ORD1", testMerchantSalt, "success", "4999")

	status, err := p.HandleCallback(values)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCompleted, status.Status)
	assert.Equal(t, 49.99, status.Amount)

	values["hash"] = "forged"
	_, err = p.HandleCallback(values)
	assert.ErrorIs(t, err, provider.ErrRejected)

	_, err = p.HandleCallback(map[string]string{"merchant_oid": "ORD1"})
	assert.ErrorIs(t, err, provider.ErrInvalidRequest)
}

func TestCreatePayment_AcceptsISOLira(t *testing.T) {
	var currency string
	server := formServer(t, func(path string, form url.Values) (int, any) {
		currency = form.Get("currency")
		return http.StatusOK, map[string]string{"status": "success", "token": "tok-iso"}
	})

	p, err := New(testConfig(server.URL))
	require.NoError(t, err)

	req := testRequest()
	req.Currency = "TRY"
	resp, err := p.CreatePayment(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "TL", currency)
	assert.Equal(t, "TRY", resp.Currency)
	assert.Equal(t, payment.StatusPending, resp.Status)

	req.Currency = "JPY"
	_, err = p.CreatePayment(context.Background(), req)
	assert.ErrorIs(t, err, provider.ErrInvalidRequest)
}

func TestProviderInfo(t *testing.T) {
	p, err := New(testConfig(""))
	require.NoError(t, err)

	assert.True(t, p.ValidateConfig())
	assert.Equal(t, []string{"TL", "USD", "EUR", "GBP"}, p.SupportedCurrencies())
	assert.Equal(t, []string{"TR"}, p.SupportedCountries())
	assert.Equal(t, "ORD1", MerchantOID("ORD-1"))
	assert.Equal(t, "A1b2", MerchantOID("A-1_b 2ş"))
}
