package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trackingData() TrackingNotificationData {
	return TrackingNotificationData{
		CustomerEmail:     "ayse@example.com",
		CustomerName:      "Ayşe Yılmaz",
		OrderNumber:       "1001",
		Carrier:           "Yurtiçi Kargo",
		TrackingNumber:    "YK1700000000000123456",
		EstimatedDelivery: "2026-03-04",
		Items: []TrackingItem{
			{Name: "Nemlendirici Krem", Quantity: 2, Price: 149.9},
			{Name: "Ruj <Kırmızı>", Quantity: 1, Price: 89.5},
		},
		ShippingAddress: TrackingAddress{
			Name:         "Ayşe Yılmaz",
			AddressLine1: "Bağdat Cad. No:1",
			City:         "İstanbul",
			PostalCode:   "34710",
			Country:      "tr",
		},
	}
}

type capturedEmail struct {
	auth    string
	payload sendPayload
}

func newEmailServer(t *testing.T, status int, captured *capturedEmail) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if captured != nil {
			captured.auth = r.Header.Get("Authorization")
			assert.NoError(t, json.Unmarshal(body, &captured.payload))
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"id":"msg_123"}`)
	}))
}

func TestSendEmail(t *testing.T) {
	captured := &capturedEmail{}
	server := newEmailServer(t, http.StatusOK, captured)
	defer server.Close()

	svc := NewEmailService(EmailConfig{FromAddress: "shop@example.com", FromName: "Shop", APIKey: "re_key", APIURL: server.URL})
	result, err := svc.SendEmail(context.Background(), Email{To: []string{"a@example.com"}, Subject: "Hi", Text: "hello"})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "msg_123", result.MessageID)
	assert.Equal(t, "Bearer re_key", captured.auth)
	assert.Equal(t, "Shop <shop@example.com>", captured.payload.From)
	assert.Equal(t, []string{"a@example.com"}, captured.payload.To)
}

func TestSendEmail_NoAPIKey(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	svc := NewEmailService(EmailConfig{APIURL: server.URL})
	result, err := svc.SendEmail(context.Background(), Email{To: []string{"a@example.com"}, Subject: "Hi"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, int32(0), calls.Load())
}

func TestSendEmail_Rejected(t *testing.T) {
	server := newEmailServer(t, http.StatusUnprocessableEntity, nil)
	defer server.Close()

	svc := NewEmailService(EmailConfig{APIKey: "k", APIURL: server.URL})
	result, err := svc.SendEmail(context.Background(), Email{To: []string{"a@example.com"}, Subject: "Hi"})
	assert.Error(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Success)
}

func TestSendDHLTrackingNotification_NoAPIKey(t *testing.T) {
	svc := NewEmailService(EmailConfig{})
	assert.False(t, svc.SendDHLTrackingNotification(context.Background(), trackingData()))
}

func TestSendTrackingNotification(t *testing.T) {
	captured := &capturedEmail{}
	server := newEmailServer(t, http.StatusOK, captured)
	defer server.Close()

	svc := NewEmailService(EmailConfig{APIKey: "k", APIURL: server.URL, FromAddress: "shop@example.com"})
	assert.True(t, svc.SendTrackingNotification(context.Background(), trackingData()))

	assert.Equal(t, []string{"ayse@example.com"}, captured.payload.To)
	assert.Contains(t, captured.payload.Subject, "1001")
	assert.Contains(t, captured.payload.HTML, "YK1700000000000123456")
	assert.Contains(t, captured.payload.HTML, "299.80")
	assert.Contains(t, captured.payload.HTML, "Ruj &lt;Kırmızı&gt;")
	assert.Contains(t, captured.payload.Text, "Ruj <Kırmızı> x1: 89.50")
	assert.Contains(t, captured.payload.Text, "TR")
}

func TestSendDHLTrackingNotification_SetsCarrier(t *testing.T) {
	captured := &capturedEmail{}
	server := newEmailServer(t, http.StatusOK, captured)
	defer server.Close()

	svc := NewEmailService(EmailConfig{APIKey: "k", APIURL: server.URL})
	assert.True(t, svc.SendDHLTrackingNotification(context.Background(), trackingData()))
	assert.Contains(t, captured.payload.Subject, "DHL")
	assert.Contains(t, captured.payload.Text, "tracking-id=YK1700000000000123456")
}

func TestSendTrackingNotification_Failures(t *testing.T) {
	server := newEmailServer(t, http.StatusBadRequest, nil)
	defer server.Close()

	svc := NewEmailService(EmailConfig{APIKey: "k", APIURL: server.URL})
	assert.False(t, svc.SendTrackingNotification(context.Background(), trackingData()))

	missing := trackingData()
	missing.CustomerEmail = ""
	assert.False(t, svc.SendTrackingNotification(context.Background(), missing))
}

func TestSendTrackingNotification_CancelledContext(t *testing.T) {
	server := newEmailServer(t, http.StatusOK, nil)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := NewEmailService(EmailConfig{APIKey: "k", APIURL: server.URL, Timeout: time.Second})
	assert.False(t, svc.SendTrackingNotification(ctx, trackingData()))
}

func TestLoadEmailConfig(t *testing.T) {
	t.Setenv("EMAIL_FROM", "orders@example.com")
	t.Setenv("EMAIL_API_KEY", "secret")
	t.Setenv("EMAIL_API_URL", "https://mail.example.com/send")

	cfg := LoadEmailConfig()
	assert.Equal(t, "orders@example.com", cfg.FromAddress)
	assert.Equal(t, "StoreGate", cfg.FromName)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, "https://mail.example.com/send", cfg.APIURL)
	assert.True(t, NewEmailService(cfg).Enabled())
}
