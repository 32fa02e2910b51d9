package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mstgnz/storegate/infra/config"
	"github.com/mstgnz/storegate/infra/logger"
	"github.com/mstgnz/storegate/provider"
)

const (
	defaultAPIURL   = "https://api.resend.com/emails"
	defaultFromName = "StoreGate"
	defaultTimeout  = 10 * time.Second
)

// EmailConfig holds the transactional email API settings
type EmailConfig struct {
	FromAddress string
	FromName    string
	APIKey      string
	APIURL      string
	Timeout     time.Duration
}

// LoadEmailConfig reads EMAIL_FROM, EMAIL_FROM_NAME, EMAIL_API_KEY and EMAIL_API_URL
func LoadEmailConfig() EmailConfig {
	return EmailConfig{
		FromAddress: config.GetEnv("EMAIL_FROM", "noreply@storegate.local"),
		FromName:    config.GetEnv("EMAIL_FROM_NAME", defaultFromName),
		APIKey:      config.GetEnv("EMAIL_API_KEY", ""),
		APIURL:      config.GetEnv("EMAIL_API_URL", defaultAPIURL),
		Timeout:     config.GetDurationEnv("EMAIL_TIMEOUT", defaultTimeout),
	}
}

// Email is a single outgoing message
type Email struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
	ReplyTo string   `json:"reply_to,omitempty"`
}

// SendResult is the outcome of SendEmail
type SendResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// EmailService sends transactional email through an HTTP API
type EmailService struct {
	cfg    EmailConfig
	client *provider.ProviderHTTPClient
}

// NewEmailService creates an email service; an empty API key turns sending into a no-op
func NewEmailService(cfg EmailConfig) *EmailService {
	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}
	if cfg.FromName == "" {
		cfg.FromName = defaultFromName
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	clientConfig := provider.CreateHTTPClientConfig("email", cfg.APIURL, cfg.Timeout)
	if cfg.APIKey != "" {
		clientConfig.DefaultHeaders["Authorization"] = "Bearer " + cfg.APIKey
	}

	return &EmailService{
		cfg:    cfg,
		client: provider.NewProviderHTTPClient(clientConfig),
	}
}

// Enabled reports whether an API key is configured
func (s *EmailService) Enabled() bool {
	return s.cfg.APIKey != ""
}

type sendPayload struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
	ReplyTo string   `json:"reply_to,omitempty"`
}

type sendResponse struct {
	ID        string `json:"id"`
	MessageID string `json:"messageId"`
}

// SendEmail posts the message to the email API. Without an API key it returns an
// unsuccessful result and no error.
func (s *EmailService) SendEmail(ctx context.Context, email Email) (*SendResult, error) {
	if !s.Enabled() {
		logger.Warn("Email API key not configured, skipping email", logger.LogContext{
			Fields: map[string]any{"subject": email.Subject},
		})
		return &SendResult{Success: false, Error: "email api key not configured"}, nil
	}
	if len(email.To) == 0 {
		return nil, provider.InvalidRequestf("email has no recipients")
	}

	payload := sendPayload{
		From:    fmt.Sprintf("%s <%s>", s.cfg.FromName, s.cfg.FromAddress),
		To:      email.To,
		Subject: email.Subject,
		HTML:    email.HTML,
		Text:    email.Text,
		ReplyTo: email.ReplyTo,
	}

	resp, err := s.client.SendJSON(ctx, &provider.HTTPRequest{
		Method:         http.MethodPost,
		Body:           payload,
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		return &SendResult{Success: false, Error: err.Error()}, err
	}

	var out sendResponse
	if err := s.client.ParseJSONResponse(resp, &out); err != nil {
		// accepted, but the body is not the documented shape
		return &SendResult{Success: true}, nil
	}
	id := out.ID
	if id == "" {
		id = out.MessageID
	}
	return &SendResult{Success: true, MessageID: id}, nil
}

// SendTrackingNotification renders and sends the shipment tracking email.
// It never panics and reports any failure as false.
func (s *EmailService) SendTrackingNotification(ctx context.Context, data TrackingNotificationData) (ok bool) {
	logCtx := logger.LogContext{
		Fields: map[string]any{
			"order_number":    data.OrderNumber,
			"tracking_number": data.TrackingNumber,
			"carrier":         data.Carrier,
		},
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Tracking notification panicked", fmt.Errorf("%v", r), logCtx)
			ok = false
		}
	}()

	if strings.TrimSpace(data.CustomerEmail) == "" {
		logger.Warn("Tracking notification skipped, customer email missing", logCtx)
		return false
	}

	html, text, err := renderTracking(data)
	if err != nil {
		logger.Error("Failed to render tracking notification", err, logCtx)
		return false
	}

	result, err := s.SendEmail(ctx, Email{
		To:      []string{data.CustomerEmail},
		Subject: trackingSubject(data),
		HTML:    html,
		Text:    text,
	})
	if err != nil {
		logger.Error("Failed to send tracking notification", err, logCtx)
		return false
	}
	if !result.Success {
		return false
	}

	logCtx.Fields["message_id"] = result.MessageID
	logger.Info("Tracking notification sent", logCtx)
	return true
}

// SendDHLTrackingNotification sends the tracking email with DHL as the carrier
func (s *EmailService) SendDHLTrackingNotification(ctx context.Context, data TrackingNotificationData) bool {
	data.Carrier = "DHL"
	if data.TrackingURL == "" && data.TrackingNumber != "" {
		data.TrackingURL = "https://www.dhl.com/tr-en/home/tracking.html?tracking-id=" + data.TrackingNumber
	}
	return s.SendTrackingNotification(ctx, data)
}

func trackingSubject(data TrackingNotificationData) string {
	carrier := data.Carrier
	if carrier == "" {
		carrier = "Kargo"
	}
	return fmt.Sprintf("Siparişiniz yola çıktı - #%s (%s)", data.OrderNumber, carrier)
}
