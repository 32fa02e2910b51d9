package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/mstgnz/storegate/infra/logger"
	"github.com/mstgnz/storegate/provider"
)

// Kind is the settings namespace of payment gateways
const Kind = "payment"

// SettingsSource returns the configuration record of a provider or an error when absent
type SettingsSource interface {
	Get(kind, providerName string) (map[string]string, error)
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithIdempotency de-duplicates payments and refunds through store
func WithIdempotency(store provider.IdempotencyStore, ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.idem = provider.NewIdempotency(store, ttl)
	}
}

// WithRecorder sends a call log for every gateway operation to rec
func WithRecorder(rec provider.CallRecorder) ServiceOption {
	return func(s *Service) {
		if rec != nil {
			s.recorder = rec
		}
	}
}

// WithProviderCache reuses built gateways while their settings are unchanged
func WithProviderCache(cache *provider.ProviderCache[Provider]) ServiceOption {
	return func(s *Service) {
		s.cache = cache
	}
}

// WithClock overrides time.Now for session expiry checks
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service resolves gateways from configuration and runs operations against them
type Service struct {
	settings SettingsSource
	idem     *provider.Idempotency
	recorder provider.CallRecorder
	cache    *provider.ProviderCache[Provider]
	now      func() time.Time
}

// NewService creates a payment service reading gateway settings from settings
func NewService(settings SettingsSource, opts ...ServiceOption) *Service {
	s := &Service{
		settings: settings,
		recorder: provider.NopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProviderInfo describes a registered gateway and its configuration state
type ProviderInfo struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"displayName,omitempty"`
	Configured  bool     `json:"configured"`
	Default     bool     `json:"default"`
	Mode        string   `json:"mode,omitempty"`
	Currencies  []string `json:"currencies,omitempty"`
	Countries   []string `json:"countries,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// Providers lists every registered gateway
func (s *Service) Providers() []ProviderInfo {
	names := SupportedProviders()
	infos := make([]ProviderInfo, 0, len(names))
	for _, name := range names {
		info := ProviderInfo{Name: name}
		p, cfg, err := s.Resolve(name)
		if err != nil {
			info.Error = err.Error()
		} else {
			info.Configured = true
			info.DisplayName = p.ProviderName()
			info.Default = cfg.Default
			info.Mode = cfg.Mode
			info.Currencies = p.SupportedCurrencies()
			info.Countries = p.SupportedCountries()
		}
		infos = append(infos, info)
	}
	return infos
}

// Resolve builds a ready-to-use gateway. The gateway must be known, configured,
// enabled and pass ValidateConfig.
func (s *Service) Resolve(name string) (Provider, Config, error) {
	canonical, err := CanonicalName(name)
	if err != nil {
		return nil, Config{}, err
	}

	values, err := s.settings.Get(Kind, canonical)
	if err != nil {
		return nil, Config{}, fmt.Errorf("%w: %s is not configured: %w", provider.ErrInvalidConfig, canonical, err)
	}

	cfg := ConfigFromMap(canonical, values)
	if !cfg.Enabled {
		return nil, cfg, fmt.Errorf("%w: %s is disabled", provider.ErrInvalidConfig, canonical)
	}

	cacheKey := Kind + ":" + canonical
	fingerprint := provider.Fingerprint(values)
	if p, ok := s.cache.Get(cacheKey, fingerprint); ok {
		return p, cfg, nil
	}

	p, err := Create(canonical, cfg)
	if err != nil {
		return nil, cfg, err
	}
	if !p.ValidateConfig() {
		return nil, cfg, fmt.Errorf("%w: %s configuration is incomplete", provider.ErrInvalidConfig, canonical)
	}
	s.cache.Set(cacheKey, fingerprint, p)
	return p, cfg, nil
}

// CacheStats reports gateway cache usage; zero when caching is off
func (s *Service) CacheStats() provider.CacheStats {
	return s.cache.Stats()
}

// CreatePayment starts a payment. A repeated order id replays the first successful
// result instead of charging again; the bool reports a replay. A pending session
// past its expiry is not replayed and a new one is started.
func (s *Service) CreatePayment(ctx context.Context, providerName string, request Request) (*Response, bool, error) {
	if err := request.Validate(); err != nil {
		return nil, false, err
	}

	p, cfg, err := s.Resolve(providerName)
	if err != nil {
		return nil, false, err
	}

	key := fmt.Sprintf("payment:%s:%s", cfg.Name, request.OrderID)
	start := time.Now()
	live := func(r *Response) bool { return r != nil && !r.Expired(s.now()) }
	resp, replayed, err := provider.IdempotentFresh(ctx, s.idem, key, live, func(ctx context.Context) (*Response, error) {
		resp, err := p.CreatePayment(ctx, request)
		if err != nil {
			return nil, err
		}
		if fee := Fee(cfg, request.Amount); fee > 0 {
			if resp.Metadata == nil {
				resp.Metadata = make(map[string]any)
			}
			resp.Metadata["fee"] = fee
		}
		return resp, nil
	})
	err = provider.ClassifyCancellation(ctx, err)

	call := provider.CallLog{
		Kind:      Kind,
		Provider:  cfg.Name,
		Operation: "createPayment",
		Reference: request.OrderID,
		Amount:    request.Amount,
		Currency:  request.Currency,
		Replayed:  replayed,
	}
	s.finish(ctx, call, start, resp, err)
	return resp, replayed, err
}

// GetPaymentStatus queries the gateway; status queries are never cached
func (s *Service) GetPaymentStatus(ctx context.Context, providerName, paymentID string) (*PaymentStatus, error) {
	if paymentID == "" {
		return nil, provider.InvalidRequestf("payment id is required")
	}

	p, cfg, err := s.Resolve(providerName)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	status, err := p.GetPaymentStatus(ctx, paymentID)
	err = provider.ClassifyCancellation(ctx, err)

	call := provider.CallLog{
		Kind:      Kind,
		Provider:  cfg.Name,
		Operation: "getPaymentStatus",
		Reference: paymentID,
	}
	if status != nil {
		call.Status = string(status.Status)
		call.Amount = status.Amount
		call.Currency = status.Currency
	}
	s.finish(ctx, call, start, nil, err)
	return status, err
}

// RefundPayment refunds amount (nil means the full payment). The same payment and
// amount are refunded at most once.
func (s *Service) RefundPayment(ctx context.Context, providerName, paymentID string, amount *float64) (*Response, bool, error) {
	if paymentID == "" {
		return nil, false, provider.InvalidRequestf("payment id is required")
	}
	if amount != nil && *amount <= 0 {
		return nil, false, provider.InvalidRequestf("refund amount must be greater than zero, got %v", *amount)
	}

	p, cfg, err := s.Resolve(providerName)
	if err != nil {
		return nil, false, err
	}

	key := fmt.Sprintf("refund:%s:%s:%s", cfg.Name, paymentID, RefundAmountKey(amount))
	start := time.Now()
	resp, replayed, err := provider.Idempotent(ctx, s.idem, key, func(ctx context.Context) (*Response, error) {
		return p.RefundPayment(ctx, paymentID, amount)
	})
	err = provider.ClassifyCancellation(ctx, err)

	call := provider.CallLog{
		Kind:      Kind,
		Provider:  cfg.Name,
		Operation: "refundPayment",
		Reference: paymentID,
		Replayed:  replayed,
	}
	if amount != nil {
		call.Amount = *amount
	}
	s.finish(ctx, call, start, resp, err)
	return resp, replayed, err
}

// HandleCallback verifies a gateway notification and records the reported status
func (s *Service) HandleCallback(ctx context.Context, providerName string, values map[string]string) (*PaymentStatus, error) {
	p, cfg, err := s.Resolve(providerName)
	if err != nil {
		return nil, err
	}

	handler, ok := p.(CallbackHandler)
	if !ok {
		return nil, provider.InvalidRequestf("%s does not accept callbacks", p.ProviderName())
	}

	start := time.Now()
	status, err := handler.HandleCallback(values)

	call := provider.CallLog{
		Kind:      Kind,
		Provider:  cfg.Name,
		Operation: "callback",
	}
	if status != nil {
		call.Reference = status.PaymentID
		call.Status = string(status.Status)
		call.Amount = status.Amount
		call.Currency = status.Currency
	}
	s.finish(ctx, call, start, nil, err)
	return status, err
}

// RefundAmountKey renders a refund amount for idempotency keys and references
func RefundAmountKey(amount *float64) string {
	if amount == nil {
		return "full"
	}
	return fmt.Sprintf("%d", provider.ToMinorUnits(*amount))
}

func (s *Service) finish(ctx context.Context, call provider.CallLog, start time.Time, resp *Response, err error) {
	call.Timestamp = start
	call.DurationMs = time.Since(start).Milliseconds()

	logCtx := logger.LogContext{
		Provider: call.Provider,
		Fields: map[string]any{
			"operation": call.Operation,
			"reference": call.Reference,
			"duration":  call.DurationMs,
			"replayed":  call.Replayed,
		},
	}

	if resp != nil {
		call.Status = string(resp.Status)
		if call.Currency == "" {
			call.Currency = resp.Currency
		}
		call.Fields = map[string]any{"paymentId": resp.ID}
		logCtx.Fields["payment_id"] = resp.ID
	}

	if err != nil {
		call.Error = err.Error()
		call.Status = provider.ErrorCode(err)
		logCtx.Fields["error_code"] = call.Status
		logger.Error("Payment operation failed", err, logCtx)
	} else {
		logger.Info("Payment operation completed", logCtx)
	}

	s.recorder.RecordCall(ctx, call)
}
