package shipping

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/mstgnz/storegate/infra/logger"
	"github.com/mstgnz/storegate/notify"
	"github.com/mstgnz/storegate/provider"
)

// Kind is the settings namespace of carriers
const Kind = "shipping"

const notificationTimeout = 15 * time.Second

// Notifier delivers the tracking notification after a shipment is created.
// It reports failure by returning false.
type Notifier interface {
	SendTrackingNotification(ctx context.Context, data notify.TrackingNotificationData) bool
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithIdempotency de-duplicates shipments per carrier and order id through store
func WithIdempotency(store provider.IdempotencyStore, ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.idem = provider.NewIdempotency(store, ttl)
	}
}

// WithRecorder sends a call log for every carrier operation to rec
func WithRecorder(rec provider.CallRecorder) ServiceOption {
	return func(s *Service) {
		if rec != nil {
			s.recorder = rec
		}
	}
}

// WithFees adds a handling fee on top of every quoted rate
func WithFees(fees Fees) ServiceOption {
	return func(s *Service) {
		s.fees = fees
	}
}

// Service wraps one carrier and sequences shipment creation with the customer notification
type Service struct {
	provider Provider
	name     string
	notifier Notifier
	idem     *provider.Idempotency
	recorder provider.CallRecorder
	fees     Fees
}

// NewService wraps p. A nil notifier disables notifications.
func NewService(p Provider, notifier Notifier, opts ...ServiceOption) *Service {
	s := &Service{
		provider: p,
		name:     provider.NormalizeName(p.ProviderName()),
		notifier: notifier,
		recorder: provider.NopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewServiceFor builds the named carrier through the factory and wraps it
func NewServiceFor(name string, cfg Config, notifier Notifier, opts ...ServiceOption) (*Service, error) {
	canonical, err := CanonicalName(name)
	if err != nil {
		return nil, err
	}
	p, err := Create(canonical, cfg)
	if err != nil {
		return nil, err
	}

	opts = append([]ServiceOption{WithFees(cfg.Fees)}, opts...)
	s := NewService(p, notifier, opts...)
	s.name = canonical
	return s, nil
}

// ProviderName returns the display name of the wrapped carrier
func (s *Service) ProviderName() string {
	return s.provider.ProviderName()
}

// ValidateProvider reports whether the wrapped carrier is fully configured
func (s *Service) ValidateProvider() bool {
	return s.provider.ValidateConfig()
}

// GetRates quotes the order with the carrier, handling fee included
func (s *Service) GetRates(ctx context.Context, order Order) ([]Rate, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	rates, err := s.provider.CalculateRate(ctx, order)
	err = provider.ClassifyCancellation(ctx, err)
	for i := range rates {
		rates[i].Price = s.withFee(rates[i].Price)
	}

	call := provider.CallLog{
		Kind:      Kind,
		Provider:  s.name,
		Operation: "calculateRate",
		Reference: order.OrderID,
		Fields:    map[string]any{"rates": len(rates)},
	}
	s.finish(ctx, call, start, err)
	return rates, err
}

// CreateShipment books the shipment and then, only on success, notifies the customer.
// A repeated order id replays the first shipment without notifying again; the bool
// reports a replay. Notification failures never fail the shipment.
func (s *Service) CreateShipment(ctx context.Context, order Order) (*ShipmentResponse, bool, error) {
	if err := order.Validate(); err != nil {
		return nil, false, err
	}

	key := fmt.Sprintf("shipment:%s:%s", s.name, order.OrderID)
	start := time.Now()
	resp, replayed, err := provider.Idempotent(ctx, s.idem, key, func(ctx context.Context) (*ShipmentResponse, error) {
		return s.provider.CreateShipment(ctx, order)
	})
	err = provider.ClassifyCancellation(ctx, err)

	call := provider.CallLog{
		Kind:      Kind,
		Provider:  s.name,
		Operation: "createShipment",
		Reference: order.OrderID,
		Amount:    order.DeclaredValue,
		Currency:  order.Currency,
		Replayed:  replayed,
	}
	if resp != nil {
		call.Status = string(resp.Status)
		call.Fields = map[string]any{"trackingNumber": resp.TrackingNumber}
	}
	s.finish(ctx, call, start, err)
	if err != nil {
		return nil, false, err
	}

	if !replayed {
		s.notify(ctx, order, resp)
	}
	return resp, replayed, nil
}

// TrackShipment returns the current state of a shipment
func (s *Service) TrackShipment(ctx context.Context, trackingNumber string) (*TrackingResponse, error) {
	if trackingNumber == "" {
		return nil, provider.InvalidRequestf("tracking number is required")
	}

	start := time.Now()
	tracking, err := s.provider.TrackShipment(ctx, trackingNumber)
	err = provider.ClassifyCancellation(ctx, err)

	call := provider.CallLog{
		Kind:      Kind,
		Provider:  s.name,
		Operation: "trackShipment",
		Reference: trackingNumber,
	}
	if tracking != nil {
		call.Status = string(tracking.Status)
	}
	s.finish(ctx, call, start, err)
	return tracking, err
}

// notify is best effort: errors, false results and panics are logged and absorbed
func (s *Service) notify(ctx context.Context, order Order, resp *ShipmentResponse) {
	if s.notifier == nil {
		return
	}

	logCtx := logger.LogContext{
		Provider: s.name,
		Fields: map[string]any{
			"order_id":        order.OrderID,
			"tracking_number": resp.TrackingNumber,
		},
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Shipment notification panicked", fmt.Errorf("%v", r), logCtx)
		}
	}()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notificationTimeout)
	defer cancel()

	if !s.notifier.SendTrackingNotification(ctx, NotificationData(s.provider.ProviderName(), order, resp)) {
		logger.Warn("Shipment notification was not delivered", logCtx)
	}
}

// NotificationData packages the shipment and the order into the tracking email payload
func NotificationData(carrier string, order Order, resp *ShipmentResponse) notify.TrackingNotificationData {
	email := order.Customer.Email
	if email == "" {
		email = order.Recipient.Email
	}
	name := order.Customer.Name
	if name == "" {
		name = order.Recipient.Name
	}

	data := notify.TrackingNotificationData{
		CustomerEmail:  email,
		CustomerName:   name,
		OrderNumber:    order.DisplayNumber(),
		Carrier:        carrier,
		TrackingNumber: resp.TrackingNumber,
		ShippingAddress: notify.TrackingAddress{
			Name:         order.Recipient.Name,
			AddressLine1: order.Recipient.Line1,
			AddressLine2: order.Recipient.Line2,
			City:         order.Recipient.City,
			PostalCode:   order.Recipient.PostalCode,
			Country:      order.Recipient.CountryCode,
		},
	}
	if url, ok := resp.Metadata["trackingUrl"].(string); ok {
		data.TrackingURL = url
	}
	if resp.EstimatedDelivery != nil {
		data.EstimatedDelivery = resp.EstimatedDelivery.Format("2006-01-02")
	}
	for _, item := range order.Items {
		data.Items = append(data.Items, notify.TrackingItem{
			Name:     item.Name,
			Quantity: item.Quantity,
			Price:    item.Price,
		})
	}
	return data
}

func (s *Service) withFee(price float64) float64 {
	if s.fees.Percentage == 0 && s.fees.Fixed == 0 {
		return price
	}
	total := price + price*s.fees.Percentage/100 + s.fees.Fixed
	return math.Round(total*100) / 100
}

func (s *Service) finish(ctx context.Context, call provider.CallLog, start time.Time, err error) {
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

	if err != nil {
		call.Error = err.Error()
		call.Status = provider.ErrorCode(err)
		logCtx.Fields["error_code"] = call.Status
		logger.Error("Shipping operation failed", err, logCtx)
	} else {
		logger.Info("Shipping operation completed", logCtx)
	}

	s.recorder.RecordCall(ctx, call)
}
