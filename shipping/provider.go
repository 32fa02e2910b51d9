package shipping

import "context"

// Provider is the contract every carrier integration implements
type Provider interface {
	// CalculateRate returns the services the carrier offers for the order
	CalculateRate(ctx context.Context, order Order) ([]Rate, error)

	// CreateShipment books the shipment and returns its tracking number
	CreateShipment(ctx context.Context, order Order) (*ShipmentResponse, error)

	// TrackShipment returns the shipment state with events oldest first
	TrackShipment(ctx context.Context, trackingNumber string) (*TrackingResponse, error)

	// ValidateConfig reports whether the required credentials are present
	ValidateConfig() bool

	// ProviderName returns the display name of the carrier
	ProviderName() string
}

// Constructor builds a carrier from its configuration. It fails fast on missing credentials.
type Constructor func(cfg Config) (Provider, error)
