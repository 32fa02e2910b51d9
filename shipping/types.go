package shipping

import (
	"strings"
	"time"

	"github.com/mstgnz/storegate/provider"
)

// Units
const (
	WeightKg = "kg"
	WeightLb = "lb"
	DimCm    = "cm"
	DimIn    = "in"
)

// TrackingStatus is the normalized state of a shipment
type TrackingStatus string

const (
	StatusPending        TrackingStatus = "pending"
	StatusCreated        TrackingStatus = "created"
	StatusInTransit      TrackingStatus = "in_transit"
	StatusOutForDelivery TrackingStatus = "out_for_delivery"
	StatusDelivered      TrackingStatus = "delivered"
	StatusException      TrackingStatus = "exception"
	StatusReturned       TrackingStatus = "returned"
	StatusUnknown        TrackingStatus = "unknown"
)

// Address is a shipper or recipient address
type Address struct {
	Name        string `json:"name" validate:"required"`
	Company     string `json:"company,omitempty"`
	Line1       string `json:"line1" validate:"required"`
	Line2       string `json:"line2,omitempty"`
	City        string `json:"city" validate:"required"`
	District    string `json:"district,omitempty"`
	PostalCode  string `json:"postalCode,omitempty"`
	CountryCode string `json:"countryCode" validate:"required,len=2"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
}

// IsDomestic reports whether the address is in Türkiye
func (a Address) IsDomestic() bool {
	code := strings.ToUpper(strings.TrimSpace(a.CountryCode))
	return code == "" || code == "TR"
}

// Package is one parcel of a shipment
type Package struct {
	Weight        float64 `json:"weight" validate:"gt=0"`
	Length        float64 `json:"length,omitempty" validate:"gte=0"`
	Width         float64 `json:"width,omitempty" validate:"gte=0"`
	Height        float64 `json:"height,omitempty" validate:"gte=0"`
	WeightUnit    string  `json:"weightUnit,omitempty" validate:"omitempty,oneof=kg lb"`
	DimensionUnit string  `json:"dimensionUnit,omitempty" validate:"omitempty,oneof=cm in"`
}

// WeightKg returns the package weight in kilograms
func (p Package) WeightKg() float64 {
	if strings.EqualFold(p.WeightUnit, WeightLb) {
		return p.Weight * 0.453592
	}
	return p.Weight
}

// Item is an ordered line item
type Item struct {
	Name     string  `json:"name"`
	SKU      string  `json:"sku,omitempty"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// Customer identifies who receives notifications
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Order is the carrier-independent shipment request
type Order struct {
	OrderID       string    `json:"orderId" validate:"required"`
	OrderNumber   string    `json:"orderNumber,omitempty"`
	Customer      Customer  `json:"customer"`
	Shipper       *Address  `json:"shipper,omitempty"`
	Recipient     Address   `json:"recipient"`
	Packages      []Package `json:"packages" validate:"required,min=1,dive"`
	Items         []Item    `json:"items,omitempty"`
	DeclaredValue float64   `json:"declaredValue" validate:"gte=0"`
	Currency      string    `json:"currency,omitempty" validate:"omitempty,currency"`
	ServiceCode   string    `json:"serviceCode,omitempty"`
	Reference     string    `json:"reference,omitempty"`
	Description   string    `json:"description,omitempty"`
}

// TotalWeightKg sums the package weights in kilograms
func (o Order) TotalWeightKg() float64 {
	var total float64
	for _, p := range o.Packages {
		total += p.WeightKg()
	}
	return total
}

// Validate checks the invariants every carrier relies on
func (o Order) Validate() error {
	if strings.TrimSpace(o.OrderID) == "" {
		return provider.InvalidRequestf("order id is required")
	}
	if len(o.Packages) == 0 {
		return provider.InvalidRequestf("order %s has no packages", o.OrderID)
	}
	for i, p := range o.Packages {
		if p.Weight <= 0 {
			return provider.InvalidRequestf("package %d must have a positive weight", i)
		}
		if p.Length < 0 || p.Width < 0 || p.Height < 0 {
			return provider.InvalidRequestf("package %d has negative dimensions", i)
		}
	}
	if o.DeclaredValue < 0 {
		return provider.InvalidRequestf("declared value must not be negative")
	}
	for i, item := range o.Items {
		if item.Price < 0 || item.Quantity < 0 {
			return provider.InvalidRequestf("item %d (%s) has a negative price or quantity", i, item.Name)
		}
	}
	return nil
}

// DisplayNumber is the order number shown to customers
func (o Order) DisplayNumber() string {
	if o.OrderNumber != "" {
		return o.OrderNumber
	}
	return o.OrderID
}

// Rate is one offered service of a carrier
type Rate struct {
	ServiceCode       string     `json:"serviceCode"`
	ServiceName       string     `json:"serviceName"`
	Price             float64    `json:"price"`
	Currency          string     `json:"currency"`
	EstimatedDays     int        `json:"estimatedDays"`
	EstimatedDelivery *time.Time `json:"estimatedDelivery,omitempty"`
	Provider          string     `json:"provider"`
}

// ShipmentResponse is the normalized result of CreateShipment
type ShipmentResponse struct {
	ShipmentID        string         `json:"shipmentId"`
	TrackingNumber    string         `json:"trackingNumber"`
	Provider          string         `json:"provider"`
	Status            TrackingStatus `json:"status"`
	Price             float64        `json:"price"`
	Currency          string         `json:"currency"`
	OrderID           string         `json:"orderId"`
	LabelURL          string         `json:"labelUrl,omitempty"`
	LabelData         string         `json:"labelData,omitempty"`
	EstimatedDelivery *time.Time     `json:"estimatedDelivery,omitempty"`
	CreatedAt         time.Time      `json:"createdAt"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// TrackingEvent is one checkpoint of a shipment
type TrackingEvent struct {
	Timestamp   time.Time      `json:"timestamp"`
	Status      TrackingStatus `json:"status"`
	Location    string         `json:"location,omitempty"`
	Description string         `json:"description"`
}

// TrackingResponse is the normalized result of TrackShipment. Events are oldest first.
type TrackingResponse struct {
	TrackingNumber    string          `json:"trackingNumber"`
	Provider          string          `json:"provider"`
	Status            TrackingStatus  `json:"status"`
	Location          string          `json:"location,omitempty"`
	EstimatedDelivery *time.Time      `json:"estimatedDelivery,omitempty"`
	Events            []TrackingEvent `json:"events"`
	Metadata          map[string]any  `json:"metadata,omitempty"`
}
