package payment

import (
	"fmt"
	"strings"
	"time"

	"github.com/mstgnz/storegate/provider"
)

// Status represents the current status of a payment
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusRefunded  Status = "refunded"
)

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// Address represents a billing or shipping address
type Address struct {
	Name        string `json:"name,omitempty"`
	Address     string `json:"address" validate:"required"`
	City        string `json:"city" validate:"required"`
	District    string `json:"district,omitempty"`
	ZipCode     string `json:"zipCode,omitempty"`
	Country     string `json:"country" validate:"required"`
	Description string `json:"description,omitempty"`
}

// Customer represents the buyer information
type Customer struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name" validate:"required"`
	Surname string `json:"surname" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone,omitempty"`
	IP      string `json:"ip,omitempty"`
}

// FullName returns "Name Surname"
func (c Customer) FullName() string {
	return strings.TrimSpace(c.Name + " " + c.Surname)
}

// Item represents a basket line
type Item struct {
	ID       string  `json:"id"`
	Name     string  `json:"name" validate:"required"`
	Category string  `json:"category,omitempty"`
	Price    float64 `json:"price" validate:"gte=0"`
	Quantity int     `json:"quantity" validate:"gte=1"`
}

// Request contains all information required to create a payment
type Request struct {
	OrderID          string   `json:"orderId" validate:"required"`
	Amount           float64  `json:"amount" validate:"gt=0"`
	Currency         string   `json:"currency" validate:"required,currency"`
	Customer         Customer `json:"customer"`
	BillingAddress   *Address `json:"billingAddress,omitempty"`
	ShippingAddress  *Address `json:"shippingAddress,omitempty"`
	Items            []Item   `json:"items,omitempty" validate:"dive"`
	SuccessURL       string   `json:"successUrl" validate:"required,url"`
	CancelURL        string   `json:"cancelUrl" validate:"required,url"`
	InstallmentCount int      `json:"installmentCount,omitempty" validate:"gte=0,lte=12"`
	Locale           string   `json:"locale,omitempty"`
	Description      string   `json:"description,omitempty"`
}

// Validate checks the invariants every provider relies on
func (r Request) Validate() error {
	if strings.TrimSpace(r.OrderID) == "" {
		return provider.InvalidRequestf("order id is required")
	}
	if r.Amount <= 0 {
		return provider.InvalidRequestf("amount must be greater than zero, got %v", r.Amount)
	}
	if strings.TrimSpace(r.Currency) == "" {
		return provider.InvalidRequestf("currency is required")
	}
	for i, item := range r.Items {
		if item.Price < 0 {
			return provider.InvalidRequestf("item %d (%s) has a negative price", i, item.Name)
		}
		if item.Quantity < 0 {
			return provider.InvalidRequestf("item %d (%s) has a negative quantity", i, item.Name)
		}
	}
	return nil
}

// Basket returns the items, or a single line covering the whole amount when none were sent
func (r Request) Basket() []Item {
	if len(r.Items) > 0 {
		return r.Items
	}
	name := r.Description
	if name == "" {
		name = fmt.Sprintf("Order %s", r.OrderID)
	}
	return []Item{{ID: r.OrderID, Name: name, Price: r.Amount, Quantity: 1}}
}

// Response contains the normalized result of a payment operation
type Response struct {
	ID         string         `json:"id"`
	Provider   string         `json:"provider"`
	Status     Status         `json:"status"`
	Amount     float64        `json:"amount"`
	Currency   string         `json:"currency"`
	OrderID    string         `json:"orderId,omitempty"`
	PaymentURL string         `json:"paymentUrl,omitempty"`
	HTML       string         `json:"html,omitempty"`
	Message    string         `json:"message,omitempty"`
	ErrorCode  string         `json:"errorCode,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	ExpiresAt  *time.Time     `json:"expiresAt,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Expired reports whether a pending payment session can no longer be paid at now
func (r *Response) Expired(now time.Time) bool {
	return r.Status == StatusPending && r.ExpiresAt != nil && !r.ExpiresAt.After(now)
}

// PaymentStatus is the result of a status query
type PaymentStatus struct {
	PaymentID string         `json:"paymentId"`
	Status    Status         `json:"status"`
	Amount    float64        `json:"amount,omitempty"`
	Currency  string         `json:"currency,omitempty"`
	Message   string         `json:"message,omitempty"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}
