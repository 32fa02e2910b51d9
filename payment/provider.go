package payment

import "context"

// Provider is the contract every payment gateway implements
type Provider interface {
	// CreatePayment starts a payment and returns it in pending state
	CreatePayment(ctx context.Context, request Request) (*Response, error)

	// GetPaymentStatus queries the gateway for the current state of a payment
	GetPaymentStatus(ctx context.Context, paymentID string) (*PaymentStatus, error)

	// RefundPayment refunds amount, or the full payment when amount is nil
	RefundPayment(ctx context.Context, paymentID string, amount *float64) (*Response, error)

	// ValidateConfig reports whether every credential the gateway needs is present
	ValidateConfig() bool

	ProviderName() string
	SupportedCurrencies() []string
	SupportedCountries() []string
}

// Constructor builds a provider from its configuration record
type Constructor func(cfg Config) (Provider, error)

// CallbackHandler is implemented by gateways that post payment results back to us
type CallbackHandler interface {
	// HandleCallback verifies the signature of a gateway notification and returns the payment state
	HandleCallback(values map[string]string) (*PaymentStatus, error)
}
