package kuveytturk

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mstgnz/storegate/payment"
	"github.com/mstgnz/storegate/provider"
)

const (
	providerName = "Kuveyt Türk"

	sandboxBaseURL    = "https://boatest.kuveytturk.com.tr/boa.virtualpos.services/Home"
	productionBaseURL = "https://boa.kuveytturk.com.tr/sanalposservice/Home"

	endpointPayGate     = "/ThreeDModelPayGate"
	endpointOrderStatus = "/GetOrderStatus"
	endpointDrawBack    = "/DrawBack"

	apiVersion      = "TDV2.0.0"
	responseSuccess = "00"

	defaultPaymentTTL = 20 * time.Minute
)

var (
	defaultCurrencies = []string{"TRY", "TL", "USD", "EUR"}
	defaultCountries  = []string{"TR"}

	currencyCodes = map[string]string{
		"TRY": "0949",
		"TL":  "0949",
		"USD": "0840",
		"EUR": "0978",
	}

	requiredFields = []provider.ConfigField{
		{
			Key:         "merchantId",
			Required:    true,
			Type:        "string",
			Description: "Kuveyt Türk merchant id (Mağaza No)",
			Example:     "496",
			Pattern:     "^[0-9]+$",
		},
		{
			Key:         "customerCode",
			Required:    true,
			Type:        "string",
			Description: "Kuveyt Türk customer id (Müşteri No)",
			Example:     "400235",
		},
		{
			Key:         "username",
			Required:    true,
			Type:        "string",
			Description: "API user name",
			Example:     "apitest",
		},
		{
			Key:         "password",
			Required:    true,
			Type:        "string",
			Description: "API user password",
			Example:     "api123",
		},
		provider.ModeField,
	}
)

// Option customizes a Kuveyt Türk provider
type Option func(*Provider)

// WithSigner replaces the default SHA1 HashData signer
func WithSigner(signer provider.Signer) Option {
	return func(p *Provider) { p.signer = signer }
}

// WithBaseURL points the provider at another gateway, e.g. a test server
func WithBaseURL(baseURL string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithTransport sets the HTTP transport of the provider client
func WithTransport(transport http.RoundTripper) Option {
	return func(p *Provider) { p.transport = transport }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// Provider implements payment.Provider for the Kuveyt Türk 3D model pay gate
type Provider struct {
	cfg            payment.Config
	customerID     string
	baseURL        string
	hashedPassword string
	signer         provider.Signer
	transport      http.RoundTripper
	client         *provider.ProviderHTTPClient
	now            func() time.Time
}

// New creates a Kuveyt Türk provider. Missing credentials fail with provider.ErrInvalidConfig.
func New(cfg payment.Config, opts ...Option) (*Provider, error) {
	if err := provider.ValidateConfigFields("kuveytturk", cfg.Values(), requiredFields); err != nil {
		return nil, err
	}

	p := &Provider{
		cfg:            cfg,
		customerID:     cfg.CustomerCode,
		baseURL:        sandboxBaseURL,
		hashedPassword: provider.SHA1Base64{}.Sign(cfg.Password),
		signer:         provider.SHA1Base64{},
		now:            time.Now,
	}
	if cfg.IsProduction() {
		p.baseURL = productionBaseURL
	}
	if cfg.Endpoint != "" {
		p.baseURL = strings.TrimRight(cfg.Endpoint, "/")
	}
	for _, opt := range opts {
		opt(p)
	}

	clientConfig := provider.CreateHTTPClientConfig(providerName, p.baseURL, cfg.Timeout)
	clientConfig.DefaultHeaders["Accept"] = "application/xml, text/html"
	clientConfig.Transport = p.transport
	p.client = provider.NewProviderHTTPClient(clientConfig)

	return p, nil
}

func (p *Provider) ProviderName() string {
	return providerName
}

func (p *Provider) SupportedCurrencies() []string {
	return p.cfg.CurrenciesOr(defaultCurrencies)
}

func (p *Provider) SupportedCountries() []string {
	return p.cfg.CountriesOr(defaultCountries)
}

// ValidateConfig reports whether the merchant and API user credentials are present
func (p *Provider) ValidateConfig() bool {
	return provider.ValidateConfigFields("kuveytturk", p.cfg.Values(), requiredFields) == nil
}

// vposMessage is the KuveytTurkVPosMessage envelope shared by all operations
type vposMessage struct {
	XMLName             xml.Name `xml:"KuveytTurkVPosMessage"`
	APIVersion          string   `xml:"APIVersion"`
	OkURL               string   `xml:"OkUrl,omitempty"`
	FailURL             string   `xml:"FailUrl,omitempty"`
	HashData            string   `xml:"HashData"`
	MerchantID          string   `xml:"MerchantId"`
	CustomerID          string   `xml:"CustomerId"`
	UserName            string   `xml:"UserName"`
	CardHolderEmail     string   `xml:"CardHolderData>Email,omitempty"`
	TransactionType     string   `xml:"TransactionType"`
	InstallmentCount    int      `xml:"InstallmentCount"`
	Amount              string   `xml:"Amount"`
	DisplayAmount       string   `xml:"DisplayAmount,omitempty"`
	CurrencyCode        string   `xml:"CurrencyCode,omitempty"`
	MerchantOrderID     string   `xml:"MerchantOrderId"`
	OrderID             string   `xml:"OrderId,omitempty"`
	TransactionSecurity int      `xml:"TransactionSecurity,omitempty"`
	RefundReference     string   `xml:"RefundReference,omitempty"`
}

type transactionResponse struct {
	XMLName         xml.Name `xml:"VPosTransactionResponseContract"`
	ResponseCode    string   `xml:"ResponseCode"`
	ResponseMessage string   `xml:"ResponseMessage"`
	OrderID         string   `xml:"OrderId"`
	MerchantOrderID string   `xml:"MerchantOrderId"`
	OrderStatus     string   `xml:"OrderStatus"`
	Amount          string   `xml:"Amount"`
	CurrencyCode    string   `xml:"CurrencyCode"`
	ProvisionNumber string   `xml:"ProvisionNumber"`
	RRN             string   `xml:"RRN"`
}

// CreatePayment posts the 3D model request and returns the bank's 3D form
func (p *Provider) CreatePayment(ctx context.Context, request payment.Request) (*payment.Response, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}
	if err := payment.CheckCurrency(p, request.Currency); err != nil {
		return nil, err
	}
	currencyCode, ok := currencyCodes[strings.ToUpper(request.Currency)]
	if !ok {
		return nil, provider.InvalidRequestf("kuveytturk: no currency code for %q", request.Currency)
	}

	amount := strconv.FormatInt(provider.ToMinorUnits(request.Amount), 10)
	msg := vposMessage{
		APIVersion:          apiVersion,
		OkURL:               request.SuccessURL,
		FailURL:             request.CancelURL,
		MerchantID:          p.cfg.MerchantID,
		CustomerID:          p.customerID,
		UserName:            p.cfg.Username,
		CardHolderEmail:     request.Customer.Email,
		TransactionType:     "Sale",
		InstallmentCount:    max(request.InstallmentCount, 0),
		Amount:              amount,
		DisplayAmount:       amount,
		CurrencyCode:        currencyCode,
		MerchantOrderID:     request.OrderID,
		TransactionSecurity: 3,
	}
	msg.HashData = p.signer.Sign(p.cfg.MerchantID, request.OrderID, amount, request.SuccessURL, request.CancelURL,
		p.cfg.Username, p.hashedPassword)

	resp, err := p.client.SendXML(ctx, &provider.HTTPRequest{
		Method:         http.MethodPost,
		Endpoint:       endpointPayGate,
		Body:           msg,
		IdempotencyKey: request.OrderID,
	})
	if err != nil {
		return nil, provider.NewError(providerName, "createPayment", "failed to create Kuveyt Türk payment", err)
	}

	// the gate answers with an auto-submitting 3D form, or an XML contract on error
	if strings.Contains(resp.RawBody, "<VPosTransactionResponseContract") {
		var result transactionResponse
		if err := p.client.ParseXMLResponse(resp, &result); err == nil && result.ResponseCode != responseSuccess {
			return nil, provider.NewError(providerName, "createPayment", "failed to create Kuveyt Türk payment",
				provider.Rejectedf("%s %s", result.ResponseCode, result.ResponseMessage))
		}
	}
	if strings.TrimSpace(resp.RawBody) == "" {
		return nil, provider.NewError(providerName, "createPayment", "failed to create Kuveyt Türk payment",
			provider.Rejectedf("empty 3D form"))
	}

	now := p.now()
	expiresAt := now.Add(p.cfg.TTLOr(defaultPaymentTTL))
	return &payment.Response{
		ID:         request.OrderID,
		Provider:   providerName,
		Status:     payment.StatusPending,
		Amount:     request.Amount,
		Currency:   request.Currency,
		OrderID:    request.OrderID,
		PaymentURL: p.baseURL + endpointPayGate,
		HTML:       resp.RawBody,
		CreatedAt:  now,
		ExpiresAt:  &expiresAt,
	}, nil
}

// GetPaymentStatus queries an order by merchant order id
func (p *Provider) GetPaymentStatus(ctx context.Context, paymentID string) (*payment.PaymentStatus, error) {
	if paymentID == "" {
		return nil, provider.InvalidRequestf("kuveytturk: payment id is required")
	}

	msg := vposMessage{
		APIVersion:      apiVersion,
		MerchantID:      p.cfg.MerchantID,
		CustomerID:      p.customerID,
		UserName:        p.cfg.Username,
		TransactionType: "GetOrderStatus",
		Amount:          "0",
		MerchantOrderID: paymentID,
	}
	msg.HashData = p.signer.Sign(p.cfg.MerchantID, paymentID, msg.Amount, p.cfg.Username, p.hashedPassword)

	result, err := p.send(ctx, endpointOrderStatus, msg, "")
	if err != nil {
		return nil, provider.NewError(providerName, "getPaymentStatus", "failed to query Kuveyt Türk payment", err)
	}
	if result.ResponseCode != responseSuccess {
		return nil, provider.NewError(providerName, "getPaymentStatus", "failed to query Kuveyt Türk payment",
			provider.Rejectedf("%s %s", result.ResponseCode, result.ResponseMessage))
	}

	minor, _ := strconv.ParseInt(result.Amount, 10, 64)
	return &payment.PaymentStatus{
		PaymentID: paymentID,
		Status:    mapOrderStatus(result.OrderStatus),
		Amount:    provider.FromMinorUnits(minor),
		Currency:  currencyName(result.CurrencyCode),
		Message:   result.ResponseMessage,
		UpdatedAt: p.now(),
		Metadata: map[string]any{
			"orderId":         result.OrderID,
			"provisionNumber": result.ProvisionNumber,
			"rrn":             result.RRN,
		},
	}, nil
}

// RefundPayment draws back amount of the order; nil draws back the whole order
func (p *Provider) RefundPayment(ctx context.Context, paymentID string, amount *float64) (*payment.Response, error) {
	if paymentID == "" {
		return nil, provider.InvalidRequestf("kuveytturk: payment id is required")
	}

	status, err := p.GetPaymentStatus(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	refundAmount := status.Amount
	if amount != nil {
		refundAmount = *amount
	}
	if refundAmount <= 0 {
		return nil, provider.InvalidRequestf("kuveytturk: refund amount must be greater than zero")
	}

	reference := payment.RefundReference("kuveytturk", paymentID, refundAmount)
	minor := strconv.FormatInt(provider.ToMinorUnits(refundAmount), 10)
	orderID, _ := status.Metadata["orderId"].(string)
	msg := vposMessage{
		APIVersion:      apiVersion,
		MerchantID:      p.cfg.MerchantID,
		CustomerID:      p.customerID,
		UserName:        p.cfg.Username,
		TransactionType: "DrawBack",
		Amount:          minor,
		CurrencyCode:    currencyCodes[strings.ToUpper(status.Currency)],
		MerchantOrderID: paymentID,
		OrderID:         orderID,
		RefundReference: reference,
	}
	msg.HashData = p.signer.Sign(p.cfg.MerchantID, paymentID, minor, p.cfg.Username, p.hashedPassword)

	result, err := p.send(ctx, endpointDrawBack, msg, reference)
	if err != nil {
		return nil, provider.NewError(providerName, "refundPayment", "failed to refund Kuveyt Türk payment", err)
	}
	if result.ResponseCode != responseSuccess {
		return nil, provider.NewError(providerName, "refundPayment", "failed to refund Kuveyt Türk payment",
			provider.Rejectedf("%s %s", result.ResponseCode, result.ResponseMessage))
	}

	return &payment.Response{
		ID:        reference,
		Provider:  providerName,
		Status:    payment.StatusRefunded,
		Amount:    refundAmount,
		Currency:  status.Currency,
		OrderID:   paymentID,
		CreatedAt: p.now(),
		Metadata: map[string]any{
			"provisionNumber": result.ProvisionNumber,
		},
	}, nil
}

func (p *Provider) send(ctx context.Context, endpoint string, msg vposMessage, idempotencyKey string) (*transactionResponse, error) {
	resp, err := p.client.SendXML(ctx, &provider.HTTPRequest{
		Method:         http.MethodPost,
		Endpoint:       endpoint,
		Body:           msg,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return nil, err
	}

	var result transactionResponse
	if err := p.client.ParseXMLResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("%w: unreadable response: %w", provider.ErrRejected, err)
	}
	return &result, nil
}

func mapOrderStatus(status string) payment.Status {
	switch strings.ToLower(status) {
	case "approved", "1":
		return payment.StatusCompleted
	case "cancelled", "canceled", "2":
		return payment.StatusCancelled
	case "refunded", "drawback", "3":
		return payment.StatusRefunded
	case "failed", "declined", "4":
		return payment.StatusFailed
	default:
		return payment.StatusPending
	}
}

func currencyName(code string) string {
	switch code {
	case "0949", "949":
		return "TRY"
	case "0840", "840":
		return "USD"
	case "0978", "978":
		return "EUR"
	default:
		return code
	}
}
