package vakifbank

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
	providerName = "VakıfBank"

	// Common Payment hosts
	sandboxBaseURL    = "https://cptest.vakifbank.com.tr"
	productionBaseURL = "https://cpweb.vakifbank.com.tr"

	// Virtual POS hosts
	sandboxVposURL    = "https://onlineodemetest.vakifbank.com.tr:4443"
	productionVposURL = "https://onlineodeme.vakifbank.com.tr:4443"

	endpointRegister = "/CommonPayment/api/RegisterTransaction"
	endpointQuery    = "/CommonPayment/api/VposTransaction"
	endpointVposReq  = "/VposService/v3/Vposreq.aspx"

	resultSuccess = "0000"

	defaultPaymentTTL = 15 * time.Minute
)

var (
	defaultCurrencies = []string{"TRY", "TL", "USD", "EUR"}
	defaultCountries  = []string{"TR"}

	currencyCodes = map[string]string{
		"TRY": "949",
		"TL":  "949",
		"USD": "840",
		"EUR": "978",
	}

	requiredFields = []provider.ConfigField{
		{
			Key:         "merchantId",
			Required:    true,
			Type:        "string",
			Description: "VakıfBank host merchant id (Üye İşyeri No)",
			Example:     "000100000013506",
			Pattern:     "^[0-9]+$",
		},
		{
			Key:         "terminalId",
			Required:    true,
			Type:        "string",
			Description: "VakıfBank host terminal id",
			Example:     "VP000579",
		},
		{
			Key:         "password",
			Required:    true,
			Type:        "string",
			Description: "Merchant password, also the request hash key",
			Example:     "123456",
			MinLength:   4,
		},
		provider.ModeField,
	}
)

// Option customizes a VakıfBank provider
type Option func(*Provider)

// WithSigner replaces the default HMAC-SHA512 request hash
func WithSigner(signer provider.Signer) Option {
	return func(p *Provider) { p.signer = signer }
}

// WithBaseURL sends Common Payment and virtual POS calls to one host
func WithBaseURL(baseURL string) Option {
	return func(p *Provider) {
		p.baseURL = strings.TrimRight(baseURL, "/")
		p.vposURL = p.baseURL
	}
}

// WithTransport sets the HTTP transport of the provider client
func WithTransport(transport http.RoundTripper) Option {
	return func(p *Provider) { p.transport = transport }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// Provider implements payment.Provider for the VakıfBank Common Payment Page
type Provider struct {
	cfg       payment.Config
	baseURL   string
	vposURL   string
	signer    provider.Signer
	transport http.RoundTripper
	client    *provider.ProviderHTTPClient
	now       func() time.Time
}

// New creates a VakıfBank provider. Missing credentials fail with provider.ErrInvalidConfig.
func New(cfg payment.Config, opts ...Option) (*Provider, error) {
	if err := provider.ValidateConfigFields("vakifbank", cfg.Values(), requiredFields); err != nil {
		return nil, err
	}

	p := &Provider{
		cfg:     cfg,
		baseURL: sandboxBaseURL,
		vposURL: sandboxVposURL,
		signer:  provider.HMACSHA512Hex{Key: cfg.Password},
		now:     time.Now,
	}
	if cfg.IsProduction() {
		p.baseURL, p.vposURL = productionBaseURL, productionVposURL
	}
	if cfg.Endpoint != "" {
		p.baseURL = strings.TrimRight(cfg.Endpoint, "/")
		p.vposURL = p.baseURL
	}
	for _, opt := range opts {
		opt(p)
	}

	clientConfig := provider.CreateHTTPClientConfig(providerName, p.baseURL, cfg.Timeout)
	clientConfig.DefaultHeaders["Accept"] = "application/xml"
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

// ValidateConfig reports whether merchant, terminal and password are present
func (p *Provider) ValidateConfig() bool {
	return provider.ValidateConfigFields("vakifbank", p.cfg.Values(), requiredFields) == nil
}

type registerResponse struct {
	XMLName          xml.Name `xml:"CommonPaymentResponse"`
	PaymentToken     string   `xml:"PaymentToken"`
	CommonPaymentURL string   `xml:"CommonPaymentUrl"`
	ResultCode       string   `xml:"ResultCode"`
	ResultMessage    string   `xml:"ResultMessage"`
}

// CreatePayment registers the transaction and returns the Common Payment Page URL
func (p *Provider) CreatePayment(ctx context.Context, request payment.Request) (*payment.Response, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}
	if err := payment.CheckCurrency(p, request.Currency); err != nil {
		return nil, err
	}
	currencyCode, ok := currencyCodes[strings.ToUpper(request.Currency)]
	if !ok {
		return nil, provider.InvalidRequestf("vakifbank: no currency code for %q", request.Currency)
	}

	amount := provider.FormatAmount(request.Amount)
	form := map[string]string{
		"HostMerchantId":       p.cfg.MerchantID,
		"MerchantPassword":     p.cfg.Password,
		"HostTerminalId":       p.cfg.TerminalID,
		"TransactionType":      "Sale",
		"AmountCode":           currencyCode,
		"Amount":               amount,
		"OrderId":              request.OrderID,
		"OrderDescription":     request.Description,
		"IsSecure":             "true",
		"AllowNotEnrolledCard": "false",
		"SuccessUrl":           request.SuccessURL,
		"FailUrl":              request.CancelURL,
		"RequestLanguage":      requestLanguage(request.Locale),
		"CustomerEmail":        request.Customer.Email,
	}
	if request.InstallmentCount > 1 {
		form["InstallmentCount"] = strconv.Itoa(request.InstallmentCount)
	}
	form["HashedData"] = p.signer.Sign(p.cfg.MerchantID, p.cfg.TerminalID, request.OrderID, amount, request.SuccessURL)

	resp, err := p.client.SendForm(ctx, &provider.HTTPRequest{
		Method:         http.MethodPost,
		Endpoint:       endpointRegister,
		FormData:       form,
		IdempotencyKey: request.OrderID,
	})
	if err != nil {
		return nil, provider.NewError(providerName, "createPayment", "failed to create VakıfBank payment", err)
	}

	var result registerResponse
	if err := p.client.ParseXMLResponse(resp, &result); err != nil {
		return nil, provider.NewError(providerName, "createPayment", "failed to create VakıfBank payment",
			fmt.Errorf("%w: unreadable response: %w", provider.ErrRejected, err))
	}
	if result.ResultCode != resultSuccess || result.PaymentToken == "" {
		return nil, provider.NewError(providerName, "createPayment", "failed to create VakıfBank payment",
			provider.Rejectedf("%s %s", result.ResultCode, result.ResultMessage))
	}

	paymentURL := result.CommonPaymentURL
	if paymentURL == "" {
		paymentURL = p.baseURL + "/CommonPayment/SecurePayment?Ptkn=" + result.PaymentToken
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
		PaymentURL: paymentURL,
		CreatedAt:  now,
		ExpiresAt:  &expiresAt,
		Metadata: map[string]any{
			"paymentToken": result.PaymentToken,
		},
	}, nil
}

type queryResponse struct {
	XMLName       xml.Name           `xml:"VposTransactionResponse"`
	ResultCode    string             `xml:"ResultCode"`
	ResultMessage string             `xml:"ResultMessage"`
	Transactions  []queryTransaction `xml:"Transactions>Transaction"`
}

type queryTransaction struct {
	TransactionID   string `xml:"TransactionId"`
	TransactionType string `xml:"TransactionType"`
	ResultCode      string `xml:"ResultCode"`
	ResultDetail    string `xml:"ResultDetail"`
	Amount          string `xml:"Amount"`
	CurrencyCode    string `xml:"CurrencyCode"`
	TransactionDate string `xml:"TransactionDate"`
}

// GetPaymentStatus searches the transactions of an order
func (p *Provider) GetPaymentStatus(ctx context.Context, paymentID string) (*payment.PaymentStatus, error) {
	if paymentID == "" {
		return nil, provider.InvalidRequestf("vakifbank: payment id is required")
	}

	resp, err := p.client.SendForm(ctx, &provider.HTTPRequest{
		Method:   http.MethodPost,
		Endpoint: endpointQuery,
		FormData: map[string]string{
			"HostMerchantId": p.cfg.MerchantID,
			"Password":       p.cfg.Password,
			"OrderId":        paymentID,
		},
	})
	if err != nil {
		return nil, provider.NewError(providerName, "getPaymentStatus", "failed to query VakıfBank payment", err)
	}

	var result queryResponse
	if err := p.client.ParseXMLResponse(resp, &result); err != nil {
		return nil, provider.NewError(providerName, "getPaymentStatus", "failed to query VakıfBank payment",
			fmt.Errorf("%w: unreadable response: %w", provider.ErrRejected, err))
	}
	if result.ResultCode != resultSuccess {
		return nil, provider.NewError(providerName, "getPaymentStatus", "failed to query VakıfBank payment",
			provider.Rejectedf("%s %s", result.ResultCode, result.ResultMessage))
	}

	status := &payment.PaymentStatus{
		PaymentID: paymentID,
		Status:    payment.StatusPending,
		UpdatedAt: p.now(),
		Metadata:  map[string]any{"transactions": len(result.Transactions)},
	}

	var refunded float64
	for _, txn := range result.Transactions {
		amount, _ := strconv.ParseFloat(txn.Amount, 64)
		switch {
		case txn.TransactionType == "Sale" && txn.ResultCode == resultSuccess:
			status.Status = payment.StatusCompleted
			status.Amount = amount
			status.Currency = currencyName(txn.CurrencyCode)
			status.Metadata["transactionId"] = txn.TransactionID
		case txn.TransactionType == "Sale":
			status.Status = payment.StatusFailed
			status.Message = txn.ResultDetail
		case txn.TransactionType == "Refund" && txn.ResultCode == resultSuccess:
			refunded += amount
		case txn.TransactionType == "Cancel" && txn.ResultCode == resultSuccess:
			status.Status = payment.StatusCancelled
		}
	}
	if refunded > 0 && status.Status == payment.StatusCompleted {
		status.Status = payment.StatusRefunded
		status.Metadata["refundedAmount"] = refunded
	}
	return status, nil
}

type vposRequest struct {
	XMLName                xml.Name `xml:"VposRequest"`
	MerchantID             string   `xml:"MerchantId"`
	Password               string   `xml:"Password"`
	TerminalNo             string   `xml:"TerminalNo"`
	TransactionType        string   `xml:"TransactionType"`
	ReferenceTransactionID string   `xml:"ReferenceTransactionId"`
	TransactionID          string   `xml:"TransactionId"`
	CurrencyAmount         string   `xml:"CurrencyAmount"`
	ClientIP               string   `xml:"ClientIp,omitempty"`
}

type vposResponse struct {
	XMLName       xml.Name `xml:"VposResponse"`
	ResultCode    string   `xml:"ResultCode"`
	ResultDetail  string   `xml:"ResultDetail"`
	TransactionID string   `xml:"TransactionId"`
	AuthCode      string   `xml:"AuthCode"`
}

// RefundPayment refunds amount of the sale; nil refunds the whole sale
func (p *Provider) RefundPayment(ctx context.Context, paymentID string, amount *float64) (*payment.Response, error) {
	if paymentID == "" {
		return nil, provider.InvalidRequestf("vakifbank: payment id is required")
	}

	status, err := p.GetPaymentStatus(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	saleID, _ := status.Metadata["transactionId"].(string)
	if saleID == "" {
		return nil, provider.NewError(providerName, "refundPayment", "failed to refund VakıfBank payment",
			provider.Rejectedf("no approved sale for order %s", paymentID))
	}

	refundAmount := status.Amount
	if amount != nil {
		refundAmount = *amount
	}
	if refundAmount <= 0 {
		return nil, provider.InvalidRequestf("vakifbank: refund amount must be greater than zero")
	}

	reference := payment.RefundReference("vakifbank", paymentID, refundAmount)
	body, err := xml.Marshal(vposRequest{
		MerchantID:             p.cfg.MerchantID,
		Password:               p.cfg.Password,
		TerminalNo:             p.cfg.TerminalID,
		TransactionType:        "Refund",
		ReferenceTransactionID: saleID,
		TransactionID:          reference,
		CurrencyAmount:         provider.FormatAmount(refundAmount),
	})
	if err != nil {
		return nil, provider.NewError(providerName, "refundPayment", "failed to encode refund request", err)
	}

	resp, err := p.client.SendForm(ctx, &provider.HTTPRequest{
		Method:         http.MethodPost,
		Endpoint:       p.vposURL + endpointVposReq,
		FormData:       map[string]string{"prmstr": string(body)},
		IdempotencyKey: reference,
	})
	if err != nil {
		return nil, provider.NewError(providerName, "refundPayment", "failed to refund VakıfBank payment", err)
	}

	var result vposResponse
	if err := p.client.ParseXMLResponse(resp, &result); err != nil {
		return nil, provider.NewError(providerName, "refundPayment", "failed to refund VakıfBank payment",
			fmt.Errorf("%w: unreadable response: %w", provider.ErrRejected, err))
	}
	if result.ResultCode != resultSuccess {
		return nil, provider.NewError(providerName, "refundPayment", "failed to refund VakıfBank payment",
			provider.Rejectedf("%s %s", result.ResultCode, result.ResultDetail))
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
			"transactionId": result.TransactionID,
			"authCode":      result.AuthCode,
		},
	}, nil
}

func requestLanguage(locale string) string {
	if strings.HasPrefix(strings.ToLower(locale), "en") {
		return "en-US"
	}
	return "tr-TR"
}

func currencyName(code string) string {
	switch code {
	case "949":
		return "TRY"
	case "840":
		return "USD"
	case "978":
		return "EUR"
	default:
		return code
	}
}
