package paytr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/mstgnz/storegate/payment"
	"github.com/mstgnz/storegate/provider"
)

const (
	providerName   = "PayTR"
	defaultBaseURL = "https://www.paytr.com"

	// API Endpoints
	endpointIFrameToken   = "/odeme/api/get-token"
	endpointPaymentStatus = "/odeme/durum-sorgu"
	endpointRefund        = "/odeme/iade"
	endpointPaymentPage   = "/odeme/guvenlik/"

	// PayTR status values
	statusSuccess = "success"
	statusFailed  = "failed"
	statusWaiting = "waiting"
	statusError   = "error"

	defaultPaymentTTL = 30 * time.Minute
	defaultLang       = "tr"
)

var (
	defaultCurrencies = []string{"TL", "USD", "EUR", "GBP"}
	defaultCountries  = []string{"TR"}

	requiredFields = []provider.ConfigField{
		{
			Key:         "merchantId",
			Required:    true,
			Type:        "string",
			Description: "PayTR Merchant ID (Mağaza No)",
			Example:     "123456",
			Pattern:     "^[0-9]+$",
		},
		{
			Key:         "merchantKey",
			Required:    true,
			Type:        "string",
			Description: "PayTR Merchant Key",
			Example:     "XXXXXXXXXXXXXXXX",
			MinLength:   8,
		},
		{
			Key:         "merchantSalt",
			Required:    true,
			Type:        "string",
			Description: "PayTR Merchant Salt",
			Example:     "XXXXXXXXXXXXXXXX",
			MinLength:   8,
		},
		provider.ModeField,
	}
)

// Option customizes a PayTR provider
type Option func(*Provider)

// WithSigner replaces the default HMAC-SHA256 token signer
func WithSigner(signer provider.Signer) Option {
	return func(p *Provider) { p.signer = signer }
}

// WithBaseURL points the provider at another host, e.g. a test server
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

// Provider implements payment.Provider for the PayTR iFrame API
type Provider struct {
	cfg       payment.Config
	baseURL   string
	signer    provider.Signer
	transport http.RoundTripper
	client    *provider.ProviderHTTPClient
	now       func() time.Time
}

// New creates a PayTR provider. Missing credentials fail with provider.ErrInvalidConfig.
func New(cfg payment.Config, opts ...Option) (*Provider, error) {
	if err := provider.ValidateConfigFields("paytr", cfg.Values(), requiredFields); err != nil {
		return nil, err
	}

	p := &Provider{
		cfg:     cfg,
		baseURL: defaultBaseURL,
		signer:  provider.HMACSHA256Base64{Key: cfg.MerchantKey},
		now:     time.Now,
	}
	if cfg.Endpoint != "" {
		p.baseURL = strings.TrimRight(cfg.Endpoint, "/")
	}
	for _, opt := range opts {
		opt(p)
	}

	clientConfig := provider.CreateHTTPClientConfig(providerName, p.baseURL, cfg.Timeout)
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

// ValidateConfig reports whether the merchant credentials are complete
func (p *Provider) ValidateConfig() bool {
	return provider.ValidateConfigFields("paytr", p.cfg.Values(), requiredFields) == nil
}

// CreatePayment requests an iFrame token and returns the hosted payment page
func (p *Provider) CreatePayment(ctx context.Context, request payment.Request) (*payment.Response, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}
	if err := payment.CheckCurrency(p, request.Currency); err != nil {
		return nil, err
	}
	if request.Customer.Email == "" {
		return nil, provider.InvalidRequestf("paytr: customer email is required")
	}
	if request.Customer.IP == "" {
		return nil, provider.InvalidRequestf("paytr: customer IP is required")
	}

	merchantOid := MerchantOID(request.OrderID)
	basket, err := buildUserBasket(request)
	if err != nil {
		return nil, provider.NewError(providerName, "createPayment", "failed to encode basket", err)
	}

	ttl := p.cfg.TTLOr(defaultPaymentTTL)
	maxInstallment := "0"
	noInstallment := "1"
	if request.InstallmentCount > 1 {
		maxInstallment = strconv.Itoa(request.InstallmentCount)
		noInstallment = "0"
	}

	data := map[string]string{
		"merchant_id":       p.cfg.MerchantID,
		"user_ip":           request.Customer.IP,
		"merchant_oid":      merchantOid,
		"email":             request.Customer.Email,
		"payment_amount":    strconv.FormatInt(provider.ToMinorUnits(request.Amount), 10),
		"user_basket":       basket,
		"no_installment":    noInstallment,
		"max_installment":   maxInstallment,
		"currency":          wireCurrency(request.Currency),
		"test_mode":         p.testMode(),
		"merchant_ok_url":   request.SuccessURL,
		"merchant_fail_url": request.CancelURL,
		"user_name":         request.Customer.FullName(),
		"user_phone":        request.Customer.Phone,
		"user_address":      addressLine(request),
		"timeout_limit":     strconv.Itoa(int(ttl.Minutes())),
		"debug_on":          "0",
		"lang":              lang(request.Locale),
	}
	data["paytr_token"] = p.signer.Sign(
		data["merchant_id"], data["user_ip"], data["merchant_oid"], data["email"],
		data["payment_amount"], data["user_basket"], data["no_installment"],
		data["max_installment"], data["currency"], data["test_mode"], p.cfg.MerchantSalt,
	)

	result, err := p.post(ctx, endpointIFrameToken, data, merchantOid)
	if err != nil {
		return nil, provider.NewError(providerName, "createPayment", "failed to create PayTR payment", err)
	}
	if stringValue(result["status"]) != statusSuccess {
		return nil, provider.NewError(providerName, "createPayment", "failed to create PayTR payment",
			provider.Rejectedf("%s", stringValue(result["reason"])))
	}

	token := stringValue(result["token"])
	paymentURL := p.baseURL + endpointPaymentPage + token
	now := p.now()
	expiresAt := now.Add(ttl)

	return &payment.Response{
		ID:         merchantOid,
		Provider:   providerName,
		Status:     payment.StatusPending,
		Amount:     request.Amount,
		Currency:   request.Currency,
		OrderID:    request.OrderID,
		PaymentURL: paymentURL,
		HTML: fmt.Sprintf(`<iframe src="%s" id="paytriframe" frameborder="0" scrolling="no" style="width: 100%%;"></iframe>`,
			html.EscapeString(paymentURL)),
		CreatedAt: now,
		ExpiresAt: &expiresAt,
		Metadata: map[string]any{
			"token":       token,
			"merchantOid": merchantOid,
			"testMode":    data["test_mode"] == "1",
		},
	}, nil
}

// GetPaymentStatus queries the status of a merchant order
func (p *Provider) GetPaymentStatus(ctx context.Context, paymentID string) (*payment.PaymentStatus, error) {
	if paymentID == "" {
		return nil, provider.InvalidRequestf("paytr: payment id is required")
	}

	data := map[string]string{
		"merchant_id":  p.cfg.MerchantID,
		"merchant_oid": paymentID,
	}
	data["paytr_token"] = p.signer.Sign(p.cfg.MerchantID, paymentID, p.cfg.MerchantSalt)

	result, err := p.post(ctx, endpointPaymentStatus, data, "")
	if err != nil {
		return nil, provider.NewError(providerName, "getPaymentStatus", "failed to query PayTR payment", err)
	}

	status := stringValue(result["status"])
	if status == statusError {
		return nil, provider.NewError(providerName, "getPaymentStatus", "failed to query PayTR payment",
			provider.Rejectedf("%s", stringValue(result["err_msg"])))
	}

	out := &payment.PaymentStatus{
		PaymentID: paymentID,
		Status:    mapStatus(status),
		Amount:    floatValue(result["payment_amount"]),
		Currency:  stringValue(result["currency"]),
		Message:   stringValue(result["failed_reason_msg"]),
		UpdatedAt: p.now(),
		Metadata:  map[string]any{"paymentTotal": floatValue(result["payment_total"])},
	}
	if returns, ok := result["returns"].([]any); ok && len(returns) > 0 && out.Status == payment.StatusCompleted {
		out.Status = payment.StatusRefunded
		out.Metadata["returns"] = returns
	}
	return out, nil
}

// RefundPayment returns amount to the buyer; nil refunds the whole payment
func (p *Provider) RefundPayment(ctx context.Context, paymentID string, amount *float64) (*payment.Response, error) {
	if paymentID == "" {
		return nil, provider.InvalidRequestf("paytr: payment id is required")
	}

	// the status query supplies the currency; a full refund also needs its amount
	status, statusErr := p.GetPaymentStatus(ctx, paymentID)
	currency := p.SupportedCurrencies()[0]
	if statusErr == nil && status.Currency != "" {
		currency = status.Currency
	}
	refundAmount := 0.0
	if amount != nil {
		refundAmount = *amount
	} else {
		if statusErr != nil {
			return nil, statusErr
		}
		refundAmount = status.Amount
	}
	if refundAmount <= 0 {
		return nil, provider.InvalidRequestf("paytr: refund amount must be greater than zero")
	}

	returnAmount := provider.FormatAmount(refundAmount)
	reference := payment.RefundReference("paytr", paymentID, refundAmount)
	data := map[string]string{
		"merchant_id":   p.cfg.MerchantID,
		"merchant_oid":  paymentID,
		"return_amount": returnAmount,
		"reference_no":  reference,
	}
	data["paytr_token"] = p.signer.Sign(p.cfg.MerchantID, paymentID, returnAmount, p.cfg.MerchantSalt)

	result, err := p.post(ctx, endpointRefund, data, reference)
	if err != nil {
		return nil, provider.NewError(providerName, "refundPayment", "failed to refund PayTR payment", err)
	}
	if stringValue(result["status"]) != statusSuccess {
		return nil, provider.NewError(providerName, "refundPayment", "failed to refund PayTR payment",
			provider.Rejectedf("%s %s", stringValue(result["err_no"]), stringValue(result["err_msg"])))
	}

	return &payment.Response{
		ID:        reference,
		Provider:  providerName,
		Status:    payment.StatusRefunded,
		Amount:    refundAmount,
		Currency:  currency,
		OrderID:   paymentID,
		CreatedAt: p.now(),
		Metadata: map[string]any{
			"referenceNo": reference,
			"isTest":      stringValue(result["is_test"]) == "1",
		},
	}, nil
}

// HandleCallback verifies the hash of a PayTR notification
func (p *Provider) HandleCallback(values map[string]string) (*payment.PaymentStatus, error) {
	merchantOid := values["merchant_oid"]
	status := values["status"]
	totalAmount := values["total_amount"]
	if merchantOid == "" || status == "" || totalAmount == "" {
		return nil, provider.InvalidRequestf("paytr: callback is missing merchant_oid, status or total_amount")
	}

	if !provider.VerifySignature(p.signer, values["hash"], merchantOid, p.cfg.MerchantSalt, status, totalAmount) {
		return nil, provider.Rejectedf("paytr: callback hash mismatch for %s", merchantOid)
	}

	minor, _ := strconv.ParseInt(totalAmount, 10, 64)
	return &payment.PaymentStatus{
		PaymentID: merchantOid,
		Status:    mapStatus(status),
		Amount:    provider.FromMinorUnits(minor),
		Currency:  values["currency"],
		Message:   values["failed_reason_msg"],
		UpdatedAt: p.now(),
		Metadata: map[string]any{
			"paymentType":      values["payment_type"],
			"failedReasonCode": values["failed_reason_code"],
		},
	}, nil
}

func (p *Provider) post(ctx context.Context, endpoint string, data map[string]string, idempotencyKey string) (map[string]any, error) {
	resp, err := p.client.SendForm(ctx, &provider.HTTPRequest{
		Method:         http.MethodPost,
		Endpoint:       endpoint,
		FormData:       data,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return nil, err
	}

	var result map[string]any
	if err := p.client.ParseJSONResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("%w: unreadable response: %w", provider.ErrRejected, err)
	}
	return result, nil
}

func (p *Provider) testMode() string {
	if p.cfg.IsProduction() {
		return "0"
	}
	return "1"
}

// MerchantOID converts an order id into the alphanumeric merchant_oid PayTR accepts
func MerchantOID(orderID string) string {
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return -1
	}, orderID)
}

func buildUserBasket(request payment.Request) (string, error) {
	items := request.Basket()
	basket := make([][]string, 0, len(items))
	for _, item := range items {
		basket = append(basket, []string{
			item.Name,
			provider.FormatAmount(item.Price),
			strconv.Itoa(max(item.Quantity, 1)),
		})
	}

	jsonData, err := json.Marshal(basket)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(jsonData), nil
}

func addressLine(request payment.Request) string {
	addr := request.BillingAddress
	if addr == nil {
		addr = request.ShippingAddress
	}
	if addr == nil {
		return ""
	}
	parts := make([]string, 0, 3)
	for _, part := range []string{addr.Address, addr.City, addr.Country} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, ", ")
}

func wireCurrency(currency string) string {
	switch strings.ToUpper(currency) {
	case "TRY", "TL":
		return "TL"
	default:
		return strings.ToUpper(currency)
	}
}

func lang(locale string) string {
	if strings.HasPrefix(strings.ToLower(locale), "en") {
		return "en"
	}
	return defaultLang
}

func mapStatus(status string) payment.Status {
	switch status {
	case statusSuccess:
		return payment.StatusCompleted
	case statusWaiting:
		return payment.StatusPending
	case statusFailed:
		return payment.StatusFailed
	default:
		return payment.StatusPending
	}
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func floatValue(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	default:
		return 0
	}
}
