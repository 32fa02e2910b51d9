package dhl

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mstgnz/storegate/provider"
	"github.com/mstgnz/storegate/shipping"
)

const (
	providerName = "DHL"

	sandboxBaseURL    = "https://express.api.dhl.com/mydhlapi/test"
	productionBaseURL = "https://express.api.dhl.com/mydhlapi"

	endpointRates     = "/rates"
	endpointShipments = "/shipments"

	dhlTimeLayout = "2006-01-02T15:04:05 GMT-07:00"

	defaultTimeout = 30 * time.Second

	productDomestic      = "N"
	productInternational = "P"
)

var requiredFields = []provider.ConfigField{
	{
		Key:         "username",
		Required:    true,
		Type:        "string",
		Description: "MyDHL API user name",
		Example:     "apXXXXXX",
	},
	{
		Key:         "password",
		Required:    true,
		Type:        "string",
		Description: "MyDHL API password",
		Example:     "secret",
	},
	{
		Key:         "accountNumber",
		Required:    true,
		Type:        "string",
		Description: "DHL Express shipper account number",
		Example:     "123456789",
		Pattern:     "^[0-9]+$",
	},
	provider.ModeField,
}

// Option customizes a DHL provider
type Option func(*Provider)

// WithBaseURL points the provider at another API host, e.g. a test server
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

// Provider implements shipping.Provider for the MyDHL Express API
type Provider struct {
	cfg       shipping.Config
	baseURL   string
	transport http.RoundTripper
	client    *provider.ProviderHTTPClient
	now       func() time.Time
}

// New creates a DHL provider. Missing credentials fail with provider.ErrInvalidConfig.
func New(cfg shipping.Config, opts ...Option) (*Provider, error) {
	if err := provider.ValidateConfigFields("dhl", cfg.Values(), requiredFields); err != nil {
		return nil, err
	}

	p := &Provider{
		cfg:     cfg,
		baseURL: sandboxBaseURL,
		now:     time.Now,
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

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	clientConfig := provider.CreateHTTPClientConfig(providerName, p.baseURL, timeout)
	clientConfig.BasicAuthUser = cfg.Username
	clientConfig.BasicAuthPass = cfg.Password
	clientConfig.Transport = p.transport
	p.client = provider.NewProviderHTTPClient(clientConfig)

	return p, nil
}

func (p *Provider) ProviderName() string {
	return providerName
}

// ValidateConfig reports whether the API credentials and account are present
func (p *Provider) ValidateConfig() bool {
	return provider.ValidateConfigFields("dhl", p.cfg.Values(), requiredFields) == nil
}

type dhlAddress struct {
	PostalCode   string `json:"postalCode,omitempty"`
	CityName     string `json:"cityName"`
	CountryCode  string `json:"countryCode"`
	AddressLine1 string `json:"addressLine1,omitempty"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	CountyName   string `json:"countyName,omitempty"`
}

type dhlContact struct {
	FullName    string `json:"fullName"`
	CompanyName string `json:"companyName"`
	Phone       string `json:"phone"`
	Email       string `json:"email,omitempty"`
}

type dhlParty struct {
	PostalAddress      dhlAddress `json:"postalAddress"`
	ContactInformation dhlContact `json:"contactInformation"`
}

type dhlAccount struct {
	TypeCode string `json:"typeCode"`
	Number   string `json:"number"`
}

type dhlDimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type dhlPackage struct {
	Weight     float64        `json:"weight"`
	Dimensions *dhlDimensions `json:"dimensions,omitempty"`
}

type rateRequest struct {
	CustomerDetails struct {
		ShipperDetails  dhlAddress `json:"shipperDetails"`
		ReceiverDetails dhlAddress `json:"receiverDetails"`
	} `json:"customerDetails"`
	Accounts                   []dhlAccount `json:"accounts"`
	PlannedShippingDateAndTime string       `json:"plannedShippingDateAndTime"`
	UnitOfMeasurement          string       `json:"unitOfMeasurement"`
	IsCustomsDeclarable        bool         `json:"isCustomsDeclarable"`
	Packages                   []dhlPackage `json:"packages"`
	ProductCode                string       `json:"productCode,omitempty"`
}

type dhlPrice struct {
	CurrencyType  string  `json:"currencyType"`
	PriceCurrency string  `json:"priceCurrency"`
	Price         float64 `json:"price"`
}

type rateResponse struct {
	Products []struct {
		ProductName          string     `json:"productName"`
		ProductCode          string     `json:"productCode"`
		TotalPrice           []dhlPrice `json:"totalPrice"`
		DeliveryCapabilities struct {
			EstimatedDeliveryDateAndTime string `json:"estimatedDeliveryDateAndTime"`
			TotalTransitDays             string `json:"totalTransitDays"`
		} `json:"deliveryCapabilities"`
	} `json:"products"`
}

type shipmentRequest struct {
	PlannedShippingDateAndTime string `json:"plannedShippingDateAndTime"`
	Pickup                     struct {
		IsRequested bool `json:"isRequested"`
	} `json:"pickup"`
	ProductCode           string       `json:"productCode"`
	Accounts              []dhlAccount `json:"accounts"`
	OutputImageProperties struct {
		EncodingFormat string        `json:"encodingFormat"`
		ImageOptions   []imageOption `json:"imageOptions"`
	} `json:"outputImageProperties"`
	CustomerDetails struct {
		ShipperDetails  dhlParty `json:"shipperDetails"`
		ReceiverDetails dhlParty `json:"receiverDetails"`
	} `json:"customerDetails"`
	Content struct {
		Packages              []dhlPackage `json:"packages"`
		IsCustomsDeclarable   bool         `json:"isCustomsDeclarable"`
		DeclaredValue         float64      `json:"declaredValue,omitempty"`
		DeclaredValueCurrency string       `json:"declaredValueCurrency,omitempty"`
		Description           string       `json:"description"`
		Incoterm              string       `json:"incoterm"`
		UnitOfMeasurement     string       `json:"unitOfMeasurement"`
	} `json:"content"`
	CustomerReferences []reference `json:"customerReferences"`
}

type imageOption struct {
	TypeCode     string `json:"typeCode"`
	TemplateName string `json:"templateName"`
}

type reference struct {
	Value    string `json:"value"`
	TypeCode string `json:"typeCode"`
}

type shipmentResponse struct {
	ShipmentTrackingNumber string     `json:"shipmentTrackingNumber"`
	TrackingURL            string     `json:"trackingUrl"`
	ShipmentCharges        []dhlPrice `json:"shipmentCharges"`
	Packages               []struct {
		TrackingNumber string `json:"trackingNumber"`
	} `json:"packages"`
	Documents []struct {
		ImageFormat string `json:"imageFormat"`
		Content     string `json:"content"`
		TypeCode    string `json:"typeCode"`
	} `json:"documents"`
	EstimatedDeliveryDate struct {
		EstimatedDeliveryDate string `json:"estimatedDeliveryDate"`
	} `json:"estimatedDeliveryDate"`
}

type trackingResponse struct {
	Shipments []struct {
		ShipmentTrackingNumber string `json:"shipmentTrackingNumber"`
		Status                 string `json:"status"`
		EstimatedDeliveryDate  string `json:"estimatedDeliveryDate"`
		Events                 []struct {
			Date        string `json:"date"`
			Time        string `json:"time"`
			TypeCode    string `json:"typeCode"`
			Description string `json:"description"`
			ServiceArea []struct {
				Code        string `json:"code"`
				Description string `json:"description"`
			} `json:"serviceArea"`
		} `json:"events"`
	} `json:"shipments"`
}

// CalculateRate asks DHL for the products available for the order
func (p *Provider) CalculateRate(ctx context.Context, order shipping.Order) ([]shipping.Rate, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}

	shipper := p.shipper(order)
	req := rateRequest{
		Accounts:                   p.accounts(),
		PlannedShippingDateAndTime: p.now().Format(dhlTimeLayout),
		UnitOfMeasurement:          "metric",
		IsCustomsDeclarable:        !sameCountry(shipper, order.Recipient),
		Packages:                   metricPackages(order.Packages),
		ProductCode:                order.ServiceCode,
	}
	req.CustomerDetails.ShipperDetails = toAddress(shipper)
	req.CustomerDetails.ReceiverDetails = toAddress(order.Recipient)

	resp, err := p.client.SendJSON(ctx, &provider.HTTPRequest{
		Method:   http.MethodPost,
		Endpoint: endpointRates,
		Body:     req,
	})
	if err != nil {
		return nil, provider.NewError(providerName, "calculateRate", "failed to get DHL rates", err)
	}

	var result rateResponse
	if err := p.client.ParseJSONResponse(resp, &result); err != nil {
		return nil, provider.NewError(providerName, "calculateRate", "failed to get DHL rates",
			fmt.Errorf("%w: unreadable response: %w", provider.ErrRejected, err))
	}
	if len(result.Products) == 0 {
		return nil, provider.NewError(providerName, "calculateRate", "failed to get DHL rates",
			provider.Rejectedf("no products offered for this route"))
	}

	rates := make([]shipping.Rate, 0, len(result.Products))
	for _, product := range result.Products {
		price := pickPrice(product.TotalPrice, order.Currency)
		days, _ := strconv.Atoi(product.DeliveryCapabilities.TotalTransitDays)
		rate := shipping.Rate{
			ServiceCode:   product.ProductCode,
			ServiceName:   product.ProductName,
			Price:         math.Max(price.Price, 0),
			Currency:      price.PriceCurrency,
			EstimatedDays: days,
			Provider:      providerName,
		}
		if eta, err := time.Parse("2006-01-02T15:04:05", product.DeliveryCapabilities.EstimatedDeliveryDateAndTime); err == nil {
			rate.EstimatedDelivery = &eta
		}
		rates = append(rates, rate)
	}
	return rates, nil
}

// CreateShipment books a DHL Express shipment and returns the label
func (p *Provider) CreateShipment(ctx context.Context, order shipping.Order) (*shipping.ShipmentResponse, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}

	shipper := p.shipper(order)
	productCode := order.ServiceCode
	if productCode == "" {
		productCode = productInternational
		if sameCountry(shipper, order.Recipient) {
			productCode = productDomestic
		}
	}

	var req shipmentRequest
	req.PlannedShippingDateAndTime = p.now().Format(dhlTimeLayout)
	req.ProductCode = productCode
	req.Accounts = p.accounts()
	req.OutputImageProperties.EncodingFormat = "pdf"
	req.OutputImageProperties.ImageOptions = []imageOption{{TypeCode: "label", TemplateName: "ECOM26_84_001"}}
	req.CustomerDetails.ShipperDetails = toParty(shipper)
	req.CustomerDetails.ReceiverDetails = toParty(order.Recipient)
	req.Content.Packages = metricPackages(order.Packages)
	req.Content.IsCustomsDeclarable = !sameCountry(shipper, order.Recipient)
	req.Content.DeclaredValue = order.DeclaredValue
	req.Content.DeclaredValueCurrency = order.Currency
	req.Content.Description = description(order)
	req.Content.Incoterm = "DAP"
	req.Content.UnitOfMeasurement = "metric"
	req.CustomerReferences = []reference{{Value: order.OrderID, TypeCode: "CU"}}

	resp, err := p.client.SendJSON(ctx, &provider.HTTPRequest{
		Method:         http.MethodPost,
		Endpoint:       endpointShipments,
		Body:           req,
		Headers:        map[string]string{"Message-Reference": uuid.NewString()},
		IdempotencyKey: order.OrderID,
	})
	if err != nil {
		return nil, provider.NewError(providerName, "createShipment", "failed to create DHL shipment", err)
	}

	var result shipmentResponse
	if err := p.client.ParseJSONResponse(resp, &result); err != nil {
		return nil, provider.NewError(providerName, "createShipment", "failed to create DHL shipment",
			fmt.Errorf("%w: unreadable response: %w", provider.ErrRejected, err))
	}
	if result.ShipmentTrackingNumber == "" {
		return nil, provider.NewError(providerName, "createShipment", "failed to create DHL shipment",
			provider.Rejectedf("response carries no tracking number"))
	}

	price := pickPrice(result.ShipmentCharges, order.Currency)
	shipment := &shipping.ShipmentResponse{
		ShipmentID:     result.ShipmentTrackingNumber,
		TrackingNumber: result.ShipmentTrackingNumber,
		Provider:       providerName,
		Status:         shipping.StatusCreated,
		Price:          math.Max(price.Price, 0),
		Currency:       price.PriceCurrency,
		OrderID:        order.OrderID,
		CreatedAt:      p.now(),
		Metadata: map[string]any{
			"productCode": productCode,
			"trackingUrl": result.TrackingURL,
		},
	}
	if shipment.Currency == "" {
		shipment.Currency = order.Currency
	}
	for _, doc := range result.Documents {
		if strings.EqualFold(doc.TypeCode, "label") {
			shipment.LabelData = doc.Content
			break
		}
	}
	if eta, err := time.Parse("2006-01-02", result.EstimatedDeliveryDate.EstimatedDeliveryDate); err == nil {
		shipment.EstimatedDelivery = &eta
	}
	return shipment, nil
}

// TrackShipment returns the shipment checkpoints, oldest first
func (p *Provider) TrackShipment(ctx context.Context, trackingNumber string) (*shipping.TrackingResponse, error) {
	if trackingNumber == "" {
		return nil, provider.InvalidRequestf("dhl: tracking number is required")
	}

	resp, err := p.client.SendJSON(ctx, &provider.HTTPRequest{
		Method:      http.MethodGet,
		Endpoint:    endpointShipments + "/" + url.PathEscape(trackingNumber) + "/tracking",
		QueryParams: map[string]string{"trackingView": "all-checkpoints", "levelOfDetail": "all"},
	})
	if err != nil {
		return nil, provider.NewError(providerName, "trackShipment", "failed to track DHL shipment", err)
	}

	var result trackingResponse
	if err := p.client.ParseJSONResponse(resp, &result); err != nil {
		return nil, provider.NewError(providerName, "trackShipment", "failed to track DHL shipment",
			fmt.Errorf("%w: unreadable response: %w", provider.ErrRejected, err))
	}
	if len(result.Shipments) == 0 {
		return nil, provider.NewError(providerName, "trackShipment", "failed to track DHL shipment",
			provider.Rejectedf("shipment %s not found", trackingNumber))
	}

	shipment := result.Shipments[0]
	tracking := &shipping.TrackingResponse{
		TrackingNumber: trackingNumber,
		Provider:       providerName,
		Status:         shipping.StatusUnknown,
	}
	for _, event := range shipment.Events {
		timestamp, err := time.Parse("2006-01-02 15:04:05", event.Date+" "+event.Time)
		if err != nil {
			timestamp, _ = time.Parse("2006-01-02", event.Date)
		}
		location := ""
		if len(event.ServiceArea) > 0 {
			location = event.ServiceArea[0].Description
		}
		tracking.Events = append(tracking.Events, shipping.TrackingEvent{
			Timestamp:   timestamp,
			Status:      mapEvent(event.TypeCode),
			Location:    location,
			Description: event.Description,
		})
	}
	sort.SliceStable(tracking.Events, func(i, j int) bool {
		return tracking.Events[i].Timestamp.Before(tracking.Events[j].Timestamp)
	})

	if n := len(tracking.Events); n > 0 {
		latest := tracking.Events[n-1]
		tracking.Status = latest.Status
		tracking.Location = latest.Location
	}
	if eta, err := time.Parse("2006-01-02", shipment.EstimatedDeliveryDate); err == nil {
		tracking.EstimatedDelivery = &eta
	}
	tracking.Metadata = map[string]any{"dhlStatus": shipment.Status}
	return tracking, nil
}

// metricPackages converts packages to kilograms and centimeters
func metricPackages(packages []shipping.Package) []dhlPackage {
	out := make([]dhlPackage, 0, len(packages))
	for _, pkg := range packages {
		weight := pkg.Weight
		if strings.EqualFold(pkg.WeightUnit, shipping.WeightLb) {
			weight = LbToKg(weight)
		}
		item := dhlPackage{Weight: round3(weight)}
		if pkg.Length > 0 && pkg.Width > 0 && pkg.Height > 0 {
			length, width, height := pkg.Length, pkg.Width, pkg.Height
			if strings.EqualFold(pkg.DimensionUnit, shipping.DimIn) {
				length, width, height = InToCm(length), InToCm(width), InToCm(height)
			}
			item.Dimensions = &dhlDimensions{Length: round3(length), Width: round3(width), Height: round3(height)}
		}
		out = append(out, item)
	}
	return out
}

func (p *Provider) shipper(order shipping.Order) shipping.Address {
	if order.Shipper != nil {
		return *order.Shipper
	}
	return p.cfg.Shipper
}

func (p *Provider) accounts() []dhlAccount {
	return []dhlAccount{{TypeCode: "shipper", Number: p.cfg.AccountNumber}}
}

func toAddress(a shipping.Address) dhlAddress {
	return dhlAddress{
		PostalCode:   a.PostalCode,
		CityName:     a.City,
		CountryCode:  strings.ToUpper(a.CountryCode),
		AddressLine1: a.Line1,
		AddressLine2: a.Line2,
		CountyName:   a.District,
	}
}

func toParty(a shipping.Address) dhlParty {
	company := a.Company
	if company == "" {
		company = a.Name
	}
	return dhlParty{
		PostalAddress: toAddress(a),
		ContactInformation: dhlContact{
			FullName:    a.Name,
			CompanyName: company,
			Phone:       a.Phone,
			Email:       a.Email,
		},
	}
}

func sameCountry(a, b shipping.Address) bool {
	return strings.EqualFold(countryOrTR(a.CountryCode), countryOrTR(b.CountryCode))
}

func countryOrTR(code string) string {
	if code == "" {
		return "TR"
	}
	return code
}

// pickPrice prefers the billing-currency price, then the order currency
func pickPrice(prices []dhlPrice, currency string) dhlPrice {
	for _, price := range prices {
		if price.CurrencyType == "BILLC" {
			return price
		}
	}
	for _, price := range prices {
		if strings.EqualFold(price.PriceCurrency, currency) {
			return price
		}
	}
	if len(prices) > 0 {
		return prices[0]
	}
	return dhlPrice{PriceCurrency: currency}
}

func mapEvent(code string) shipping.TrackingStatus {
	switch strings.ToUpper(code) {
	case "SA", "PL":
		return shipping.StatusCreated
	case "PU", "DF", "AF", "AR", "CC", "CR", "TR", "TP":
		return shipping.StatusInTransit
	case "WC":
		return shipping.StatusOutForDelivery
	case "OK", "DD":
		return shipping.StatusDelivered
	case "RT", "RR":
		return shipping.StatusReturned
	case "OH", "MS", "BA", "CA", "HP", "NH", "CD", "UD":
		return shipping.StatusException
	default:
		return shipping.StatusUnknown
	}
}

func description(order shipping.Order) string {
	if order.Description != "" {
		return order.Description
	}
	names := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		names = append(names, item.Name)
	}
	if len(names) == 0 {
		return "Order " + order.OrderID
	}
	return strings.Join(names, ", ")
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
