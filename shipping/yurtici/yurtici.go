package yurtici

import (
	"context"
	"encoding/xml"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mstgnz/storegate/provider"
	"github.com/mstgnz/storegate/shipping"
)

const (
	providerName = "Yurtiçi Kargo"

	sandboxURL    = "https://testws.yurticikargo.com/KOPSWebServices/ShippingOrderDispatcherServices"
	productionURL = "https://ws.yurticikargo.com/KOPSWebServices/ShippingOrderDispatcherServices"
	trackingPage  = "https://www.yurticikargo.com/tr/online-servisler/gonderi-sorgula?code="

	serviceNS = "http://yurticikargo.com.tr/ShippingOrderDispatcherServices"

	keyPrefix        = "YK"
	defaultPriceRate = 0.05
	resultSuccess    = "0"
)

// DefaultTariff is the local rate table used for quotes
var DefaultTariff = shipping.Tariff{
	Currency:                "TRY",
	MinimumPrice:            45,
	PerKg:                   15,
	InternationalMultiplier: 3.5,
	Tiers: []shipping.ServiceTier{
		{Code: shipping.ServiceEconomic, Name: "Ekonomik Kargo", Multiplier: 0.8, DomesticDays: 4, InternationalDays: 12},
		{Code: shipping.ServiceStandard, Name: "Standart Kargo", Multiplier: 1.0, DomesticDays: 2, InternationalDays: 8},
		{Code: shipping.ServiceExpress, Name: "Hızlı Kargo", Multiplier: 1.5, DomesticDays: 1, InternationalDays: 5},
	},
}

var requiredFields = []provider.ConfigField{
	{
		Key:         "username",
		Required:    true,
		Type:        "string",
		Description: "Yurtiçi Kargo web service user (wsUserName)",
		Example:     "YKTEST",
	},
	{
		Key:         "password",
		Required:    true,
		Type:        "string",
		Description: "Yurtiçi Kargo web service password",
		Example:     "YK",
	},
	provider.ModeField,
}

// Option customizes a Yurtiçi provider
type Option func(*Provider)

// WithEndpoint points the provider at another SOAP endpoint
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) { p.endpoint = endpoint }
}

// WithTransport sets the HTTP transport of the provider client
func WithTransport(transport http.RoundTripper) Option {
	return func(p *Provider) { p.transport = transport }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// Provider implements shipping.Provider for Yurtiçi Kargo
type Provider struct {
	cfg       shipping.Config
	tariff    shipping.Tariff
	endpoint  string
	transport http.RoundTripper
	client    *provider.ProviderHTTPClient
	now       func() time.Time
}

// New creates a Yurtiçi Kargo provider
func New(cfg shipping.Config, opts ...Option) (*Provider, error) {
	if err := provider.ValidateConfigFields("yurtici", cfg.Values(), requiredFields); err != nil {
		return nil, err
	}

	p := &Provider{
		cfg:      cfg,
		tariff:   DefaultTariff.WithOverrides(cfg),
		endpoint: sandboxURL,
		now:      time.Now,
	}
	if cfg.IsProduction() {
		p.endpoint = productionURL
	}
	if cfg.Endpoint != "" {
		p.endpoint = cfg.Endpoint
	}
	for _, opt := range opts {
		opt(p)
	}

	clientConfig := provider.CreateHTTPClientConfig(providerName, p.endpoint, cfg.Timeout)
	clientConfig.DefaultHeaders["Accept"] = "text/xml"
	clientConfig.IsRejection = provider.IsSOAPFault
	clientConfig.Transport = p.transport
	p.client = provider.NewProviderHTTPClient(clientConfig)

	return p, nil
}

func (p *Provider) ProviderName() string {
	return providerName
}

func (p *Provider) ValidateConfig() bool {
	return provider.ValidateConfigFields("yurtici", p.cfg.Values(), requiredFields) == nil
}

type shippingOrder struct {
	CargoKey         string  `xml:"cargoKey"`
	InvoiceKey       string  `xml:"invoiceKey"`
	ReceiverCustName string  `xml:"receiverCustName"`
	ReceiverAddress  string  `xml:"receiverAddress"`
	CityName         string  `xml:"cityName"`
	TownName         string  `xml:"townName"`
	ReceiverPhone1   string  `xml:"receiverPhone1"`
	EmailAddress     string  `xml:"emailAddress,omitempty"`
	CargoCount       int     `xml:"cargoCount"`
	Kg               float64 `xml:"kg"`
	Desi             float64 `xml:"desi,omitempty"`
	Description      string  `xml:"description,omitempty"`
	WaybillNo        string  `xml:"waybillNo,omitempty"`
}

type createShipmentRequest struct {
	XMLName       xml.Name        `xml:"ship:createShipment"`
	WsUserName    string          `xml:"wsUserName"`
	WsPassword    string          `xml:"wsPassword"`
	UserLanguage  string          `xml:"userLanguage"`
	ShippingOrder []shippingOrder `xml:"ShippingOrderVO"`
}

type createShipmentResponse struct {
	XMLName xml.Name `xml:"createShipmentResponse"`
	Result  struct {
		OutFlag   string `xml:"outFlag"`
		OutResult string `xml:"outResult"`
		JobID     string `xml:"jobId"`
		Details   []struct {
			CargoKey   string `xml:"cargoKey"`
			InvoiceKey string `xml:"invoiceKey"`
			ErrCode    string `xml:"errCode"`
			ErrMessage string `xml:"errMessage"`
		} `xml:"shippingOrderDetailVO"`
	} `xml:"ShippingOrderResultVO"`
}

type queryShipmentRequest struct {
	XMLName           xml.Name `xml:"ship:queryShipment"`
	WsUserName        string   `xml:"wsUserName"`
	WsPassword        string   `xml:"wsPassword"`
	WsLanguage        string   `xml:"wsLanguage"`
	Keys              []string `xml:"keys"`
	KeyType           int      `xml:"keyType"`
	AddHistoricalData bool     `xml:"addHistoricalData"`
	OnlyTracking      bool     `xml:"onlyTracking"`
}

type cargoEvent struct {
	EventName string `xml:"eventName"`
	UnitName  string `xml:"unitName"`
	CityName  string `xml:"cityName"`
	TownName  string `xml:"townName"`
	EventDate string `xml:"eventDate"`
	EventTime string `xml:"eventTime"`
}

type queryShipmentResponse struct {
	XMLName  xml.Name `xml:"queryShipmentResponse"`
	Delivery struct {
		OutFlag   string `xml:"outFlag"`
		OutResult string `xml:"outResult"`
		Details   []struct {
			CargoKey         string `xml:"cargoKey"`
			OperationStatus  string `xml:"operationStatus"`
			OperationMessage string `xml:"operationMessage"`
			ErrCode          string `xml:"errCode"`
			ErrMessage       string `xml:"errMessage"`
			Item             struct {
				DocID           string       `xml:"docId"`
				TrackingURL     string       `xml:"trackingUrl"`
				ArrivalUnitName string       `xml:"arrivalUnitName"`
				Events          []cargoEvent `xml:"invDocCargoVOArray"`
			} `xml:"shippingDeliveryItemDetailVO"`
		} `xml:"shippingDeliveryDetailVO"`
	} `xml:"ShippingDeliveryVO"`
}

// CalculateRate quotes every service tier from the local tariff
func (p *Provider) CalculateRate(_ context.Context, order shipping.Order) ([]shipping.Rate, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}
	return p.tariff.Quote(order, providerName, p.now()), nil
}

// CreateShipment registers the shipment under a fresh cargo key
func (p *Provider) CreateShipment(ctx context.Context, order shipping.Order) (*shipping.ShipmentResponse, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}

	now := p.now()
	cargoKey := shipping.ShipmentKey(keyPrefix, now)
	recipient := order.Recipient

	body, err := provider.EncodeSOAP("ship", serviceNS, createShipmentRequest{
		WsUserName:   p.cfg.Username,
		WsPassword:   p.cfg.Password,
		UserLanguage: "TR",
		ShippingOrder: []shippingOrder{{
			CargoKey:         cargoKey,
			InvoiceKey:       order.OrderID,
			ReceiverCustName: recipient.Name,
			ReceiverAddress:  strings.TrimSpace(recipient.Line1 + " " + recipient.Line2),
			CityName:         recipient.City,
			TownName:         recipient.District,
			ReceiverPhone1:   recipient.Phone,
			EmailAddress:     recipient.Email,
			CargoCount:       len(order.Packages),
			Kg:               order.TotalWeightKg(),
			Desi:             desi(order.Packages),
			Description:      order.Description,
		}},
	})
	if err != nil {
		return nil, provider.NewError(providerName, "createShipment", "failed to create Yurtiçi shipment", err)
	}

	resp, err := p.client.SendXML(ctx, &provider.HTTPRequest{
		Method:         http.MethodPost,
		Body:           body,
		Headers:        map[string]string{"SOAPAction": `"createShipment"`},
		IdempotencyKey: order.OrderID,
	})
	if err != nil {
		return nil, provider.NewError(providerName, "createShipment", "failed to create Yurtiçi shipment", provider.SOAPFaultError(resp, err))
	}

	var result createShipmentResponse
	if err := provider.DecodeSOAP(resp.Body, &result); err != nil {
		return nil, provider.NewError(providerName, "createShipment", "failed to create Yurtiçi shipment", err)
	}
	if result.Result.OutFlag != resultSuccess {
		reason := result.Result.OutResult
		for _, d := range result.Result.Details {
			if d.ErrCode != "" && d.ErrCode != resultSuccess {
				reason = d.ErrCode + " " + d.ErrMessage
				break
			}
		}
		return nil, provider.NewError(providerName, "createShipment", "failed to create Yurtiçi shipment",
			provider.Rejectedf("%s", strings.TrimSpace(reason)))
	}

	tier := p.tariff.Tier(order.ServiceCode)
	days := tier.InternationalDays
	if recipient.IsDomestic() {
		days = tier.DomesticDays
	}
	delivery := shipping.AddBusinessDays(now, days)

	shipmentID := cargoKey
	if result.Result.JobID != "" && result.Result.JobID != "0" {
		shipmentID = result.Result.JobID
	}

	return &shipping.ShipmentResponse{
		ShipmentID:        shipmentID,
		TrackingNumber:    cargoKey,
		Provider:          providerName,
		Status:            shipping.StatusCreated,
		Price:             shipping.DeclaredValuePrice(order, p.cfg.PriceRateOr(defaultPriceRate), 0),
		Currency:          p.tariff.Currency,
		OrderID:           order.OrderID,
		EstimatedDelivery: &delivery,
		CreatedAt:         now,
		Metadata: map[string]any{
			"cargoKey":    cargoKey,
			"jobId":       result.Result.JobID,
			"serviceCode": tier.Code,
			"trackingUrl": trackingPage + url.QueryEscape(cargoKey),
		},
	}, nil
}

// TrackShipment queries the cargo movements of a cargo key
func (p *Provider) TrackShipment(ctx context.Context, trackingNumber string) (*shipping.TrackingResponse, error) {
	if trackingNumber == "" {
		return nil, provider.InvalidRequestf("yurtici: tracking number is required")
	}

	body, err := provider.EncodeSOAP("ship", serviceNS, queryShipmentRequest{
		WsUserName:        p.cfg.Username,
		WsPassword:        p.cfg.Password,
		WsLanguage:        "TR",
		Keys:              []string{trackingNumber},
		KeyType:           0,
		AddHistoricalData: true,
	})
	if err != nil {
		return nil, provider.NewError(providerName, "trackShipment", "failed to track Yurtiçi shipment", err)
	}

	resp, err := p.client.SendXML(ctx, &provider.HTTPRequest{
		Method:  http.MethodPost,
		Body:    body,
		Headers: map[string]string{"SOAPAction": `"queryShipment"`},
	})
	if err != nil {
		return nil, provider.NewError(providerName, "trackShipment", "failed to track Yurtiçi shipment", provider.SOAPFaultError(resp, err))
	}

	var result queryShipmentResponse
	if err := provider.DecodeSOAP(resp.Body, &result); err != nil {
		return nil, provider.NewError(providerName, "trackShipment", "failed to track Yurtiçi shipment", err)
	}
	if result.Delivery.OutFlag != resultSuccess || len(result.Delivery.Details) == 0 {
		return nil, provider.NewError(providerName, "trackShipment", "failed to track Yurtiçi shipment",
			provider.Rejectedf("%s", strings.TrimSpace(result.Delivery.OutResult)))
	}

	detail := result.Delivery.Details[0]
	if detail.ErrCode != "" && detail.ErrCode != resultSuccess {
		return nil, provider.NewError(providerName, "trackShipment", "failed to track Yurtiçi shipment",
			provider.Rejectedf("%s %s", detail.ErrCode, detail.ErrMessage))
	}

	tracking := &shipping.TrackingResponse{
		TrackingNumber: trackingNumber,
		Provider:       providerName,
		Status:         mapOperationStatus(detail.OperationStatus),
		Location:       detail.Item.ArrivalUnitName,
		Metadata: map[string]any{
			"operationStatus": detail.OperationStatus,
			"docId":           detail.Item.DocID,
			"trackingUrl":     detail.Item.TrackingURL,
		},
	}
	for _, ev := range detail.Item.Events {
		timestamp, _ := time.ParseInLocation("20060102150405", ev.EventDate+padTime(ev.EventTime), istanbul)
		tracking.Events = append(tracking.Events, shipping.TrackingEvent{
			Timestamp:   timestamp,
			Status:      shipping.StatusFromDescription(ev.EventName),
			Location:    location(ev),
			Description: ev.EventName,
		})
	}
	sort.SliceStable(tracking.Events, func(i, j int) bool {
		return tracking.Events[i].Timestamp.Before(tracking.Events[j].Timestamp)
	})
	if tracking.Location == "" && len(tracking.Events) > 0 {
		tracking.Location = tracking.Events[len(tracking.Events)-1].Location
	}
	return tracking, nil
}

var istanbul = time.FixedZone("TRT", 3*60*60)

func mapOperationStatus(status string) shipping.TrackingStatus {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "NOP":
		return shipping.StatusCreated
	case "IND", "ISR":
		return shipping.StatusInTransit
	case "DLV":
		return shipping.StatusDelivered
	case "CNL", "ISC":
		return shipping.StatusException
	case "BI", "RTN":
		return shipping.StatusReturned
	default:
		return shipping.StatusUnknown
	}
}

func location(ev cargoEvent) string {
	if ev.UnitName != "" {
		return ev.UnitName
	}
	parts := make([]string, 0, 2)
	for _, part := range []string{ev.TownName, ev.CityName} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, "/")
}

func padTime(hhmmss string) string {
	for len(hhmmss) < 6 {
		hhmmss = "0" + hhmmss
	}
	return hhmmss
}

// desi is the volumetric weight (cm³ / 3000)
func desi(packages []shipping.Package) float64 {
	var total float64
	for _, pkg := range packages {
		l, w, h := pkg.Length, pkg.Width, pkg.Height
		if strings.EqualFold(pkg.DimensionUnit, shipping.DimIn) {
			l, w, h = l*2.54, w*2.54, h*2.54
		}
		total += l * w * h / 3000
	}
	return total
}
