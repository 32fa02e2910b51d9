package ptt

import (
	"context"
	"encoding/xml"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/mstgnz/storegate/provider"
	"github.com/mstgnz/storegate/shipping"
)

const (
	providerName = "PTT Kargo"

	sandboxAcceptanceURL    = "https://pttws.ptt.gov.tr/PttVeriYuklemeTest/services/Sorgu"
	productionAcceptanceURL = "https://pttws.ptt.gov.tr/PttVeriYukleme/services/Sorgu"
	sandboxTrackingURL      = "https://pttws.ptt.gov.tr/GonderiTakipV2Test/services/Sorgu"
	productionTrackingURL   = "https://pttws.ptt.gov.tr/GonderiTakipV2/services/Sorgu"
	trackingPage            = "https://gonderitakip.ptt.gov.tr/Track/Verify?q="

	acceptanceNS = "http://kabul.ptt.gov.tr"
	trackingNS   = "http://sorgu.takip.ptt.gov.tr"

	barcodePrefix    = "PTT"
	defaultPriceRate = 0.04
	resultSuccess    = "1"
)

// DefaultTariff is the local rate table used for quotes
var DefaultTariff = shipping.Tariff{
	Currency:                "TRY",
	MinimumPrice:            35,
	PerKg:                   10,
	InternationalMultiplier: 4,
	Tiers: []shipping.ServiceTier{
		{Code: shipping.ServiceEconomic, Name: "PTT Ekonomik", Multiplier: 0.75, DomesticDays: 5, InternationalDays: 15},
		{Code: shipping.ServiceStandard, Name: "PTT Standart", Multiplier: 1.0, DomesticDays: 3, InternationalDays: 10},
		{Code: shipping.ServiceExpress, Name: "PTT APS Kurye", Multiplier: 1.6, DomesticDays: 1, InternationalDays: 6},
	},
}

var requiredFields = []provider.ConfigField{
	{
		Key:         "username",
		Required:    true,
		Type:        "string",
		Description: "PTT web service user (kullanici)",
		Example:     "PttWs",
	},
	{
		Key:         "password",
		Required:    true,
		Type:        "string",
		Description: "PTT web service password (sifre)",
		Example:     "secret",
	},
	{
		Key:         "customerCode",
		Required:    true,
		Type:        "number",
		Description: "PTT contract customer id (musteriId)",
		Example:     "904311",
		Pattern:     "^[0-9]+$",
	},
	provider.ModeField,
}

// Option customizes a PTT provider
type Option func(*Provider)

// WithEndpoints points acceptance and tracking calls at other SOAP endpoints
func WithEndpoints(acceptance, tracking string) Option {
	return func(p *Provider) {
		p.acceptanceURL = acceptance
		p.trackingURL = tracking
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

// Provider implements shipping.Provider for PTT Kargo
type Provider struct {
	cfg           shipping.Config
	tariff        shipping.Tariff
	acceptanceURL string
	trackingURL   string
	transport     http.RoundTripper
	client        *provider.ProviderHTTPClient
	now           func() time.Time
}

// New creates a PTT Kargo provider. Endpoint overrides the acceptance
// service and TrackingEndpoint the tracking service.
func New(cfg shipping.Config, opts ...Option) (*Provider, error) {
	if err := provider.ValidateConfigFields("ptt", cfg.Values(), requiredFields); err != nil {
		return nil, err
	}

	p := &Provider{
		cfg:           cfg,
		tariff:        DefaultTariff.WithOverrides(cfg),
		acceptanceURL: sandboxAcceptanceURL,
		trackingURL:   sandboxTrackingURL,
		now:           time.Now,
	}
	if cfg.IsProduction() {
		p.acceptanceURL = productionAcceptanceURL
		p.trackingURL = productionTrackingURL
	}
	if cfg.Endpoint != "" {
		p.acceptanceURL = cfg.Endpoint
	}
	if cfg.TrackingEndpoint != "" {
		p.trackingURL = cfg.TrackingEndpoint
	}
	for _, opt := range opts {
		opt(p)
	}

	// endpoints are absolute, so no base URL
	clientConfig := provider.CreateHTTPClientConfig(providerName, "", cfg.Timeout)
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
	return provider.ValidateConfigFields("ptt", p.cfg.Values(), requiredFields) == nil
}

type shipmentLine struct {
	Address       string  `xml:"aAdres"`
	Recipient     string  `xml:"aliciAdi"`
	City          string  `xml:"aliciIlAdi"`
	District      string  `xml:"aliciIlceAdi"`
	Phone         string  `xml:"aliciSms,omitempty"`
	Email         string  `xml:"aliciEmail,omitempty"`
	WeightGrams   int     `xml:"agirlik"`
	Barcode       string  `xml:"barkodNo"`
	Length        float64 `xml:"boy"`
	Width         float64 `xml:"en"`
	Height        float64 `xml:"yukseklik"`
	Desi          float64 `xml:"desi"`
	DeclaredValue float64 `xml:"deger_ucreti"`
	Reference     string  `xml:"musteriReferansNo"`
}

type acceptanceRequest struct {
	XMLName xml.Name `xml:"kab:kabulEkle2"`
	Input   struct {
		Username   string         `xml:"kullanici"`
		Password   string         `xml:"sifre"`
		CustomerID string         `xml:"musteriId"`
		FileName   string         `xml:"dosyaAdi"`
		Kind       string         `xml:"gonderiTip"`
		Type       string         `xml:"gonderiTur"`
		Lines      []shipmentLine `xml:"dongu"`
	} `xml:"input"`
}

type acceptanceResponse struct {
	XMLName xml.Name `xml:"kabulEkle2Response"`
	Return  struct {
		Message string `xml:"aciklama"`
		Code    string `xml:"hataKodu"`
		Lines   []struct {
			Barcode string `xml:"barkod"`
			Message string `xml:"donguAciklama"`
			Result  string `xml:"donguSonuc"`
		} `xml:"dongu"`
	} `xml:"return"`
}

type trackingRequest struct {
	XMLName xml.Name `xml:"sor:gonderiSorgu"`
	Input   struct {
		Username string `xml:"kullanici"`
		Password string `xml:"sifre"`
		Barcode  string `xml:"barkod"`
	} `xml:"input"`
}

type movement struct {
	Date     string `xml:"islemTarihi"`
	Time     string `xml:"islemSaati"`
	Event    string `xml:"islem"`
	Office   string `xml:"birim"`
	City     string `xml:"il"`
	District string `xml:"ilce"`
}

type trackingResponseBody struct {
	XMLName xml.Name `xml:"gonderiSorguResponse"`
	Return  struct {
		Code      string     `xml:"sonucKodu"`
		Message   string     `xml:"sonucAciklama"`
		Barcode   string     `xml:"barkod"`
		State     string     `xml:"durum"`
		Recipient string     `xml:"aliciAdi"`
		Movements []movement `xml:"hareketler>hareket"`
	} `xml:"return"`
}

// CalculateRate quotes every service tier from the local tariff
func (p *Provider) CalculateRate(_ context.Context, order shipping.Order) ([]shipping.Rate, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}
	return p.tariff.Quote(order, providerName, p.now()), nil
}

// CreateShipment registers the parcel with a fresh barcode via kabulEkle2
func (p *Provider) CreateShipment(ctx context.Context, order shipping.Order) (*shipping.ShipmentResponse, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}

	now := p.now()
	barcode := shipping.ShipmentKey(barcodePrefix, now)
	recipient := order.Recipient
	length, width, height := dimensionsCm(order.Packages)

	var req acceptanceRequest
	req.Input.Username = p.cfg.Username
	req.Input.Password = p.cfg.Password
	req.Input.CustomerID = p.cfg.CustomerCode
	req.Input.FileName = "SG" + now.Format("20060102") + "-" + order.OrderID
	req.Input.Kind = "NORMAL"
	req.Input.Type = "KARGO"
	req.Input.Lines = []shipmentLine{{
		Address:       strings.TrimSpace(recipient.Line1 + " " + recipient.Line2),
		Recipient:     recipient.Name,
		City:          recipient.City,
		District:      recipient.District,
		Phone:         recipient.Phone,
		Email:         recipient.Email,
		WeightGrams:   int(math.Ceil(order.TotalWeightKg() * 1000)),
		Barcode:       barcode,
		Length:        length,
		Width:         width,
		Height:        height,
		Desi:          math.Ceil(length * width * height / 3000),
		DeclaredValue: order.DeclaredValue,
		Reference:     order.OrderID,
	}}

	body, err := provider.EncodeSOAP("kab", acceptanceNS, req)
	if err != nil {
		return nil, provider.NewError(providerName, "createShipment", "failed to create PTT shipment", err)
	}

	resp, err := p.client.SendXML(ctx, &provider.HTTPRequest{
		Method:         http.MethodPost,
		Endpoint:       p.acceptanceURL,
		Body:           body,
		Headers:        map[string]string{"SOAPAction": `"kabulEkle2"`},
		IdempotencyKey: order.OrderID,
	})
	if err != nil {
		return nil, provider.NewError(providerName, "createShipment", "failed to create PTT shipment", provider.SOAPFaultError(resp, err))
	}

	var result acceptanceResponse
	if err := provider.DecodeSOAP(resp.Body, &result); err != nil {
		return nil, provider.NewError(providerName, "createShipment", "failed to create PTT shipment", err)
	}
	if result.Return.Code != resultSuccess {
		return nil, provider.NewError(providerName, "createShipment", "failed to create PTT shipment",
			provider.Rejectedf("%s %s", result.Return.Code, result.Return.Message))
	}
	for _, line := range result.Return.Lines {
		if line.Result != "" && line.Result != resultSuccess {
			return nil, provider.NewError(providerName, "createShipment", "failed to create PTT shipment",
				provider.Rejectedf("barcode %s: %s", line.Barcode, line.Message))
		}
	}

	tier := p.tariff.Tier(order.ServiceCode)
	days := tier.InternationalDays
	if recipient.IsDomestic() {
		days = tier.DomesticDays
	}
	delivery := shipping.AddBusinessDays(now, days)

	return &shipping.ShipmentResponse{
		ShipmentID:        barcode,
		TrackingNumber:    barcode,
		Provider:          providerName,
		Status:            shipping.StatusCreated,
		Price:             shipping.DeclaredValuePrice(order, p.cfg.PriceRateOr(defaultPriceRate), 0),
		Currency:          p.tariff.Currency,
		OrderID:           order.OrderID,
		EstimatedDelivery: &delivery,
		CreatedAt:         now,
		Metadata: map[string]any{
			"barcode":     barcode,
			"fileName":    req.Input.FileName,
			"serviceCode": tier.Code,
			"trackingUrl": trackingPage + barcode,
		},
	}, nil
}

// TrackShipment lists the barcode movements via gonderiSorgu
func (p *Provider) TrackShipment(ctx context.Context, trackingNumber string) (*shipping.TrackingResponse, error) {
	if trackingNumber == "" {
		return nil, provider.InvalidRequestf("ptt: tracking number is required")
	}

	var req trackingRequest
	req.Input.Username = p.cfg.Username
	req.Input.Password = p.cfg.Password
	req.Input.Barcode = trackingNumber

	body, err := provider.EncodeSOAP("sor", trackingNS, req)
	if err != nil {
		return nil, provider.NewError(providerName, "trackShipment", "failed to track PTT shipment", err)
	}

	resp, err := p.client.SendXML(ctx, &provider.HTTPRequest{
		Method:   http.MethodPost,
		Endpoint: p.trackingURL,
		Body:     body,
		Headers:  map[string]string{"SOAPAction": `"gonderiSorgu"`},
	})
	if err != nil {
		return nil, provider.NewError(providerName, "trackShipment", "failed to track PTT shipment", provider.SOAPFaultError(resp, err))
	}

	var result trackingResponseBody
	if err := provider.DecodeSOAP(resp.Body, &result); err != nil {
		return nil, provider.NewError(providerName, "trackShipment", "failed to track PTT shipment", err)
	}
	if result.Return.Code != resultSuccess {
		return nil, provider.NewError(providerName, "trackShipment", "failed to track PTT shipment",
			provider.Rejectedf("%s %s", result.Return.Code, result.Return.Message))
	}

	tracking := &shipping.TrackingResponse{
		TrackingNumber: trackingNumber,
		Provider:       providerName,
		Status:         shipping.StatusFromDescription(result.Return.State),
		Metadata:       map[string]any{"state": result.Return.State},
	}
	for _, m := range result.Return.Movements {
		timestamp, _ := time.ParseInLocation("02.01.2006 15:04", m.Date+" "+m.Time, turkey)
		tracking.Events = append(tracking.Events, shipping.TrackingEvent{
			Timestamp:   timestamp,
			Status:      shipping.StatusFromDescription(m.Event),
			Location:    officeLocation(m),
			Description: m.Event,
		})
	}
	sort.SliceStable(tracking.Events, func(i, j int) bool {
		return tracking.Events[i].Timestamp.Before(tracking.Events[j].Timestamp)
	})
	if n := len(tracking.Events); n > 0 {
		tracking.Location = tracking.Events[n-1].Location
		if tracking.Status == shipping.StatusUnknown {
			tracking.Status = tracking.Events[n-1].Status
		}
	}
	return tracking, nil
}

var turkey = time.FixedZone("TRT", 3*60*60)

// dimensionsCm returns the largest package extent per axis in centimeters
func dimensionsCm(packages []shipping.Package) (length, width, height float64) {
	for _, pkg := range packages {
		l, w, h := pkg.Length, pkg.Width, pkg.Height
		if strings.EqualFold(pkg.DimensionUnit, shipping.DimIn) {
			l, w, h = l*2.54, w*2.54, h*2.54
		}
		length = math.Max(length, l)
		width = math.Max(width, w)
		height = math.Max(height, h)
	}
	return length, width, height
}

func officeLocation(m movement) string {
	if m.Office != "" {
		return m.Office
	}
	if m.District != "" && m.City != "" {
		return m.District + "/" + m.City
	}
	return m.City
}
