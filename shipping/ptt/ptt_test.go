package ptt

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/mstgnz/storegate/provider"
	"github.com/mstgnz/storegate/shipping"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func testConfig() shipping.Config {
	return shipping.Config{
		Name:         "ptt",
		Username:     "PttWs",
		Password:     "secret",
		CustomerCode: "904311",
		Mode:         shipping.ModeSandbox,
		Enabled:      true,
	}
}

func testOrder() shipping.Order {
	return shipping.Order{
		OrderID:  "ORD-900",
		Customer: shipping.Customer{Name: "Mehmet Öz", Email: "mehmet@example.com"},
		Recipient: shipping.Address{
			Name:        "Mehmet Öz",
			Line1:       "Cumhuriyet Mah. 12",
			City:        "İzmir",
			District:    "Konak",
			CountryCode: "TR",
		},
		Packages:      []shipping.Package{{Weight: 2, Length: 30, Width: 20, Height: 10}},
		DeclaredValue: 450,
		Currency:      "TRY",
	}
}

type pttServer struct {
	mu        sync.Mutex
	status    int
	responses map[string]string
	bodies    map[string][]string
}

func newPTTServer() *pttServer {
	return &pttServer{responses: map[string]string{}, bodies: map[string][]string{}}
}

func (s *pttServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.bodies[r.URL.Path] = append(s.bodies[r.URL.Path], string(body))
	status, response := s.status, s.responses[r.URL.Path]
	s.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, response)
}

func (s *pttServer) sent(path string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.bodies[path]...)
}

func envelope(body string) string {
	return `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>` + body + `</soap:Body></soap:Envelope>`
}

func newTestProvider(t *testing.T, srv *pttServer) *Provider {
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	p, err := New(testConfig(),
		WithEndpoints(ts.URL+"/kabul", ts.URL+"/takip"),
		WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return p
}

func TestNew_RequiresCredentials(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*shipping.Config)
	}{
		{"missing username", func(c *shipping.Config) { c.Username = "" }},
		{"missing password", func(c *shipping.Config) { c.Password = "" }},
		{"missing customer", func(c *shipping.Config) { c.CustomerCode = "" }},
		{"non numeric customer", func(c *shipping.Config) { c.CustomerCode = "C-1" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			_, err := New(cfg)
			assert.ErrorIs(t, err, provider.ErrInvalidConfig)
		})
	}
}

func TestNew_Endpoints(t *testing.T) {
	cfg := testConfig()
	p, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, sandboxAcceptanceURL, p.acceptanceURL)
	assert.Equal(t, sandboxTrackingURL, p.trackingURL)

	cfg.Mode = shipping.ModeLive
	cfg.TrackingEndpoint = "https://track.example.com/Sorgu"
	p, err = New(cfg)
	require.NoError(t, err)
	assert.Equal(t, productionAcceptanceURL, p.acceptanceURL)
	assert.Equal(t, "https://track.example.com/Sorgu", p.trackingURL)
	assert.True(t, p.ValidateConfig())
}

func TestFactory_Aliases(t *testing.T) {
	for _, name := range []string{"ptt", "PTT", "PTT Kargo"} {
		p, err := shipping.Create(name, testConfig())
		require.NoError(t, err, name)
		assert.Equal(t, "PTT Kargo", p.ProviderName())
	}
}

func TestCalculateRate(t *testing.T) {
	p, err := New(testConfig(), WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)

	rates, err := p.CalculateRate(context.Background(), testOrder())
	require.NoError(t, err)
	require.Len(t, rates, 3)

	want := map[string]float64{
		shipping.ServiceEconomic: 26.25,
		shipping.ServiceStandard: 35,
		shipping.ServiceExpress:  56,
	}
	for _, rate := range rates {
		assert.Equal(t, want[rate.ServiceCode], rate.Price, rate.ServiceCode)
		assert.Greater(t, rate.EstimatedDays, 0)
		assert.Equal(t, "PTT Kargo", rate.Provider)
	}

	order := testOrder()
	order.Packages = nil
	_, err = p.CalculateRate(context.Background(), order)
	assert.ErrorIs(t, err, provider.ErrInvalidRequest)
}

func TestCreateShipment(t *testing.T) {
	srv := newPTTServer()
	srv.responses["/kabul"] = envelope(`<ns2:kabulEkle2Response xmlns:ns2="http://kabul.ptt.gov.tr"><return>
		<aciklama>BASARILI</aciklama><hataKodu>1</hataKodu>
		<dongu><barkod>x</barkod><donguAciklama>BASARILI</donguAciklama><donguSonuc>1</donguSonuc></dongu>
		</return></ns2:kabulEkle2Response>`)
	p := newTestProvider(t, srv)

	resp, err := p.CreateShipment(context.Background(), testOrder())
	require.NoError(t, err)

	assert.Regexp(t, `^PTT1772442000000\d{6}$`, resp.TrackingNumber)
	assert.Equal(t, resp.TrackingNumber, resp.ShipmentID)
	assert.Equal(t, 18.0, resp.Price)
	assert.Equal(t, "PTT Kargo", resp.Provider)
	require.NotNil(t, resp.EstimatedDelivery)
	assert.Equal(t, time.Thursday, resp.EstimatedDelivery.Weekday())
	assert.Equal(t, "SG20260302-ORD-900", resp.Metadata["fileName"])

	bodies := srv.sent("/kabul")
	require.Len(t, bodies, 1)
	var sent struct {
		Body struct {
			Op struct {
				Input struct {
					Customer string `xml:"musteriId"`
					Line     struct {
						Weight  int     `xml:"agirlik"`
						Barcode string  `xml:"barkodNo"`
						Desi    float64 `xml:"desi"`
						City    string  `xml:"aliciIlAdi"`
						Ref     string  `xml:"musteriReferansNo"`
					} `xml:"dongu"`
				} `xml:"input"`
			} `xml:"kabulEkle2"`
		} `xml:"Body"`
	}
	require.NoError(t, xml.Unmarshal([]byte(bodies[0]), &sent))
	assert.Equal(t, "904311", sent.Body.Op.Input.Customer)
	assert.Equal(t, 2000, sent.Body.Op.Input.Line.Weight)
	assert.Equal(t, 2.0, sent.Body.Op.Input.Line.Desi)
	assert.Equal(t, resp.TrackingNumber, sent.Body.Op.Input.Line.Barcode)
	assert.Equal(t, "İzmir", sent.Body.Op.Input.Line.City)
	assert.Equal(t, "ORD-900", sent.Body.Op.Input.Line.Ref)
}

func TestCreateShipment_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		response string
		contains string
	}{
		{
			name:     "header error",
			response: envelope(`<kabulEkle2Response><return><aciklama>MUSTERI BULUNAMADI</aciklama><hataKodu>-4</hataKodu></return></kabulEkle2Response>`),
			contains: "MUSTERI BULUNAMADI",
		},
		{
			name: "line error",
			response: envelope(`<kabulEkle2Response><return><aciklama>KISMI</aciklama><hataKodu>1</hataKodu>
				<dongu><barkod>PTT1</barkod><donguAciklama>BARKOD DAHA ONCE KULLANILMIS</donguAciklama><donguSonuc>-1</donguSonuc></dongu></return></kabulEkle2Response>`),
			contains: "BARKOD DAHA ONCE KULLANILMIS",
		},
		{
			name:     "empty body",
			response: envelope(``),
			contains: "unexpected SOAP body",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newPTTServer()
			srv.responses["/kabul"] = tt.response
			p := newTestProvider(t, srv)

			_, err := p.CreateShipment(context.Background(), testOrder())
			require.Error(t, err)
			assert.ErrorIs(t, err, provider.ErrRejected)
			assert.Contains(t, err.Error(), tt.contains)
			assert.Contains(t, err.Error(), "failed to create PTT shipment")
		})
	}
}

func TestTrackShipment(t *testing.T) {
	srv := newPTTServer()
	srv.responses["/takip"] = envelope(`<gonderiSorguResponse><return>
		<sonucKodu>1</sonucKodu><barkod>PTT1</barkod><durum>TESLİM EDİLDİ</durum>
		<hareketler>
			<hareket><islemTarihi>03.03.2026</islemTarihi><islemSaati>14:20</islemSaati><islem>TESLİM EDİLDİ</islem><birim>KONAK PTT</birim></hareket>
			<hareket><islemTarihi>02.03.2026</islemTarihi><islemSaati>10:05</islemSaati><islem>KABUL EDİLDİ</islem><il>ANKARA</il><ilce>ÇANKAYA</ilce></hareket>
			<hareket><islemTarihi>03.03.2026</islemTarihi><islemSaati>08:40</islemSaati><islem>DAĞITIMA ÇIKARILDI</islem><birim>KONAK PTT</birim></hareket>
		</hareketler></return></gonderiSorguResponse>`)
	p := newTestProvider(t, srv)

	tracking, err := p.TrackShipment(context.Background(), "PTT1")
	require.NoError(t, err)

	assert.Equal(t, shipping.StatusDelivered, tracking.Status)
	assert.Equal(t, "KONAK PTT", tracking.Location)
	require.Len(t, tracking.Events, 3)
	assert.Equal(t, shipping.StatusCreated, tracking.Events[0].Status)
	assert.Equal(t, "ÇANKAYA/ANKARA", tracking.Events[0].Location)
	assert.Equal(t, shipping.StatusOutForDelivery, tracking.Events[1].Status)
	assert.Equal(t, shipping.StatusDelivered, tracking.Events[2].Status)
	assert.Equal(t, 14, tracking.Events[2].Timestamp.Hour())

	bodies := srv.sent("/takip")
	require.Len(t, bodies, 1)
	assert.Contains(t, bodies[0], "<barkod>PTT1</barkod>")
	assert.Contains(t, bodies[0], `xmlns:sor="http://sorgu.takip.ptt.gov.tr"`)
}

func TestTrackShipment_Errors(t *testing.T) {
	srv := newPTTServer()
	srv.responses["/takip"] = envelope(`<gonderiSorguResponse><return><sonucKodu>0</sonucKodu><sonucAciklama>KAYIT YOK</sonucAciklama></return></gonderiSorguResponse>`)
	p := newTestProvider(t, srv)

	_, err := p.TrackShipment(context.Background(), "")
	assert.ErrorIs(t, err, provider.ErrInvalidRequest)

	_, err = p.TrackShipment(context.Background(), "PTT404")
	assert.ErrorIs(t, err, provider.ErrRejected)
	assert.Contains(t, err.Error(), "KAYIT YOK")
}
