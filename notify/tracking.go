package notify

import (
	"bytes"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/mstgnz/storegate/provider"
)

// TrackingItem is one ordered line item shown in the notification
type TrackingItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// TrackingAddress is the delivery address shown in the notification
type TrackingAddress struct {
	Name         string `json:"name"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city"`
	PostalCode   string `json:"postalCode"`
	Country      string `json:"country"`
}

// TrackingNotificationData is everything the tracking email renders
type TrackingNotificationData struct {
	CustomerEmail     string          `json:"customerEmail"`
	CustomerName      string          `json:"customerName"`
	OrderNumber       string          `json:"orderNumber"`
	Carrier           string          `json:"carrier"`
	TrackingNumber    string          `json:"trackingNumber"`
	TrackingURL       string          `json:"trackingUrl,omitempty"`
	EstimatedDelivery string          `json:"estimatedDelivery,omitempty"`
	Items             []TrackingItem  `json:"items"`
	ShippingAddress   TrackingAddress `json:"shippingAddress"`
}

var funcs = map[string]any{
	"money": provider.FormatAmount,
	"lineTotal": func(item TrackingItem) string {
		return provider.FormatAmount(item.Price * float64(item.Quantity))
	},
	"upper": strings.ToUpper,
}

var trackingHTML = htmltemplate.Must(htmltemplate.New("tracking.html").Funcs(funcs).Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>Merhaba {{.CustomerName}},</h2>
  <p>#{{.OrderNumber}} numaralı siparişiniz {{.Carrier}} ile kargoya verildi.</p>
  <p><strong>Takip numarası:</strong> {{.TrackingNumber}}</p>
  {{- if .EstimatedDelivery}}
  <p><strong>Tahmini teslimat:</strong> {{.EstimatedDelivery}}</p>
  {{- end}}
  {{- if .TrackingURL}}
  <p><a href="{{.TrackingURL}}">Kargonuzu takip edin</a></p>
  {{- end}}
  {{- if .Items}}
  <table cellpadding="6" style="border-collapse: collapse;">
    <tr><th align="left">Ürün</th><th>Adet</th><th align="right">Tutar</th></tr>
    {{- range .Items}}
    <tr><td>{{.Name}}</td><td align="center">{{.Quantity}}</td><td align="right">{{lineTotal .}}</td></tr>
    {{- end}}
  </table>
  {{- end}}
  <h3>Teslimat adresi</h3>
  <p>
    {{.ShippingAddress.Name}}<br>
    {{.ShippingAddress.AddressLine1}}<br>
    {{- if .ShippingAddress.AddressLine2}}
    {{.ShippingAddress.AddressLine2}}<br>
    {{- end}}
    {{.ShippingAddress.PostalCode}} {{.ShippingAddress.City}}<br>
    {{upper .ShippingAddress.Country}}
  </p>
</body>
</html>`))

var trackingText = texttemplate.Must(texttemplate.New("tracking.txt").Funcs(funcs).Parse(`Merhaba {{.CustomerName}},

#{{.OrderNumber}} numaralı siparişiniz {{.Carrier}} ile kargoya verildi.
Takip numarası: {{.TrackingNumber}}
{{- if .EstimatedDelivery}}
Tahmini teslimat: {{.EstimatedDelivery}}
{{- end}}
{{- if .TrackingURL}}
Takip: {{.TrackingURL}}
{{- end}}
{{if .Items}}
Ürünler:
{{- range .Items}}
- {{.Name}} x{{.Quantity}}: {{lineTotal .}}
{{- end}}
{{end}}
Teslimat adresi:
{{.ShippingAddress.Name}}
{{.ShippingAddress.AddressLine1}}
{{- if .ShippingAddress.AddressLine2}}
{{.ShippingAddress.AddressLine2}}
{{- end}}
{{.ShippingAddress.PostalCode}} {{.ShippingAddress.City}}
{{upper .ShippingAddress.Country}}
`))

func renderTracking(data TrackingNotificationData) (string, string, error) {
	var html, text bytes.Buffer
	if err := trackingHTML.Execute(&html, data); err != nil {
		return "", "", err
	}
	if err := trackingText.Execute(&text, data); err != nil {
		return "", "", err
	}
	return html.String(), text.String(), nil
}
