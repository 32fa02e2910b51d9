package shipping

import (
	"strconv"
	"strings"
	"time"
)

// Operating modes
const (
	ModeSandbox    = "sandbox"
	ModeProduction = "production"
	ModeLive       = "live"
)

// Fees is the merchant handling fee added on top of a carrier price
type Fees struct {
	Percentage float64 `json:"percentage"`
	Fixed      float64 `json:"fixed"`
}

// Config is the configuration record of one carrier
type Config struct {
	Name             string        `json:"name"`
	AccountNumber    string        `json:"accountNumber,omitempty"`
	Username         string        `json:"username,omitempty"`
	Password         string        `json:"-"`
	APIKey           string        `json:"-"`
	CustomerCode     string        `json:"customerCode,omitempty"`
	Endpoint         string        `json:"endpoint,omitempty"`
	TrackingEndpoint string        `json:"trackingEndpoint,omitempty"`
	Mode             string        `json:"mode"`
	Enabled          bool          `json:"enabled"`
	Default          bool          `json:"default"`
	Fees             Fees          `json:"fees"`
	Currencies       []string      `json:"currencies,omitempty"`
	Countries        []string      `json:"countries,omitempty"`
	Shipper          Address       `json:"shipper"`
	WebhookURL       string        `json:"webhookUrl,omitempty"`
	WebhookSecret    string        `json:"-"`
	Timeout          time.Duration `json:"timeout,omitempty"`
	// PriceRate is the share of the declared value charged by value-priced carriers
	PriceRate float64 `json:"priceRate,omitempty"`
	// Rate* override the carrier's default local tariff
	RateMinimum       float64 `json:"rateMinimum,omitempty"`
	RatePerKg         float64 `json:"ratePerKg,omitempty"`
	RateInternational float64 `json:"rateInternational,omitempty"`
}

// IsProduction reports whether the carrier talks to live endpoints
func (c Config) IsProduction() bool {
	return c.Mode == ModeProduction || c.Mode == ModeLive
}

// ConfigFromMap converts a settings-store record into a Config.
// Missing "enabled" means enabled; missing "mode" means sandbox.
func ConfigFromMap(name string, values map[string]string) Config {
	cfg := Config{
		Name:             name,
		AccountNumber:    strings.TrimSpace(values["accountNumber"]),
		Username:         strings.TrimSpace(values["username"]),
		Password:         values["password"],
		APIKey:           strings.TrimSpace(values["apiKey"]),
		CustomerCode:     strings.TrimSpace(values["customerCode"]),
		Endpoint:         strings.TrimSpace(values["endpoint"]),
		TrackingEndpoint: strings.TrimSpace(values["trackingEndpoint"]),
		Mode:             strings.ToLower(strings.TrimSpace(values["mode"])),
		Enabled:          true,
		WebhookURL:       strings.TrimSpace(values["webhookUrl"]),
		WebhookSecret:    values["webhookSecret"],
		Currencies:       splitList(values["currencies"]),
		Countries:        splitList(values["countries"]),
		Shipper: Address{
			Name:        values["shipperName"],
			Company:     values["shipperCompany"],
			Line1:       values["shipperAddress"],
			City:        values["shipperCity"],
			District:    values["shipperDistrict"],
			PostalCode:  values["shipperPostalCode"],
			CountryCode: values["shipperCountry"],
			Phone:       values["shipperPhone"],
			Email:       values["shipperEmail"],
		},
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeSandbox
	}
	if v, err := strconv.ParseBool(strings.TrimSpace(values["enabled"])); err == nil {
		cfg.Enabled = v
	}
	if v, err := strconv.ParseBool(strings.TrimSpace(values["default"])); err == nil {
		cfg.Default = v
	}
	if cfg.Shipper.CountryCode == "" {
		cfg.Shipper.CountryCode = "TR"
	}
	cfg.Fees.Percentage, _ = strconv.ParseFloat(strings.TrimSpace(values["feePercentage"]), 64)
	cfg.Fees.Fixed, _ = strconv.ParseFloat(strings.TrimSpace(values["feeFixed"]), 64)
	cfg.PriceRate, _ = strconv.ParseFloat(strings.TrimSpace(values["priceRate"]), 64)
	cfg.RateMinimum, _ = strconv.ParseFloat(strings.TrimSpace(values["rateMinimum"]), 64)
	cfg.RatePerKg, _ = strconv.ParseFloat(strings.TrimSpace(values["ratePerKg"]), 64)
	cfg.RateInternational, _ = strconv.ParseFloat(strings.TrimSpace(values["rateInternational"]), 64)
	if timeout := strings.TrimSpace(values["timeout"]); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			cfg.Timeout = d
		} else if seconds, err := strconv.Atoi(timeout); err == nil {
			cfg.Timeout = time.Duration(seconds) * time.Second
		}
	}
	return cfg
}

// Values flattens the config back into settings keys for field validation
func (c Config) Values() map[string]string {
	return map[string]string{
		"accountNumber":    c.AccountNumber,
		"username":         c.Username,
		"password":         c.Password,
		"apiKey":           c.APIKey,
		"customerCode":     c.CustomerCode,
		"endpoint":         c.Endpoint,
		"trackingEndpoint": c.TrackingEndpoint,
		"mode":             c.Mode,
	}
}

// CurrenciesOr returns the configured currencies or the carrier defaults
func (c Config) CurrenciesOr(defaults []string) []string {
	if len(c.Currencies) > 0 {
		return c.Currencies
	}
	return defaults
}

// PriceRateOr returns the configured declared-value rate or fallback
func (c Config) PriceRateOr(fallback float64) float64 {
	if c.PriceRate > 0 {
		return c.PriceRate
	}
	return fallback
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
