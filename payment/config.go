package payment

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mstgnz/storegate/provider"
)

// Operating modes
const (
	ModeSandbox    = "sandbox"
	ModeTest       = "test"
	ModeProduction = "production"
	ModeLive       = "live"
)

// Fees is the merchant fee schedule applied on top of a charge
type Fees struct {
	Percentage float64 `json:"percentage"`
	Fixed      float64 `json:"fixed"`
}

// Config is the configuration record of one payment gateway
type Config struct {
	Name          string        `json:"name"`
	MerchantID    string        `json:"merchantId"`
	MerchantKey   string        `json:"-"`
	MerchantSalt  string        `json:"-"`
	TerminalID    string        `json:"terminalId,omitempty"`
	CustomerCode  string        `json:"customerCode,omitempty"`
	StoreKey      string        `json:"-"`
	Username      string        `json:"username,omitempty"`
	Password      string        `json:"-"`
	Endpoint      string        `json:"endpoint,omitempty"`
	Mode          string        `json:"mode"`
	Enabled       bool          `json:"enabled"`
	Default       bool          `json:"default"`
	Fees          Fees          `json:"fees"`
	Currencies    []string      `json:"currencies,omitempty"`
	Countries     []string      `json:"countries,omitempty"`
	WebhookURL    string        `json:"webhookUrl,omitempty"`
	WebhookSecret string        `json:"-"`
	PaymentTTL    time.Duration `json:"paymentTtl,omitempty"`
	Timeout       time.Duration `json:"timeout,omitempty"`
}

// IsProduction reports whether the gateway talks to live endpoints
func (c Config) IsProduction() bool {
	return c.Mode == ModeProduction || c.Mode == ModeLive
}

// ConfigFromMap converts a settings-store record into a Config.
// Missing "enabled" means enabled; missing "mode" means sandbox.
func ConfigFromMap(name string, values map[string]string) Config {
	cfg := Config{
		Name:          name,
		MerchantID:    strings.TrimSpace(values["merchantId"]),
		MerchantKey:   strings.TrimSpace(values["merchantKey"]),
		MerchantSalt:  strings.TrimSpace(values["merchantSalt"]),
		TerminalID:    strings.TrimSpace(values["terminalId"]),
		CustomerCode:  strings.TrimSpace(values["customerCode"]),
		StoreKey:      strings.TrimSpace(values["storeKey"]),
		Username:      strings.TrimSpace(values["username"]),
		Password:      values["password"],
		Endpoint:      strings.TrimSpace(values["endpoint"]),
		Mode:          strings.ToLower(strings.TrimSpace(values["mode"])),
		Enabled:       parseBool(values["enabled"], true),
		Default:       parseBool(values["default"], false),
		Currencies:    splitList(values["currencies"]),
		Countries:     splitList(values["countries"]),
		WebhookURL:    strings.TrimSpace(values["webhookUrl"]),
		WebhookSecret: values["webhookSecret"],
		PaymentTTL:    parseDuration(values["paymentTtl"]),
		Timeout:       parseDuration(values["timeout"]),
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeSandbox
	}
	cfg.Fees.Percentage, _ = strconv.ParseFloat(strings.TrimSpace(values["feePercentage"]), 64)
	cfg.Fees.Fixed, _ = strconv.ParseFloat(strings.TrimSpace(values["feeFixed"]), 64)
	return cfg
}

// Values flattens the config back into settings keys for field validation
func (c Config) Values() map[string]string {
	values := map[string]string{
		"merchantId":   c.MerchantID,
		"merchantKey":  c.MerchantKey,
		"merchantSalt": c.MerchantSalt,
		"terminalId":   c.TerminalID,
		"customerCode": c.CustomerCode,
		"storeKey":     c.StoreKey,
		"username":     c.Username,
		"password":     c.Password,
		"endpoint":     c.Endpoint,
		"mode":         c.Mode,
		"enabled":      strconv.FormatBool(c.Enabled),
		"default":      strconv.FormatBool(c.Default),
		"webhookUrl":   c.WebhookURL,
	}
	if len(c.Currencies) > 0 {
		values["currencies"] = strings.Join(c.Currencies, ",")
	}
	if len(c.Countries) > 0 {
		values["countries"] = strings.Join(c.Countries, ",")
	}
	return values
}

// TTLOr returns the configured payment expiry or fallback
func (c Config) TTLOr(fallback time.Duration) time.Duration {
	if c.PaymentTTL > 0 {
		return c.PaymentTTL
	}
	return fallback
}

// CurrenciesOr returns the configured currencies or the provider defaults
func (c Config) CurrenciesOr(defaults []string) []string {
	if len(c.Currencies) > 0 {
		return c.Currencies
	}
	return defaults
}

// CountriesOr returns the configured countries or the provider defaults
func (c Config) CountriesOr(defaults []string) []string {
	if len(c.Countries) > 0 {
		return c.Countries
	}
	return defaults
}

// Fee returns the merchant fee for amount, rounded to two decimals
func Fee(cfg Config, amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	fee := amount*cfg.Fees.Percentage/100 + cfg.Fees.Fixed
	return math.Round(fee*100) / 100
}

// CheckCurrency rejects currencies outside the supported list. TL and TRY are the same currency.
func CheckCurrency(p Provider, currency string) error {
	if !provider.ContainsCurrency(p.SupportedCurrencies(), currency) {
		return provider.InvalidRequestf("%s does not support currency %q (supported: %s)",
			p.ProviderName(), currency, strings.Join(p.SupportedCurrencies(), ", "))
	}
	return nil
}

func parseBool(value string, fallback bool) bool {
	if parsed, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
		return parsed
	}
	return fallback
}

func parseDuration(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return 0
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
