package shipping

import (
	"math"
	"strings"
	"time"
)

// Service tiers offered by locally rated carriers
const (
	ServiceEconomic = "ECONOMIC"
	ServiceStandard = "STANDARD"
	ServiceExpress  = "EXPRESS"
)

// ServiceTier is one named service with its price multiplier and transit days
type ServiceTier struct {
	Code              string
	Name              string
	Multiplier        float64
	DomesticDays      int
	InternationalDays int
}

// Tariff prices shipments locally: max(minimum, perKg x weight), scaled for
// international destinations, then per service tier.
type Tariff struct {
	Currency                string
	MinimumPrice            float64
	PerKg                   float64
	InternationalMultiplier float64
	Tiers                   []ServiceTier
}

// WithOverrides applies the Rate* settings of cfg on top of the defaults
func (t Tariff) WithOverrides(cfg Config) Tariff {
	if cfg.RateMinimum > 0 {
		t.MinimumPrice = cfg.RateMinimum
	}
	if cfg.RatePerKg > 0 {
		t.PerKg = cfg.RatePerKg
	}
	if cfg.RateInternational > 0 {
		t.InternationalMultiplier = cfg.RateInternational
	}
	return t
}

// BasePrice is the price before the tier multiplier
func (t Tariff) BasePrice(order Order) float64 {
	base := math.Max(t.MinimumPrice, t.PerKg*order.TotalWeightKg())
	if !order.Recipient.IsDomestic() {
		base *= t.InternationalMultiplier
	}
	return base
}

// Quote returns one rate per tier. A service code naming one of the tiers narrows
// the result to that tier; codes of other carriers are ignored.
func (t Tariff) Quote(order Order, providerName string, now time.Time) []Rate {
	base := t.BasePrice(order)
	domestic := order.Recipient.IsDomestic()
	only := ""
	if t.hasTier(order.ServiceCode) {
		only = order.ServiceCode
	}

	rates := make([]Rate, 0, len(t.Tiers))
	for _, tier := range t.Tiers {
		if only != "" && !strings.EqualFold(only, tier.Code) {
			continue
		}
		days := tier.InternationalDays
		if domestic {
			days = tier.DomesticDays
		}
		delivery := AddBusinessDays(now, days)
		rates = append(rates, Rate{
			ServiceCode:       tier.Code,
			ServiceName:       tier.Name,
			Price:             math.Round(base*tier.Multiplier*100) / 100,
			Currency:          t.Currency,
			EstimatedDays:     days,
			EstimatedDelivery: &delivery,
			Provider:          providerName,
		})
	}
	return rates
}

func (t Tariff) hasTier(code string) bool {
	if code == "" {
		return false
	}
	for _, tier := range t.Tiers {
		if strings.EqualFold(tier.Code, code) {
			return true
		}
	}
	return false
}

// Tier returns the tier with code, or the standard tier
func (t Tariff) Tier(code string) ServiceTier {
	for _, tier := range t.Tiers {
		if strings.EqualFold(tier.Code, code) {
			return tier
		}
	}
	for _, tier := range t.Tiers {
		if tier.Code == ServiceStandard {
			return tier
		}
	}
	if len(t.Tiers) > 0 {
		return t.Tiers[0]
	}
	return ServiceTier{Code: ServiceStandard, Name: "Standard", Multiplier: 1, DomesticDays: 3, InternationalDays: 7}
}

// AddBusinessDays skips Saturdays and Sundays
func AddBusinessDays(from time.Time, days int) time.Time {
	t := from
	for added := 0; added < days; {
		t = t.AddDate(0, 0, 1)
		if t.Weekday() != time.Saturday && t.Weekday() != time.Sunday {
			added++
		}
	}
	return t
}

// DeclaredValuePrice charges rate of the declared value, never below minimum
func DeclaredValuePrice(order Order, rate, minimum float64) float64 {
	return math.Round(math.Max(order.DeclaredValue*rate, minimum)*100) / 100
}
