package provider

import (
	"math"
	"strconv"
	"strings"
)

// currencyAliases maps local names to ISO 4217 codes
var currencyAliases = map[string]string{
	"TL":  "TRY",
	"YTL": "TRY",
}

// ToMinorUnits converts an amount to cents/kuruş, rounding half away from zero.
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// FromMinorUnits converts cents/kuruş back to a decimal amount.
func FromMinorUnits(minor int64) float64 {
	return float64(minor) / 100
}

// FormatAmount formats an amount with two decimals, e.g. 49.99 -> "49.99".
func FormatAmount(amount float64) string {
	return strconv.FormatFloat(FromMinorUnits(ToMinorUnits(amount)), 'f', 2, 64)
}

// ContainsFold reports whether list contains value, ignoring case.
func ContainsFold(list []string, value string) bool {
	for _, item := range list {
		if NormalizeName(item) == NormalizeName(value) {
			return true
		}
	}
	return false
}

// NormalizeCurrency upper-cases code and resolves local aliases, "tl" -> "TRY".
func NormalizeCurrency(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if iso, ok := currencyAliases[code]; ok {
		return iso
	}
	return code
}

// ContainsCurrency reports whether list contains currency, aliases included.
func ContainsCurrency(list []string, currency string) bool {
	want := NormalizeCurrency(currency)
	for _, item := range list {
		if NormalizeCurrency(item) == want {
			return true
		}
	}
	return false
}
