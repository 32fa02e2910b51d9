// Package validate registers the custom struct validation tags used by request bodies.
package validate

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/currency"
)

// localCurrencies are accepted besides ISO 4217 codes
var localCurrencies = map[string]bool{"TL": true, "YTL": true}

// Register adds the custom tags to v:
//
//	currency  a recognized ISO 4217 code or the TL alias, case-insensitive ("try", "EUR", "tl")
func Register(v *validator.Validate) error {
	return v.RegisterValidation("currency", isCurrency)
}

func isCurrency(fl validator.FieldLevel) bool {
	code := strings.ToUpper(strings.TrimSpace(fl.Field().String()))
	if localCurrencies[code] {
		return true
	}
	_, err := currency.ParseISO(code)
	return err == nil
}
