package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateConfigFields(t *testing.T) {
	fields := []ConfigField{
		{Key: "merchantId", Required: true, Type: "string", Pattern: "^[0-9]+$"},
		{Key: "merchantKey", Required: true, Type: "string", MinLength: 8},
		{Key: "callbackUrl", Required: false, Type: "url"},
		{Key: "email", Required: false, Type: "email"},
		ModeField,
	}

	tests := []struct {
		name   string
		config map[string]string
		valid  bool
	}{
		{"valid", map[string]string{"merchantId": "123", "merchantKey": "12345678"}, true},
		{"valid with optionals", map[string]string{
			"merchantId": "123", "merchantKey": "12345678", "callbackUrl": "https://x.example.com/cb",
			"email": "ops@example.com", "mode": "production",
		}, true},
		{"missing", map[string]string{"merchantKey": "12345678"}, false},
		{"blank", map[string]string{"merchantId": "  ", "merchantKey": "12345678"}, false},
		{"pattern", map[string]string{"merchantId": "abc", "merchantKey": "12345678"}, false},
		{"too short", map[string]string{"merchantId": "123", "merchantKey": "short"}, false},
		{"bad url", map[string]string{"merchantId": "123", "merchantKey": "12345678", "callbackUrl": "not a url"}, false},
		{"bad email", map[string]string{"merchantId": "123", "merchantKey": "12345678", "email": "nobody"}, false},
		{"bad mode", map[string]string{"merchantId": "123", "merchantKey": "12345678", "mode": "staging"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfigFields("test", tt.config, fields)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}
