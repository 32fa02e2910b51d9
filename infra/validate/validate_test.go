package validate

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type priced struct {
	Currency string `validate:"required,currency"`
}

type optionalPriced struct {
	Currency string `validate:"omitempty,currency"`
}

func TestCurrencyTag(t *testing.T) {
	v := validator.New()
	require.NoError(t, Register(v))

	tests := []struct {
		value string
		valid bool
	}{
		{"TRY", true},
		{"try", true},
		{"EUR", true},
		{"USD", true},
		{"TL", true},
		{"tl", true},
		{"EURO", false},
		{"ABC", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			err := v.Struct(priced{Currency: tt.value})
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestCurrencyTag_Optional(t *testing.T) {
	v := validator.New()
	require.NoError(t, Register(v))

	assert.NoError(t, v.Struct(optionalPriced{}))
	assert.Error(t, v.Struct(optionalPriced{Currency: "XYZ1"}))
}
