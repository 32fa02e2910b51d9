package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		amount float64
		minor  int64
		text   string
	}{
		{100, 10000, "100.00"},
		{49.99, 4999, "49.99"},
		{0.1 + 0.2, 30, "0.30"},
		{250.5, 25050, "250.50"},
		{0, 0, "0.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.minor, ToMinorUnits(tt.amount), tt.text)
		assert.Equal(t, tt.text, FormatAmount(tt.amount))
	}
	assert.InDelta(t, 49.99, FromMinorUnits(4999), 1e-9)
}

func TestContainsFold(t *testing.T) {
	list := []string{"TRY", "usd"}
	assert.True(t, ContainsFold(list, "try"))
	assert.True(t, ContainsFold(list, "USD"))
	assert.False(t, ContainsFold(list, "EUR"))
	assert.False(t, ContainsFold(nil, "TRY"))
}

func TestNormalizeCurrency(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"TRY", "TRY"},
		{"try", "TRY"},
		{"TL", "TRY"},
		{" tl ", "TRY"},
		{"YTL", "TRY"},
		{"usd", "USD"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeCurrency(tt.input))
		})
	}
}

func TestContainsCurrency(t *testing.T) {
	list := []string{"TL", "USD", "EUR"}
	assert.True(t, ContainsCurrency(list, "TRY"))
	assert.True(t, ContainsCurrency(list, "tl"))
	assert.True(t, ContainsCurrency([]string{"TRY"}, "TL"))
	assert.True(t, ContainsCurrency(list, "eur"))
	assert.False(t, ContainsCurrency(list, "GBP"))
	assert.False(t, ContainsCurrency(nil, "TRY"))
}
