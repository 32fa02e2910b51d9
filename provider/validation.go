package provider

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ConfigField represents a configuration field a provider dereferences
type ConfigField struct {
	Key         string `json:"key"`
	Required    bool   `json:"required"`
	Type        string `json:"type"` // "string", "number", "url", "email", "boolean"
	Description string `json:"description"`
	Example     string `json:"example"`
	Pattern     string `json:"pattern,omitempty"`
	MinLength   int    `json:"minLength,omitempty"`
	MaxLength   int    `json:"maxLength,omitempty"`
}

// ModeField is the shared operating-mode field definition.
var ModeField = ConfigField{
	Key:         "mode",
	Required:    false,
	Type:        "string",
	Description: "Operating mode (sandbox, production or live)",
	Example:     "sandbox",
	Pattern:     "^(sandbox|test|production|live)$",
}

// ValidateConfigFields validates configuration against provided field definitions.
// Every error wraps ErrInvalidConfig.
func ValidateConfigFields(providerName string, config map[string]string, requiredFields []ConfigField) error {
	for _, field := range requiredFields {
		value, exists := config[field.Key]
		if !field.Required && strings.TrimSpace(value) == "" {
			continue
		}

		if !exists {
			return fmt.Errorf("%w: %s: required field '%s' is missing", ErrInvalidConfig, providerName, field.Key)
		}

		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%w: %s: required field '%s' cannot be empty", ErrInvalidConfig, providerName, field.Key)
		}

		if err := validateFieldType(providerName, field, value); err != nil {
			return err
		}

		if err := validateFieldPattern(providerName, field, value); err != nil {
			return err
		}

		if err := validateFieldLength(providerName, field, value); err != nil {
			return err
		}
	}

	return nil
}

// validateFieldType validates field based on its type
func validateFieldType(providerName string, field ConfigField, value string) error {
	switch field.Type {
	case "url":
		u, err := url.Parse(value)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: %s: field '%s' must be an absolute URL", ErrInvalidConfig, providerName, field.Key)
		}
		return nil
	case "email":
		if !strings.Contains(value, "@") {
			return fmt.Errorf("%w: %s: field '%s' must be an email address", ErrInvalidConfig, providerName, field.Key)
		}
		return nil
	case "boolean":
		if value != "true" && value != "false" {
			return fmt.Errorf("%w: %s: field '%s' must be 'true' or 'false'", ErrInvalidConfig, providerName, field.Key)
		}
		return nil
	default:
		return nil
	}
}

// validateFieldPattern validates field against regex pattern
func validateFieldPattern(providerName string, field ConfigField, value string) error {
	if field.Pattern == "" {
		return nil
	}

	matched, err := regexp.MatchString(field.Pattern, value)
	if err != nil {
		return fmt.Errorf("%w: %s: invalid pattern for field '%s': %v", ErrInvalidConfig, providerName, field.Key, err)
	}

	if !matched {
		return fmt.Errorf("%w: %s: field '%s' does not match required pattern", ErrInvalidConfig, providerName, field.Key)
	}

	return nil
}

// validateFieldLength validates field length constraints
func validateFieldLength(providerName string, field ConfigField, value string) error {
	if field.MinLength > 0 && len(value) < field.MinLength {
		return fmt.Errorf("%w: %s: field '%s' must be at least %d characters", ErrInvalidConfig, providerName, field.Key, field.MinLength)
	}

	if field.MaxLength > 0 && len(value) > field.MaxLength {
		return fmt.Errorf("%w: %s: field '%s' must not exceed %d characters", ErrInvalidConfig, providerName, field.Key, field.MaxLength)
	}

	return nil
}
