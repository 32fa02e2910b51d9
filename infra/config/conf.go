package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mstgnz/storegate/infra/validate"
)

// Config holds process-wide shared services
type Config struct {
	Validator *validator.Validate
}

// AppConfig represents the application configuration
type AppConfig struct {
	Port           string
	Environment    string
	BaseURL        string
	SQLitePath     string
	OpenSearchURL  string
	OpenSearchUser string
	OpenSearchPass string
	EnableLogging  bool
	LoggingLevel   string
	RequestTimeout time.Duration
}

var (
	instance          *Config
	instanceOnce      sync.Once
	appConfigInstance *AppConfig
)

// App returns the shared Config
func App() *Config {
	instanceOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		if err := validate.Register(v); err != nil {
			log.Printf("Warning: Failed to register custom validators: %v", err)
		}
		instance = &Config{Validator: v}
	})
	return instance
}

// GetAppConfig returns the application configuration
func GetAppConfig() *AppConfig {
	if appConfigInstance == nil {
		appConfigInstance = &AppConfig{
			Port:           GetEnv("APP_PORT", "9999"),
			Environment:    GetEnv("ENVIRONMENT", "development"),
			BaseURL:        GetEnv("APP_URL", "http://localhost:9999"),
			SQLitePath:     GetEnv("SQLITE_PATH", "./data/storegate.db"),
			OpenSearchURL:  GetEnv("OPENSEARCH_URL", "http://localhost:9200"),
			OpenSearchUser: GetEnv("OPENSEARCH_USER", ""),
			OpenSearchPass: GetEnv("OPENSEARCH_PASSWORD", ""),
			EnableLogging:  GetBoolEnv("ENABLE_OPENSEARCH_LOGGING", false),
			LoggingLevel:   GetEnv("LOGGING_LEVEL", "info"),
			RequestTimeout: GetDurationEnv("REQUEST_TIMEOUT", 60*time.Second),
		}
	}
	return appConfigInstance
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetBoolEnv returns the boolean value of an environment variable or a default value
func GetBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetIntEnv returns the integer value of an environment variable or a default value
func GetIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetDurationEnv accepts Go durations ("30s") or plain seconds ("30")
func GetDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

// SplitList splits a comma separated value, dropping blanks
func SplitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
