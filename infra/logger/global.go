package logger

import (
	"sync"

	"github.com/mstgnz/storegate/infra/config"
)

var (
	globalLogger *SystemLogger
	once         sync.Once
	fallbackOnce sync.Once
)

// InitGlobalLogger initializes the global system logger; later calls are no-ops.
func InitGlobalLogger(sink Sink) {
	once.Do(func() {
		cfg := config.GetAppConfig()
		conf := SystemLoggerConfig{
			EnableConsole: true,
			EnableSink:    sink != nil,
			MinLevel:      ParseLevel(cfg.LoggingLevel),
			Service:       "storegate",
			Version:       "1.0.0",
			Environment:   cfg.Environment,
		}

		if conf.Environment == "development" {
			conf.MinLevel = LevelDebug
		}

		globalLogger = NewSystemLogger(sink, conf)
	})
}

// GetGlobalLogger returns the global logger, falling back to a console-only logger.
func GetGlobalLogger() *SystemLogger {
	if globalLogger == nil {
		fallbackOnce.Do(func() {
			if globalLogger != nil {
				return
			}
			globalLogger = NewSystemLogger(nil, SystemLoggerConfig{
				EnableConsole: true,
				MinLevel:      LevelInfo,
				Service:       "storegate",
				Version:       "1.0.0",
				Environment:   "development",
			})
		})
	}
	return globalLogger
}

// Debug logs a debug message using the global logger
func Debug(message string, ctx ...LogContext) {
	GetGlobalLogger().Debug(message, ctx...)
}

// Info logs an info message using the global logger
func Info(message string, ctx ...LogContext) {
	GetGlobalLogger().Info(message, ctx...)
}

// Warn logs a warning message using the global logger
func Warn(message string, ctx ...LogContext) {
	GetGlobalLogger().Warn(message, ctx...)
}

// Error logs an error message using the global logger
func Error(message string, err error, ctx ...LogContext) {
	GetGlobalLogger().Error(message, err, ctx...)
}

// Fatal logs a fatal message using the global logger and exits
func Fatal(message string, err error, ctx ...LogContext) {
	GetGlobalLogger().Fatal(message, err, ctx...)
}

// WithContext creates a context logger from the global logger
func WithContext(ctx LogContext) *ContextLogger {
	return GetGlobalLogger().WithContext(ctx)
}

// WithProvider creates a context logger with provider
func WithProvider(provider string) *ContextLogger {
	return WithContext(LogContext{Provider: provider})
}
