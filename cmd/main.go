package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/mstgnz/storegate/handler"
	"github.com/mstgnz/storegate/infra/config"
	"github.com/mstgnz/storegate/infra/logger"
	"github.com/mstgnz/storegate/infra/middle"
	"github.com/mstgnz/storegate/infra/opensearch"
	"github.com/mstgnz/storegate/infra/response"
	"github.com/mstgnz/storegate/notify"
	"github.com/mstgnz/storegate/payment"
	"github.com/mstgnz/storegate/provider"
	"github.com/mstgnz/storegate/router"
	v1 "github.com/mstgnz/storegate/router/v1"
	"github.com/mstgnz/storegate/shipping"
)

func main() {
	// Load Env; a missing .env is fine in containers
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("Load Env Error: %v", err)
	}

	cfg := config.GetAppConfig()
	validate := config.App().Validator

	// OpenSearch is optional: it receives system logs and provider call logs
	var (
		osClient   *opensearch.Client
		callLogger *opensearch.Logger
	)
	if cfg.EnableLogging {
		client, err := opensearch.NewClient(cfg)
		if err != nil {
			log.Printf("Failed to initialize OpenSearch client: %v", err)
			log.Println("Continuing without OpenSearch logging...")
		} else {
			osClient = client
			callLogger = opensearch.NewLogger(client)
		}
	}

	if callLogger != nil {
		logger.InitGlobalLogger(callLogger)
	} else {
		logger.InitGlobalLogger(nil)
	}

	storage, err := config.NewSQLiteStorage(cfg.SQLitePath)
	if err != nil {
		logger.Fatal("Failed to open SQLite storage", err, logger.LogContext{
			Fields: map[string]any{"path": cfg.SQLitePath},
		})
	}
	defer storage.Close()

	settings := config.NewProviderSettings(storage)
	seeded, err := settings.LoadFromEnv()
	if err != nil {
		logger.Error("Failed to load provider settings from environment", err)
	}
	logger.Info("Provider settings loaded", logger.LogContext{
		Fields: map[string]any{
			"seeded":   seeded,
			"payment":  settings.Providers(config.KindPayment),
			"shipping": settings.Providers(config.KindShipping),
		},
	})

	idempotencyTTL := config.GetDurationEnv("IDEMPOTENCY_TTL", 24*time.Hour)

	var recorder provider.CallRecorder = provider.NopRecorder{}
	if callLogger != nil {
		recorder = callLogger
	}

	payments := payment.NewService(settings,
		payment.WithIdempotency(storage, idempotencyTTL),
		payment.WithRecorder(recorder),
		payment.WithProviderCache(provider.NewProviderCache[payment.Provider](32, time.Hour)),
	)

	email := notify.NewEmailService(notify.LoadEmailConfig())
	if !email.Enabled() {
		logger.Warn("EMAIL_API_KEY is not set, shipment notifications are disabled")
	}
	carriers := shipping.NewDispatcher(settings, email,
		shipping.WithIdempotency(storage, idempotencyTTL),
		shipping.WithRecorder(recorder),
	)

	var search handler.Pinger
	var logs handler.CallLogSearcher
	if osClient != nil {
		search = osClient
		logs = callLogger
	}

	handlers := v1.Handlers{
		Payment:  handler.NewPaymentHandler(payments, validate),
		Shipping: handler.NewShippingHandler(carriers, validate),
		Config:   handler.NewConfigHandler(settings),
		Logs:     handler.NewLogsHandler(logs),
		Health:   handler.NewHealthHandler(storage, search, payments, carriers),
	}

	// Chi Define Routes
	r := chi.NewRouter()

	// Basic Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middle.PanicRecoveryMiddleware())
	r.Use(middle.RequestLoggingMiddleware())
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	// Security Middleware
	rateLimiter := middle.NewRateLimiter(config.GetIntEnv("RATE_LIMIT", 100), time.Minute)
	defer rateLimiter.Stop()
	r.Use(middle.SecurityHeadersMiddleware())
	r.Use(middle.IPWhitelistMiddleware(config.SplitList(config.GetEnv("IP_WHITELIST", ""))))
	r.Use(middle.RateLimitMiddleware(rateLimiter))
	r.Use(middle.RequestValidationMiddleware())

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   config.SplitList(config.GetEnv("CORS_ORIGINS", "*")),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Origin", "X-Request-ID", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "Content-Length", "X-Request-ID", handler.ReplayedHeader},
		AllowCredentials: false,
		MaxAge:           300, // Preflight cache time (second)
	}))

	router.Routes(r, handlers)

	// Not Found
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotFound, "Not Found", nil)
	})

	// Create a context that listens for interrupt and terminate signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go cleanupIdempotencyRecords(ctx, storage)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", err)
		}
	}()

	logger.Info("API is running", logger.LogContext{
		Fields: map[string]any{"port": cfg.Port, "environment": cfg.Environment},
	})

	// Block until a signal is received
	<-ctx.Done()

	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", err)
	}
}

// cleanupIdempotencyRecords purges expired replay records hourly
func cleanupIdempotencyRecords(ctx context.Context, storage *config.SQLiteStorage) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := storage.CleanupExpired(ctx)
			if err != nil {
				logger.Warn("Failed to clean up idempotency records", logger.LogContext{
					Fields: map[string]any{"error": err.Error()},
				})
				continue
			}
			if removed > 0 {
				logger.Debug("Expired idempotency records removed", logger.LogContext{
					Fields: map[string]any{"removed": removed},
				})
			}
		}
	}
}
