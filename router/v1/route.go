package v1

import (
	"github.com/go-chi/chi/v5"
	"github.com/mstgnz/storegate/handler"
)

// Handlers groups the handlers mounted under /v1
type Handlers struct {
	Payment  *handler.PaymentHandler
	Shipping *handler.ShippingHandler
	Config   *handler.ConfigHandler
	Logs     *handler.LogsHandler
	Health   *handler.HealthHandler
}

// Routes registers all API routes
func Routes(r chi.Router, h Handlers) {
	r.Get("/health", h.Health.CheckHealth)

	// Payment routes
	r.Route("/payments", func(r chi.Router) {
		r.Get("/providers", h.Payment.ListProviders)
		r.Post("/{provider}", h.Payment.CreatePayment)
		r.Get("/{provider}/{paymentID}", h.Payment.GetPaymentStatus)
		r.Post("/{provider}/{paymentID}/refund", h.Payment.RefundPayment)
	})

	// Gateway notifications and 3-D Secure returns
	r.HandleFunc("/callback/{provider}", h.Payment.HandleCallback)

	// Shipping routes
	r.Route("/shipping", func(r chi.Router) {
		r.Get("/providers", h.Shipping.ListProviders)
		r.Post("/{provider}/rates", h.Shipping.GetRates)
		r.Post("/{provider}/shipments", h.Shipping.CreateShipment)
		r.Get("/{provider}/tracking/{trackingNumber}", h.Shipping.TrackShipment)
	})

	// Provider settings
	r.Route("/config", func(r chi.Router) {
		r.Get("/stats", h.Config.GetStats)
		r.Get("/{kind}/{provider}", h.Config.GetConfig)
		r.Put("/{kind}/{provider}", h.Config.SetConfig)
		r.Delete("/{kind}/{provider}", h.Config.DeleteConfig)
	})

	// Call logs
	r.Route("/logs/{kind}/{provider}", func(r chi.Router) {
		r.Get("/", h.Logs.ListLogs)
		r.Get("/errors", h.Logs.GetErrorLogs)
		r.Get("/stats", h.Logs.GetLogStats)
		r.Get("/reference/{reference}", h.Logs.GetReferenceLogs)
	})
}
