package router

import (
	"github.com/go-chi/chi/v5"
	v1 "github.com/mstgnz/storegate/router/v1"

	// Import for side-effect registration
	_ "github.com/mstgnz/storegate/payment/kuveytturk"
	_ "github.com/mstgnz/storegate/payment/paytr"
	_ "github.com/mstgnz/storegate/payment/vakifbank"
	_ "github.com/mstgnz/storegate/shipping/dhl"
	_ "github.com/mstgnz/storegate/shipping/ptt"
	_ "github.com/mstgnz/storegate/shipping/yurtici"
)

// Routes mounts the versioned API and the unversioned health check
func Routes(r chi.Router, h v1.Handlers) {
	r.Get("/health", h.Health.CheckHealth)

	r.Route("/v1", func(r chi.Router) {
		v1.Routes(r, h)
	})
}
