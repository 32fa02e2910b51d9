package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/mstgnz/storegate/infra/response"
	"github.com/mstgnz/storegate/shipping"
)

// ShippingDispatcher resolves carrier services by name
type ShippingDispatcher interface {
	For(name string) (*shipping.Service, error)
	Providers() []shipping.ProviderInfo
}

// ShippingHandler handles shipping related HTTP requests
type ShippingHandler struct {
	dispatcher ShippingDispatcher
	validate   *validator.Validate
}

// NewShippingHandler creates a new shipping handler
func NewShippingHandler(dispatcher ShippingDispatcher, validate *validator.Validate) *ShippingHandler {
	return &ShippingHandler{
		dispatcher: dispatcher,
		validate:   validate,
	}
}

// ListProviders returns every registered carrier with its configuration state
func (h *ShippingHandler) ListProviders(w http.ResponseWriter, r *http.Request) {
	response.Success(w, http.StatusOK, "Shipping providers", h.dispatcher.Providers())
}

// GetRates quotes an order with the carrier
func (h *ShippingHandler) GetRates(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	providerName := chi.URLParam(r, "provider")
	order, ok := h.decodeOrder(w, r)
	if !ok {
		return
	}

	svc, err := h.dispatcher.For(providerName)
	if err != nil {
		writeProviderError(w, providerName, "Carrier unavailable", err)
		return
	}

	rates, err := svc.GetRates(ctx, order)
	if err != nil {
		writeProviderError(w, providerName, "Failed to calculate rates", err)
		return
	}

	response.Success(w, http.StatusOK, "Rates calculated", rates)
}

// CreateShipment books a shipment and notifies the customer
func (h *ShippingHandler) CreateShipment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	providerName := chi.URLParam(r, "provider")
	order, ok := h.decodeOrder(w, r)
	if !ok {
		return
	}

	svc, err := h.dispatcher.For(providerName)
	if err != nil {
		writeProviderError(w, providerName, "Carrier unavailable", err)
		return
	}

	resp, replayed, err := svc.CreateShipment(ctx, order)
	if err != nil {
		writeProviderError(w, providerName, "Failed to create shipment", err)
		return
	}

	if replayed {
		w.Header().Set(ReplayedHeader, "true")
		response.Success(w, http.StatusOK, "Shipment already created", resp)
		return
	}
	response.Success(w, http.StatusCreated, "Shipment created", resp)
}

// TrackShipment returns the tracking history of a shipment
func (h *ShippingHandler) TrackShipment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	providerName := chi.URLParam(r, "provider")
	trackingNumber := chi.URLParam(r, "trackingNumber")
	if trackingNumber == "" {
		response.Error(w, http.StatusBadRequest, "Missing tracking number", nil)
		return
	}

	svc, err := h.dispatcher.For(providerName)
	if err != nil {
		writeProviderError(w, providerName, "Carrier unavailable", err)
		return
	}

	tracking, err := svc.TrackShipment(ctx, trackingNumber)
	if err != nil {
		writeProviderError(w, providerName, "Failed to track shipment", err)
		return
	}

	response.Success(w, http.StatusOK, "Shipment tracked", tracking)
}

func (h *ShippingHandler) decodeOrder(w http.ResponseWriter, r *http.Request) (shipping.Order, bool) {
	var order shipping.Order
	if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request format", err)
		return order, false
	}
	if err := h.validate.Struct(order); err != nil {
		response.Failure(w, http.StatusBadRequest, "Validation error", "invalid_request", err)
		return order, false
	}
	return order, true
}
