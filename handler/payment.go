package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/mstgnz/storegate/infra/logger"
	"github.com/mstgnz/storegate/infra/middle"
	"github.com/mstgnz/storegate/infra/response"
	"github.com/mstgnz/storegate/payment"
)

// ReplayedHeader marks responses served from a stored idempotent result
const ReplayedHeader = "Idempotent-Replayed"

// PaymentService defines the payment operations exposed over HTTP
type PaymentService interface {
	Providers() []payment.ProviderInfo
	CreatePayment(ctx context.Context, providerName string, request payment.Request) (*payment.Response, bool, error)
	GetPaymentStatus(ctx context.Context, providerName, paymentID string) (*payment.PaymentStatus, error)
	RefundPayment(ctx context.Context, providerName, paymentID string, amount *float64) (*payment.Response, bool, error)
	HandleCallback(ctx context.Context, providerName string, values map[string]string) (*payment.PaymentStatus, error)
}

// PaymentHandler handles payment related HTTP requests
type PaymentHandler struct {
	paymentService PaymentService
	validate       *validator.Validate
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(paymentService PaymentService, validate *validator.Validate) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		validate:       validate,
	}
}

// RefundRequest is the body of a refund call; a missing amount refunds the whole payment
type RefundRequest struct {
	Amount *float64 `json:"amount,omitempty" validate:"omitempty,gt=0"`
}

// ListProviders returns every registered gateway with its configuration state
func (h *PaymentHandler) ListProviders(w http.ResponseWriter, r *http.Request) {
	response.Success(w, http.StatusOK, "Payment providers", h.paymentService.Providers())
}

// CreatePayment starts a hosted or 3-D Secure payment
func (h *PaymentHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var req payment.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if req.Customer.IP == "" {
		req.Customer.IP = middle.GetClientIP(r)
	}

	if err := h.validate.Struct(req); err != nil {
		response.Failure(w, http.StatusBadRequest, "Validation error", "invalid_request", err)
		return
	}

	providerName := chi.URLParam(r, "provider")
	resp, replayed, err := h.paymentService.CreatePayment(ctx, providerName, req)
	if err != nil {
		writeProviderError(w, providerName, "Payment failed", err)
		return
	}

	if replayed {
		w.Header().Set(ReplayedHeader, "true")
		response.Success(w, http.StatusOK, "Payment already created", resp)
		return
	}
	response.Success(w, http.StatusCreated, "Payment created", resp)
}

// GetPaymentStatus queries the gateway for the current payment state
func (h *PaymentHandler) GetPaymentStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	providerName := chi.URLParam(r, "provider")
	paymentID := chi.URLParam(r, "paymentID")
	if paymentID == "" {
		response.Error(w, http.StatusBadRequest, "Missing payment ID", nil)
		return
	}

	status, err := h.paymentService.GetPaymentStatus(ctx, providerName, paymentID)
	if err != nil {
		writeProviderError(w, providerName, "Failed to get payment status", err)
		return
	}

	response.Success(w, http.StatusOK, "Payment status retrieved", status)
}

// RefundPayment refunds a payment fully or partially
func (h *PaymentHandler) RefundPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	providerName := chi.URLParam(r, "provider")
	paymentID := chi.URLParam(r, "paymentID")
	if paymentID == "" {
		response.Error(w, http.StatusBadRequest, "Missing payment ID", nil)
		return
	}

	var req RefundRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid request format", err)
			return
		}
	}
	if err := h.validate.Struct(req); err != nil {
		response.Failure(w, http.StatusBadRequest, "Validation error", "invalid_request", err)
		return
	}

	resp, replayed, err := h.paymentService.RefundPayment(ctx, providerName, paymentID, req.Amount)
	if err != nil {
		writeProviderError(w, providerName, "Refund failed", err)
		return
	}

	if replayed {
		w.Header().Set(ReplayedHeader, "true")
	}
	response.Success(w, http.StatusOK, "Refund processed", resp)
}

// HandleCallback accepts gateway notifications posted as form data or JSON.
// Gateways get a plain "OK"; clients asking for JSON get the verified status.
func (h *PaymentHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	providerName := chi.URLParam(r, "provider")
	values, err := callbackValues(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid callback data", err)
		return
	}

	status, err := h.paymentService.HandleCallback(ctx, providerName, values)
	if err != nil {
		logger.Error("Payment callback rejected", err, logger.LogContext{
			Provider: providerName,
			Fields: map[string]any{
				"client_ip": middle.GetClientIP(r),
				"fields":    len(values),
			},
		})
		writeProviderError(w, providerName, "Callback rejected", err)
		return
	}

	logger.Info("Payment callback processed", logger.LogContext{
		Provider: providerName,
		Fields: map[string]any{
			"payment_id": status.PaymentID,
			"status":     status.Status,
		},
	})

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		response.Success(w, http.StatusOK, "Callback processed", status)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// callbackValues combines query, form and JSON fields; body fields win
func callbackValues(r *http.Request) (map[string]string, error) {
	values := make(map[string]string)
	for key, vals := range r.URL.Query() {
		if len(vals) > 0 {
			values[key] = vals[0]
		}
	}

	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return nil, err
		}
		for key, v := range body {
			switch val := v.(type) {
			case string:
				values[key] = val
			case nil:
			default:
				values[key] = fmt.Sprint(val)
			}
		}
		return values, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	for key, vals := range r.PostForm {
		if len(vals) > 0 {
			values[key] = vals[0]
		}
	}
	return values, nil
}
