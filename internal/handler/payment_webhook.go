package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/adilcse/okneppo-sub001/internal/config"
	"github.com/adilcse/okneppo-sub001/internal/model"
	"github.com/adilcse/okneppo-sub001/internal/service"
	"github.com/adilcse/okneppo-sub001/internal/signature"
	"github.com/adilcse/okneppo-sub001/pkg/logger"
)

// razorpaySignatureHeader carries the gateway's HMAC of the request body
const razorpaySignatureHeader = "X-Razorpay-Signature"

// PaymentWebhookHandler handles payment gateway webhook deliveries
type PaymentWebhookHandler struct {
	reconciler *service.PaymentReconciler
	config     *config.Config
	logger     *logger.Logger
}

// NewPaymentWebhookHandler creates a new payment webhook handler
func NewPaymentWebhookHandler(reconciler *service.PaymentReconciler, cfg *config.Config, log *logger.Logger) *PaymentWebhookHandler {
	return &PaymentWebhookHandler{
		reconciler: reconciler,
		config:     cfg,
		logger:     log,
	}
}

// HandleWebhook handles POST /api/v1/webhook/razorpay.
// 200 means processed (including "unknown order, ignored"); 400 means the
// signature is missing or invalid, so the gateway must not retry; 500 means a
// persistence failure the gateway should retry.
func (h *PaymentWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("Failed to read webhook body", "error", err)
		h.sendJSON(w, http.StatusBadRequest, "error", "unreadable body")
		return
	}

	if !h.verifySignature(w, r, body) {
		return
	}

	var webhook model.RazorpayWebhook
	if err := json.Unmarshal(body, &webhook); err != nil {
		h.logger.Error("Failed to decode webhook payload", "error", err)
		h.sendJSON(w, http.StatusBadRequest, "error", "invalid payload")
		return
	}

	input, ok := reconcileInput(webhook)
	if !ok {
		// Unhandled event types are acknowledged so the gateway stops
		// redelivering them.
		h.logger.Info("Ignoring unhandled gateway event", "event", webhook.Event)
		h.sendJSON(w, http.StatusOK, "ok", "event ignored")
		return
	}

	if err := h.reconciler.Reconcile(r.Context(), input); err != nil {
		h.logger.WithOrderID(input.OrderID).Error("Payment reconciliation failed", "error", err)
		h.sendJSON(w, http.StatusInternalServerError, "error", "reconciliation failed")
		return
	}

	h.sendJSON(w, http.StatusOK, "ok", "processed")
}

// verifySignature gates the request on the gateway signature. A missing
// webhook secret is a configuration error and fails the request; it never
// silently passes.
func (h *PaymentWebhookHandler) verifySignature(w http.ResponseWriter, r *http.Request, body []byte) bool {
	sig := r.Header.Get(razorpaySignatureHeader)

	if sig == "" {
		if h.config.AllowUnsignedWebhooks {
			h.logger.Warn("Accepting unsigned payment webhook (test mode)", "remote_addr", r.RemoteAddr)
			return true
		}
		h.logger.Warn("Missing payment webhook signature", "remote_addr", r.RemoteAddr)
		h.sendJSON(w, http.StatusBadRequest, "error", "missing signature")
		return false
	}

	if h.config.Razorpay.WebhookSecret == "" {
		h.logger.Error("RAZORPAY_WEBHOOK_SECRET not configured, rejecting webhook")
		h.sendJSON(w, http.StatusBadRequest, "error", "webhook secret not configured")
		return false
	}

	if !signature.Verify(body, sig, h.config.Razorpay.WebhookSecret) {
		h.logger.Warn("Invalid payment webhook signature", "remote_addr", r.RemoteAddr)
		h.sendJSON(w, http.StatusBadRequest, "error", "invalid signature")
		return false
	}

	return true
}

// reconcileInput maps a gateway event onto a reconcile call. order.paid
// carries its payment entity the same way the payment.* events do.
func reconcileInput(webhook model.RazorpayWebhook) (service.ReconcileInput, bool) {
	entity := webhook.Payload.Payment.Entity

	var status string
	switch webhook.Event {
	case "payment.authorized":
		status = model.PaymentStatusAuthorized
	case "payment.captured", "order.paid":
		status = model.PaymentStatusCaptured
	case "payment.failed":
		status = model.PaymentStatusFailed
	default:
		return service.ReconcileInput{}, false
	}

	orderID := entity.OrderID
	if orderID == "" {
		orderID = webhook.Payload.Order.Entity.ID
	}
	if orderID == "" {
		return service.ReconcileInput{}, false
	}

	return service.ReconcileInput{
		PaymentID: entity.ID,
		OrderID:   orderID,
		Status:    status,
		Entity:    entity,
	}, true
}

// sendJSON writes a JSON status envelope
func (h *PaymentWebhookHandler) sendJSON(w http.ResponseWriter, statusCode int, status, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  status,
		"message": message,
	})
}
