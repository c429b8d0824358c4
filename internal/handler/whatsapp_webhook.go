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

// hubSignatureHeader carries Meta's sha256= prefixed HMAC of the body
const hubSignatureHeader = "X-Hub-Signature-256"

// WhatsAppWebhookHandler handles messaging provider webhook deliveries
type WhatsAppWebhookHandler struct {
	reconciler *service.MessageReconciler
	config     *config.Config
	logger     *logger.Logger
}

// NewWhatsAppWebhookHandler creates a new WhatsApp webhook handler
func NewWhatsAppWebhookHandler(reconciler *service.MessageReconciler, cfg *config.Config, log *logger.Logger) *WhatsAppWebhookHandler {
	return &WhatsAppWebhookHandler{
		reconciler: reconciler,
		config:     cfg,
		logger:     log,
	}
}

// HandleVerification handles GET /api/v1/webhook/whatsapp, the provider's
// subscription handshake: echo the challenge when the verify token matches.
func (h *WhatsAppWebhookHandler) HandleVerification(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && token != "" && token == h.config.WhatsApp.VerifyToken {
		h.logger.Info("Webhook verification handshake accepted")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(challenge))
		return
	}

	h.logger.Warn("Webhook verification handshake rejected", "mode", mode, "remote_addr", r.RemoteAddr)
	w.WriteHeader(http.StatusForbidden)
	w.Write([]byte("Forbidden"))
}

// HandleWebhook handles POST /api/v1/webhook/whatsapp. One delivery can carry
// several entries, each with several changes; all of them are processed
// before acknowledging. 401 on signature mismatch, 500 on persistence
// failure so the provider redelivers.
func (h *WhatsAppWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("Failed to read webhook body", "error", err)
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}

	if h.config.WhatsApp.VerifySignature {
		if !h.verifySignature(w, r, body) {
			return
		}
	}

	var webhook model.WhatsAppWebhook
	if err := json.Unmarshal(body, &webhook); err != nil {
		h.logger.Error("Failed to decode webhook payload", "error", err)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	for _, entry := range webhook.Entry {
		for _, change := range entry.Changes {
			if err := h.reconciler.ProcessValue(r.Context(), entry.ID, change.Value); err != nil {
				h.logger.Error("Message reconciliation failed", "error", err)
				http.Error(w, "processing failed", http.StatusInternalServerError)
				return
			}
		}
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *WhatsAppWebhookHandler) verifySignature(w http.ResponseWriter, r *http.Request, body []byte) bool {
	header := r.Header.Get(hubSignatureHeader)

	if header == "" {
		if h.config.AllowUnsignedWebhooks {
			h.logger.Warn("Accepting unsigned WhatsApp webhook (test mode)", "remote_addr", r.RemoteAddr)
			return true
		}
		h.logger.Warn("Missing WhatsApp webhook signature", "remote_addr", r.RemoteAddr)
		http.Error(w, "missing signature", http.StatusUnauthorized)
		return false
	}

	if h.config.WhatsApp.AppSecret == "" {
		h.logger.Error("WHATSAPP_APP_SECRET not configured, rejecting webhook")
		http.Error(w, "app secret not configured", http.StatusUnauthorized)
		return false
	}

	if !signature.VerifyWithPrefix(body, header, "sha256=", h.config.WhatsApp.AppSecret) {
		h.logger.Warn("Invalid WhatsApp webhook signature", "remote_addr", r.RemoteAddr)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return false
	}

	return true
}
