package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/adilcse/okneppo-sub001/internal/config"
	"github.com/adilcse/okneppo-sub001/internal/model"
	"github.com/adilcse/okneppo-sub001/internal/repository"
	"github.com/adilcse/okneppo-sub001/pkg/logger"
)

// WhatsAppService sends outbound messages through the Cloud API
type WhatsAppService struct {
	httpClient *http.Client
	config     *config.WhatsAppConfig
	messages   *repository.MessageRepository
	logger     *logger.Logger
}

// NewWhatsAppService creates a new WhatsApp sending service
func NewWhatsAppService(cfg *config.WhatsAppConfig, messages *repository.MessageRepository, log *logger.Logger) *WhatsAppService {
	return &WhatsAppService{
		httpClient: &http.Client{
			Timeout: cfg.SendTimeout,
		},
		config:   cfg,
		messages: messages,
		logger:   log,
	}
}

// sendRequest is the Cloud API message payload
type sendRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             sendText `json:"text"`
}

type sendText struct {
	Body string `json:"body"`
}

// sendResponse is the Cloud API reply carrying the assigned message ID
type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// SendWelcome sends a text message to phone with retry and records the
// outbound message in the ledger under the provider-assigned message ID.
// Recording goes through the same upsert key as webhook reconciliation, so a
// status event that raced ahead of this call merges into the same row.
func (s *WhatsAppService) SendWelcome(ctx context.Context, phone, name, body string) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= s.config.SendRetryCount; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			s.logger.Warn("Retrying WhatsApp send",
				"to", phone,
				"attempt", attempt+1,
				"backoff_seconds", backoff.Seconds(),
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		messageID, err := s.send(ctx, phone, body)
		if err == nil {
			s.recordOutbound(ctx, messageID, phone, body)
			s.logger.WithMessageID(messageID).Info("WhatsApp message sent",
				"to", phone,
				"recipient_name", name,
				"attempt", attempt+1,
			)
			return messageID, nil
		}

		lastErr = err
		s.logger.Warn("WhatsApp send failed",
			"to", phone,
			"attempt", attempt+1,
			"error", err,
		)
	}

	return "", fmt.Errorf("whatsapp send failed after %d attempts: %w",
		s.config.SendRetryCount+1, lastErr)
}

// send performs the actual HTTP request to the Cloud API
func (s *WhatsAppService) send(ctx context.Context, phone, body string) (string, error) {
	payload := sendRequest{
		MessagingProduct: "whatsapp",
		To:               phone,
		Type:             "text",
		Text:             sendText{Body: body},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", s.config.APIBaseURL, s.config.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.AccessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, respBody)
	}

	var parsed sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Messages) == 0 {
		return "", fmt.Errorf("response carried no message id")
	}

	return parsed.Messages[0].ID, nil
}

// recordOutbound saves the sent message to the ledger. The message already
// left for the provider, so a storage failure here is logged, not returned.
func (s *WhatsAppService) recordOutbound(ctx context.Context, messageID, phone, body string) {
	if s.messages == nil {
		return
	}
	msg := &model.Message{
		MessageID:  messageID,
		Direction:  model.DirectionOutbound,
		FromNumber: s.config.PhoneNumberID,
		ToNumber:   phone,
		Type:       "text",
		Content:    body,
		Status:     model.MessageStatusSent,
		Timestamp:  time.Now(),
	}

	// A delivery-status webhook can beat this write; keep the status it
	// already reported instead of rewinding the row to "sent".
	if existing, err := s.messages.GetByMessageID(ctx, messageID); err == nil && existing != nil && existing.Placeholder {
		msg.Status = existing.Status
		msg.Timestamp = existing.Timestamp
	}

	if err := s.messages.Upsert(ctx, msg); err != nil {
		s.logger.WithMessageID(messageID).Error("Failed to record outbound message", "error", err)
	}
}
