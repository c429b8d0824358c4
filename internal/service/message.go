package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adilcse/okneppo-sub001/internal/model"
	"github.com/adilcse/okneppo-sub001/internal/repository"
	"github.com/adilcse/okneppo-sub001/pkg/logger"
)

// MessageReconciler merges WhatsApp webhook events into the message ledger.
// Messages and their delivery statuses arrive at least once and in no
// guaranteed order; the ledger holds exactly one row per provider message ID
// no matter which arrives first.
type MessageReconciler struct {
	messages    *repository.MessageRepository
	broadcaster *Broadcaster
	locks       *keyLock
	logger      *logger.Logger
}

// NewMessageReconciler creates a new message reconciler
func NewMessageReconciler(messages *repository.MessageRepository, broadcaster *Broadcaster, log *logger.Logger) *MessageReconciler {
	return &MessageReconciler{
		messages:    messages,
		broadcaster: broadcaster,
		locks:       newKeyLock(),
		logger:      log,
	}
}

// ProcessValue handles one change value from a webhook delivery, which can
// carry several messages and statuses at once
func (s *MessageReconciler) ProcessValue(ctx context.Context, businessAccountID string, value model.WhatsAppValue) error {
	for _, msg := range value.Messages {
		if err := s.ProcessIncomingMessage(ctx, businessAccountID, value.Metadata.DisplayPhoneNumber, msg); err != nil {
			return err
		}
	}
	for _, st := range value.Statuses {
		if err := s.ProcessStatusUpdate(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

// ProcessIncomingMessage upserts an inbound message and notifies live
// viewers. If a status event already created a placeholder under this message
// ID, the real message overwrites it in place: the materialized content and
// direction win over whatever the status-only row assumed.
func (s *MessageReconciler) ProcessIncomingMessage(ctx context.Context, businessAccountID, displayNumber string, in model.WhatsAppMessage) error {
	log := s.logger.WithMessageID(in.ID)

	unlock := s.locks.Lock("message:" + in.ID)
	defer unlock()

	hadConversation, err := s.messages.HasConversationWith(ctx, in.From)
	if err != nil {
		return fmt.Errorf("conversation lookup failed: %w", err)
	}

	msg := &model.Message{
		MessageID:         in.ID,
		Direction:         model.DirectionInbound,
		FromNumber:        in.From,
		ToNumber:          displayNumber,
		BusinessAccountID: businessAccountID,
		Type:              in.Type,
		Content:           ExtractContent(in),
		Status:            model.MessageStatusReceived,
		Timestamp:         parseTimestamp(in.Timestamp),
	}

	if err := s.messages.Upsert(ctx, msg); err != nil {
		return fmt.Errorf("message upsert failed: %w", err)
	}

	log.Info("Incoming message stored", "from", in.From, "type", in.Type)

	conversation := model.Conversation{
		PhoneNumber:   in.From,
		LastMessage:   msg.Content,
		LastDirection: msg.Direction,
		LastTimestamp: msg.Timestamp,
	}

	s.broadcaster.Broadcast(model.Event{
		Type: model.EventNewMessage,
		Data: model.NewMessageEvent{Message: msg, Conversation: conversation},
	})

	conversationEvent := model.EventConversationUpdate
	if !hadConversation {
		conversationEvent = model.EventNewConversation
	}
	s.broadcaster.Broadcast(model.Event{Type: conversationEvent, Data: conversation})

	return nil
}

// ProcessStatusUpdate applies a delivery-status event. A status for an
// unknown message ID arrived ahead of its message: it creates a placeholder
// row (status events are only emitted for outbound messages) that a later
// content write merges into. Stale statuses, identified by a timestamp older
// than the row's, are dropped whole rather than partially merged.
func (s *MessageReconciler) ProcessStatusUpdate(ctx context.Context, in model.WhatsAppStatus) error {
	log := s.logger.WithMessageID(in.ID)

	unlock := s.locks.Lock("message:" + in.ID)
	defer unlock()

	ts := parseTimestamp(in.Timestamp)

	existing, err := s.messages.GetByMessageID(ctx, in.ID)
	if err != nil {
		return fmt.Errorf("message lookup failed: %w", err)
	}

	if existing == nil {
		placeholder := &model.Message{
			MessageID: in.ID,
			Direction: model.DirectionOutbound,
			ToNumber:  in.RecipientID,
			Type:      "unknown",
			Content:   model.PlaceholderContent,
			Status:    in.Status,
			Timestamp: ts,
		}
		if err := s.messages.InsertPlaceholder(ctx, placeholder); err != nil {
			return fmt.Errorf("placeholder insert failed: %w", err)
		}
		log.Info("Status arrived before message, placeholder created", "status", in.Status)
		return nil
	}

	if ts.Before(existing.Timestamp) {
		log.Debug("Dropping stale status update",
			"status", in.Status,
			"event_timestamp", ts,
			"row_timestamp", existing.Timestamp,
		)
		return nil
	}

	if err := s.messages.UpdateStatus(ctx, in.ID, in.Status, ts); err != nil {
		return fmt.Errorf("status update failed: %w", err)
	}

	log.Info("Message status updated", "status", in.Status)

	// The recipient_id in a status event is always the customer, so the
	// stable conversation key comes from the stored row's direction
	// instead: the partner is "to" for outbound and "from" for inbound.
	partner := existing.ToNumber
	if existing.Direction == model.DirectionInbound {
		partner = existing.FromNumber
	}

	s.broadcaster.Broadcast(model.Event{
		Type: model.EventStatusUpdate,
		Data: model.StatusUpdateEvent{
			MessageID:   in.ID,
			Status:      in.Status,
			PhoneNumber: partner,
			Timestamp:   ts,
			Direction:   existing.Direction,
			Content:     existing.Content,
			Type:        existing.Type,
		},
	})

	return nil
}

// ExtractContent renders a human-readable content string for a message
// according to its type
func ExtractContent(in model.WhatsAppMessage) string {
	switch in.Type {
	case "text":
		if in.Text != nil {
			return in.Text.Body
		}
		return ""
	case "image":
		if in.Image != nil && in.Image.Caption != "" {
			return "[Image] " + in.Image.Caption
		}
		return "[Image]"
	case "video":
		if in.Video != nil && in.Video.Caption != "" {
			return "[Video] " + in.Video.Caption
		}
		return "[Video]"
	case "audio":
		return "[Audio message]"
	case "voice":
		return "[Voice message]"
	case "document":
		if in.Document != nil && in.Document.Filename != "" {
			return "[Document] " + in.Document.Filename
		}
		return "[Document]"
	default:
		return "[" + in.Type + "]"
	}
}

// parseTimestamp converts the provider's epoch-seconds string; an absent or
// malformed value falls back to the current time
func parseTimestamp(raw string) time.Time {
	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || sec <= 0 {
		return time.Now()
	}
	return time.Unix(sec, 0)
}
