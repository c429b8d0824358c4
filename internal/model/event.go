package model

import "time"

// Live event types pushed to connected viewers
const (
	EventConnected          = "connected"
	EventHeartbeat          = "heartbeat"
	EventNewMessage         = "new-message"
	EventStatusUpdate       = "message-status-update"
	EventNewConversation    = "new-conversation"
	EventConversationUpdate = "conversation-update"
)

// Event is a single JSON frame on the live stream
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Conversation summarizes the latest state of a chat with one customer
type Conversation struct {
	PhoneNumber   string    `json:"phone_number"`
	LastMessage   string    `json:"last_message"`
	LastDirection string    `json:"last_direction"`
	LastTimestamp time.Time `json:"last_timestamp"`
}

// NewMessageEvent is the payload of a new-message frame
type NewMessageEvent struct {
	Message      *Message     `json:"message"`
	Conversation Conversation `json:"conversation"`
}

// StatusUpdateEvent is the payload of a message-status-update frame
type StatusUpdateEvent struct {
	MessageID   string    `json:"message_id"`
	Status      string    `json:"status"`
	PhoneNumber string    `json:"phone_number"`
	Timestamp   time.Time `json:"timestamp"`
	Direction   string    `json:"direction"`
	Content     string    `json:"content"`
	Type        string    `json:"type"`
}
