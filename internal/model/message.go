package model

import "time"

// Message directions
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Message statuses reported by the provider, plus the local ones
const (
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusRead      = "read"
	MessageStatusFailed    = "failed"
	MessageStatusReceived  = "received"
	MessageStatusPending   = "pending"
)

// PlaceholderContent marks a row created from a status event whose message
// body has not arrived yet.
const PlaceholderContent = "content not yet received"

// Message represents a row in the local message ledger.
//
// MessageID is the provider's message ID (wamid) and is unique: a status
// event arriving before its message creates a placeholder row under the same
// key, later promoted in place when the real content shows up.
type Message struct {
	ID                string    `json:"id"`
	MessageID         string    `json:"message_id"`
	Direction         string    `json:"direction"`
	FromNumber        string    `json:"from_number"`
	ToNumber          string    `json:"to_number"`
	BusinessAccountID string    `json:"business_account_id,omitempty"`
	Type              string    `json:"type"`
	Content           string    `json:"content"`
	Status            string    `json:"status"`
	Timestamp         time.Time `json:"timestamp"`
	Placeholder       bool      `json:"placeholder"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// WhatsAppWebhook represents the Cloud API webhook envelope
type WhatsAppWebhook struct {
	Object string          `json:"object"`
	Entry  []WhatsAppEntry `json:"entry"`
}

// WhatsAppEntry is one business-account entry in a webhook delivery
type WhatsAppEntry struct {
	ID      string           `json:"id"`
	Changes []WhatsAppChange `json:"changes"`
}

// WhatsAppChange is one change notification inside an entry
type WhatsAppChange struct {
	Field string        `json:"field"`
	Value WhatsAppValue `json:"value"`
}

// WhatsAppValue carries the messages and statuses of one change
type WhatsAppValue struct {
	MessagingProduct string            `json:"messaging_product"`
	Metadata         WhatsAppMetadata  `json:"metadata"`
	Contacts         []WhatsAppContact `json:"contacts,omitempty"`
	Messages         []WhatsAppMessage `json:"messages,omitempty"`
	Statuses         []WhatsAppStatus  `json:"statuses,omitempty"`
}

// WhatsAppMetadata identifies the receiving business number
type WhatsAppMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// WhatsAppContact describes the customer behind an inbound message
type WhatsAppContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// WhatsAppMessage is one inbound message event
type WhatsAppMessage struct {
	From      string            `json:"from"`
	ID        string            `json:"id"`
	Timestamp string            `json:"timestamp"`
	Type      string            `json:"type"`
	Text      *WhatsAppText     `json:"text,omitempty"`
	Image     *WhatsAppMedia    `json:"image,omitempty"`
	Video     *WhatsAppMedia    `json:"video,omitempty"`
	Audio     *WhatsAppMedia    `json:"audio,omitempty"`
	Voice     *WhatsAppMedia    `json:"voice,omitempty"`
	Document  *WhatsAppDocument `json:"document,omitempty"`
}

// WhatsAppText is the body of a text message
type WhatsAppText struct {
	Body string `json:"body"`
}

// WhatsAppMedia is the body of an image/video/audio/voice message
type WhatsAppMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption,omitempty"`
}

// WhatsAppDocument is the body of a document message
type WhatsAppDocument struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Filename string `json:"filename,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// WhatsAppStatus is one delivery-status event for an outbound message
type WhatsAppStatus struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	RecipientID string `json:"recipient_id"`
}
