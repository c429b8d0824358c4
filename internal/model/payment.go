package model

import "time"

// Payment statuses mirror the gateway's payment lifecycle.
const (
	PaymentStatusCreated    = "created"
	PaymentStatusAuthorized = "authorized"
	PaymentStatusCaptured   = "captured"
	PaymentStatusFailed     = "failed"
)

// Payment represents a row in the local payment ledger.
//
// A row is addressed by OrderID alone until the gateway assigns a payment ID,
// and by (OrderID, PaymentID) afterwards. PaymentID stays empty for the
// pending record created at checkout time.
type Payment struct {
	ID               int64     `json:"id"`
	RegistrationID   int64     `json:"registration_id"`
	OrderID          string    `json:"order_id"`
	PaymentID        string    `json:"payment_id,omitempty"`
	Status           string    `json:"status"`
	Amount           int64     `json:"amount"` // minor units
	Currency         string    `json:"currency"`
	Method           string    `json:"method,omitempty"`
	Fee              int64     `json:"fee,omitempty"`
	Tax              int64     `json:"tax,omitempty"`
	Captured         bool      `json:"captured"`
	ErrorCode        string    `json:"error_code,omitempty"`
	ErrorDescription string    `json:"error_description,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// RazorpayWebhook represents the gateway webhook envelope
type RazorpayWebhook struct {
	Event   string          `json:"event"`
	Payload RazorpayPayload `json:"payload"`
}

// RazorpayPayload wraps the entity carried by a gateway event
type RazorpayPayload struct {
	Payment struct {
		Entity RazorpayPaymentEntity `json:"entity"`
	} `json:"payment"`
	Order struct {
		Entity RazorpayOrderEntity `json:"entity"`
	} `json:"order"`
}

// RazorpayPaymentEntity represents the payment entity inside a webhook
type RazorpayPaymentEntity struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Status           string `json:"status"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Method           string `json:"method"`
	Fee              int64  `json:"fee"`
	Tax              int64  `json:"tax"`
	Captured         bool   `json:"captured"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
	ErrorSource      string `json:"error_source"`
	ErrorStep        string `json:"error_step"`
	ErrorReason      string `json:"error_reason"`
}

// RazorpayOrderEntity represents the order entity inside an order.paid webhook
type RazorpayOrderEntity struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}
