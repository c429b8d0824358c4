package model

import "time"

// Registration statuses
const (
	RegistrationStatusPending   = "pending"
	RegistrationStatusCompleted = "completed"
)

// Registration represents a course registration record. This core only reads
// it and flips its status to completed when a payment captures.
type Registration struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Course    string    `json:"course"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
