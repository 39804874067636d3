package model

import (
	"time"

	"github.com/google/uuid"
)

// Service represents a tenant of the notification platform. It is owned by
// the legacy credential database; the gateway only reads it. An inactive
// (archived) service must reject every token issued in its name.
type Service struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Active       bool      `json:"active" db:"active"`
	MessageLimit int       `json:"message_limit" db:"message_limit"`
	RateLimit    int       `json:"rate_limit" db:"rate_limit"`
	Restricted   bool      `json:"restricted" db:"restricted"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
