package model

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType discriminates delivery channels.
type NotificationType string

const (
	NotificationSMS  NotificationType = "sms"
	NotificationPush NotificationType = "push"
)

// Notification is an accepted notification request. The gateway validates
// and persists the envelope, then hands delivery to the queue; it never
// tracks provider-side state.
type Notification struct {
	ID              uuid.UUID         `json:"id"`
	Type            NotificationType  `json:"notification_type"`
	ServiceID       uuid.UUID         `json:"service_id"`
	APIKeyID        uuid.UUID         `json:"api_key_id"`
	TemplateID      uuid.UUID         `json:"template_id"`
	Recipient       string            `json:"recipient,omitempty"`
	Personalisation map[string]string `json:"personalisation,omitempty"`
	Reference       string            `json:"reference,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}
