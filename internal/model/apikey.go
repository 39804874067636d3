package model

import (
	"time"

	"github.com/google/uuid"
)

// APIKey is a signing credential belonging to a service. The secret is
// stored in a reversible encoding (see token.UnwrapSecret); it is decoded
// on demand during token resolution and never exposed in JSON.
type APIKey struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	ServiceID     uuid.UUID  `json:"service_id" db:"service_id"`
	Name          string     `json:"name" db:"name"`
	SecretEncoded string     `json:"-" db:"secret"`
	KeyType       string     `json:"key_type" db:"key_type"`
	Revoked       bool       `json:"revoked" db:"revoked"`
	ExpiryDate    *time.Time `json:"expiry_date,omitempty" db:"expiry_date"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// KeyTypeNormal is the only key type the gateway issues. The legacy
// database also carries "team" and "test" keys.
const KeyTypeNormal = "normal"

// Expired reports whether the key's expiry date has passed. Keys with no
// expiry date never expire (legacy keys predate the column).
func (k APIKey) Expired(now time.Time) bool {
	return k.ExpiryDate != nil && k.ExpiryDate.Before(now)
}
