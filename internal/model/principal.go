package model

import "github.com/google/uuid"

// AdminIssuer is the reserved iss value for platform-admin tokens. No
// service may claim it: service issuers are UUID strings.
const AdminIssuer = "pigeon-admin"

// Principal is the verified caller identity derived from a bearer token.
// It is constructed once per request by the auth gate, read-only after
// that, and never persisted.
type Principal struct {
	Issuer    string    // AdminIssuer or service UUID string
	ServiceID uuid.UUID // zero for admin tokens
	APIKeyID  uuid.UUID // zero for admin tokens
}

// IsAdmin reports whether the principal was authenticated with the admin
// signing secret rather than a service API key. The check is on the issuer,
// not the zero service ID, so a pathological service row with an all-zeros
// UUID cannot pass the admin gates.
func (p Principal) IsAdmin() bool {
	return p.Issuer == AdminIssuer
}
