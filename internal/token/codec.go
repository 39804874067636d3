// Package token implements the signed-token codec used for caller
// authentication: HMAC-signed JWTs carrying issuer, issued-at, and expiry
// claims, plus the reversible encoding used for API-key secrets at rest.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrDecode means the token is not parseable at all; the issuer cannot
	// be known.
	ErrDecode = errors.New("token is not decodable")
	// ErrIssuer means the token parsed but carries no iss claim.
	ErrIssuer = errors.New("iss field not provided")
	// ErrSignature is the uniform verification failure. Callers try multiple
	// candidate keys and must not learn which one failed, or why.
	ErrSignature = errors.New("signature verification failed")
	// ErrClock means iat is missing or falls outside the tolerated window on
	// either side of the current time.
	ErrClock = errors.New("issued-at outside tolerated clock window")
)

// Claims is the validated subset of the token payload the gateway cares
// about.
type Claims struct {
	Issuer    string
	IssuedAt  *time.Time
	ExpiresAt *time.Time
}

// Encode serializes and signs a token with the given HMAC key. The header
// carries the algorithm and the standard JWT type tag.
func Encode(c Claims, key []byte, alg string) (string, error) {
	method := jwt.GetSigningMethod(alg)
	if method == nil {
		return "", fmt.Errorf("unknown signing algorithm %q", alg)
	}

	rc := jwt.RegisteredClaims{Issuer: c.Issuer}
	if c.IssuedAt != nil {
		rc.IssuedAt = jwt.NewNumericDate(*c.IssuedAt)
	}
	if c.ExpiresAt != nil {
		rc.ExpiresAt = jwt.NewNumericDate(*c.ExpiresAt)
	}

	return jwt.NewWithClaims(method, rc).SignedString(key)
}

// DecodeUnverified extracts claims without checking the signature. It exists
// for one purpose: reading iss before the signing key is known, since a
// service token must name its service before the candidate keys can be
// fetched. Never trust anything else in the result.
func DecodeUnverified(tok string) (Claims, error) {
	var rc jwt.RegisteredClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tok, &rc); err != nil {
		return Claims{}, ErrDecode
	}
	if rc.Issuer == "" {
		return Claims{}, ErrIssuer
	}
	return fromRegistered(rc), nil
}

// DecodeVerified checks the token signature against one candidate key. Claim
// validation is deferred to ValidateClaims so that an expired-but-genuine
// token is distinguishable from a forged one. Every verification failure
// collapses to ErrSignature.
func DecodeVerified(tok string, key []byte, alg string) (Claims, error) {
	var rc jwt.RegisteredClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{alg}),
		jwt.WithoutClaimsValidation(),
	)
	parsed, err := parser.ParseWithClaims(tok, &rc, func(t *jwt.Token) (interface{}, error) {
		return key, nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, ErrSignature
	}
	return fromRegistered(rc), nil
}

// ValidateClaims enforces the payload invariants: iss present, iat present,
// and iat within [now-(window+leeway), now+(window+leeway)]. The dual-sided
// check catches both truly stale tokens and future-dated ones from skewed
// clocks; both collapse into ErrClock.
func ValidateClaims(c Claims, now time.Time, window, leeway time.Duration) error {
	if c.Issuer == "" {
		return ErrIssuer
	}
	if c.IssuedAt == nil {
		return ErrClock
	}
	tolerance := window + leeway
	iat := *c.IssuedAt
	if iat.Before(now.Add(-tolerance)) || iat.After(now.Add(tolerance)) {
		return ErrClock
	}
	return nil
}

func fromRegistered(rc jwt.RegisteredClaims) Claims {
	c := Claims{Issuer: rc.Issuer}
	if rc.IssuedAt != nil {
		t := rc.IssuedAt.Time
		c.IssuedAt = &t
	}
	if rc.ExpiresAt != nil {
		t := rc.ExpiresAt.Time
		c.ExpiresAt = &t
	}
	return c
}
