// Package auth resolves bearer tokens into verified principals. A token is
// either an admin token, signed with the platform's admin secret, or a
// service token, signed with one of the issuing service's API-key secrets
// held in the legacy credential store.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pigeonhq/pigeon/internal/credstore"
	"github.com/pigeonhq/pigeon/internal/model"
	"github.com/pigeonhq/pigeon/internal/token"
)

// AdminIssuer is the reserved iss value for platform-admin tokens. Any
// other issuer is treated as a service UUID.
const AdminIssuer = model.AdminIssuer

// Resolver implements the trust-derivation state machine.
type Resolver struct {
	store       credstore.Store
	adminSecret []byte
	algorithm   string
	window      time.Duration // access-token expiry window
	leeway      time.Duration // issued-at clock-skew tolerance
	logger      *slog.Logger
	now         func() time.Time
}

// Config carries the resolver's verification parameters.
type Config struct {
	AdminSecret []byte
	Algorithm   string
	Window      time.Duration
	Leeway      time.Duration
}

// NewResolver builds a Resolver over the given credential store.
func NewResolver(store credstore.Store, cfg Config, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:       store,
		adminSecret: cfg.AdminSecret,
		algorithm:   cfg.Algorithm,
		window:      cfg.Window,
		leeway:      cfg.Leeway,
		logger:      logger,
		now:         time.Now,
	}
}

// Resolve verifies a bearer token and returns the principal it proves.
// Every failure is an *Error carrying one of the fixed messages; callers
// must not learn anything finer-grained.
func (r *Resolver) Resolve(ctx context.Context, bearer string) (model.Principal, error) {
	// The issuer decides which keys to try, so it is read before any
	// signature can be checked.
	unverified, err := token.DecodeUnverified(bearer)
	if err != nil {
		if errors.Is(err, token.ErrIssuer) {
			return model.Principal{}, reject(MsgIssuerNotProvided)
		}
		return model.Principal{}, reject(MsgTokenNotValid)
	}

	if unverified.Issuer == AdminIssuer {
		return r.resolveAdmin(bearer)
	}
	return r.resolveService(ctx, bearer, unverified.Issuer)
}

// resolveAdmin verifies against the admin secret. The admin issuer never
// falls through to service resolution; a forged admin token is rejected
// outright.
func (r *Resolver) resolveAdmin(bearer string) (model.Principal, error) {
	claims, err := token.DecodeVerified(bearer, r.adminSecret, r.algorithm)
	if err != nil {
		return model.Principal{}, reject(MsgTokenNotValid)
	}
	if err := token.ValidateClaims(claims, r.now(), r.window, r.leeway); err != nil {
		return model.Principal{}, r.claimsRejection(err)
	}
	return model.Principal{Issuer: AdminIssuer}, nil
}

func (r *Resolver) resolveService(ctx context.Context, bearer, issuer string) (model.Principal, error) {
	serviceID, err := uuid.Parse(issuer)
	if err != nil {
		return model.Principal{}, reject(MsgServiceIDWrongType)
	}

	// Not-found, retryable, and non-retryable faults all collapse into the
	// same rejection here and below.
	service, err := r.store.GetService(ctx, serviceID)
	if err != nil {
		return model.Principal{}, reject(MsgServiceNotFound)
	}
	if !service.Active {
		return model.Principal{}, reject(MsgServiceArchived)
	}

	keys, err := r.store.GetAPIKeys(ctx, serviceID)
	if err != nil || len(keys) == 0 {
		return model.Principal{}, reject(MsgServiceHasNoKeys)
	}

	matched, claims, ok := r.matchKey(bearer, keys)
	if !ok {
		return model.Principal{}, reject(MsgAPITokenNotFound)
	}
	// Revocation is checked only on the record whose secret matched. A
	// revoked key that matches ahead of a valid one therefore rejects;
	// that is long-standing platform behavior, kept as is.
	if matched.Revoked {
		return model.Principal{}, reject(MsgAPIKeyRevoked)
	}

	if err := token.ValidateClaims(claims, r.now(), r.window, r.leeway); err != nil {
		return model.Principal{}, r.claimsRejection(err)
	}

	r.warnOnExpiry(matched)

	return model.Principal{
		Issuer:    issuer,
		ServiceID: service.ID,
		APIKeyID:  matched.ID,
	}, nil
}

// matchKey tries each candidate key's decoded secret against the token
// signature, in the store's stable order, stopping at the first match.
// Keys whose secrets cannot be decoded simply never match.
func (r *Resolver) matchKey(bearer string, keys []model.APIKey) (model.APIKey, token.Claims, bool) {
	for _, key := range keys {
		secret, ok := token.UnwrapSecret(key.SecretEncoded)
		if !ok {
			continue
		}
		claims, err := token.DecodeVerified(bearer, []byte(secret), r.algorithm)
		if err != nil {
			continue
		}
		return key, claims, true
	}
	return model.APIKey{}, token.Claims{}, false
}

// warnOnExpiry logs deprecation signals for keys without an expiry date
// and keys past it. Neither blocks authentication.
func (r *Resolver) warnOnExpiry(key model.APIKey) {
	if key.ExpiryDate == nil {
		r.logger.Warn("api key has no expiry date",
			"api_key_id", key.ID.String(),
			"service_id", key.ServiceID.String(),
		)
		return
	}
	if key.Expired(r.now()) {
		r.logger.Warn("api key is past its expiry date",
			"api_key_id", key.ID.String(),
			"service_id", key.ServiceID.String(),
			"expiry_date", key.ExpiryDate,
		)
	}
}

func (r *Resolver) claimsRejection(err error) error {
	if errors.Is(err, token.ErrIssuer) {
		return reject(MsgIssuerNotProvided)
	}
	return reject(MsgSystemClock)
}
