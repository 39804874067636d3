// Package credstore provides read access to the legacy credential database:
// the services and api_keys tables that authentication resolves tokens
// against. The production adapter targets Postgres; a SQLite adapter with
// the same schema backs local development and tests.
package credstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/pigeonhq/pigeon/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Store is the credential lookup interface consumed by the trust resolver.
// Lookup failures are ErrNotFound, errs.RetryableError, or
// errs.NonRetryableError; the resolver collapses all three into uniform
// auth rejections so callers cannot probe for valid service IDs.
type Store interface {
	// GetService fetches one service record by id.
	GetService(ctx context.Context, id uuid.UUID) (model.Service, error)
	// GetAPIKeys fetches every API key belonging to a service, in stable
	// creation order. An empty slice is a valid result.
	GetAPIKeys(ctx context.Context, serviceID uuid.UUID) ([]model.APIKey, error)
	// Ping reports whether the backing database is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// AdminStore extends Store with the management operations the admin API
// and the CLI use. The SQLite development store implements it; the legacy
// Postgres credential database is owned by another platform and stays
// read-only from this side.
type AdminStore interface {
	Store
	CreateService(ctx context.Context, svc *model.Service) error
	CreateAPIKey(ctx context.Context, key *model.APIKey) error
	RevokeAPIKey(ctx context.Context, id uuid.UUID) error
	ListServices(ctx context.Context) ([]model.Service, error)
}

// normalizeExpiry applies the legacy timestamp convention: naive timestamps
// are UTC. Drivers that scan without zone information return local-zone
// values, so anything that is not already zoned is rebuilt in UTC.
func normalizeExpiry(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	if t.Location() == time.UTC {
		return t
	}
	if _, offset := t.Zone(); offset == 0 || t.Location() == time.Local {
		u := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
		return &u
	}
	// Aware timestamps keep their zone.
	return t
}
