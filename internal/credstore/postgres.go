package credstore

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/pigeonhq/pigeon/internal/errs"
	"github.com/pigeonhq/pigeon/internal/model"
	"github.com/pigeonhq/pigeon/internal/retry"
)

// PostgresStore reads the legacy credential schema over pgx. The gateway
// never writes to it; services and API keys are managed by the upstream
// platform.
type PostgresStore struct {
	db     *sqlx.DB
	policy retry.Policy
}

// NewPostgresStore connects to the legacy credential database.
func NewPostgresStore(dsn string, policy retry.Policy) (*PostgresStore, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, classifyPG("connect credential database", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &PostgresStore{db: db, policy: policy}, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Ping reports whether the credential database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetService fetches one service record by id, retrying transient faults.
func (s *PostgresStore) GetService(ctx context.Context, id uuid.UUID) (model.Service, error) {
	var row serviceRow
	err := retry.Do(ctx, s.policy, errs.IsRetryable, func(ctx context.Context) error {
		qerr := s.db.GetContext(ctx, &row,
			`SELECT id, name, active, message_limit, rate_limit, restricted, created_at
			 FROM services WHERE id = $1`, id.String())
		if errors.Is(qerr, sql.ErrNoRows) {
			return ErrNotFound
		}
		return classifyPG("get service", qerr)
	})
	if err != nil {
		return model.Service{}, err
	}
	return row.toModel()
}

// GetAPIKeys fetches every API key for a service in creation order,
// retrying transient faults.
func (s *PostgresStore) GetAPIKeys(ctx context.Context, serviceID uuid.UUID) ([]model.APIKey, error) {
	var rows []apiKeyRow
	err := retry.Do(ctx, s.policy, errs.IsRetryable, func(ctx context.Context) error {
		rows = rows[:0]
		qerr := s.db.SelectContext(ctx, &rows,
			`SELECT id, service_id, name, secret, key_type, revoked, expiry_date, created_at
			 FROM api_keys WHERE service_id = $1 ORDER BY created_at, id`, serviceID.String())
		return classifyPG("get api keys", qerr)
	})
	if err != nil {
		return nil, err
	}
	keys := make([]model.APIKey, 0, len(rows))
	for _, r := range rows {
		k, kerr := r.toModel()
		if kerr != nil {
			return nil, errs.NonRetryable("get api keys", kerr)
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// classifyPG sorts database faults into the shared taxonomy: network and
// timeout failures are retryable, everything else is not.
func classifyPG(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, sql.ErrConnDone) {
		return errs.Retryable(op, err)
	}
	return errs.NonRetryable(op, err)
}
