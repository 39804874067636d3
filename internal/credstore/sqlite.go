package credstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/pigeonhq/pigeon/internal/model"
)

// SQLiteStore is a credential store backed by SQLite. It mirrors the legacy
// services/api_keys schema and adds the write helpers the CLI needs to seed
// local environments. Pass an empty dataDir for in-memory.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (and migrates) a SQLite credential store.
func NewSQLiteStore(dataDir string) (*SQLiteStore, error) {
	var dsn string
	if dataDir == "" {
		dsn = ":memory:?_journal_mode=WAL"
	} else {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(dataDir, "pigeon.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open credential database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate credential database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS services (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	active        BOOLEAN NOT NULL DEFAULT 1,
	message_limit INTEGER NOT NULL DEFAULT 1000,
	rate_limit    INTEGER NOT NULL DEFAULT 3000,
	restricted    BOOLEAN NOT NULL DEFAULT 0,
	created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS api_keys (
	id          TEXT PRIMARY KEY,
	service_id  TEXT NOT NULL REFERENCES services(id) ON DELETE CASCADE,
	name        TEXT NOT NULL DEFAULT '',
	secret      TEXT NOT NULL,
	key_type    TEXT NOT NULL DEFAULT 'normal',
	revoked     BOOLEAN NOT NULL DEFAULT 0,
	expiry_date TIMESTAMP,
	created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_api_keys_service ON api_keys(service_id);
`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping reports whether the database file is usable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// serviceRow maps 1:1 to the services table; UUIDs are stored as text.
type serviceRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Active       bool      `db:"active"`
	MessageLimit int       `db:"message_limit"`
	RateLimit    int       `db:"rate_limit"`
	Restricted   bool      `db:"restricted"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r serviceRow) toModel() (model.Service, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return model.Service{}, fmt.Errorf("service id %q: %w", r.ID, err)
	}
	return model.Service{
		ID:           id,
		Name:         r.Name,
		Active:       r.Active,
		MessageLimit: r.MessageLimit,
		RateLimit:    r.RateLimit,
		Restricted:   r.Restricted,
		CreatedAt:    r.CreatedAt,
	}, nil
}

type apiKeyRow struct {
	ID         string     `db:"id"`
	ServiceID  string     `db:"service_id"`
	Name       string     `db:"name"`
	Secret     string     `db:"secret"`
	KeyType    string     `db:"key_type"`
	Revoked    bool       `db:"revoked"`
	ExpiryDate *time.Time `db:"expiry_date"`
	CreatedAt  time.Time  `db:"created_at"`
}

func (r apiKeyRow) toModel() (model.APIKey, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return model.APIKey{}, fmt.Errorf("api key id %q: %w", r.ID, err)
	}
	serviceID, err := uuid.Parse(r.ServiceID)
	if err != nil {
		return model.APIKey{}, fmt.Errorf("api key service id %q: %w", r.ServiceID, err)
	}
	return model.APIKey{
		ID:            id,
		ServiceID:     serviceID,
		Name:          r.Name,
		SecretEncoded: r.Secret,
		KeyType:       r.KeyType,
		Revoked:       r.Revoked,
		ExpiryDate:    normalizeExpiry(r.ExpiryDate),
		CreatedAt:     r.CreatedAt,
	}, nil
}

// GetService fetches one service record by id.
func (s *SQLiteStore) GetService(ctx context.Context, id uuid.UUID) (model.Service, error) {
	var row serviceRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM services WHERE id = ?", id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return model.Service{}, ErrNotFound
	}
	if err != nil {
		return model.Service{}, fmt.Errorf("get service: %w", err)
	}
	return row.toModel()
}

// GetAPIKeys fetches every API key for a service in creation order.
func (s *SQLiteStore) GetAPIKeys(ctx context.Context, serviceID uuid.UUID) ([]model.APIKey, error) {
	var rows []apiKeyRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM api_keys WHERE service_id = ? ORDER BY created_at, id", serviceID.String())
	if err != nil {
		return nil, fmt.Errorf("get api keys: %w", err)
	}
	keys := make([]model.APIKey, 0, len(rows))
	for _, r := range rows {
		k, err := r.toModel()
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// CreateService inserts a service record. Used by the CLI and tests only;
// the production credential database is owned by the legacy platform.
func (s *SQLiteStore) CreateService(ctx context.Context, svc *model.Service) error {
	if svc.ID == uuid.Nil {
		svc.ID = uuid.New()
	}
	if svc.CreatedAt.IsZero() {
		svc.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO services (id, name, active, message_limit, rate_limit, restricted, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		svc.ID.String(), svc.Name, svc.Active, svc.MessageLimit, svc.RateLimit, svc.Restricted, svc.CreatedAt)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	return nil
}

// CreateAPIKey inserts an API key record. SecretEncoded must already be in
// the at-rest encoding.
func (s *SQLiteStore) CreateAPIKey(ctx context.Context, key *model.APIKey) error {
	if key.ID == uuid.Nil {
		key.ID = uuid.New()
	}
	if key.KeyType == "" {
		key.KeyType = model.KeyTypeNormal
	}
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_keys (id, service_id, name, secret, key_type, revoked, expiry_date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		key.ID.String(), key.ServiceID.String(), key.Name, key.SecretEncoded,
		key.KeyType, key.Revoked, key.ExpiryDate, key.CreatedAt)
	if err != nil {
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

// RevokeAPIKey flips the revoked flag on a key.
func (s *SQLiteStore) RevokeAPIKey(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, "UPDATE api_keys SET revoked = 1 WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListServices returns all services, for the CLI listing.
func (s *SQLiteStore) ListServices(ctx context.Context) ([]model.Service, error) {
	var rows []serviceRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT * FROM services ORDER BY created_at, id"); err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	out := make([]model.Service, 0, len(rows))
	for _, r := range rows {
		svc, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, svc)
	}
	return out, nil
}
