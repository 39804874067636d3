package credstore

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/pigeonhq/pigeon/internal/model"
	"github.com/pigeonhq/pigeon/internal/token"
)

// SeedFile is the YAML layout accepted by `pigeon seed`: services with
// inline API keys, written into the local SQLite credential store. Secrets
// are given in plaintext and wrapped into the at-rest encoding on insert.
type SeedFile struct {
	Services []SeedService `yaml:"services"`
}

// SeedService defines one service and its keys in a seed file.
type SeedService struct {
	ID           string       `yaml:"id,omitempty"`
	Name         string       `yaml:"name"`
	Active       *bool        `yaml:"active,omitempty"`
	MessageLimit int          `yaml:"message_limit,omitempty"`
	RateLimit    int          `yaml:"rate_limit,omitempty"`
	APIKeys      []SeedAPIKey `yaml:"api_keys,omitempty"`
}

// SeedAPIKey defines one API key in a seed file.
type SeedAPIKey struct {
	ID         string     `yaml:"id,omitempty"`
	Name       string     `yaml:"name,omitempty"`
	Secret     string     `yaml:"secret"`
	Revoked    bool       `yaml:"revoked,omitempty"`
	ExpiryDate *time.Time `yaml:"expiry_date,omitempty"`
}

// LoadSeedFile parses a YAML seed file from disk.
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var sf SeedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &sf, nil
}

// Apply inserts the seed file's services and keys into the store. IDs are
// generated when omitted; returns the number of services and keys created.
func (sf *SeedFile) Apply(ctx context.Context, store *SQLiteStore) (int, int, error) {
	services, keys := 0, 0
	for _, ss := range sf.Services {
		if ss.Name == "" {
			return services, keys, fmt.Errorf("seed service without a name")
		}
		svc := model.Service{
			Name:         ss.Name,
			Active:       true,
			MessageLimit: ss.MessageLimit,
			RateLimit:    ss.RateLimit,
		}
		if ss.Active != nil {
			svc.Active = *ss.Active
		}
		if ss.ID != "" {
			id, err := uuid.Parse(ss.ID)
			if err != nil {
				return services, keys, fmt.Errorf("seed service %q: bad id: %w", ss.Name, err)
			}
			svc.ID = id
		}
		if err := store.CreateService(ctx, &svc); err != nil {
			return services, keys, err
		}
		services++

		for _, sk := range ss.APIKeys {
			if sk.Secret == "" {
				return services, keys, fmt.Errorf("seed key for %q without a secret", ss.Name)
			}
			key := model.APIKey{
				ServiceID:     svc.ID,
				Name:          sk.Name,
				SecretEncoded: token.WrapSecret(sk.Secret),
				Revoked:       sk.Revoked,
				ExpiryDate:    sk.ExpiryDate,
			}
			if sk.ID != "" {
				id, err := uuid.Parse(sk.ID)
				if err != nil {
					return services, keys, fmt.Errorf("seed key for %q: bad id: %w", ss.Name, err)
				}
				key.ID = id
			}
			if err := store.CreateAPIKey(ctx, &key); err != nil {
				return services, keys, err
			}
			keys++
		}
	}
	return services, keys, nil
}
