package credstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pigeonhq/pigeon/internal/model"
	"github.com/pigeonhq/pigeon/internal/token"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore("")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestServiceRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	svc := &model.Service{Name: "va-benefits", Active: true, MessageLimit: 1000, RateLimit: 3000}
	if err := store.CreateService(ctx, svc); err != nil {
		t.Fatalf("CreateService: %v", err)
	}
	if svc.ID == uuid.Nil {
		t.Fatal("expected generated service id")
	}

	got, err := store.GetService(ctx, svc.ID)
	if err != nil {
		t.Fatalf("GetService: %v", err)
	}
	if got.Name != "va-benefits" || !got.Active {
		t.Errorf("unexpected service: %+v", got)
	}
}

func TestGetServiceNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetService(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestAPIKeysForService(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	svc := &model.Service{Name: "svc", Active: true}
	if err := store.CreateService(ctx, svc); err != nil {
		t.Fatalf("CreateService: %v", err)
	}

	first := &model.APIKey{
		ServiceID:     svc.ID,
		Name:          "ci",
		SecretEncoded: token.WrapSecret("first-secret"),
		CreatedAt:     time.Now().UTC().Add(-time.Hour),
	}
	second := &model.APIKey{
		ServiceID:     svc.ID,
		Name:          "prod",
		SecretEncoded: token.WrapSecret("second-secret"),
	}
	if err := store.CreateAPIKey(ctx, first); err != nil {
		t.Fatalf("CreateAPIKey: %v", err)
	}
	if err := store.CreateAPIKey(ctx, second); err != nil {
		t.Fatalf("CreateAPIKey: %v", err)
	}

	keys, err := store.GetAPIKeys(ctx, svc.ID)
	if err != nil {
		t.Fatalf("GetAPIKeys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("got %d keys, want 2", len(keys))
	}
	// Stable creation order.
	if keys[0].Name != "ci" || keys[1].Name != "prod" {
		t.Errorf("unexpected order: %q, %q", keys[0].Name, keys[1].Name)
	}
	if keys[0].KeyType != model.KeyTypeNormal {
		t.Errorf("key type: got %q, want %q", keys[0].KeyType, model.KeyTypeNormal)
	}

	secret, ok := token.UnwrapSecret(keys[0].SecretEncoded)
	if !ok || secret != "first-secret" {
		t.Errorf("secret round trip: got (%q, %v)", secret, ok)
	}
}

func TestAPIKeysEmptyForUnknownService(t *testing.T) {
	store := newTestStore(t)
	keys, err := store.GetAPIKeys(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("GetAPIKeys: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("got %d keys, want 0", len(keys))
	}
}

func TestRevokeAPIKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	svc := &model.Service{Name: "svc", Active: true}
	if err := store.CreateService(ctx, svc); err != nil {
		t.Fatalf("CreateService: %v", err)
	}
	key := &model.APIKey{ServiceID: svc.ID, SecretEncoded: token.WrapSecret("s")}
	if err := store.CreateAPIKey(ctx, key); err != nil {
		t.Fatalf("CreateAPIKey: %v", err)
	}

	if err := store.RevokeAPIKey(ctx, key.ID); err != nil {
		t.Fatalf("RevokeAPIKey: %v", err)
	}
	keys, err := store.GetAPIKeys(ctx, svc.ID)
	if err != nil {
		t.Fatalf("GetAPIKeys: %v", err)
	}
	if !keys[0].Revoked {
		t.Error("key not revoked after RevokeAPIKey")
	}

	if err := store.RevokeAPIKey(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("revoke unknown key: got %v, want ErrNotFound", err)
	}
}

func TestExpiryNormalizedToUTC(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	svc := &model.Service{Name: "svc", Active: true}
	if err := store.CreateService(ctx, svc); err != nil {
		t.Fatalf("CreateService: %v", err)
	}
	expiry := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	key := &model.APIKey{ServiceID: svc.ID, SecretEncoded: token.WrapSecret("s"), ExpiryDate: &expiry}
	if err := store.CreateAPIKey(ctx, key); err != nil {
		t.Fatalf("CreateAPIKey: %v", err)
	}

	keys, err := store.GetAPIKeys(ctx, svc.ID)
	if err != nil {
		t.Fatalf("GetAPIKeys: %v", err)
	}
	got := keys[0].ExpiryDate
	if got == nil {
		t.Fatal("expiry date lost")
	}
	if !got.Equal(expiry) {
		t.Errorf("expiry: got %v, want %v", got, expiry)
	}
	if got.Location() != time.UTC {
		t.Errorf("expiry zone: got %v, want UTC", got.Location())
	}
}

func TestSeedFile(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "seed.yaml")
	seed := `services:
  - name: local-dev
    rate_limit: 5
    api_keys:
      - name: dev-key
        secret: shh
      - name: revoked-key
        secret: old
        revoked: true
`
	if err := os.WriteFile(path, []byte(seed), 0644); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	sf, err := LoadSeedFile(path)
	if err != nil {
		t.Fatalf("LoadSeedFile: %v", err)
	}
	nServices, nKeys, err := sf.Apply(ctx, store)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if nServices != 1 || nKeys != 2 {
		t.Errorf("applied (%d, %d), want (1, 2)", nServices, nKeys)
	}

	services, err := store.ListServices(ctx)
	if err != nil {
		t.Fatalf("ListServices: %v", err)
	}
	if len(services) != 1 || services[0].Name != "local-dev" {
		t.Fatalf("unexpected services: %+v", services)
	}
	keys, err := store.GetAPIKeys(ctx, services[0].ID)
	if err != nil {
		t.Fatalf("GetAPIKeys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("got %d keys, want 2", len(keys))
	}
	secret, ok := token.UnwrapSecret(keys[0].SecretEncoded)
	if !ok || secret != "shh" {
		t.Errorf("seeded secret: got (%q, %v)", secret, ok)
	}
	if !keys[1].Revoked {
		t.Error("seeded revoked flag lost")
	}
}
