package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pigeonhq/pigeon/internal/credstore"
	"github.com/pigeonhq/pigeon/internal/model"
	"github.com/pigeonhq/pigeon/internal/queue"
	"github.com/pigeonhq/pigeon/internal/server/middleware"
	"github.com/pigeonhq/pigeon/internal/token"
)

func servicePrincipal() *model.Principal {
	return &model.Principal{
		Issuer:    uuid.NewString(),
		ServiceID: uuid.New(),
		APIKeyID:  uuid.New(),
	}
}

func authedRequest(method, target string, body []byte, p *model.Principal) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if p != nil {
		req = req.WithContext(context.WithValue(req.Context(), middleware.AuthPrincipalKey, p))
	}
	return req
}

// ---------------------------------------------------------------------------
// Notification handler tests
// ---------------------------------------------------------------------------

func TestCreateSMS(t *testing.T) {
	q := queue.NewMemory(4)
	t.Cleanup(func() { q.Close() })
	h := NewNotificationHandler(q)
	principal := servicePrincipal()

	body, _ := json.Marshal(map[string]interface{}{
		"template_id":     uuid.NewString(),
		"phone_number":    "+15551234567",
		"personalisation": map[string]string{"name": "Ada"},
		"reference":       "order-42",
	})
	rr := httptest.NewRecorder()
	h.CreateSMS(rr, authedRequest("POST", "/v2/notifications/sms", body, principal))

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201 (body %s)", rr.Code, rr.Body.String())
	}

	var resp notificationResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID == uuid.Nil {
		t.Error("expected a notification id")
	}
	if resp.Reference != "order-42" {
		t.Errorf("reference: got %q", resp.Reference)
	}

	n, ok, err := q.Dequeue(context.Background())
	if err != nil || !ok {
		t.Fatalf("Dequeue: ok=%v err=%v", ok, err)
	}
	if n.Type != model.NotificationSMS {
		t.Errorf("type: got %q, want sms", n.Type)
	}
	if n.ServiceID != principal.ServiceID || n.APIKeyID != principal.APIKeyID {
		t.Errorf("provenance: got service=%v key=%v", n.ServiceID, n.APIKeyID)
	}
}

func TestCreatePush(t *testing.T) {
	q := queue.NewMemory(4)
	t.Cleanup(func() { q.Close() })
	h := NewNotificationHandler(q)

	body, _ := json.Marshal(map[string]interface{}{"template_id": uuid.NewString()})
	rr := httptest.NewRecorder()
	h.CreatePush(rr, authedRequest("POST", "/v2/notifications/push", body, servicePrincipal()))

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201 (body %s)", rr.Code, rr.Body.String())
	}
	n, _, _ := q.Dequeue(context.Background())
	if n.Type != model.NotificationPush {
		t.Errorf("type: got %q, want push", n.Type)
	}
}

func TestCreateGenericEndpoint(t *testing.T) {
	q := queue.NewMemory(4)
	t.Cleanup(func() { q.Close() })
	h := NewNotificationHandler(q)

	body, _ := json.Marshal(map[string]interface{}{
		"notification_type": "sms",
		"template_id":       uuid.NewString(),
		"phone_number":      "+15551234567",
	})
	rr := httptest.NewRecorder()
	h.Create(rr, authedRequest("POST", "/v2/notifications", body, servicePrincipal()))
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201 (body %s)", rr.Code, rr.Body.String())
	}
	n, _, _ := q.Dequeue(context.Background())
	if n.Type != model.NotificationSMS {
		t.Errorf("type: got %q, want sms", n.Type)
	}

	body, _ = json.Marshal(map[string]interface{}{
		"notification_type": "fax",
		"template_id":       uuid.NewString(),
	})
	rr = httptest.NewRecorder()
	h.Create(rr, authedRequest("POST", "/v2/notifications", body, servicePrincipal()))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown type: got %d, want 400", rr.Code)
	}
}

func TestCreateSMSValidation(t *testing.T) {
	q := queue.NewMemory(4)
	t.Cleanup(func() { q.Close() })
	h := NewNotificationHandler(q)

	cases := []struct {
		name string
		body map[string]interface{}
	}{
		{"bad template id", map[string]interface{}{"template_id": "nope", "phone_number": "+15551234567"}},
		{"missing phone number", map[string]interface{}{"template_id": uuid.NewString()}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, _ := json.Marshal(tc.body)
			rr := httptest.NewRecorder()
			h.CreateSMS(rr, authedRequest("POST", "/v2/notifications/sms", body, servicePrincipal()))
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want 400", rr.Code)
			}
			if q.Len() != 0 {
				t.Error("invalid request must not enqueue")
			}
		})
	}
}

func TestCreateSMSQueueFull(t *testing.T) {
	q := queue.NewMemory(1)
	t.Cleanup(func() { q.Close() })
	h := NewNotificationHandler(q)

	body, _ := json.Marshal(map[string]interface{}{
		"template_id":  uuid.NewString(),
		"phone_number": "+15551234567",
	})
	rr := httptest.NewRecorder()
	h.CreateSMS(rr, authedRequest("POST", "/v2/notifications/sms", body, servicePrincipal()))
	if rr.Code != http.StatusCreated {
		t.Fatalf("first request: got %d, want 201", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.CreateSMS(rr, authedRequest("POST", "/v2/notifications/sms", body, servicePrincipal()))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("full queue: got %d, want 503", rr.Code)
	}
}

// ---------------------------------------------------------------------------
// System handler tests
// ---------------------------------------------------------------------------

func newTestSystemHandler(t *testing.T) (*SystemHandler, *credstore.SQLiteStore) {
	t.Helper()
	store, err := credstore.NewSQLiteStore("")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewSystemHandler(store, store, nil, "test"), store
}

// routed binds the handler's admin endpoints to a chi router so URL
// parameters resolve.
func routed(h *SystemHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", h.Health)
	r.Get("/readyz", h.Ready)
	r.Get("/v2/admin/services", h.ListServices)
	r.Post("/v2/admin/services", h.CreateService)
	r.Get("/v2/admin/services/{serviceID}", h.GetService)
	r.Get("/v2/admin/services/{serviceID}/api-keys", h.ListAPIKeys)
	r.Post("/v2/admin/services/{serviceID}/api-keys", h.CreateAPIKey)
	r.Delete("/v2/admin/api-keys/{keyID}", h.RevokeAPIKey)
	return r
}

func TestHealth(t *testing.T) {
	h, _ := newTestSystemHandler(t)
	rr := httptest.NewRecorder()
	routed(h).ServeHTTP(rr, httptest.NewRequest("GET", "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
}

func TestReady(t *testing.T) {
	h, _ := newTestSystemHandler(t)
	rr := httptest.NewRecorder()
	routed(h).ServeHTTP(rr, httptest.NewRequest("GET", "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
}

func TestServiceAndKeyLifecycle(t *testing.T) {
	h, store := newTestSystemHandler(t)
	router := routed(h)

	// Create a service.
	body, _ := json.Marshal(map[string]interface{}{"name": "orders", "rate_limit": 100})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("POST", "/v2/admin/services", bytes.NewReader(body)))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create service: got %d (body %s)", rr.Code, rr.Body.String())
	}
	var svc model.Service
	if err := json.NewDecoder(rr.Body).Decode(&svc); err != nil {
		t.Fatalf("decode service: %v", err)
	}

	// Issue a key; the plaintext secret must round-trip through the
	// wrapped form stored for the resolver.
	body, _ = json.Marshal(map[string]interface{}{"name": "default"})
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("POST", "/v2/admin/services/"+svc.ID.String()+"/api-keys", bytes.NewReader(body)))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create key: got %d (body %s)", rr.Code, rr.Body.String())
	}
	var keyResp createAPIKeyResponse
	if err := json.NewDecoder(rr.Body).Decode(&keyResp); err != nil {
		t.Fatalf("decode key: %v", err)
	}
	if keyResp.Secret == "" {
		t.Fatal("expected plaintext secret in create response")
	}

	keys, err := store.GetAPIKeys(context.Background(), svc.ID)
	if err != nil || len(keys) != 1 {
		t.Fatalf("GetAPIKeys: keys=%d err=%v", len(keys), err)
	}
	if secret, ok := token.UnwrapSecret(keys[0].SecretEncoded); !ok || secret != keyResp.Secret {
		t.Errorf("stored secret does not unwrap to the issued plaintext")
	}

	// The listing must not leak the secret.
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/v2/admin/services/"+svc.ID.String()+"/api-keys", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("list keys: got %d", rr.Code)
	}
	if bytes.Contains(rr.Body.Bytes(), []byte(keyResp.Secret)) {
		t.Error("key listing leaked the plaintext secret")
	}

	// Revoke and verify.
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("DELETE", "/v2/admin/api-keys/"+keyResp.ID.String(), nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("revoke: got %d", rr.Code)
	}
	keys, _ = store.GetAPIKeys(context.Background(), svc.ID)
	if len(keys) != 1 || !keys[0].Revoked {
		t.Error("key not marked revoked after delete")
	}
}

func TestGetServiceNotFound(t *testing.T) {
	h, _ := newTestSystemHandler(t)
	rr := httptest.NewRecorder()
	routed(h).ServeHTTP(rr, httptest.NewRequest("GET", "/v2/admin/services/"+uuid.NewString(), nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rr.Code)
	}
}

func TestManagementRequiresWritableStore(t *testing.T) {
	store, err := credstore.NewSQLiteStore("")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	// Read-only wiring: no AdminStore behind the handler.
	h := NewSystemHandler(store, nil, nil, "test")
	body, _ := json.Marshal(map[string]interface{}{"name": "orders"})
	rr := httptest.NewRecorder()
	routed(h).ServeHTTP(rr, httptest.NewRequest("POST", "/v2/admin/services", bytes.NewReader(body)))
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("status: got %d, want 501", rr.Code)
	}
}
