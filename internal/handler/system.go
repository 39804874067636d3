package handler

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pigeonhq/pigeon/internal/counter"
	"github.com/pigeonhq/pigeon/internal/credstore"
	"github.com/pigeonhq/pigeon/internal/model"
	"github.com/pigeonhq/pigeon/internal/token"
)

// SystemHandler serves health probes and the admin management surface:
// services and their API keys in the development credential store.
type SystemHandler struct {
	creds    credstore.Store
	admin    credstore.AdminStore // nil when the backing store is read-only
	counters counter.Store
	version  string
}

// NewSystemHandler creates a SystemHandler. admin may be nil; the
// management endpoints then respond 501.
func NewSystemHandler(creds credstore.Store, admin credstore.AdminStore, counters counter.Store, version string) *SystemHandler {
	return &SystemHandler{
		creds:    creds,
		admin:    admin,
		counters: counters,
		version:  version,
	}
}

// ---------------------------------------------------------------------------
// Probes
// ---------------------------------------------------------------------------

// Health reports process liveness.
// GET /healthz
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": h.version,
	})
}

// Ready reports whether the gateway's dependencies answer. The counter
// store is advisory: admission fails open without it, so a Redis outage
// degrades the probe but does not fail it.
// GET /readyz
func (h *SystemHandler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	status := http.StatusOK

	if err := h.creds.Ping(r.Context()); err != nil {
		checks["credentials"] = "unreachable"
		status = http.StatusServiceUnavailable
	} else {
		checks["credentials"] = "ok"
	}

	if h.counters != nil {
		if err := h.counters.Ping(r.Context()); err != nil {
			checks["counters"] = "degraded"
		} else {
			checks["counters"] = "ok"
		}
	}

	writeJSON(w, status, map[string]interface{}{
		"status": checks,
	})
}

// ---------------------------------------------------------------------------
// Service management
// ---------------------------------------------------------------------------

// ListServices returns every service in the credential store.
// GET /v2/admin/services
func (h *SystemHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	if h.admin == nil {
		writeError(w, http.StatusNotImplemented, "Credential store is read-only")
		return
	}
	services, err := h.admin.ListServices(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list services")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"services": services})
}

// createServiceRequest is the expected payload for CreateService.
type createServiceRequest struct {
	Name         string `json:"name"`
	MessageLimit int    `json:"message_limit"`
	RateLimit    int    `json:"rate_limit"`
	Restricted   bool   `json:"restricted"`
}

// CreateService registers a new service.
// POST /v2/admin/services
func (h *SystemHandler) CreateService(w http.ResponseWriter, r *http.Request) {
	if h.admin == nil {
		writeError(w, http.StatusNotImplemented, "Credential store is read-only")
		return
	}
	var req createServiceRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Service name is required")
		return
	}

	svc := model.Service{
		ID:           uuid.Must(uuid.NewV7()),
		Name:         req.Name,
		Active:       true,
		MessageLimit: req.MessageLimit,
		RateLimit:    req.RateLimit,
		Restricted:   req.Restricted,
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.admin.CreateService(r.Context(), &svc); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create service")
		return
	}
	writeJSON(w, http.StatusCreated, svc)
}

// GetService returns one service by id.
// GET /v2/admin/services/{serviceID}
func (h *SystemHandler) GetService(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "serviceID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid service id")
		return
	}
	svc, err := h.creds.GetService(r.Context(), id)
	if err != nil {
		if errors.Is(err, credstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Service not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get service")
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

// ---------------------------------------------------------------------------
// API key management
// ---------------------------------------------------------------------------

// ListAPIKeys returns a service's keys with their secrets redacted.
// GET /v2/admin/services/{serviceID}/api-keys
func (h *SystemHandler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "serviceID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid service id")
		return
	}
	keys, err := h.creds.GetAPIKeys(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list API keys")
		return
	}

	resources := make([]map[string]interface{}, 0, len(keys))
	for i := range keys {
		resources = append(resources, apiKeyToMap(&keys[i]))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"api_keys": resources})
}

// createAPIKeyRequest is the expected payload for CreateAPIKey.
type createAPIKeyRequest struct {
	Name       string     `json:"name"`
	ExpiryDate *time.Time `json:"expiry_date,omitempty"`
}

// createAPIKeyResponse includes the plaintext secret (shown once only).
type createAPIKeyResponse struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	Secret     string     `json:"secret"` // Plaintext, shown ONCE.
	ExpiryDate *time.Time `json:"expiry_date,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// CreateAPIKey generates a fresh secret for a service, stores it in the
// wrapped form the resolver expects, and returns the plaintext exactly once.
// POST /v2/admin/services/{serviceID}/api-keys
func (h *SystemHandler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	if h.admin == nil {
		writeError(w, http.StatusNotImplemented, "Credential store is read-only")
		return
	}
	serviceID, err := uuid.Parse(chi.URLParam(r, "serviceID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid service id")
		return
	}
	if _, err := h.creds.GetService(r.Context(), serviceID); err != nil {
		if errors.Is(err, credstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Service not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get service")
		return
	}

	var req createAPIKeyRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate secret")
		return
	}
	plaintext := base64.RawURLEncoding.EncodeToString(raw)

	key := model.APIKey{
		ID:            uuid.Must(uuid.NewV7()),
		ServiceID:     serviceID,
		Name:          req.Name,
		SecretEncoded: token.WrapSecret(plaintext),
		KeyType:       model.KeyTypeNormal,
		ExpiryDate:    req.ExpiryDate,
		CreatedAt:     time.Now().UTC(),
	}
	if err := h.admin.CreateAPIKey(r.Context(), &key); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save API key")
		return
	}

	// The plaintext secret is never stored and never shown again.
	writeJSON(w, http.StatusCreated, createAPIKeyResponse{
		ID:         key.ID,
		Name:       key.Name,
		Secret:     plaintext,
		ExpiryDate: key.ExpiryDate,
		CreatedAt:  key.CreatedAt,
	})
}

// RevokeAPIKey marks a key revoked. Revoked keys stay on record so token
// resolution can distinguish a revoked credential from an unknown one.
// DELETE /v2/admin/api-keys/{keyID}
func (h *SystemHandler) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	if h.admin == nil {
		writeError(w, http.StatusNotImplemented, "Credential store is read-only")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "keyID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid key id")
		return
	}
	if err := h.admin.RevokeAPIKey(r.Context(), id); err != nil {
		if errors.Is(err, credstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "API key not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to revoke API key")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "API key revoked",
	})
}

// apiKeyToMap serializes a key without its secret.
func apiKeyToMap(key *model.APIKey) map[string]interface{} {
	m := map[string]interface{}{
		"id":         key.ID,
		"service_id": key.ServiceID,
		"name":       key.Name,
		"key_type":   key.KeyType,
		"revoked":    key.Revoked,
		"created_at": key.CreatedAt,
	}
	if key.ExpiryDate != nil {
		m["expiry_date"] = key.ExpiryDate
	}
	return m
}
