package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pigeonhq/pigeon/internal/model"
	"github.com/pigeonhq/pigeon/internal/queue"
	"github.com/pigeonhq/pigeon/internal/server/middleware"
)

// NotificationHandler accepts notification requests on behalf of
// authenticated services and hands them to the delivery queue.
type NotificationHandler struct {
	queue queue.Queue
	now   func() time.Time
}

// NewNotificationHandler creates a NotificationHandler over the given queue.
func NewNotificationHandler(q queue.Queue) *NotificationHandler {
	return &NotificationHandler{queue: q, now: time.Now}
}

// notificationRequest is the expected payload for both channels. Type is
// only read on the generic endpoint; the /sms and /push routes fix it.
type notificationRequest struct {
	Type            string            `json:"notification_type,omitempty"`
	TemplateID      string            `json:"template_id"`
	PhoneNumber     string            `json:"phone_number,omitempty"`
	Personalisation map[string]string `json:"personalisation,omitempty"`
	Reference       string            `json:"reference,omitempty"`
}

// notificationResponse echoes the accepted notification's identity.
type notificationResponse struct {
	ID         uuid.UUID `json:"id"`
	Reference  string    `json:"reference,omitempty"`
	TemplateID uuid.UUID `json:"template_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Create accepts a notification whose channel is named in the body.
// POST /v2/notifications
func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req notificationRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	typ := model.NotificationType(req.Type)
	if typ != model.NotificationSMS && typ != model.NotificationPush {
		writeError(w, http.StatusBadRequest, "notification_type must be sms or push")
		return
	}
	h.accept(w, r, typ, req)
}

// CreateSMS accepts an SMS notification.
// POST /v2/notifications/sms
func (h *NotificationHandler) CreateSMS(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, model.NotificationSMS)
}

// CreatePush accepts a push notification.
// POST /v2/notifications/push
func (h *NotificationHandler) CreatePush(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, model.NotificationPush)
}

func (h *NotificationHandler) create(w http.ResponseWriter, r *http.Request, typ model.NotificationType) {
	var req notificationRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	h.accept(w, r, typ, req)
}

func (h *NotificationHandler) accept(w http.ResponseWriter, r *http.Request, typ model.NotificationType, req notificationRequest) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, http.StatusForbidden, "Not authenticated")
		return
	}

	templateID, err := uuid.Parse(req.TemplateID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "template_id is not a valid UUID")
		return
	}
	if typ == model.NotificationSMS && req.PhoneNumber == "" {
		writeError(w, http.StatusBadRequest, "phone_number is required")
		return
	}

	n := model.Notification{
		ID:              uuid.Must(uuid.NewV7()),
		Type:            typ,
		ServiceID:       principal.ServiceID,
		APIKeyID:        principal.APIKeyID,
		TemplateID:      templateID,
		Recipient:       req.PhoneNumber,
		Personalisation: req.Personalisation,
		Reference:       req.Reference,
		CreatedAt:       h.now().UTC(),
	}

	if err := h.queue.Enqueue(r.Context(), n); err != nil {
		if errors.Is(err, queue.ErrQueueFull) || errors.Is(err, queue.ErrClosed) {
			writeError(w, http.StatusServiceUnavailable, "Notification queue unavailable")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to accept notification")
		return
	}

	writeJSON(w, http.StatusCreated, notificationResponse{
		ID:         n.ID,
		Reference:  n.Reference,
		TemplateID: n.TemplateID,
		CreatedAt:  n.CreatedAt,
	})
}
