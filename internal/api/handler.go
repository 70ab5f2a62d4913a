// Package api contains the HTTP surface: the webhook ingest endpoint, the
// management API behind the dashboard, and the middleware both share.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/WYOhellboy/WebhookHub/internal/db"
	"github.com/WYOhellboy/WebhookHub/internal/dispatch"
	"github.com/WYOhellboy/WebhookHub/internal/notify"
)

// Repository defines the persistence operations the handlers need.
type Repository interface {
	GetChannel(ctx context.Context, slug string) (*db.Channel, error)
	CreateChannel(ctx context.Context, ch *db.Channel) error
	ListChannels(ctx context.Context) ([]*db.ChannelStats, error)
	UpdateChannel(ctx context.Context, ch *db.Channel) error
	DeleteChannel(ctx context.Context, slug string) error

	GetWebhook(ctx context.Context, id int64) (*db.Webhook, error)
	ListWebhooks(ctx context.Context, f db.WebhookFilter) ([]*db.Webhook, int64, error)
	DeleteWebhook(ctx context.Context, id int64) error
	ClearWebhooks(ctx context.Context, channel string, olderThan *time.Time) (int64, error)

	Stats(ctx context.Context) (*db.Stats, error)
	GetSettings(ctx context.Context) (map[string]string, error)
	UpdateSettings(ctx context.Context, values map[string]string) error
}

// Dispatcher runs the ingest pipeline for incoming and test notifications.
type Dispatcher interface {
	Dispatch(ctx context.Context, req dispatch.Request) (*dispatch.Result, error)
	SendTest(ctx context.Context, slug, title, message string) (*dispatch.Result, error)
}

// ErrorResponse represents an error in problem+json format
type ErrorResponse struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Handler holds dependencies for API handlers
type Handler struct {
	logger     *zap.Logger
	repo       Repository
	dispatcher Dispatcher
	notifiers  []notify.Notifier
}

// NewHandler creates a new API handler. notifiers is the full destination
// set (primary first) used by the configuration status endpoint.
func NewHandler(logger *zap.Logger, repo Repository, dispatcher Dispatcher, notifiers []notify.Notifier) *Handler {
	return &Handler{
		logger:     logger,
		repo:       repo,
		dispatcher: dispatcher,
		notifiers:  notifiers,
	}
}

// ChannelRequest is the create/update request body. Pointer fields
// distinguish "absent" from zero values so updates can be partial and
// creates can default sensibly.
type ChannelRequest struct {
	Slug             string  `json:"slug"`
	Name             string  `json:"name"`
	Description      *string `json:"description"`
	Icon             *string `json:"icon"`
	Color            *string `json:"color"`
	PushoverEnabled  *bool   `json:"pushover_enabled"`
	PushoverPriority *int    `json:"pushover_priority"`
	PushoverSound    *string `json:"pushover_sound"`
}

// ListChannels handles GET /api/channels
func (h *Handler) ListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.repo.ListChannels(r.Context())
	if err != nil {
		h.logger.Error("failed to list channels", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to list channels", "")
		return
	}

	if channels == nil {
		channels = []*db.ChannelStats{}
	}

	h.writeJSON(w, http.StatusOK, channels)
}

// CreateChannel handles POST /api/channels
func (h *Handler) CreateChannel(w http.ResponseWriter, r *http.Request) {
	var req ChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	slug := normalizeSlug(req.Slug)
	if slug == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing slug", "slug is required")
		return
	}

	name := req.Name
	if name == "" {
		name = db.DisplayName(slug)
	}

	ch := &db.Channel{
		Slug:             slug,
		Name:             name,
		Icon:             "📡",
		Color:            "#6366f1",
		PushoverEnabled:  true,
		PushoverPriority: 0,
		PushoverSound:    "pushover",
	}
	if req.Description != nil {
		ch.Description = *req.Description
	}
	if req.Icon != nil {
		ch.Icon = *req.Icon
	}
	if req.Color != nil {
		ch.Color = *req.Color
	}
	if req.PushoverEnabled != nil {
		ch.PushoverEnabled = *req.PushoverEnabled
	}
	if req.PushoverPriority != nil {
		ch.PushoverPriority = *req.PushoverPriority
	}
	if req.PushoverSound != nil {
		ch.PushoverSound = *req.PushoverSound
	}

	if err := h.repo.CreateChannel(r.Context(), ch); err != nil {
		if errors.Is(err, db.ErrChannelExists) {
			h.writeError(w, http.StatusConflict, "channel_exists", "Channel already exists", "")
			return
		}
		h.logger.Error("failed to create channel", zap.Error(err), zap.String("slug", slug))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to create channel", "")
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]string{
		"status": "created",
		"slug":   slug,
	})
}

// UpdateChannel handles PUT /api/channels/{slug}
func (h *Handler) UpdateChannel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slug := chi.URLParam(r, "slug")

	var req ChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	ch, err := h.repo.GetChannel(ctx, slug)
	if err != nil {
		if errors.Is(err, db.ErrChannelNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "Channel not found", "")
			return
		}
		h.logger.Error("failed to load channel", zap.Error(err), zap.String("slug", slug))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to load channel", "")
		return
	}

	// Absent fields keep their stored values.
	if req.Name != "" {
		ch.Name = req.Name
	}
	if req.Description != nil {
		ch.Description = *req.Description
	}
	if req.Icon != nil {
		ch.Icon = *req.Icon
	}
	if req.Color != nil {
		ch.Color = *req.Color
	}
	if req.PushoverEnabled != nil {
		ch.PushoverEnabled = *req.PushoverEnabled
	}
	if req.PushoverPriority != nil {
		ch.PushoverPriority = *req.PushoverPriority
	}
	if req.PushoverSound != nil {
		ch.PushoverSound = *req.PushoverSound
	}

	if err := h.repo.UpdateChannel(ctx, ch); err != nil {
		if errors.Is(err, db.ErrChannelNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "Channel not found", "")
			return
		}
		h.logger.Error("failed to update channel", zap.Error(err), zap.String("slug", slug))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to update channel", "")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// DeleteChannel handles DELETE /api/channels/{slug}. Deleting is idempotent:
// an unknown slug still reports deleted.
func (h *Handler) DeleteChannel(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	if err := h.repo.DeleteChannel(r.Context(), slug); err != nil {
		h.logger.Error("failed to delete channel", zap.Error(err), zap.String("slug", slug))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to delete channel", "")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ListWebhooks handles GET /api/webhooks?channel=&priority=&search=&limit=&offset=
func (h *Handler) ListWebhooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := db.WebhookFilter{
		Channel:  q.Get("channel"),
		Priority: q.Get("priority"),
		Search:   q.Get("search"),
		Limit:    50,
		Offset:   0,
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			filter.Limit = min(l, 500)
		}
	}
	if offsetStr := q.Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			filter.Offset = o
		}
	}

	webhooks, total, err := h.repo.ListWebhooks(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list webhooks", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to list webhooks", "")
		return
	}

	if webhooks == nil {
		webhooks = []*db.Webhook{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":    total,
		"limit":    filter.Limit,
		"offset":   filter.Offset,
		"webhooks": webhooks,
	})
}

// GetWebhook handles GET /api/webhooks/{id}
func (h *Handler) GetWebhook(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid webhook ID", "ID must be an integer")
		return
	}

	webhook, err := h.repo.GetWebhook(r.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrWebhookNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "Webhook not found", "")
			return
		}
		h.logger.Error("failed to get webhook", zap.Error(err), zap.Int64("webhook_id", id))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to get webhook", "")
		return
	}

	h.writeJSON(w, http.StatusOK, webhook)
}

// DeleteWebhook handles DELETE /api/webhooks/{id}. Idempotent.
func (h *Handler) DeleteWebhook(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid webhook ID", "ID must be an integer")
		return
	}

	if err := h.repo.DeleteWebhook(r.Context(), id); err != nil {
		h.logger.Error("failed to delete webhook", zap.Error(err), zap.Int64("webhook_id", id))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to delete webhook", "")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ClearWebhooks handles DELETE /api/webhooks?channel=&older_than=
func (h *Handler) ClearWebhooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var olderThan *time.Time
	if raw := q.Get("older_than"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid older_than", "older_than must be an RFC 3339 timestamp")
			return
		}
		olderThan = &t
	}

	deleted, err := h.repo.ClearWebhooks(r.Context(), q.Get("channel"), olderThan)
	if err != nil {
		h.logger.Error("failed to clear webhooks", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to clear webhooks", "")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "cleared",
		"deleted": deleted,
	})
}

// GetStats handles GET /api/stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.Stats(r.Context())
	if err != nil {
		h.logger.Error("failed to load stats", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to load stats", "")
		return
	}

	h.writeJSON(w, http.StatusOK, stats)
}

// GetSettings handles GET /api/settings
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.repo.GetSettings(r.Context())
	if err != nil {
		h.logger.Error("failed to load settings", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to load settings", "")
		return
	}

	h.writeJSON(w, http.StatusOK, settings)
}

// UpdateSettings handles POST /api/settings. Unknown keys are ignored;
// non-string values are stored stringified.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	values := make(map[string]string, len(req))
	for key, value := range req {
		values[key] = fmt.Sprint(value)
	}

	if err := h.repo.UpdateSettings(r.Context(), values); err != nil {
		h.logger.Error("failed to save settings", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to save settings", "")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// NotificationStatus handles GET /api/notification-status: which
// destinations have a full credential set.
func (h *Handler) NotificationStatus(w http.ResponseWriter, r *http.Request) {
	status := make(map[string]bool, len(h.notifiers))
	for _, n := range h.notifiers {
		status[n.Name()] = n.Configured()
	}

	h.writeJSON(w, http.StatusOK, status)
}

// TestRequest is the POST /api/test body. All fields are optional.
type TestRequest struct {
	Channel string `json:"channel"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// TestNotification handles POST /api/test: a synthetic delivery through the
// real pipeline, recorded like any webhook.
func (h *Handler) TestNotification(w http.ResponseWriter, r *http.Request) {
	var req TestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	res, err := h.dispatcher.SendTest(r.Context(), req.Channel, req.Title, req.Message)
	if err != nil {
		h.logger.Error("failed to send test notification", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to send test notification", "")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "sent",
		"pushover_sent": res.PushoverSent,
	})
}

// normalizeSlug maps user input to the URL-safe channel identifier.
func normalizeSlug(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "-")
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, errType, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Type:   errType,
		Title:  title,
		Status: status,
		Detail: detail,
	})
}
