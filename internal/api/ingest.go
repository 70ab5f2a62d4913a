package api

import (
	"io"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/WYOhellboy/WebhookHub/internal/dispatch"
)

// ReceiveWebhook handles POST /webhook/{slug}: the ingest endpoint every
// webhook producer points at. The slug names the channel; query parameters
// title/message/priority override the normalized fields.
func (h *Handler) ReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Failed to read body", err.Error())
		return
	}

	q := r.URL.Query()
	res, err := h.dispatcher.Dispatch(r.Context(), dispatch.Request{
		Slug:        slug,
		SourceIP:    clientIP(r),
		ContentType: r.Header.Get("Content-Type"),
		Body:        body,
		Headers:     headerSnapshot(r.Header),
		Overrides: dispatch.Overrides{
			Title:    q.Get("title"),
			Message:  q.Get("message"),
			Priority: q.Get("priority"),
		},
	})
	if err != nil {
		h.logger.Error("failed to process webhook",
			zap.Error(err),
			zap.String("channel", slug),
		)
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to process webhook", "")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"id":            res.ID,
		"pushover_sent": res.PushoverSent,
	})
}

// clientIP strips the port from RemoteAddr. The RealIP middleware has
// already substituted the forwarded address when one was present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// headerSnapshot flattens headers to first values for the stored record.
func headerSnapshot(header http.Header) map[string]string {
	snapshot := make(map[string]string, len(header))
	for key, values := range header {
		if len(values) > 0 {
			snapshot[key] = values[0]
		}
	}
	return snapshot
}
