// Package dispatch is the ingest pipeline: it resolves the channel,
// normalizes the payload, persists the record, and drives delivery to the
// configured destinations.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/WYOhellboy/WebhookHub/internal/db"
	"github.com/WYOhellboy/WebhookHub/internal/metrics"
	"github.com/WYOhellboy/WebhookHub/internal/normalize"
	"github.com/WYOhellboy/WebhookHub/internal/notify"
	"github.com/WYOhellboy/WebhookHub/internal/priority"
)

// Repository is the persistence surface the pipeline needs.
type Repository interface {
	EnsureChannel(ctx context.Context, slug string) (*db.Channel, error)
	CreateWebhook(ctx context.Context, w *db.Webhook) error
	MarkPushoverSent(ctx context.Context, id int64, sent bool) error
}

// Overrides are caller-supplied replacements for normalized fields, taken
// from query parameters. Empty fields leave the normalized value in place.
// Values are applied verbatim; an unknown priority string is stored as-is
// and maps to Pushover priority 0 at delivery time.
type Overrides struct {
	Title    string
	Message  string
	Priority string
}

// Request is one incoming webhook as seen by the pipeline.
type Request struct {
	Slug        string
	SourceIP    string
	ContentType string
	Body        []byte
	Headers     map[string]string
	Overrides   Overrides
}

// Result reports what the pipeline did with a webhook.
type Result struct {
	ID           int64
	PushoverSent bool
}

// Dispatcher runs the ingest pipeline. The primary destination (Pushover)
// is delivered synchronously and its outcome recorded on the webhook row;
// secondaries are fire-and-forget.
type Dispatcher struct {
	repo        Repository
	registry    *normalize.Registry
	primary     notify.Notifier
	secondaries []notify.Notifier
	logger      *zap.Logger
}

// New creates a dispatcher.
func New(repo Repository, registry *normalize.Registry, primary notify.Notifier, secondaries []notify.Notifier, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		repo:        repo,
		registry:    registry,
		primary:     primary,
		secondaries: secondaries,
		logger:      logger,
	}
}

// Dispatch processes one webhook: channel resolution, payload extraction,
// normalization, persistence, then delivery. The record is persisted before
// any delivery is attempted so an unreachable destination never loses a
// webhook.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*Result, error) {
	channel, err := d.repo.EnsureChannel(ctx, req.Slug)
	if err != nil {
		return nil, fmt.Errorf("resolve channel: %w", err)
	}

	data, forceGeneric := extractPayload(req.ContentType, req.Body)

	var n normalize.Normalized
	if forceGeneric {
		n = d.registry.Generic().Normalize(data)
	} else {
		n = d.registry.Normalize(req.Slug, data)
	}

	if req.Overrides.Title != "" {
		n.Title = req.Overrides.Title
	}
	if req.Overrides.Message != "" {
		n.Message = req.Overrides.Message
	}
	if req.Overrides.Priority != "" {
		n.Priority = req.Overrides.Priority
	}

	headers := req.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	rawHeaders, err := json.Marshal(headers)
	if err != nil {
		return nil, fmt.Errorf("encode headers: %w", err)
	}
	parsedData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode parsed payload: %w", err)
	}

	record := &db.Webhook{
		ChannelSlug: channel.Slug,
		Title:       n.Title,
		Message:     n.Message,
		Priority:    n.Priority,
		SourceIP:    req.SourceIP,
		RawHeaders:  rawHeaders,
		RawBody:     string(req.Body),
		ParsedData:  parsedData,
	}
	if err := d.repo.CreateWebhook(ctx, record); err != nil {
		return nil, fmt.Errorf("persist webhook: %w", err)
	}
	metrics.RecordWebhookReceived(channel.Slug)

	d.logger.Info("webhook received",
		zap.Int64("webhook_id", record.ID),
		zap.String("channel", channel.Slug),
		zap.String("priority", n.Priority),
		zap.String("source_ip", req.SourceIP),
	)

	delivery := notify.Delivery{
		Title:            n.Title,
		Message:          n.Message,
		Priority:         n.Priority,
		PushoverPriority: priority.PushoverValue(n.Priority, channel.PushoverPriority),
		Channel: notify.ChannelInfo{
			Slug:  channel.Slug,
			Name:  channel.Name,
			Sound: channel.PushoverSound,
		},
	}

	pushoverSent := false
	if channel.PushoverEnabled && d.primary.Configured() {
		start := time.Now()
		pushoverSent = d.primary.Send(ctx, delivery)
		metrics.RecordDelivery(d.primary.Name(), pushoverSent, time.Since(start))

		if err := d.repo.MarkPushoverSent(ctx, record.ID, pushoverSent); err != nil {
			return nil, fmt.Errorf("record delivery outcome: %w", err)
		}
	}

	d.fanOut(delivery)

	return &Result{ID: record.ID, PushoverSent: pushoverSent}, nil
}

// SendTest delivers a synthetic notification through the same destinations
// as a real webhook and records it like one. Empty arguments fall back to
// the dashboard defaults. Test notifications always go out at normal
// priority.
func (d *Dispatcher) SendTest(ctx context.Context, slug, title, message string) (*Result, error) {
	if slug == "" {
		slug = "general"
	}
	if title == "" {
		title = "Test Notification"
	}
	if message == "" {
		message = "This is a test from WebhookHub!"
	}

	channel, err := d.repo.EnsureChannel(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("resolve channel: %w", err)
	}

	delivery := notify.Delivery{
		Title:            title,
		Message:          message,
		Priority:         priority.Normal,
		PushoverPriority: 0,
		Channel: notify.ChannelInfo{
			Slug:  channel.Slug,
			Name:  channel.Name,
			Sound: channel.PushoverSound,
		},
	}

	pushoverSent := false
	if channel.PushoverEnabled && d.primary.Configured() {
		start := time.Now()
		pushoverSent = d.primary.Send(ctx, delivery)
		metrics.RecordDelivery(d.primary.Name(), pushoverSent, time.Since(start))
	}

	record := &db.Webhook{
		ChannelSlug:  channel.Slug,
		Title:        title,
		Message:      message,
		Priority:     priority.Normal,
		SourceIP:     "dashboard",
		RawHeaders:   json.RawMessage(`{}`),
		RawBody:      "{}",
		ParsedData:   json.RawMessage(`{}`),
		PushoverSent: pushoverSent,
	}
	if err := d.repo.CreateWebhook(ctx, record); err != nil {
		return nil, fmt.Errorf("persist webhook: %w", err)
	}
	metrics.RecordWebhookReceived(channel.Slug)

	d.fanOut(delivery)

	return &Result{ID: record.ID, PushoverSent: pushoverSent}, nil
}

// fanOut hands the delivery to every configured secondary destination on
// its own goroutine. Outcomes are logged and counted but never affect the
// caller; a detached context keeps request cancellation from cutting a
// delivery short.
func (d *Dispatcher) fanOut(delivery notify.Delivery) {
	for _, n := range d.secondaries {
		if !n.Configured() {
			continue
		}

		go func(n notify.Notifier) {
			start := time.Now()
			ok := n.Send(context.Background(), delivery)
			metrics.RecordDelivery(n.Name(), ok, time.Since(start))

			if !ok {
				d.logger.Warn("secondary delivery failed",
					zap.String("destination", n.Name()),
					zap.String("channel", delivery.Channel.Slug),
				)
			}
		}(n)
	}
}
