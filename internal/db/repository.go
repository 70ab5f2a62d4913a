package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Sentinel errors handlers branch on.
var (
	ErrChannelNotFound = errors.New("channel not found")
	ErrChannelExists   = errors.New("channel already exists")
	ErrWebhookNotFound = errors.New("webhook not found")
)

// Repository handles database operations for channels and webhook records
type Repository struct {
	db     *DB
	logger *zap.Logger
}

// NewRepository creates a new repository
func NewRepository(db *DB, logger *zap.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const channelColumns = `
	id, slug, name, description, icon, color,
	pushover_enabled, pushover_priority, pushover_sound,
	created_at, updated_at
`

// EnsureChannel resolves a slug to its channel, auto-creating it with
// derived defaults on first use. The insert is advisory: under a concurrent
// first use the conflict is ignored and the unconditional re-read converges
// both callers on the same row.
func (r *Repository) EnsureChannel(ctx context.Context, slug string) (*Channel, error) {
	name := DisplayName(slug)
	description := fmt.Sprintf("Auto-created channel: %s", slug)

	query := `
		INSERT INTO channels (slug, name, description)
		VALUES ($1, $2, $3)
		ON CONFLICT (slug) DO NOTHING
	`

	tag, err := r.db.Pool().Exec(ctx, query, slug, name, description)
	if err != nil {
		return nil, fmt.Errorf("ensure channel: %w", err)
	}

	if tag.RowsAffected() > 0 {
		r.logger.Info("channel auto-created",
			zap.String("slug", slug),
			zap.String("name", name),
		)
	}

	return r.GetChannel(ctx, slug)
}

// GetChannel retrieves a channel by slug
func (r *Repository) GetChannel(ctx context.Context, slug string) (*Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels WHERE slug = $1`

	var ch Channel
	err := r.db.Pool().QueryRow(ctx, query, slug).Scan(
		&ch.ID,
		&ch.Slug,
		&ch.Name,
		&ch.Description,
		&ch.Icon,
		&ch.Color,
		&ch.PushoverEnabled,
		&ch.PushoverPriority,
		&ch.PushoverSound,
		&ch.CreatedAt,
		&ch.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, ErrChannelNotFound
	}

	if err != nil {
		r.logger.Error("failed to get channel",
			zap.Error(err),
			zap.String("slug", slug),
		)
		return nil, fmt.Errorf("query channel: %w", err)
	}

	return &ch, nil
}

// CreateChannel inserts an explicitly configured channel. An empty name
// defaults to the title-cased slug.
func (r *Repository) CreateChannel(ctx context.Context, ch *Channel) error {
	if ch.Name == "" {
		ch.Name = titleCase(ch.Slug)
	}

	query := `
		INSERT INTO channels (
			slug, name, description, icon, color,
			pushover_enabled, pushover_priority, pushover_sound
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (slug) DO NOTHING
		RETURNING id, created_at, updated_at
	`

	err := r.db.Pool().QueryRow(
		ctx,
		query,
		ch.Slug,
		ch.Name,
		ch.Description,
		ch.Icon,
		ch.Color,
		ch.PushoverEnabled,
		ch.PushoverPriority,
		ch.PushoverSound,
	).Scan(&ch.ID, &ch.CreatedAt, &ch.UpdatedAt)

	if err == pgx.ErrNoRows {
		return ErrChannelExists
	}

	if err != nil {
		r.logger.Error("failed to create channel",
			zap.Error(err),
			zap.String("slug", ch.Slug),
		)
		return fmt.Errorf("insert channel: %w", err)
	}

	r.logger.Info("channel created",
		zap.String("slug", ch.Slug),
		zap.String("name", ch.Name),
	)

	return nil
}

// ListChannels retrieves all channels with their usage aggregates
func (r *Repository) ListChannels(ctx context.Context) ([]*ChannelStats, error) {
	query := `
		SELECT
			c.id, c.slug, c.name, c.description, c.icon, c.color,
			c.pushover_enabled, c.pushover_priority, c.pushover_sound,
			c.created_at, c.updated_at,
			COUNT(w.id) AS webhook_count,
			MAX(w.received_at) AS last_received
		FROM channels c
		LEFT JOIN webhooks w ON w.channel_slug = c.slug
		GROUP BY c.id
		ORDER BY c.name
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	defer rows.Close()

	var channels []*ChannelStats
	for rows.Next() {
		var cs ChannelStats
		err := rows.Scan(
			&cs.ID,
			&cs.Slug,
			&cs.Name,
			&cs.Description,
			&cs.Icon,
			&cs.Color,
			&cs.PushoverEnabled,
			&cs.PushoverPriority,
			&cs.PushoverSound,
			&cs.CreatedAt,
			&cs.UpdatedAt,
			&cs.WebhookCount,
			&cs.LastReceived,
		)
		if err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		channels = append(channels, &cs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return channels, nil
}

// UpdateChannel replaces a channel's mutable fields. The slug itself is
// immutable.
func (r *Repository) UpdateChannel(ctx context.Context, ch *Channel) error {
	query := `
		UPDATE channels SET
			name = $1, description = $2, icon = $3, color = $4,
			pushover_enabled = $5, pushover_priority = $6, pushover_sound = $7,
			updated_at = NOW()
		WHERE slug = $8
	`

	result, err := r.db.Pool().Exec(
		ctx,
		query,
		ch.Name,
		ch.Description,
		ch.Icon,
		ch.Color,
		ch.PushoverEnabled,
		ch.PushoverPriority,
		ch.PushoverSound,
		ch.Slug,
	)
	if err != nil {
		r.logger.Error("failed to update channel",
			zap.Error(err),
			zap.String("slug", ch.Slug),
		)
		return fmt.Errorf("update channel: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrChannelNotFound
	}

	return nil
}

// DeleteChannel removes a channel and, via the FK cascade, its webhook
// records. Deleting an absent channel is a no-op.
func (r *Repository) DeleteChannel(ctx context.Context, slug string) error {
	_, err := r.db.Pool().Exec(ctx, `DELETE FROM channels WHERE slug = $1`, slug)
	if err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}

	r.logger.Info("channel deleted", zap.String("slug", slug))

	return nil
}

const webhookColumns = `
	id, channel_slug, title, message, priority, source_ip,
	raw_headers, raw_body, parsed_data, received_at, pushover_sent
`

// CreateWebhook inserts a new webhook record and fills in the assigned id
// and received_at timestamp.
func (r *Repository) CreateWebhook(ctx context.Context, w *Webhook) error {
	query := `
		INSERT INTO webhooks (
			channel_slug, title, message, priority, source_ip,
			raw_headers, raw_body, parsed_data, pushover_sent
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, received_at
	`

	err := r.db.Pool().QueryRow(
		ctx,
		query,
		w.ChannelSlug,
		w.Title,
		w.Message,
		w.Priority,
		w.SourceIP,
		w.RawHeaders,
		w.RawBody,
		w.ParsedData,
		w.PushoverSent,
	).Scan(&w.ID, &w.ReceivedAt)

	if err != nil {
		r.logger.Error("failed to create webhook record",
			zap.Error(err),
			zap.String("channel", w.ChannelSlug),
		)
		return fmt.Errorf("insert webhook: %w", err)
	}

	return nil
}

// GetWebhook retrieves a webhook record by id
func (r *Repository) GetWebhook(ctx context.Context, id int64) (*Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks WHERE id = $1`

	var w Webhook
	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&w.ID,
		&w.ChannelSlug,
		&w.Title,
		&w.Message,
		&w.Priority,
		&w.SourceIP,
		&w.RawHeaders,
		&w.RawBody,
		&w.ParsedData,
		&w.ReceivedAt,
		&w.PushoverSent,
	)

	if err == pgx.ErrNoRows {
		return nil, ErrWebhookNotFound
	}

	if err != nil {
		r.logger.Error("failed to get webhook",
			zap.Error(err),
			zap.Int64("webhook_id", id),
		)
		return nil, fmt.Errorf("query webhook: %w", err)
	}

	return &w, nil
}

// MarkPushoverSent records the primary delivery outcome. Set exactly once
// per record, after the synchronous Pushover attempt.
func (r *Repository) MarkPushoverSent(ctx context.Context, id int64, sent bool) error {
	result, err := r.db.Pool().Exec(
		ctx,
		`UPDATE webhooks SET pushover_sent = $1 WHERE id = $2`,
		sent, id,
	)
	if err != nil {
		r.logger.Error("failed to update delivery flag",
			zap.Error(err),
			zap.Int64("webhook_id", id),
		)
		return fmt.Errorf("update webhook delivery: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrWebhookNotFound
	}

	return nil
}

// ListWebhooks retrieves webhook records matching the filter, newest first,
// along with the total match count for pagination.
func (r *Repository) ListWebhooks(ctx context.Context, f WebhookFilter) ([]*Webhook, int64, error) {
	where := "WHERE 1=1"
	args := []interface{}{}

	if f.Channel != "" {
		args = append(args, f.Channel)
		where += fmt.Sprintf(" AND channel_slug = $%d", len(args))
	}
	if f.Priority != "" {
		args = append(args, f.Priority)
		where += fmt.Sprintf(" AND priority = $%d", len(args))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		where += fmt.Sprintf(" AND (title ILIKE $%d OR message ILIKE $%d)", len(args), len(args))
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM webhooks ` + where
	if err := r.db.Pool().QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count webhooks: %w", err)
	}

	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf(
		`SELECT %s FROM webhooks %s ORDER BY received_at DESC LIMIT $%d OFFSET $%d`,
		webhookColumns, where, len(args)-1, len(args),
	)

	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query webhooks: %w", err)
	}
	defer rows.Close()

	var webhooks []*Webhook
	for rows.Next() {
		var w Webhook
		err := rows.Scan(
			&w.ID,
			&w.ChannelSlug,
			&w.Title,
			&w.Message,
			&w.Priority,
			&w.SourceIP,
			&w.RawHeaders,
			&w.RawBody,
			&w.ParsedData,
			&w.ReceivedAt,
			&w.PushoverSent,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan webhook: %w", err)
		}
		webhooks = append(webhooks, &w)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate rows: %w", err)
	}

	return webhooks, total, nil
}

// DeleteWebhook removes a single record. Deleting an absent record is a
// no-op.
func (r *Repository) DeleteWebhook(ctx context.Context, id int64) error {
	_, err := r.db.Pool().Exec(ctx, `DELETE FROM webhooks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	return nil
}

// ClearWebhooks bulk-deletes records, optionally restricted to a channel
// and/or to records received before a cutoff. Returns the deleted count.
func (r *Repository) ClearWebhooks(ctx context.Context, channel string, olderThan *time.Time) (int64, error) {
	query := "DELETE FROM webhooks WHERE 1=1"
	args := []interface{}{}

	if channel != "" {
		args = append(args, channel)
		query += fmt.Sprintf(" AND channel_slug = $%d", len(args))
	}
	if olderThan != nil {
		args = append(args, *olderThan)
		query += fmt.Sprintf(" AND received_at < $%d", len(args))
	}

	result, err := r.db.Pool().Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("clear webhooks: %w", err)
	}

	deleted := result.RowsAffected()
	if deleted > 0 {
		r.logger.Info("webhooks cleared",
			zap.Int64("deleted", deleted),
			zap.String("channel", channel),
		)
	}

	return deleted, nil
}

// Stats aggregates the dashboard overview numbers.
func (r *Repository) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		ByPriority: make(map[string]int64),
		ByChannel:  make(map[string]ChannelCount),
	}

	err := r.db.Pool().QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM webhooks),
			(SELECT COUNT(*) FROM channels),
			(SELECT COUNT(*) FROM webhooks
				WHERE (received_at AT TIME ZONE 'utc')::date = (NOW() AT TIME ZONE 'utc')::date),
			(SELECT COUNT(*) FROM webhooks WHERE pushover_sent)
	`).Scan(&stats.TotalWebhooks, &stats.TotalChannels, &stats.TodayCount, &stats.PushoverSent)
	if err != nil {
		return nil, fmt.Errorf("query totals: %w", err)
	}

	rows, err := r.db.Pool().Query(ctx,
		`SELECT priority, COUNT(*) FROM webhooks GROUP BY priority`)
	if err != nil {
		return nil, fmt.Errorf("query priority counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var priority string
		var count int64
		if err := rows.Scan(&priority, &count); err != nil {
			return nil, fmt.Errorf("scan priority count: %w", err)
		}
		stats.ByPriority[priority] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	chRows, err := r.db.Pool().Query(ctx, `
		SELECT c.name, c.icon, c.color, COUNT(w.id) AS cnt
		FROM channels c
		LEFT JOIN webhooks w ON w.channel_slug = c.slug
		GROUP BY c.id
		ORDER BY cnt DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query channel counts: %w", err)
	}
	defer chRows.Close()

	for chRows.Next() {
		var name string
		var cc ChannelCount
		if err := chRows.Scan(&name, &cc.Icon, &cc.Color, &cc.Count); err != nil {
			return nil, fmt.Errorf("scan channel count: %w", err)
		}
		stats.ByChannel[name] = cc
	}
	if err := chRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return stats, nil
}

// DisplayName derives a readable channel name from a slug:
// "plex-media_server" becomes "Plex Media Server".
func DisplayName(slug string) string {
	return titleCase(strings.NewReplacer("-", " ", "_", " ").Replace(slug))
}

// titleCase uppercases the first letter of every word and lowercases the
// rest, treating any non-letter as a word boundary.
func titleCase(s string) string {
	runes := []rune(s)
	prevLetter := false
	for i, c := range runes {
		if unicode.IsLetter(c) {
			if prevLetter {
				runes[i] = unicode.ToLower(c)
			} else {
				runes[i] = unicode.ToUpper(c)
			}
			prevLetter = true
		} else {
			prevLetter = false
		}
	}
	return string(runes)
}
