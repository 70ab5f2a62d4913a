package db

import (
	"encoding/json"
	"time"
)

// Channel groups incoming webhooks under one identity and carries the
// delivery configuration for the primary (Pushover) destination.
type Channel struct {
	ID               int64     `json:"id"`
	Slug             string    `json:"slug"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	Icon             string    `json:"icon"`
	Color            string    `json:"color"`
	PushoverEnabled  bool      `json:"pushover_enabled"`
	PushoverPriority int       `json:"pushover_priority"`
	PushoverSound    string    `json:"pushover_sound"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ChannelStats is a Channel plus usage aggregates for the management API.
type ChannelStats struct {
	Channel
	WebhookCount int64      `json:"webhook_count"`
	LastReceived *time.Time `json:"last_received"`
}

// Webhook is one received webhook: the normalized content, an opaque
// snapshot of what arrived, and the primary-delivery outcome.
type Webhook struct {
	ID           int64           `json:"id"`
	ChannelSlug  string          `json:"channel_slug"`
	Title        string          `json:"title"`
	Message      string          `json:"message"`
	Priority     string          `json:"priority"`
	SourceIP     string          `json:"source_ip"`
	RawHeaders   json.RawMessage `json:"raw_headers"`
	RawBody      string          `json:"raw_body"`
	ParsedData   json.RawMessage `json:"parsed_data"`
	ReceivedAt   time.Time       `json:"received_at"`
	PushoverSent bool            `json:"pushover_sent"`
}

// WebhookFilter narrows ListWebhooks results.
type WebhookFilter struct {
	Channel  string
	Priority string
	Search   string
	Limit    int
	Offset   int
}

// Stats is the dashboard overview aggregate.
type Stats struct {
	TotalWebhooks int64                   `json:"total_webhooks"`
	TotalChannels int64                   `json:"total_channels"`
	TodayCount    int64                   `json:"today_count"`
	PushoverSent  int64                   `json:"pushover_sent"`
	ByPriority    map[string]int64        `json:"by_priority"`
	ByChannel     map[string]ChannelCount `json:"by_channel"`
}

// ChannelCount is a per-channel webhook count with display hints, keyed by
// channel name in Stats.ByChannel.
type ChannelCount struct {
	Count int64  `json:"count"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
}
