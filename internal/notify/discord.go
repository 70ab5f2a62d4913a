package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/WYOhellboy/WebhookHub/internal/priority"
)

// Discord embed limits.
const (
	discordTitleLimit       = 256
	discordDescriptionLimit = 2048
)

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

// DiscordConfig holds the incoming-webhook URL for the target channel.
type DiscordConfig struct {
	WebhookURL string
}

// DiscordNotifier delivers to a Discord channel via an incoming webhook.
// Secondary destination: fired without awaiting, outcome logged only.
type DiscordNotifier struct {
	cfg    DiscordConfig
	client *http.Client
	logger *zap.Logger
}

// NewDiscordNotifier creates a Discord adapter.
func NewDiscordNotifier(cfg DiscordConfig, logger *zap.Logger) *DiscordNotifier {
	return &DiscordNotifier{
		cfg: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

func (n *DiscordNotifier) Name() string {
	return "discord"
}

func (n *DiscordNotifier) Configured() bool {
	return n.cfg.WebhookURL != ""
}

// Send posts a single embed. Discord answers 204 on webhook success; 200 is
// accepted too.
func (n *DiscordNotifier) Send(ctx context.Context, d Delivery) bool {
	if !n.Configured() {
		return false
	}

	title := d.Title
	if d.Channel.Name != "" {
		title = "[" + d.Channel.Name + "] " + title
	}

	payload := discordPayload{
		Embeds: []discordEmbed{{
			Title:       truncate(title, discordTitleLimit),
			Description: truncate(d.Message, discordDescriptionLimit),
			Color:       priority.DiscordColor(d.Priority),
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		n.logger.Error("failed to marshal discord payload", zap.Error(err))
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		n.logger.Error("failed to build discord request", zap.Error(err))
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "WebhookHub/1.0")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("discord delivery failed",
			zap.Error(err),
			zap.String("channel", d.Channel.Slug),
		)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		n.logger.Warn("discord rejected notification",
			zap.Int("status_code", resp.StatusCode),
			zap.String("channel", d.Channel.Slug),
			zap.String("response", string(preview)),
		)
		return false
	}

	return true
}
