package notify

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/WYOhellboy/WebhookHub/internal/priority"
)

const defaultPushoverAPIURL = "https://api.pushover.net/1/messages.json"

// Pushover message limits.
const (
	pushoverTitleLimit   = 250
	pushoverMessageLimit = 1024
)

// PushoverConfig holds the Pushover application credentials.
type PushoverConfig struct {
	UserKey  string
	APIToken string
	APIURL   string // defaults to the public endpoint; overridable in tests
}

// PushoverNotifier delivers to the Pushover push service. This is the
// primary destination: its outcome is awaited and recorded per webhook.
type PushoverNotifier struct {
	cfg    PushoverConfig
	client *http.Client
	logger *zap.Logger
}

// NewPushoverNotifier creates a Pushover adapter.
func NewPushoverNotifier(cfg PushoverConfig, logger *zap.Logger) *PushoverNotifier {
	if cfg.APIURL == "" {
		cfg.APIURL = defaultPushoverAPIURL
	}

	return &PushoverNotifier{
		cfg: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

func (p *PushoverNotifier) Name() string {
	return "pushover"
}

func (p *PushoverNotifier) Configured() bool {
	return p.cfg.UserKey != "" && p.cfg.APIToken != ""
}

// Send submits one message as a form POST. Only HTTP 200 counts as
// acknowledged.
func (p *PushoverNotifier) Send(ctx context.Context, d Delivery) bool {
	if !p.Configured() {
		return false
	}

	title := d.Title
	if d.Channel.Name != "" {
		title = "[" + d.Channel.Name + "] " + title
	}

	form := url.Values{}
	form.Set("token", p.cfg.APIToken)
	form.Set("user", p.cfg.UserKey)
	form.Set("title", truncate(title, pushoverTitleLimit))
	form.Set("message", truncate(d.Message, pushoverMessageLimit))
	form.Set("priority", strconv.Itoa(d.PushoverPriority))
	form.Set("sound", d.Channel.Sound)
	if d.PushoverPriority == 2 {
		// Emergency priority: Pushover requires an acknowledgment window.
		form.Set("retry", strconv.Itoa(priority.EmergencyRetrySeconds))
		form.Set("expire", strconv.Itoa(priority.EmergencyExpireSeconds))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.APIURL, strings.NewReader(form.Encode()))
	if err != nil {
		p.logger.Error("failed to build pushover request", zap.Error(err))
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "WebhookHub/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn("pushover delivery failed",
			zap.Error(err),
			zap.String("channel", d.Channel.Slug),
		)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		p.logger.Warn("pushover rejected notification",
			zap.Int("status_code", resp.StatusCode),
			zap.String("channel", d.Channel.Slug),
			zap.String("response", string(preview)),
		)
		return false
	}

	return true
}
