package notify

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func fullSMTPConfig() SMTPConfig {
	return SMTPConfig{
		Host: "mail.example.com",
		Port: 587,
		User: "hub",
		Pass: "secret",
		From: "hub@example.com",
		To:   []string{"ops@example.com", "oncall@example.com"},
	}
}

func TestSMTPConfigured(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SMTPConfig)
		want   bool
	}{
		{"all present", func(c *SMTPConfig) {}, true},
		{"missing host", func(c *SMTPConfig) { c.Host = "" }, false},
		{"missing user", func(c *SMTPConfig) { c.User = "" }, false},
		{"missing pass", func(c *SMTPConfig) { c.Pass = "" }, false},
		{"missing from", func(c *SMTPConfig) { c.From = "" }, false},
		{"no recipients", func(c *SMTPConfig) { c.To = nil }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := fullSMTPConfig()
			tt.mutate(&cfg)
			n := NewSMTPNotifier(cfg, zap.NewNop())
			if got := n.Configured(); got != tt.want {
				t.Errorf("Configured() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSMTPSend_UnconfiguredIsNoop(t *testing.T) {
	n := NewSMTPNotifier(SMTPConfig{}, zap.NewNop())

	d := Delivery{Title: "T", Message: "M", Channel: ChannelInfo{Name: "General"}}
	if n.Send(context.Background(), d) {
		t.Fatal("expected false from unconfigured adapter")
	}
}

func TestSMTPBuildMessage(t *testing.T) {
	n := NewSMTPNotifier(fullSMTPConfig(), zap.NewNop())

	msg := string(n.buildMessage("[WebhookHub][General] Disk full", "volume /data at 97%"))

	wantLines := []string{
		"From: hub@example.com",
		"To: ops@example.com, oncall@example.com",
		"Subject: [WebhookHub][General] Disk full",
		"Content-Type: text/plain; charset=\"UTF-8\"",
	}
	for _, line := range wantLines {
		if !strings.Contains(msg, line+"\r\n") {
			t.Errorf("message missing header line %q", line)
		}
	}

	headerEnd := strings.Index(msg, "\r\n\r\n")
	if headerEnd < 0 {
		t.Fatal("message has no header/body separator")
	}
	if body := msg[headerEnd+4:]; body != "volume /data at 97%" {
		t.Errorf("body = %q", body)
	}
}

func TestSMTPSubjectComposition(t *testing.T) {
	// The channel name is embedded in the subject when present.
	tests := []struct {
		name        string
		channelName string
		title       string
		want        string
	}{
		{"with channel", "General", "Disk full", "[WebhookHub][General] Disk full"},
		{"without channel", "", "Disk full", "[WebhookHub] Disk full"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := subjectFor(tt.channelName, tt.title)
			if got != tt.want {
				t.Errorf("subject = %q, want %q", got, tt.want)
			}
		})
	}
}
