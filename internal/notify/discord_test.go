package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"go.uber.org/zap"
)

func discordDelivery() Delivery {
	return Delivery{
		Title:    "Backup finished",
		Message:  "Nightly backup completed in 4m12s",
		Priority: "normal",
		Channel:  ChannelInfo{Slug: "updates", Name: "Updates"},
	}
}

func captureDiscord(t *testing.T, status int) (*DiscordNotifier, *discordPayload, func()) {
	t.Helper()
	payload := &discordPayload{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		w.WriteHeader(status)
	}))
	n := NewDiscordNotifier(DiscordConfig{WebhookURL: server.URL}, zap.NewNop())
	return n, payload, server.Close
}

func TestDiscordSend_Success(t *testing.T) {
	n, payload, cleanup := captureDiscord(t, http.StatusNoContent)
	defer cleanup()

	if !n.Send(context.Background(), discordDelivery()) {
		t.Fatal("expected success on 204")
	}

	if len(payload.Embeds) != 1 {
		t.Fatalf("expected 1 embed, got %d", len(payload.Embeds))
	}

	embed := payload.Embeds[0]
	if embed.Title != "[Updates] Backup finished" {
		t.Errorf("title = %q", embed.Title)
	}
	if embed.Description != "Nightly backup completed in 4m12s" {
		t.Errorf("description = %q", embed.Description)
	}
	if embed.Color != 0x3b82f6 {
		t.Errorf("color = %#x, want normal blue", embed.Color)
	}
}

func TestDiscordSend_OKStatusAlsoSucceeds(t *testing.T) {
	n, _, cleanup := captureDiscord(t, http.StatusOK)
	defer cleanup()

	if !n.Send(context.Background(), discordDelivery()) {
		t.Fatal("expected success on 200")
	}
}

func TestDiscordSend_PriorityColors(t *testing.T) {
	tests := []struct {
		priority string
		want     int
	}{
		{"low", 0x556480},
		{"normal", 0x3b82f6},
		{"high", 0xf59e0b},
		{"critical", 0xef4444},
		{"nonsense", 0x3b82f6},
	}

	for _, tt := range tests {
		t.Run(tt.priority, func(t *testing.T) {
			n, payload, cleanup := captureDiscord(t, http.StatusNoContent)
			defer cleanup()

			d := discordDelivery()
			d.Priority = tt.priority
			if !n.Send(context.Background(), d) {
				t.Fatal("expected success")
			}
			if payload.Embeds[0].Color != tt.want {
				t.Errorf("color = %#x, want %#x", payload.Embeds[0].Color, tt.want)
			}
		})
	}
}

func TestDiscordSend_NoChannelNameSkipsPrefix(t *testing.T) {
	n, payload, cleanup := captureDiscord(t, http.StatusNoContent)
	defer cleanup()

	d := discordDelivery()
	d.Channel.Name = ""
	if !n.Send(context.Background(), d) {
		t.Fatal("expected success")
	}
	if payload.Embeds[0].Title != "Backup finished" {
		t.Errorf("title = %q, want bare title", payload.Embeds[0].Title)
	}
}

func TestDiscordSend_Truncates(t *testing.T) {
	n, payload, cleanup := captureDiscord(t, http.StatusNoContent)
	defer cleanup()

	d := discordDelivery()
	d.Title = strings.Repeat("t", 500)
	d.Message = strings.Repeat("m", 5000)

	if !n.Send(context.Background(), d) {
		t.Fatal("expected success")
	}

	if got := utf8.RuneCountInString(payload.Embeds[0].Title); got != 256 {
		t.Errorf("title length = %d, want 256", got)
	}
	if got := utf8.RuneCountInString(payload.Embeds[0].Description); got != 2048 {
		t.Errorf("description length = %d, want 2048", got)
	}
}

func TestDiscordSend_ServerErrorFails(t *testing.T) {
	n, _, cleanup := captureDiscord(t, http.StatusInternalServerError)
	defer cleanup()

	if n.Send(context.Background(), discordDelivery()) {
		t.Fatal("expected failure on 500")
	}
}

func TestDiscordSend_UnconfiguredIsNoop(t *testing.T) {
	n := NewDiscordNotifier(DiscordConfig{}, zap.NewNop())

	if n.Configured() {
		t.Error("Configured() should be false without a webhook URL")
	}
	if n.Send(context.Background(), discordDelivery()) {
		t.Error("expected false from unconfigured adapter")
	}
}
