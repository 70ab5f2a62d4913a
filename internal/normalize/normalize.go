// Package normalize turns arbitrary webhook payloads into uniform
// notification content. Sources with a known payload shape get a dedicated
// normalizer; everything else goes through the generic one.
package normalize

import (
	"encoding/json"
	"fmt"

	"github.com/WYOhellboy/WebhookHub/internal/priority"
)

// Normalized is the canonical notification content extracted from a payload.
type Normalized struct {
	Title    string
	Message  string
	Priority string
}

// Normalizer maps a structured payload to normalized notification content.
// Implementations must be pure and must not fail: any payload shape yields
// some usable result.
type Normalizer interface {
	Normalize(data map[string]interface{}) Normalized
}

// Registry resolves a source identifier (the channel slug) to its
// normalizer, falling back to the generic one for unknown sources.
type Registry struct {
	normalizers map[string]Normalizer
	fallback    Normalizer
}

// NewRegistry returns a registry preloaded with the built-in source
// normalizers.
func NewRegistry() *Registry {
	r := &Registry{
		normalizers: make(map[string]Normalizer),
		fallback:    GenericNormalizer{},
	}
	r.Register("tautulli", TautulliNormalizer{})
	return r
}

// Register adds or replaces the normalizer for a source identifier.
func (r *Registry) Register(source string, n Normalizer) {
	r.normalizers[source] = n
}

// Normalize dispatches to the source's normalizer, or the generic one when
// the source is unknown.
func (r *Registry) Normalize(source string, data map[string]interface{}) Normalized {
	if n, ok := r.normalizers[source]; ok {
		return n.Normalize(data)
	}
	return r.fallback.Normalize(data)
}

// Generic returns the fallback normalizer, used directly for payloads that
// were structured but not key-value shaped.
func (r *Registry) Generic() Normalizer {
	return r.fallback
}

// GenericNormalizer extracts title/message/priority from common field
// aliases. It works for most webhook producers that send flat JSON.
type GenericNormalizer struct{}

func (GenericNormalizer) Normalize(data map[string]interface{}) Normalized {
	title := firstNonEmpty(data, "title", "subject", "name", "event")
	if title == "" {
		title = "Webhook Received"
	}

	message := firstNonEmpty(data, "message", "body", "text", "description", "content")
	if message == "" {
		message = truncate(prettyJSON(data), 500)
	}

	pri := priority.Normal
	if p, ok := data["priority"].(string); ok && priority.Valid(p) {
		pri = p
	}

	return Normalized{Title: title, Message: message, Priority: pri}
}

// TautulliNormalizer understands Tautulli's webhook agent payloads, which
// carry subject/body text plus the trigger that fired.
type TautulliNormalizer struct{}

func (TautulliNormalizer) Normalize(data map[string]interface{}) Normalized {
	subject := lookup(data, "subject", lookup(data, "title", "Tautulli Notification"))
	body := lookup(data, "body", lookup(data, "message", ""))
	action := lookup(data, "action", lookup(data, "trigger", ""))

	title := subject
	if action != "" {
		title = action + ": " + subject
	}

	message := body
	if message == "" {
		message = truncate(prettyJSON(data), 500)
	}

	pri := priority.Normal
	if action == "buffer" || action == "error" {
		pri = priority.High
	}

	return Normalized{Title: title, Message: message, Priority: pri}
}

// firstNonEmpty returns the stringified value of the first key whose value
// renders non-empty.
func firstNonEmpty(data map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v, ok := data[key]; ok {
			if s := stringify(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// lookup returns the stringified value when the key is present, even if it
// renders empty, and the default otherwise.
func lookup(data map[string]interface{}, key, def string) string {
	if v, ok := data[key]; ok {
		return stringify(v)
	}
	return def
}

func stringify(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
		return fmt.Sprint(v)
	}
}

func prettyJSON(data map[string]interface{}) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprint(data)
	}
	return string(b)
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
