// Package notify contains the delivery adapters, one per destination.
// Adapters never return errors: a delivery either succeeds or is reported
// false with the cause logged. Unconfigured adapters are permanent no-ops.
package notify

import "context"

// ChannelInfo is the slice of channel configuration a destination needs.
type ChannelInfo struct {
	Slug  string
	Name  string
	Sound string
}

// Delivery is one notification handed to an adapter. Priority carries the
// canonical vocabulary (low|normal|high|critical); PushoverPriority carries
// the mapped Pushover scale value with the channel floor already applied.
type Delivery struct {
	Title            string
	Message          string
	Priority         string
	PushoverPriority int
	Channel          ChannelInfo
}

// Notifier delivers notifications to a single destination.
type Notifier interface {
	// Name identifies the destination in logs, metrics and status reports.
	Name() string
	// Configured reports whether the destination's full credential set was
	// provided at startup.
	Configured() bool
	// Send attempts one delivery. It never panics and never returns an
	// error; false means the destination did not acknowledge the
	// notification, with the cause logged.
	Send(ctx context.Context, d Delivery) bool
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
