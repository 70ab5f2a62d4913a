package priority

// Canonical priority levels, ascending urgency.
const (
	Low      = "low"
	Normal   = "normal"
	High     = "high"
	Critical = "critical"
)

// Emergency-priority acknowledgment parameters required by Pushover
// when a message is sent at priority 2.
const (
	EmergencyRetrySeconds  = 60
	EmergencyExpireSeconds = 3600
)

var pushoverScale = map[string]int{
	Low:      -1,
	Normal:   0,
	High:     1,
	Critical: 2,
}

var discordColors = map[string]int{
	Low:      0x556480,
	Normal:   0x3b82f6,
	High:     0xf59e0b,
	Critical: 0xef4444,
}

// Valid reports whether p is one of the four canonical levels.
func Valid(p string) bool {
	_, ok := pushoverScale[p]
	return ok
}

// PushoverValue maps a canonical priority onto Pushover's -1..2 scale and
// applies the channel's floor. The floor is a lower bound: it raises the
// mapped value when greater but never lowers it. Unknown priorities map
// to 0 (normal).
func PushoverValue(p string, floor int) int {
	v, ok := pushoverScale[p]
	if !ok {
		v = 0
	}
	if floor > v {
		v = floor
	}
	return v
}

// DiscordColor maps a canonical priority onto a fixed embed accent color.
// Unknown priorities get normal's color.
func DiscordColor(p string) int {
	if c, ok := discordColors[p]; ok {
		return c
	}
	return discordColors[Normal]
}
