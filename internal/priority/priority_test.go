package priority

import "testing"

func TestPushoverValue_Scale(t *testing.T) {
	tests := []struct {
		priority string
		want     int
	}{
		{Low, -1},
		{Normal, 0},
		{High, 1},
		{Critical, 2},
		{"banana", 0},
		{"", 0},
	}

	for _, tt := range tests {
		if got := PushoverValue(tt.priority, 0); got != tt.want {
			t.Errorf("PushoverValue(%q, 0) = %d, want %d", tt.priority, got, tt.want)
		}
	}
}

func TestPushoverValue_FloorRaises(t *testing.T) {
	tests := []struct {
		name     string
		priority string
		floor    int
		want     int
	}{
		{"floor raises low", Low, 1, 1},
		{"floor raises normal", Normal, 2, 2},
		{"floor never lowers", Critical, 0, 2},
		{"floor equal is noop", High, 1, 1},
		{"negative floor ignored above", Normal, -1, 0},
		{"unknown priority still floored", "bogus", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PushoverValue(tt.priority, tt.floor); got != tt.want {
				t.Errorf("PushoverValue(%q, %d) = %d, want %d", tt.priority, tt.floor, got, tt.want)
			}
		})
	}
}

func TestDiscordColor(t *testing.T) {
	tests := []struct {
		priority string
		want     int
	}{
		{Low, 0x556480},
		{Normal, 0x3b82f6},
		{High, 0xf59e0b},
		{Critical, 0xef4444},
		{"unknown", 0x3b82f6},
	}

	for _, tt := range tests {
		if got := DiscordColor(tt.priority); got != tt.want {
			t.Errorf("DiscordColor(%q) = %#x, want %#x", tt.priority, got, tt.want)
		}
	}
}

func TestValid(t *testing.T) {
	for _, p := range []string{Low, Normal, High, Critical} {
		if !Valid(p) {
			t.Errorf("Valid(%q) = false, want true", p)
		}
	}
	for _, p := range []string{"", "urgent", "NORMAL", "2"} {
		if Valid(p) {
			t.Errorf("Valid(%q) = true, want false", p)
		}
	}
}
