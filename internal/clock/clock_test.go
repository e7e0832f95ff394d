package clock

import (
	"testing"
	"time"
)

func TestToday(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want string
	}{
		{"utc midday", time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC), "2025-03-15"},
		{"offset crosses midnight", time.Date(2025, 3, 15, 23, 30, 0, 0, time.FixedZone("UTC-2", -2*3600)), "2025-03-16"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Today(Fixed(tt.now)); got != tt.want {
				t.Errorf("Today() = %q, want %q", got, tt.want)
			}
		})
	}
}
