package protocol

import (
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Duration
	}{
		{"1d2h30m", 24*time.Hour + 2*time.Hour + 30*time.Minute},
		{"1D2H30M", 24*time.Hour + 2*time.Hour + 30*time.Minute},
		{"30s", 30 * time.Second},
		{"5m", 5 * time.Minute},
		{"2d", 48 * time.Hour},
	}
	for _, c := range cases {
		got, err := ParseDuration(c.raw)
		if err != nil {
			t.Fatalf("ParseDuration(%q): %v", c.raw, err)
		}
		if got != c.want {
			t.Errorf("ParseDuration(%q) = %v, want %v", c.raw, got, c.want)
		}
	}
}

func TestParseDurationRejectsEmptyAndGarbage(t *testing.T) {
	for _, raw := range []string{"", "abc", "1x", "-5s"} {
		if _, err := ParseDuration(raw); err == nil {
			t.Errorf("ParseDuration(%q) expected an error", raw)
		}
	}
}
