package protocol

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// InvalidExpiryError is returned when a duration string does not match the
// compound grammar.
type InvalidExpiryError struct {
	Raw string
}

func (e *InvalidExpiryError) Error() string {
	return fmt.Sprintf("protocol: invalid expiry duration %q", e.Raw)
}

var durationPattern = regexp.MustCompile(`(?i)^(?:(\d+)d)?(?:(\d+)h)?(?:(\d+)m)?(?:(\d+)s)?$`)

// ParseDuration parses a compound duration string of the form
// "[Nd][Nh][Nm][Ns]", case-insensitive, requiring at least one component.
// "1d2h30m" parses to 1 day + 2 hours + 30 minutes.
func ParseDuration(raw string) (time.Duration, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, &InvalidExpiryError{Raw: raw}
	}
	m := durationPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return 0, &InvalidExpiryError{Raw: raw}
	}
	if m[1] == "" && m[2] == "" && m[3] == "" && m[4] == "" {
		return 0, &InvalidExpiryError{Raw: raw}
	}

	var total time.Duration
	add := func(component string, unit time.Duration) error {
		if component == "" {
			return nil
		}
		n, err := strconv.ParseInt(component, 10, 64)
		if err != nil {
			return &InvalidExpiryError{Raw: raw}
		}
		total += time.Duration(n) * unit
		return nil
	}
	if err := add(m[1], 24*time.Hour); err != nil {
		return 0, err
	}
	if err := add(m[2], time.Hour); err != nil {
		return 0, err
	}
	if err := add(m[3], time.Minute); err != nil {
		return 0, err
	}
	if err := add(m[4], time.Second); err != nil {
		return 0, err
	}
	return total, nil
}
