package utils

import (
	"fmt"
	"strings"
	"time"
)

// ParsePeriod converts a rate-limit period name into a window length.
// Accepts second, minute, hour and day (with or without a trailing "s"),
// or any Go duration string such as "90s".
func ParsePeriod(period string) (time.Duration, error) {
	p := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(period)), "s")
	switch p {
	case "second", "sec":
		return time.Second, nil
	case "minute", "min", "":
		return time.Minute, nil
	case "hour":
		return time.Hour, nil
	case "day":
		return 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(period))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid rate limit period %q", period)
	}
	return d, nil
}
