package service

import (
	"fmt"
	"strings"
	"time"
)

// Upper bounds for each duration part; the total is capped at MaxGiveawayDays
const (
	MaxGiveawayDays    = 365
	MaxGiveawayHours   = MaxGiveawayDays * 24
	MaxGiveawayMinutes = MaxGiveawayHours * 60
)

// GiveawayDuration combines the day/hour/minute command options into a duration.
// At least one part must be positive and none may be negative.
func GiveawayDuration(days, hours, minutes int) (time.Duration, error) {
	if days < 0 || hours < 0 || minutes < 0 {
		return 0, fmt.Errorf("%w: duration parts cannot be negative", ErrInvalidInput)
	}
	if days > MaxGiveawayDays || hours > MaxGiveawayHours || minutes > MaxGiveawayMinutes {
		return 0, fmt.Errorf("%w: giveaways can last at most %d days", ErrInvalidInput, MaxGiveawayDays)
	}

	d := time.Duration(days)*24*time.Hour + time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
	if d <= 0 {
		return 0, fmt.Errorf("%w: duration must be at least one minute", ErrInvalidInput)
	}
	if d > MaxGiveawayDays*24*time.Hour {
		return 0, fmt.Errorf("%w: giveaways can last at most %d days", ErrInvalidInput, MaxGiveawayDays)
	}
	return d, nil
}

// FormatRemaining renders the time left until deadline, e.g. "2d 3h 15m"
func FormatRemaining(deadline, now time.Time) string {
	remaining := deadline.Sub(now)
	if remaining <= 0 {
		return "ending now"
	}

	days := int(remaining / (24 * time.Hour))
	remaining -= time.Duration(days) * 24 * time.Hour
	hours := int(remaining / time.Hour)
	remaining -= time.Duration(hours) * time.Hour
	minutes := int(remaining / time.Minute)

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	return strings.Join(parts, " ")
}
