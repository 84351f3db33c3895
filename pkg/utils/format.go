package utils

import (
	"fmt"
	"math"
	"time"
)

var byteUnits = []string{"Bytes", "KB", "MB", "GB", "TB"}

// FormatByteSize renders a byte count with the largest fitting unit and
// standard rounding. Zero is the special case "0 Byte".
func FormatByteSize(bytes int64) string {
	if bytes == 0 {
		return "0 Byte"
	}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(byteUnits) {
		i = len(byteUnits) - 1
	}
	value := float64(bytes) / math.Pow(1024, float64(i))
	return fmt.Sprintf("%d %s", int64(math.Round(value)), byteUnits[i])
}

// FormatRelativeTime renders a timestamp relative to now: a phrase for
// anything earlier today, "Yesterday", then day, month and year
// granularity.
func FormatRelativeTime(t time.Time) string {
	return formatRelativeTimeAt(t, time.Now())
}

func formatRelativeTimeAt(t, now time.Time) string {
	if sameDay(t, now) {
		elapsed := now.Sub(t)
		switch {
		case elapsed < time.Minute:
			return "less than a minute ago"
		case elapsed < 2*time.Minute:
			return "1 minute ago"
		case elapsed < time.Hour:
			return fmt.Sprintf("%d minutes ago", int(elapsed.Minutes()))
		case elapsed < 2*time.Hour:
			return "1 hour ago"
		default:
			return fmt.Sprintf("%d hours ago", int(elapsed.Hours()))
		}
	}

	if sameDay(t, now.AddDate(0, 0, -1)) {
		return "Yesterday"
	}

	days := int(now.Sub(t).Hours() / 24)
	if days < 30 {
		return fmt.Sprintf("%d days ago", days)
	}

	months := monthsBetween(t, now)
	if months < 12 {
		return fmt.Sprintf("%d months ago", months)
	}
	return fmt.Sprintf("%d years ago", months/12)
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// monthsBetween counts full calendar months from t to now.
func monthsBetween(t, now time.Time) int {
	months := (now.Year()-t.Year())*12 + int(now.Month()) - int(t.Month())
	if now.Day() < t.Day() {
		months--
	}
	return months
}
