package usage

import "fmt"

// FormatDuration renders seconds the way the UI shows them: "45s", "5m",
// "1h", "1h 1m".
func FormatDuration(seconds int64) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}

	hours := seconds / 3600
	minutes := (seconds % 3600) / 60

	if hours > 0 {
		if minutes > 0 {
			return fmt.Sprintf("%dh %dm", hours, minutes)
		}
		return fmt.Sprintf("%dh", hours)
	}

	return fmt.Sprintf("%dm", minutes)
}

// FormatLimit renders a daily limit; zero means no limit is set.
func FormatLimit(seconds int64) string {
	if seconds <= 0 {
		return "No limit"
	}
	return FormatDuration(seconds)
}

// Remaining returns max(0, limit-used) and false when no limit is set.
func Remaining(limitSeconds, usedSeconds int64) (int64, bool) {
	if limitSeconds <= 0 {
		return 0, false
	}
	return max(0, limitSeconds-usedSeconds), true
}
