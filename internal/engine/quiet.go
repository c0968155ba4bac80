package engine

import (
	"time"

	"github.com/hygieia/hygieia/internal/health"
)

// isSuppressed reports whether the rule must be skipped at the given
// evaluation instant because of quiet hours or the weekdays_only flag.
//
// Both quiet-hour bounds must be set for the window to apply. A window
// with start < end suppresses start <= hour < end; any other pair wraps
// past midnight and suppresses hour >= start || hour < end. The start
// hour is suppressed, the end hour is not.
func isSuppressed(rule health.AlertRule, now time.Time) bool {
	if rule.WeekdaysOnly {
		switch now.Weekday() {
		case time.Saturday, time.Sunday:
			return true
		}
	}

	if rule.QuietHoursStart == nil || rule.QuietHoursEnd == nil {
		return false
	}

	start, end := *rule.QuietHoursStart, *rule.QuietHoursEnd
	hour := now.Hour()

	if start < end {
		return start <= hour && hour < end
	}
	return hour >= start || hour < end
}
