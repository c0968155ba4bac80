// Package engine implements the alert rule evaluation pass: quiet-hours
// filtering, the per-type condition evaluators and the trigger dispatcher.
package engine

import (
	"time"

	"github.com/hygieia/hygieia/internal/health"
)

// SystemClock reports wall-clock time in a fixed location. Quiet hours
// and anomaly baselines are computed against this location, not the
// user's timezone.
type SystemClock struct {
	location *time.Location
}

// NewSystemClock creates a clock for the named IANA timezone.
// An empty or unknown name falls back to UTC.
func NewSystemClock(timezone string) *SystemClock {
	loc, err := time.LoadLocation(timezone)
	if err != nil || timezone == "" {
		loc = time.UTC
	}
	return &SystemClock{location: loc}
}

// Now returns the current time in the clock's location
func (c *SystemClock) Now() time.Time {
	return time.Now().In(c.location)
}

var _ health.Clock = (*SystemClock)(nil)
