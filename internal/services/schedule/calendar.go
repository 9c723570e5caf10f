package schedule

import (
	"strings"
	"time"

	"github.com/mcoot/rosterbot/internal/dependencies/clock"
	"github.com/mcoot/rosterbot/internal/model"
)

// Calendar resolves calendar days in the bot's timezone
type Calendar struct {
	Clock    clock.Clock
	Location *time.Location
}

// NewCalendar creates a Calendar; a nil location means UTC
func NewCalendar(clock clock.Clock, loc *time.Location) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{Clock: clock, Location: loc}
}

// Today returns the current calendar day
func (c Calendar) Today() time.Time {
	return model.DateOf(c.Clock.Now().In(c.Location))
}

// ParseDate accepts YYYY-MM-DD, "today" and "tomorrow"; empty means today
func (c Calendar) ParseDate(s string) (time.Time, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "today":
		return c.Today(), nil
	case "tomorrow":
		return c.Today().AddDate(0, 0, 1), nil
	}
	return model.ParseDate(s)
}
