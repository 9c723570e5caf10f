// Package schedule decides which sessions exist on a date and creates them daily.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/mcoot/rosterbot/internal/command"
	"github.com/mcoot/rosterbot/internal/model"
)

// DefaultCapacity is the main-list size of a default session
const DefaultCapacity = 6

// Slot is one session a date should have
type Slot struct {
	Range    model.TimeRange
	Capacity int
}

func (s Slot) String() string {
	return fmt.Sprintf("%s/%d", s.Range, s.Capacity)
}

// Policy lists the default sessions for weekdays and weekends
type Policy struct {
	Weekday []Slot
	Weekend []Slot
}

// DefaultPolicy returns two afternoon sessions every day, plus a midday
// session at weekends
func DefaultPolicy() Policy {
	afternoon := []Slot{
		{Range: model.TimeRange{Start: model.NewClockTime(14, 0), End: model.NewClockTime(16, 0)}, Capacity: DefaultCapacity},
		{Range: model.TimeRange{Start: model.NewClockTime(16, 0), End: model.NewClockTime(18, 0)}, Capacity: DefaultCapacity},
	}
	midday := Slot{Range: model.TimeRange{Start: model.NewClockTime(12, 0), End: model.NewClockTime(14, 0)}, Capacity: DefaultCapacity}
	return Policy{
		Weekday: afternoon,
		Weekend: append([]Slot{midday}, afternoon...),
	}
}

// PlanDefaultSessions returns the sessions that should exist on date
func (p Policy) PlanDefaultSessions(date time.Time) []Slot {
	slots := p.Weekday
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		slots = p.Weekend
	}
	out := make([]Slot, len(slots))
	copy(out, slots)
	return out
}

// ParseSlots parses a comma-separated list of "HH:MM-HH:MM/N" slots
func ParseSlots(s string) ([]Slot, error) {
	var slots []Slot
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		r, capacity, err := command.ParseSlot(part, DefaultCapacity)
		if err != nil {
			return nil, err
		}
		slots = append(slots, Slot{Range: r, Capacity: capacity})
	}
	return slots, nil
}
