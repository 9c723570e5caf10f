package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SessionID uniquely identifies a session, assigned by the store
type SessionID int64

// DateLayout is the canonical textual form of a session date
const DateLayout = "2006-01-02"

// ClockTime is a time of day, in minutes since midnight
type ClockTime int

// NewClockTime builds a ClockTime from hours and minutes
func NewClockTime(hour, minute int) ClockTime {
	return ClockTime(hour*60 + minute)
}

// ParseClockTime parses an "HH:MM" string
func ParseClockTime(s string) (ClockTime, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(mm) != 2 || len(hh) == 0 || len(hh) > 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClockTime, s)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClockTime, s)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClockTime, s)
	}
	return NewClockTime(hour, minute), nil
}

// Hour returns the hour component
func (c ClockTime) Hour() int { return int(c) / 60 }

// Minute returns the minute component
func (c ClockTime) Minute() int { return int(c) % 60 }

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

func (c ClockTime) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ClockTime) UnmarshalText(text []byte) error {
	parsed, err := ParseClockTime(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// TimeRange is the start and end of a session within a day
type TimeRange struct {
	Start ClockTime
	End   ClockTime
}

// Validate checks that the range is non-empty
func (r TimeRange) Validate() error {
	if r.Start < 0 || r.End > NewClockTime(24, 0) || r.Start >= r.End {
		return fmt.Errorf("%w: %s", ErrInvalidTimeRange, r)
	}
	return nil
}

func (r TimeRange) String() string {
	return r.Start.String() + "-" + r.End.String()
}

// MessageLocation identifies a posted roster message on the messaging platform
type MessageLocation struct {
	ChatID    string
	MessageID string
}

// Session is a single time-boxed occurrence of the activity
type Session struct {
	ID        SessionID
	Date      time.Time // midnight UTC of the calendar day
	Start     ClockTime
	End       ClockTime
	Capacity  int
	Location  *MessageLocation // nil until the roster message is posted
	CreatedAt time.Time
}

// Range returns the session's time range
func (s *Session) Range() TimeRange {
	return TimeRange{Start: s.Start, End: s.End}
}

// DateOf returns the calendar day of t, normalized to midnight UTC
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a date in DateLayout
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return d, nil
}

// FormatDate formats a session date in DateLayout
func FormatDate(d time.Time) string {
	return d.Format(DateLayout)
}
