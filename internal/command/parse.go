// Package command parses the arguments of chat commands.
package command

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mcoot/rosterbot/internal/model"
)

// ParseTimeRange parses "HH:MM-HH:MM"; the start must be before the end
func ParseTimeRange(s string) (model.TimeRange, error) {
	startText, endText, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return model.TimeRange{}, fmt.Errorf("%w: %q", model.ErrInvalidTimeRange, s)
	}
	start, err := model.ParseClockTime(startText)
	if err != nil {
		return model.TimeRange{}, fmt.Errorf("%w: %q", model.ErrInvalidTimeRange, s)
	}
	end, err := model.ParseClockTime(endText)
	if err != nil {
		return model.TimeRange{}, fmt.Errorf("%w: %q", model.ErrInvalidTimeRange, s)
	}
	r := model.TimeRange{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return model.TimeRange{}, err
	}
	return r, nil
}

// ParseCapacity parses a positive player count
func ParseCapacity(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %q", model.ErrInvalidCapacity, s)
	}
	return n, nil
}

// ParseNames splits a comma-separated list of player names, dropping blanks
func ParseNames(s string) []string {
	var names []string
	for _, part := range strings.Split(s, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// ParseToggle parses "on" or "off"
func ParseToggle(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, fmt.Errorf("expected on or off, got %q", s)
	}
}

// ParseSlot parses "HH:MM-HH:MM/N" into a time range and capacity.
// Without "/N" the default capacity is used.
func ParseSlot(s string, defaultCapacity int) (model.TimeRange, int, error) {
	rangeText, capText, hasCap := strings.Cut(strings.TrimSpace(s), "/")
	r, err := ParseTimeRange(rangeText)
	if err != nil {
		return model.TimeRange{}, 0, err
	}
	if !hasCap {
		if defaultCapacity < 1 {
			return model.TimeRange{}, 0, model.ErrInvalidCapacity
		}
		return r, defaultCapacity, nil
	}
	capacity, err := ParseCapacity(capText)
	if err != nil {
		return model.TimeRange{}, 0, err
	}
	return r, capacity, nil
}

// HelpText lists the chat commands
const HelpText = `Available commands:
/join HH:MM - join today's session starting at HH:MM
/leave HH:MM - leave today's session starting at HH:MM
/sessions - show today's sessions

Admin commands:
/create_session HH:MM-HH:MM MAX_PLAYERS - create a session for tomorrow
/add_players HH:MM Name1, Name2, ... - add players to a session
/remove_player HH:MM Name - remove a player from a session
/toggle_bot on|off - enable or disable registration
/stats [Name] - show statistics`
