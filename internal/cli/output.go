package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mcoot/rosterbot/internal/api/response"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// HealthResult is the health check response
type HealthResult struct {
	Status string `json:"status"`
	Server string `json:"server"`
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		_, _ = fmt.Fprintln(o.w, string(data))
	} else {
		_, _ = fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case response.Session:
		o.printSession(v)
	case response.Roster:
		o.printRoster(v)
	case response.SessionsResponse:
		o.printSessions(v)
	case response.JoinResponse:
		o.printf("%s\n", v.Message)
	case response.LeaveResponse:
		o.printLeave(v)
	case response.AddPlayersResponse:
		o.printAdded(v)
	case response.SettingsResponse:
		o.printSettings(v)
	case response.Stats:
		o.printStats(v)
	case response.PlayerStats:
		o.printPlayerStats(v)
	case response.ScheduleResponse:
		o.printSchedule(v)
	case response.PolicyResponse:
		o.printPolicy(v)
	case response.HelpResponse:
		o.printf("%s\n", strings.TrimRight(v.Text, "\n"))
	case HealthResult:
		o.printf("Status: %s (%s)\n", v.Status, v.Server)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

func (o *Output) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(o.w, format, args...)
}

func (o *Output) printSession(s response.Session) {
	o.printf("Session #%d on %s, %s-%s (%d places)\n", s.ID, s.Date, s.Start, s.End, s.Capacity)
	if s.MessageID != "" {
		o.printf("Posted to %s as %s\n", s.ChatID, s.MessageID)
	}
}

func (o *Output) printRoster(r response.Roster) {
	o.printf("Session #%d\n", r.Session.ID)
	o.printf("%s", r.Text)
}

func (o *Output) printSessions(s response.SessionsResponse) {
	if len(s.Sessions) == 0 {
		o.printf("No sessions on %s\n", s.Date)
		return
	}
	for i, r := range s.Sessions {
		if i > 0 {
			o.printf("\n")
		}
		o.printRoster(r)
	}
}

func (o *Output) printLeave(l response.LeaveResponse) {
	o.printf("%s\n", l.Message)
	for _, p := range l.Promoted {
		o.printf("Promoted from reserve: %s\n", p.FullName)
	}
}

func (o *Output) printAdded(a response.AddPlayersResponse) {
	o.printf("Added %d player(s) to session #%d:\n", len(a.Added), a.Session.ID)
	for _, p := range a.Added {
		o.printf("  - %s (%s)\n", p.Player.FullName, p.Status)
	}
}

func (o *Output) printSettings(s response.SettingsResponse) {
	state := "off"
	if s.Enabled {
		state = "on"
	}
	o.printf("Bot is %s\n", state)
}

func (o *Output) printStats(s response.Stats) {
	o.printf("Sessions: %d\n", s.TotalSessions)
	o.printf("Players: %d\n", s.TotalPlayers)
	o.printf("Active since %s: %d\n", s.ActiveSince, s.ActivePlayers)
}

func (o *Output) printPlayerStats(s response.PlayerStats) {
	last := "never"
	if s.LastGameDate != nil {
		last = *s.LastGameDate
	}
	o.printf("Player: %s\n", s.FullName)
	o.printf("Games: %d\n", s.TotalGames)
	o.printf("Last game: %s\n", last)
}

func (o *Output) printSchedule(s response.ScheduleResponse) {
	if !s.Created {
		o.printf("Sessions for %s already exist\n", s.Date)
		return
	}
	o.printf("Created %d session(s) for %s:\n", len(s.Sessions), s.Date)
	for _, sess := range s.Sessions {
		o.printf("  #%d %s-%s (%d places)\n", sess.ID, sess.Start, sess.End, sess.Capacity)
	}
}

func (o *Output) printPolicy(p response.PolicyResponse) {
	printSlots := func(label string, slots []response.Slot) {
		o.printf("%s:\n", label)
		for _, s := range slots {
			o.printf("  %s (%d places)\n", s.Time, s.Capacity)
		}
	}
	printSlots("Weekdays", p.Weekday)
	printSlots("Weekends", p.Weekend)
}
