package response

import (
	"time"

	"github.com/mcoot/rosterbot/internal/model"
	"github.com/mcoot/rosterbot/internal/services/registration"
	"github.com/mcoot/rosterbot/internal/services/roster"
	"github.com/mcoot/rosterbot/internal/services/schedule"
)

// Player represents a player in API responses
type Player struct {
	ID         int64  `json:"id"`
	FullName   string `json:"full_name"`
	ExternalID string `json:"external_id,omitempty"`
}

// PlayerFromModel converts a model.Player to a response Player
func PlayerFromModel(p *model.Player) Player {
	return Player{
		ID:         int64(p.ID),
		FullName:   p.FullName,
		ExternalID: string(p.ExternalID),
	}
}

// Session represents a session in API responses
type Session struct {
	ID        int64  `json:"id"`
	Date      string `json:"date"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Capacity  int    `json:"capacity"`
	ChatID    string `json:"chat_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
}

// SessionFromModel converts model.Session
func SessionFromModel(s *model.Session) Session {
	resp := Session{
		ID:       int64(s.ID),
		Date:     model.FormatDate(s.Date),
		Start:    s.Start.String(),
		End:      s.End.String(),
		Capacity: s.Capacity,
	}
	if s.Location != nil {
		resp.ChatID = s.Location.ChatID
		resp.MessageID = s.Location.MessageID
	}
	return resp
}

// RosterEntry is one registration on a list
type RosterEntry struct {
	Player       Player    `json:"player"`
	Status       string    `json:"status"`
	RegisteredAt time.Time `json:"registered_at"`
	RegisteredBy string    `json:"registered_by,omitempty"`
}

// RosterEntryFromModel converts model.RosterEntry
func RosterEntryFromModel(e model.RosterEntry) RosterEntry {
	entry := RosterEntry{
		Player:       PlayerFromModel(&e.Player),
		Status:       e.Registration.Status.String(),
		RegisteredAt: e.Registration.RegisteredAt,
	}
	if e.Registration.RegisteredBySomeoneElse(&e.Player) {
		entry.RegisteredBy = e.Registration.Provenance.ActorName
	}
	return entry
}

// Roster is a session with both lists and its rendered message
type Roster struct {
	Session Session       `json:"session"`
	Main    []RosterEntry `json:"main"`
	Reserve []RosterEntry `json:"reserve"`
	View    roster.View   `json:"view"`
	Text    string        `json:"text"`
}

// RosterFromModel converts a loaded session roster
func RosterFromModel(r *registration.SessionRoster) Roster {
	view := roster.Render(r.Session, r.Main, r.Reserve)
	return Roster{
		Session: SessionFromModel(r.Session),
		Main:    entries(r.Main),
		Reserve: entries(r.Reserve),
		View:    view,
		Text:    view.Text(),
	}
}

func entries(list []model.RosterEntry) []RosterEntry {
	out := make([]RosterEntry, len(list))
	for i, e := range list {
		out[i] = RosterEntryFromModel(e)
	}
	return out
}

// SessionsResponse lists the sessions of one date
type SessionsResponse struct {
	Date     string   `json:"date"`
	Sessions []Roster `json:"sessions"`
}

// JoinResponse is the response after a join
type JoinResponse struct {
	Outcome registration.Outcome `json:"outcome"`
	Message string               `json:"message"`
	Session Session              `json:"session"`
	Player  Player               `json:"player"`
	Status  string               `json:"status,omitempty"`
}

// JoinResponseFromResult converts registration.JoinResult
func JoinResponseFromResult(r *registration.JoinResult) JoinResponse {
	resp := JoinResponse{
		Outcome: r.Outcome,
		Message: OutcomeMessage(r.Outcome),
		Session: SessionFromModel(r.Session),
		Player:  PlayerFromModel(r.Player),
	}
	if r.Status.Valid() {
		resp.Status = r.Status.String()
	}
	return resp
}

// LeaveResponse is the response after a leave or removal
type LeaveResponse struct {
	Outcome  registration.Outcome `json:"outcome"`
	Message  string               `json:"message"`
	Session  Session              `json:"session"`
	Promoted []Player             `json:"promoted,omitempty"`
}

// LeaveResponseFromResult converts registration.LeaveResult
func LeaveResponseFromResult(r *registration.LeaveResult) LeaveResponse {
	resp := LeaveResponse{
		Outcome: r.Outcome,
		Message: OutcomeMessage(r.Outcome),
		Session: SessionFromModel(r.Session),
	}
	for _, player := range r.Promoted {
		resp.Promoted = append(resp.Promoted, PlayerFromModel(player))
	}
	return resp
}

// AddedPlayer is one player registered by a bulk add
type AddedPlayer struct {
	Player Player `json:"player"`
	Status string `json:"status"`
}

// AddPlayersResponse is the response after a bulk add
type AddPlayersResponse struct {
	Session Session       `json:"session"`
	Added   []AddedPlayer `json:"added"`
}

// AddPlayersResponseFromResult converts registration.AddResult
func AddPlayersResponseFromResult(r *registration.AddResult) AddPlayersResponse {
	added := make([]AddedPlayer, len(r.Added))
	for i, a := range r.Added {
		added[i] = AddedPlayer{Player: PlayerFromModel(&a.Player), Status: a.Status.String()}
	}
	return AddPlayersResponse{Session: SessionFromModel(r.Session), Added: added}
}

// SettingsResponse reports the bot's on/off switch
type SettingsResponse struct {
	Enabled bool `json:"enabled"`
}

// PlayerStats represents one player's participation
type PlayerStats struct {
	FullName     string  `json:"full_name"`
	TotalGames   int     `json:"total_games"`
	LastGameDate *string `json:"last_game_date"`
}

// PlayerStatsFromModel converts model.PlayerStats
func PlayerStatsFromModel(s *model.PlayerStats) PlayerStats {
	resp := PlayerStats{FullName: s.FullName, TotalGames: s.TotalGames}
	if s.LastGameDate != nil {
		d := model.FormatDate(*s.LastGameDate)
		resp.LastGameDate = &d
	}
	return resp
}

// Stats represents the aggregate statistics
type Stats struct {
	TotalSessions int    `json:"total_sessions"`
	TotalPlayers  int    `json:"total_players"`
	ActivePlayers int    `json:"active_players"`
	ActiveSince   string `json:"active_since"`
}

// StatsFromModel converts model.AggregateStats
func StatsFromModel(s *model.AggregateStats) Stats {
	return Stats{
		TotalSessions: s.TotalSessions,
		TotalPlayers:  s.TotalPlayers,
		ActivePlayers: s.ActivePlayers,
		ActiveSince:   model.FormatDate(s.ActiveSince),
	}
}

// ScheduleResponse is the response after ensuring a date's default sessions
type ScheduleResponse struct {
	Date     string    `json:"date"`
	Created  bool      `json:"created"`
	Sessions []Session `json:"sessions"`
}

// ScheduleResponseFromSessions builds a ScheduleResponse
func ScheduleResponseFromSessions(date time.Time, created bool, sessions []*model.Session) ScheduleResponse {
	out := make([]Session, len(sessions))
	for i, s := range sessions {
		out[i] = SessionFromModel(s)
	}
	return ScheduleResponse{Date: model.FormatDate(date), Created: created, Sessions: out}
}

// Slot is one default session of the schedule policy
type Slot struct {
	Time     string `json:"time"`
	Capacity int    `json:"capacity"`
}

// PolicyResponse lists the default sessions for weekdays and weekends
type PolicyResponse struct {
	Weekday []Slot `json:"weekday"`
	Weekend []Slot `json:"weekend"`
}

// PolicyFromSchedule converts schedule.Policy
func PolicyFromSchedule(p schedule.Policy) PolicyResponse {
	convert := func(slots []schedule.Slot) []Slot {
		out := make([]Slot, len(slots))
		for i, s := range slots {
			out[i] = Slot{Time: s.Range.String(), Capacity: s.Capacity}
		}
		return out
	}
	return PolicyResponse{Weekday: convert(p.Weekday), Weekend: convert(p.Weekend)}
}

// HelpResponse carries the command usage text
type HelpResponse struct {
	Text string `json:"text"`
}
