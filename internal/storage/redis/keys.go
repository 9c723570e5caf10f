package redis

import (
	"fmt"
	"time"

	"github.com/mcoot/rosterbot/internal/model"
)

// Key prefix for all roster data
const keyPrefix = "roster"

// Key generation functions for each entity type

// sequenceKey returns the counter used to allocate IDs for an entity type
func sequenceKey(entity string) string {
	return fmt.Sprintf("%s:seq:%s", keyPrefix, entity)
}

// playerKey returns the Redis key for a Player
func playerKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:player:%d", keyPrefix, id)
}

// playersKey returns the SET of all player IDs
func playersKey() string {
	return fmt.Sprintf("%s:players", keyPrefix)
}

// externalIndexKey returns the external_id -> player_id index key
func externalIndexKey(externalID model.ExternalID) string {
	return fmt.Sprintf("%s:idx:external:%s", keyPrefix, externalID)
}

// playerNameIndexKey returns the SET of player IDs sharing a full name
func playerNameIndexKey(fullName string) string {
	return fmt.Sprintf("%s:idx:player_name:%s", keyPrefix, fullName)
}

// playerSessionsKey returns the SET of session IDs a player is registered for
func playerSessionsKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:idx:player_sessions:%d", keyPrefix, id)
}

// sessionKey returns the Redis key for a Session
func sessionKey(id model.SessionID) string {
	return fmt.Sprintf("%s:session:%d", keyPrefix, id)
}

// sessionsKey returns the ZSET of all session IDs scored by day number
func sessionsKey() string {
	return fmt.Sprintf("%s:sessions", keyPrefix)
}

// sessionStartKey returns the (date, start) uniqueness index key
func sessionStartKey(date time.Time, start model.ClockTime) string {
	return fmt.Sprintf("%s:idx:session_start:%s:%d", keyPrefix, model.FormatDate(date), start)
}

// sessionsForDateKey returns the ZSET of session IDs on a date scored by start
func sessionsForDateKey(date time.Time) string {
	return fmt.Sprintf("%s:idx:sessions_for_date:%s", keyPrefix, model.FormatDate(date))
}

// registrationKey returns the Redis key for a Registration
func registrationKey(sessionID model.SessionID, playerID model.PlayerID) string {
	return fmt.Sprintf("%s:registration:%d:%d", keyPrefix, sessionID, playerID)
}

// listKey returns the ZSET of player IDs on one list of a session
func listKey(sessionID model.SessionID, status model.Status) string {
	return fmt.Sprintf("%s:session:%d:%s", keyPrefix, sessionID, status)
}

// settingsKey returns the HASH of feature flags
func settingsKey() string {
	return fmt.Sprintf("%s:settings", keyPrefix)
}

// dayNumber scores a date for range queries on the sessions ZSET
func dayNumber(date time.Time) float64 {
	return float64(model.DateOf(date).Unix() / 86400)
}
