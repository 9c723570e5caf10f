package model

import "time"

// Feature names a persisted on/off switch
type Feature string

const (
	// FeatureRegistration gates user-facing join, leave and roster reads
	FeatureRegistration Feature = "bot_enabled"
)

// PlayerStats summarises one player's participation
type PlayerStats struct {
	FullName     string
	TotalGames   int
	LastGameDate *time.Time // nil when the player never registered
}

// AggregateStats summarises the whole roster store
type AggregateStats struct {
	TotalSessions int
	TotalPlayers  int
	ActivePlayers int
	ActiveSince   time.Time
}
