package redis

import "time"

// Config holds the connection settings for the roster store
type Config struct {
	URL          string
	PoolSize     int
	MinIdleConns int

	// PingTimeout bounds the connectivity check made by New
	PingTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		URL:          "redis://localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
		PingTimeout:  5 * time.Second,
	}
}
