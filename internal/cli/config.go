package cli

import (
	"os"
	"strings"
)

// Config holds CLI configuration
type Config struct {
	ServerURL  string
	Token      string
	TokenFile  string
	CallerID   string
	CallerName string
	ChatID     string
	Output     string
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		ServerURL:  getEnvOrDefault("ROSTER_SERVER", "http://localhost:8080"),
		Token:      os.Getenv("ROSTER_TOKEN"),
		TokenFile:  os.Getenv("ROSTER_TOKEN_FILE"),
		CallerID:   os.Getenv("ROSTER_CALLER_ID"),
		CallerName: os.Getenv("ROSTER_CALLER_NAME"),
		ChatID:     os.Getenv("ROSTER_CHAT_ID"),
		Output:     "text",
	}
}

// LoadToken loads the gateway token from file if not already set
func (c *Config) LoadToken() error {
	if c.Token != "" || c.TokenFile == "" {
		return nil
	}

	data, err := os.ReadFile(c.TokenFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // No token file is fine
		}
		return err
	}

	c.Token = strings.TrimSpace(string(data))
	return nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
