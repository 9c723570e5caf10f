package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/rosterbot/internal/dependencies/clock"
	"github.com/mcoot/rosterbot/internal/model"
)

// Errors
var (
	ErrInvalidToken = errors.New("invalid gateway token")
	ErrInvalidHash  = errors.New("gateway token hash is not a bcrypt hash")
)

// Service verifies the chat gateway and answers the admin predicate
type Service struct {
	clock clock.Clock

	tokenHash []byte
	admins    map[model.ExternalID]struct{}

	mu       sync.RWMutex
	verified map[string]time.Time // token -> cache expiry

	cacheDuration time.Duration
}

// Config holds configuration for the auth service
type Config struct {
	// GatewayTokenHash is the bcrypt hash of the gateway bearer token.
	// Empty disables gateway verification.
	GatewayTokenHash string
	AdminIDs         []model.ExternalID
	CacheDuration    time.Duration
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		CacheDuration: 10 * time.Minute,
	}
}

// New creates a new auth Service
func New(clock clock.Clock, cfg Config) (*Service, error) {
	if cfg.CacheDuration == 0 {
		cfg.CacheDuration = DefaultConfig().CacheDuration
	}
	if cfg.GatewayTokenHash != "" {
		if _, err := bcrypt.Cost([]byte(cfg.GatewayTokenHash)); err != nil {
			return nil, ErrInvalidHash
		}
	}

	admins := make(map[model.ExternalID]struct{}, len(cfg.AdminIDs))
	for _, id := range cfg.AdminIDs {
		if id != "" {
			admins[id] = struct{}{}
		}
	}

	return &Service{
		clock:         clock,
		tokenHash:     []byte(cfg.GatewayTokenHash),
		admins:        admins,
		verified:      make(map[string]time.Time),
		cacheDuration: cfg.CacheDuration,
	}, nil
}

// HashToken produces the bcrypt hash to configure for a gateway token
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// GatewayAuthEnabled reports whether a gateway token is required
func (s *Service) GatewayAuthEnabled() bool {
	return len(s.tokenHash) > 0
}

// ValidateGatewayToken checks a bearer token against the configured hash.
// Accepted tokens are cached so bcrypt runs at most once per cache period.
func (s *Service) ValidateGatewayToken(token string) error {
	if !s.GatewayAuthEnabled() {
		return nil
	}
	if token == "" {
		return ErrInvalidToken
	}

	now := s.clock.Now()
	s.mu.RLock()
	expiry, ok := s.verified[token]
	s.mu.RUnlock()
	if ok && now.Before(expiry) {
		return nil
	}

	if err := bcrypt.CompareHashAndPassword(s.tokenHash, []byte(token)); err != nil {
		return ErrInvalidToken
	}

	s.mu.Lock()
	s.verified[token] = now.Add(s.cacheDuration)
	s.mu.Unlock()
	return nil
}

// IsAdmin reports whether the caller is a configured administrator
func (s *Service) IsAdmin(ctx context.Context, caller model.Caller) bool {
	if caller.ExternalID == "" {
		return false
	}
	_, ok := s.admins[caller.ExternalID]
	return ok
}

// CleanExpiredTokens removes expired cache entries (call periodically)
func (s *Service) CleanExpiredTokens() {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, expiry := range s.verified {
		if !now.Before(expiry) {
			delete(s.verified, token)
		}
	}
}
