package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/rosterbot/internal/dependencies/mocks"
	"github.com/mcoot/rosterbot/internal/model"
)

type ServiceSuite struct {
	suite.Suite
	clock   *mocks.MockClock
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	hash, err := HashToken("gateway-secret")
	s.Require().NoError(err)

	s.clock = mocks.NewMockClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	s.service, err = New(s.clock, Config{
		GatewayTokenHash: hash,
		AdminIDs:         []model.ExternalID{"admin-1", ""},
	})
	s.Require().NoError(err)
	s.ctx = context.Background()
}

// Gateway token tests

func (s *ServiceSuite) TestValidateGatewayTokenAcceptsConfiguredToken() {
	s.NoError(s.service.ValidateGatewayToken("gateway-secret"))
}

func (s *ServiceSuite) TestValidateGatewayTokenRejectsOthers() {
	s.ErrorIs(s.service.ValidateGatewayToken("wrong"), ErrInvalidToken)
	s.ErrorIs(s.service.ValidateGatewayToken(""), ErrInvalidToken)
}

func (s *ServiceSuite) TestAcceptedTokenIsCachedUntilExpiry() {
	s.Require().NoError(s.service.ValidateGatewayToken("gateway-secret"))
	s.Len(s.service.verified, 1)

	s.clock.Advance(DefaultConfig().CacheDuration + time.Second)
	s.service.CleanExpiredTokens()
	s.Empty(s.service.verified)

	s.NoError(s.service.ValidateGatewayToken("gateway-secret"))
}

func (s *ServiceSuite) TestEmptyHashDisablesGatewayCheck() {
	service, err := New(s.clock, DefaultConfig())
	s.Require().NoError(err)
	s.False(service.GatewayAuthEnabled())
	s.NoError(service.ValidateGatewayToken(""))
}

func (s *ServiceSuite) TestNewRejectsMalformedHash() {
	_, err := New(s.clock, Config{GatewayTokenHash: "plaintext"})
	s.ErrorIs(err, ErrInvalidHash)
}

// Admin predicate tests

func (s *ServiceSuite) TestIsAdmin() {
	s.True(s.service.IsAdmin(s.ctx, model.Caller{ExternalID: "admin-1"}))
	s.False(s.service.IsAdmin(s.ctx, model.Caller{ExternalID: "user-1"}))
	s.False(s.service.IsAdmin(s.ctx, model.Caller{Name: "No ID"}))
}
