package store

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/suite"

	"spout/internal/identity/models"
	"spout/pkg/platform/sentinel"
)

type IdentityStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestIdentityStoreSuite(t *testing.T) {
	suite.Run(t, new(IdentityStoreSuite))
}

func (s *IdentityStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

var (
	testIdentityAddr = common.HexToAddress("0xaaaa000000000000000000000000000000000001")
	testOwnerAddr    = common.HexToAddress("0xaaaa000000000000000000000000000000000002")
	testTargetAddr   = common.HexToAddress("0xaaaa000000000000000000000000000000000003")
)

func (s *IdentityStoreSuite) TestCreateAndGet() {
	s.Run("creates and retrieves identity", func() {
		identity := models.NewIdentity(testIdentityAddr, testOwnerAddr)
		s.Require().NoError(s.store.Create(s.ctx, identity))

		found, err := s.store.Get(s.ctx, testIdentityAddr)
		s.Require().NoError(err)
		s.True(found.HasPurpose(testOwnerAddr, models.PurposeManagement))
	})

	s.Run("rejects duplicate address", func() {
		identity := models.NewIdentity(testIdentityAddr, testOwnerAddr)
		err := s.store.Create(s.ctx, identity)
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("returns ErrNotFound for unknown address", func() {
		_, err := s.store.Get(s.ctx, testTargetAddr)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *IdentityStoreSuite) TestMutateCommitsOnSuccess() {
	identity := models.NewIdentity(testIdentityAddr, testOwnerAddr)
	s.Require().NoError(s.store.Create(s.ctx, identity))

	err := s.store.Mutate(s.ctx, testIdentityAddr, func(id *models.Identity) error {
		return id.AddKey(testOwnerAddr, testTargetAddr, models.PurposeClaim, models.KeyTypeECDSA)
	})
	s.Require().NoError(err)

	found, err := s.store.Get(s.ctx, testIdentityAddr)
	s.Require().NoError(err)
	s.True(found.HasPurpose(testTargetAddr, models.PurposeClaim))
}

func (s *IdentityStoreSuite) TestMutateRollsBackOnError() {
	identity := models.NewIdentity(testIdentityAddr, testOwnerAddr)
	s.Require().NoError(s.store.Create(s.ctx, identity))

	boom := errors.New("boom")
	err := s.store.Mutate(s.ctx, testIdentityAddr, func(id *models.Identity) error {
		s.Require().NoError(id.AddKey(testOwnerAddr, testTargetAddr, models.PurposeClaim, models.KeyTypeECDSA))
		return boom
	})
	s.Require().ErrorIs(err, boom)

	found, err := s.store.Get(s.ctx, testIdentityAddr)
	s.Require().NoError(err)
	s.False(found.HasPurpose(testTargetAddr, models.PurposeClaim), "failed mutation must not leak partial state")
}

func (s *IdentityStoreSuite) TestMutateUnknownIdentity() {
	err := s.store.Mutate(s.ctx, testTargetAddr, func(*models.Identity) error { return nil })
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *IdentityStoreSuite) TestGetReturnsIndependentCopy() {
	identity := models.NewIdentity(testIdentityAddr, testOwnerAddr)
	s.Require().NoError(s.store.Create(s.ctx, identity))

	first, err := s.store.Get(s.ctx, testIdentityAddr)
	s.Require().NoError(err)
	s.Require().NoError(first.AddKey(testOwnerAddr, testTargetAddr, models.PurposeAction, models.KeyTypeECDSA))

	second, err := s.store.Get(s.ctx, testIdentityAddr)
	s.Require().NoError(err)
	s.False(second.HasPurpose(testTargetAddr, models.PurposeAction))
}
