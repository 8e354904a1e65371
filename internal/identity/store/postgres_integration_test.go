//go:build integration

package store

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spout/internal/identity/models"
	"spout/internal/platform/ethcrypto"
	"spout/pkg/platform/sentinel"
	"spout/pkg/testutil/containers"
)

func TestPostgresIdentityStore(t *testing.T) {
	pc := containers.NewPostgresContainer(t)
	ctx := context.Background()

	s := NewPostgres(pc.DB)
	require.NoError(t, s.EnsureSchema(ctx))

	address := common.HexToAddress("0x0000000000000000000000000000000000007001")
	owner := common.HexToAddress("0x0000000000000000000000000000000000007002")
	issuer := common.HexToAddress("0x0000000000000000000000000000000000007003")

	t.Run("create and reload bootstrapped aggregate", func(t *testing.T) {
		require.NoError(t, s.Create(ctx, models.NewIdentity(address, owner)))

		identity, err := s.Get(ctx, address)
		require.NoError(t, err)
		assert.Equal(t, address, identity.Address())
		assert.True(t, identity.HasPurpose(owner, models.PurposeManagement))
	})

	t.Run("duplicate create conflicts", func(t *testing.T) {
		assert.ErrorIs(t, s.Create(ctx, models.NewIdentity(address, owner)), sentinel.ErrConflict)
	})

	t.Run("mutation round trips keys and claims", func(t *testing.T) {
		claim := models.Claim{
			Topic:     1,
			Scheme:    ethcrypto.SchemeECDSA,
			Issuer:    issuer,
			Signature: []byte{0xaa, 0xbb},
			DataHash:  [32]byte{1, 2, 3},
			URI:       "https://claims.example/1",
		}
		require.NoError(t, s.Mutate(ctx, address, func(identity *models.Identity) error {
			if err := identity.AddKey(owner, issuer, models.PurposeClaim, models.KeyTypeECDSA); err != nil {
				return err
			}
			identity.StoreClaim(claim)
			return nil
		}))

		identity, err := s.Get(ctx, address)
		require.NoError(t, err)
		assert.True(t, identity.HasPurpose(issuer, models.PurposeClaim))

		stored, ok := identity.Claim(claim.ID())
		require.True(t, ok)
		assert.Equal(t, claim, stored)
	})

	t.Run("failed mutation leaves no partial state", func(t *testing.T) {
		err := s.Mutate(ctx, address, func(identity *models.Identity) error {
			identity.RemoveClaim(models.ClaimID(ethcrypto.ClaimID(issuer, 1)))
			return assert.AnError
		})
		require.ErrorIs(t, err, assert.AnError)

		identity, err := s.Get(ctx, address)
		require.NoError(t, err)
		_, ok := identity.Claim(models.ClaimID(ethcrypto.ClaimID(issuer, 1)))
		assert.True(t, ok, "rolled-back removal must not stick")
	})

	t.Run("mutate unknown identity", func(t *testing.T) {
		ghost := common.HexToAddress("0x00000000000000000000000000000000000070ff")
		err := s.Mutate(ctx, ghost, func(*models.Identity) error { return nil })
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}
