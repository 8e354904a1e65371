//go:build integration

package store

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spout/internal/compliance/models"
	"spout/pkg/platform/sentinel"
	"spout/pkg/testutil/containers"
)

func TestPostgresEntryStore(t *testing.T) {
	pc := containers.NewPostgresContainer(t)
	ctx := context.Background()

	s := NewPostgres(pc.DB)
	require.NoError(t, s.EnsureSchema(ctx))

	wallet := common.HexToAddress("0x0000000000000000000000000000000000006001")
	identity := common.HexToAddress("0x0000000000000000000000000000000000006002")
	entry := models.Entry{Wallet: wallet, Identity: identity, Country: 840}

	t.Run("create and get", func(t *testing.T) {
		require.NoError(t, s.Create(ctx, entry))

		got, err := s.Get(ctx, wallet)
		require.NoError(t, err)
		assert.Equal(t, entry, got)

		registered, err := s.Contains(ctx, wallet)
		require.NoError(t, err)
		assert.True(t, registered)
	})

	t.Run("duplicate wallet conflicts", func(t *testing.T) {
		assert.ErrorIs(t, s.Create(ctx, entry), sentinel.ErrConflict)
	})

	t.Run("update", func(t *testing.T) {
		entry.Country = 276
		require.NoError(t, s.Update(ctx, entry))

		got, err := s.Get(ctx, wallet)
		require.NoError(t, err)
		assert.Equal(t, uint16(276), got.Country)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, wallet))
		assert.ErrorIs(t, s.Delete(ctx, wallet), sentinel.ErrNotFound)

		_, err := s.Get(ctx, wallet)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)

		registered, err := s.Contains(ctx, wallet)
		require.NoError(t, err)
		assert.False(t, registered)
	})

	t.Run("update unknown wallet", func(t *testing.T) {
		assert.ErrorIs(t, s.Update(ctx, entry), sentinel.ErrNotFound)
	})
}
