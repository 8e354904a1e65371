package store

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spout/internal/orders/models"
	"spout/pkg/platform/sentinel"
)

func order(id byte) models.PendingOrder {
	var requestID models.RequestID
	requestID[31] = id
	return models.PendingOrder{
		RequestID: requestID,
		User:      common.HexToAddress("0x0000000000000000000000000000000000003001"),
		Ticker:    "LQD",
		Amount:    big.NewInt(100_000000),
		Side:      models.SideBuy,
	}
}

func TestInsertAndGet(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, order(1)))

	got, err := s.Get(ctx, order(1).RequestID)
	require.NoError(t, err)
	assert.Equal(t, "LQD", got.Ticker)
	assert.Equal(t, big.NewInt(100_000000), got.Amount)
}

func TestInsertDuplicateRequestIDConflicts(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, order(1)))
	assert.ErrorIs(t, s.Insert(ctx, order(1)), sentinel.ErrConflict)
}

func TestTakeClaimsExactlyOnce(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, order(1)))

	got, found, err := s.Take(ctx, order(1).RequestID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, order(1).RequestID, got.RequestID)

	_, found, err = s.Take(ctx, order(1).RequestID)
	require.NoError(t, err)
	assert.False(t, found)

	_, err = s.Get(ctx, order(1).RequestID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestGetUnknownRequestID(t *testing.T) {
	s := NewInMemory()
	_, err := s.Get(context.Background(), order(9).RequestID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestListSnapshotsAllPending(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, order(1)))
	require.NoError(t, s.Insert(ctx, order(2)))

	orders, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}

func TestStoredCopyIsIndependent(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	in := order(1)
	require.NoError(t, s.Insert(ctx, in))
	in.Amount.SetInt64(1)

	got, err := s.Get(ctx, in.RequestID)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100_000000), got.Amount)

	got.Amount.SetInt64(2)
	again, err := s.Get(ctx, in.RequestID)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100_000000), again.Amount)
}
