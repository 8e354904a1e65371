package pricecache

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spout/pkg/platform/sentinel"
)

func TestSetAndGet(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "LQD", big.NewInt(20000)))

	quote, err := c.Get(ctx, "LQD")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(20000), quote.Price)
	assert.Equal(t, "LQD", quote.Ticker)
	assert.False(t, quote.UpdatedAt.IsZero())
}

func TestGetUnknownTicker(t *testing.T) {
	c := NewMemory()
	_, err := c.Get(context.Background(), "TLT")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestLastWriterWins(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	times := []time.Time{
		time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 1, 11, 0, 0, 0, time.UTC),
	}
	c.now = func() time.Time {
		next := times[0]
		if len(times) > 1 {
			times = times[1:]
		}
		return next
	}

	require.NoError(t, c.Set(ctx, "LQD", big.NewInt(20000)))
	require.NoError(t, c.Set(ctx, "LQD", big.NewInt(20150)))

	quote, err := c.Get(ctx, "LQD")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(20150), quote.Price)
	assert.Equal(t, time.Date(2026, 1, 1, 11, 0, 0, 0, time.UTC), quote.UpdatedAt)
}

func TestReturnedPriceIsACopy(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "LQD", big.NewInt(20000)))

	quote, err := c.Get(ctx, "LQD")
	require.NoError(t, err)
	quote.Price.SetInt64(1)

	again, err := c.Get(ctx, "LQD")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(20000), again.Price)
}
