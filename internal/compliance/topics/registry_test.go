package topics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spout/internal/compliance/models"
	"spout/pkg/platform/sentinel"
)

func TestAddAndListPreservesInsertionOrder(t *testing.T) {
	r := NewRegistry()
	for _, topic := range []models.ClaimTopic{7, 1, 42} {
		require.NoError(t, r.Add(topic))
	}
	assert.Equal(t, []models.ClaimTopic{7, 1, 42}, r.List())
}

func TestAddDuplicateConflicts(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(1))
	assert.ErrorIs(t, r.Add(1), sentinel.ErrConflict)
}

func TestRemove(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(1))
	require.NoError(t, r.Add(2))

	require.NoError(t, r.Remove(1))
	assert.Equal(t, []models.ClaimTopic{2}, r.List())
	assert.False(t, r.Contains(1))

	assert.ErrorIs(t, r.Remove(1), sentinel.ErrNotFound)
}

func TestListCopyIsIndependent(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(1))

	list := r.List()
	list[0] = 99
	assert.Equal(t, []models.ClaimTopic{1}, r.List())
}
