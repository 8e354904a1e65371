package issuers

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spout/internal/compliance/models"
	"spout/pkg/platform/sentinel"
)

var (
	issuerA = common.HexToAddress("0x000000000000000000000000000000000000000a")
	issuerB = common.HexToAddress("0x000000000000000000000000000000000000000b")
)

func TestAddAndTopicMembership(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(issuerA, []models.ClaimTopic{1, 2}))

	assert.True(t, r.IsTrusted(issuerA))
	assert.True(t, r.HasTopic(issuerA, 1))
	assert.False(t, r.HasTopic(issuerA, 3))
	assert.False(t, r.IsTrusted(issuerB))
}

func TestAddRejectsEmptyTopicsAndDuplicates(t *testing.T) {
	r := NewRegistry()
	assert.ErrorIs(t, r.Add(issuerA, nil), sentinel.ErrInvalidState)

	require.NoError(t, r.Add(issuerA, []models.ClaimTopic{1}))
	assert.ErrorIs(t, r.Add(issuerA, []models.ClaimTopic{2}), sentinel.ErrConflict)
}

func TestTrustedForTopicKeepsRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(issuerB, []models.ClaimTopic{1}))
	require.NoError(t, r.Add(issuerA, []models.ClaimTopic{1, 2}))

	assert.Equal(t, []common.Address{issuerB, issuerA}, r.TrustedForTopic(1))
	assert.Equal(t, []common.Address{issuerA}, r.TrustedForTopic(2))
	assert.Empty(t, r.TrustedForTopic(3))
}

func TestUpdateReplacesTopicSet(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(issuerA, []models.ClaimTopic{1}))
	require.NoError(t, r.Update(issuerA, []models.ClaimTopic{2}))

	assert.False(t, r.HasTopic(issuerA, 1))
	assert.True(t, r.HasTopic(issuerA, 2))

	assert.ErrorIs(t, r.Update(issuerB, []models.ClaimTopic{1}), sentinel.ErrNotFound)
	assert.ErrorIs(t, r.Update(issuerA, nil), sentinel.ErrInvalidState)
}

func TestTopicsForSortsNumerically(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(issuerA, []models.ClaimTopic{42, 7, 1}))

	topics, err := r.TopicsFor(issuerA)
	require.NoError(t, err)
	assert.Equal(t, []models.ClaimTopic{1, 7, 42}, topics)

	_, err = r.TopicsFor(issuerB)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestRemove(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(issuerA, []models.ClaimTopic{1}))

	require.NoError(t, r.Remove(issuerA))
	assert.False(t, r.IsTrusted(issuerA))
	assert.Empty(t, r.TrustedForTopic(1))

	assert.ErrorIs(t, r.Remove(issuerA), sentinel.ErrNotFound)
}
