package store

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"spout/internal/identity/models"
	"spout/pkg/platform/sentinel"
)

// InMemory keeps identity aggregates in process memory. It is the default
// store for tests and single-node deployments.
type InMemory struct {
	mu         sync.RWMutex
	identities map[common.Address]*models.Identity
}

// NewInMemory constructs an empty in-memory identity store.
func NewInMemory() *InMemory {
	return &InMemory{identities: make(map[common.Address]*models.Identity)}
}

// Create registers a new identity aggregate. Fails with ErrConflict when the
// address is already onboarded.
func (s *InMemory) Create(_ context.Context, identity *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.identities[identity.Address()]; ok {
		return sentinel.ErrConflict
	}
	s.identities[identity.Address()] = identity.Clone()
	return nil
}

// Get returns a deep copy of the aggregate so callers never alias store
// state.
func (s *InMemory) Get(_ context.Context, address common.Address) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identity, ok := s.identities[address]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return identity.Clone(), nil
}

// Mutate applies fn to the aggregate as one atomic unit. The mutation runs
// against a copy and is only committed when fn succeeds, so a failing
// operation never leaves a partially-updated identity behind.
func (s *InMemory) Mutate(_ context.Context, address common.Address, fn func(*models.Identity) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.identities[address]
	if !ok {
		return sentinel.ErrNotFound
	}
	working := identity.Clone()
	if err := fn(working); err != nil {
		return err
	}
	s.identities[address] = working
	return nil
}
