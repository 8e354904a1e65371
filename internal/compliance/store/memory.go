// Package store persists wallet registry entries.
package store

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"spout/internal/compliance/models"
	"spout/pkg/platform/sentinel"
)

// InMemory keeps wallet entries in process memory.
type InMemory struct {
	mu      sync.RWMutex
	entries map[common.Address]models.Entry
}

// NewInMemory constructs an empty wallet entry store.
func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[common.Address]models.Entry)}
}

// Create registers a wallet entry. Fails with ErrConflict when the wallet is
// already registered.
func (s *InMemory) Create(_ context.Context, entry models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[entry.Wallet]; ok {
		return sentinel.ErrConflict
	}
	s.entries[entry.Wallet] = entry
	return nil
}

// Get returns the entry for a wallet.
func (s *InMemory) Get(_ context.Context, wallet common.Address) (models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[wallet]
	if !ok {
		return models.Entry{}, sentinel.ErrNotFound
	}
	return entry, nil
}

// Update replaces an existing entry.
func (s *InMemory) Update(_ context.Context, entry models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[entry.Wallet]; !ok {
		return sentinel.ErrNotFound
	}
	s.entries[entry.Wallet] = entry
	return nil
}

// Delete removes a wallet's entry.
func (s *InMemory) Delete(_ context.Context, wallet common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[wallet]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.entries, wallet)
	return nil
}

// Contains reports whether the wallet is registered.
func (s *InMemory) Contains(_ context.Context, wallet common.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[wallet]
	return ok, nil
}
