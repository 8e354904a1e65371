// Package topics holds the claim-topics registry: the ordered set of topics a
// wallet's identity must carry valid claims for. Registries are explicitly
// owned, injected instances so tests can build isolated worlds.
package topics

import (
	"sync"

	"spout/internal/compliance/models"
	"spout/pkg/platform/sentinel"
)

// Registry is the required-topics set. Insertion order is preserved for
// deterministic enumeration; verification itself does not depend on order.
type Registry struct {
	mu     sync.RWMutex
	topics []models.ClaimTopic
	index  map[models.ClaimTopic]struct{}
}

// NewRegistry constructs an empty topics registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[models.ClaimTopic]struct{})}
}

// Add appends a required topic. Fails with ErrConflict when already present.
func (r *Registry) Add(topic models.ClaimTopic) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.index[topic]; ok {
		return sentinel.ErrConflict
	}
	r.index[topic] = struct{}{}
	r.topics = append(r.topics, topic)
	return nil
}

// Remove drops a required topic. Fails with ErrNotFound when absent.
func (r *Registry) Remove(topic models.ClaimTopic) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.index[topic]; !ok {
		return sentinel.ErrNotFound
	}
	delete(r.index, topic)
	for i, t := range r.topics {
		if t == topic {
			r.topics = append(r.topics[:i], r.topics[i+1:]...)
			break
		}
	}
	return nil
}

// List returns the required topics in insertion order.
func (r *Registry) List() []models.ClaimTopic {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.ClaimTopic, len(r.topics))
	copy(out, r.topics)
	return out
}

// Contains reports whether the topic is required.
func (r *Registry) Contains(topic models.ClaimTopic) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.index[topic]
	return ok
}
