// Package issuers holds the trusted-issuers registry: which issuer addresses
// the platform trusts, and for which claim topics each may attest.
package issuers

import (
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"spout/internal/compliance/models"
	"spout/pkg/platform/sentinel"
)

// Registry maps issuer addresses to the topic set they are trusted for.
// An issuer is trusted for a topic iff the topic is in its set.
type Registry struct {
	mu sync.RWMutex
	// order preserves registration order for deterministic enumeration.
	order  []common.Address
	topics map[common.Address]map[models.ClaimTopic]struct{}
}

// NewRegistry constructs an empty trusted-issuers registry.
func NewRegistry() *Registry {
	return &Registry{topics: make(map[common.Address]map[models.ClaimTopic]struct{})}
}

// Add registers an issuer with its trusted topics. At least one topic is
// required; an issuer trusted for nothing is meaningless.
func (r *Registry) Add(issuer common.Address, topics []models.ClaimTopic) error {
	if len(topics) == 0 {
		return sentinel.ErrInvalidState
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.topics[issuer]; ok {
		return sentinel.ErrConflict
	}
	r.topics[issuer] = topicSet(topics)
	r.order = append(r.order, issuer)
	return nil
}

// Update replaces an issuer's trusted topic set.
func (r *Registry) Update(issuer common.Address, topics []models.ClaimTopic) error {
	if len(topics) == 0 {
		return sentinel.ErrInvalidState
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.topics[issuer]; !ok {
		return sentinel.ErrNotFound
	}
	r.topics[issuer] = topicSet(topics)
	return nil
}

// Remove drops an issuer from the trusted set entirely.
func (r *Registry) Remove(issuer common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.topics[issuer]; !ok {
		return sentinel.ErrNotFound
	}
	delete(r.topics, issuer)
	for i, addr := range r.order {
		if addr == issuer {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// IsTrusted reports whether the address is a registered issuer.
func (r *Registry) IsTrusted(issuer common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.topics[issuer]
	return ok
}

// HasTopic reports whether the issuer is trusted to attest the topic.
func (r *Registry) HasTopic(issuer common.Address, topic models.ClaimTopic) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.topics[issuer]
	if !ok {
		return false
	}
	_, ok = set[topic]
	return ok
}

// TrustedForTopic returns the issuers trusted for a topic, in registration
// order.
func (r *Registry) TrustedForTopic(topic models.ClaimTopic) []common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []common.Address
	for _, issuer := range r.order {
		if _, ok := r.topics[issuer][topic]; ok {
			out = append(out, issuer)
		}
	}
	return out
}

// TopicsFor returns the topics an issuer is trusted for, in numeric order.
func (r *Registry) TopicsFor(issuer common.Address) ([]models.ClaimTopic, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.topics[issuer]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := make([]models.ClaimTopic, 0, len(set))
	for topic := range set {
		out = append(out, topic)
	}
	slices.Sort(out)
	return out, nil
}

// List returns all trusted issuer addresses in registration order.
func (r *Registry) List() []common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]common.Address, len(r.order))
	copy(out, r.order)
	return out
}

func topicSet(topics []models.ClaimTopic) map[models.ClaimTopic]struct{} {
	set := make(map[models.ClaimTopic]struct{}, len(topics))
	for _, t := range topics {
		set[t] = struct{}{}
	}
	return set
}
