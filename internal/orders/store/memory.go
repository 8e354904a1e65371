package store

import (
	"context"
	"sync"

	"spout/internal/orders/models"
	"spout/pkg/platform/sentinel"
)

// InMemory keeps pending orders keyed by request id. Insert refuses a reused
// id and Take claims an order atomically, so concurrent duplicate callbacks
// settle at most once.
type InMemory struct {
	mu     sync.Mutex
	orders map[models.RequestID]models.PendingOrder
}

func NewInMemory() *InMemory {
	return &InMemory{orders: make(map[models.RequestID]models.PendingOrder)}
}

func (s *InMemory) Insert(_ context.Context, order models.PendingOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[order.RequestID]; exists {
		return sentinel.ErrConflict
	}
	s.orders[order.RequestID] = order.Clone()
	return nil
}

func (s *InMemory) Get(_ context.Context, id models.RequestID) (models.PendingOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return models.PendingOrder{}, sentinel.ErrNotFound
	}
	return order.Clone(), nil
}

// Take removes and returns the order for id. The second return reports
// whether an order was present.
func (s *InMemory) Take(_ context.Context, id models.RequestID) (models.PendingOrder, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return models.PendingOrder{}, false, nil
	}
	delete(s.orders, id)
	return order, true, nil
}

// List returns all pending orders in unspecified order.
func (s *InMemory) List(_ context.Context) ([]models.PendingOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.PendingOrder, 0, len(s.orders))
	for _, order := range s.orders {
		out = append(out, order.Clone())
	}
	return out, nil
}
