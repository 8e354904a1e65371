// Package pricecache stores the most recent oracle price per ticker.
// Writes are last-writer-wins; a later fulfillment simply replaces the quote.
package pricecache

import (
	"context"
	"math/big"
	"sync"
	"time"

	"spout/internal/orders/models"
	"spout/pkg/platform/sentinel"
)

// Memory is a process-local price cache.
type Memory struct {
	mu     sync.RWMutex
	quotes map[string]models.Quote
	now    func() time.Time
}

func NewMemory() *Memory {
	return &Memory{quotes: make(map[string]models.Quote), now: time.Now}
}

func (m *Memory) Set(_ context.Context, ticker string, price *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes[ticker] = models.Quote{
		Ticker:    ticker,
		Price:     new(big.Int).Set(price),
		UpdatedAt: m.now().UTC(),
	}
	return nil
}

func (m *Memory) Get(_ context.Context, ticker string) (models.Quote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	quote, ok := m.quotes[ticker]
	if !ok {
		return models.Quote{}, sentinel.ErrNotFound
	}
	quote.Price = new(big.Int).Set(quote.Price)
	return quote, nil
}
