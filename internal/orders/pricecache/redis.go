package pricecache

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"

	"spout/internal/orders/models"
	"spout/pkg/platform/sentinel"
)

const keyPrefix = "spout:price:"

// Redis keeps quotes in a Redis hash per ticker so they survive restarts and
// are shared across replicas.
type Redis struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, now: time.Now}
}

func (r *Redis) Set(ctx context.Context, ticker string, price *big.Int) error {
	key := keyPrefix + ticker
	err := r.client.HSet(ctx, key,
		"price", price.String(),
		"updated_at", r.now().UTC().Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return fmt.Errorf("set price for %s: %w", ticker, err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, ticker string) (models.Quote, error) {
	fields, err := r.client.HGetAll(ctx, keyPrefix+ticker).Result()
	if err != nil {
		return models.Quote{}, fmt.Errorf("get price for %s: %w", ticker, err)
	}
	if len(fields) == 0 {
		return models.Quote{}, sentinel.ErrNotFound
	}

	price, ok := new(big.Int).SetString(fields["price"], 10)
	if !ok {
		return models.Quote{}, fmt.Errorf("corrupt price for %s: %q", ticker, fields["price"])
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, fields["updated_at"])
	if err != nil {
		return models.Quote{}, fmt.Errorf("corrupt timestamp for %s: %w", ticker, err)
	}

	return models.Quote{Ticker: ticker, Price: price, UpdatedAt: updatedAt}, nil
}
