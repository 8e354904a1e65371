// Package oracle abstracts the off-platform price feed. The engine only ever
// sees request ids going out and opaque payloads coming back through the
// fulfillment callback.
package oracle

import (
	"context"
	"fmt"
	"math/big"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"spout/internal/orders/models"
)

// PriceRequester submits an asynchronous price request for a ticker and
// returns the id its fulfillment will carry. subscriptionRef identifies the
// billing subscription funding the request.
type PriceRequester interface {
	RequestPrice(ctx context.Context, ticker string, subscriptionRef uint64) (models.RequestID, error)
}

// EncodePrice renders a price as the 32-byte big-endian word fulfillment
// payloads use.
func EncodePrice(price *big.Int) []byte {
	out := make([]byte, 32)
	price.FillBytes(out)
	return out
}

// DecodePrice parses a fulfillment payload into a price. Payloads longer than
// 32 bytes are rejected rather than silently truncated.
func DecodePrice(response []byte) (*big.Int, error) {
	if len(response) == 0 || len(response) > 32 {
		return nil, fmt.Errorf("price payload must be 1..32 bytes, got %d", len(response))
	}
	return new(big.Int).SetBytes(response), nil
}

// Local is a request-id mint for deployments without a live oracle
// connection. It never answers; fulfillments are driven externally.
type Local struct {
	node  uuid.UUID
	nonce atomic.Uint64
}

func NewLocal() *Local {
	return &Local{node: uuid.New()}
}

func (l *Local) RequestPrice(_ context.Context, ticker string, subscriptionRef uint64) (models.RequestID, error) {
	nonce := l.nonce.Add(1)
	digest := crypto.Keccak256(
		l.node[:],
		[]byte(ticker),
		new(big.Int).SetUint64(subscriptionRef).Bytes(),
		new(big.Int).SetUint64(nonce).Bytes(),
	)
	var id models.RequestID
	copy(id[:], digest)
	return id, nil
}
