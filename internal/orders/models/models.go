package models

import (
	"encoding/hex"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// RequestID correlates an outbound price request with its asynchronous
// fulfillment callback. Globally unique, supplied by the oracle consumer at
// submission time.
type RequestID [32]byte

// Hex renders the id as 0x-prefixed hex.
func (r RequestID) Hex() string {
	return "0x" + hex.EncodeToString(r[:])
}

// ParseRequestID decodes a 0x-prefixed 32-byte hex string.
func ParseRequestID(s string) (RequestID, bool) {
	if len(s) == 66 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 32 {
		return RequestID{}, false
	}
	var out RequestID
	copy(out[:], raw)
	return out, true
}

// Side distinguishes buy and sell intents.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// PendingOrder is a submitted order awaiting its price callback. Amount is
// USDC-denominated for buys and asset-denominated for sells. The record is
// created exactly once per request id and destroyed exactly once, on its
// matching fulfillment.
type PendingOrder struct {
	RequestID       RequestID
	User            common.Address
	Ticker          string
	Token           common.Address
	Amount          *big.Int
	Recipient       common.Address
	Side            Side
	SubscriptionRef uint64
	SubmittedAt     time.Time
}

// Clone copies the order so store snapshots never share the amount pointer.
func (o PendingOrder) Clone() PendingOrder {
	out := o
	if o.Amount != nil {
		out.Amount = new(big.Int).Set(o.Amount)
	}
	return out
}

// Quote is the last fulfilled price for a ticker. Price carries two implied
// decimal places (price 20000 means 200.00).
type Quote struct {
	Ticker    string
	Price     *big.Int
	UpdatedAt time.Time
}

// Settlement is the outcome of a fulfilled order.
type Settlement struct {
	Order       PendingOrder
	Price       *big.Int
	USDCAmount  *big.Int
	AssetAmount *big.Int
}
