// Package events defines the domain events the trust core emits and the
// publisher port they flow through. Events are transport-agnostic; sinks
// (Kafka, in-memory recorder) decide encoding and routing.
package events

import (
	"context"
	"time"
)

// Type names a domain event.
type Type string

const (
	// Identity lifecycle.
	TypeIdentityCreated Type = "identity_created"
	TypeKeyAdded        Type = "key_added"
	TypeKeyRemoved      Type = "key_removed"
	TypeClaimAdded      Type = "claim_added"
	TypeClaimRemoved    Type = "claim_removed"

	// Compliance registry.
	TypeIdentityRegistered   Type = "identity_registered"
	TypeIdentityDeregistered Type = "identity_deregistered"
	TypeCountryUpdated       Type = "country_updated"

	// Order settlement.
	TypeOrderSubmitted   Type = "order_submitted"
	TypeBuyOrderSettled  Type = "buy_order_settled"
	TypeSellOrderSettled Type = "sell_order_settled"
	TypeOrderFailed      Type = "order_failed"
)

// Event carries the fields shared across sinks. Only the fields relevant to
// the event type are populated.
type Event struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	// Identity and compliance fields.
	Identity string `json:"identity,omitempty"`
	Wallet   string `json:"wallet,omitempty"`
	Issuer   string `json:"issuer,omitempty"`
	Topic    uint64 `json:"topic,omitempty"`
	Country  uint16 `json:"country,omitempty"`

	// Order fields. Amounts and price are decimal strings since they carry
	// uint256-scale values.
	RequestID   string `json:"request_id,omitempty"`
	User        string `json:"user,omitempty"`
	Ticker      string `json:"ticker,omitempty"`
	Token       string `json:"token,omitempty"`
	Side        string `json:"side,omitempty"`
	USDCAmount  string `json:"usdc_amount,omitempty"`
	AssetAmount string `json:"asset_amount,omitempty"`
	Price       string `json:"price,omitempty"`

	// Reason carries the oracle error payload on order failures.
	Reason string `json:"reason,omitempty"`
}

// Publisher is the sink port services emit through.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Key returns the partitioning key for the event: order events correlate by
// request id, everything else by the subject identity or wallet.
func (e Event) Key() string {
	if e.RequestID != "" {
		return e.RequestID
	}
	if e.Wallet != "" {
		return e.Wallet
	}
	return e.Identity
}
