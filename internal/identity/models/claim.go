package models

import (
	"encoding/hex"

	"github.com/ethereum/go-ethereum/common"

	"spout/internal/platform/ethcrypto"
)

// KeyID identifies a key record: keccak256 of the ABI-encoded principal
// address.
type KeyID [32]byte

// Hex renders the identifier as 0x-prefixed hex.
func (k KeyID) Hex() string {
	return "0x" + hex.EncodeToString(k[:])
}

// ClaimID identifies a claim slot: keccak256(issuer, topic). An identity
// holds at most one live claim per slot.
type ClaimID [32]byte

func (c ClaimID) Hex() string {
	return "0x" + hex.EncodeToString(c[:])
}

// ClaimTopic is a platform-defined category of attestation (e.g. KYC).
type ClaimTopic uint64

// KeyType records how a key's principal authenticates. Only ECDSA keys exist
// today.
type KeyType uint64

const KeyTypeECDSA KeyType = 1

// Key is a principal's capability record on an identity.
type Key struct {
	ID       KeyID
	Type     KeyType
	Purposes PurposeSet
}

// Claim is an issuer-signed attestation about an identity for a topic.
// Immutable once stored; re-adding the same (issuer, topic) overwrites.
type Claim struct {
	Topic     ClaimTopic
	Scheme    ethcrypto.SignatureScheme
	Issuer    common.Address
	Signature []byte
	DataHash  [32]byte
	URI       string
}

// ID derives the claim's storage slot.
func (c Claim) ID() ClaimID {
	return ClaimID(ethcrypto.ClaimID(c.Issuer, uint64(c.Topic)))
}

// Clone returns an independent copy, so stored claims cannot be mutated
// through retained slices.
func (c Claim) Clone() Claim {
	out := c
	out.Signature = append([]byte(nil), c.Signature...)
	return out
}
