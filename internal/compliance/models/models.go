package models

import (
	"github.com/ethereum/go-ethereum/common"

	identitymodels "spout/internal/identity/models"
)

// Entry binds a wallet to its identity and jurisdiction. An entry exists only
// while the wallet is registered.
type Entry struct {
	Wallet   common.Address
	Identity common.Address
	Country  uint16
}

// Registration is the input for a single wallet registration; batch
// registration takes a slice of these.
type Registration struct {
	Wallet   common.Address
	Identity common.Address
	Country  uint16
}

// ClaimTopic aliases the identity context's topic type; the registries and
// the claim ledger must agree on it.
type ClaimTopic = identitymodels.ClaimTopic
