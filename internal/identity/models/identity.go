package models

import (
	"github.com/ethereum/go-ethereum/common"

	"spout/internal/platform/ethcrypto"
	domainerrors "spout/pkg/domain-errors"
)

// Identity is an on-chain style principal: an authorization key store plus a
// claim ledger. All mutation goes through caller-checked methods so the
// aggregate can enforce its own invariants regardless of transport.
type Identity struct {
	address common.Address
	keys    map[KeyID]*Key
	claims  map[ClaimID]*Claim
	// claimOrder preserves insertion order for deterministic enumeration.
	claimOrder []ClaimID
}

// NewIdentity onboards a principal. The owner's key is bootstrapped with
// management purpose so the identity is never created unmanageable.
func NewIdentity(address, owner common.Address) *Identity {
	id := &Identity{
		address: address,
		keys:    make(map[KeyID]*Key),
		claims:  make(map[ClaimID]*Claim),
	}
	ownerKey := KeyID(ethcrypto.KeyID(owner))
	id.keys[ownerKey] = &Key{
		ID:       ownerKey,
		Type:     KeyTypeECDSA,
		Purposes: NewPurposeSet(PurposeManagement),
	}
	return id
}

// Rehydrate rebuilds an aggregate from persisted state. Claims must be given
// in their original insertion order.
func Rehydrate(address common.Address, keys []Key, claims []Claim) *Identity {
	id := &Identity{
		address: address,
		keys:    make(map[KeyID]*Key, len(keys)),
		claims:  make(map[ClaimID]*Claim, len(claims)),
	}
	for i := range keys {
		k := keys[i]
		k.Purposes = keys[i].Purposes.Clone()
		id.keys[k.ID] = &k
	}
	for i := range claims {
		c := claims[i].Clone()
		id.claims[c.ID()] = &c
		id.claimOrder = append(id.claimOrder, c.ID())
	}
	return id
}

// Address returns the identity's own address.
func (id *Identity) Address() common.Address {
	return id.address
}

// HasPurpose reports whether the principal's key carries the given purpose.
// Read-only and side-effect free.
func (id *Identity) HasPurpose(principal common.Address, purpose Purpose) bool {
	key, ok := id.keys[KeyID(ethcrypto.KeyID(principal))]
	return ok && key.Purposes.Has(purpose)
}

// HasKeyPurpose is HasPurpose for an already-derived key id. Issuer-side
// delegation checks use this, since the recovered signer may be any address.
func (id *Identity) HasKeyPurpose(key KeyID, purpose Purpose) bool {
	k, ok := id.keys[key]
	return ok && k.Purposes.Has(purpose)
}

// authorized implements the shared caller rule: the identity acting on itself
// is always allowed, otherwise the caller needs the required purpose.
func (id *Identity) authorized(caller common.Address, required Purpose) bool {
	return caller == id.address || id.HasPurpose(caller, required)
}

// CanManageClaims reports whether caller may add or remove claims.
func (id *Identity) CanManageClaims(caller common.Address) bool {
	return id.authorized(caller, PurposeClaim)
}

// AddKey grants a purpose to the target principal's key, creating the key
// record if needed. Caller must be the identity itself or hold management
// purpose.
func (id *Identity) AddKey(caller, target common.Address, purpose Purpose, keyType KeyType) error {
	if !id.authorized(caller, PurposeManagement) {
		return domainerrors.New(domainerrors.CodeUnauthorized, "caller lacks management purpose")
	}
	if !purpose.Valid() {
		return domainerrors.New(domainerrors.CodeValidation, "unknown key purpose")
	}
	keyID := KeyID(ethcrypto.KeyID(target))
	key, ok := id.keys[keyID]
	if !ok {
		id.keys[keyID] = &Key{
			ID:       keyID,
			Type:     keyType,
			Purposes: NewPurposeSet(purpose),
		}
		return nil
	}
	if !key.Purposes.Add(purpose) {
		return domainerrors.New(domainerrors.CodeConflict, "key already holds purpose")
	}
	return nil
}

// RemoveKey revokes a purpose from the target principal's key. Removing the
// last purpose deletes the key record entirely.
func (id *Identity) RemoveKey(caller, target common.Address, purpose Purpose) error {
	if !id.authorized(caller, PurposeManagement) {
		return domainerrors.New(domainerrors.CodeUnauthorized, "caller lacks management purpose")
	}
	keyID := KeyID(ethcrypto.KeyID(target))
	key, ok := id.keys[keyID]
	if !ok {
		return domainerrors.New(domainerrors.CodeNotFound, "key not found")
	}
	if !key.Purposes.Remove(purpose) {
		return domainerrors.New(domainerrors.CodeNotFound, "key does not hold purpose")
	}
	if key.Purposes.Empty() {
		delete(id.keys, keyID)
	}
	return nil
}

// Key returns the key record for a principal, if present.
func (id *Identity) Key(principal common.Address) (Key, bool) {
	key, ok := id.keys[KeyID(ethcrypto.KeyID(principal))]
	if !ok {
		return Key{}, false
	}
	out := *key
	out.Purposes = key.Purposes.Clone()
	return out, true
}

// Keys lists all key records. Order is unspecified.
func (id *Identity) Keys() []Key {
	out := make([]Key, 0, len(id.keys))
	for _, key := range id.keys {
		k := *key
		k.Purposes = key.Purposes.Clone()
		out = append(out, k)
	}
	return out
}

// StoreClaim stores or overwrites the claim at its (issuer, topic) slot.
// Signature validation happens in the service layer before this is called.
// Reports whether an existing claim was overwritten.
func (id *Identity) StoreClaim(claim Claim) (ClaimID, bool) {
	claimID := claim.ID()
	c := claim.Clone()
	_, overwritten := id.claims[claimID]
	id.claims[claimID] = &c
	if !overwritten {
		id.claimOrder = append(id.claimOrder, claimID)
	}
	return claimID, overwritten
}

// RemoveClaim deletes a claim. Removing an absent claim is a no-op so claim
// cleanup is idempotent; the bool reports whether anything was removed.
func (id *Identity) RemoveClaim(claimID ClaimID) bool {
	if _, ok := id.claims[claimID]; !ok {
		return false
	}
	delete(id.claims, claimID)
	for i, cid := range id.claimOrder {
		if cid == claimID {
			id.claimOrder = append(id.claimOrder[:i], id.claimOrder[i+1:]...)
			break
		}
	}
	return true
}

// Claim returns the stored claim at the given slot.
func (id *Identity) Claim(claimID ClaimID) (Claim, bool) {
	c, ok := id.claims[claimID]
	if !ok {
		return Claim{}, false
	}
	return c.Clone(), true
}

// ClaimIDsByTopic enumerates claim slots for a topic in insertion order.
// Empty if the identity holds no claim for the topic.
func (id *Identity) ClaimIDsByTopic(topic ClaimTopic) []ClaimID {
	var out []ClaimID
	for _, cid := range id.claimOrder {
		if id.claims[cid].Topic == topic {
			out = append(out, cid)
		}
	}
	return out
}

// Claims lists all stored claims in insertion order.
func (id *Identity) Claims() []Claim {
	out := make([]Claim, 0, len(id.claimOrder))
	for _, cid := range id.claimOrder {
		out = append(out, id.claims[cid].Clone())
	}
	return out
}

// Clone returns a deep copy of the aggregate. Stores hand out clones so
// readers never alias store-owned state.
func (id *Identity) Clone() *Identity {
	return Rehydrate(id.address, id.Keys(), id.Claims())
}
