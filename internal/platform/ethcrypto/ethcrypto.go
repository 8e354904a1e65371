// Package ethcrypto wraps the Ethereum-style primitives the trust core relies
// on: keccak hashing, the signed-message envelope, and secp256k1 signer
// recovery. Call sites depend on the SignatureVerifier interface so additional
// schemes can be registered without touching them.
package ethcrypto

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureScheme identifies how a claim signature was produced.
type SignatureScheme uint64

// SchemeECDSA is the only scheme supported today: secp256k1 ECDSA over the
// prefixed keccak hash. Other values are reserved.
const SchemeECDSA SignatureScheme = 1

// SignatureVerifier recovers the signing principal from a signature over a
// 32-byte message hash.
type SignatureVerifier interface {
	RecoverSigner(messageHash [32]byte, signature []byte) (common.Address, error)
}

// ECDSAVerifier implements SignatureVerifier for scheme 1.
type ECDSAVerifier struct{}

// RecoverSigner wraps the message hash in the Ethereum signed-message envelope
// and recovers the secp256k1 signer address. It accepts both the raw recovery
// id (0/1) and the conventional 27/28 encoding in the final signature byte.
func (ECDSAVerifier) RecoverSigner(messageHash [32]byte, signature []byte) (common.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(signature))
	}
	sig := make([]byte, crypto.SignatureLength)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	prefixed := PrefixedHash(messageHash)
	pub, err := crypto.SigToPub(prefixed[:], sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// KeyID derives the key identifier for an authorization principal:
// keccak256 of the ABI encoding of the address.
func KeyID(principal common.Address) [32]byte {
	var out [32]byte
	copy(out[:], crypto.Keccak256(common.LeftPadBytes(principal.Bytes(), 32)))
	return out
}

// ClaimID derives the claim slot for an (issuer, topic) pair. At most one live
// claim occupies a slot on any identity.
func ClaimID(issuer common.Address, topic uint64) [32]byte {
	var out [32]byte
	copy(out[:], crypto.Keccak256(
		common.LeftPadBytes(issuer.Bytes(), 32),
		common.LeftPadBytes(new(big.Int).SetUint64(topic).Bytes(), 32),
	))
	return out
}

// ClaimMessageHash computes the hash a claim issuer signs:
// keccak256(abi.encode(subjectIdentity, topic, dataHash)).
func ClaimMessageHash(subject common.Address, topic uint64, dataHash [32]byte) [32]byte {
	var out [32]byte
	copy(out[:], crypto.Keccak256(
		common.LeftPadBytes(subject.Bytes(), 32),
		common.LeftPadBytes(new(big.Int).SetUint64(topic).Bytes(), 32),
		dataHash[:],
	))
	return out
}

// HashClaimData hashes raw claim payload bytes into the dataHash carried by a
// claim.
func HashClaimData(data []byte) [32]byte {
	var out [32]byte
	copy(out[:], crypto.Keccak256(data))
	return out
}

// PrefixedHash applies the standard "\x19Ethereum Signed Message:\n32"
// envelope to a 32-byte hash.
func PrefixedHash(messageHash [32]byte) [32]byte {
	var out [32]byte
	copy(out[:], crypto.Keccak256([]byte("\x19Ethereum Signed Message:\n32"), messageHash[:]))
	return out
}

// SignClaim produces a claim signature over the prefixed message hash using
// the conventional 27/28 recovery id encoding. Used by issuer tooling and
// tests; verification goes through ECDSAVerifier.
func SignClaim(messageHash [32]byte, key *ecdsa.PrivateKey) ([]byte, error) {
	prefixed := PrefixedHash(messageHash)
	sig, err := crypto.Sign(prefixed[:], key)
	if err != nil {
		return nil, fmt.Errorf("sign claim: %w", err)
	}
	sig[64] += 27
	return sig, nil
}
