// Package signer provides the single-signer signing primitive used to
// produce opening signatures, acker signatures, and certificate signatures.
package signer

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/luxfi/crypto/bls"
	"github.com/luxfi/crypto/hashing"
	"github.com/luxfi/ids"
)

// ErrInvalidSignature is returned when a signature fails verification.
var ErrInvalidSignature = errors.New("signer: invalid signature")

// Signature is the wire form of a single signer's signature over a message.
type Signature []byte

// PublicKey is the wire form of a signer's public key, suitable for storing
// alongside a validators.Validator entry and comparing for equality.
type PublicKey []byte

// KeyPair is a single validator's signing identity. It wraps luxfi/crypto's
// BLS key as a plain one-key, one-signature primitive: every signature in
// this module is produced and checked individually, never aggregated, so
// only SecretKey.Sign, PublicKey.Verify and the byte (de)serialization
// helpers of the bls package are exercised.
type KeyPair struct {
	secret *bls.SecretKey
	public *bls.PublicKey
}

// Generate creates a new random KeyPair.
func Generate() (*KeyPair, error) {
	sk, err := bls.NewSecretKey()
	if err != nil {
		return nil, fmt.Errorf("signer: generate key: %w", err)
	}
	return &KeyPair{secret: sk, public: sk.PublicKey()}, nil
}

// FromSeed deterministically derives a KeyPair from a 32-byte seed. Useful
// for devnet fixtures where validator identities must be reproducible.
func FromSeed(seed []byte) (*KeyPair, error) {
	sk, err := bls.SecretKeyFromSeed(seed)
	if err != nil {
		return nil, fmt.Errorf("signer: derive key from seed: %w", err)
	}
	return &KeyPair{secret: sk, public: sk.PublicKey()}, nil
}

// RandomSeed returns a fresh 32-byte seed suitable for FromSeed.
func RandomSeed() ([]byte, error) {
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("signer: read random seed: %w", err)
	}
	return seed, nil
}

// PublicKey returns the wire-encoded public key.
func (kp *KeyPair) PublicKey() PublicKey {
	return PublicKey(bls.PublicKeyToCompressedBytes(kp.public))
}

// Sign signs msg and returns the wire-encoded signature.
func (kp *KeyPair) Sign(msg []byte) (Signature, error) {
	sig, err := kp.secret.Sign(msg)
	if err != nil {
		return nil, fmt.Errorf("signer: sign: %w", err)
	}
	return Signature(bls.SignatureToBytes(sig)), nil
}

// NodeID derives the ids.NodeID that identifies this key pair's holder by
// hashing the compressed public key down to the 20-byte short-ID space
// ids.NodeID occupies, the same public-key-to-NodeID reduction the teacher
// uses for its 32-byte block hashes (hashing.ComputeHash256Array).
func (kp *KeyPair) NodeID() (ids.NodeID, error) {
	digest := hashing.ComputeHash256Array(kp.PublicKey())
	nodeID, err := ids.ToNodeID(digest[:20])
	if err != nil {
		return ids.NodeID{}, fmt.Errorf("signer: derive node ID: %w", err)
	}
	return nodeID, nil
}

// Verify checks that sig is a valid signature over msg under pub.
func Verify(pub PublicKey, msg []byte, sig Signature) error {
	publicKey, err := bls.PublicKeyFromCompressedBytes([]byte(pub))
	if err != nil {
		return fmt.Errorf("%w: malformed public key: %w", ErrInvalidSignature, err)
	}
	signature, err := bls.SignatureFromBytes([]byte(sig))
	if err != nil {
		return fmt.Errorf("%w: malformed signature: %w", ErrInvalidSignature, err)
	}
	if !bls.Verify(publicKey, signature, msg) {
		return ErrInvalidSignature
	}
	return nil
}
