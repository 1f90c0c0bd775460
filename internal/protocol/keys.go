package protocol

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/blake2s"
)

// VerifyingKey is an Ed25519 public key.
type VerifyingKey [ed25519.PublicKeySize]byte

// SigningKey is an Ed25519 private key. Its zero value is never valid; use
// GenerateSigningKey or NewSigningKeyFromSeed.
type SigningKey struct {
	priv ed25519.PrivateKey
}

// GenerateSigningKey creates a fresh random signing key.
func GenerateSigningKey() (SigningKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return SigningKey{}, fmt.Errorf("protocol: generate signing key: %w", err)
	}
	return SigningKey{priv: priv}, nil
}

// NewSigningKeyFromSeed derives a deterministic signing key from a 32-byte seed.
func NewSigningKeyFromSeed(seed []byte) SigningKey {
	return SigningKey{priv: ed25519.NewKeyFromSeed(seed)}
}

// VerifyingKey returns the public half of k.
func (k SigningKey) VerifyingKey() VerifyingKey {
	var vk VerifyingKey
	copy(vk[:], k.priv.Public().(ed25519.PublicKey))
	return vk
}

// PeerId returns the PeerId derived from k's verifying key.
func (k SigningKey) PeerId() (PeerId, error) {
	return peerIDFromVerifyingKey(k.VerifyingKey())
}

// sign computes an Ed25519 signature over digest.
func (k SigningKey) sign(digest [32]byte) [ed25519.SignatureSize]byte {
	var sig [ed25519.SignatureSize]byte
	copy(sig[:], ed25519.Sign(k.priv, digest[:]))
	return sig
}

// verify checks sig against digest under vk.
func verify(vk VerifyingKey, digest [32]byte, sig [ed25519.SignatureSize]byte) bool {
	return ed25519.Verify(ed25519.PublicKey(vk[:]), digest[:], sig[:])
}

// digestOf computes the BLAKE2s-256 digest of canonical-encoded bytes.
func digestOf(encoded []byte) ([32]byte, error) {
	h, err := blake2s.New256(nil)
	if err != nil {
		return [32]byte{}, fmt.Errorf("protocol: blake2s-256 init: %w", err)
	}
	h.Write(encoded)

	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest, nil
}
