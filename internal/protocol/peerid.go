package protocol

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2s"
)

// PeerId identifies a connected signer. It is the BLAKE2s-128 digest of the
// signer's Ed25519 verifying key, so it is derivable by anyone who has seen
// a signed message without a separate registration step.
type PeerId [16]byte

// peerIDFromVerifyingKey derives the PeerId that signs under vk must use.
func peerIDFromVerifyingKey(vk VerifyingKey) (PeerId, error) {
	h, err := blake2s.New128(nil)
	if err != nil {
		return PeerId{}, fmt.Errorf("protocol: blake2s-128 init: %w", err)
	}
	h.Write(vk[:])

	var id PeerId
	copy(id[:], h.Sum(nil))
	return id, nil
}

// String renders the canonical lowercase hex form.
func (p PeerId) String() string {
	return hex.EncodeToString(p[:])
}

// ParsePeerId parses the canonical hex form back into a PeerId.
func ParsePeerId(s string) (PeerId, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return PeerId{}, fmt.Errorf("protocol: invalid peer id %q: %w", s, err)
	}
	if len(b) != len(PeerId{}) {
		return PeerId{}, fmt.Errorf("protocol: invalid peer id %q: want %d bytes, got %d", s, len(PeerId{}), len(b))
	}
	var id PeerId
	copy(id[:], b)
	return id, nil
}
