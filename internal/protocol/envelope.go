package protocol

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/tinylib/msgp/msgp"
)

// MaxMessageLen is the largest signed envelope the wire protocol permits.
// Frames above this size are rejected before decryption.
const MaxMessageLen = 16384

// ErrInvalidSignature is returned when a signed envelope's signature does not
// verify against its claimed verifying key.
var ErrInvalidSignature = errors.New("protocol: invalid signature")

// ErrOversizeFrame is returned when an encoded envelope exceeds MaxMessageLen.
var ErrOversizeFrame = errors.New("protocol: frame exceeds maximum size")

// SignedEnvelope is the payload triple described in the data model: an
// application message, its Ed25519 signature over a BLAKE2s-256 digest of
// the message's canonical encoding, and the signer's verifying key.
type SignedEnvelope struct {
	Message      Message
	Signature    [ed25519.SignatureSize]byte
	VerifyingKey VerifyingKey
}

// Sign builds a SignedEnvelope for m under key.
func Sign(key SigningKey, m Message) (SignedEnvelope, error) {
	encoded, err := reencodeMessage(m)
	if err != nil {
		return SignedEnvelope{}, err
	}
	digest, err := digestOf(encoded)
	if err != nil {
		return SignedEnvelope{}, err
	}
	return SignedEnvelope{
		Message:      m,
		Signature:    key.sign(digest),
		VerifyingKey: key.VerifyingKey(),
	}, nil
}

// EncodeEnvelope serializes env canonically as (message, signature,
// verifying_key). It returns ErrOversizeFrame rather than producing a frame
// larger than MaxMessageLen.
func EncodeEnvelope(env SignedEnvelope) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := msgp.NewWriter(buf)

	if err := w.WriteArrayHeader(3); err != nil {
		return nil, err
	}
	if err := EncodeMessage(w, env.Message); err != nil {
		return nil, err
	}
	if err := w.WriteBytes(env.Signature[:]); err != nil {
		return nil, err
	}
	if err := w.WriteBytes(env.VerifyingKey[:]); err != nil {
		return nil, err
	}
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("protocol: flush envelope: %w", err)
	}

	if buf.Len() > MaxMessageLen {
		return nil, ErrOversizeFrame
	}
	return buf.Bytes(), nil
}

// DecodeAndVerify parses a serialized envelope, recomputes its signing
// digest from the decoded message, and rejects it with ErrInvalidSignature
// if the signature does not check out against the embedded verifying key.
// On success it also returns the PeerId derived from that key.
func DecodeAndVerify(data []byte) (Message, PeerId, error) {
	if len(data) > MaxMessageLen {
		return nil, PeerId{}, ErrOversizeFrame
	}

	r := msgp.NewReader(bytes.NewReader(data))
	n, err := r.ReadArrayHeader()
	if err != nil {
		return nil, PeerId{}, fmt.Errorf("protocol: read envelope: %w", err)
	}
	if n != 3 {
		return nil, PeerId{}, fmt.Errorf("protocol: envelope: expected 3 fields, got %d", n)
	}

	msg, err := DecodeMessage(r)
	if err != nil {
		return nil, PeerId{}, fmt.Errorf("protocol: decode message: %w", err)
	}

	sigBytes, err := r.ReadBytes(nil)
	if err != nil {
		return nil, PeerId{}, fmt.Errorf("protocol: read signature: %w", err)
	}
	if len(sigBytes) != ed25519.SignatureSize {
		return nil, PeerId{}, fmt.Errorf("protocol: signature: want %d bytes, got %d", ed25519.SignatureSize, len(sigBytes))
	}
	var sig [ed25519.SignatureSize]byte
	copy(sig[:], sigBytes)

	vkBytes, err := r.ReadBytes(nil)
	if err != nil {
		return nil, PeerId{}, fmt.Errorf("protocol: read verifying key: %w", err)
	}
	if len(vkBytes) != len(VerifyingKey{}) {
		return nil, PeerId{}, fmt.Errorf("protocol: verifying key: want %d bytes, got %d", len(VerifyingKey{}), len(vkBytes))
	}
	var vk VerifyingKey
	copy(vk[:], vkBytes)

	encoded, err := reencodeMessage(msg)
	if err != nil {
		return nil, PeerId{}, err
	}
	digest, err := digestOf(encoded)
	if err != nil {
		return nil, PeerId{}, err
	}

	if !verify(vk, digest, sig) {
		return nil, PeerId{}, ErrInvalidSignature
	}

	peerID, err := peerIDFromVerifyingKey(vk)
	if err != nil {
		return nil, PeerId{}, err
	}
	return msg, peerID, nil
}

// reencodeMessage produces the canonical encoding of m on its own, without
// the enclosing envelope array — this is what gets hashed for signing and
// re-derived on verification so the digest never depends on the envelope's
// surrounding bytes.
func reencodeMessage(m Message) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := msgp.NewWriter(buf)
	if err := EncodeMessage(w, m); err != nil {
		return nil, err
	}
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("protocol: flush message: %w", err)
	}
	return buf.Bytes(), nil
}
