package protocol

import "testing"

func TestSignAndVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	key, err := GenerateSigningKey()
	if err != nil {
		t.Fatalf("GenerateSigningKey: %v", err)
	}

	msg := JoinServer{Nickname: "alice"}
	env, err := Sign(key, msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	data, err := EncodeEnvelope(env)
	if err != nil {
		t.Fatalf("EncodeEnvelope: %v", err)
	}

	got, peerID, err := DecodeAndVerify(data)
	if err != nil {
		t.Fatalf("DecodeAndVerify: %v", err)
	}
	if got != msg {
		t.Fatalf("decoded message = %#v, want %#v", got, msg)
	}

	wantPeerID, err := key.PeerId()
	if err != nil {
		t.Fatalf("PeerId: %v", err)
	}
	if peerID != wantPeerID {
		t.Fatalf("peer id = %s, want %s", peerID, wantPeerID)
	}
}

func TestDecodeAndVerifyRejectsTamperedEnvelope(t *testing.T) {
	t.Parallel()

	key, err := GenerateSigningKey()
	if err != nil {
		t.Fatalf("GenerateSigningKey: %v", err)
	}

	env, err := Sign(key, ServerJoined{Nickname: "alice", Chips: 1_000_000})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	data, err := EncodeEnvelope(env)
	if err != nil {
		t.Fatalf("EncodeEnvelope: %v", err)
	}

	for i := range data {
		tampered := append([]byte(nil), data...)
		tampered[i] ^= 0xFF

		if _, _, err := DecodeAndVerify(tampered); err == nil {
			t.Fatalf("byte %d: expected verification or decode failure after flipping", i)
		}
	}
}

func TestDecodeAndVerifyRejectsOversizeFrame(t *testing.T) {
	t.Parallel()

	data := make([]byte, MaxMessageLen+1)
	if _, _, err := DecodeAndVerify(data); err != ErrOversizeFrame {
		t.Fatalf("err = %v, want %v", err, ErrOversizeFrame)
	}
}

func TestPeerIdRoundTripsThroughString(t *testing.T) {
	t.Parallel()

	key, err := GenerateSigningKey()
	if err != nil {
		t.Fatalf("GenerateSigningKey: %v", err)
	}
	id, err := key.PeerId()
	if err != nil {
		t.Fatalf("PeerId: %v", err)
	}

	parsed, err := ParsePeerId(id.String())
	if err != nil {
		t.Fatalf("ParsePeerId: %v", err)
	}
	if parsed != id {
		t.Fatalf("parsed = %s, want %s", parsed, id)
	}
}
