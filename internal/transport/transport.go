// Package transport implements the encrypted, framed duplex channel that
// carries signed application messages between server and client: a
// Noise_NN_25519_ChaChaPoly_BLAKE2s handshake over a WebSocket restricted to
// binary frames.
package transport

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/flynn/noise"
	"github.com/gorilla/websocket"

	"github.com/lox/freezeout/internal/protocol"
)

// ErrHandshakeFailed wraps any failure during the Noise handshake: a
// non-binary frame, a decryption error, or the stream closing before both
// messages are exchanged.
var ErrHandshakeFailed = errors.New("transport: handshake failed")

// ErrDecryptFailed wraps a post-handshake frame that fails Noise decryption
// (a corrupted or forged frame). Per the error taxonomy this is recoverable:
// callers drop the frame and keep the connection open rather than closing
// it, the same policy as protocol.ErrInvalidSignature.
var ErrDecryptFailed = errors.New("transport: decrypt frame failed")

const (
	writeWait = 10 * time.Second
)

var cipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashBLAKE2s)

// Conn is a bidirectional encrypted channel over a binary-frame WebSocket.
// Send is safe for concurrent use; Recv is not (callers must serialize their
// own reads, matching the single reader loop per connection the server runs).
type Conn struct {
	ws *websocket.Conn

	mu   sync.Mutex
	send *noise.CipherState
	recv *noise.CipherState
}

// Accept performs the Noise-NN responder handshake over ws: read the
// initiator's `-> e`, then write `<- e, ee`. Call this from the server side
// immediately after upgrading an incoming HTTP connection to a WebSocket.
func Accept(ws *websocket.Conn) (*Conn, error) {
	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite: cipherSuite,
		Pattern:     noise.HandshakeNN,
		Initiator:   false,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: init handshake state: %v", ErrHandshakeFailed, err)
	}

	msg, err := readBinaryFrame(ws)
	if err != nil {
		return nil, fmt.Errorf("%w: read initiator message: %v", ErrHandshakeFailed, err)
	}
	if _, _, _, err := hs.ReadMessage(nil, msg); err != nil {
		return nil, fmt.Errorf("%w: process initiator message: %v", ErrHandshakeFailed, err)
	}

	out, cs1, cs2, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build response message: %v", ErrHandshakeFailed, err)
	}
	if err := writeBinaryFrame(ws, out); err != nil {
		return nil, fmt.Errorf("%w: send response message: %v", ErrHandshakeFailed, err)
	}

	// Noise convention: cs1 encrypts initiator->responder, cs2 encrypts
	// responder->initiator. We are the responder: we decrypt with cs1 and
	// encrypt with cs2.
	return &Conn{ws: ws, send: cs2, recv: cs1}, nil
}

// Connect performs the Noise-NN initiator handshake over ws: write `-> e`,
// then read `<- e, ee`. Call this from the client side right after dialing.
func Connect(ws *websocket.Conn) (*Conn, error) {
	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite: cipherSuite,
		Pattern:     noise.HandshakeNN,
		Initiator:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: init handshake state: %v", ErrHandshakeFailed, err)
	}

	out, _, _, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build initiator message: %v", ErrHandshakeFailed, err)
	}
	if err := writeBinaryFrame(ws, out); err != nil {
		return nil, fmt.Errorf("%w: send initiator message: %v", ErrHandshakeFailed, err)
	}

	msg, err := readBinaryFrame(ws)
	if err != nil {
		return nil, fmt.Errorf("%w: read responder message: %v", ErrHandshakeFailed, err)
	}
	_, cs1, cs2, err := hs.ReadMessage(nil, msg)
	if err != nil {
		return nil, fmt.Errorf("%w: process responder message: %v", ErrHandshakeFailed, err)
	}

	return &Conn{ws: ws, send: cs1, recv: cs2}, nil
}

// Send signs nothing itself — env must already be signed — and writes one
// encrypted binary frame per call.
func (c *Conn) Send(env protocol.SignedEnvelope) error {
	plaintext, err := protocol.EncodeEnvelope(env)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	ciphertext := c.send.Encrypt(nil, nil, plaintext)

	if len(ciphertext) > protocol.MaxMessageLen {
		return protocol.ErrOversizeFrame
	}

	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return writeBinaryFrame(c.ws, ciphertext)
}

// Recv reads one encrypted binary frame, decrypts it, and verifies the
// signed envelope it carries. A decrypt failure is returned wrapped in
// ErrDecryptFailed, and a decode or verification failure as the protocol
// package's sentinel (such as protocol.ErrInvalidSignature); per the error
// taxonomy the caller should drop the
// message and keep the connection open rather than tear it down. A clean
// EOF surfaces as the error from the underlying websocket (io.EOF-wrapping
// close error), which the caller treats as end-of-stream.
func (c *Conn) Recv() (protocol.Message, protocol.PeerId, error) {
	frame, err := readBinaryFrame(c.ws)
	if err != nil {
		return nil, protocol.PeerId{}, err
	}
	if len(frame) > protocol.MaxMessageLen {
		return nil, protocol.PeerId{}, protocol.ErrOversizeFrame
	}

	plaintext, err := c.recv.Decrypt(nil, nil, frame)
	if err != nil {
		return nil, protocol.PeerId{}, fmt.Errorf("%w: %v", ErrDecryptFailed, err)
	}

	return protocol.DecodeAndVerify(plaintext)
}

// Close closes the underlying WebSocket connection.
func (c *Conn) Close() error {
	return c.ws.Close()
}

// readBinaryFrame reads frames until it finds a binary one, silently
// discarding text and control frames per the framing invariants. Any read
// error (including a clean close) propagates to the caller unchanged.
func readBinaryFrame(ws *websocket.Conn) ([]byte, error) {
	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		if len(data) > protocol.MaxMessageLen {
			return nil, protocol.ErrOversizeFrame
		}
		return data, nil
	}
}

func writeBinaryFrame(ws *websocket.Conn, data []byte) error {
	return ws.WriteMessage(websocket.BinaryMessage, data)
}
